// Copyright 2026 Hyperlane Relayer Contributors

package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
)

// GCSStorage reads a validator's checkpoint bucket folder (spec.md §4.9's
// GCS(bucket, folder) variant).
//
// Grounded on pkg/ethereum/client.go's dial-once construction idiom;
// translated from original_source's ya_gcp-based GcsStorageClient to the
// stdlib-adjacent cloud.google.com/go/storage client already used
// elsewhere in the pack.
type GCSStorage struct {
	Client *storage.Client
	Bucket string
	Folder string
}

// NewGCSStorage dials a real GCS client using application-default
// credentials.
func NewGCSStorage(ctx context.Context, bucket, folder string) (*GCSStorage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: new gcs client: %w", err)
	}
	return &GCSStorage{Client: client, Bucket: bucket, Folder: strings.TrimSuffix(folder, "/")}, nil
}

func (g *GCSStorage) object(name string) string {
	if g.Folder == "" {
		return name
	}
	return g.Folder + "/" + name
}

func (g *GCSStorage) read(ctx context.Context, name string) ([]byte, error) {
	r, err := g.Client.Bucket(g.Bucket).Object(g.object(name)).NewReader(ctx)
	if err != nil {
		if err == storage.ErrObjectNotExist {
			return nil, nil
		}
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (g *GCSStorage) LatestIndex(ctx context.Context) (*uint32, error) {
	b, err := g.read(ctx, "latestIndex.json")
	if err != nil || b == nil {
		return nil, err
	}
	n, err := strconv.ParseUint(strings.TrimSpace(string(b)), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: parse latestIndex.json: %w", err)
	}
	idx := uint32(n)
	return &idx, nil
}

func (g *GCSStorage) FetchCheckpoint(ctx context.Context, index uint32) (*SignedCheckpoint, error) {
	b, err := g.read(ctx, fmt.Sprintf("checkpoint_%d_with_id.json", index))
	if err != nil || b == nil {
		return nil, err
	}
	var sc SignedCheckpoint
	if err := json.Unmarshal(b, &sc); err != nil {
		return nil, fmt.Errorf("checkpoint: parse checkpoint %d: %w", index, err)
	}
	return &sc, nil
}

func (g *GCSStorage) AnnouncementLocation() string {
	return fmt.Sprintf("gs://%s/%s", g.Bucket, g.Folder)
}

func (g *GCSStorage) ReorgStatus(ctx context.Context) (*ReorgStatus, error) {
	b, err := g.read(ctx, "reorgStatus.json")
	if err != nil || b == nil {
		return nil, err
	}
	rs, err := unmarshalJSON[ReorgStatus](b)
	if err != nil {
		return nil, err
	}
	return &rs, nil
}

var _ Syncer = (*GCSStorage)(nil)

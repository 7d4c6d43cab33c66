// Copyright 2026 Hyperlane Relayer Contributors

package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// LocalStorage reads a validator's checkpoints off a local filesystem path
// (spec.md §4.9's LocalStorage(path) variant): files named
// checkpoint_<index>_with_id.json, latestIndex.json, announcement.json.
type LocalStorage struct {
	Path string
}

func (l *LocalStorage) checkpointPath(index uint32) string {
	return filepath.Join(l.Path, fmt.Sprintf("checkpoint_%d_with_id.json", index))
}

func (l *LocalStorage) LatestIndex(ctx context.Context) (*uint32, error) {
	b, err := os.ReadFile(filepath.Join(l.Path, "latestIndex.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	n, err := strconv.ParseUint(string(trimWhitespace(b)), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: parse latestIndex.json: %w", err)
	}
	idx := uint32(n)
	return &idx, nil
}

func (l *LocalStorage) FetchCheckpoint(ctx context.Context, index uint32) (*SignedCheckpoint, error) {
	b, err := os.ReadFile(l.checkpointPath(index))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var sc SignedCheckpoint
	if err := json.Unmarshal(b, &sc); err != nil {
		return nil, fmt.Errorf("checkpoint: parse checkpoint %d: %w", index, err)
	}
	return &sc, nil
}

func (l *LocalStorage) AnnouncementLocation() string {
	return "file://" + l.Path
}

func (l *LocalStorage) ReorgStatus(ctx context.Context) (*ReorgStatus, error) {
	b, err := os.ReadFile(filepath.Join(l.Path, "reorgStatus.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	rs, err := unmarshalJSON[ReorgStatus](b)
	if err != nil {
		return nil, err
	}
	return &rs, nil
}

func trimWhitespace(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && isSpace(b[start]) {
		start++
	}
	for end > start && isSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

var _ Syncer = (*LocalStorage)(nil)

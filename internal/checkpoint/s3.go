// Copyright 2026 Hyperlane Relayer Contributors

package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Client is the subset of *s3.Client this package calls, so tests can
// substitute a fake without standing up real AWS credentials.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Storage reads a validator's checkpoint bucket (spec.md §4.9's
// S3(bucket, prefix, region) variant).
type S3Storage struct {
	Client S3Client
	Bucket string
	Prefix string
	Region string
}

// NewS3Storage dials a real AWS S3 client using the default credential
// chain, matching pkg/ethereum/client.go's dial-once-reuse-forever
// construction style.
func NewS3Storage(ctx context.Context, bucket, prefix, region string) (*S3Storage, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("checkpoint: load aws config: %w", err)
	}
	return &S3Storage{
		Client: s3.NewFromConfig(cfg),
		Bucket: bucket,
		Prefix: prefix,
		Region: region,
	}, nil
}

func (s *S3Storage) key(name string) string {
	if s.Prefix == "" {
		return name
	}
	return strings.TrimSuffix(s.Prefix, "/") + "/" + name
}

func (s *S3Storage) getObject(ctx context.Context, name string) ([]byte, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound"
	}
	return false
}

func (s *S3Storage) LatestIndex(ctx context.Context) (*uint32, error) {
	b, err := s.getObject(ctx, "latestIndex.json")
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

func (s *S3Storage) FetchCheckpoint(ctx context.Context, index uint32) (*SignedCheckpoint, error) {
	b, err := s.getObject(ctx, fmt.Sprintf("checkpoint_%d_with_id.json", index))
	if err != nil || b == nil {
		return nil, err
	}
	var sc SignedCheckpoint
	if err := json.Unmarshal(b, &sc); err != nil {
		return nil, fmt.Errorf("checkpoint: parse checkpoint %d: %w", index, err)
	}
	return &sc, nil
}

func (s *S3Storage) AnnouncementLocation() string {
	return fmt.Sprintf("s3://%s/%s", s.Bucket, s.Prefix)
}

func (s *S3Storage) ReorgStatus(ctx context.Context) (*ReorgStatus, error) {
	b, err := s.getObject(ctx, "reorgStatus.json")
	if err != nil || b == nil {
		return nil, err
	}
	rs, err := unmarshalJSON[ReorgStatus](b)
	if err != nil {
		return nil, err
	}
	return &rs, nil
}

var _ Syncer = (*S3Storage)(nil)

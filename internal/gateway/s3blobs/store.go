// Package s3blobs stores receipt files in an S3 bucket and hands out
// presigned GET URLs.
package s3blobs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/GoSim-25-26J-441/obras/internal/gateway"
)

const maxPresignTTL = 7 * 24 * time.Hour

type putAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type Store struct {
	client  putAPI
	presign presignAPI
	bucket  string
	ttl     time.Duration
}

func New(client putAPI, presign presignAPI, bucket string, ttl time.Duration) *Store {
	if ttl <= 0 || ttl > maxPresignTTL {
		ttl = maxPresignTTL
	}
	return &Store{client: client, presign: presign, bucket: bucket, ttl: ttl}
}

// Open loads the default AWS configuration chain for region.
func Open(ctx context.Context, region, bucket string, ttl time.Duration) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return New(client, s3.NewPresignClient(client), bucket, ttl), nil
}

func (s *Store) Put(ctx context.Context, key string, blob gateway.Blob) (gateway.Location, error) {
	// The SDK needs a seekable body to sign the payload.
	body, ok := blob.Content.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(blob.Content)
		if err != nil {
			return "", fmt.Errorf("read upload %s: %w", key, err)
		}
		body = bytes.NewReader(data)
	}

	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if blob.ContentType != "" {
		in.ContentType = aws.String(blob.ContentType)
	}
	if blob.Size > 0 {
		in.ContentLength = aws.Int64(blob.Size)
	}

	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return gateway.Location(key), nil
}

func (s *Store) URL(ctx context.Context, loc gateway.Location) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(string(loc)),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", loc, err)
	}
	return req.URL, nil
}

var _ gateway.BlobStore = (*Store)(nil)

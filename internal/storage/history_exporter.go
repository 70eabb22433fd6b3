// Package storage exports archived tournaments to an S3-compatible bucket
// (AWS S3, Cloudflare R2, MinIO).
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/AdamBeresnev/bracket-mesh/internal/bracket"
	"github.com/AdamBeresnev/bracket-mesh/internal/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectPutter is the slice of the S3 client the exporter needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type HistoryExporter struct {
	client ObjectPutter
	bucket string
	prefix string
}

func NewHistoryExporter(client ObjectPutter, bucket, prefix string) *HistoryExporter {
	return &HistoryExporter{client: client, bucket: bucket, prefix: prefix}
}

// NewS3HistoryExporter builds an exporter from node config. A custom endpoint
// switches to path-style addressing, which R2 and MinIO expect.
func NewS3HistoryExporter(ctx context.Context, cfg config.S3Config) (*HistoryExporter, error) {
	if !cfg.Enabled() {
		return nil, errors.New("s3 export: bucket is not configured")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	sdkCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}

	client := s3.NewFromConfig(sdkCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewHistoryExporter(client, cfg.Bucket, cfg.Prefix), nil
}

// Key is the object key an entry of roomID is written under.
func (e *HistoryExporter) Key(roomID string, entry bracket.HistoryEntry) string {
	return e.prefix + path.Join(roomID, entry.ID+".json")
}

// Export uploads entry as JSON and returns its key.
func (e *HistoryExporter) Export(ctx context.Context, roomID string, entry bracket.HistoryEntry) (string, error) {
	body, err := json.Marshal(entry)
	if err != nil {
		return "", err
	}
	key := e.Key(roomID, entry)
	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload history entry (key: %s): %w", key, err)
	}
	return key, nil
}

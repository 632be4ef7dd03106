package notify

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// objectPutter is the subset of *s3.Client the sink needs.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ReceiptSink archives a gzipped JSON receipt of every confirmed order in S3.
// Other event types are ignored.
type ReceiptSink struct {
	client objectPutter
	bucket string
	prefix string
	logger zerolog.Logger
}

// NewReceiptSink creates an S3-backed receipt archive.
func NewReceiptSink(ctx context.Context, bucket, region, prefix string, logger zerolog.Logger) (*ReceiptSink, error) {
	logger = logger.With().Str("component", "s3-receipt-sink").Logger()

	// Load AWS configuration
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		logger.Error().Err(err).Msg("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	logger.Info().
		Str("bucket", bucket).
		Str("region", region).
		Msg("S3 receipt sink initialised")

	return newReceiptSink(s3.NewFromConfig(cfg), bucket, prefix, logger), nil
}

func newReceiptSink(client objectPutter, bucket, prefix string, logger zerolog.Logger) *ReceiptSink {
	return &ReceiptSink{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger,
	}
}

// Name implements Sink.
func (s *ReceiptSink) Name() string { return "s3-receipts" }

// receiptKey is {prefix}{YYYY}/{MM}/{order number}.json.gz.
func (s *ReceiptSink) receiptKey(e Event) string {
	created := e.Order.CreatedAt
	return s.prefix + path.Join(created.Format("2006"), created.Format("01"), e.Order.OrderNumber+".json.gz")
}

// Deliver implements Sink.
func (s *ReceiptSink) Deliver(ctx context.Context, e Event) error {
	if e.Type != EventOrderConfirmed {
		return nil
	}

	body, err := gzipJSON(e)
	if err != nil {
		return backoff.Permanent(err)
	}

	key := s.receiptKey(e)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(body),
		ContentType:     aws.String("application/json"),
		ContentEncoding: aws.String("gzip"),
	})
	if err != nil {
		return fmt.Errorf("failed to put receipt to S3 (bucket=%s, key=%s): %w", s.bucket, key, err)
	}

	s.logger.Debug().
		Str("bucket", s.bucket).
		Str("key", key).
		Int("bytes", len(body)).
		Msg("receipt archived")

	return nil
}

func gzipJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode receipt: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress receipt: %w", err)
	}
	return buf.Bytes(), nil
}

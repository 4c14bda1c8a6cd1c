package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Phannhothinh/chatbot-op/internal/utils"
)

// putObjectAPI is the subset of the S3 client used by the writer
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Writer handles writing batches of audit records to S3
type S3Writer struct {
	client  putObjectAPI
	bucket  string
	prefix  string
	podName string
	logger  *utils.Logger
	now     func() time.Time
}

// NewS3Writer creates a new S3 writer. A non-empty endpoint switches the
// client to path-style addressing for S3-compatible stores such as MinIO.
// Static keys, when set, take precedence over the default credential chain.
func NewS3Writer(ctx context.Context, cfg S3SinkConfig) (*S3Writer, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.S3Region)}
	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Writer(client, cfg.S3Bucket, cfg.S3Prefix, cfg.PodName), nil
}

func newS3Writer(client putObjectAPI, bucket, prefix, podName string) *S3Writer {
	return &S3Writer{
		client:  client,
		bucket:  bucket,
		prefix:  prefix,
		podName: podName,
		logger:  utils.NewLogger("s3-writer"),
		now:     time.Now,
	}
}

// objectKey builds the key for a batch written at t
// Format: audit/2025/11/30/chatserver-0-20251130-143022-123456789.jsonl
func (w *S3Writer) objectKey(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s%04d/%02d/%02d/%s-%s-%09d.jsonl",
		w.prefix,
		t.Year(),
		t.Month(),
		t.Day(),
		w.podName,
		t.Format("20060102-150405"),
		t.Nanosecond(),
	)
}

// WriteBatch writes a batch of records to S3 as a JSON Lines file
// Returns the S3 key where the data was written
func (w *S3Writer) WriteBatch(ctx context.Context, records []*AuditRecord) (string, error) {
	if len(records) == 0 {
		return "", nil
	}

	key := w.objectKey(w.now())

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			w.logger.Error("Failed to encode record", "error", err)
			continue
		}
	}

	_, err := w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	w.logger.Info("Wrote batch to S3", "key", key, "count", len(records), "bytes", buf.Len())
	return key, nil
}

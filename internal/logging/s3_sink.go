package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Phannhothinh/chatbot-op/internal/queue"
	"github.com/Phannhothinh/chatbot-op/internal/utils"
)

// S3SinkConfig holds settings for the S3 audit sink
type S3SinkConfig struct {
	Enabled       bool
	BufferSize    int
	FlushSize     int
	FlushInterval time.Duration
	S3Bucket      string
	S3Region      string
	S3Prefix      string
	S3Endpoint    string
	S3AccessKey   string
	S3SecretKey   string
	PodName       string
}

// batchWriter persists one batch of records
type batchWriter interface {
	WriteBatch(ctx context.Context, records []*AuditRecord) (string, error)
}

// S3Sink buffers audit records in a queue and writes them to S3 in batches.
// A batch is written when FlushSize records are pending or FlushInterval
// has passed since the last write, and once more on Shutdown.
type S3Sink struct {
	queue         queue.Queue
	writer        batchWriter
	flushSize     int
	flushInterval time.Duration
	logger        *utils.Logger

	stopOnce    sync.Once
	stopChan    chan struct{}
	stoppedChan chan struct{}
	wg          sync.WaitGroup
}

// NewS3Sink creates the sink and starts its background writer.
// When q is nil an in-memory queue of BufferSize records is used.
func NewS3Sink(ctx context.Context, cfg S3SinkConfig, q queue.Queue) (*S3Sink, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}

	writer, err := NewS3Writer(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return newS3Sink(cfg, q, writer), nil
}

func newS3Sink(cfg S3SinkConfig, q queue.Queue, writer batchWriter) *S3Sink {
	if cfg.FlushSize <= 0 {
		cfg.FlushSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Minute
	}
	if q == nil {
		qc := queue.DefaultConfig("audit")
		qc.BatchSize = cfg.FlushSize
		qc.BatchTimeout = cfg.FlushInterval
		qc.Capacity = cfg.BufferSize
		q = queue.NewMemoryQueue(qc)
	}

	sink := &S3Sink{
		queue:         q,
		writer:        writer,
		flushSize:     cfg.FlushSize,
		flushInterval: cfg.FlushInterval,
		logger:        utils.NewLogger("audit-sink"),
		stopChan:      make(chan struct{}),
		stoppedChan:   make(chan struct{}),
	}

	sink.wg.Add(1)
	go sink.run(context.Background())

	return sink
}

// Enqueue adds a record to the buffer without waiting for the write
func (s *S3Sink) Enqueue(rec *AuditRecord) error {
	if rec == nil {
		return nil
	}

	select {
	case <-s.stopChan:
		return queue.ErrQueueClosed
	default:
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := s.queue.Enqueue(ctx, rec); err != nil {
		return fmt.Errorf("failed to buffer audit record: %w", err)
	}
	return nil
}

// Shutdown stops the background writer after flushing pending records
func (s *S3Sink) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})

	select {
	case <-s.stoppedChan:
		return s.queue.Close()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pollInterval bounds how long one dequeue may block
func (s *S3Sink) pollInterval() time.Duration {
	if s.flushInterval < time.Second {
		return s.flushInterval
	}
	return time.Second
}

func (s *S3Sink) run(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.stoppedChan)

	batch := make([]*AuditRecord, 0, s.flushSize)
	lastFlush := time.Now()

	for {
		select {
		case <-s.stopChan:
			s.drain(ctx, batch)
			return
		default:
		}

		items, err := s.queue.DequeueWithTimeout(ctx, s.flushSize-len(batch), s.pollInterval())
		if err != nil {
			s.logger.Error("Failed to dequeue audit records", "error", err)
			time.Sleep(s.pollInterval())
		}
		batch = append(batch, decodeRecords(items, s.logger)...)

		if len(batch) >= s.flushSize || (len(batch) > 0 && time.Since(lastFlush) >= s.flushInterval) {
			s.flush(ctx, batch)
			batch = make([]*AuditRecord, 0, s.flushSize)
			lastFlush = time.Now()
		}
	}
}

// drain writes everything still queued
func (s *S3Sink) drain(ctx context.Context, batch []*AuditRecord) {
	for {
		n, err := s.queue.Length(ctx)
		if err != nil || n == 0 {
			break
		}
		items, err := s.queue.DequeueWithTimeout(ctx, s.flushSize, 10*time.Millisecond)
		if err != nil || len(items) == 0 {
			break
		}
		batch = append(batch, decodeRecords(items, s.logger)...)
		if len(batch) >= s.flushSize {
			s.flush(ctx, batch)
			batch = make([]*AuditRecord, 0, s.flushSize)
		}
	}
	s.flush(ctx, batch)
}

func (s *S3Sink) flush(ctx context.Context, batch []*AuditRecord) {
	if len(batch) == 0 {
		return
	}
	if _, err := s.writer.WriteBatch(ctx, batch); err != nil {
		s.logger.Error("Failed to write audit batch", "count", len(batch), "error", err)
	}
}

// decodeRecords accepts records from either queue backend
func decodeRecords(items []interface{}, logger *utils.Logger) []*AuditRecord {
	out := make([]*AuditRecord, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case *AuditRecord:
			out = append(out, v)
		case AuditRecord:
			out = append(out, &v)
		case json.RawMessage:
			var rec AuditRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				logger.Warn("Dropping malformed audit record", "error", err)
				continue
			}
			out = append(out, &rec)
		default:
			logger.Warn("Dropping unexpected queue item", "type", fmt.Sprintf("%T", item))
		}
	}
	return out
}

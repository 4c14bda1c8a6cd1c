package logging

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Phannhothinh/chatbot-op/internal/queue"
	"github.com/Phannhothinh/chatbot-op/internal/utils"
)

// NewTestLogger creates a logger for testing
func NewTestLogger() *utils.Logger {
	return utils.NewLogger("test")
}

func rawRecord(s string) json.RawMessage {
	return json.RawMessage(s)
}

type fakeBatchWriter struct {
	mu      sync.Mutex
	batches [][]*AuditRecord
}

func (w *fakeBatchWriter) WriteBatch(ctx context.Context, records []*AuditRecord) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.batches = append(w.batches, records)
	return "key", nil
}

func (w *fakeBatchWriter) total() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, b := range w.batches {
		n += len(b)
	}
	return n
}

func (w *fakeBatchWriter) batchCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.batches)
}

type fakePutObject struct {
	input *s3.PutObjectInput
	body  string
	err   error
}

func (f *fakePutObject) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = params
	data, _ := io.ReadAll(params.Body)
	f.body = string(data)
	return &s3.PutObjectOutput{}, nil
}

func testRecord(i int) *AuditRecord {
	return &AuditRecord{
		Timestamp: time.Now().UTC(),
		RequestID: "req-" + string(rune('a'+i)),
		UserHash:  "hash",
		Provider:  "openai",
		Model:     "gpt-4",
		Outcome:   OutcomeReply,
	}
}

func TestNoopSink(t *testing.T) {
	sink := NewNoopSink()

	assert.NoError(t, sink.Enqueue(testRecord(0)))
	assert.NoError(t, sink.Shutdown(context.Background()))
}

func TestS3Sink_FlushOnSize(t *testing.T) {
	writer := &fakeBatchWriter{}
	sink := newS3Sink(S3SinkConfig{
		BufferSize:    100,
		FlushSize:     5,
		FlushInterval: time.Hour,
	}, nil, writer)

	for i := 0; i < 5; i++ {
		require.NoError(t, sink.Enqueue(testRecord(i)))
	}

	assert.Eventually(t, func() bool { return writer.total() == 5 }, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, 1, writer.batchCount())

	require.NoError(t, sink.Shutdown(context.Background()))
}

func TestS3Sink_FlushOnInterval(t *testing.T) {
	writer := &fakeBatchWriter{}
	sink := newS3Sink(S3SinkConfig{
		FlushSize:     100,
		FlushInterval: 100 * time.Millisecond,
	}, nil, writer)
	defer sink.Shutdown(context.Background())

	require.NoError(t, sink.Enqueue(testRecord(0)))
	require.NoError(t, sink.Enqueue(testRecord(1)))

	assert.Eventually(t, func() bool { return writer.total() == 2 }, 3*time.Second, 20*time.Millisecond)
}

func TestS3Sink_ShutdownFlushesRemaining(t *testing.T) {
	writer := &fakeBatchWriter{}
	sink := newS3Sink(S3SinkConfig{
		FlushSize:     100,
		FlushInterval: time.Hour,
	}, nil, writer)

	for i := 0; i < 3; i++ {
		require.NoError(t, sink.Enqueue(testRecord(i)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sink.Shutdown(ctx))

	assert.Equal(t, 3, writer.total())
	assert.ErrorIs(t, sink.Enqueue(testRecord(9)), queue.ErrQueueClosed)

	// Shutdown is idempotent
	assert.NoError(t, sink.Shutdown(ctx))
}

func TestS3Sink_RedisQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	q, err := queue.NewRedisQueue(client, queue.DefaultConfig("audit-test"))
	require.NoError(t, err)

	writer := &fakeBatchWriter{}
	sink := newS3Sink(S3SinkConfig{
		FlushSize:     2,
		FlushInterval: time.Hour,
	}, q, writer)

	require.NoError(t, sink.Enqueue(testRecord(0)))
	require.NoError(t, sink.Enqueue(testRecord(1)))

	assert.Eventually(t, func() bool { return writer.total() == 2 }, 5*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sink.Shutdown(ctx))

	writer.mu.Lock()
	defer writer.mu.Unlock()
	assert.Equal(t, "openai", writer.batches[0][0].Provider)
	assert.Equal(t, OutcomeReply, writer.batches[0][0].Outcome)
}

func TestNewS3Sink_RequiresBucket(t *testing.T) {
	_, err := NewS3Sink(context.Background(), S3SinkConfig{Enabled: true}, nil)
	assert.Error(t, err)
}

func TestS3Writer_WriteBatch(t *testing.T) {
	fake := &fakePutObject{}
	w := newS3Writer(fake, "audit-bucket", "audit/", "chatserver-0")
	w.now = func() time.Time { return time.Date(2025, 11, 30, 14, 30, 22, 123, time.UTC) }

	key, err := w.WriteBatch(context.Background(), []*AuditRecord{testRecord(0), testRecord(1)})
	require.NoError(t, err)

	assert.Equal(t, "audit/2025/11/30/chatserver-0-20251130-143022-000000123.jsonl", key)
	require.NotNil(t, fake.input)
	assert.Equal(t, "audit-bucket", *fake.input.Bucket)
	assert.Equal(t, "application/x-ndjson", *fake.input.ContentType)

	lines := strings.Split(strings.TrimSpace(fake.body), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"provider":"openai"`)
}

func TestS3Writer_EmptyAndError(t *testing.T) {
	fake := &fakePutObject{err: errors.New("access denied")}
	w := newS3Writer(fake, "b", "p/", "pod")

	key, err := w.WriteBatch(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, key)

	_, err = w.WriteBatch(context.Background(), []*AuditRecord{testRecord(0)})
	assert.ErrorContains(t, err, "access denied")
}

func TestDecodeRecords(t *testing.T) {
	logger := NewTestLogger()
	items := []interface{}{
		testRecord(0),
		*testRecord(1),
		[]byte("ignored"),
	}
	items = append(items, rawRecord(`{"request_id":"r-9","outcome":"empty_reply"}`), rawRecord(`not json`))

	got := decodeRecords(items, logger)
	require.Len(t, got, 3)
	assert.Equal(t, "r-9", got[2].RequestID)
	assert.Equal(t, OutcomeEmptyReply, got[2].Outcome)
}

package httpapi

import (
	"context"
	"fmt"

	"github.com/Phannhothinh/chatbot-op/internal/config"
	"github.com/Phannhothinh/chatbot-op/internal/logging"
	"github.com/Phannhothinh/chatbot-op/internal/queue"
	"github.com/Phannhothinh/chatbot-op/internal/storage"
)

const auditQueueName = "chat:audit"

// newAuditSink builds the dispatch audit sink. Records are buffered in a Redis
// list when Redis is available so that a restart does not lose them.
func newAuditSink(ctx context.Context, cfg config.AuditSinkConfig, redisClient *storage.RedisClient) (logging.Sink, error) {
	if !cfg.Enabled {
		return logging.NewNoopSink(), nil
	}

	queueCfg := queue.DefaultConfig(auditQueueName)
	queueCfg.BatchSize = cfg.FlushSize
	queueCfg.Capacity = cfg.BufferSize

	var q queue.Queue
	if redisClient != nil {
		redisQueue, err := queue.NewRedisQueue(redisClient.Client(), queueCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create audit queue: %w", err)
		}
		q = redisQueue
	} else {
		q = queue.NewMemoryQueue(queueCfg)
	}

	sink, err := logging.NewS3Sink(ctx, logging.S3SinkConfig{
		Enabled:       cfg.Enabled,
		BufferSize:    cfg.BufferSize,
		FlushSize:     cfg.FlushSize,
		FlushInterval: cfg.FlushInterval,
		S3Bucket:      cfg.S3Bucket,
		S3Region:      cfg.S3Region,
		S3Prefix:      cfg.S3Prefix,
		S3Endpoint:    cfg.S3Endpoint,
		S3AccessKey:   cfg.S3AccessKey,
		S3SecretKey:   cfg.S3SecretKey,
		PodName:       cfg.PodName,
	}, q)
	if err != nil {
		q.Close()
		return nil, fmt.Errorf("failed to create audit sink: %w", err)
	}
	return sink, nil
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/sessionforge/internal/log"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	streamKey    = "ai_jobs"
	consumerGroup = "workers"

	// claimInterval is how often a Consume loop attempts to reclaim tasks
	// left pending by a consumer that died mid-task.
	claimInterval = time.Minute
)

// RedisQueue implements Queue over a single Redis Stream + consumer group.
type RedisQueue struct {
	client             *redis.Client
	visibilityTimeout time.Duration
}

// NewRedisQueue constructs a RedisQueue and ensures the consumer group
// exists (MKSTREAM so the first Enqueue/Consume doesn't race group creation).
func NewRedisQueue(ctx context.Context, addr string, visibilityTimeout time.Duration) (*RedisQueue, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("queue: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("queue: redis connection failed: %w", err)
	}

	if visibilityTimeout <= 0 {
		visibilityTimeout = 30 * time.Minute // matches the pipeline task's hard time limit
	}

	err = client.XGroupCreateMkStream(ctx, streamKey, consumerGroup, "0").Err()
	if err != nil && !errors.Is(err, redis.Nil) && !isBusyGroupErr(err) {
		return nil, fmt.Errorf("queue: create consumer group: %w", err)
	}

	return &RedisQueue{client: client, visibilityTimeout: visibilityTimeout}, nil
}

func isBusyGroupErr(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}

// Enqueue appends a task entry to the stream.
func (q *RedisQueue) Enqueue(ctx context.Context, task Task) error {
	err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey,
		Values: map[string]any{"session_id": task.SessionID, "job_id": task.JobID},
	}).Err()
	if err != nil {
		return fmt.Errorf("queue: enqueue: %w", err)
	}
	return nil
}

// Consume reads new entries for consumerName via XReadGroup, acking each
// after handler returns nil, and periodically reclaims entries pending
// past visibilityTimeout (a consumer that died without acking).
func (q *RedisQueue) Consume(ctx context.Context, consumerName string, handler Handler) error {
	logger := log.WithComponent("queue")
	claimTicker := time.NewTicker(claimInterval)
	defer claimTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-claimTicker.C:
			q.reclaimStale(ctx, consumerName, handler)
		default:
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    consumerGroup,
			Consumer: consumerName,
			Streams:  []string{streamKey, ">"},
			Count:    1,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn().Err(err).Msg("queue: read group failed, retrying")
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				q.handleAndAck(ctx, msg, handler, logger)
			}
		}
	}
}

func (q *RedisQueue) handleAndAck(ctx context.Context, msg redis.XMessage, handler Handler, logger zerolog.Logger) {
	task := taskFromValues(msg.Values)
	if err := handler(ctx, task); err != nil {
		logger.Warn().Err(err).Str("job_id", task.JobID).Str("session_id", task.SessionID).Msg("task handler failed, leaving unacked for reclaim")
		return
	}
	if err := q.client.XAck(ctx, streamKey, consumerGroup, msg.ID).Err(); err != nil {
		logger.Warn().Err(err).Str("message_id", msg.ID).Msg("queue: ack failed")
	}
}

// reclaimStale claims entries idle past visibilityTimeout and redelivers
// them inline to handler under this consumer's name.
func (q *RedisQueue) reclaimStale(ctx context.Context, consumerName string, handler Handler) {
	logger := log.WithComponent("queue")
	msgs, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   streamKey,
		Group:    consumerGroup,
		Consumer: consumerName,
		MinIdle:  q.visibilityTimeout,
		Start:    "0",
		Count:    10,
	}).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn().Err(err).Msg("queue: autoclaim failed")
		}
		return
	}
	for _, msg := range msgs {
		logger.Warn().Str("message_id", msg.ID).Msg("queue: reclaimed stale task")
		q.handleAndAck(ctx, msg, handler, logger)
	}
}

func taskFromValues(values map[string]any) Task {
	t := Task{}
	if v, ok := values["session_id"].(string); ok {
		t.SessionID = v
	}
	if v, ok := values["job_id"].(string); ok {
		t.JobID = v
	}
	return t
}

// Ping reports broker reachability, wired into the health surface.
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close releases the underlying Redis client.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

var _ Queue = (*RedisQueue)(nil)

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package queue is the at-least-once job broker standing in for the
// out-of-scope external broker: a Redis Streams consumer group carrying
// one {session_id, job_id} task per finalized session.
package queue

import "context"

// Task is one enqueued unit of pipeline work.
type Task struct {
	SessionID string
	JobID     string
}

// Handler processes one Task. A returned error leaves the task unacked so
// it is eventually reclaimed and redelivered to another consumer.
type Handler func(ctx context.Context, task Task) error

// Queue is the job-broker abstraction the pipeline orchestrator consumes
// from and the session service publishes to.
type Queue interface {
	// Enqueue publishes task for delivery to some consumer in the group.
	Enqueue(ctx context.Context, task Task) error

	// Consume blocks, reading tasks for consumerName and invoking handler
	// for each, until ctx is canceled. It also periodically reclaims tasks
	// left pending past visibilityTimeout by dead consumers.
	Consume(ctx context.Context, consumerName string, handler Handler) error
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package pipeline implements the AI enrichment pipeline orchestrator
// (C7): stage A (transcribe), stage B (describe images), stage C
// (summarize + embed + title), composed into a linear chain over a bounded
// worker pool consuming the job queue.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ManuGH/sessionforge/internal/domain/model"
	"github.com/ManuGH/sessionforge/internal/domain/provider"
	"github.com/ManuGH/sessionforge/internal/domain/vectorindex"
	"github.com/ManuGH/sessionforge/internal/log"
	"github.com/ManuGH/sessionforge/internal/metrics"
	"github.com/ManuGH/sessionforge/internal/notify"
	"github.com/ManuGH/sessionforge/internal/objectstore"
	"github.com/ManuGH/sessionforge/internal/queue"
	"github.com/ManuGH/sessionforge/internal/store"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// stageContext is the value threaded through the three stages, kept
// deliberately small so a failure in one stage never needs the others'
// internal state.
type stageContext struct {
	SessionID string
	JobID     string
	Language  *string
}

const (
	// workerRecycleLimit bounds memory accumulation from provider SDK
	// caches and large byte buffers by restarting a worker's consume loop
	// after this many tasks.
	workerRecycleLimit = 50

	defaultWorkerCount = 4
	defaultHardTimeout = 30 * time.Minute
	defaultSoftTimeout = 25 * time.Minute
)

// Config configures an Orchestrator.
type Config struct {
	WorkerCount int
	HardTimeout time.Duration
	SoftTimeout time.Duration

	EmbeddingsEnabled     bool
	EmbeddingProviderName string
}

// Orchestrator runs the worker tier: a bounded pool of goroutines consuming
// the job queue, each driving one session's three-stage pipeline to
// completion or failure.
type Orchestrator struct {
	sessions   store.Sessions
	jobs       store.Jobs
	media      store.Media
	principals store.Principals

	gateway *objectstore.Gateway
	router  *provider.Router
	index   vectorindex.Index
	queue   queue.Queue
	notifier notify.Sink

	embeddingsEnabled     bool
	embeddingProviderName string

	workerCount int
	hardTimeout time.Duration
	softTimeout time.Duration
}

// New constructs an Orchestrator.
func New(
	backend store.Backend,
	gateway *objectstore.Gateway,
	router *provider.Router,
	index vectorindex.Index,
	q queue.Queue,
	notifier notify.Sink,
	cfg Config,
) *Orchestrator {
	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = defaultWorkerCount
	}
	hardTimeout := cfg.HardTimeout
	if hardTimeout <= 0 {
		hardTimeout = defaultHardTimeout
	}
	softTimeout := cfg.SoftTimeout
	if softTimeout <= 0 {
		softTimeout = defaultSoftTimeout
	}

	return &Orchestrator{
		sessions:              backend.Sessions(),
		jobs:                  backend.Jobs(),
		media:                 backend.Media(),
		principals:            backend.Principals(),
		gateway:               gateway,
		router:                router,
		index:                 index,
		queue:                 q,
		notifier:              notifier,
		embeddingsEnabled:     cfg.EmbeddingsEnabled,
		embeddingProviderName: cfg.EmbeddingProviderName,
		workerCount:           workerCount,
		hardTimeout:           hardTimeout,
		softTimeout:           softTimeout,
	}
}

// Run starts the worker pool and blocks until ctx is canceled or a worker
// returns a non-recoverable error. Each worker consumes from the queue
// under its own consumer name and recycles its consume loop every
// workerRecycleLimit tasks.
func (o *Orchestrator) Run(ctx context.Context) error {
	host, _ := os.Hostname()
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < o.workerCount; i++ {
		consumerName := fmt.Sprintf("%s-worker-%d", host, i)
		g.Go(func() error {
			return o.runWorkerLoop(ctx, consumerName)
		})
	}

	return g.Wait()
}

// runWorkerLoop repeatedly consumes tasks under name, recycling (restarting
// the consume loop under a fresh sub-context) after workerRecycleLimit
// tasks, until ctx is canceled.
func (o *Orchestrator) runWorkerLoop(ctx context.Context, name string) error {
	logger := log.WithComponent("pipeline")
	for {
		recycled, err := o.consumeUntilRecycle(ctx, name)
		if err != nil {
			return fmt.Errorf("pipeline: worker %q: %w", name, err)
		}
		if !recycled {
			return nil
		}
		logger.Info().Str("worker", name).Msg("worker recycled after task limit")
	}
}

// consumeUntilRecycle runs one generation of the consume loop, bounded to
// workerRecycleLimit tasks, reporting whether it stopped because of the
// recycle limit (true) or because the parent context was canceled (false).
func (o *Orchestrator) consumeUntilRecycle(ctx context.Context, name string) (recycled bool, err error) {
	count := 0
	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	handler := func(hctx context.Context, t queue.Task) error {
		procErr := o.processTask(hctx, t)
		count++
		if count >= workerRecycleLimit {
			cancel()
		}
		return procErr
	}

	err = o.queue.Consume(genCtx, name, handler)
	if ctx.Err() != nil {
		return false, nil
	}
	if errors.Is(err, context.Canceled) {
		return true, nil
	}
	return false, err
}

// processTask runs one session's pipeline chain under the task's hard time
// limit, logging a warning if the soft limit is crossed first. Stage
// failures that are fatal (DB commit failure, provider misconfiguration at
// stage entry) mark the job and session failed; per-item failures inside a
// stage are handled by the stage itself and never reach here.
func (o *Orchestrator) processTask(ctx context.Context, t queue.Task) error {
	hardCtx, cancel := context.WithTimeout(ctx, o.hardTimeout)
	defer cancel()

	logger := log.WithComponent("pipeline").With().Str("job_id", t.JobID).Str("session_id", t.SessionID).Logger()
	logger.Info().Str("event", "ai_job_started").Msg("pipeline run started")
	start := time.Now()

	softTimer := time.AfterFunc(o.softTimeout, func() {
		logger.Warn().Msg("pipeline task exceeded soft time limit")
	})
	defer softTimer.Stop()

	sess, err := o.sessions.GetForWorker(hardCtx, t.SessionID)
	if err != nil {
		return o.failJob(hardCtx, t, start, err)
	}

	taskCtx := stageContext{SessionID: t.SessionID, JobID: t.JobID, Language: sess.CaptureLanguage}

	if err := o.runTranscribeStage(hardCtx, taskCtx); err != nil {
		return o.failJob(hardCtx, t, start, err)
	}
	if err := o.runDescribeImagesStage(hardCtx, taskCtx); err != nil {
		return o.failJob(hardCtx, t, start, err)
	}
	if err := o.runSummarizeStage(hardCtx, taskCtx); err != nil {
		return o.failJob(hardCtx, t, start, err)
	}

	metrics.RecordAIJob("session_enrichment", "completed", time.Since(start).Seconds())
	return nil
}

// failJob marks the job and session failed. It uses a background context
// for the state writes themselves: the caller's context may already be
// past its hard deadline, and the failure transition must still land.
func (o *Orchestrator) failJob(ctx context.Context, t queue.Task, start time.Time, cause error) error {
	logger := log.WithComponent("pipeline").With().Str("job_id", t.JobID).Str("session_id", t.SessionID).Logger()
	logger.Error().Err(cause).Str("event", "ai_job_failed").Msg("pipeline task failed")
	metrics.RecordAIJob("session_enrichment", "failed", time.Since(start).Seconds())

	writeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := o.jobs.MarkFailed(writeCtx, t.JobID); err != nil {
		logger.Error().Err(err).Msg("failed to mark job failed")
	}
	now := time.Now()
	for _, from := range []model.SessionStatus{model.SessionPendingProcessing, model.SessionProcessing} {
		if ok, err := o.sessions.TransitionStatus(writeCtx, t.SessionID, from, model.SessionFailed, nil, &now); err == nil && ok {
			break
		}
	}
	return cause
}

// Reprocess re-enqueues a session whose previous AIJob completed or failed:
// a fresh AIJob with credits_used = 0 is created, the session is reset to
// pending_processing, and the task is re-published to the queue. Embeddings
// from the previous run are not deduplicated.
func Reprocess(ctx context.Context, sessions store.Sessions, jobs store.Jobs, q queue.Queue, sessionID, ownerID string) (*model.AIJob, error) {
	sess, err := sessions.Get(ctx, sessionID, ownerID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	ok, err := sessions.TransitionStatus(ctx, sessionID, sess.Status, model.SessionPendingProcessing, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("pipeline: reprocess transition: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("pipeline: reprocess: session %q changed state concurrently", sessionID)
	}

	job := &model.AIJob{
		ID:          uuid.NewString(),
		PrincipalID: ownerID,
		SessionID:   sessionID,
		Type:        "session_enrichment",
		CreditsUsed: 0,
		Status:      model.AIJobPending,
		CreatedAt:   now,
	}
	if err := jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("pipeline: reprocess create job: %w", err)
	}
	if err := q.Enqueue(ctx, queue.Task{SessionID: sessionID, JobID: job.ID}); err != nil {
		return nil, fmt.Errorf("pipeline: reprocess enqueue: %w", err)
	}
	return job, nil
}

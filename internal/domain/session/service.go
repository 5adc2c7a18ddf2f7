// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package session implements the session aggregate (C4): create,
// append_block, finalize, get, delete, exactly as contracted in §4.1.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuGH/sessionforge/internal/apperrors"
	"github.com/ManuGH/sessionforge/internal/domain/credit"
	"github.com/ManuGH/sessionforge/internal/domain/media"
	"github.com/ManuGH/sessionforge/internal/domain/model"
	"github.com/ManuGH/sessionforge/internal/domain/session/lifecycle"
	"github.com/ManuGH/sessionforge/internal/log"
	"github.com/ManuGH/sessionforge/internal/metrics"
	"github.com/ManuGH/sessionforge/internal/queue"
	"github.com/ManuGH/sessionforge/internal/store"
	"github.com/google/uuid"
)

// Service implements the session aggregate's operations.
type Service struct {
	sessions store.Sessions
	jobs     store.Jobs
	ledger   *credit.Ledger
	media    *media.Registry
	queue    queue.Queue
}

// New constructs a Service. queue may be nil in tests that don't exercise
// the finalize-with-AI path end to end.
func New(sessions store.Sessions, jobs store.Jobs, ledger *credit.Ledger, mediaRegistry *media.Registry, q queue.Queue) *Service {
	return &Service{sessions: sessions, jobs: jobs, ledger: ledger, media: mediaRegistry, queue: q}
}

// Create allocates a new open session for owner.
func (s *Service) Create(ctx context.Context, ownerID string, sessionType model.SessionType, language *string) (*model.Session, error) {
	now := time.Now()
	sess := &model.Session{
		ID:              uuid.NewString(),
		OwnerID:         ownerID,
		Type:            sessionType,
		Status:          model.SessionOpen,
		CreatedAt:       now,
		UpdatedAt:       now,
		CaptureLanguage: language,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("session: create: %w", err)
	}
	metrics.SessionsCreatedTotal.Inc()
	return sess, nil
}

// BlockSpec is the caller-supplied payload for AppendBlock.
type BlockSpec struct {
	Type        model.BlockType
	TextContent *string
	MediaRef    *string
	Metadata    map[string]any
}

// AppendBlock appends a block; fails with ErrNotFound if the session is
// missing or owned by someone else, ErrStateConflict if not open.
func (s *Service) AppendBlock(ctx context.Context, sessionID, ownerID string, spec BlockSpec) (*model.Block, error) {
	sess, err := s.sessions.Get(ctx, sessionID, ownerID)
	if err != nil {
		return nil, err
	}
	if sess.Status != model.SessionOpen {
		return nil, fmt.Errorf("%w: session %q is not open", apperrors.ErrStateConflict, sessionID)
	}

	b := &model.Block{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Type:        spec.Type,
		TextContent: spec.TextContent,
		MediaRef:    spec.MediaRef,
		Metadata:    spec.Metadata,
		CreatedAt:   time.Now(),
	}
	if err := s.sessions.AppendBlock(ctx, b); err != nil {
		return nil, fmt.Errorf("session: append block: %w", err)
	}
	return b, nil
}

// Finalize requires the session to be open with at least one block. It
// debits one credit (when withAI) and transitions accordingly; it never
// surfaces an insufficient-credits condition as an error — it downgrades
// to no_credits.
func (s *Service) Finalize(ctx context.Context, sessionID, ownerID string, withAI bool) (*model.Session, error) {
	sess, err := s.sessions.Get(ctx, sessionID, ownerID)
	if err != nil {
		return nil, err
	}
	if sess.Status != model.SessionOpen {
		return nil, fmt.Errorf("%w: session %q is not open", apperrors.ErrStateConflict, sessionID)
	}

	blocks, err := s.sessions.ListBlocks(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session: list blocks: %w", err)
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("%w: session %q has no blocks", apperrors.ErrStateConflict, sessionID)
	}

	target := model.SessionNoCredits
	ev := lifecycle.EventFinalizeNoCredit
	outcome := "no_credits"

	if withAI {
		ok, err := s.ledger.Debit(ctx, ownerID, credit.SessionProcessingCost)
		if err != nil {
			return nil, fmt.Errorf("session: debit credit: %w", err)
		}
		if ok {
			target = model.SessionPendingProcessing
			ev = lifecycle.EventFinalizeWithCredit
			outcome = "processing"
		}
	}

	if _, err := lifecycle.Dispatch(sess.Status, lifecycle.Event{Kind: ev, SessionID: sessionID}); err != nil {
		// Debit already applied on the credit path; refund before returning.
		if target == model.SessionPendingProcessing {
			_ = s.ledger.Refund(ctx, ownerID, credit.SessionProcessingCost)
		}
		return nil, err
	}

	now := time.Now()
	ok, err := s.sessions.TransitionStatus(ctx, sessionID, model.SessionOpen, target, &now, nil)
	if err != nil {
		if target == model.SessionPendingProcessing {
			_ = s.ledger.Refund(ctx, ownerID, credit.SessionProcessingCost)
		}
		return nil, fmt.Errorf("session: transition: %w", err)
	}
	if !ok {
		// Lost the race to a concurrent finalize; refund our debit.
		if target == model.SessionPendingProcessing {
			_ = s.ledger.Refund(ctx, ownerID, credit.SessionProcessingCost)
		}
		return nil, fmt.Errorf("%w: session %q is not open", apperrors.ErrStateConflict, sessionID)
	}

	if target == model.SessionPendingProcessing {
		jobID := uuid.NewString()
		if err := s.jobs.Create(ctx, &model.AIJob{
			ID:          jobID,
			PrincipalID: ownerID,
			SessionID:   sessionID,
			Type:        "session_enrichment",
			CreditsUsed: credit.SessionProcessingCost,
			Status:      model.AIJobPending,
			CreatedAt:   now,
		}); err != nil {
			return nil, fmt.Errorf("session: create ai job: %w", err)
		}
		if s.queue != nil {
			if err := s.queue.Enqueue(ctx, queue.Task{SessionID: sessionID, JobID: jobID}); err != nil {
				// The AIJob row is already committed; a delivery failure here
				// leaves it permanently pending rather than failing finalize
				// itself (finalize's own transaction already succeeded).
				_lg := log.WithComponent("session")
				_lg.Error().Err(err).Str("job_id", jobID).Str("session_id", sessionID).Msg("failed to enqueue pipeline task")
			}
		}
	}

	metrics.SessionsFinalizedTotal.WithLabelValues(outcome).Inc()
	_lg := log.WithComponent("session")
	_lg.Info().Str("event", "session_finalized").Str("session_id", sessionID).Str("outcome", outcome).Msg("session finalized")

	sess.Status = target
	sess.FinalizedAt = &now
	return sess, nil
}

// Get is an owner-scoped read.
func (s *Service) Get(ctx context.Context, sessionID, ownerID string) (*model.Session, error) {
	return s.sessions.Get(ctx, sessionID, ownerID)
}

// ListBlocks returns a session's blocks in creation order.
func (s *Service) ListBlocks(ctx context.Context, sessionID, ownerID string) ([]model.Block, error) {
	if _, err := s.sessions.Get(ctx, sessionID, ownerID); err != nil {
		return nil, err
	}
	return s.sessions.ListBlocks(ctx, sessionID)
}

// Delete cascades to blocks, AI jobs, embeddings, and media (including
// best-effort storage object deletion). Idempotent: re-deletion returns
// ErrNotFound.
func (s *Service) Delete(ctx context.Context, sessionID, ownerID string) error {
	if _, err := s.sessions.Get(ctx, sessionID, ownerID); err != nil {
		return err
	}
	if err := s.media.DeleteAllForSession(ctx, sessionID); err != nil {
		return fmt.Errorf("session: delete media: %w", err)
	}
	if err := s.sessions.Delete(ctx, sessionID, ownerID); err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}

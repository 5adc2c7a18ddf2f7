// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package store defines the repository interfaces the domain layer is
// built against. Two concrete backends satisfy them: internal/store/sqlite
// (the default, embedded) and internal/store/postgres (the production-shaped
// alternate, selected by DATABASE_URL scheme).
package store

import (
	"context"
	"time"

	"github.com/ManuGH/sessionforge/internal/domain/model"
)

// Principals persists Principal rows.
type Principals interface {
	GetByExternalSubject(ctx context.Context, subject string) (*model.Principal, error)
	GetByID(ctx context.Context, id string) (*model.Principal, error)
	Create(ctx context.Context, p *model.Principal) error
	SetPushToken(ctx context.Context, id, token string) error
	SetPreferredLanguage(ctx context.Context, id, lang string) error
	SetPaymentCustomerID(ctx context.Context, id, customerID string) error
}

// Sessions persists Session rows and their owned Blocks.
type Sessions interface {
	Create(ctx context.Context, s *model.Session) error
	Get(ctx context.Context, id, ownerID string) (*model.Session, error)
	// GetForWorker loads a session without an owner check, used by the
	// pipeline which runs outside of any one request's auth context.
	GetForWorker(ctx context.Context, id string) (*model.Session, error)

	// TransitionStatus performs the conditional update
	// `status = to WHERE id = ? AND status = from`, reporting whether the
	// row matched. This is the single serialization point guarding against
	// races between a delayed finalize/append and a concurrent mutation.
	// finalizedAt/processedAt are applied via COALESCE and may be nil.
	TransitionStatus(ctx context.Context, id string, from, to model.SessionStatus, finalizedAt, processedAt *time.Time) (bool, error)

	SetProcessedFields(ctx context.Context, id string, summary, title *string) error

	Delete(ctx context.Context, id, ownerID string) error

	// ListIDsByOwner returns every session id owned by ownerID, used to
	// scope semantic search to the caller's own sessions.
	ListIDsByOwner(ctx context.Context, ownerID string) ([]string, error)

	AppendBlock(ctx context.Context, b *model.Block) error
	ListBlocks(ctx context.Context, sessionID string) ([]model.Block, error)
	// AppendBlocks commits many blocks in one transaction (stage commits).
	AppendBlocks(ctx context.Context, blocks []model.Block) error
}

// Media persists MediaFile rows.
type Media interface {
	Create(ctx context.Context, m *model.MediaFile) error
	Get(ctx context.Context, id string) (*model.MediaFile, error)
	Commit(ctx context.Context, id string, size *int64) error
	ListBySessionAndKind(ctx context.Context, sessionID string, kind model.MediaKind, status model.MediaStatus) ([]model.MediaFile, error)
	Delete(ctx context.Context, id, sessionID string) error
	DeleteBySession(ctx context.Context, sessionID string) ([]model.MediaFile, error)
}

// Jobs persists AIJob rows.
type Jobs interface {
	Create(ctx context.Context, j *model.AIJob) error
	Get(ctx context.Context, id string) (*model.AIJob, error)
	GetActiveForSession(ctx context.Context, sessionID string) (*model.AIJob, error)
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
	CountByStatus(ctx context.Context) (map[model.AIJobStatus]int, error)
}

// Embeddings persists Embedding rows and serves nearest-neighbor queries.
// The query side is implemented per-backend in internal/domain/vectorindex;
// this interface only covers persistence, not similarity search.
type Embeddings interface {
	InsertBatch(ctx context.Context, embeddings []model.Embedding) error
	DeleteBySession(ctx context.Context, sessionID string) error
}

// Payments persists Payment rows.
type Payments interface {
	Create(ctx context.Context, p *model.Payment) error
	GetByCheckoutSessionID(ctx context.Context, id string) (*model.Payment, error)
	GetByPaymentIntentID(ctx context.Context, id string) (*model.Payment, error)
	MarkCompleted(ctx context.Context, id string) (alreadyCompleted bool, err error)
	MarkFailed(ctx context.Context, id string) error
}

// CreditLedger is the sole cross-request shared datum requiring strict
// consistency. See internal/domain/credit for the semantics contract.
type CreditLedger interface {
	Balance(ctx context.Context, ownerID string) (int, error)
	HasAtLeast(ctx context.Context, ownerID string, n int) (bool, error)
	Debit(ctx context.Context, ownerID string, n int) (bool, error)
	Credit(ctx context.Context, ownerID string, n int) error
}

// Backend bundles every repository plus lifecycle hooks. Constructors in
// internal/store/sqlite and internal/store/postgres return a Backend.
type Backend interface {
	Principals() Principals
	Sessions() Sessions
	Media() Media
	Jobs() Jobs
	Embeddings() Embeddings
	Payments() Payments
	Credits() CreditLedger
	Close() error
	Ping(ctx context.Context) error
}

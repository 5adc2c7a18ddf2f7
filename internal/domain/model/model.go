// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package model defines the entities shared across the service: the
// owning Principal, the Session aggregate and its Blocks, uploaded
// MediaFiles, AIJobs, Embeddings, and Payments.
package model

import "time"

// Principal is the authenticated identity of a caller.
type Principal struct {
	ID                 string // stable, internal
	ExternalSubject     string // opaque handle from the identity verifier
	Email              string // optional
	Credits            int
	PushToken          string // opaque, nullable
	PreferredLanguage  string // two-letter tag, e.g. "en" or "pt"
	PaymentCustomerID  string // optional, set once a payment has been made
	CreatedAt          time.Time
}

// SessionType is a free-form tag describing the capture modality.
type SessionType string

const (
	SessionTypeVoice SessionType = "voice"
	SessionTypeImage SessionType = "image"
	SessionTypeMixed SessionType = "mixed"
)

// SessionStatus is the session's lifecycle state.
type SessionStatus string

const (
	SessionOpen               SessionStatus = "open"
	SessionPendingProcessing  SessionStatus = "pending_processing"
	SessionProcessing         SessionStatus = "processing"
	SessionProcessed          SessionStatus = "processed"
	SessionNoCredits          SessionStatus = "no_credits"
	SessionFailed             SessionStatus = "failed"
)

// Session is a user-scoped container for a single capture event.
type Session struct {
	ID              string
	OwnerID         string
	Type            SessionType
	Status          SessionStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
	FinalizedAt     *time.Time
	ProcessedAt     *time.Time
	Summary         *string
	SuggestedTitle  *string
	CaptureLanguage *string
}

// BlockType discriminates the kind of content a Block carries.
type BlockType string

const (
	BlockText                 BlockType = "text"
	BlockVoice                BlockType = "voice" // legacy
	BlockImage                BlockType = "image"
	BlockMarker               BlockType = "marker"
	BlockTranscriptionBackend BlockType = "transcription_backend"
	BlockImageDescription     BlockType = "image_description"
)

// Block is a single content unit inside a session, ordered by CreatedAt.
type Block struct {
	ID          string
	SessionID   string
	Type        BlockType
	TextContent *string
	MediaRef    *string // logical media id or object key
	Metadata    map[string]any
	CreatedAt   time.Time
}

// MediaKind distinguishes the two upload modalities the system accepts.
type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaImage MediaKind = "image"
)

// MediaStatus tracks the presign/commit handshake.
type MediaStatus string

const (
	MediaPending  MediaStatus = "pending"
	MediaUploaded MediaStatus = "uploaded"
)

// MediaFile is metadata for a file held in the object store.
type MediaFile struct {
	ID          string
	SessionID   string
	Kind        MediaKind
	ObjectKey   string
	ContentType string
	SizeBytes   *int64
	Status      MediaStatus
	CreatedAt   time.Time
}

// AIJobStatus tracks one pipeline run for one session.
type AIJobStatus string

const (
	AIJobPending   AIJobStatus = "pending"
	AIJobCompleted AIJobStatus = "completed"
	AIJobFailed    AIJobStatus = "failed"
)

// AIJob is one logical run of the pipeline for one session.
type AIJob struct {
	ID          string
	PrincipalID string
	SessionID   string
	Type        string
	CreditsUsed int
	Status      AIJobStatus
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// EmbeddingDimension is the fixed vector width the index is built on.
const EmbeddingDimension = 1536

// Embedding is one chunk-level semantic vector.
type Embedding struct {
	ID        string
	SessionID string
	BlockID   *string
	Provider  string
	Vector    []float32 // len == EmbeddingDimension
	SourceText string
	CreatedAt time.Time
}

// PaymentStatus is the lifecycle state of an attempted external payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Payment is one attempted external payment.
type Payment struct {
	ID                string
	PrincipalID       string
	CheckoutSessionID *string // unique, nullable
	PaymentIntentID   *string // unique, nullable
	AmountMinor       int64
	Currency          string
	CreditsGranted    int
	Status            PaymentStatus
	PackageID         string
	CreatedAt         time.Time
	CompletedAt       *time.Time
}

// CreditPackage is an externally-defined purchasable bundle. The
// authoritative source is the payments provider's product catalog; see
// internal/domain/payment for the {credits, price} resolution logic.
type CreditPackage struct {
	ID      string
	Name    string
	Credits int
	Price   int64 // minor units
	Currency string
}

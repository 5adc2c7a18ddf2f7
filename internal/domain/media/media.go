// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package media implements the presign/commit protocol and the media
// registry on top of the object-store gateway.
package media

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/sessionforge/internal/apperrors"
	"github.com/ManuGH/sessionforge/internal/domain/model"
	"github.com/ManuGH/sessionforge/internal/log"
	"github.com/ManuGH/sessionforge/internal/objectstore"
	"github.com/ManuGH/sessionforge/internal/store"
	"github.com/google/uuid"
)

var audioContentTypes = map[string]string{
	"audio/m4a":  "m4a",
	"audio/mp4":  "mp4",
	"audio/mpeg": "mp3",
	"audio/mp3":  "mp3",
	"audio/wav":  "wav",
	"audio/webm": "webm",
	"audio/ogg":  "ogg",
	"audio/aac":  "aac",
}

var imageContentTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/heic": "heic",
	"image/heif": "heif",
}

// Registry implements the presign/commit protocol (§4.3).
type Registry struct {
	media    store.Media
	sessions store.Sessions
	gateway  *objectstore.Gateway
}

// New constructs a Registry.
func New(media store.Media, sessions store.Sessions, gateway *objectstore.Gateway) *Registry {
	return &Registry{media: media, sessions: sessions, gateway: gateway}
}

// PresignResult is the response to a presign request.
type PresignResult struct {
	UploadURL string
	ObjectKey string
	MediaID   string
	ExpiresIn time.Duration
}

// Presign validates contentType against the kind-specific allowlist, mints
// an object key, creates a pending media row, and returns a presigned PUT.
func (r *Registry) Presign(ctx context.Context, sessionID, ownerID string, kind model.MediaKind, contentType string) (*PresignResult, error) {
	if _, err := r.sessions.Get(ctx, sessionID, ownerID); err != nil {
		return nil, err
	}

	ext, ok := extensionFor(kind, contentType)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported content type %q for kind %q", apperrors.ErrValidation, contentType, kind)
	}

	mediaID := uuid.NewString()
	objectKey := fmt.Sprintf("sessions/%s/%s/%s.%s", sessionID, kind, mediaID, ext)

	url, ttl, err := r.gateway.PresignPut(ctx, objectKey, contentType)
	if err != nil {
		return nil, fmt.Errorf("media: presign put: %w", err)
	}

	if err := r.media.Create(ctx, &model.MediaFile{
		ID:          mediaID,
		SessionID:   sessionID,
		Kind:        kind,
		ObjectKey:   objectKey,
		ContentType: contentType,
		Status:      model.MediaPending,
		CreatedAt:   time.Now(),
	}); err != nil {
		return nil, fmt.Errorf("media: create row: %w", err)
	}

	return &PresignResult{UploadURL: url, ObjectKey: objectKey, MediaID: mediaID, ExpiresIn: ttl}, nil
}

// Commit transitions a media row pending -> uploaded. Already-uploaded rows
// return success (idempotent). ownerID must own the media's session.
func (r *Registry) Commit(ctx context.Context, mediaID, ownerID string, size *int64) error {
	m, err := r.media.Get(ctx, mediaID)
	if err != nil {
		return err
	}
	if _, err := r.sessions.Get(ctx, m.SessionID, ownerID); err != nil {
		return err
	}
	if err := r.media.Commit(ctx, mediaID, size); err != nil {
		return fmt.Errorf("media: commit: %w", err)
	}
	return nil
}

// DeleteOne removes a media row and its backing object. ownerID must own
// the session mediaID/sessionID are claimed to belong to.
func (r *Registry) DeleteOne(ctx context.Context, mediaID, sessionID, ownerID string) error {
	if _, err := r.sessions.Get(ctx, sessionID, ownerID); err != nil {
		return err
	}
	m, err := r.media.Get(ctx, mediaID)
	if err != nil {
		return err
	}
	if m.SessionID != sessionID {
		return fmt.Errorf("%w: media", apperrors.ErrNotFound)
	}
	if err := r.media.Delete(ctx, mediaID, sessionID); err != nil {
		return err
	}
	// Best-effort: storage deletion failure does not roll back the row
	// delete, and is not surfaced to the caller. An orphaned object is
	// cleaned up by the external sweeper.
	if err := r.gateway.Delete(ctx, m.ObjectKey); err != nil {
		_lg := log.WithComponent("media")
		_lg.Warn().Err(err).Str("object_key", m.ObjectKey).Msg("storage delete failed for removed media row")
	}
	return nil
}

// DeleteAllForSession removes every media row for a session and
// best-effort deletes their backing objects, used by session cascade delete.
func (r *Registry) DeleteAllForSession(ctx context.Context, sessionID string) error {
	rows, err := r.media.DeleteBySession(ctx, sessionID)
	if err != nil {
		return err
	}
	keys := make([]string, len(rows))
	for i, m := range rows {
		keys[i] = m.ObjectKey
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.gateway.DeleteMany(ctx, keys); err != nil {
		_lg := log.WithComponent("media")
		_lg.Warn().Err(err).Str("session_id", sessionID).Int("objects", len(keys)).Msg("storage delete failed for removed session media")
	}
	return nil
}

func extensionFor(kind model.MediaKind, contentType string) (string, bool) {
	table := imageContentTypes
	if kind == model.MediaAudio {
		table = audioContentTypes
	}
	ext, ok := table[strings.ToLower(contentType)]
	return ext, ok
}

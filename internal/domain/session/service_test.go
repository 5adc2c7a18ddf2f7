// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"testing"
	"time"

	"github.com/ManuGH/sessionforge/internal/domain/credit"
	"github.com/ManuGH/sessionforge/internal/domain/media"
	"github.com/ManuGH/sessionforge/internal/domain/model"
	"github.com/ManuGH/sessionforge/internal/queue"
	"github.com/ManuGH/sessionforge/internal/store/sqlite"
	"github.com/stretchr/testify/require"
)

// fakeQueue records enqueued tasks in memory, standing in for Redis Streams
// in tests that exercise finalize-with-AI.
type fakeQueue struct{ tasks []queue.Task }

func (q *fakeQueue) Enqueue(_ context.Context, t queue.Task) error {
	q.tasks = append(q.tasks, t)
	return nil
}

func (q *fakeQueue) Consume(context.Context, string, queue.Handler) error { return nil }

// newTestService wires the media registry with a nil object-store gateway:
// these tests create no media rows, so the registry never calls it, letting
// them exercise session lifecycle without a real S3 endpoint.
func newTestService(t *testing.T) (*Service, *sqlite.Backend, string) {
	t.Helper()
	backend, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	ownerID := "owner_1"
	require.NoError(t, backend.Principals().Create(context.Background(), &model.Principal{
		ID: ownerID, ExternalSubject: "ext_1", Credits: 2, CreatedAt: time.Now(),
	}))

	ledger := credit.New(backend.Credits())
	mediaRegistry := media.New(backend.Media(), backend.Sessions(), nil)
	svc := New(backend.Sessions(), backend.Jobs(), ledger, mediaRegistry, &fakeQueue{})
	return svc, backend, ownerID
}

func TestCreateAndAppendBlock(t *testing.T) {
	svc, _, owner := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Create(ctx, owner, model.SessionTypeVoice, nil)
	require.NoError(t, err)
	require.Equal(t, model.SessionOpen, sess.Status)

	text := "hello"
	b, err := svc.AppendBlock(ctx, sess.ID, owner, BlockSpec{Type: model.BlockText, TextContent: &text})
	require.NoError(t, err)
	require.Equal(t, sess.ID, b.SessionID)
}

func TestAppendBlockRejectedWhenNotOpen(t *testing.T) {
	svc, _, owner := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Create(ctx, owner, model.SessionTypeVoice, nil)
	require.NoError(t, err)
	text := "hello"
	_, err = svc.AppendBlock(ctx, sess.ID, owner, BlockSpec{Type: model.BlockText, TextContent: &text})
	require.NoError(t, err)

	_, err = svc.Finalize(ctx, sess.ID, owner, false)
	require.NoError(t, err)

	_, err = svc.AppendBlock(ctx, sess.ID, owner, BlockSpec{Type: model.BlockText, TextContent: &text})
	require.Error(t, err)
}

func TestFinalizeWithoutBlocksConflicts(t *testing.T) {
	svc, _, owner := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Create(ctx, owner, model.SessionTypeVoice, nil)
	require.NoError(t, err)

	_, err = svc.Finalize(ctx, sess.ID, owner, true)
	require.Error(t, err)
}

func TestFinalizeWithAIDebitsCredit(t *testing.T) {
	svc, backend, owner := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Create(ctx, owner, model.SessionTypeVoice, nil)
	require.NoError(t, err)
	text := "hello"
	_, err = svc.AppendBlock(ctx, sess.ID, owner, BlockSpec{Type: model.BlockText, TextContent: &text})
	require.NoError(t, err)

	got, err := svc.Finalize(ctx, sess.ID, owner, true)
	require.NoError(t, err)
	require.Equal(t, model.SessionPendingProcessing, got.Status)

	balance, err := backend.Credits().Balance(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, 1, balance)
}

func TestFinalizeDowngradesToNoCreditsWhenExhausted(t *testing.T) {
	svc, backend, owner := newTestService(t)
	ctx := context.Background()

	// Drain the two starting credits.
	ok, err := backend.Credits().Debit(ctx, owner, 2)
	require.NoError(t, err)
	require.True(t, ok)

	sess, err := svc.Create(ctx, owner, model.SessionTypeVoice, nil)
	require.NoError(t, err)
	text := "hello"
	_, err = svc.AppendBlock(ctx, sess.ID, owner, BlockSpec{Type: model.BlockText, TextContent: &text})
	require.NoError(t, err)

	got, err := svc.Finalize(ctx, sess.ID, owner, true)
	require.NoError(t, err)
	require.Equal(t, model.SessionNoCredits, got.Status)
}

func TestDoubleFinalizeRejected(t *testing.T) {
	svc, _, owner := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Create(ctx, owner, model.SessionTypeVoice, nil)
	require.NoError(t, err)
	text := "hello"
	_, err = svc.AppendBlock(ctx, sess.ID, owner, BlockSpec{Type: model.BlockText, TextContent: &text})
	require.NoError(t, err)

	_, err = svc.Finalize(ctx, sess.ID, owner, false)
	require.NoError(t, err)

	_, err = svc.Finalize(ctx, sess.ID, owner, false)
	require.Error(t, err)
}

func TestDeleteIsIdempotentlyNotFoundOnRetry(t *testing.T) {
	svc, _, owner := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Create(ctx, owner, model.SessionTypeVoice, nil)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, sess.ID, owner))
	err = svc.Delete(ctx, sess.ID, owner)
	require.Error(t, err)
}

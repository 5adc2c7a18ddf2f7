// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/ManuGH/sessionforge/internal/domain/model"
	"github.com/ManuGH/sessionforge/internal/domain/provider"
	"github.com/ManuGH/sessionforge/internal/domain/vectorindex"
	"github.com/ManuGH/sessionforge/internal/notify"
	"github.com/ManuGH/sessionforge/internal/queue"
	"github.com/ManuGH/sessionforge/internal/store/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type stubChatBackend struct {
	name          string
	title         string
	summarizeErr  error
	titleErr      error
}

func (s *stubChatBackend) Name() string { return s.name }
func (s *stubChatBackend) Supports(c provider.Capability) bool {
	return c == provider.CapabilitySummarize || c == provider.CapabilityTitle
}
func (s *stubChatBackend) Summarize(ctx context.Context, text, lang string) (string, error) {
	if s.summarizeErr != nil {
		return "", s.summarizeErr
	}
	return "summary of: " + text, nil
}
func (s *stubChatBackend) Title(ctx context.Context, text, lang string) (string, error) {
	if s.titleErr != nil {
		return "", s.titleErr
	}
	return s.title, nil
}

type stubEmbedBackend struct{ name string }

func (s *stubEmbedBackend) Name() string                              { return s.name }
func (s *stubEmbedBackend) Supports(c provider.Capability) bool       { return c == provider.CapabilityEmbed }
func (s *stubEmbedBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, model.EmbeddingDimension)
	vec[0] = 1
	return vec, nil
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *sqlite.Backend, string) {
	t.Helper()
	backend, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	ownerID := "owner_1"
	require.NoError(t, backend.Principals().Create(context.Background(), &model.Principal{
		ID: ownerID, ExternalSubject: "ext_1", CreatedAt: time.Now(),
	}))

	router, err := provider.NewRouter(provider.Config{
		Chat:  &stubChatBackend{name: "chat", title: "A Title"},
		Embed: &stubEmbedBackend{name: "embed"},
	})
	require.NoError(t, err)

	index := vectorindex.NewSQLiteIndex(backend)

	orch := New(backend, nil, router, index, &fakeQueue{}, notify.NopSink{}, Config{
		EmbeddingsEnabled:     true,
		EmbeddingProviderName: "embed",
	})
	return orch, backend, ownerID
}

type fakeQueue struct{ tasks []queue.Task }

func (q *fakeQueue) Enqueue(_ context.Context, t queue.Task) error {
	q.tasks = append(q.tasks, t)
	return nil
}
func (q *fakeQueue) Consume(context.Context, string, queue.Handler) error { return nil }

func openSessionWithTextBlock(t *testing.T, backend *sqlite.Backend, ownerID, text string) *model.Session {
	t.Helper()
	ctx := context.Background()
	sess := &model.Session{
		ID: uuid.NewString(), OwnerID: ownerID, Type: model.SessionTypeVoice,
		Status: model.SessionOpen, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	require.NoError(t, backend.Sessions().Create(ctx, sess))
	// Create starts a session as open; move it straight to pending_processing
	// for stage C tests, which assume finalize-with-AI already ran.
	ok, err := backend.Sessions().TransitionStatus(ctx, sess.ID, model.SessionOpen, model.SessionPendingProcessing, nil, nil)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, backend.Sessions().AppendBlock(ctx, &model.Block{
		ID: uuid.NewString(), SessionID: sess.ID, Type: model.BlockText, TextContent: &text, CreatedAt: time.Now(),
	}))
	return sess
}

func TestRunSummarizeStageCompletesSessionAndJob(t *testing.T) {
	orch, backend, owner := newTestOrchestrator(t)
	sess := openSessionWithTextBlock(t, backend, owner, "hello world")

	job := &model.AIJob{ID: uuid.NewString(), PrincipalID: owner, SessionID: sess.ID, Type: "session_enrichment", Status: model.AIJobPending, CreatedAt: time.Now()}
	require.NoError(t, backend.Jobs().Create(context.Background(), job))

	err := orch.runSummarizeStage(context.Background(), stageContext{SessionID: sess.ID, JobID: job.ID})
	require.NoError(t, err)

	got, err := backend.Sessions().GetForWorker(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Equal(t, model.SessionProcessed, got.Status)
	require.NotNil(t, got.Summary)
	require.NotNil(t, got.SuggestedTitle)
	require.Equal(t, "A Title", *got.SuggestedTitle)

	gotJob, err := backend.Jobs().Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, model.AIJobCompleted, gotJob.Status)
}

func TestRunSummarizeStageUsesLocalizedFailureMarkerOnSummaryError(t *testing.T) {
	backend, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	ownerID := "owner_1"
	require.NoError(t, backend.Principals().Create(context.Background(), &model.Principal{ID: ownerID, ExternalSubject: "ext_1", CreatedAt: time.Now()}))

	router, err := provider.NewRouter(provider.Config{
		Chat:  &stubChatBackend{name: "chat", title: "T", summarizeErr: errTest},
		Embed: &stubEmbedBackend{name: "embed"},
	})
	require.NoError(t, err)

	orch := New(backend, nil, router, vectorindex.NewSQLiteIndex(backend), &fakeQueue{}, notify.NopSink{}, Config{EmbeddingProviderName: "embed"})
	sess := openSessionWithTextBlock(t, backend, ownerID, "hello")

	job := &model.AIJob{ID: uuid.NewString(), PrincipalID: ownerID, SessionID: sess.ID, Type: "session_enrichment", Status: model.AIJobPending, CreatedAt: time.Now()}
	require.NoError(t, backend.Jobs().Create(context.Background(), job))

	require.NoError(t, orch.runSummarizeStage(context.Background(), stageContext{SessionID: sess.ID, JobID: job.ID}))

	got, err := backend.Sessions().GetForWorker(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Equal(t, localizedSummaryFailure("pt"), *got.Summary)
}

var errTest = &stubErr{"summarize failed"}

type stubErr struct{ msg string }

func (e *stubErr) Error() string { return e.msg }

// blockingQueue's Consume blocks until ctx is canceled, the way the real
// Redis-backed queue blocks inside XREADGROUP between deliveries.
type blockingQueue struct{}

func (blockingQueue) Enqueue(context.Context, queue.Task) error { return nil }
func (blockingQueue) Consume(ctx context.Context, _ string, _ queue.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestRunShutsDownCleanlyWithoutLeakingGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	backend, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	router, err := provider.NewRouter(provider.Config{
		Chat:  &stubChatBackend{name: "chat", title: "T"},
		Embed: &stubEmbedBackend{name: "embed"},
	})
	require.NoError(t, err)

	orch := New(backend, nil, router, vectorindex.NewSQLiteIndex(backend), blockingQueue{}, notify.NopSink{}, Config{
		WorkerCount: 3,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- orch.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("orchestrator did not shut down after context cancellation")
	}
}

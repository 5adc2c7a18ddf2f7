// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ManuGH/sessionforge/internal/auth"
	"github.com/ManuGH/sessionforge/internal/domain/credit"
	"github.com/ManuGH/sessionforge/internal/domain/media"
	"github.com/ManuGH/sessionforge/internal/domain/model"
	"github.com/ManuGH/sessionforge/internal/domain/payment"
	"github.com/ManuGH/sessionforge/internal/domain/provider"
	"github.com/ManuGH/sessionforge/internal/domain/search"
	"github.com/ManuGH/sessionforge/internal/domain/session"
	"github.com/ManuGH/sessionforge/internal/domain/vectorindex"
	"github.com/ManuGH/sessionforge/internal/health"
	"github.com/ManuGH/sessionforge/internal/queue"
	"github.com/ManuGH/sessionforge/internal/store/sqlite"
	"github.com/stretchr/testify/require"
)

// subjectVerifier treats the bearer token as the external subject, the same
// shape as cmd/server's dev verifier.
type subjectVerifier struct{}

func (subjectVerifier) Verify(_ context.Context, token string) (string, string, error) {
	if token == "" {
		return "", "", auth.ErrInvalidToken
	}
	return token, token + "@example.test", nil
}

type recordingQueue struct{ tasks []queue.Task }

func (q *recordingQueue) Enqueue(_ context.Context, t queue.Task) error {
	q.tasks = append(q.tasks, t)
	return nil
}
func (q *recordingQueue) Consume(context.Context, string, queue.Handler) error { return nil }

type chatStub struct{}

func (chatStub) Name() string { return "chat" }
func (chatStub) Supports(c provider.Capability) bool {
	return c == provider.CapabilitySummarize || c == provider.CapabilityTitle
}
func (chatStub) Summarize(context.Context, string, string) (string, error) { return "s", nil }
func (chatStub) Title(context.Context, string, string) (string, error)     { return "t", nil }

type embedStub struct{}

func (embedStub) Name() string                        { return "embed" }
func (embedStub) Supports(c provider.Capability) bool { return c == provider.CapabilityEmbed }
func (embedStub) Embed(context.Context, string) ([]float32, error) {
	vec := make([]float32, model.EmbeddingDimension)
	vec[0] = 1
	return vec, nil
}

func newTestRouter(t *testing.T) (http.Handler, *sqlite.Backend, *recordingQueue) {
	t.Helper()
	backend, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	q := &recordingQueue{}
	ledger := credit.New(backend.Credits())
	mediaRegistry := media.New(backend.Media(), backend.Sessions(), nil)
	sessions := session.New(backend.Sessions(), backend.Jobs(), ledger, mediaRegistry, q)

	providerRouter, err := provider.NewRouter(provider.Config{Chat: chatStub{}, Embed: embedStub{}})
	require.NoError(t, err)
	searchSvc := search.New(backend.Sessions(), providerRouter, vectorindex.NewSQLiteIndex(backend))

	catalog := payment.NewCatalog()
	reconciler := payment.New(backend.Payments(), backend.Principals(), ledger, catalog, "whsec_test")

	handler := New(Config{
		Sessions:     sessions,
		Media:        mediaRegistry,
		Ledger:       ledger,
		Principals:   backend.Principals(),
		Search:       searchSvc,
		Catalog:      catalog,
		Reconciler:   reconciler,
		Jobs:          backend.Jobs(),
		SessionsStore: backend.Sessions(),
		Queue:         q,
		Health:        health.NewManager("test"),
		AuthResolver: auth.NewResolver(subjectVerifier{}, backend.Principals()),
		AdminSecret:  "admin_secret",
	})
	return handler, backend, q
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestSessionEndpointsRequireAuth(t *testing.T) {
	handler, _, _ := newTestRouter(t)
	rec := doJSON(t, handler, http.MethodPost, "/sessions", "", map[string]string{"type": "voice"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateAppendFinalizeFlow(t *testing.T) {
	handler, backend, q := newTestRouter(t)

	rec := doJSON(t, handler, http.MethodPost, "/sessions", "user_a", map[string]string{"type": "mixed"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		ID      string `json:"id"`
		OwnerID string `json:"owner_id"`
		Status  string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "open", created.Status)

	// Fund the principal that requireAuth auto-created on first request.
	require.NoError(t, backend.Credits().Credit(context.Background(), created.OwnerID, 1))

	rec = doJSON(t, handler, http.MethodPost, "/sessions/"+created.ID+"/blocks", "user_a",
		map[string]any{"type": "text", "text_content": "project status"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/sessions/"+created.ID+"/finalize", "user_a", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var finalized struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &finalized))
	require.Equal(t, "pending_processing", finalized.Status)
	require.Len(t, q.tasks, 1)

	rec = doJSON(t, handler, http.MethodGet, "/me/credits", "user_a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var balance struct {
		Credits int `json:"credits"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &balance))
	require.Equal(t, 0, balance.Credits)
}

func TestFinalizeWithoutCreditsDowngrades(t *testing.T) {
	handler, _, q := newTestRouter(t)

	rec := doJSON(t, handler, http.MethodPost, "/sessions", "user_b", map[string]string{"type": "voice"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, handler, http.MethodPost, "/sessions/"+created.ID+"/blocks", "user_b",
		map[string]any{"type": "text", "text_content": "note"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/sessions/"+created.ID+"/finalize", "user_b", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var finalized struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &finalized))
	require.Equal(t, "no_credits", finalized.Status)
	require.Empty(t, q.tasks)
}

func TestSessionsAreOwnerScoped(t *testing.T) {
	handler, _, _ := newTestRouter(t)

	rec := doJSON(t, handler, http.MethodPost, "/sessions", "user_a", map[string]string{"type": "voice"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, handler, http.MethodGet, "/sessions/"+created.ID, "user_b", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreferredLanguageRejectsUnsupported(t *testing.T) {
	handler, _, _ := newTestRouter(t)

	rec := doJSON(t, handler, http.MethodPost, "/me/preferred-language", "user_a",
		map[string]string{"language": "fr"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/me/preferred-language", "user_a",
		map[string]string{"language": "en"})
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAdminSurfaceRequiresSharedSecret(t *testing.T) {
	handler, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/jobs", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/jobs", nil)
	req.Header.Set("X-Admin-Secret", "admin_secret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookUnknownProviderIs404(t *testing.T) {
	handler, _, _ := newTestRouter(t)
	rec := doJSON(t, handler, http.MethodPost, "/webhooks/paypal", "", map[string]string{})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthEndpointIsPublic(t *testing.T) {
	handler, _, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

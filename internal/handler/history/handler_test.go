package history

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/oralmate/backend/internal/auth"
	historyModel "github.com/oralmate/backend/internal/model/history"
	"github.com/oralmate/backend/internal/store/historystore"
)

func newTestRouter(store historystore.Store) http.Handler {
	r := chi.NewRouter()
	New(store).RegisterRoutes(r)
	return r
}

func doRequest(t *testing.T, router http.Handler, method, target string, body []byte, identity *auth.Identity) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if identity != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), *identity))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAppendThenReadSession(t *testing.T) {
	store := historystore.NewMemoryStore(24 * time.Hour)
	router := newTestRouter(store)
	identity := &auth.Identity{UserID: "u1"}

	for _, content := range []string{"hello", "hi there"} {
		body, _ := json.Marshal(map[string]string{
			"sessionId": "s1",
			"role":      "user",
			"content":   content,
		})
		rec := doRequest(t, router, http.MethodPost, "/history/messages", body, identity)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("append status = %d, body = %s", rec.Code, rec.Body.String())
		}
	}

	rec := doRequest(t, router, http.MethodGet, "/history/session/s1", nil, identity)
	if rec.Code != http.StatusOK {
		t.Fatalf("read status = %d", rec.Code)
	}
	var resp struct {
		SessionID string               `json:"sessionId"`
		Entries   []historyModel.Entry `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if len(resp.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(resp.Entries))
	}
	if resp.Entries[0].Content != "hello" || resp.Entries[1].Content != "hi there" {
		t.Fatalf("entries out of order: %+v", resp.Entries)
	}
}

func TestAppendWhitespaceContentRejected(t *testing.T) {
	store := historystore.NewMemoryStore(24 * time.Hour)
	router := newTestRouter(store)

	body, _ := json.Marshal(map[string]string{
		"sessionId": "s1",
		"role":      "user",
		"content":   "   \n\t ",
	})
	rec := doRequest(t, router, http.MethodPost, "/history/messages", body, &auth.Identity{UserID: "u1"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	// 被过滤的内容绝不能落库。
	entries, err := store.ReadAll(context.Background(), "s1")
	if err != nil {
		t.Fatalf("ReadAll err: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("whitespace content was persisted: %+v", entries)
	}
}

func TestAppendInvalidRoleRejected(t *testing.T) {
	store := historystore.NewMemoryStore(24 * time.Hour)
	router := newTestRouter(store)

	body, _ := json.Marshal(map[string]string{
		"sessionId": "s1",
		"role":      "moderator",
		"content":   "hello",
	})
	rec := doRequest(t, router, http.MethodPost, "/history/messages", body, &auth.Identity{UserID: "u1"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestReadUnknownSessionIsEmpty(t *testing.T) {
	store := historystore.NewMemoryStore(24 * time.Hour)
	router := newTestRouter(store)

	rec := doRequest(t, router, http.MethodGet, "/history/session/nope", nil, &auth.Identity{UserID: "u1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Entries []historyModel.Entry `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if len(resp.Entries) != 0 {
		t.Fatalf("expected empty history, got %+v", resp.Entries)
	}
}

func TestHistoryRoutesRequireIdentity(t *testing.T) {
	store := historystore.NewMemoryStore(24 * time.Hour)
	router := newTestRouter(store)

	rec := doRequest(t, router, http.MethodGet, "/history/session/s1", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("read status = %d, want 401", rec.Code)
	}
	rec = doRequest(t, router, http.MethodPost, "/history/messages", []byte(`{}`), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("append status = %d, want 401", rec.Code)
	}
}

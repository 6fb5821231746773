package conversation

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/oralmate/backend/internal/auth"
	"github.com/oralmate/backend/internal/store/sessionstore"
)

func newTestRouter(store sessionstore.Store) http.Handler {
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

func TestStartCreatesAndResumesSession(t *testing.T) {
	store := sessionstore.NewMemoryStore(7*24*time.Hour, 3)
	router := newTestRouter(store)
	identity := &auth.Identity{UserID: "u1"}

	rec := doRequest(t, router, http.MethodPost, "/conversation/start", []byte(`{"goalId":"travel"}`), identity)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var first struct {
		SessionID string `json:"sessionId"`
		Resumed   bool   `json:"resumed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &first); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if first.SessionID == "" || first.Resumed {
		t.Fatalf("expected a fresh session, got %+v", first)
	}

	// 再次发起同一目标的对话应恢复同一个会话。
	rec = doRequest(t, router, http.MethodPost, "/conversation/start", []byte(`{"goalId":"travel"}`), identity)
	var second struct {
		SessionID string `json:"sessionId"`
		Resumed   bool   `json:"resumed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &second); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if second.SessionID != first.SessionID || !second.Resumed {
		t.Fatalf("expected resume of %s, got %+v", first.SessionID, second)
	}
}

func TestStartWithEmptyBodyUsesDefaults(t *testing.T) {
	store := sessionstore.NewMemoryStore(7*24*time.Hour, 3)
	router := newTestRouter(store)

	rec := doRequest(t, router, http.MethodPost, "/conversation/start", nil, &auth.Identity{UserID: "u1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestStartWithoutIdentityRejected(t *testing.T) {
	store := sessionstore.NewMemoryStore(7*24*time.Hour, 3)
	router := newTestRouter(store)

	rec := doRequest(t, router, http.MethodPost, "/conversation/start", []byte(`{}`), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestListSessionsMostRecentFirst(t *testing.T) {
	store := sessionstore.NewMemoryStore(7*24*time.Hour, 3)
	router := newTestRouter(store)
	identity := &auth.Identity{UserID: "u1"}

	var created []string
	for i := 0; i < 2; i++ {
		rec := doRequest(t, router, http.MethodPost, "/conversation/start", []byte(`{"forceNew":true}`), identity)
		var resp struct {
			SessionID string `json:"sessionId"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode err: %v", err)
		}
		created = append(created, resp.SessionID)
	}

	rec := doRequest(t, router, http.MethodGet, "/conversation/sessions", nil, identity)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		SessionIDs []string `json:"sessionIds"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if len(resp.SessionIDs) != 2 {
		t.Fatalf("expected 2 sessions, got %v", resp.SessionIDs)
	}
	if resp.SessionIDs[0] != created[1] || resp.SessionIDs[1] != created[0] {
		t.Fatalf("expected most-recent-first %v, got %v", created, resp.SessionIDs)
	}
}

func TestListSessionsEmptyForNewUser(t *testing.T) {
	store := sessionstore.NewMemoryStore(7*24*time.Hour, 3)
	router := newTestRouter(store)

	rec := doRequest(t, router, http.MethodGet, "/conversation/sessions", nil, &auth.Identity{UserID: "fresh"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		SessionIDs []string `json:"sessionIds"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if resp.SessionIDs == nil || len(resp.SessionIDs) != 0 {
		t.Fatalf("expected empty list, got %v", resp.SessionIDs)
	}
}

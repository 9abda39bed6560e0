package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/claimbot/internal/domain"
	"github.com/tbourn/claimbot/internal/http/middleware"
	"github.com/tbourn/claimbot/internal/repo"
	"github.com/tbourn/claimbot/internal/services"
)

// ---------- test wiring ----------

type failingStore struct{ repo.Store }

func (failingStore) Save(context.Context, string, []byte) error {
	return context.DeadlineExceeded
}

func newTestAPI(t *testing.T, wrap func(repo.Store) repo.Store) (*gin.Engine, *services.Ledger) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	var store repo.Store = repo.NewFileStore(filepath.Join(dir, "claims.json"), filepath.Join(dir, "cols.json"))
	if wrap != nil {
		store = wrap(store)
	}
	ledger, err := services.LoadLedger(context.Background(), store)
	if err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	d := services.NewDispatcher(services.NewClaimService(ledger), services.NewBrowser(ledger, time.Minute))
	h := New(d, ledger.Registry, ledger.Collections)

	r := gin.New()
	r.Use(middleware.ActingUser())
	r.POST("/claims", h.CreateClaim)
	r.GET("/claims/:messageId", h.GetClaim)
	r.GET("/users/:id/collection", h.ListCollection)
	r.POST("/browser/sessions", h.OpenBrowser)
	r.POST("/browser/sessions/:id/navigate", h.NavigateBrowser)
	r.POST("/browser/sessions/:id/clear", h.ClearBrowserEntry)
	return r, ledger
}

func do(t *testing.T, r http.Handler, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(middleware.HeaderUserID, user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func claimBody(msgID, image string) ClaimRequest {
	return ClaimRequest{MessageID: msgID, Post: domain.Post{Image: image, Characters: "c", Date: "2024-01-01"}}
}

// ---------- tests ----------

func TestCreateClaim_StatusMapping(t *testing.T) {
	r, _ := newTestAPI(t, nil)

	if w := do(t, r, http.MethodPost, "/claims", "", claimBody("m1", "i")); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing user: want 401, got %d", w.Code)
	}
	if w := do(t, r, http.MethodPost, "/claims", "u1", map[string]any{"post": map[string]string{"image": "i"}}); w.Code != http.StatusBadRequest {
		t.Fatalf("missing message id: want 400, got %d", w.Code)
	}
	if w := do(t, r, http.MethodPost, "/claims", "u1", claimBody("m1", "")); w.Code != http.StatusBadRequest {
		t.Fatalf("missing image: want 400, got %d", w.Code)
	}

	w := do(t, r, http.MethodPost, "/claims", "u1", claimBody("m1", "i"))
	if w.Code != http.StatusCreated {
		t.Fatalf("claim: want 201, got %d (%s)", w.Code, w.Body.String())
	}
	resp := decode[services.Response](t, w)
	if resp.Outcome != services.OutcomeClaimed || resp.Message != services.MsgClaimed {
		t.Fatalf("unexpected response: %+v", resp)
	}

	w = do(t, r, http.MethodPost, "/claims", "u2", claimBody("m1", "i"))
	if w.Code != http.StatusConflict {
		t.Fatalf("second claim: want 409, got %d", w.Code)
	}
	er := decode[ErrorResponse](t, w)
	if er.Code != ErrCodeConflict || er.Message != services.MsgAlreadyClaimed {
		t.Fatalf("unexpected error body: %+v", er)
	}

	w = do(t, r, http.MethodGet, "/claims/m1", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get claim: want 200, got %d", w.Code)
	}
	if got := decode[ClaimOwnerResponse](t, w); got.UserID != "u1" {
		t.Fatalf("owner = %q", got.UserID)
	}
	if w := do(t, r, http.MethodGet, "/claims/nope", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("unclaimed: want 404, got %d", w.Code)
	}
}

func TestCreateClaim_PersistenceFailure(t *testing.T) {
	r, ledger := newTestAPI(t, func(s repo.Store) repo.Store { return failingStore{s} })

	w := do(t, r, http.MethodPost, "/claims", "u1", claimBody("m1", "i"))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d", w.Code)
	}
	if er := decode[ErrorResponse](t, w); er.Code != ErrCodePersistFailed {
		t.Fatalf("code = %q", er.Code)
	}
	if !ledger.Registry.IsClaimed("m1") {
		t.Fatalf("claim must stay in memory")
	}
}

func TestListCollection_Paginates(t *testing.T) {
	r, _ := newTestAPI(t, nil)
	for _, id := range []string{"m1", "m2", "m3"} {
		if w := do(t, r, http.MethodPost, "/claims", "u1", claimBody(id, "img-"+id)); w.Code != http.StatusCreated {
			t.Fatalf("seed %s: %d", id, w.Code)
		}
	}

	w := do(t, r, http.MethodGet, "/users/u1/collection?page=2&page_size=2", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", w.Code)
	}
	got := decode[ListCollectionResponse](t, w)
	if len(got.Posts) != 1 || got.Posts[0].MessageID != "m3" {
		t.Fatalf("unexpected page: %+v", got.Posts)
	}
	if got.Pagination.Total != 3 || got.Pagination.TotalPages != 2 || got.Pagination.HasNext {
		t.Fatalf("unexpected pagination: %+v", got.Pagination)
	}

	w = do(t, r, http.MethodGet, "/users/u1/collection?page=9", "", nil)
	if got := decode[ListCollectionResponse](t, w); len(got.Posts) != 0 {
		t.Fatalf("page past the end should be empty, got %d", len(got.Posts))
	}
}

func TestBrowser_Flow(t *testing.T) {
	r, ledger := newTestAPI(t, nil)

	if w := do(t, r, http.MethodPost, "/browser/sessions", "u1", nil); w.Code != http.StatusNotFound {
		t.Fatalf("empty collection: want 404, got %d", w.Code)
	}

	for _, id := range []string{"m1", "m2"} {
		do(t, r, http.MethodPost, "/claims", "u1", claimBody(id, "img-"+id))
	}

	w := do(t, r, http.MethodPost, "/browser/sessions", "u1", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("open: want 201, got %d", w.Code)
	}
	open := decode[services.Response](t, w)
	if open.View == nil || open.View.MaxPage != 1 {
		t.Fatalf("unexpected view: %+v", open.View)
	}
	base := "/browser/sessions/" + open.View.SessionID

	if w := do(t, r, http.MethodPost, base+"/navigate", "u2", NavigateRequest{Direction: "next"}); w.Code != http.StatusForbidden {
		t.Fatalf("other user: want 403, got %d", w.Code)
	}
	if w := do(t, r, http.MethodPost, base+"/navigate", "u1", NavigateRequest{Direction: "up"}); w.Code != http.StatusBadRequest {
		t.Fatalf("bad direction: want 400, got %d", w.Code)
	}

	w = do(t, r, http.MethodPost, base+"/navigate", "u1", NavigateRequest{Direction: "last"})
	if w.Code != http.StatusOK {
		t.Fatalf("navigate: want 200, got %d", w.Code)
	}
	if v := decode[services.Response](t, w).View; v.Page != 1 {
		t.Fatalf("page = %d", v.Page)
	}

	w = do(t, r, http.MethodPost, base+"/clear", "u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("clear: want 200, got %d", w.Code)
	}
	if ledger.Registry.IsClaimed("m2") {
		t.Fatalf("cleared claim must be released")
	}

	w = do(t, r, http.MethodPost, base+"/clear", "u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("last clear: want 200, got %d", w.Code)
	}
	if resp := decode[services.Response](t, w); resp.Outcome != services.OutcomeEmpty || !resp.View.Empty {
		t.Fatalf("unexpected response: %+v", resp)
	}

	if w := do(t, r, http.MethodPost, base+"/navigate", "u1", NavigateRequest{Direction: "first"}); w.Code != http.StatusNotFound {
		t.Fatalf("closed session: want 404, got %d", w.Code)
	}
}

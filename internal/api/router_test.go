package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/neillidocker/aws-announcements-scraper/internal/storage"
)

type stubStore struct {
	items  []storage.Announcement
	months []string
	err    error

	gotSource string
	gotMonth  string
	gotSort   string
	gotLimit  int
	listCalls int
}

func (s *stubStore) List(source, month, sort string, limit int) ([]storage.Announcement, error) {
	s.listCalls++
	s.gotSource, s.gotMonth, s.gotSort, s.gotLimit = source, month, sort, limit
	return s.items, s.err
}

func (s *stubStore) ListMonths(source string, limit int) ([]string, error) {
	s.gotSource, s.gotLimit = source, limit
	return s.months, s.err
}

type stubRefresher struct {
	ran chan struct{}
}

func (r *stubRefresher) RunOnce() {
	r.ran <- struct{}{}
}

func newTestRouter(store Store, refresher Refresher) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewServer(store, refresher).RegisterRoutes(r)
	return r
}

func doRequest(t *testing.T, r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(method, path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter(&stubStore{}, nil)
	w := doRequest(t, r, http.MethodGet, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("status field = %q", body["status"])
	}
}

func TestListAnnouncements(t *testing.T) {
	store := &stubStore{
		items: []storage.Announcement{{
			ID:            "abc",
			Title:         "Amazon EKS update",
			URL:           "https://www.amazonaws.cn/new/2025/eks/",
			Source:        "awscn-en",
			PublishedDate: "2025-08-12",
		}},
	}
	r := newTestRouter(store, nil)

	w := doRequest(t, r, http.MethodGet, "/api/v1/announcements?source=awscn-en&month=2025-08&sort=oldest&limit=5")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if store.gotSource != "awscn-en" || store.gotMonth != "2025-08" || store.gotSort != "oldest" || store.gotLimit != 5 {
		t.Fatalf("store args = %q %q %q %d", store.gotSource, store.gotMonth, store.gotSort, store.gotLimit)
	}

	var body struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Data    []storage.Announcement `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Code != "ok" || body.Message != "success" {
		t.Fatalf("envelope = %q %q", body.Code, body.Message)
	}
	if len(body.Data) != 1 || body.Data[0].Title != "Amazon EKS update" {
		t.Fatalf("data = %+v", body.Data)
	}
}

func TestListAnnouncementsDefaults(t *testing.T) {
	store := &stubStore{}
	r := newTestRouter(store, nil)

	w := doRequest(t, r, http.MethodGet, "/api/v1/announcements?sort=bogus&limit=abc")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	// 非法取值静默回落到默认
	if store.gotSort != "latest" || store.gotLimit != 20 {
		t.Fatalf("sort = %q, limit = %d", store.gotSort, store.gotLimit)
	}
}

func TestListAnnouncementsRejectsBadMonth(t *testing.T) {
	store := &stubStore{}
	r := newTestRouter(store, nil)

	for _, month := range []string{"2025-13", "202508", "aug-2025"} {
		w := doRequest(t, r, http.MethodGet, "/api/v1/announcements?month="+month)
		if w.Code != http.StatusBadRequest {
			t.Errorf("month %q: status = %d, want 400", month, w.Code)
		}
	}
	if store.listCalls != 0 {
		t.Fatalf("store.List called %d times for invalid months", store.listCalls)
	}
}

func TestListAnnouncementsStoreError(t *testing.T) {
	r := newTestRouter(&stubStore{err: errors.New("db down")}, nil)
	w := doRequest(t, r, http.MethodGet, "/api/v1/announcements")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["code"] != "internal_error" {
		t.Fatalf("code = %q", body["code"])
	}
}

func TestListMonths(t *testing.T) {
	store := &stubStore{months: []string{"2025-08", "2025-07"}}
	r := newTestRouter(store, nil)

	w := doRequest(t, r, http.MethodGet, "/api/v1/announcements/months?source=awscn-zh")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if store.gotSource != "awscn-zh" || store.gotLimit != 24 {
		t.Fatalf("store args = %q %d", store.gotSource, store.gotLimit)
	}
	var body struct {
		Data []string `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Data) != 2 || body.Data[0] != "2025-08" {
		t.Fatalf("data = %v", body.Data)
	}
}

func TestRefreshWithoutRefresher(t *testing.T) {
	r := newTestRouter(&stubStore{}, nil)
	w := doRequest(t, r, http.MethodPost, "/api/v1/refresh")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestRefreshTriggersRun(t *testing.T) {
	ref := &stubRefresher{ran: make(chan struct{}, 1)}
	r := newTestRouter(&stubStore{}, ref)

	w := doRequest(t, r, http.MethodPost, "/api/v1/refresh")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	select {
	case <-ref.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("refresher was not triggered")
	}
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/layofflens/internal/analytics"
	"github.com/hitoshi/layofflens/internal/item"
	"github.com/hitoshi/layofflens/internal/metrics"
	"github.com/hitoshi/layofflens/internal/middleware"
	"github.com/hitoshi/layofflens/internal/model"
	"github.com/hitoshi/layofflens/internal/repository"
)

// newTestRouter は実際のRecordStore（メモリテーブル）とサービスで組んだルーターを返す。
func newTestRouter(t *testing.T, adminToken string, ing Ingester) (http.Handler, *repository.RecordStore) {
	t.Helper()
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	store := repository.NewRecordStore(repository.NewMemoryEntityTable(), "layoffs", logger)
	reg := prometheus.NewRegistry()
	metrics.NewCollector(reg).RecordItemSaved()

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(600), logger)
	t.Cleanup(rl.Stop)

	router := NewRouter(&RouterDeps{
		Logger:            logger,
		CORSAllowedOrigin: "*",
		RateLimiter:       rl,
		AdminToken:        adminToken,
		MetricsHandler:    metrics.Handler(reg),
		ItemService:       item.NewItemService(store, logger),
		AnalyticsService:  analytics.NewService(store, logger),
		Ingester:          ing,
		Purger:            &mockPurger{},
	})
	return router, store
}

func seed(t *testing.T, store *repository.RecordStore, recs ...model.FeedRecord) {
	t.Helper()
	for i := range recs {
		if err := store.Upsert(context.Background(), &recs[i]); err != nil {
			t.Fatalf("Upsert() がエラーを返した: %v", err)
		}
	}
}

func TestRouter_Health(t *testing.T) {
	router, _ := newTestRouter(t, "tok", &mockIngester{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestRouter_HealthCheckerFailure_Returns503(t *testing.T) {
	var buf bytes.Buffer
	router := NewRouter(&RouterDeps{
		Logger:        newTestLogger(&buf),
		HealthChecker: &mockHealthChecker{err: errors.New("connection refused")},
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestRouter_Metrics(t *testing.T) {
	router, _ := newTestRouter(t, "tok", &mockIngester{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body, _ := io.ReadAll(w.Body)
	if !strings.Contains(string(body), "layofflens_items_saved_total") {
		t.Error("メトリクスに layofflens_items_saved_total が含まれていない")
	}
}

func TestRouter_ItemsAndAlias(t *testing.T) {
	router, store := newTestRouter(t, "tok", &mockIngester{})
	now := time.Now().UTC()
	seed(t, store,
		model.FeedRecord{RowKey: "old", Title: "older", Link: "https://example.com/old", Date: now.Add(-2 * time.Hour), Type: model.ItemTypeNews, Tags: []string{"Layoffs"}},
		model.FeedRecord{RowKey: "new", Title: "newer", Link: "https://example.com/new", Date: now.Add(-time.Hour), Type: model.ItemTypeNews, Tags: []string{"Layoffs"}},
	)

	for _, path := range []string{"/api/items?days=1", "/api/ListItemsHttp?days=1"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

		if w.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want %d", path, w.Code, http.StatusOK)
		}
		var body item.ListResult
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("%s: failed to decode response: %v", path, err)
		}
		if len(body.Items) != 2 || body.Items[0].RowKey != "new" {
			t.Errorf("%s: items = %+v, want newest first", path, body.Items)
		}
		if body.Pagination.TotalItems != 2 || body.Pagination.PageSize != item.PageSize {
			t.Errorf("%s: pagination = %+v", path, body.Pagination)
		}
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/items?limit=1", nil))
	var plain []model.FeedRecord
	if err := json.NewDecoder(w.Body).Decode(&plain); err != nil || len(plain) != 1 {
		t.Errorf("limit=1: items = %+v, err = %v", plain, err)
	}
}

func TestRouter_AnalyticsAndAlias(t *testing.T) {
	router, store := newTestRouter(t, "tok", &mockIngester{})
	now := time.Now().UTC()
	seed(t, store,
		model.FeedRecord{RowKey: "a", Title: "Amazon layoffs", Link: "https://example.com/a", Date: now, Type: model.ItemTypeNews, Tags: []string{"Layoffs"}, Sector: "Technology"},
		model.FeedRecord{RowKey: "b", Title: "Amazon video", Link: "https://youtube.com/watch?v=b", Date: now, Type: model.ItemTypeVideo, Tags: []string{"Layoffs"}},
	)

	for _, path := range []string{"/api/analytics", "/api/GetLayoffStatsHttp?days=30"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

		if w.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want %d", path, w.Code, http.StatusOK)
		}
		var stats model.Stats
		if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
			t.Fatalf("%s: failed to decode response: %v", path, err)
		}
		if stats.Summary.TodayCount != 1 || stats.Summary.TopSector != "Technology" {
			t.Errorf("%s: summary = %+v", path, stats.Summary)
		}
		if len(stats.TopCompanies) != 1 || stats.TopCompanies[0] != (model.CompanyCount{Company: "Amazon", Count: 1}) {
			t.Errorf("%s: topCompanies = %+v", path, stats.TopCompanies)
		}
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/analytics?days=0", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("days=0: status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestRouter_FetchNow_RequiresToken(t *testing.T) {
	calls := 0
	ing := &mockIngester{runCycleFn: func(ctx context.Context) (int, error) {
		calls++
		return 5, nil
	}}
	router, _ := newTestRouter(t, "tok", ing)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/FetchNowHttp?token=nope", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/FetchNowHttp?token=tok", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("alias: status = %d, want %d", w.Code, http.StatusOK)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/admin/fetch", nil)
	req.Header.Set(middleware.AdminTokenHeader, "tok")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("header token: status = %d, want %d", w.Code, http.StatusOK)
	}

	if calls != 2 {
		t.Errorf("RunCycle calls = %d, want 2", calls)
	}
}

func TestRouter_AdminDisabledWithoutToken(t *testing.T) {
	router, _ := newTestRouter(t, "", &mockIngester{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/admin/purge?token=", nil))

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router, _ := newTestRouter(t, "tok", &mockIngester{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/fetch?token=tok", nil))

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}

func TestRouter_Preflight(t *testing.T) {
	router, _ := newTestRouter(t, "tok", &mockIngester{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/items", nil))

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
}

package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/layofflens/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	AdminToken        string

	// ヘルスチェック・メトリクス
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 読み出し
	ItemService      ItemServiceInterface
	AnalyticsService AnalyticsServiceInterface

	// 管理操作
	Ingester Ingester
	Purger   Purger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Recovery → Logging → CORS → SecurityHeaders → RateLimit(/api) → AdminToken(管理ルート)
//
// 旧フロントエンド互換の別名ルート（/api/ListItemsHttp など）も同じハンドラーに向ける。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	itemHandler := NewItemHandler(deps.ItemService, deps.Logger)
	analyticsHandler := NewAnalyticsHandler(deps.AnalyticsService, deps.Logger)
	adminHandler := NewAdminHandler(deps.Ingester, deps.Purger, deps.Logger)

	// --- 監視用ルート ---
	r.Get("/health", healthHandler(deps.HealthChecker, deps.Logger))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- API ---
	r.Route("/api", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		r.Get("/items", itemHandler.ListItems)
		r.Get("/ListItemsHttp", itemHandler.ListItems)

		r.Get("/analytics", analyticsHandler.GetAnalytics)
		r.Get("/GetLayoffStatsHttp", analyticsHandler.GetAnalytics)

		// 管理操作（共有トークン）
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAdminTokenMiddleware(deps.AdminToken, deps.Logger))

			r.Post("/admin/fetch", adminHandler.FetchNow)
			r.Post("/FetchNowHttp", adminHandler.FetchNow)
			r.Post("/admin/purge", adminHandler.Purge)
		})
	})

	return r
}

package handler

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Raghu963/globus-sample-data-portal/internal/catalog"
	"github.com/Raghu963/globus-sample-data-portal/internal/metrics"
	"github.com/Raghu963/globus-sample-data-portal/internal/middleware"
	"github.com/Raghu963/globus-sample-data-portal/internal/repository"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// データセットカタログ
	Catalog        *catalog.Catalog
	DatasetBrowser DatasetBrowser

	// 転送
	TransferService TransferServiceInterface
	SessionSaver    SessionSaver

	// グラフ
	GraphService GraphServiceInterface

	// プロファイル
	ProfileRepo repository.ProfileRepository

	// 運用エンドポイント
	DB             *sql.DB
	Recorder       metrics.Recorder
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → SessionMiddleware → RateLimit
//
// 認証ルート（/auth/*）と運用エンドポイントはセッションミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Recorder))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	datasetHandler := NewDatasetHandler(deps.Catalog, deps.DatasetBrowser)
	transferHandler := NewTransferHandler(deps.TransferService, deps.Catalog, deps.SessionSaver)
	graphHandler := NewGraphHandler(deps.GraphService)
	profileHandler := NewProfileHandler(deps.ProfileRepo)

	// --- 認証不要のルート ---

	// 認可コードフロー
	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", authHandler.Login)
		r.Get("/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
	})

	// 運用エンドポイント
	r.Get("/healthz", newHealthzHandler(deps.DB))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/me", authHandler.Me)

		// データセットカタログ
		r.Route("/api/datasets", func(r chi.Router) {
			r.Get("/", datasetHandler.List)
			r.Get("/{id}/files", datasetHandler.Browse)
		})

		// 転送リクエスト
		r.Route("/api/transfers", func(r chi.Router) {
			// POST /api/transfers - 提出（提出専用レート制限を追加）
			r.With(deps.RateLimiter.SubmitMiddleware()).Post("/", transferHandler.Submit)
			r.Get("/{taskID}", transferHandler.Status)
		})

		// グラフ生成（リモート取得とアップロードを伴うため提出と同じ制限）
		r.With(deps.RateLimiter.SubmitMiddleware()).Post("/api/graphs", graphHandler.Generate)

		// プロファイル
		r.Route("/api/profile", func(r chi.Router) {
			r.Get("/", profileHandler.Get)
			r.Put("/", profileHandler.Update)
		})
	})

	return r
}

// newHealthzHandler はDB接続を確認するヘルスチェックハンドラーを返す。
func newHealthzHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "unhealthy",
					"error":  "database unreachable",
				})
				return
			}
		}

		json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
		})
	}
}

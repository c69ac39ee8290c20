// Package app はアプリケーションの初期化と起動を担う。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/Raghu963/globus-sample-data-portal/internal/auth"
	"github.com/Raghu963/globus-sample-data-portal/internal/catalog"
	"github.com/Raghu963/globus-sample-data-portal/internal/config"
	"github.com/Raghu963/globus-sample-data-portal/internal/database"
	"github.com/Raghu963/globus-sample-data-portal/internal/graph"
	"github.com/Raghu963/globus-sample-data-portal/internal/handler"
	"github.com/Raghu963/globus-sample-data-portal/internal/logger"
	"github.com/Raghu963/globus-sample-data-portal/internal/metrics"
	"github.com/Raghu963/globus-sample-data-portal/internal/middleware"
	"github.com/Raghu963/globus-sample-data-portal/internal/repository"
	"github.com/Raghu963/globus-sample-data-portal/internal/security"
	"github.com/Raghu963/globus-sample-data-portal/internal/transfer"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	sessionRepo := repository.NewPostgresSessionRepo(db)
	profileRepo := repository.NewPostgresProfileRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. データセットカタログの読み込み
	cat, err := catalog.Load()
	if err != nil {
		return fmt.Errorf("failed to load dataset catalog: %w", err)
	}
	slog.Info("dataset catalog loaded", slog.Int("datasets", len(cat.All())))

	// 5. セキュリティサービスの初期化
	// エンドポイントのHTTPSサーバーはリモートから報告された値のため、
	// グラフのCSV取得とSVGアップロードはSSRF防止クライアントで行う
	ssrfGuard := security.NewSSRFGuard()
	safeClient := ssrfGuard.NewSafeClient(cfg.RemoteTimeout, graph.DefaultMaxCSVBytes)

	// 6. ドメインサービスの初期化
	oauthProvider := auth.NewOAuthProvider(auth.ProviderConfig{
		ClientID:      cfg.AuthClientID,
		ClientSecret:  cfg.AuthClientSecret,
		RedirectURL:   cfg.AuthRedirectURL,
		PortalName:    cfg.PortalName,
		PostLogoutURL: cfg.BaseURL,
		AuthorizeURL:  cfg.AuthAuthorizeURL,
		TokenURL:      cfg.AuthTokenURL,
		RevokeURL:     cfg.AuthRevokeURL,
		LogoutURL:     cfg.AuthLogoutURL,
	}, &http.Client{Timeout: cfg.RemoteTimeout})

	authService := auth.NewService(
		oauthProvider, sessionRepo, collector,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	transferClient := transfer.NewClient(
		&http.Client{Timeout: cfg.RemoteTimeout}, slog.Default(), cfg.TransferAPIURL,
	)
	transferService := transfer.NewService(transferClient, cfg.DatasetEndpointID, collector)

	graphService := graph.NewService(
		transferService, cat, ssrfGuard, safeClient,
		graph.Config{
			DatasetEndpointID: cfg.DatasetEndpointID,
			GraphEndpointID:   cfg.GraphEndpointID,
			GraphEndpointBase: cfg.GraphEndpointBase,
		},
		collector, slog.Default(),
	)

	// 7. ルーターの構築
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.SubmitRate = rate.Limit(float64(cfg.RateLimitSubmit) / 60.0)
	rateLimiterCfg.SubmitBurst = cfg.RateLimitSubmit
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		Catalog:        cat,
		DatasetBrowser: transferService,

		TransferService: transferService,
		SessionSaver:    sessionRepo,

		GraphService: graphService,

		ProfileRepo: profileRepo,

		DB:             db,
		Recorder:       collector,
		MetricsHandler: metrics.Handler(registry),
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // グラフ生成はリモート取得とアップロードを伴う
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}

package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Raghu963/globus-sample-data-portal/internal/model"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // API全般のレート（req/sec）。120/60 = 2 req/sec
	GeneralBurst    int           // API全般のバーストサイズ
	SubmitRate      rate.Limit    // 転送リクエスト提出のレート（req/sec）。10/60
	SubmitBurst     int           // 転送リクエスト提出のバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 120 req/min/identity、転送提出 10 req/min/identity。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(120.0 / 60.0), // 2 req/sec
		GeneralBurst:    120,
		SubmitRate:      rate.Limit(10.0 / 60.0), // ~0.167 req/sec
		SubmitBurst:     10,
		CleanupInterval: 5 * time.Minute,
	}
}

// identityLimiter はアイデンティティごとのレートリミッターとアクセス時刻を保持する。
type identityLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter はアイデンティティごとのレート制限を管理する。
// API全般のレート制限と転送提出のレート制限の2種類を提供する。
// 転送提出はリモートの転送サービスへの高コストな操作であるため独立に制限する。
type RateLimiter struct {
	config RateLimiterConfig

	generalMu       sync.RWMutex
	generalLimiters map[string]*identityLimiter

	submitMu       sync.RWMutex
	submitLimiters map[string]*identityLimiter

	stopCh chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:          config,
		generalLimiters: make(map[string]*identityLimiter),
		submitLimiters:  make(map[string]*identityLimiter),
		stopCh:          make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
// リクエストコンテキストにセッションが含まれている必要がある
// （SessionMiddlewareの後に配置）。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := SessionFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			limiter := rl.getOrCreateLimiter(&rl.generalMu, rl.generalLimiters,
				session.Identity, rl.config.GeneralRate, rl.config.GeneralBurst)

			if !limiter.Allow() {
				writeRateLimitResponse(w, rl.config.GeneralRate)
				slog.Warn("rate limit exceeded",
					slog.String("identity", session.Identity),
					slog.String("limit_type", "general"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SubmitMiddleware は転送リクエスト提出専用のレート制限ミドルウェアを返す。
// API全般のレート制限とは独立に動作する。
func (rl *RateLimiter) SubmitMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := SessionFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			limiter := rl.getOrCreateLimiter(&rl.submitMu, rl.submitLimiters,
				session.Identity, rl.config.SubmitRate, rl.config.SubmitBurst)

			if !limiter.Allow() {
				writeRateLimitResponse(w, rl.config.SubmitRate)
				slog.Warn("rate limit exceeded",
					slog.String("identity", session.Identity),
					slog.String("limit_type", "submit"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GeneralLimiterCount は現在管理されているAPI全般リミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) GeneralLimiterCount() int {
	rl.generalMu.RLock()
	defer rl.generalMu.RUnlock()
	return len(rl.generalLimiters)
}

// SubmitLimiterCount は現在管理されている転送提出リミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) SubmitLimiterCount() int {
	rl.submitMu.RLock()
	defer rl.submitMu.RUnlock()
	return len(rl.submitLimiters)
}

// getOrCreateLimiter は指定アイデンティティのリミッターを取得または作成する。
func (rl *RateLimiter) getOrCreateLimiter(mu *sync.RWMutex, limiters map[string]*identityLimiter, identity string, r rate.Limit, burst int) *rate.Limiter {
	mu.RLock()
	il, exists := limiters[identity]
	mu.RUnlock()

	if exists {
		mu.Lock()
		il.lastAccess = time.Now()
		mu.Unlock()
		return il.limiter
	}

	mu.Lock()
	defer mu.Unlock()

	// ダブルチェック
	if il, exists := limiters[identity]; exists {
		il.lastAccess = time.Now()
		return il.limiter
	}

	limiter := rate.NewLimiter(r, burst)
	limiters[identity] = &identityLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}

	return limiter
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup() {
	ttl := rl.config.CleanupInterval * 2

	now := time.Now()

	rl.generalMu.Lock()
	for identity, il := range rl.generalLimiters {
		if now.Sub(il.lastAccess) > ttl {
			delete(rl.generalLimiters, identity)
		}
	}
	rl.generalMu.Unlock()

	rl.submitMu.Lock()
	for identity, il := range rl.submitLimiters {
		if now.Sub(il.lastAccess) > ttl {
			delete(rl.submitLimiters, identity)
		}
	}
	rl.submitMu.Unlock()
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	// Retry-Afterの算出: 1トークンが補充されるまでの秒数
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	json.NewEncoder(w).Encode(map[string]string{
		"code":     "rate_limit_exceeded",
		"message":  "Too many requests. Please try again later.",
		"category": "system",
		"action":   "Please wait and retry after the specified time.",
	})
}

// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// 認可サーバー (OAuth2)
	AuthClientID     string
	AuthClientSecret string
	AuthRedirectURL  string
	AuthAuthorizeURL string
	AuthTokenURL     string
	AuthRevokeURL    string
	AuthLogoutURL    string

	// 転送サービス
	TransferAPIURL    string
	DatasetEndpointID string
	GraphEndpointID   string
	GraphEndpointBase string
	RemoteTimeout     time.Duration

	// Session
	SessionMaxAge int

	// Rate Limit
	RateLimitGeneral int
	RateLimitSubmit  int

	// Server
	ServerPort string
	BaseURL    string
	PortalName string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	required := func(key string) string {
		v := os.Getenv(key)
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg.DatabaseURL = required("DATABASE_URL")
	cfg.AuthClientID = required("AUTH_CLIENT_ID")
	cfg.AuthClientSecret = required("AUTH_CLIENT_SECRET")
	cfg.AuthRedirectURL = required("AUTH_REDIRECT_URL")
	cfg.TransferAPIURL = required("TRANSFER_API_URL")
	cfg.DatasetEndpointID = required("DATASET_ENDPOINT_ID")
	cfg.GraphEndpointID = required("GRAPH_ENDPOINT_ID")
	cfg.BaseURL = required("BASE_URL")

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.AuthAuthorizeURL = getEnvString("AUTH_AUTHORIZE_URL", "https://auth.globus.org/v2/oauth2/authorize")
	cfg.AuthTokenURL = getEnvString("AUTH_TOKEN_URL", "https://auth.globus.org/v2/oauth2/token")
	cfg.AuthRevokeURL = getEnvString("AUTH_REVOKE_URL", "https://auth.globus.org/v2/oauth2/token/revoke")
	cfg.AuthLogoutURL = getEnvString("AUTH_LOGOUT_URL", "https://auth.globus.org/v2/web/logout")
	cfg.GraphEndpointBase = getEnvString("GRAPH_ENDPOINT_BASE", "/")
	cfg.RemoteTimeout = getEnvDuration("REMOTE_TIMEOUT", 30*time.Second)
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSubmit = getEnvInt("RATE_LIMIT_SUBMIT", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.PortalName = getEnvString("PORTAL_NAME", "Sample Data Portal")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

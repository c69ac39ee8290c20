// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Raghu963/globus-sample-data-portal/internal/middleware"
	"github.com/Raghu963/globus-sample-data-portal/internal/model"
)

const sessionCookieName = "session_id"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	NewSession(ctx context.Context) (*model.Session, error)
	FindSession(ctx context.Context, id string) (*model.Session, error)
	BeginAuthorization(ctx context.Context, session *model.Session, signup bool) (string, error)
	CompleteAuthorization(ctx context.Context, session *model.Session, returnedState, code string) (*model.Credential, error)
	Logout(ctx context.Context, session *model.Session) (string, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler は認可コードフロー関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// Login は認可コードフローを開始する。
// GET /auth/login?signup=1
// 既存セッションがあれば再利用し、なければ新規に作成してCookieを発行する。
// signup=1 が付与された場合はアカウント作成画面へのヒントを認可URLに伝搬する。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	session := h.sessionFromCookie(r)
	if session == nil {
		created, err := h.service.NewSession(r.Context())
		if err != nil {
			slog.Error("failed to create session", slog.String("error", err.Error()))
			middleware.WriteInternalServerError(w)
			return
		}
		session = created
	}

	h.setSessionCookie(w, session.ID, h.config.SessionMaxAge)

	signup := r.URL.Query().Get("signup") == "1"
	authorizeURL, err := h.service.BeginAuthorization(r.Context(), session, signup)
	if err != nil {
		slog.Error("failed to begin authorization", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	http.Redirect(w, r, authorizeURL, http.StatusTemporaryRedirect)
}

// Callback は認可サーバーからのコールバックを処理する。
// GET /auth/callback?state=xxx&code=yyy
// stateの検証とコード交換はサービス層が行い、検証失敗時は交換を試みない。
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	session := h.sessionFromCookie(r)
	if session == nil {
		// セッションなしではstateを照合できないため交換には進まない
		writeAPIError(w, model.NewStateMismatchError())
		return
	}

	returnedState := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")

	if _, err := h.service.CompleteAuthorization(r.Context(), session, returnedState, code); err != nil {
		slog.Warn("authorization callback failed",
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()),
		)
		writeAPIError(w, err)
		return
	}

	http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
}

// Logout はトークンの失効とセッションの破棄を行う。
// POST /auth/logout
// 失効がリモートで失敗してもセッションは必ず破棄され、
// レスポンスには認可サーバー側のログアウトURLを含める。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session := h.sessionFromCookie(r)
	if session == nil {
		// 破棄対象がなくても冪等に成功として扱う
		session = &model.Session{}
	}

	logoutURL, err := h.service.Logout(r.Context(), session)
	if err != nil {
		slog.Error("failed to logout", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// セッションCookieをクリア
	h.setSessionCookie(w, "", -1)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"logout_url": logoutURL,
	})
}

// Me は現在のログインユーザー情報を返す。
// GET /api/me （認証必須）
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		writeAPIError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"identity": session.Identity,
		"username": session.Username,
	})
}

// sessionFromCookie はCookieからセッションを引く。見つからなければnilを返す。
func (h *AuthHandler) sessionFromCookie(r *http.Request) *model.Session {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	session, err := h.service.FindSession(r.Context(), cookie.Value)
	if err != nil {
		slog.Error("failed to find session", slog.String("error", err.Error()))
		return nil
	}
	return session
}

// setSessionCookie はセッションCookieを設定する。maxAge < 0 で削除。
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// writeAPIError はエラーを統一フォーマットで書き込む。
// APIError以外のエラーは内部エラーとして扱う。
func writeAPIError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, middleware.StatusForAPIError(apiErr), apiErr)
		return
	}
	middleware.WriteInternalServerError(w)
}

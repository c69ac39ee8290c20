// Package auth はOAuth2認可コードフローとセッションのライフサイクル管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Raghu963/globus-sample-data-portal/internal/metrics"
	"github.com/Raghu963/globus-sample-data-portal/internal/model"
	"github.com/Raghu963/globus-sample-data-portal/internal/repository"
)

// Provider は認可サーバーとのプロトコル操作のインターフェース。
// テストではスタブに差し替える。
type Provider interface {
	// AuthorizeURL は認可URLを生成する。ネットワーク呼び出しは行わない。
	AuthorizeURL(state string, signup bool) string
	// Exchange は認可コードをCredentialに交換する。
	Exchange(ctx context.Context, code string) (*model.Credential, error)
	// Revoke は指定トークンを失効させる。
	Revoke(ctx context.Context, token string) error
	// PostLogoutURL は認可サーバーのログアウトページのURLを返す。
	PostLogoutURL() string
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認可フローの状態遷移とクレデンシャルの失効を駆動する。
// フロー状態は start → awaiting_callback → exchanging → authenticated を
// 正常系とし、トークン交換失敗時は failed で終端する。
type Service struct {
	provider Provider
	sessions repository.SessionRepository
	metrics  metrics.Recorder
	config   ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	provider Provider,
	sessions repository.SessionRepository,
	recorder metrics.Recorder,
	config ServiceConfig,
) *Service {
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	return &Service{
		provider: provider,
		sessions: sessions,
		metrics:  recorder,
		config:   config,
	}
}

// NewSession は未認証の新規セッションを作成し永続化する。
func (s *Service) NewSession(ctx context.Context) (*model.Session, error) {
	id, err := generateToken(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        id,
		FlowState: model.FlowStateStart,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// FindSession は指定IDのセッションを取得する。期限切れ・未存在の場合はnilを返す。
func (s *Service) FindSession(ctx context.Context, id string) (*model.Session, error) {
	return s.sessions.FindByID(ctx, id)
}

// BeginAuthorization は認可フローを開始する。
// 推測不可能なstateトークンを生成してセッションに保存し、認可URLを返す。
// ネットワーク呼び出しは行わない。セッションは awaiting_callback に遷移する。
func (s *Service) BeginAuthorization(ctx context.Context, session *model.Session, signup bool) (string, error) {
	state, err := generateToken(16)
	if err != nil {
		return "", fmt.Errorf("failed to generate oauth state: %w", err)
	}

	session.OAuthState = state
	session.FlowState = model.FlowStateAwaitingCallback

	if err := s.sessions.Save(ctx, session); err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}

	slog.Info("authorization flow started",
		slog.String("session_id", session.ID),
		slog.Bool("signup", signup),
	)

	return s.provider.AuthorizeURL(state, signup), nil
}

// CompleteAuthorization は認可コールバックを処理する。
//
// stateの検証はいかなるネットワーク呼び出しよりも先に行い、不一致・未保存の
// 場合はSTATE_MISMATCHで即座に失敗する。照合に成功したstateはその場で消費され、
// 同じstateによる2回目の呼び出しは失敗する（リプレイ不可）。
// トークン交換に失敗した場合はEXCHANGE_FAILEDで終端し、セッションが認証済みと
// 誤認されるような中途半端な状態は残さない。
func (s *Service) CompleteAuthorization(ctx context.Context, session *model.Session, returnedState, code string) (*model.Credential, error) {
	stored := session.OAuthState
	if returnedState == "" || stored == "" ||
		subtle.ConstantTimeCompare([]byte(returnedState), []byte(stored)) != 1 {
		slog.Warn("oauth state mismatch",
			slog.String("session_id", session.ID),
		)
		return nil, model.NewStateMismatchError()
	}

	// stateは使い捨て。交換前に消費を永続化し、リプレイを不可能にする。
	session.OAuthState = ""
	session.FlowState = model.FlowStateExchanging
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to consume oauth state: %w", err)
	}

	cred, err := s.provider.Exchange(ctx, code)
	if err != nil {
		session.FlowState = model.FlowStateFailed
		session.Credential = nil
		if saveErr := s.sessions.Save(ctx, session); saveErr != nil {
			slog.Error("failed to persist failed flow state",
				slog.String("session_id", session.ID),
				slog.String("error", saveErr.Error()),
			)
		}
		s.metrics.RecordAuthExchange("failure")

		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		return nil, model.NewExchangeFailedError(err.Error())
	}

	session.Credential = cred
	session.Identity = cred.Identity
	session.Username = cred.Username
	session.FlowState = model.FlowStateAuthenticated

	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save authenticated session: %w", err)
	}

	s.metrics.RecordAuthExchange("success")
	slog.Info("user authenticated",
		slog.String("identity", cred.Identity),
		slog.String("username", cred.Username),
	)

	return cred, nil
}

// Logout はクレデンシャルを失効させ、セッションを破棄する。
//
// 失効はベストエフォートであり、認可サーバーの障害でローカルログアウトを
// ブロックしない。失敗はログに記録するのみで、セッションの削除は無条件に行う。
// 戻り値は認可サーバーのログアウトページへのリダイレクト先。
func (s *Service) Logout(ctx context.Context, session *model.Session) (string, error) {
	if session.Credential != nil && session.Credential.RefreshToken != "" {
		if err := s.provider.Revoke(ctx, session.Credential.RefreshToken); err != nil {
			slog.Warn("token revocation failed, clearing session anyway",
				slog.String("session_id", session.ID),
				slog.String("error", err.Error()),
			)
			s.metrics.RecordRevoke("failure")
		} else {
			s.metrics.RecordRevoke("success")
		}
	}

	if err := s.sessions.DeleteByID(ctx, session.ID); err != nil {
		return "", fmt.Errorf("failed to delete session: %w", err)
	}
	session.Clear()

	slog.Info("user logged out", slog.String("session_id", session.ID))

	return s.provider.PostLogoutURL(), nil
}

// generateToken は暗号的に安全なランダムトークンを生成する。
func generateToken(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

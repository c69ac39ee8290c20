package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Raghu963/globus-sample-data-portal/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
// フロー状態・クレデンシャル・OAuth state等のキーバリュー状態はJSONBカラムに格納する。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// sessionData はsessions.dataカラムのJSON表現。
type sessionData struct {
	FlowState        model.FlowState   `json:"flow_state"`
	Username         string            `json:"primary_username,omitempty"`
	Credential       *model.Credential `json:"credential,omitempty"`
	OAuthState       string            `json:"oauth_state,omitempty"`
	PendingSelection []string          `json:"pending_selection,omitempty"`
}

func encodeSessionData(session *model.Session) ([]byte, error) {
	data := sessionData{
		FlowState:        session.FlowState,
		Username:         session.Username,
		Credential:       session.Credential,
		OAuthState:       session.OAuthState,
		PendingSelection: session.PendingSelection,
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session data: %w", err)
	}
	return b, nil
}

// Create はセッションを作成する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	b, err := encodeSessionData(session)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, identity, data, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		session.ID, session.Identity, b, session.ExpiresAt, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	session := &model.Session{}
	var raw []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT id, identity, data, expires_at, created_at
		 FROM sessions
		 WHERE id = $1 AND expires_at > now()`,
		id,
	).Scan(&session.ID, &session.Identity, &raw, &session.ExpiresAt, &session.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	var data sessionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to decode session data: %w", err)
	}

	session.FlowState = data.FlowState
	if session.FlowState == "" {
		session.FlowState = model.FlowStateStart
	}
	session.Username = data.Username
	session.Credential = data.Credential
	session.OAuthState = data.OAuthState
	session.PendingSelection = data.PendingSelection

	return session, nil
}

// Save はセッションの現在の状態を永続化する。
func (r *PostgresSessionRepo) Save(ctx context.Context, session *model.Session) error {
	b, err := encodeSessionData(session)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE sessions
		 SET identity = $2, data = $3, expires_at = $4
		 WHERE id = $1`,
		session.ID, session.Identity, b, session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのセッションを削除する。
// 既に削除済みのIDに対して呼んでもエラーにならない（冪等）。
func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)

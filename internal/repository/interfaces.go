// Package repository はデータ永続化層のインターフェースと実装を提供する。
package repository

import (
	"context"

	"github.com/Raghu963/globus-sample-data-portal/internal/model"
)

// SessionRepository はセッションの永続化インターフェース。
// セッションの格納形式はこの層の責務であり、コアからは不透明なキーバリュー状態として扱う。
type SessionRepository interface {
	// Create はセッションを新規作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れ・未存在の場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// Save はセッションの現在の状態を永続化する。
	Save(ctx context.Context, session *model.Session) error
	// DeleteByID は指定IDのセッションを削除する。存在しないIDに対しても安全。
	DeleteByID(ctx context.Context, id string) error
}

// ProfileRepository はユーザープロフィールの永続化インターフェース。
type ProfileRepository interface {
	// FindByIdentity は指定アイデンティティのプロフィールを取得する。未登録の場合はnilを返す。
	FindByIdentity(ctx context.Context, identity string) (*model.Profile, error)
	// Upsert はプロフィールを作成または更新する。
	Upsert(ctx context.Context, profile *model.Profile) error
}

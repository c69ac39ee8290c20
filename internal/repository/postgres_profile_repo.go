package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Raghu963/globus-sample-data-portal/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindByIdentity は指定アイデンティティのプロフィールを取得する。未登録の場合はnilを返す。
func (r *PostgresProfileRepo) FindByIdentity(ctx context.Context, identity string) (*model.Profile, error) {
	profile := &model.Profile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT identity, name, email, project, updated_at
		 FROM profiles
		 WHERE identity = $1`,
		identity,
	).Scan(&profile.Identity, &profile.Name, &profile.Email, &profile.Project, &profile.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}

	return profile, nil
}

// Upsert はプロフィールを作成または更新する。
func (r *PostgresProfileRepo) Upsert(ctx context.Context, profile *model.Profile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (identity, name, email, project, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (identity) DO UPDATE
		 SET name = EXCLUDED.name, email = EXCLUDED.email,
		     project = EXCLUDED.project, updated_at = EXCLUDED.updated_at`,
		profile.Identity, profile.Name, profile.Email, profile.Project, profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)

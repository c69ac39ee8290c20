package model

import "time"

// Credential は認可サーバーから委譲されたトークン一式を表す。
// 作成したセッションが排他的に所有し、失効後に再利用されることはない。
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`

	// Identity はIDトークンから抽出した主体識別子（sub）。
	Identity string `json:"identity"`
	// Username はIDトークンから抽出した表示用ユーザー名（preferred_username）。
	Username string `json:"username"`
}

// Expired はアクセストークンが期限切れかどうかを返す。
// Expiryが未設定の場合は期限切れとして扱わない。
func (c *Credential) Expired(now time.Time) bool {
	if c.Expiry.IsZero() {
		return false
	}
	return !now.Before(c.Expiry)
}

// Profile はユーザーが登録する任意のプロフィール情報を表す。
// Identityをキーとして永続化される。
type Profile struct {
	Identity  string
	Name      string
	Email     string
	Project   string
	UpdatedAt time.Time
}

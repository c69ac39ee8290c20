// Package model はドメインモデルを定義する。
package model

import "time"

// FlowState はOAuth認可フローの進行状態を表す。
type FlowState string

const (
	// FlowStateStart は認可フロー未開始の状態。
	FlowStateStart FlowState = "start"
	// FlowStateAwaitingCallback は認可URLへリダイレクト済みで、コールバック待ちの状態。
	FlowStateAwaitingCallback FlowState = "awaiting_callback"
	// FlowStateExchanging は認可コードをトークンに交換中の状態。
	FlowStateExchanging FlowState = "exchanging"
	// FlowStateAuthenticated は認可フローが完了した終端状態。
	FlowStateAuthenticated FlowState = "authenticated"
	// FlowStateFailed はトークン交換に失敗した終端状態。
	// この状態からの回復はBeginAuthorizationによる再開のみ。
	FlowStateFailed FlowState = "failed"
)

// Session はユーザーのログインセッションを表す。
// グローバルな暗黙の状態ではなく、各操作に明示的に渡すコンテキストオブジェクトとして扱う。
// 保持するキー集合はこの構造体のフィールドがすべてであり、他ユーザーと共有されることはない。
type Session struct {
	ID        string
	FlowState FlowState

	// Identity は認証済みユーザーの安定した識別子（IDトークンのsub）。
	Identity string
	// Username はユーザーの表示用ユーザー名（IDトークンのpreferred_username）。
	Username string

	// Credential は委譲されたトークン一式。未認証の間はnil。
	Credential *Credential

	// OAuthState はCSRF対策のstateトークン。
	// 認可リダイレクトからコールバックまでの間のみ存在し、検証時に消費される。
	OAuthState string

	// PendingSelection は宛先入力待ちのデータセットID。
	// エンドポイント選択をまたいで選択内容を保持するための一時キー。
	PendingSelection []string

	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsAuthenticated は認可フローが完了し有効なクレデンシャルを持つかを返す。
func (s *Session) IsAuthenticated() bool {
	return s.FlowState == FlowStateAuthenticated && s.Credential != nil
}

// Clear はセッションの全キーを削除する。空のセッションに対して呼んでも安全。
func (s *Session) Clear() {
	s.FlowState = FlowStateStart
	s.Identity = ""
	s.Username = ""
	s.Credential = nil
	s.OAuthState = ""
	s.PendingSelection = nil
}

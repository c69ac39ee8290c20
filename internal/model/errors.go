package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, transfer, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeStateMismatch    = "STATE_MISMATCH"
	ErrCodeExchangeFailed   = "EXCHANGE_FAILED"
	ErrCodeActivationFailed = "ACTIVATION_FAILED"
	ErrCodeSubmissionFailed = "SUBMISSION_FAILED"
	ErrCodeLookupFailed     = "LOOKUP_FAILED"
	ErrCodeEmptySelection   = "EMPTY_SELECTION"
	ErrCodeDirectoryFailed  = "DIRECTORY_FAILED"
	ErrCodeDatasetNotFound  = "DATASET_NOT_FOUND"
	ErrCodeUnauthenticated  = "UNAUTHENTICATED"
	ErrCodeInvalidYear      = "INVALID_YEAR"
	ErrCodeFetchFailed      = "FETCH_FAILED"
	ErrCodeSSRFBlocked      = "SSRF_BLOCKED"
)

// NewStateMismatchError はOAuth stateの不一致エラーを生成する。
// CSRF防御の失敗であり、現在のフローを中断して認可のやり直しが必要。
func NewStateMismatchError() *APIError {
	return &APIError{
		Code:     ErrCodeStateMismatch,
		Message:  "OAuth stateパラメータが一致しません。",
		Category: "auth",
		Action:   "ログインを最初からやり直してください。",
	}
}

// NewExchangeFailedError は認可コード交換の失敗エラーを生成する。
// 認可コードは使い捨てのためリトライはしない。
func NewExchangeFailedError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeExchangeFailed,
		Message:  fmt.Sprintf("トークン交換に失敗しました: %s", detail),
		Category: "auth",
		Action:   "ログインを最初からやり直してください。",
	}
}

// NewActivationFailedError はエンドポイントのアクティベーション失敗エラーを生成する。
func NewActivationFailedError(endpointID, detail string) *APIError {
	return &APIError{
		Code:     ErrCodeActivationFailed,
		Message:  fmt.Sprintf("エンドポイント %s のアクティベーションに失敗しました: %s", endpointID, detail),
		Category: "transfer",
		Action:   "エンドポイントが利用可能か確認してから再度お試しください。",
	}
}

// NewSubmissionFailedError は転送ジョブ提出の失敗エラーを生成する。
// 転送サービスが返したコードとメッセージをそのまま保持する。
func NewSubmissionFailedError(code, message string) *APIError {
	return &APIError{
		Code:     ErrCodeSubmissionFailed,
		Message:  fmt.Sprintf("転送リクエストが拒否されました [%s]: %s", code, message),
		Category: "transfer",
		Action:   "リクエスト内容を確認してから再度お試しください。",
	}
}

// NewLookupFailedError はタスクステータス取得の失敗エラーを生成する。
// 呼び出し側が後続のポーリングでリトライ可能。
func NewLookupFailedError(taskID, detail string) *APIError {
	return &APIError{
		Code:     ErrCodeLookupFailed,
		Message:  fmt.Sprintf("タスク %s のステータス取得に失敗しました: %s", taskID, detail),
		Category: "transfer",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewEmptySelectionError はデータセット未選択エラーを生成する。
func NewEmptySelectionError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptySelection,
		Message:  "データセットが1件も選択されていません。",
		Category: "validation",
		Action:   "少なくとも1件のデータセットを選択してください。",
	}
}

// NewDirectoryFailedError はディレクトリ作成の失敗エラーを生成する。
// 「既に存在する」場合はエラーにならない（冪等な作成として成功扱い）。
func NewDirectoryFailedError(endpointID, path, code, message string) *APIError {
	return &APIError{
		Code:     ErrCodeDirectoryFailed,
		Message:  fmt.Sprintf("エンドポイント %s 上のディレクトリ %s の作成に失敗しました [%s]: %s", endpointID, path, code, message),
		Category: "transfer",
		Action:   "宛先パスへの書き込み権限を確認してください。",
	}
}

// NewDatasetNotFoundError はデータセット未検出エラーを生成する。
func NewDatasetNotFoundError(datasetID string) *APIError {
	return &APIError{
		Code:     ErrCodeDatasetNotFound,
		Message:  fmt.Sprintf("指定されたデータセットが見つかりません: %s", datasetID),
		Category: "validation",
		Action:   "データセットIDを確認してください。",
	}
}

// NewUnauthenticatedError は未認証エラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "認証されていません。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidYearError はグラフ対象年の指定が無効な場合のエラーを生成する。
func NewInvalidYearError(year string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidYear,
		Message:  fmt.Sprintf("無効な年の指定です: %s", year),
		Category: "validation",
		Action:   "西暦4桁の年を指定してください。",
	}
}

// NewFetchFailedError はデータセットCSVの取得失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("データセットの取得に失敗しました: %s", reason),
		Category: "transfer",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "エンドポイントのHTTPSサーバー設定を確認してください。",
	}
}

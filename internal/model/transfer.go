package model

import "time"

// Dataset は転送可能なデータセットのカタログエントリを表す。
// カタログは静的でありコアからは読み取り専用。
type Dataset struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// TransferItem は1データセット分の転送指示を表す。
// DestinationPathは「宛先ベース + [サブフォルダ/] + データセット名/」の順で合成される。
type TransferItem struct {
	SourcePath      string
	DestinationPath string
	Recursive       bool
}

// TransferRequest は転送サービスへ提出する転送ジョブを表す。
// SubmissionIDは提出試行ごとに新規取得し、リトライの重複提出を排除するための冪等キー。
// Itemsは空であってはならず、両エンドポイントは解決可能でなければならない。
type TransferRequest struct {
	SubmissionID        string
	SourceEndpoint      string
	DestinationEndpoint string
	Label               string
	Items               []TransferItem
}

// TransferTask は転送サービス側が所有するタスクレコードを表す。
// コアはステータスを読むだけで、直接変更することはない。
type TransferTask struct {
	TaskID           string
	Status           string
	FilesTransferred int
	FaultCount       int
	SourceName       string
	DestinationName  string
	RequestTime      time.Time
}

// Endpoint は転送サービスが管理するストレージエンドポイントのメタデータを表す。
type Endpoint struct {
	ID          string
	DisplayName string
	// HTTPSServer はエンドポイントのHTTPSファイルサーバーのベースURL。未提供の場合は空。
	HTTPSServer string
}

// FileEntry はエンドポイント上のディレクトリリスティングの1件を表す。
type FileEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

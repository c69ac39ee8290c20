package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Raghu963/globus-sample-data-portal/internal/metrics"
	"github.com/Raghu963/globus-sample-data-portal/internal/model"
)

// API は転送サービスクライアントのインターフェース。
// テストではスタブに差し替える。
type API interface {
	// SubmissionID は新しい提出IDを取得する。
	SubmissionID(ctx context.Context, cred *model.Credential) (string, error)
	// AutoActivate は指定エンドポイントをアクティベートする。
	AutoActivate(ctx context.Context, cred *model.Credential, endpointID string) error
	// Submit は転送ジョブを提出し、タスクIDを返す。
	Submit(ctx context.Context, cred *model.Credential, request *model.TransferRequest) (string, error)
	// Task は指定タスクの現在のステータスを取得する。
	Task(ctx context.Context, cred *model.Credential, taskID string) (*model.TransferTask, error)
	// Endpoint は指定エンドポイントのメタデータを取得する。
	Endpoint(ctx context.Context, cred *model.Credential, endpointID string) (*model.Endpoint, error)
	// List は指定エンドポイント上のディレクトリリスティングを取得する。
	List(ctx context.Context, cred *model.Credential, endpointID, dirPath string) ([]model.FileEntry, error)
	// Mkdir は指定エンドポイント上にディレクトリを作成する。
	Mkdir(ctx context.Context, cred *model.Credential, endpointID, dirPath string) error
}

// Service は転送ジョブ提出のオーケストレーションを提供する。
// 提出・ステータス取得・ディレクトリ作成はすべて呼び出し元のリクエスト内で
// 同期的に実行され、自動リトライは行わない。
type Service struct {
	api            API
	sourceEndpoint string
	metrics        metrics.Recorder
}

// NewService はServiceを生成する。
// sourceEndpointはカタログのデータセットを提供するエンドポイントのID。
func NewService(api API, sourceEndpoint string, recorder metrics.Recorder) *Service {
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	return &Service{
		api:            api,
		sourceEndpoint: sourceEndpoint,
		metrics:        recorder,
	}
}

// SourceEndpoint はデータセットを提供するソースエンドポイントのIDを返す。
func (s *Service) SourceEndpoint() string {
	return s.sourceEndpoint
}

// Submit は転送ジョブを提出し、タスクIDを返す。
//
//  1. 提出IDを新規取得する。提出IDは論理的な提出試行ごとに新しく、
//     無関係な提出の間で再利用してはならない。
//  2. ソース・宛先の両エンドポイントを事前アクティベートする。
//     両者に順序依存はないため並行して実行し、どちらか一方でも失敗したら
//     ACTIVATION_FAILEDで全体を失敗させ、提出は一切試行しない。
//  3. 組み立てたリクエストを提出する。リモートのエラーは
//     SUBMISSION_FAILED(code, message)として呼び出し元に必ず伝搬する。
func (s *Service) Submit(ctx context.Context, cred *model.Credential, destinationEndpoint, label string, items []model.TransferItem) (string, error) {
	if len(items) == 0 {
		return "", model.NewEmptySelectionError()
	}
	if destinationEndpoint == "" {
		return "", model.NewActivationFailedError("", "destination endpoint is not specified")
	}

	start := time.Now()
	submissionID, err := s.api.SubmissionID(ctx, cred)
	if err != nil {
		s.metrics.RecordSubmission("failure")
		return "", model.NewSubmissionFailedError(faultCode(err), err.Error())
	}
	s.metrics.RecordRemoteCall("submission_id", time.Since(start))

	if err := s.activateBoth(ctx, cred, destinationEndpoint); err != nil {
		s.metrics.RecordSubmission("failure")
		return "", err
	}

	request := &model.TransferRequest{
		SubmissionID:        submissionID,
		SourceEndpoint:      s.sourceEndpoint,
		DestinationEndpoint: destinationEndpoint,
		Label:               label,
		Items:               items,
	}

	start = time.Now()
	taskID, err := s.api.Submit(ctx, cred, request)
	if err != nil {
		s.metrics.RecordSubmission("failure")
		return "", model.NewSubmissionFailedError(faultCode(err), faultMessage(err))
	}
	s.metrics.RecordRemoteCall("submit", time.Since(start))
	s.metrics.RecordSubmission("success")

	slog.Info("transfer submitted",
		slog.String("task_id", taskID),
		slog.String("submission_id", submissionID),
		slog.String("destination_endpoint", destinationEndpoint),
		slog.Int("item_count", len(items)),
	)

	return taskID, nil
}

// activateBoth はソースと宛先のエンドポイントを並行してアクティベートする。
// どちらかが失敗した場合は失敗したエンドポイントIDを含むACTIVATION_FAILEDを返す。
// 両方失敗した場合はソース側のエラーを優先する。
func (s *Service) activateBoth(ctx context.Context, cred *model.Credential, destinationEndpoint string) error {
	var wg sync.WaitGroup
	var srcErr, dstErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		srcErr = s.api.AutoActivate(ctx, cred, s.sourceEndpoint)
	}()
	go func() {
		defer wg.Done()
		dstErr = s.api.AutoActivate(ctx, cred, destinationEndpoint)
	}()
	wg.Wait()

	if srcErr != nil {
		s.metrics.RecordActivationFailure(s.sourceEndpoint)
		return model.NewActivationFailedError(s.sourceEndpoint, faultMessage(srcErr))
	}
	if dstErr != nil {
		s.metrics.RecordActivationFailure(destinationEndpoint)
		return model.NewActivationFailedError(destinationEndpoint, faultMessage(dstErr))
	}
	return nil
}

// Status は指定タスクの現在のステータスを取得する。
// タスク状態はリモート側で非同期に変化するため、ローカルキャッシュは持たず
// 毎回リモートから取得する。失敗はLOOKUP_FAILEDとして返し、
// 呼び出し元は次回のポーリングでリトライできる。
func (s *Service) Status(ctx context.Context, cred *model.Credential, taskID string) (*model.TransferTask, error) {
	start := time.Now()
	task, err := s.api.Task(ctx, cred, taskID)
	if err != nil {
		return nil, model.NewLookupFailedError(taskID, faultMessage(err))
	}
	s.metrics.RecordRemoteCall("task", time.Since(start))
	return task, nil
}

// EnsureDirectory は指定エンドポイント上にディレクトリを冪等に作成する。
// リモートが「既に存在する」と報告した場合は成功として扱い、
// それ以外の失敗はDIRECTORY_FAILEDとして伝搬する。
func (s *Service) EnsureDirectory(ctx context.Context, cred *model.Credential, endpointID, dirPath string) error {
	err := s.api.Mkdir(ctx, cred, endpointID, dirPath)
	if err == nil {
		return nil
	}

	var fault *APIFault
	if errors.As(err, &fault) && strings.Contains(fault.Code, "MkdirFailed.Exists") {
		// 冪等な作成: リトライによる再実行でも観測結果は同一
		return nil
	}
	return model.NewDirectoryFailedError(endpointID, dirPath, faultCode(err), faultMessage(err))
}

// ActivateEndpoint は単一エンドポイントをアクティベートする。
// ブラウズやグラフ生成など、提出以外の操作の前処理として使用する。
func (s *Service) ActivateEndpoint(ctx context.Context, cred *model.Credential, endpointID string) error {
	if err := s.api.AutoActivate(ctx, cred, endpointID); err != nil {
		s.metrics.RecordActivationFailure(endpointID)
		return model.NewActivationFailedError(endpointID, faultMessage(err))
	}
	return nil
}

// EndpointInfo は指定エンドポイントのメタデータを取得する。
func (s *Service) EndpointInfo(ctx context.Context, cred *model.Credential, endpointID string) (*model.Endpoint, error) {
	ep, err := s.api.Endpoint(ctx, cred, endpointID)
	if err != nil {
		return nil, remoteError(err)
	}
	return ep, nil
}

// BrowseDataset は指定データセットのファイル一覧を取得する。
// エンドポイントをアクティベートした上でリスティングを取得し、
// ファイルのみ（ディレクトリを除く）を返す。2番目の戻り値は
// エンドポイントのHTTPSサーバーを基準にしたデータセットのURI。
func (s *Service) BrowseDataset(ctx context.Context, cred *model.Credential, ds model.Dataset) ([]model.FileEntry, string, error) {
	if err := s.ActivateEndpoint(ctx, cred, s.sourceEndpoint); err != nil {
		return nil, "", err
	}

	entries, err := s.api.List(ctx, cred, s.sourceEndpoint, ds.Path)
	if err != nil {
		return nil, "", remoteError(err)
	}

	files := make([]model.FileEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Type == "file" {
			files = append(files, entry)
		}
	}

	var datasetURI string
	if ep, err := s.api.Endpoint(ctx, cred, s.sourceEndpoint); err == nil && ep.HTTPSServer != "" {
		datasetURI = strings.TrimSuffix(ep.HTTPSServer, "/") + "/" + strings.TrimPrefix(ds.Path, "/")
	}

	return files, datasetURI, nil
}

// faultCode はエラーからリモートのエラーコードを取り出す。
func faultCode(err error) string {
	var fault *APIFault
	if errors.As(err, &fault) {
		return fault.Code
	}
	return "NETWORK_ERROR"
}

// faultMessage はエラーからリモートのエラーメッセージを取り出す。
func faultMessage(err error) string {
	var fault *APIFault
	if errors.As(err, &fault) {
		return fault.Message
	}
	return err.Error()
}

// remoteError はリモートの構造化エラーを統一エラーフォーマットに変換する。
func remoteError(err error) error {
	var fault *APIFault
	if errors.As(err, &fault) {
		return &model.APIError{
			Code:     fault.Code,
			Message:  fault.Message,
			Category: "transfer",
			Action:   "しばらく待ってから再度お試しください。",
		}
	}
	return fmt.Errorf("transfer service unreachable: %w", err)
}

package transfer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/Raghu963/globus-sample-data-portal/internal/model"
)

// --- モック定義 ---

// mockAPI の可変状態はmuで保護する。
// AutoActivateはオーケストレーターから2つのゴルーチンで並行に呼ばれる。
type mockAPI struct {
	submissionIDFn func(ctx context.Context, cred *model.Credential) (string, error)
	autoActivateFn func(ctx context.Context, cred *model.Credential, endpointID string) error
	submitFn       func(ctx context.Context, cred *model.Credential, request *model.TransferRequest) (string, error)
	taskFn         func(ctx context.Context, cred *model.Credential, taskID string) (*model.TransferTask, error)
	endpointFn     func(ctx context.Context, cred *model.Credential, endpointID string) (*model.Endpoint, error)
	listFn         func(ctx context.Context, cred *model.Credential, endpointID, dirPath string) ([]model.FileEntry, error)
	mkdirFn        func(ctx context.Context, cred *model.Credential, endpointID, dirPath string) error

	mu                sync.Mutex
	submissionIDCalls int
	activatedIDs      []string
	submitCalls       int
	mkdirCalls        int
}

func (m *mockAPI) SubmissionID(ctx context.Context, cred *model.Credential) (string, error) {
	m.mu.Lock()
	m.submissionIDCalls++
	calls := m.submissionIDCalls
	m.mu.Unlock()
	if m.submissionIDFn != nil {
		return m.submissionIDFn(ctx, cred)
	}
	return fmt.Sprintf("sub-%d", calls), nil
}

func (m *mockAPI) AutoActivate(ctx context.Context, cred *model.Credential, endpointID string) error {
	m.mu.Lock()
	m.activatedIDs = append(m.activatedIDs, endpointID)
	m.mu.Unlock()
	if m.autoActivateFn != nil {
		return m.autoActivateFn(ctx, cred, endpointID)
	}
	return nil
}

func (m *mockAPI) Submit(ctx context.Context, cred *model.Credential, request *model.TransferRequest) (string, error) {
	m.mu.Lock()
	m.submitCalls++
	m.mu.Unlock()
	if m.submitFn != nil {
		return m.submitFn(ctx, cred, request)
	}
	return "task-1", nil
}

func (m *mockAPI) Task(ctx context.Context, cred *model.Credential, taskID string) (*model.TransferTask, error) {
	if m.taskFn != nil {
		return m.taskFn(ctx, cred, taskID)
	}
	return &model.TransferTask{TaskID: taskID, Status: "ACTIVE"}, nil
}

func (m *mockAPI) Endpoint(ctx context.Context, cred *model.Credential, endpointID string) (*model.Endpoint, error) {
	if m.endpointFn != nil {
		return m.endpointFn(ctx, cred, endpointID)
	}
	return &model.Endpoint{ID: endpointID, DisplayName: "Endpoint " + endpointID}, nil
}

func (m *mockAPI) List(ctx context.Context, cred *model.Credential, endpointID, dirPath string) ([]model.FileEntry, error) {
	if m.listFn != nil {
		return m.listFn(ctx, cred, endpointID, dirPath)
	}
	return nil, nil
}

func (m *mockAPI) Mkdir(ctx context.Context, cred *model.Credential, endpointID, dirPath string) error {
	m.mu.Lock()
	m.mkdirCalls++
	m.mu.Unlock()
	if m.mkdirFn != nil {
		return m.mkdirFn(ctx, cred, endpointID, dirPath)
	}
	return nil
}

var _ API = (*mockAPI)(nil)

func testItems() []model.TransferItem {
	return []model.TransferItem{
		{SourcePath: "/data/rain", DestinationPath: "/home/alice/Rainfall/", Recursive: true},
	}
}

func TestService_Submit_Success(t *testing.T) {
	var gotRequest *model.TransferRequest
	api := &mockAPI{
		submitFn: func(_ context.Context, _ *model.Credential, request *model.TransferRequest) (string, error) {
			gotRequest = request
			return "task-1", nil
		},
	}
	service := NewService(api, "src-ep-1", nil)

	taskID, err := service.Submit(context.Background(), testCred(), "dst-ep-1", "My label", testItems())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if taskID != "task-1" {
		t.Errorf("task id = %q, want task-1", taskID)
	}

	// 両エンドポイントが提出前にアクティベートされていること
	if len(api.activatedIDs) != 2 {
		t.Fatalf("activated endpoints = %v, want 2 entries", api.activatedIDs)
	}
	seen := map[string]bool{}
	for _, id := range api.activatedIDs {
		seen[id] = true
	}
	if !seen["src-ep-1"] || !seen["dst-ep-1"] {
		t.Errorf("activated endpoints = %v, want src-ep-1 and dst-ep-1", api.activatedIDs)
	}

	if gotRequest.SubmissionID == "" {
		t.Error("submission id should be set on the request")
	}
	if gotRequest.SourceEndpoint != "src-ep-1" || gotRequest.DestinationEndpoint != "dst-ep-1" {
		t.Errorf("endpoints = %q → %q", gotRequest.SourceEndpoint, gotRequest.DestinationEndpoint)
	}
	if gotRequest.Label != "My label" {
		t.Errorf("label = %q", gotRequest.Label)
	}
}

func TestService_Submit_FreshSubmissionIDPerCall(t *testing.T) {
	var usedIDs []string
	api := &mockAPI{
		submitFn: func(_ context.Context, _ *model.Credential, request *model.TransferRequest) (string, error) {
			usedIDs = append(usedIDs, request.SubmissionID)
			return "task", nil
		},
	}
	service := NewService(api, "src-ep-1", nil)

	for i := 0; i < 2; i++ {
		if _, err := service.Submit(context.Background(), testCred(), "dst-ep-1", "", testItems()); err != nil {
			t.Fatalf("Submit() #%d error = %v", i+1, err)
		}
	}

	if api.submissionIDCalls != 2 {
		t.Errorf("submission id requests = %d, want 2", api.submissionIDCalls)
	}
	if len(usedIDs) != 2 || usedIDs[0] == usedIDs[1] {
		t.Errorf("submission ids = %v, want two distinct values", usedIDs)
	}
}

func TestService_Submit_DestinationActivationFailed(t *testing.T) {
	api := &mockAPI{
		autoActivateFn: func(_ context.Context, _ *model.Credential, endpointID string) error {
			if endpointID == "dest-ep-1" {
				return &APIFault{Code: "AutoActivationFailed", Message: "no credential"}
			}
			return nil
		},
	}
	service := NewService(api, "src-ep-1", nil)

	_, err := service.Submit(context.Background(), testCred(), "dest-ep-1", "", testItems())

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeActivationFailed {
		t.Fatalf("error = %v, want ACTIVATION_FAILED", err)
	}
	// エラーメッセージには失敗したエンドポイントIDが含まれること
	if !strings.Contains(apiErr.Message, "dest-ep-1") {
		t.Errorf("message should name the failed endpoint: %q", apiErr.Message)
	}
	// アクティベーション失敗時は提出が一切試行されないこと
	if api.submitCalls != 0 {
		t.Errorf("submit calls = %d, want 0", api.submitCalls)
	}
}

func TestService_Submit_EmptyItems(t *testing.T) {
	api := &mockAPI{}
	service := NewService(api, "src-ep-1", nil)

	_, err := service.Submit(context.Background(), testCred(), "dst-ep-1", "", nil)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeEmptySelection {
		t.Fatalf("error = %v, want EMPTY_SELECTION", err)
	}
	// バリデーションエラーはネットワーク呼び出しの前に返ること
	if api.submissionIDCalls != 0 || len(api.activatedIDs) != 0 {
		t.Error("no remote calls should be made for an empty item list")
	}
}

func TestService_Submit_RemoteRejection(t *testing.T) {
	api := &mockAPI{
		submitFn: func(_ context.Context, _ *model.Credential, _ *model.TransferRequest) (string, error) {
			return "", &APIFault{Code: "ClientError.BadRequest", Message: "No such destination endpoint"}
		},
	}
	service := NewService(api, "src-ep-1", nil)

	_, err := service.Submit(context.Background(), testCred(), "dst-ep-1", "", testItems())

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeSubmissionFailed {
		t.Fatalf("error = %v, want SUBMISSION_FAILED", err)
	}
	// リモートのコードとメッセージがそのまま表面化すること
	if !strings.Contains(apiErr.Message, "ClientError.BadRequest") {
		t.Errorf("message should carry the remote code: %q", apiErr.Message)
	}
	if !strings.Contains(apiErr.Message, "No such destination endpoint") {
		t.Errorf("message should carry the remote message: %q", apiErr.Message)
	}
}

func TestService_Status(t *testing.T) {
	api := &mockAPI{
		taskFn: func(_ context.Context, _ *model.Credential, taskID string) (*model.TransferTask, error) {
			return &model.TransferTask{TaskID: taskID, Status: "SUCCEEDED", FilesTransferred: 12}, nil
		},
	}
	service := NewService(api, "src-ep-1", nil)

	task, err := service.Status(context.Background(), testCred(), "task-1")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if task.Status != "SUCCEEDED" {
		t.Errorf("Status = %q", task.Status)
	}
}

func TestService_Status_LookupFailed(t *testing.T) {
	api := &mockAPI{
		taskFn: func(_ context.Context, _ *model.Credential, _ string) (*model.TransferTask, error) {
			return nil, &APIFault{Code: "ServiceUnavailable", Message: "try again later"}
		},
	}
	service := NewService(api, "src-ep-1", nil)

	_, err := service.Status(context.Background(), testCred(), "task-1")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeLookupFailed {
		t.Fatalf("error = %v, want LOOKUP_FAILED", err)
	}
	if !strings.Contains(apiErr.Message, "task-1") {
		t.Errorf("message should name the task id: %q", apiErr.Message)
	}
}

func TestService_EnsureDirectory_Idempotent(t *testing.T) {
	calls := 0
	api := &mockAPI{
		mkdirFn: func(_ context.Context, _ *model.Credential, _, _ string) error {
			calls++
			if calls == 1 {
				return nil
			}
			// 2回目はリモートが「既に存在する」と報告する
			return &APIFault{Code: "MkdirFailed.Exists", Message: "Directory already exists"}
		},
	}
	service := NewService(api, "src-ep-1", nil)
	ctx := context.Background()

	// 同一引数の2回の呼び出しがどちらも成功すること
	if err := service.EnsureDirectory(ctx, testCred(), "ep-1", "/dest/Graphs/"); err != nil {
		t.Fatalf("EnsureDirectory() first call error = %v", err)
	}
	if err := service.EnsureDirectory(ctx, testCred(), "ep-1", "/dest/Graphs/"); err != nil {
		t.Fatalf("EnsureDirectory() second call error = %v", err)
	}
	if api.mkdirCalls != 2 {
		t.Errorf("mkdir calls = %d, want 2", api.mkdirCalls)
	}
}

func TestService_EnsureDirectory_OtherFailurePropagates(t *testing.T) {
	api := &mockAPI{
		mkdirFn: func(_ context.Context, _ *model.Credential, _, _ string) error {
			return &APIFault{Code: "PermissionDenied", Message: "not allowed"}
		},
	}
	service := NewService(api, "src-ep-1", nil)

	err := service.EnsureDirectory(context.Background(), testCred(), "ep-1", "/dest/")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeDirectoryFailed {
		t.Fatalf("error = %v, want DIRECTORY_FAILED", err)
	}
	if !strings.Contains(apiErr.Message, "PermissionDenied") {
		t.Errorf("message should carry the remote code: %q", apiErr.Message)
	}
}

func TestService_BrowseDataset(t *testing.T) {
	api := &mockAPI{
		listFn: func(_ context.Context, _ *model.Credential, endpointID, dirPath string) ([]model.FileEntry, error) {
			if endpointID != "src-ep-1" || dirPath != "/data/rain" {
				t.Errorf("List(%q, %q)", endpointID, dirPath)
			}
			return []model.FileEntry{
				{Name: "2024.csv", Type: "file", Size: 1024},
				{Name: "archive", Type: "dir"},
			}, nil
		},
		endpointFn: func(_ context.Context, _ *model.Credential, endpointID string) (*model.Endpoint, error) {
			return &model.Endpoint{ID: endpointID, HTTPSServer: "https://files.example.org"}, nil
		},
	}
	service := NewService(api, "src-ep-1", nil)

	ds := model.Dataset{ID: "ds1", Name: "Rainfall", Path: "/data/rain"}
	files, uri, err := service.BrowseDataset(context.Background(), testCred(), ds)
	if err != nil {
		t.Fatalf("BrowseDataset() error = %v", err)
	}

	// ディレクトリは除外されファイルのみ返ること
	if len(files) != 1 || files[0].Name != "2024.csv" {
		t.Errorf("files = %+v, want only 2024.csv", files)
	}
	if uri != "https://files.example.org/data/rain" {
		t.Errorf("dataset URI = %q", uri)
	}
}

// 並行する提出処理がモックの状態を破壊しないこと。-race での検出対象。
func TestService_Submit_ConcurrentCalls(t *testing.T) {
	api := &mockAPI{}
	service := NewService(api, "src-ep-1", nil)

	const submissions = 8
	var wg sync.WaitGroup
	for i := 0; i < submissions; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := service.Submit(context.Background(), testCred(), "dst-ep-1", "", testItems()); err != nil {
				t.Errorf("Submit() error = %v", err)
			}
		}()
	}
	wg.Wait()

	// 提出ごとに両エンドポイントがアクティベートされること
	if len(api.activatedIDs) != submissions*2 {
		t.Errorf("activations = %d, want %d", len(api.activatedIDs), submissions*2)
	}
	if api.submitCalls != submissions {
		t.Errorf("submit calls = %d, want %d", api.submitCalls, submissions)
	}
	if api.submissionIDCalls != submissions {
		t.Errorf("submission id requests = %d, want %d", api.submissionIDCalls, submissions)
	}
}

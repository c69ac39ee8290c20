// Package transfer は転送サービス連携機能を提供する。
// 転送サービスAPIのクライアント、転送アイテムの組み立て、
// 転送ジョブ提出のオーケストレーションを含む。
package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Raghu963/globus-sample-data-portal/internal/model"
)

// APIFault は転送サービスが返す構造化エラーを表す。
// リモートのエラーコードとメッセージをそのまま保持する。
type APIFault struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

// Error はerrorインターフェースを実装する。
func (f *APIFault) Error() string {
	return fmt.Sprintf("transfer API fault [%s]: %s", f.Code, f.Message)
}

// Client は転送サービスAPIのクライアント。
// 全呼び出しはベアラークレデンシャルを必要とし、非2xxレスポンスは
// 構造化された(code, message)エラーとして返す。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLは転送サービスAPIのルートURL（末尾スラッシュなし）。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

// do はリクエストを実行し、2xxの場合のみレスポンスボディを返す。
// 非2xxの場合はボディをAPIFaultとしてデコードして返す。
func (c *Client) do(ctx context.Context, cred *model.Credential, method, path string, reqBody any) ([]byte, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("transfer API request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("transfer API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read transfer API response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		fault := &APIFault{Status: resp.StatusCode}
		if err := json.Unmarshal(body, fault); err != nil || fault.Code == "" {
			fault.Code = fmt.Sprintf("HTTP%d", resp.StatusCode)
			fault.Message = strings.TrimSpace(string(body))
		}
		c.logger.Error("transfer API returned a fault",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
			slog.String("fault_code", fault.Code),
		)
		return nil, fault
	}

	return body, nil
}

// SubmissionID は転送サービスから新しい提出IDを取得する。
// 提出IDはリトライされた提出を同一ジョブとして重複排除するための冪等キーであり、
// 論理的な提出試行ごとに新規取得しなければならない。
func (c *Client) SubmissionID(ctx context.Context, cred *model.Credential) (string, error) {
	body, err := c.do(ctx, cred, http.MethodGet, "/submission_id", nil)
	if err != nil {
		return "", err
	}

	var resp struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse submission_id response: %w", err)
	}
	if resp.Value == "" {
		return "", fmt.Errorf("empty submission id in response")
	}
	return resp.Value, nil
}

// AutoActivate は指定エンドポイントをアクティベートする。
// 転送サービスはアクティベーション失敗を200応答のcodeフィールドで
// 返すことがあるため、レスポンスコードも検査する。
func (c *Client) AutoActivate(ctx context.Context, cred *model.Credential, endpointID string) error {
	path := "/endpoint/" + url.PathEscape(endpointID) + "/autoactivate"
	body, err := c.do(ctx, cred, http.MethodPost, path, nil)
	if err != nil {
		return err
	}

	var resp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to parse autoactivate response: %w", err)
	}
	if strings.HasPrefix(resp.Code, "AutoActivationFailed") {
		return &APIFault{Code: resp.Code, Message: resp.Message}
	}
	return nil
}

// transferItemDocument は転送アイテムのワイヤ表現。
type transferItemDocument struct {
	DataType        string `json:"DATA_TYPE"`
	SourcePath      string `json:"source_path"`
	DestinationPath string `json:"destination_path"`
	Recursive       bool   `json:"recursive"`
}

// transferDocument は転送ジョブのワイヤ表現。
type transferDocument struct {
	DataType            string                 `json:"DATA_TYPE"`
	SubmissionID        string                 `json:"submission_id"`
	SourceEndpoint      string                 `json:"source_endpoint"`
	DestinationEndpoint string                 `json:"destination_endpoint"`
	Label               string                 `json:"label,omitempty"`
	Data                []transferItemDocument `json:"DATA"`
}

// Submit は転送ジョブを提出し、タスクIDを返す。
func (c *Client) Submit(ctx context.Context, cred *model.Credential, request *model.TransferRequest) (string, error) {
	doc := transferDocument{
		DataType:            "transfer",
		SubmissionID:        request.SubmissionID,
		SourceEndpoint:      request.SourceEndpoint,
		DestinationEndpoint: request.DestinationEndpoint,
		Label:               request.Label,
	}
	for _, item := range request.Items {
		doc.Data = append(doc.Data, transferItemDocument{
			DataType:        "transfer_item",
			SourcePath:      item.SourcePath,
			DestinationPath: item.DestinationPath,
			Recursive:       item.Recursive,
		})
	}

	body, err := c.do(ctx, cred, http.MethodPost, "/transfer", doc)
	if err != nil {
		return "", err
	}

	var resp struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse transfer response: %w", err)
	}
	if resp.TaskID == "" {
		return "", fmt.Errorf("empty task id in response")
	}
	return resp.TaskID, nil
}

// Task は指定タスクの現在のステータスを取得する。
func (c *Client) Task(ctx context.Context, cred *model.Credential, taskID string) (*model.TransferTask, error) {
	body, err := c.do(ctx, cred, http.MethodGet, "/task/"+url.PathEscape(taskID), nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		TaskID                         string `json:"task_id"`
		Status                         string `json:"status"`
		FilesTransferred               int    `json:"files_transferred"`
		Faults                         int    `json:"faults"`
		SourceEndpointDisplayName      string `json:"source_endpoint_display_name"`
		DestinationEndpointDisplayName string `json:"destination_endpoint_display_name"`
		RequestTime                    string `json:"request_time"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse task response: %w", err)
	}

	task := &model.TransferTask{
		TaskID:           resp.TaskID,
		Status:           resp.Status,
		FilesTransferred: resp.FilesTransferred,
		FaultCount:       resp.Faults,
		SourceName:       resp.SourceEndpointDisplayName,
		DestinationName:  resp.DestinationEndpointDisplayName,
	}
	if resp.RequestTime != "" {
		if ts, err := time.Parse(time.RFC3339, resp.RequestTime); err == nil {
			task.RequestTime = ts
		}
	}
	return task, nil
}

// Endpoint は指定エンドポイントのメタデータを取得する。
func (c *Client) Endpoint(ctx context.Context, cred *model.Credential, endpointID string) (*model.Endpoint, error) {
	body, err := c.do(ctx, cred, http.MethodGet, "/endpoint/"+url.PathEscape(endpointID), nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
		HTTPSServer string `json:"https_server"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse endpoint response: %w", err)
	}

	ep := &model.Endpoint{
		ID:          resp.ID,
		DisplayName: resp.DisplayName,
		HTTPSServer: resp.HTTPSServer,
	}
	if ep.ID == "" {
		ep.ID = endpointID
	}
	return ep, nil
}

// List は指定エンドポイント上のディレクトリリスティングを取得する。
func (c *Client) List(ctx context.Context, cred *model.Credential, endpointID, dirPath string) ([]model.FileEntry, error) {
	path := "/operation/endpoint/" + url.PathEscape(endpointID) + "/ls?path=" + url.QueryEscape(dirPath)
	body, err := c.do(ctx, cred, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []model.FileEntry `json:"DATA"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse listing response: %w", err)
	}
	return resp.Data, nil
}

// Mkdir は指定エンドポイント上にディレクトリを作成する。
// 既に存在する場合の判定は呼び出し元（EnsureDirectory）が行う。
func (c *Client) Mkdir(ctx context.Context, cred *model.Credential, endpointID, dirPath string) error {
	path := "/operation/endpoint/" + url.PathEscape(endpointID) + "/mkdir"
	doc := map[string]string{
		"DATA_TYPE": "mkdir",
		"path":      dirPath,
	}
	_, err := c.do(ctx, cred, http.MethodPost, path, doc)
	return err
}

// compile-time interface check
var _ API = (*Client)(nil)

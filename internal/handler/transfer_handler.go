package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Raghu963/globus-sample-data-portal/internal/catalog"
	"github.com/Raghu963/globus-sample-data-portal/internal/middleware"
	"github.com/Raghu963/globus-sample-data-portal/internal/model"
	"github.com/Raghu963/globus-sample-data-portal/internal/transfer"
)

// TransferServiceInterface は転送ハンドラーが必要とするサービスインターフェース。
type TransferServiceInterface interface {
	Submit(ctx context.Context, cred *model.Credential, destinationEndpoint, label string, items []model.TransferItem) (string, error)
	Status(ctx context.Context, cred *model.Credential, taskID string) (*model.TransferTask, error)
}

// SessionSaver はセッションの保存に必要なインターフェース。
// 保留中のデータセット選択をセッションへ永続化するために使用する。
type SessionSaver interface {
	Save(ctx context.Context, session *model.Session) error
}

// TransferHandler は転送リクエスト関連のHTTPハンドラー。
type TransferHandler struct {
	service  TransferServiceInterface
	catalog  *catalog.Catalog
	sessions SessionSaver
}

// NewTransferHandler はTransferHandlerを生成する。
func NewTransferHandler(service TransferServiceInterface, cat *catalog.Catalog, sessions SessionSaver) *TransferHandler {
	return &TransferHandler{
		service:  service,
		catalog:  cat,
		sessions: sessions,
	}
}

// submitRequest は転送リクエストのボディ。
// destination_endpoint が空の場合は選択だけをセッションに保留し、
// 宛先の選択後に改めて呼び出す二段階のフローを想定する。
type submitRequest struct {
	DatasetIDs          []string `json:"dataset_ids"`
	DestinationEndpoint string   `json:"destination_endpoint"`
	DestinationBase     string   `json:"destination_base"`
	Subfolder           string   `json:"subfolder"`
	Label               string   `json:"label"`
}

// Submit は転送リクエストを受け付ける。
// POST /api/transfers
func (h *TransferHandler) Submit(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		writeAPIError(w, err)
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, model.NewEmptySelectionError())
		return
	}

	// 宛先未指定の場合は選択をセッションに保留する
	if req.DestinationEndpoint == "" {
		if len(req.DatasetIDs) == 0 {
			writeAPIError(w, model.NewEmptySelectionError())
			return
		}
		session.PendingSelection = req.DatasetIDs
		if err := h.sessions.Save(r.Context(), session); err != nil {
			slog.Error("failed to save pending selection", slog.String("error", err.Error()))
			middleware.WriteInternalServerError(w)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"pending_selection": session.PendingSelection,
		})
		return
	}

	// ボディに選択がなければ保留中の選択を使う
	selection := req.DatasetIDs
	if len(selection) == 0 {
		selection = session.PendingSelection
	}

	items, err := transfer.BuildItems(selection, h.catalog, req.DestinationBase, req.Subfolder)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	label := req.Label
	if label == "" {
		label = "Sample data portal transfer"
	}

	taskID, err := h.service.Submit(r.Context(), session.Credential, req.DestinationEndpoint, label, items)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	// 提出に成功したら保留中の選択をクリアする
	if len(session.PendingSelection) > 0 {
		session.PendingSelection = nil
		if err := h.sessions.Save(r.Context(), session); err != nil {
			slog.Warn("failed to clear pending selection", slog.String("error", err.Error()))
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"task_id": taskID,
	})
}

// taskResponse は転送タスクのレスポンス型。
type taskResponse struct {
	TaskID           string `json:"task_id"`
	Status           string `json:"status"`
	FilesTransferred int    `json:"files_transferred"`
	FaultCount       int    `json:"fault_count"`
	SourceName       string `json:"source_name"`
	DestinationName  string `json:"destination_name"`
	RequestTime      string `json:"request_time"`
}

// Status は転送タスクの最新ステータスを返す。
// GET /api/transfers/{taskID}
// キャッシュは行わず、毎回リモートから取得する。
func (h *TransferHandler) Status(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		writeAPIError(w, err)
		return
	}

	taskID := chi.URLParam(r, "taskID")
	task, err := h.service.Status(r.Context(), session.Credential, taskID)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	resp := taskResponse{
		TaskID:           task.TaskID,
		Status:           task.Status,
		FilesTransferred: task.FilesTransferred,
		FaultCount:       task.FaultCount,
		SourceName:       task.SourceName,
		DestinationName:  task.DestinationName,
	}
	if !task.RequestTime.IsZero() {
		resp.RequestTime = task.RequestTime.Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

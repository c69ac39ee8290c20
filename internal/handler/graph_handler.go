package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Raghu963/globus-sample-data-portal/internal/graph"
	"github.com/Raghu963/globus-sample-data-portal/internal/middleware"
	"github.com/Raghu963/globus-sample-data-portal/internal/model"
)

// GraphServiceInterface はグラフハンドラーが必要とするサービスインターフェース。
type GraphServiceInterface interface {
	Generate(ctx context.Context, cred *model.Credential, username, year string, selection []string) (*graph.Result, error)
}

// GraphHandler は気候グラフ生成のHTTPハンドラー。
type GraphHandler struct {
	service GraphServiceInterface
}

// NewGraphHandler はGraphHandlerを生成する。
func NewGraphHandler(service GraphServiceInterface) *GraphHandler {
	return &GraphHandler{service: service}
}

// generateRequest はグラフ生成リクエストのボディ。
type generateRequest struct {
	DatasetIDs []string `json:"dataset_ids"`
	Year       string   `json:"year"`
}

// Generate は選択されたデータセットと年のグラフを生成する。
// POST /api/graphs
func (h *GraphHandler) Generate(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		writeAPIError(w, err)
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, model.NewEmptySelectionError())
		return
	}

	result, err := h.service.Generate(r.Context(), session.Credential, session.Username, req.Year, req.DatasetIDs)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Raghu963/globus-sample-data-portal/internal/catalog"
	"github.com/Raghu963/globus-sample-data-portal/internal/middleware"
	"github.com/Raghu963/globus-sample-data-portal/internal/model"
)

// DatasetBrowser はデータセットのファイル一覧取得に必要なインターフェース。
type DatasetBrowser interface {
	BrowseDataset(ctx context.Context, cred *model.Credential, ds model.Dataset) ([]model.FileEntry, string, error)
}

// DatasetHandler はデータセットカタログ関連のHTTPハンドラー。
type DatasetHandler struct {
	catalog *catalog.Catalog
	browser DatasetBrowser
}

// NewDatasetHandler はDatasetHandlerを生成する。
func NewDatasetHandler(cat *catalog.Catalog, browser DatasetBrowser) *DatasetHandler {
	return &DatasetHandler{
		catalog: cat,
		browser: browser,
	}
}

// datasetResponse はデータセット一覧のレスポンス型。
type datasetResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// List はカタログの全データセットを返す。
// GET /api/datasets
func (h *DatasetHandler) List(w http.ResponseWriter, r *http.Request) {
	all := h.catalog.All()
	results := make([]datasetResponse, len(all))
	for i, ds := range all {
		results[i] = datasetResponse{ID: ds.ID, Name: ds.Name, Path: ds.Path}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"datasets": results,
	})
}

// fileResponse はファイル一覧のレスポンス型。
type fileResponse struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	URI  string `json:"uri"`
}

// Browse は指定データセットのファイル一覧を返す。
// GET /api/datasets/{id}/files
// 未知のデータセットIDには404を返す。
func (h *DatasetHandler) Browse(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		writeAPIError(w, err)
		return
	}

	datasetID := chi.URLParam(r, "id")
	ds, ok := h.catalog.ByID(datasetID)
	if !ok {
		writeAPIError(w, model.NewDatasetNotFoundError(datasetID))
		return
	}

	files, datasetURI, err := h.browser.BrowseDataset(r.Context(), session.Credential, ds)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	results := make([]fileResponse, len(files))
	for i, f := range files {
		uri := ""
		if datasetURI != "" {
			uri = datasetURI + "/" + f.Name
		}
		results[i] = fileResponse{Name: f.Name, Size: f.Size, URI: uri}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"dataset_id": ds.ID,
		"files":      results,
	})
}

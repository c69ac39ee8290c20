package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Raghu963/globus-sample-data-portal/internal/middleware"
	"github.com/Raghu963/globus-sample-data-portal/internal/model"
	"github.com/Raghu963/globus-sample-data-portal/internal/repository"
)

// ProfileHandler はユーザープロファイルのHTTPハンドラー。
type ProfileHandler struct {
	profiles repository.ProfileRepository
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(profiles repository.ProfileRepository) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// profileResponse はプロファイルのレスポンス型。
type profileResponse struct {
	Identity string `json:"identity"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Project  string `json:"project"`
}

// Get は現在のユーザーのプロファイルを返す。
// GET /api/profile
// 未登録の場合は空のプロファイルを返す。
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		writeAPIError(w, err)
		return
	}

	profile, err := h.profiles.FindByIdentity(r.Context(), session.Identity)
	if err != nil {
		slog.Error("failed to load profile", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	resp := profileResponse{Identity: session.Identity}
	if profile != nil {
		resp.Name = profile.Name
		resp.Email = profile.Email
		resp.Project = profile.Project
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// updateProfileRequest はプロファイル更新リクエストのボディ。
type updateProfileRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Project string `json:"project"`
}

// Update は現在のユーザーのプロファイルを作成または更新する。
// PUT /api/profile
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		writeAPIError(w, err)
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの形式が正しくありません。",
			Category: "validation",
			Action:   "JSONの形式を確認してください。",
		})
		return
	}

	profile := &model.Profile{
		Identity:  session.Identity,
		Name:      req.Name,
		Email:     req.Email,
		Project:   req.Project,
		UpdatedAt: time.Now(),
	}
	if err := h.profiles.Upsert(r.Context(), profile); err != nil {
		slog.Error("failed to save profile", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profileResponse{
		Identity: profile.Identity,
		Name:     profile.Name,
		Email:    profile.Email,
		Project:  profile.Project,
	})
}

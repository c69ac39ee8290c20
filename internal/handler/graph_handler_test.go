package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Raghu963/globus-sample-data-portal/internal/graph"
	"github.com/Raghu963/globus-sample-data-portal/internal/middleware"
	"github.com/Raghu963/globus-sample-data-portal/internal/model"
)

// mockGraphService はGraphServiceInterfaceのモック実装。
type mockGraphService struct {
	generateFn func(ctx context.Context, cred *model.Credential, username, year string, selection []string) (*graph.Result, error)
}

func (m *mockGraphService) Generate(ctx context.Context, cred *model.Credential, username, year string, selection []string) (*graph.Result, error) {
	if m.generateFn != nil {
		return m.generateFn(ctx, cred, username, year, selection)
	}
	return &graph.Result{}, nil
}

var _ GraphServiceInterface = (*mockGraphService)(nil)

func TestGraphHandler_Generate(t *testing.T) {
	var gotUsername, gotYear string
	var gotSelection []string
	service := &mockGraphService{
		generateFn: func(_ context.Context, cred *model.Credential, username, year string, selection []string) (*graph.Result, error) {
			if cred == nil || cred.AccessToken != "at-1" {
				t.Errorf("credential = %+v", cred)
			}
			gotUsername, gotYear, gotSelection = username, year, selection
			return &graph.Result{
				GraphCount:      2,
				DestinationPath: "/Graphs for alice@example.org/",
				DestinationName: "Graph Share",
			}, nil
		},
	}
	h := NewGraphHandler(service)

	body := `{"dataset_ids":["rainfall"],"year":"2016"}`
	w := httptest.NewRecorder()
	h.Generate(w, sessionRequest(http.MethodPost, "/api/graphs", body))

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Result().StatusCode)
	}
	if gotUsername != "alice@example.org" || gotYear != "2016" {
		t.Errorf("username/year = %q/%q", gotUsername, gotYear)
	}
	if len(gotSelection) != 1 || gotSelection[0] != "rainfall" {
		t.Errorf("selection = %v", gotSelection)
	}

	var result graph.Result
	json.NewDecoder(w.Result().Body).Decode(&result)
	if result.GraphCount != 2 || result.DestinationName != "Graph Share" {
		t.Errorf("result = %+v", result)
	}
}

func TestGraphHandler_Generate_InvalidYear(t *testing.T) {
	service := &mockGraphService{
		generateFn: func(_ context.Context, _ *model.Credential, _, year string, _ []string) (*graph.Result, error) {
			return nil, model.NewInvalidYearError(year)
		},
	}
	h := NewGraphHandler(service)

	body := `{"dataset_ids":["rainfall"],"year":"20x6"}`
	w := httptest.NewRecorder()
	h.Generate(w, sessionRequest(http.MethodPost, "/api/graphs", body))

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Result().StatusCode)
	}
	var respBody middleware.ErrorResponseBody
	json.NewDecoder(w.Result().Body).Decode(&respBody)
	if respBody.Code != model.ErrCodeInvalidYear {
		t.Errorf("error code = %q, want INVALID_YEAR", respBody.Code)
	}
}

func TestGraphHandler_Generate_BlockedURL(t *testing.T) {
	service := &mockGraphService{
		generateFn: func(_ context.Context, _ *model.Credential, _, _ string, _ []string) (*graph.Result, error) {
			return nil, model.NewSSRFBlockedError()
		},
	}
	h := NewGraphHandler(service)

	body := `{"dataset_ids":["rainfall"],"year":"2016"}`
	w := httptest.NewRecorder()
	h.Generate(w, sessionRequest(http.MethodPost, "/api/graphs", body))

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Result().StatusCode)
	}
}

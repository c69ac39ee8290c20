package graph

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/Raghu963/globus-sample-data-portal/internal/catalog"
	"github.com/Raghu963/globus-sample-data-portal/internal/metrics"
	"github.com/Raghu963/globus-sample-data-portal/internal/model"
)

// Endpoints はグラフ生成に必要な転送レイヤーの操作を定義する。
type Endpoints interface {
	// EndpointInfo は指定エンドポイントのメタデータを取得する。
	EndpointInfo(ctx context.Context, cred *model.Credential, endpointID string) (*model.Endpoint, error)

	// ActivateEndpoint は指定エンドポイントをアクティベートする。
	ActivateEndpoint(ctx context.Context, cred *model.Credential, endpointID string) error

	// EnsureDirectory は指定エンドポイント上にディレクトリを冪等に作成する。
	EnsureDirectory(ctx context.Context, cred *model.Credential, endpointID, dirPath string) error
}

// URLValidator はリモートから報告されたURLの事前検証を定義する。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// DefaultMaxCSVBytes はCSVレスポンスの既定の最大サイズ。
const DefaultMaxCSVBytes = 32 << 20

// Config はグラフ生成サービスの設定。
type Config struct {
	// DatasetEndpointID は気候データセットが公開されているエンドポイント。
	DatasetEndpointID string
	// GraphEndpointID は生成したグラフのアップロード先エンドポイント。
	GraphEndpointID string
	// GraphEndpointBase はアップロード先エンドポイント上のベースパス。
	GraphEndpointBase string
	// MaxCSVBytes はCSVレスポンスの最大サイズ。0の場合はDefaultMaxCSVBytes。
	MaxCSVBytes int64
}

// Result はグラフ生成の結果。
type Result struct {
	GraphCount      int      `json:"graph_count"`
	DestinationPath string   `json:"destination_path"`
	DestinationName string   `json:"destination_name"`
	Filenames       []string `json:"filenames"`
}

// Service はグラフ生成の一連の処理を担う。
// 選択されたデータセットのCSVをHTTPSサーバーから取得し、
// 月次サマリーからSVGを生成して共有エンドポイントへアップロードする。
type Service struct {
	endpoints  Endpoints
	catalog    *catalog.Catalog
	validator  URLValidator
	httpClient *http.Client
	config     Config
	metrics    metrics.Recorder
	logger     *slog.Logger
}

// NewService はグラフ生成サービスの新しいインスタンスを生成する。
// httpClient にはSSRF防止機能付きのクライアントを渡すこと。
func NewService(endpoints Endpoints, cat *catalog.Catalog, validator URLValidator, httpClient *http.Client, config Config, recorder metrics.Recorder, logger *slog.Logger) *Service {
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	if config.MaxCSVBytes <= 0 {
		config.MaxCSVBytes = DefaultMaxCSVBytes
	}
	return &Service{
		endpoints:  endpoints,
		catalog:    cat,
		validator:  validator,
		httpClient: httpClient,
		config:     config,
		metrics:    recorder,
		logger:     logger,
	}
}

// yearPattern は受け付ける年の形式。
var yearPattern = regexp.MustCompile(`^\d{4}$`)

// Generate は選択されたデータセットと年のグラフを生成してアップロードする。
//
// 処理の流れ:
//  1. 年とデータセット選択のバリデーション
//  2. 両エンドポイントのHTTPSサーバーURLを解決
//  3. データセットごとにCSVを取得し、降水量と気温のSVGを生成
//  4. アップロード先をアクティベートし、ユーザーごとのディレクトリを冪等に作成
//  5. SVGをアップロード先へPUT
func (s *Service) Generate(ctx context.Context, cred *model.Credential, username, year string, selection []string) (*Result, error) {
	if !yearPattern.MatchString(year) {
		return nil, model.NewInvalidYearError(year)
	}

	selected := s.catalog.Filter(selection)
	if len(selected) == 0 {
		return nil, model.NewEmptySelectionError()
	}

	sourceInfo, err := s.endpoints.EndpointInfo(ctx, cred, s.config.DatasetEndpointID)
	if err != nil {
		return nil, err
	}
	destInfo, err := s.endpoints.EndpointInfo(ctx, cred, s.config.GraphEndpointID)
	if err != nil {
		return nil, err
	}
	if sourceInfo.HTTPSServer == "" || destInfo.HTTPSServer == "" {
		return nil, model.NewFetchFailedError("データセットとグラフの両エンドポイントがHTTPSサーバーを公開している必要があります")
	}

	// ユーザーごとの出力先ディレクトリ
	destPath := fmt.Sprintf("%sGraphs for %s/", s.config.GraphEndpointBase, username)

	type renderedGraph struct {
		Filename string
		SVG      string
	}
	graphs := make([]renderedGraph, 0, len(selected)*2)

	for _, ds := range selected {
		summary, err := s.fetchSummary(ctx, cred, sourceInfo.HTTPSServer, ds, year)
		if err != nil {
			return nil, err
		}

		precipTitle := fmt.Sprintf("Precipitation from %s for %s", ds.Name, year)
		graphs = append(graphs, renderedGraph{
			Filename: precipTitle,
			SVG:      RenderPrecipitation(precipTitle, summary),
		})

		tempTitle := fmt.Sprintf("Temperatures from %s for %s", ds.Name, year)
		graphs = append(graphs, renderedGraph{
			Filename: tempTitle,
			SVG:      RenderTemperatures(tempTitle, summary),
		})
	}

	if err := s.endpoints.ActivateEndpoint(ctx, cred, s.config.GraphEndpointID); err != nil {
		return nil, err
	}
	if err := s.endpoints.EnsureDirectory(ctx, cred, s.config.GraphEndpointID, destPath); err != nil {
		return nil, err
	}

	result := &Result{
		DestinationPath: destPath,
		DestinationName: destInfo.DisplayName,
	}
	for _, g := range graphs {
		if err := s.upload(ctx, cred, destInfo.HTTPSServer, destPath, g.Filename, g.SVG); err != nil {
			return nil, err
		}
		result.GraphCount++
		result.Filenames = append(result.Filenames, g.Filename+".svg")
	}

	s.logger.InfoContext(ctx, "graphs uploaded",
		slog.Int("count", result.GraphCount),
		slog.String("destination_path", destPath),
		slog.String("destination_endpoint", s.config.GraphEndpointID),
	)
	return result, nil
}

// fetchSummary はデータセットの指定年のCSVをHTTPSサーバーから取得して集計する。
func (s *Service) fetchSummary(ctx context.Context, cred *model.Credential, httpsServer string, ds model.Dataset, year string) (YearSummary, error) {
	var summary YearSummary

	csvURL := fmt.Sprintf("%s/%s/%s.csv",
		strings.TrimSuffix(httpsServer, "/"),
		strings.Trim(ds.Path, "/"),
		year,
	)
	if err := s.validator.ValidateURL(csvURL); err != nil {
		s.logger.WarnContext(ctx, "blocked unsafe dataset URL",
			slog.String("url", csvURL),
			slog.String("error", err.Error()),
		)
		return summary, model.NewSSRFBlockedError()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, csvURL, nil)
	if err != nil {
		return summary, fmt.Errorf("failed to create CSV request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return summary, model.NewFetchFailedError(err.Error())
	}
	defer resp.Body.Close()
	s.metrics.RecordRemoteCall("https_get", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return summary, model.NewFetchFailedError(
			fmt.Sprintf("データセット %s の %s 年のCSV取得が HTTP %d で失敗しました", ds.ID, year, resp.StatusCode))
	}

	// リモートのHTTPSサーバーを信用せず、読み取りサイズを上限で打ち切る
	limited := &io.LimitedReader{R: resp.Body, N: s.config.MaxCSVBytes + 1}
	summary, err = Summarize(limited)
	if err != nil {
		return summary, model.NewFetchFailedError(err.Error())
	}
	if limited.N <= 0 {
		return summary, model.NewFetchFailedError(
			fmt.Sprintf("データセット %s のCSVがサイズ上限 %d バイトを超えています", ds.ID, s.config.MaxCSVBytes))
	}
	return summary, nil
}

// upload は生成したSVGをアップロード先エンドポイントのHTTPSサーバーへPUTする。
func (s *Service) upload(ctx context.Context, cred *model.Credential, httpsServer, destPath, filename, svg string) error {
	uploadURL := fmt.Sprintf("%s%s%s.svg",
		strings.TrimSuffix(httpsServer, "/")+"/",
		strings.TrimPrefix(destPath, "/"),
		filename,
	)
	if err := s.validator.ValidateURL(uploadURL); err != nil {
		s.logger.WarnContext(ctx, "blocked unsafe upload URL",
			slog.String("url", uploadURL),
			slog.String("error", err.Error()),
		)
		return model.NewSSRFBlockedError()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, strings.NewReader(svg))
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Content-Type", "image/svg+xml")

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return model.NewFetchFailedError(err.Error())
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()
	s.metrics.RecordRemoteCall("https_put", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.NewFetchFailedError(
			fmt.Sprintf("グラフ %s のアップロードが HTTP %d で失敗しました", filename, resp.StatusCode))
	}
	return nil
}

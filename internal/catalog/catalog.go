// Package catalog は転送可能なデータセットの静的カタログを提供する。
// カタログはビルド時に埋め込まれ、実行時には読み取り専用として扱う。
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/Raghu963/globus-sample-data-portal/internal/model"
)

//go:embed datasets.json
var datasetsJSON []byte

// Catalog はデータセットの読み取り専用カタログ。
type Catalog struct {
	datasets []model.Dataset
	byID     map[string]model.Dataset
}

// New は指定されたデータセット一覧からCatalogを生成する。
func New(datasets []model.Dataset) *Catalog {
	byID := make(map[string]model.Dataset, len(datasets))
	for _, ds := range datasets {
		byID[ds.ID] = ds
	}
	return &Catalog{datasets: datasets, byID: byID}
}

// Load は埋め込まれたカタログを読み込む。
func Load() (*Catalog, error) {
	var datasets []model.Dataset
	if err := json.Unmarshal(datasetsJSON, &datasets); err != nil {
		return nil, fmt.Errorf("failed to parse embedded dataset catalog: %w", err)
	}
	if len(datasets) == 0 {
		return nil, fmt.Errorf("embedded dataset catalog is empty")
	}
	return New(datasets), nil
}

// All は全データセットを登録順で返す。
func (c *Catalog) All() []model.Dataset {
	out := make([]model.Dataset, len(c.datasets))
	copy(out, c.datasets)
	return out
}

// ByID は指定IDのデータセットを返す。
func (c *Catalog) ByID(id string) (model.Dataset, bool) {
	ds, ok := c.byID[id]
	return ds, ok
}

// Filter は指定ID集合に含まれるデータセットをカタログの登録順で返す。
// カタログに存在しないIDは無視される。
func (c *Catalog) Filter(ids []string) []model.Dataset {
	selected := make(map[string]bool, len(ids))
	for _, id := range ids {
		selected[id] = true
	}

	var out []model.Dataset
	for _, ds := range c.datasets {
		if selected[ds.ID] {
			out = append(out, ds)
		}
	}
	return out
}

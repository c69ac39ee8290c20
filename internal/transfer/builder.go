package transfer

import (
	"github.com/Raghu963/globus-sample-data-portal/internal/catalog"
	"github.com/Raghu963/globus-sample-data-portal/internal/model"
)

// BuildItems はデータセット選択と宛先パスから転送アイテム列を組み立てる。
//
// カタログを正とし、カタログに存在しないIDは黙って除外する。選択が空の場合、
// および除外の結果アイテムが1件も残らない場合はEMPTY_SELECTIONを返す。
// 宛先パスの合成順は「宛先ベース → サブフォルダ/ → データセット名/」で固定。
// 純粋関数であり、ネットワークにもセッションにもアクセスしない。
func BuildItems(selection []string, cat *catalog.Catalog, destinationBase, subfolder string) ([]model.TransferItem, error) {
	if len(selection) == 0 {
		return nil, model.NewEmptySelectionError()
	}

	datasets := cat.Filter(selection)
	if len(datasets) == 0 {
		return nil, model.NewEmptySelectionError()
	}

	items := make([]model.TransferItem, 0, len(datasets))
	for _, ds := range datasets {
		dest := destinationBase
		if subfolder != "" {
			dest += subfolder + "/"
		}
		dest += ds.Name + "/"

		items = append(items, model.TransferItem{
			SourcePath:      ds.Path,
			DestinationPath: dest,
			Recursive:       true,
		})
	}

	return items, nil
}

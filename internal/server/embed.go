package server

import (
	"embed"
	"fmt"
	"io/fs"
	"log"
	"net/http"
)

//go:embed all:dist
var embedFS embed.FS

// GetAssetsFS は埋め込みのdist/assetsを返す
func GetAssetsFS() http.FileSystem {
	// dist/assets のサブディレクトリを取得
	assetsFS, err := fs.Sub(embedFS, "dist/assets")
	if err != nil {
		log.Fatalf("埋め込みアセットファイルシステムの作成に失敗: %v", err)
	}
	return http.FS(assetsFS)
}

// indexHTML は撮影画面のHTMLを返す
func indexHTML() ([]byte, error) {
	data, err := embedFS.ReadFile("dist/index.html")
	if err != nil {
		return nil, fmt.Errorf("埋め込みindex.htmlの読み込みに失敗: %w", err)
	}
	return data, nil
}

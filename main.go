package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"

	"purikura/internal/app"
	"purikura/internal/config"
	"purikura/internal/logging"
)

func main() {
	// 設定を読み込む（PURIKURA_CONFIG でファイルを指定できる）
	cfg, err := config.Load(os.Getenv("PURIKURA_CONFIG"))
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("ロガーの作成に失敗しました: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	gin.SetMode(gin.ReleaseMode)

	// サーバーを起動
	if err := app.Run(context.Background(), cfg, logger); err != nil {
		_ = logger.Sync()
		log.Fatalf("サーバーの起動に失敗しました: %v", err)
	}
}

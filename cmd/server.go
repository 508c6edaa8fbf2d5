// Package main はプリクラサーバーコマンドの実装です
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"purikura/internal/app"
	"purikura/internal/camera"
	"purikura/internal/config"
	"purikura/internal/logging"
)

func main() {
	// コマンドラインオプション
	var (
		configPath = flag.String("config", "", "設定ファイル (YAML)")
		host       = flag.String("host", "", "サーバーのホスト (デフォルト: 127.0.0.1)")
		port       = flag.Int("port", 0, "サーバーのポート (デフォルト: 8080)")
		source     = flag.String("source", "", "映像ソース v4l2 / x11grab / lavfi (デフォルト: v4l2)")
		device     = flag.String("device", "", "カメラデバイス (例: /dev/video0)")
		logLevel   = flag.String("log-level", "", "ログレベル debug / info / warn / error")
		debug      = flag.Bool("debug", false, "ginをデバッグモードで起動")
		help       = flag.Bool("help", false, "ヘルプを表示")
	)

	flag.Parse()

	// ヘルプ表示
	if *help {
		fmt.Println("Purikura")
		fmt.Println()
		fmt.Println("使用方法:")
		fmt.Println("  server [オプション]")
		fmt.Println()
		fmt.Println("オプション:")
		flag.PrintDefaults()
		fmt.Println()
		fmt.Printf("環境変数 %s* で設定を上書きできます (例: %sSERVER_PORT=9090)\n", config.EnvPrefix, config.EnvPrefix)
		os.Exit(0)
	}

	// 設定を読み込む
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// コマンドラインオプションで設定を上書き
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *source != "" {
		cfg.Camera.Source = camera.SourceType(*source)
	}
	if *device != "" {
		cfg.Camera.Device = *device
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("オプションが不正です: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("ロガーの作成に失敗しました: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if !*debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// サーバーを起動
	logger.Info("Purikura サーバーを起動します", zap.String("address", cfg.ServerAddress()))
	if err := app.Run(context.Background(), cfg, logger); err != nil {
		logger.Error("サーバーが異常終了しました", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

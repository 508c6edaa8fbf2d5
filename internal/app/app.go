// Package app はカメラ・ブース・HTTPサーバーを組み立てて起動する
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"purikura/internal/booth"
	"purikura/internal/camera"
	"purikura/internal/config"
	"purikura/internal/server"
	"purikura/internal/strip"
)

// Run はサーバーを起動し、停止するまでブロックする
// 停止後はカメラを解放してから戻る
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	platform := camera.NewFFmpegPlatform(cfg.Camera, camera.NewLinuxDiscovery(), logger)
	logger.Info("映像ソースの設定",
		zap.String("source", string(cfg.Camera.Source)),
		zap.String("device", cfg.Camera.Device),
		zap.Int("fps", cfg.Camera.FPS))

	manager := camera.NewManager(platform, cfg.Camera.Profiles, cfg.Camera.ReadyTimeout, logger)
	renderer := strip.NewRenderer(strip.DefaultLayout(), logger)

	b, err := booth.New(cfg.Booth, manager, renderer, logger)
	if err != nil {
		return fmt.Errorf("撮影セッションの作成に失敗: %w", err)
	}

	srv := server.New(cfg, b, logger)
	runErr := srv.Start(ctx)

	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownWait())
	defer cancel()
	if err := b.Close(closeCtx); err != nil {
		return errors.Join(runErr, fmt.Errorf("撮影セッションの終了に失敗: %w", err))
	}
	return runErr
}

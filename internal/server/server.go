package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"purikura/internal/booth"
	"purikura/internal/camera"
	"purikura/internal/capture"
	"purikura/internal/config"
	"purikura/internal/strip"
)

// Booth はHTTPから操作する撮影セッション
type Booth interface {
	Start() error
	SelectFilter(id string) error
	Shutter() error
	Reset() error
	Snapshot() booth.Snapshot
	Subscribe() (<-chan booth.Snapshot, func())
	Still(index int) (capture.Still, error)
	Composite() (*strip.Composite, error)
	Stream() (camera.Stream, error)
}

// Server はHTTPサーバーを管理する構造体
type Server struct {
	config     *config.Config
	logger     *zap.Logger
	engine     *gin.Engine
	httpServer *http.Server

	// 配信中のストリーミング応答を終了時に打ち切るための親コンテキスト
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// New は新しいServerインスタンスを作成する
func New(cfg *config.Config, b Booth, logger *zap.Logger) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))

	baseCtx, cancelBase := context.WithCancel(context.Background())
	s := &Server{
		config:     cfg,
		logger:     logger,
		engine:     engine,
		baseCtx:    baseCtx,
		cancelBase: cancelBase,
		httpServer: &http.Server{
			Addr:         cfg.ServerAddress(),
			Handler:      engine,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			BaseContext:  func(net.Listener) context.Context { return baseCtx },
		},
	}

	s.setupRoutes(&Handler{config: cfg, booth: b, logger: logger})
	return s
}

// setupRoutes はHTTPルートを設定する
func (s *Server) setupRoutes(h *Handler) {
	// ヘルスチェックエンドポイント
	s.engine.GET("/health", h.HealthCheck)

	// 画面
	s.engine.GET("/", h.Index)
	s.engine.StaticFS("/assets", GetAssetsFS())

	// APIエンドポイント
	api := s.engine.Group("/api")
	api.GET("/filters", h.GetFilters)
	api.GET("/events", h.GetEvents)
	api.GET("/session", h.GetSession)

	session := api.Group("/session")
	session.POST("/start", h.StartSession)
	session.PUT("/filter", h.SelectFilter)
	session.POST("/shutter", h.Shutter)
	session.POST("/reset", h.Reset)
	session.GET("/preview", h.GetPreview)
	session.GET("/stills/:index", h.GetStill)
	session.GET("/strip", h.GetStrip)
}

// Handler はhttp.Handlerとしてのエンジンを返す
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start はサーバーを起動する
func (s *Server) Start(ctx context.Context) error {
	// シャットダウン用のチャンネル
	shutdownCh := make(chan error, 1)

	// サーバーを別ゴルーチンで起動
	go func() {
		s.logger.Info("HTTPサーバーを起動しています", zap.String("address", s.config.ServerAddress()))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			shutdownCh <- fmt.Errorf("サーバーの起動に失敗: %w", err)
		}
	}()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// コンテキストかシグナルを待つ
	select {
	case <-ctx.Done():
		s.logger.Info("コンテキストがキャンセルされました")
	case sig := <-sigCh:
		s.logger.Info("シグナルを受信しました", zap.String("signal", sig.String()))
	case err := <-shutdownCh:
		return err
	}

	// グレースフルシャットダウン
	return s.Shutdown()
}

// Shutdown はサーバーをグレースフルにシャットダウンする
func (s *Server) Shutdown() error {
	s.logger.Info("サーバーをシャットダウンしています...")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownWait())
	defer cancel()

	// プレビューやイベント配信は終わらないので先に打ち切る
	s.cancelBase()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}

	s.logger.Info("サーバーが正常にシャットダウンされました")
	return nil
}

// requestLogger はリクエストごとにアクセスログを出力する
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("HTTPリクエスト",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"purikura/internal/booth"
	"purikura/internal/camera"
	"purikura/internal/filter"
	"purikura/internal/logging"
	"purikura/internal/strip"
)

// EnvPrefix は環境変数で設定を上書きするときの接頭辞
const EnvPrefix = "PURIKURA_"

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server ServerConfig   `yaml:"server" envPrefix:"SERVER_"`
	Camera camera.Config  `yaml:"camera" envPrefix:"CAMERA_"`
	Booth  booth.Config   `yaml:"booth" envPrefix:"BOOTH_"`
	Strip  StripConfig    `yaml:"strip" envPrefix:"STRIP_"`
	Log    logging.Config `yaml:"log" envPrefix:"LOG_"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host" env:"HOST"` // リッスンするホスト
	Port int    `yaml:"port" env:"PORT"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`         // 読み込みタイムアウト
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`       // 書き込みタイムアウト
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"` // 終了待ちの上限
}

// DefaultShutdownWait は ShutdownTimeout が0以下のときの終了待ち時間
const DefaultShutdownWait = 5 * time.Second

// ShutdownWait は終了処理に使う待ち時間を返す
func (s ServerConfig) ShutdownWait() time.Duration {
	if s.ShutdownTimeout <= 0 {
		return DefaultShutdownWait
	}
	return s.ShutdownTimeout
}

// StripConfig はストリップ画像の書き出し設定
type StripConfig struct {
	ExportQuality  int    `yaml:"export_quality" env:"EXPORT_QUALITY"`
	FilenamePrefix string `yaml:"filename_prefix" env:"FILENAME_PREFIX"`
}

// Default はデフォルト設定を返す
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    0, // ストリーミング用にタイムアウト無効化
			ShutdownTimeout: 30 * time.Second,
		},
		Camera: camera.DefaultConfig(),
		Booth:  booth.DefaultConfig(),
		Strip: StripConfig{
			ExportQuality:  strip.DefaultQuality,
			FilenamePrefix: "purikura",
		},
		Log: logging.DefaultConfig(),
	}
}

// Load は設定を読み込む
// デフォルト値、YAMLファイル（pathが空なら省略）、環境変数の順に上書きする
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("設定ファイルの解析に失敗: %w", err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("環境変数の解析に失敗: %w", err)
	}

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	var errs []error

	// サーバー設定の検証
	if c.Server.Host == "" {
		errs = append(errs, errors.New("ホストが指定されていません"))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("無効なポート番号: %d", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("タイムアウトに負の値は指定できません"))
	}

	// カメラ設定の検証
	switch c.Camera.Source {
	case camera.SourceV4L2, camera.SourceX11, camera.SourceTestPattern:
	default:
		errs = append(errs, fmt.Errorf("未対応の映像ソース: %q", c.Camera.Source))
	}
	if c.Camera.FPS <= 0 {
		errs = append(errs, fmt.Errorf("無効なフレームレート: %d", c.Camera.FPS))
	}
	if c.Camera.FFmpegPath == "" {
		errs = append(errs, errors.New("ffmpegのパスが指定されていません"))
	}
	if c.Camera.ReadyTimeout <= 0 {
		errs = append(errs, fmt.Errorf("無効な準備待ちタイムアウト: %v", c.Camera.ReadyTimeout))
	}
	if len(c.Camera.Profiles) == 0 {
		errs = append(errs, errors.New("取得条件が1つもありません"))
	}
	for i, p := range c.Camera.Profiles {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("取得条件%dに名前がありません", i+1))
		}
		if p.Width < 0 || p.Height < 0 {
			errs = append(errs, fmt.Errorf("取得条件 %s の解像度が不正です", p.Name))
		}
		if p.Exact && p.Unconstrained() {
			errs = append(errs, fmt.Errorf("取得条件 %s は解像度なしで固定指定されています", p.Name))
		}
	}

	// ブース設定の検証
	if c.Booth.EntryDelay < 0 || c.Booth.ReviewDelay < 0 {
		errs = append(errs, errors.New("遅延に負の値は指定できません"))
	}
	if c.Booth.CountdownInterval <= 0 {
		errs = append(errs, fmt.Errorf("無効なカウントダウン間隔: %v", c.Booth.CountdownInterval))
	}
	if c.Booth.CaptureQuality < 1 || c.Booth.CaptureQuality > 100 {
		errs = append(errs, fmt.Errorf("無効な撮影品質: %d", c.Booth.CaptureQuality))
	}
	if _, ok := filter.Lookup(c.Booth.DefaultFilter); !ok {
		errs = append(errs, fmt.Errorf("不明なフィルター: %q", c.Booth.DefaultFilter))
	}

	// 書き出し設定の検証
	if c.Strip.ExportQuality < 1 || c.Strip.ExportQuality > 100 {
		errs = append(errs, fmt.Errorf("無効な書き出し品質: %d", c.Strip.ExportQuality))
	}
	if c.Strip.FilenamePrefix == "" || strings.ContainsAny(c.Strip.FilenamePrefix, `/\"`) {
		errs = append(errs, fmt.Errorf("無効なファイル名の接頭辞: %q", c.Strip.FilenamePrefix))
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

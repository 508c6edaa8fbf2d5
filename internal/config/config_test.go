package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purikura/internal/camera"
)

// TestConfigLoad はデフォルト設定の読み込みをテストする
func TestConfigLoad(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1:8080", cfg.ServerAddress())
	assert.Zero(t, cfg.Server.WriteTimeout, "ストリーミング用に書き込みタイムアウトは無効")

	assert.Equal(t, camera.SourceV4L2, cfg.Camera.Source)
	assert.Equal(t, 10*time.Second, cfg.Camera.ReadyTimeout)
	require.Len(t, cfg.Camera.Profiles, 3)
	assert.Equal(t, "ideal", cfg.Camera.Profiles[0].Name)

	assert.Equal(t, 2*time.Second, cfg.Booth.EntryDelay)
	assert.Equal(t, time.Second, cfg.Booth.CountdownInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.Booth.ReviewDelay)
	assert.Equal(t, "normal", cfg.Booth.DefaultFilter)

	assert.Equal(t, 90, cfg.Strip.ExportQuality)
	assert.Equal(t, "purikura", cfg.Strip.FilenamePrefix)
	assert.Equal(t, "info", cfg.Log.Level)
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "purikura.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// TestConfigLoadFile はYAMLファイルでの上書きをテストする
func TestConfigLoadFile(t *testing.T) {
	path := writeFile(t, `
server:
  port: 9000
camera:
  source: lavfi
  fps: 30
  profiles:
    - name: small
      width: 320
      height: 240
      exact: true
booth:
  countdown_interval: 250ms
  default_filter: sepia
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host, "指定のない項目はデフォルトのまま")
	assert.Equal(t, camera.SourceTestPattern, cfg.Camera.Source)
	assert.Equal(t, 30, cfg.Camera.FPS)
	assert.Equal(t, []camera.Constraints{{Name: "small", Width: 320, Height: 240, Exact: true}}, cfg.Camera.Profiles)
	assert.Equal(t, 250*time.Millisecond, cfg.Booth.CountdownInterval)
	assert.Equal(t, "sepia", cfg.Booth.DefaultFilter)
	assert.Equal(t, "debug", cfg.Log.Level)
}

// TestConfigLoadEnv は環境変数がファイルより優先されることをテストする
func TestConfigLoadEnv(t *testing.T) {
	path := writeFile(t, "server:\n  port: 9000\n")

	t.Setenv("PURIKURA_SERVER_PORT", "9090")
	t.Setenv("PURIKURA_CAMERA_SOURCE", "x11grab")
	t.Setenv("PURIKURA_CAMERA_DEVICE", ":1")
	t.Setenv("PURIKURA_BOOTH_ENTRY_DELAY", "0s")
	t.Setenv("PURIKURA_STRIP_FILENAME_PREFIX", "booth")
	t.Setenv("PURIKURA_LOG_FILE", "/tmp/purikura.log")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, camera.SourceX11, cfg.Camera.Source)
	assert.Equal(t, ":1", cfg.Camera.Device)
	assert.Zero(t, cfg.Booth.EntryDelay)
	assert.Equal(t, "booth", cfg.Strip.FilenamePrefix)
	assert.Equal(t, "/tmp/purikura.log", cfg.Log.File)
}

func TestConfigLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "server: [1, 2"))
	assert.Error(t, err)

	t.Setenv("PURIKURA_SERVER_PORT", "not-a-number")
	_, err = Load("")
	assert.Error(t, err)
}

// TestConfigValidation は設定の検証をテストする
func TestConfigValidation(t *testing.T) {
	testCases := []struct {
		name      string
		modify    func(c *Config)
		expectErr bool
	}{
		{"正常な設定", func(c *Config) {}, false},
		{"無効なポート番号", func(c *Config) { c.Server.Port = 0 }, true},
		{"範囲外のポート番号", func(c *Config) { c.Server.Port = 70000 }, true},
		{"ホストなし", func(c *Config) { c.Server.Host = "" }, true},
		{"未対応の映像ソース", func(c *Config) { c.Camera.Source = "dshow" }, true},
		{"フレームレート0", func(c *Config) { c.Camera.FPS = 0 }, true},
		{"準備待ちタイムアウト0", func(c *Config) { c.Camera.ReadyTimeout = 0 }, true},
		{"取得条件なし", func(c *Config) { c.Camera.Profiles = nil }, true},
		{"名前のない取得条件", func(c *Config) { c.Camera.Profiles[1].Name = "" }, true},
		{"解像度なしの固定指定", func(c *Config) { c.Camera.Profiles[1].Exact = true }, true},
		{"カウントダウン間隔0", func(c *Config) { c.Booth.CountdownInterval = 0 }, true},
		{"負の遅延", func(c *Config) { c.Booth.ReviewDelay = -time.Second }, true},
		{"入場アニメーションなし", func(c *Config) { c.Booth.EntryDelay = 0 }, false},
		{"撮影品質が範囲外", func(c *Config) { c.Booth.CaptureQuality = 101 }, true},
		{"不明なフィルター", func(c *Config) { c.Booth.DefaultFilter = "rainbow" }, true},
		{"書き出し品質0", func(c *Config) { c.Strip.ExportQuality = 0 }, true},
		{"パス区切りを含む接頭辞", func(c *Config) { c.Strip.FilenamePrefix = "a/b" }, true},
		{"不明なログレベル", func(c *Config) { c.Log.Level = "loud" }, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.modify(cfg)

			err := cfg.Validate()
			if tc.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestShutdownWait(t *testing.T) {
	testCases := []struct {
		name    string
		timeout time.Duration
		want    time.Duration
	}{
		{"指定あり", 30 * time.Second, 30 * time.Second},
		{"0はデフォルト", 0, DefaultShutdownWait},
		{"負の値はデフォルト", -time.Second, DefaultShutdownWait},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := ServerConfig{ShutdownTimeout: tc.timeout}
			assert.Equal(t, tc.want, s.ShutdownWait())
		})
	}
}

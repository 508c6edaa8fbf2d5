package camera

import (
	"context"
	"time"
)

// Status はストリームの動作状態を表す
type Status string

const (
	StatusInactive Status = "inactive" // 停止中
	StatusActive   Status = "active"   // 配信中
	StatusError    Status = "error"    // エラーが発生
)

// SourceType は映像ソースの種類
type SourceType string

const (
	// SourceV4L2 はUSBカメラ（/dev/videoN）を表す
	SourceV4L2 SourceType = "v4l2"
	// SourceX11 はX11画面キャプチャを仮想カメラとして使う
	SourceX11 SourceType = "x11grab"
	// SourceTestPattern はffmpegのテストパターンを使う
	SourceTestPattern SourceType = "lavfi"
)

// FacingMode はカメラの向きの希望
type FacingMode string

const (
	FacingAny  FacingMode = ""
	FacingUser FacingMode = "user" // 前面カメラ
)

// Constraints はカメラ取得時の条件（優先順に並べて使う）
type Constraints struct {
	Name       string     `yaml:"name" json:"name"`
	Width      int        `yaml:"width" json:"width,omitempty"`
	Height     int        `yaml:"height" json:"height,omitempty"`
	Exact      bool       `yaml:"exact" json:"exact,omitempty"` // falseなら理想値として扱う
	FacingMode FacingMode `yaml:"facing_mode" json:"facing_mode,omitempty"`
}

// Unconstrained は解像度指定がないかを返す
func (c Constraints) Unconstrained() bool {
	return c.Width == 0 && c.Height == 0
}

// DefaultProfiles は既定のフォールバック順を返す
func DefaultProfiles() []Constraints {
	return []Constraints{
		{Name: "ideal", Width: 1280, Height: 720, FacingMode: FacingUser},
		{Name: "unconstrained"},
		{Name: "fixed", Width: 640, Height: 480, Exact: true},
	}
}

// StreamInfo はストリームのメタデータ
type StreamInfo struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Source  SourceType `json:"source"`
	Device  string     `json:"device"`
	Width   int        `json:"width"`
	Height  int        `json:"height"`
	FPS     int        `json:"fps"`
	Profile string     `json:"profile"`
}

// Stream はライブ映像ストリーム
type Stream interface {
	// Start は配信を開始する
	Start(ctx context.Context) error

	// Stop は配信を停止し、デバイスを解放する
	Stop(ctx context.Context) error

	// Ready は最初のフレームを受信した時点でクローズされる
	Ready() <-chan struct{}

	// LatestFrame は最新のJPEGフレームを返す
	LatestFrame() ([]byte, error)

	// Subscribe はプレビュー用のフレームチャンネルを返す
	Subscribe() (<-chan []byte, func())

	Info() StreamInfo
	Status() Status
}

// Platform はホスト環境のキャプチャ機能
type Platform interface {
	// Supported はキャプチャ機能が存在するかを返す
	Supported(ctx context.Context) bool

	// Open は条件に合うストリームを作成する（まだ開始しない）
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Discovery はカメラデバイスの検出機能を提供する
type Discovery interface {
	// ScanDevices はシステム内の利用可能なカメラデバイスをスキャンする
	ScanDevices(ctx context.Context) ([]string, error)

	// IsDeviceAvailable は指定されたデバイスが利用可能かチェックする
	IsDeviceAvailable(ctx context.Context, device string) bool

	// GetDeviceInfo はデバイスの詳細情報を取得する
	GetDeviceInfo(ctx context.Context, device string) (*DeviceInfo, error)
}

// DeviceInfo はカメラデバイスの詳細情報を表す
type DeviceInfo struct {
	Device      string       // デバイスパス
	Name        string       // デバイス名
	Driver      string       // ドライバー名
	Resolutions []Resolution // サポートされる解像度
	Formats     []string     // サポートされるフォーマット
}

// Resolution はカメラの解像度を表す
type Resolution struct {
	Width  int // 幅
	Height int // 高さ
}

// Config はカメラ関連の設定
type Config struct {
	Source       SourceType    `yaml:"source" env:"SOURCE"`
	Device       string        `yaml:"device" env:"DEVICE"` // 空なら自動検出（v4l2）
	FPS          int           `yaml:"fps" env:"FPS"`
	FFmpegPath   string        `yaml:"ffmpeg_path" env:"FFMPEG_PATH"`
	ReadyTimeout time.Duration `yaml:"ready_timeout" env:"READY_TIMEOUT"`
	Profiles     []Constraints `yaml:"profiles"`
}

// DefaultConfig はデフォルトのカメラ設定を返す
func DefaultConfig() Config {
	return Config{
		Source:       SourceV4L2,
		FPS:          15,
		FFmpegPath:   "ffmpeg",
		ReadyTimeout: 10 * time.Second,
		Profiles:     DefaultProfiles(),
	}
}

package booth

import (
	"errors"
	"time"

	"purikura/internal/camera"
	"purikura/internal/capture"
	"purikura/internal/filter"
)

// Phase は画面のフェーズ
type Phase string

const (
	PhaseIntro          Phase = "intro"           // タイトル画面
	PhaseAwaitingDevice Phase = "awaiting_device" // カメラ起動待ち
	PhaseLive           Phase = "live"            // ライブプレビューと撮影
	PhaseReviewing      Phase = "reviewing"       // 仕上がり確認
)

// MaxStills は1セッションで撮影できる枚数
const MaxStills = 3

var (
	// ErrInvalidPhase は現在のフェーズでは受け付けない操作を表す
	ErrInvalidPhase = errors.New("operation not allowed in current phase")
	// ErrAlreadyCapturing は撮影中の再シャッターを表す
	ErrAlreadyCapturing = errors.New("capture already in progress")
	// ErrLimitReached は撮影枚数が上限に達していることを表す
	ErrLimitReached = errors.New("still limit reached")
	// ErrUnknownFilter はカタログにないフィルターIDを表す
	ErrUnknownFilter = errors.New("unknown filter")
	// ErrStillNotFound は指定した静止画がないことを表す
	ErrStillNotFound = errors.New("still not found")
	// ErrStripNotReady は合成画像がまだないことを表す
	ErrStripNotReady = errors.New("strip not ready")
	// ErrClosed は終了済みのブースへの操作を表す
	ErrClosed = errors.New("booth closed")
)

// Config はブースのタイミングと撮影設定
type Config struct {
	EntryDelay        time.Duration `yaml:"entry_delay" env:"ENTRY_DELAY"`
	CountdownInterval time.Duration `yaml:"countdown_interval" env:"COUNTDOWN_INTERVAL"`
	ReviewDelay       time.Duration `yaml:"review_delay" env:"REVIEW_DELAY"`
	CaptureQuality    int           `yaml:"capture_quality" env:"CAPTURE_QUALITY"`
	DefaultFilter     string        `yaml:"default_filter" env:"DEFAULT_FILTER"`
}

// DefaultConfig はデフォルトのブース設定を返す
func DefaultConfig() Config {
	return Config{
		EntryDelay:        2 * time.Second,
		CountdownInterval: time.Second,
		ReviewDelay:       500 * time.Millisecond,
		CaptureQuality:    capture.DefaultQuality,
		DefaultFilter:     filter.DefaultID,
	}
}

// ErrorInfo は画面に表示するエラー
type ErrorInfo struct {
	Kind    string   `json:"kind"`
	Message string   `json:"message"`
	Hints   []string `json:"hints,omitempty"`
}

// Snapshot はセッション状態の読み取り専用コピー
type Snapshot struct {
	Version    uint64             `json:"version"`
	Phase      Phase              `json:"phase"`
	Entering   bool               `json:"entering"`
	Acquiring  bool               `json:"acquiring"`
	Filter     string             `json:"filter"`
	Capturing  bool               `json:"capturing"`
	Countdown  string             `json:"countdown,omitempty"`
	Stills     []capture.Still    `json:"stills"`
	MaxStills  int                `json:"max_stills"`
	Device     *camera.StreamInfo `json:"device,omitempty"`
	Error      *ErrorInfo         `json:"error,omitempty"`
	StripReady bool               `json:"strip_ready"`
	UpdatedAt  time.Time          `json:"updated_at"`

	// DeviceErr は最後のカメラ取得エラー
	DeviceErr error `json:"-"`
}

// StillCount は撮影済みの枚数を返す
func (s Snapshot) StillCount() int {
	return len(s.Stills)
}

func errorInfo(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	var de *camera.DeviceError
	if errors.As(err, &de) {
		return &ErrorInfo{Kind: string(de.Kind), Message: de.Message, Hints: de.Hints}
	}
	return &ErrorInfo{Kind: "unknown", Message: err.Error()}
}

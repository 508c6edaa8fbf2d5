package camera

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDeviceUnsupported はホストにキャプチャ機能がないことを表す
	ErrDeviceUnsupported = errors.New("device unsupported")
	// ErrDeviceAcquisitionFailed は全ての取得条件が失敗したことを表す
	ErrDeviceAcquisitionFailed = errors.New("device acquisition failed")
	// ErrDeviceReadyTimeout はプレビューが時間内に準備完了にならなかったことを表す
	ErrDeviceReadyTimeout = errors.New("device ready timeout")
	// ErrNoFrame はまだフレームを受信していないことを表す
	ErrNoFrame = errors.New("no frame available")
)

// ErrorKind はデバイスエラーの種類
type ErrorKind string

const (
	KindUnsupported       ErrorKind = "device_unsupported"
	KindAcquisitionFailed ErrorKind = "device_acquisition_failed"
	KindReadyTimeout      ErrorKind = "device_ready_timeout"
)

// DeviceError はユーザーに直接表示するデバイスエラー
type DeviceError struct {
	Kind     ErrorKind
	Message  string
	Hints    []string
	Attempts []error // 各取得条件での失敗（KindAcquisitionFailedのみ）
	Err      error
}

func newDeviceError(kind ErrorKind, err error, attempts []error) *DeviceError {
	e := &DeviceError{Kind: kind, Err: err, Attempts: attempts}
	switch kind {
	case KindUnsupported:
		e.Message = "この環境ではカメラを利用できません"
		e.Hints = []string{
			"ffmpegがインストールされているか確認してください",
			"カメラが接続されているか確認してください",
		}
	case KindAcquisitionFailed:
		e.Message = "カメラを起動できませんでした"
		e.Hints = []string{
			"カメラへのアクセス権限を付与してください（videoグループへの参加など）",
			"カメラを使用している他のアプリを終了してください",
			"ページを再読み込みしてもう一度お試しください",
		}
	case KindReadyTimeout:
		e.Message = "カメラの映像が時間内に届きませんでした"
		e.Hints = []string{
			"カメラを使用している他のアプリを終了してください",
			"ページを再読み込みしてもう一度お試しください",
		}
	}
	return e
}

func (e *DeviceError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	for i, a := range e.Attempts {
		fmt.Fprintf(&b, "; 試行%d: %v", i+1, a)
	}
	return b.String()
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// Is はerrors.Isで種類ごとのセンチネルと比較できるようにする
func (e *DeviceError) Is(target error) bool {
	switch target {
	case ErrDeviceUnsupported:
		return e.Kind == KindUnsupported
	case ErrDeviceAcquisitionFailed:
		return e.Kind == KindAcquisitionFailed
	case ErrDeviceReadyTimeout:
		return e.Kind == KindReadyTimeout
	}
	return false
}

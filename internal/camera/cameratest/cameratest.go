// Package cameratest はテスト用のPlatform・Stream・Discoveryを提供する
package cameratest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"sync"

	"purikura/internal/camera"
)

// Stream はメモリ上のフレームを配信するモックStream
type Stream struct {
	info camera.StreamInfo

	mu        sync.Mutex
	status    camera.Status
	stopped   bool
	frame     []byte
	ready     chan struct{}
	readyOnce sync.Once
	subs      []chan []byte

	startErr     error
	initialFrame image.Image
}

// NewStream は新しいモックStreamを作成する
func NewStream(profile camera.Constraints) *Stream {
	return &Stream{
		info: camera.StreamInfo{
			ID:      "fake-" + profile.Name,
			Name:    "テストカメラ",
			Source:  camera.SourceTestPattern,
			Device:  "/dev/video-fake",
			Width:   profile.Width,
			Height:  profile.Height,
			Profile: profile.Name,
		},
		status: camera.StatusInactive,
		ready:  make(chan struct{}),
	}
}

func (s *Stream) Start(_ context.Context) error {
	s.mu.Lock()
	if s.startErr != nil {
		s.status = camera.StatusError
		s.mu.Unlock()
		return s.startErr
	}
	s.status = camera.StatusActive
	initial := s.initialFrame
	s.mu.Unlock()

	if initial != nil {
		s.PushFrame(initial)
	}
	return nil
}

func (s *Stream) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.subs {
		close(ch)
	}
	s.subs = nil
	s.status = camera.StatusInactive
	s.stopped = true
	return nil
}

func (s *Stream) Ready() <-chan struct{} {
	return s.ready
}

func (s *Stream) LatestFrame() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frame == nil {
		return nil, camera.ErrNoFrame
	}
	out := make([]byte, len(s.frame))
	copy(out, s.frame)
	return out, nil
}

func (s *Stream) Subscribe() (<-chan []byte, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan []byte, 2)
	s.subs = append(s.subs, ch)
	return ch, func() {}
}

func (s *Stream) Info() camera.StreamInfo {
	return s.info
}

func (s *Stream) Status() camera.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Stopped はStopが呼ばれてデバイスが解放されたかを返す
func (s *Stream) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// PushFrame は画像をJPEGにしてライブフレームとして配信する
func (s *Stream) PushFrame(img image.Image) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}); err != nil {
		panic(fmt.Sprintf("テストフレームのエンコードに失敗: %v", err))
	}
	s.PushBytes(buf.Bytes())
}

// PushBytes は任意のバイト列をライブフレームとして配信する
func (s *Stream) PushBytes(data []byte) {
	s.mu.Lock()
	s.frame = data
	for _, ch := range s.subs {
		select {
		case ch <- data:
		default:
		}
	}
	s.mu.Unlock()

	s.readyOnce.Do(func() { close(s.ready) })
}

// ClearFrame はライブフレームを失った状態にする
func (s *Stream) ClearFrame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = nil
}

// Platform はモックPlatform
type Platform struct {
	mu sync.Mutex

	// Unsupported がtrueならキャプチャ機能がないものとして振る舞う
	Unsupported bool
	// OpenErrors は取得条件名ごとのOpen失敗
	OpenErrors map[string]error
	// StartErrors は取得条件名ごとのStart失敗
	StartErrors map[string]error
	// Frame は開始直後に配信する画像（nilなら準備完了にならない）
	Frame image.Image

	attempts []string
	streams  []*Stream
}

// NewPlatform は開始直後にframeを配信するモックPlatformを作成する
func NewPlatform(frame image.Image) *Platform {
	return &Platform{
		OpenErrors:  make(map[string]error),
		StartErrors: make(map[string]error),
		Frame:       frame,
	}
}

func (p *Platform) Supported(_ context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.Unsupported
}

func (p *Platform) Open(_ context.Context, c camera.Constraints) (camera.Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.attempts = append(p.attempts, c.Name)
	if err := p.OpenErrors[c.Name]; err != nil {
		return nil, err
	}

	s := NewStream(c)
	s.startErr = p.StartErrors[c.Name]
	s.initialFrame = p.Frame
	p.streams = append(p.streams, s)
	return s, nil
}

// Attempts は試された取得条件名を順に返す
func (p *Platform) Attempts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.attempts...)
}

// Streams は作成されたStreamを順に返す
func (p *Platform) Streams() []*Stream {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Stream(nil), p.streams...)
}

// FailAll は全ての既定の取得条件でOpenを失敗させる
func (p *Platform) FailAll(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range camera.DefaultProfiles() {
		p.OpenErrors[c.Name] = err
	}
}

// MockDiscovery はテスト用のDiscovery実装
type MockDiscovery struct {
	devices []string

	// Resolutions はデバイスが対応する解像度（空なら不明）
	Resolutions []camera.Resolution
}

// NewMockDiscovery は新しいMockDiscoveryを作成する
func NewMockDiscovery(devices ...string) *MockDiscovery {
	return &MockDiscovery{devices: devices}
}

func (m *MockDiscovery) ScanDevices(_ context.Context) ([]string, error) {
	return append([]string(nil), m.devices...), nil
}

func (m *MockDiscovery) IsDeviceAvailable(_ context.Context, device string) bool {
	for _, d := range m.devices {
		if d == device {
			return true
		}
	}
	return false
}

func (m *MockDiscovery) GetDeviceInfo(ctx context.Context, device string) (*camera.DeviceInfo, error) {
	if !m.IsDeviceAvailable(ctx, device) {
		return nil, fmt.Errorf("デバイスが見つかりません: %s", device)
	}
	for i, d := range m.devices {
		if d == device {
			return &camera.DeviceInfo{
				Device:  device,
				Name:    fmt.Sprintf("テストカメラ %d", i+1),
				Driver:      "mock",
				Formats:     []string{"[0]: 'MJPG' (Motion-JPEG, compressed)"},
				Resolutions: append([]camera.Resolution(nil), m.Resolutions...),
			}, nil
		}
	}
	return nil, fmt.Errorf("デバイスが見つかりません: %s", device)
}

package camera

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// targetResolver はソース種別ごとにffmpegの入力先を決める関数の型
type targetResolver func(ctx context.Context) (target, name string, err error)

// FFmpegPlatform はffmpegを使うPlatform実装
type FFmpegPlatform struct {
	config    Config
	discovery Discovery
	logger    *zap.Logger
	lookPath  func(file string) (string, error)
	resolvers map[SourceType]targetResolver
}

// NewFFmpegPlatform は新しいFFmpegPlatformを作成する
func NewFFmpegPlatform(config Config, discovery Discovery, logger *zap.Logger) *FFmpegPlatform {
	p := &FFmpegPlatform{
		config:    config,
		discovery: discovery,
		logger:    logger,
		lookPath:  exec.LookPath,
		resolvers: make(map[SourceType]targetResolver),
	}

	p.register(SourceV4L2, p.resolveV4L2)
	p.register(SourceX11, p.resolveX11)
	p.register(SourceTestPattern, func(context.Context) (string, string, error) {
		return config.Device, "テストパターン", nil
	})

	return p
}

// register はソース種別の解決関数を登録する
func (p *FFmpegPlatform) register(source SourceType, resolver targetResolver) {
	p.resolvers[source] = resolver
}

// SupportedTypes はサポートされているソース種別を返す
func (p *FFmpegPlatform) SupportedTypes() []SourceType {
	types := make([]SourceType, 0, len(p.resolvers))
	for t := range p.resolvers {
		types = append(types, t)
	}
	return types
}

// Supported はffmpegが使え、入力先が解決できるかを返す
func (p *FFmpegPlatform) Supported(ctx context.Context) bool {
	if _, err := p.lookPath(p.config.FFmpegPath); err != nil {
		p.logger.Warn("ffmpegが見つかりません", zap.String("path", p.config.FFmpegPath), zap.Error(err))
		return false
	}

	resolve, ok := p.resolvers[p.config.Source]
	if !ok {
		p.logger.Warn("サポートされていないソース種別",
			zap.String("source", string(p.config.Source)),
			zap.Any("supported", p.SupportedTypes()))
		return false
	}

	if _, _, err := resolve(ctx); err != nil {
		p.logger.Warn("映像ソースを解決できません", zap.Error(err))
		return false
	}
	return true
}

// Open は条件に合わせたffmpegストリームを作成する
func (p *FFmpegPlatform) Open(ctx context.Context, c Constraints) (Stream, error) {
	resolve, ok := p.resolvers[p.config.Source]
	if !ok {
		return nil, fmt.Errorf("サポートされていないソース種別: %s", p.config.Source)
	}

	target, name, err := resolve(ctx)
	if err != nil {
		return nil, err
	}

	c, inputFormat, err := p.fitDevice(ctx, target, c)
	if err != nil {
		return nil, err
	}

	// V4L2では向きを選べないため FacingMode は使わない
	capturer := NewFFmpegCapturer(p.config.FFmpegPath, p.config.Source, target, c.Width, c.Height, p.config.FPS)
	capturer.inputFormat = inputFormat

	info := StreamInfo{
		ID:      uuid.New().String(),
		Name:    name,
		Source:  p.config.Source,
		Device:  target,
		Width:   c.Width,
		Height:  c.Height,
		FPS:     p.config.FPS,
		Profile: c.Name,
	}

	return newFFmpegStream(info, capturer, p.logger), nil
}

// fitDevice はデバイスの対応解像度に合わせて取得条件を調整する
// 固定指定で対応していなければエラー、理想値なら最も近い解像度を使う
func (p *FFmpegPlatform) fitDevice(ctx context.Context, target string, c Constraints) (Constraints, string, error) {
	if p.config.Source != SourceV4L2 {
		return c, "", nil
	}
	info, err := p.discovery.GetDeviceInfo(ctx, target)
	if err != nil || info == nil {
		return c, "", nil
	}

	var inputFormat string
	if slices.ContainsFunc(info.Formats, func(f string) bool { return strings.Contains(f, "MJPG") }) {
		inputFormat = "mjpeg"
	}

	if c.Unconstrained() || len(info.Resolutions) == 0 {
		return c, inputFormat, nil
	}
	want := Resolution{Width: c.Width, Height: c.Height}
	if slices.Contains(info.Resolutions, want) {
		return c, inputFormat, nil
	}
	if c.Exact {
		return c, "", fmt.Errorf("%s は %dx%d に対応していません", target, c.Width, c.Height)
	}

	nearest := nearestResolution(info.Resolutions, want)
	p.logger.Info("対応する近い解像度で開きます",
		zap.String("profile", c.Name),
		zap.Int("width", nearest.Width),
		zap.Int("height", nearest.Height))
	c.Width, c.Height = nearest.Width, nearest.Height
	return c, inputFormat, nil
}

func nearestResolution(candidates []Resolution, want Resolution) Resolution {
	best := candidates[0]
	for _, r := range candidates[1:] {
		if resolutionDistance(r, want) < resolutionDistance(best, want) {
			best = r
		}
	}
	return best
}

func resolutionDistance(a, b Resolution) int {
	dw, dh := a.Width-b.Width, a.Height-b.Height
	if dw < 0 {
		dw = -dw
	}
	if dh < 0 {
		dh = -dh
	}
	return dw + dh
}

// resolveV4L2 は設定されたデバイス、なければ最初に検出されたカメラを使う
func (p *FFmpegPlatform) resolveV4L2(ctx context.Context) (string, string, error) {
	device := p.config.Device
	if device == "" {
		devices, err := p.discovery.ScanDevices(ctx)
		if err != nil {
			return "", "", fmt.Errorf("デバイスのスキャンに失敗: %w", err)
		}
		if len(devices) == 0 {
			return "", "", fmt.Errorf("カメラデバイスが見つかりません")
		}
		device = devices[0]
	}

	if !p.discovery.IsDeviceAvailable(ctx, device) {
		return "", "", fmt.Errorf("デバイスが利用できません: %s", device)
	}

	name := fmt.Sprintf("USB Camera (%s)", device)
	if info, err := p.discovery.GetDeviceInfo(ctx, device); err == nil && info != nil {
		name = info.Name
	}
	return device, name, nil
}

// resolveX11 はディスプレイを入力先にする
func (p *FFmpegPlatform) resolveX11(_ context.Context) (string, string, error) {
	display := p.config.Device
	if display == "" {
		display = os.Getenv("DISPLAY")
	}
	if display == "" {
		return "", "", fmt.Errorf("X11ディスプレイが設定されていません")
	}
	return display, fmt.Sprintf("画面キャプチャ (%s)", display), nil
}

// Package capture はライブフレームを静止画として取り込む
package capture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"purikura/internal/filter"
)

// CountdownStages はシャッター前に表示するカウントダウン
var CountdownStages = []string{"3", "2", "1", "笑って!"}

// DefaultQuality は静止画のJPEG品質
const DefaultQuality = 92

// ErrFrameUnavailable はライブフレームまたは描画面が使えないことを表す
var ErrFrameUnavailable = errors.New("live frame unavailable")

// FrameSource はライブ映像の現在フレームを返す
type FrameSource interface {
	Frame() (image.Image, error)
}

// Still は取り込んだ1枚の静止画
type Still struct {
	ID         string    `json:"id"`
	Data       []byte    `json:"-"` // JPEG
	Filter     string    `json:"filter"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	CapturedAt time.Time `json:"captured_at"`
}

// Pipeline はフレームの描画とエンコードを行う
// 描画面は撮影ごとに使い回す
type Pipeline struct {
	quality int
	surface *Surface
	logger  *zap.Logger
}

// NewPipeline は新しいPipelineを作成する
func NewPipeline(quality int, logger *zap.Logger) *Pipeline {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return &Pipeline{
		quality: quality,
		surface: NewSurface(0, 0),
		logger:  logger,
	}
}

// Rasterize は現在フレームを左右反転・フィルター適用して描画面に描く
// フィルターはこの1回の描画にだけ適用され、描画後すぐに解除される
func (p *Pipeline) Rasterize(src FrameSource, f filter.Descriptor) (*image.RGBA, error) {
	if src == nil || p.surface == nil {
		return nil, ErrFrameUnavailable
	}

	frame, err := src.Frame()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFrameUnavailable, err)
	}
	bounds := frame.Bounds()
	if bounds.Empty() {
		return nil, ErrFrameUnavailable
	}

	p.surface.Resize(bounds.Dx(), bounds.Dy())
	p.surface.SetFilter(f)
	defer p.surface.ClearFilter()

	p.surface.DrawMirrored(frame)
	return p.surface.Snapshot(), nil
}

// Capture は1枚撮影してJPEGの静止画を返す
func (p *Pipeline) Capture(src FrameSource, f filter.Descriptor, at time.Time) (Still, error) {
	img, err := p.Rasterize(src, f)
	if err != nil {
		return Still{}, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.quality}); err != nil {
		return Still{}, fmt.Errorf("JPEG エンコードに失敗: %w", err)
	}

	still := Still{
		ID:         uuid.New().String(),
		Data:       buf.Bytes(),
		Filter:     f.ID,
		Width:      img.Bounds().Dx(),
		Height:     img.Bounds().Dy(),
		CapturedAt: at,
	}
	p.logger.Debug("静止画を撮影しました",
		zap.String("still_id", still.ID),
		zap.String("filter", still.Filter),
		zap.Int("bytes", len(still.Data)))
	return still, nil
}

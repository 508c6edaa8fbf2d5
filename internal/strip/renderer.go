// Package strip は撮影した3枚を縦長のストリップ画像に合成する
package strip

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"purikura/internal/capture"
)

// StillCount はストリップ1枚に並べる写真の枚数
const StillCount = 3

// DefaultQuality は書き出し時のJPEG品質
const DefaultQuality = 90

// CaptionLayout はキャプションの日付書式
const CaptionLayout = "2006.01.02"

var (
	// ErrIncompleteStrip は写真の枚数が揃っていないことを表す
	ErrIncompleteStrip = errors.New("strip requires exactly 3 stills")
	// ErrUnsupportedImage はデコードできない画像形式を表す
	ErrUnsupportedImage = errors.New("unsupported image format")
)

// Decoder は静止画のバイト列を画像に変換する
type Decoder func(data []byte) (image.Image, error)

// Composite は合成済みのストリップ
type Composite struct {
	Image     *image.RGBA
	Caption   string
	CreatedAt time.Time
	// Placements は撮影順の配置先（デコードできなかった写真は空）
	Placements []image.Rectangle
	// DecodeOrder はデコードが完了した順のindex
	DecodeOrder []int
}

// Renderer はストリップの合成を行う
type Renderer struct {
	layout Layout
	decode Decoder
	now    func() time.Time
	logger *zap.Logger
}

// Option はRendererの設定を変更する
type Option func(*Renderer)

// WithDecoder はデコード処理を差し替える
func WithDecoder(d Decoder) Option {
	return func(r *Renderer) { r.decode = d }
}

// WithClock はキャプションに使う時刻の取得元を差し替える
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) { r.now = now }
}

// NewRenderer は新しいRendererを作成する
func NewRenderer(layout Layout, logger *zap.Logger, opts ...Option) *Renderer {
	r := &Renderer{
		layout: layout,
		decode: DecodeStill,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type decoded struct {
	index int
	img   image.Image
	err   error
}

// Render は3枚の静止画を合成する
// デコードは並行に行い、完了した順に撮影順の位置へ描く
// キャプションは全てのデコードが完了してから描く
func (r *Renderer) Render(ctx context.Context, stills []capture.Still) (*Composite, error) {
	if len(stills) != StillCount {
		return nil, fmt.Errorf("%w: got %d", ErrIncompleteStrip, len(stills))
	}

	canvas := image.NewRGBA(image.Rect(0, 0, r.layout.Width, r.layout.Height))
	drawBackground(canvas, r.layout)

	results := make(chan decoded, len(stills))
	for i, s := range stills {
		go func(index int, data []byte) {
			img, err := r.decode(data)
			results <- decoded{index: index, img: img, err: err}
		}(i, s.Data)
	}

	comp := &Composite{
		Image:       canvas,
		Placements:  make([]image.Rectangle, len(stills)),
		DecodeOrder: make([]int, 0, len(stills)),
	}

	completed := 0
	for completed < len(stills) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case d := <-results:
			completed++
			comp.DecodeOrder = append(comp.DecodeOrder, d.index)
			if d.err != nil {
				r.logger.Warn("静止画のデコードに失敗したため配置をスキップします",
					zap.Int("index", d.index),
					zap.String("still_id", stills[d.index].ID),
					zap.Error(d.err))
				continue
			}

			rect := r.layout.PhotoRect(d.index)
			drawPhoto(canvas, d.img, rect, r.layout)
			comp.Placements[d.index] = rect
		}
	}

	comp.CreatedAt = r.now()
	comp.Caption = comp.CreatedAt.Format(CaptionLayout)
	drawCaption(canvas, comp.Caption, r.layout)

	r.logger.Info("ストリップを合成しました",
		zap.String("caption", comp.Caption),
		zap.Ints("decode_order", comp.DecodeOrder))
	return comp, nil
}

// DecodeStill はMIMEタイプを判定してJPEGまたはPNGをデコードする
func DecodeStill(data []byte) (image.Image, error) {
	mtype := mimetype.Detect(data)
	switch {
	case mtype.Is("image/jpeg"):
		return jpeg.Decode(bytes.NewReader(data))
	case mtype.Is("image/png"):
		return png.Decode(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, mtype.String())
	}
}

// Export は合成画像をJPEGで書き出す
func Export(c *Composite, w io.Writer, quality int) error {
	if c == nil || c.Image == nil {
		return ErrIncompleteStrip
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	if err := jpeg.Encode(w, c.Image, &jpeg.Options{Quality: quality}); err != nil {
		return fmt.Errorf("JPEG エンコードに失敗: %w", err)
	}
	return nil
}

// Filename は書き出しファイル名 <prefix>-<unixミリ秒>.jpg を返す
func Filename(prefix string, t time.Time) string {
	return fmt.Sprintf("%s-%d.jpg", prefix, t.UnixMilli())
}

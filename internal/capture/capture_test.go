package capture

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"purikura/internal/filter"
)

var (
	red  = color.RGBA{R: 255, A: 255}
	blue = color.RGBA{B: 255, A: 255}
)

type imageSource struct {
	img image.Image
	err error
}

func (s imageSource) Frame() (image.Image, error) {
	return s.img, s.err
}

// splitFrame は左半分が赤、右半分が青のフレームを作る
func splitFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				img.SetRGBA(x, y, red)
			} else {
				img.SetRGBA(x, y, blue)
			}
		}
	}
	return img
}

func mustLookup(t *testing.T, id string) filter.Descriptor {
	t.Helper()
	d, ok := filter.Lookup(id)
	require.True(t, ok)
	return d
}

func TestPipeline_RasterizeMirrors(t *testing.T) {
	p := NewPipeline(0, zap.NewNop())

	img, err := p.Rasterize(imageSource{img: splitFrame(40, 30)}, filter.Default())
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 40, 30), img.Bounds())
	assert.Equal(t, blue, img.RGBAAt(0, 0))
	assert.Equal(t, blue, img.RGBAAt(19, 15))
	assert.Equal(t, red, img.RGBAAt(20, 15))
	assert.Equal(t, red, img.RGBAAt(39, 29))
}

func TestPipeline_RasterizeAppliesFilterOnce(t *testing.T) {
	p := NewPipeline(0, zap.NewNop())
	src := imageSource{img: splitFrame(8, 8)}

	img, err := p.Rasterize(src, mustLookup(t, "mono"))
	require.NoError(t, err)

	c := img.RGBAAt(7, 0) // 反転後の右端は元の赤
	assert.Equal(t, c.R, c.G)
	assert.Equal(t, c.G, c.B)
	assert.Empty(t, p.surface.filterID, "描画後はフィルターが解除されていること")

	// 同じ描画面への次の描画にフィルターが残らない
	img, err = p.Rasterize(src, filter.Default())
	require.NoError(t, err)
	assert.Equal(t, red, img.RGBAAt(7, 0))
}

func TestPipeline_RasterizeResizesToNativeFrame(t *testing.T) {
	p := NewPipeline(0, zap.NewNop())

	_, err := p.Rasterize(imageSource{img: splitFrame(16, 12)}, filter.Default())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 12), p.surface.Bounds())

	_, err = p.Rasterize(imageSource{img: splitFrame(32, 24)}, filter.Default())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32, 24), p.surface.Bounds())
}

func TestPipeline_FrameUnavailable(t *testing.T) {
	p := NewPipeline(0, zap.NewNop())

	testCases := []struct {
		name string
		src  FrameSource
	}{
		{"ソースなし", nil},
		{"フレーム取得失敗", imageSource{err: errors.New("no frame")}},
		{"空のフレーム", imageSource{img: image.NewRGBA(image.Rectangle{})}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.Capture(tc.src, filter.Default(), time.Now())
			assert.ErrorIs(t, err, ErrFrameUnavailable)
		})
	}
}

func TestPipeline_Capture(t *testing.T) {
	p := NewPipeline(90, zap.NewNop())
	at := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	still, err := p.Capture(imageSource{img: splitFrame(64, 48)}, mustLookup(t, "sepia"), at)
	require.NoError(t, err)

	assert.NotEmpty(t, still.ID)
	assert.Equal(t, "sepia", still.Filter)
	assert.Equal(t, at, still.CapturedAt)
	assert.Equal(t, 64, still.Width)
	assert.Equal(t, 48, still.Height)

	img, err := jpeg.Decode(bytes.NewReader(still.Data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 48), img.Bounds())
}

func TestCountdownStages(t *testing.T) {
	assert.Equal(t, []string{"3", "2", "1", "笑って!"}, CountdownStages)
}

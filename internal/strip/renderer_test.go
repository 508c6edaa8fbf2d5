package strip

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"purikura/internal/capture"
)

var (
	red   = color.RGBA{R: 230, G: 20, B: 20, A: 255}
	green = color.RGBA{R: 20, G: 200, B: 20, A: 255}
	blue  = color.RGBA{R: 20, G: 20, B: 230, A: 255}
)

func solidStill(t *testing.T, id string, c color.RGBA) capture.Still {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return capture.Still{ID: id, Data: buf.Bytes(), Width: 64, Height: 48}
}

func threeStills(t *testing.T) []capture.Still {
	return []capture.Still{
		solidStill(t, "a", red),
		solidStill(t, "b", green),
		solidStill(t, "c", blue),
	}
}

func center(r image.Rectangle) image.Point {
	return image.Pt((r.Min.X+r.Max.X)/2, (r.Min.Y+r.Max.Y)/2)
}

func assertColorNear(t *testing.T, want, got color.RGBA) {
	t.Helper()
	assert.InDelta(t, want.R, got.R, 12, "R")
	assert.InDelta(t, want.G, got.G, 12, "G")
	assert.InDelta(t, want.B, got.B, 12, "B")
}

// captionInked はキャプション行に背景より濃い画素があるかを返す
func captionInked(img *image.RGBA, l Layout) bool {
	baseline := l.Height - l.CaptionOffset
	for y := baseline - 12; y <= baseline+2; y++ {
		for x := l.Margin; x < l.Width-l.Margin; x++ {
			if img.RGBAAt(x, y).R < 150 {
				return true
			}
		}
	}
	return false
}

func TestLayout_PhotoRect(t *testing.T) {
	l := DefaultLayout()

	testCases := []struct {
		index int
		want  image.Rectangle
	}{
		{0, image.Rect(20, 20, 240, 185)},
		{1, image.Rect(20, 205, 240, 370)},
		{2, image.Rect(20, 390, 240, 555)},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, l.PhotoRect(tc.index))
	}
}

func TestRender_RequiresThreeStills(t *testing.T) {
	r := NewRenderer(DefaultLayout(), zap.NewNop())
	stills := threeStills(t)

	for _, n := range []int{0, 2} {
		_, err := r.Render(context.Background(), stills[:n])
		assert.ErrorIs(t, err, ErrIncompleteStrip)
	}
	_, err := r.Render(context.Background(), append(stills, stills[0]))
	assert.ErrorIs(t, err, ErrIncompleteStrip)
}

func TestRender_Composite(t *testing.T) {
	l := DefaultLayout()
	now := time.Date(2026, 10, 18, 15, 4, 5, 0, time.Local)
	r := NewRenderer(l, zap.NewNop(), WithClock(func() time.Time { return now }))

	comp, err := r.Render(context.Background(), threeStills(t))
	require.NoError(t, err)

	img := comp.Image
	assert.Equal(t, image.Rect(0, 0, 260, 650), img.Bounds())
	assert.Equal(t, "2026.10.18", comp.Caption)
	assert.Equal(t, now, comp.CreatedAt)
	assert.Len(t, comp.DecodeOrder, 3)

	// 外枠
	assert.Equal(t, borderColor, img.RGBAAt(0, 0))
	assert.Equal(t, borderColor, img.RGBAAt(259, 649))

	// 上が白、下がライトグレーのグラデーション
	top := img.RGBAAt(130, 5)
	bottom := img.RGBAAt(130, 645)
	assert.Greater(t, top.R, bottom.R)

	// 撮影順に上から配置される
	for i, want := range []color.RGBA{red, green, blue} {
		rect := l.PhotoRect(i)
		assert.Equal(t, rect, comp.Placements[i])
		assertColorNear(t, want, img.RGBAAt(center(rect).X, center(rect).Y))
	}

	// 台紙は白
	card := l.PhotoRect(0).Inset(-l.CardPadding)
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, img.RGBAAt(card.Min.X+1, card.Min.Y+1))

	// 台紙の右下に影が落ちる
	shadow := img.RGBAAt(card.Max.X+1, card.Max.Y+1)
	bg := img.RGBAAt(card.Max.X+1, card.Min.Y-l.ShadowBlur-2)
	assert.Less(t, shadow.R, bg.R)

	assert.True(t, captionInked(img, l))
}

func TestRender_PlacesByIndexNotDecodeOrder(t *testing.T) {
	l := DefaultLayout()
	stills := threeStills(t)

	index := make(map[string]int, len(stills))
	gates := make([]chan struct{}, len(stills))
	for i, s := range stills {
		index[string(s.Data)] = i
		gates[i] = make(chan struct{})
	}

	var mu sync.Mutex
	var finished []int
	decode := func(data []byte) (image.Image, error) {
		i := index[string(data)]
		<-gates[i]
		img, err := DecodeStill(data)
		mu.Lock()
		finished = append(finished, i)
		mu.Unlock()
		return img, err
	}

	r := NewRenderer(l, zap.NewNop(), WithDecoder(decode))

	type result struct {
		comp *Composite
		err  error
	}
	done := make(chan result, 1)
	go func() {
		comp, err := r.Render(context.Background(), stills)
		done <- result{comp, err}
	}()

	// 2, 0, 1 の順にデコードを完了させる
	for n, i := range []int{2, 0, 1} {
		close(gates[i])
		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(finished) == n+1
		}, time.Second, time.Millisecond)
		time.Sleep(20 * time.Millisecond)
	}

	var res result
	select {
	case res = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Render が完了しませんでした")
	}
	require.NoError(t, res.err)

	assert.Equal(t, []int{2, 0, 1}, res.comp.DecodeOrder)
	for i, want := range []color.RGBA{red, green, blue} {
		c := center(l.PhotoRect(i))
		assertColorNear(t, want, res.comp.Image.RGBAAt(c.X, c.Y))
	}
	assert.True(t, captionInked(res.comp.Image, l))
}

func TestRender_CaptionWaitsForAllDecodes(t *testing.T) {
	stills := threeStills(t)
	blocked := stills[1].Data

	decode := func(data []byte) (image.Image, error) {
		if bytes.Equal(data, blocked) {
			select {} // 完了しない
		}
		return DecodeStill(data)
	}
	r := NewRenderer(DefaultLayout(), zap.NewNop(), WithDecoder(decode))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	comp, err := r.Render(ctx, stills)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, comp)
}

func TestRender_SkipsUndecodableStill(t *testing.T) {
	l := DefaultLayout()
	stills := threeStills(t)
	stills[1].Data = []byte("not an image")

	r := NewRenderer(l, zap.NewNop())
	comp, err := r.Render(context.Background(), stills)
	require.NoError(t, err)

	assert.Equal(t, l.PhotoRect(0), comp.Placements[0])
	assert.True(t, comp.Placements[1].Empty())
	assert.Equal(t, l.PhotoRect(2), comp.Placements[2])

	// スキップした位置は背景のまま
	c := center(l.PhotoRect(1))
	px := comp.Image.RGBAAt(c.X, c.Y)
	assert.Equal(t, px.R, px.G)
	assert.Greater(t, px.R, uint8(230))

	assert.True(t, captionInked(comp.Image, l))
}

func TestDecodeStill(t *testing.T) {
	still := solidStill(t, "a", red)

	img, err := DecodeStill(still.Data)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 48), img.Bounds())

	_, err = DecodeStill([]byte("plain text"))
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}

func TestExport(t *testing.T) {
	r := NewRenderer(DefaultLayout(), zap.NewNop())
	comp, err := r.Render(context.Background(), threeStills(t))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Export(comp, &buf, 0))

	img, err := jpeg.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 260, 650), img.Bounds())

	assert.ErrorIs(t, Export(nil, &buf, 90), ErrIncompleteStrip)
}

func TestFilename(t *testing.T) {
	at := time.UnixMilli(1760780000123)

	name := Filename("purikura", at)
	assert.Equal(t, "purikura-1760780000123.jpg", name)
	assert.True(t, strings.HasSuffix(Filename("x", time.Now()), ".jpg"))
}

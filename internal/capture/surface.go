package capture

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"

	"purikura/internal/filter"
)

// Surface はオフスクリーンの描画面
type Surface struct {
	img       *image.RGBA
	scratch   *image.RGBA
	transform filter.Transform
	filterID  string
}

// NewSurface は指定サイズの描画面を作成する
func NewSurface(width, height int) *Surface {
	return &Surface{
		img:     image.NewRGBA(image.Rect(0, 0, width, height)),
		scratch: image.NewRGBA(image.Rect(0, 0, width, height)),
	}
}

// Resize はフレームの実寸に合わせて描画面を作り直す
func (s *Surface) Resize(width, height int) {
	if s.img.Bounds().Dx() == width && s.img.Bounds().Dy() == height {
		return
	}
	s.img = image.NewRGBA(image.Rect(0, 0, width, height))
	s.scratch = image.NewRGBA(image.Rect(0, 0, width, height))
}

// Bounds は描画面の範囲を返す
func (s *Surface) Bounds() image.Rectangle {
	return s.img.Bounds()
}

// SetFilter は以降の描画に適用するフィルターを設定する
func (s *Surface) SetFilter(d filter.Descriptor) {
	s.transform = d.Compile()
	s.filterID = d.ID
}

// ClearFilter はフィルターを解除する
func (s *Surface) ClearFilter() {
	s.transform = filter.Transform{}
	s.filterID = ""
}

// DrawMirrored はsrcを左右反転して描画面に描く（srcは描画面と同じ寸法であること）
func (s *Surface) DrawMirrored(src image.Image) {
	bounds := s.img.Bounds()
	xdraw.Draw(s.scratch, bounds, src, src.Bounds().Min, xdraw.Src)

	width := bounds.Dx()
	for y := 0; y < bounds.Dy(); y++ {
		srcRow := s.scratch.Pix[y*s.scratch.Stride:]
		dstRow := s.img.Pix[y*s.img.Stride:]
		for x := 0; x < width; x++ {
			si := x * 4
			di := (width - 1 - x) * 4
			c := s.transform.Apply(color.RGBA{R: srcRow[si], G: srcRow[si+1], B: srcRow[si+2], A: srcRow[si+3]})
			dstRow[di], dstRow[di+1], dstRow[di+2], dstRow[di+3] = c.R, c.G, c.B, c.A
		}
	}
}

// Snapshot は描画面の内容のコピーを返す
func (s *Surface) Snapshot() *image.RGBA {
	out := image.NewRGBA(s.img.Bounds())
	copy(out.Pix, s.img.Pix)
	return out
}

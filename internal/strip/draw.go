package strip

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// drawBackground は白からライトグレーへの縦グラデーションと外枠を描く
func drawBackground(dst *image.RGBA, l Layout) {
	h := l.Height
	for y := 0; y < h; y++ {
		t := 0.0
		if h > 1 {
			t = float64(y) / float64(h-1)
		}
		c := lerp(gradientTop, gradientBottom, t)
		row := image.Rect(0, y, l.Width, y+1)
		xdraw.Draw(dst, row, &image.Uniform{C: c}, image.Point{}, xdraw.Src)
	}

	strokeRect(dst, dst.Bounds(), l.Border, borderColor)
}

// drawPhoto は影、白い台紙、写真、細い枠の順に1枚を描く
func drawPhoto(dst *image.RGBA, src image.Image, rect image.Rectangle, l Layout) {
	card := rect.Inset(-l.CardPadding)

	drawShadow(dst, card.Add(image.Pt(l.ShadowOffset, l.ShadowOffset)), l.ShadowBlur)
	xdraw.Draw(dst, card, &image.Uniform{C: color.White}, image.Point{}, xdraw.Src)
	xdraw.CatmullRom.Scale(dst, rect, src, src.Bounds(), xdraw.Src, nil)
	strokeRect(dst, rect.Inset(-1), 1, photoBorder)
}

// drawShadow はrectをぼかした半透明の影を重ねる
func drawShadow(dst *image.RGBA, rect image.Rectangle, blur int) {
	area := rect.Inset(-blur)
	mask := image.NewAlpha(area)
	xdraw.Draw(mask, rect, &image.Uniform{C: color.Alpha{A: shadowColor.A}}, image.Point{}, xdraw.Src)

	// 箱ぼかしを2回かけてガウスぼかしに近づける
	radius := blur / 2
	for i := 0; i < 2; i++ {
		boxBlur(mask, radius)
	}

	xdraw.DrawMask(dst, area, &image.Uniform{C: color.Black}, image.Point{}, mask, area.Min, xdraw.Over)
}

// boxBlur はアルファマスクに縦横の箱ぼかしをかける
func boxBlur(mask *image.Alpha, radius int) {
	if radius <= 0 {
		return
	}

	b := mask.Bounds()
	w, h := b.Dx(), b.Dy()
	tmp := make([]uint8, len(mask.Pix))

	blurLine := func(get func(i int) int, set func(i int, v uint8), n int) {
		for i := 0; i < n; i++ {
			sum, count := 0, 0
			for k := i - radius; k <= i+radius; k++ {
				if k >= 0 && k < n {
					sum += get(k)
				}
				count++
			}
			set(i, uint8(sum/count))
		}
	}

	for y := 0; y < h; y++ {
		row := y * mask.Stride
		blurLine(
			func(i int) int { return int(mask.Pix[row+i]) },
			func(i int, v uint8) { tmp[row+i] = v },
			w)
	}
	for x := 0; x < w; x++ {
		blurLine(
			func(i int) int { return int(tmp[i*mask.Stride+x]) },
			func(i int, v uint8) { mask.Pix[i*mask.Stride+x] = v },
			h)
	}
}

// strokeRect はrectの内側に幅widthの枠線を描く
func strokeRect(dst *image.RGBA, rect image.Rectangle, width int, c color.Color) {
	u := &image.Uniform{C: c}
	for _, r := range []image.Rectangle{
		image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+width),
		image.Rect(rect.Min.X, rect.Max.Y-width, rect.Max.X, rect.Max.Y),
		image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+width, rect.Max.Y),
		image.Rect(rect.Max.X-width, rect.Min.Y, rect.Max.X, rect.Max.Y),
	} {
		xdraw.Draw(dst, r, u, image.Point{}, xdraw.Src)
	}
}

// drawCaption は下部中央にテキストを描く
func drawCaption(dst *image.RGBA, text string, l Layout) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(captionColor),
		Face: face,
		Dot:  fixed.P((l.Width-width)/2, l.Height-l.CaptionOffset),
	}
	d.DrawString(text)
}

func lerp(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(float64(x) + (float64(y)-float64(x))*t + 0.5)
	}
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 255}
}

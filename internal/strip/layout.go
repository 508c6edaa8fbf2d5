package strip

import (
	"image"
	"image/color"
)

// Layout はストリップ画像の寸法
type Layout struct {
	Width         int
	Height        int
	Border        int
	Margin        int
	PhotoWidth    int
	PhotoHeight   int
	Spacing       int
	CardPadding   int // 写真の周りの白い台紙の幅
	ShadowBlur    int
	ShadowOffset  int
	CaptionOffset int // 下端からキャプションのベースラインまで
}

// DefaultLayout は 260x650 の縦長ストリップを返す
func DefaultLayout() Layout {
	return Layout{
		Width:         260,
		Height:        650,
		Border:        2,
		Margin:        20,
		PhotoWidth:    220,
		PhotoHeight:   165,
		Spacing:       20,
		CardPadding:   5,
		ShadowBlur:    8,
		ShadowOffset:  3,
		CaptionOffset: 40,
	}
}

// PhotoRect はindex番目の写真の配置先を返す
// 位置はデコードの完了順ではなく撮影順のindexだけで決まる
func (l Layout) PhotoRect(index int) image.Rectangle {
	x := l.Margin
	y := l.Margin + index*(l.PhotoHeight+l.Spacing)
	return image.Rect(x, y, x+l.PhotoWidth, y+l.PhotoHeight)
}

var (
	gradientTop    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	gradientBottom = color.RGBA{R: 236, G: 236, B: 236, A: 255}
	borderColor    = color.RGBA{R: 204, G: 204, B: 204, A: 255}
	photoBorder    = color.RGBA{R: 221, G: 221, B: 221, A: 255}
	shadowColor    = color.RGBA{A: 77} // 黒の30%
	captionColor   = color.RGBA{R: 85, G: 85, B: 85, A: 255}
)

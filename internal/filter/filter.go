package filter

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// Op は調整の種類を表す
type Op string

const (
	OpGrayscale  Op = "grayscale"  // 彩度を落としてグレースケールへ
	OpSepia      Op = "sepia"      // セピア調
	OpSaturate   Op = "saturate"   // 彩度の倍率
	OpHueRotate  Op = "hue-rotate" // 色相回転（度）
	OpContrast   Op = "contrast"   // コントラストの倍率
	OpBrightness Op = "brightness" // 明るさの倍率
)

// Adjustment は数値パラメータ付きの単一の調整
type Adjustment struct {
	Op     Op      `json:"op"`
	Amount float64 `json:"amount"`
}

// Descriptor はフィルターの変換記述子
type Descriptor struct {
	ID    string       `json:"id"`
	Label string       `json:"label"`
	Steps []Adjustment `json:"steps"`
}

// IsIdentity は変換が画素を変更しないかを返す
func (d Descriptor) IsIdentity() bool {
	return len(d.Steps) == 0
}

// CSS はライブプレビュー用のCSS filter値を返す
func (d Descriptor) CSS() string {
	if d.IsIdentity() {
		return "none"
	}

	parts := make([]string, 0, len(d.Steps))
	for _, s := range d.Steps {
		amount := strconv.FormatFloat(s.Amount, 'f', -1, 64)
		if s.Op == OpHueRotate {
			amount += "deg"
		}
		parts = append(parts, fmt.Sprintf("%s(%s)", s.Op, amount))
	}
	return strings.Join(parts, " ")
}

// Transform はコンパイル済みの画素変換
type Transform struct {
	steps []stepFunc
}

type stepFunc func(r, g, b float64) (float64, float64, float64)

// Compile は記述子を画素変換に変換する
func (d Descriptor) Compile() Transform {
	steps := make([]stepFunc, 0, len(d.Steps))
	for _, s := range d.Steps {
		if fn := compileStep(s); fn != nil {
			steps = append(steps, fn)
		}
	}
	return Transform{steps: steps}
}

// IsIdentity は変換が何もしないかを返す
func (t Transform) IsIdentity() bool {
	return len(t.steps) == 0
}

// Apply は1画素に変換を適用する（アルファは維持）
func (t Transform) Apply(c color.RGBA) color.RGBA {
	if t.IsIdentity() {
		return c
	}

	r := float64(c.R) / 255
	g := float64(c.G) / 255
	b := float64(c.B) / 255
	for _, step := range t.steps {
		r, g, b = step(r, g, b)
		r, g, b = clamp(r), clamp(g), clamp(b)
	}

	return color.RGBA{
		R: uint8(math.Round(r * 255)),
		G: uint8(math.Round(g * 255)),
		B: uint8(math.Round(b * 255)),
		A: c.A,
	}
}

// matrix は3x3のカラー行列
type matrix [9]float64

func (m matrix) apply(r, g, b float64) (float64, float64, float64) {
	return m[0]*r + m[1]*g + m[2]*b,
		m[3]*r + m[4]*g + m[5]*b,
		m[6]*r + m[7]*g + m[8]*b
}

func compileStep(s Adjustment) stepFunc {
	a := s.Amount
	switch s.Op {
	case OpGrayscale:
		v := 1 - math.Min(math.Max(a, 0), 1)
		return matrix{
			0.2126 + 0.7874*v, 0.7152 - 0.7152*v, 0.0722 - 0.0722*v,
			0.2126 - 0.2126*v, 0.7152 + 0.2848*v, 0.0722 - 0.0722*v,
			0.2126 - 0.2126*v, 0.7152 - 0.7152*v, 0.0722 + 0.9278*v,
		}.apply
	case OpSepia:
		v := 1 - math.Min(math.Max(a, 0), 1)
		return matrix{
			0.393 + 0.607*v, 0.769 - 0.769*v, 0.189 - 0.189*v,
			0.349 - 0.349*v, 0.686 + 0.314*v, 0.168 - 0.168*v,
			0.272 - 0.272*v, 0.534 - 0.534*v, 0.131 + 0.869*v,
		}.apply
	case OpSaturate:
		v := math.Max(a, 0)
		return matrix{
			0.213 + 0.787*v, 0.715 - 0.715*v, 0.072 - 0.072*v,
			0.213 - 0.213*v, 0.715 + 0.285*v, 0.072 - 0.072*v,
			0.213 - 0.213*v, 0.715 - 0.715*v, 0.072 + 0.928*v,
		}.apply
	case OpHueRotate:
		rad := a * math.Pi / 180
		cos, sin := math.Cos(rad), math.Sin(rad)
		return matrix{
			0.213 + cos*0.787 - sin*0.213, 0.715 - cos*0.715 - sin*0.715, 0.072 - cos*0.072 + sin*0.928,
			0.213 - cos*0.213 + sin*0.143, 0.715 + cos*0.285 + sin*0.140, 0.072 - cos*0.072 - sin*0.283,
			0.213 - cos*0.213 - sin*0.787, 0.715 - cos*0.715 + sin*0.715, 0.072 + cos*0.928 + sin*0.072,
		}.apply
	case OpContrast:
		v := math.Max(a, 0)
		return func(r, g, b float64) (float64, float64, float64) {
			return (r-0.5)*v + 0.5, (g-0.5)*v + 0.5, (b-0.5)*v + 0.5
		}
	case OpBrightness:
		v := math.Max(a, 0)
		return func(r, g, b float64) (float64, float64, float64) {
			return r * v, g * v, b * v
		}
	default:
		return nil
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

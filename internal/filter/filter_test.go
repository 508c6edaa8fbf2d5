package filter

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransform_Apply(t *testing.T) {
	testCases := []struct {
		name  string
		steps []Adjustment
		in    color.RGBA
		want  color.RGBA
	}{
		{
			name: "空の変換は画素を変えない",
			in:   color.RGBA{R: 12, G: 34, B: 56, A: 255},
			want: color.RGBA{R: 12, G: 34, B: 56, A: 255},
		},
		{
			name:  "グレースケール",
			steps: []Adjustment{{Op: OpGrayscale, Amount: 1}},
			in:    color.RGBA{R: 255, A: 255},
			want:  color.RGBA{R: 54, G: 54, B: 54, A: 255},
		},
		{
			name:  "セピアは各段でクランプされる",
			steps: []Adjustment{{Op: OpSepia, Amount: 1}},
			in:    color.RGBA{R: 255, G: 255, B: 255, A: 255},
			want:  color.RGBA{R: 255, G: 255, B: 239, A: 255},
		},
		{
			name:  "明るさ",
			steps: []Adjustment{{Op: OpBrightness, Amount: 0.5}},
			in:    color.RGBA{R: 200, G: 100, B: 50, A: 255},
			want:  color.RGBA{R: 100, G: 50, B: 25, A: 255},
		},
		{
			name:  "コントラスト",
			steps: []Adjustment{{Op: OpContrast, Amount: 2}},
			in:    color.RGBA{R: 255, G: 0, B: 255, A: 255},
			want:  color.RGBA{R: 255, G: 0, B: 255, A: 255},
		},
		{
			name:  "アルファは維持される",
			steps: []Adjustment{{Op: OpGrayscale, Amount: 1}},
			in:    color.RGBA{R: 0, G: 0, B: 0, A: 128},
			want:  color.RGBA{R: 0, G: 0, B: 0, A: 128},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := Descriptor{ID: "test", Steps: tc.steps}
			assert.Equal(t, tc.want, d.Compile().Apply(tc.in))
		})
	}
}

func TestTransform_HueRotateFullTurn(t *testing.T) {
	in := color.RGBA{R: 200, G: 80, B: 40, A: 255}
	for _, deg := range []float64{0, 360} {
		got := Descriptor{Steps: []Adjustment{{Op: OpHueRotate, Amount: deg}}}.Compile().Apply(in)
		assert.InDelta(t, float64(in.R), float64(got.R), 1, "deg=%v", deg)
		assert.InDelta(t, float64(in.G), float64(got.G), 1, "deg=%v", deg)
		assert.InDelta(t, float64(in.B), float64(got.B), 1, "deg=%v", deg)
	}
}

func TestTransform_OrderMatters(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	brightenFirst := Descriptor{Steps: []Adjustment{
		{Op: OpBrightness, Amount: 2},
		{Op: OpGrayscale, Amount: 1},
	}}
	grayFirst := Descriptor{Steps: []Adjustment{
		{Op: OpGrayscale, Amount: 1},
		{Op: OpBrightness, Amount: 2},
	}}

	assert.Equal(t, uint8(54), brightenFirst.Compile().Apply(red).R)
	assert.Equal(t, uint8(108), grayFirst.Compile().Apply(red).R)
}

func TestTransform_UnknownOpIgnored(t *testing.T) {
	d := Descriptor{Steps: []Adjustment{{Op: "blur", Amount: 4}}}
	assert.True(t, d.Compile().IsIdentity())
}

func TestDescriptor_CSS(t *testing.T) {
	vintage, ok := Lookup("vintage")
	require.True(t, ok)
	assert.Equal(t, "sepia(0.5) hue-rotate(-30deg) saturate(1.4)", vintage.CSS())
	assert.Equal(t, "none", Default().CSS())
}

func TestCatalog(t *testing.T) {
	all := All()
	require.Len(t, all, 7)

	seen := make(map[string]bool)
	for _, d := range all {
		assert.NotEmpty(t, d.Label, "ラベルが空: %s", d.ID)
		assert.False(t, seen[d.ID], "IDが重複: %s", d.ID)
		seen[d.ID] = true
	}

	assert.Equal(t, DefaultID, Default().ID)
	assert.True(t, Default().IsIdentity())

	_, ok := Lookup("missing")
	assert.False(t, ok)
}

func TestCatalog_Immutable(t *testing.T) {
	mono, ok := Lookup("mono")
	require.True(t, ok)
	mono.Steps[0].Amount = 0

	all := All()
	all[1].Steps[0].Amount = 0

	again, _ := Lookup("mono")
	assert.Equal(t, 1.0, again.Steps[0].Amount)
}

package filter

// DefaultID は初期状態で選択されるフィルター
const DefaultID = "normal"

var catalog = []Descriptor{
	{ID: "normal", Label: "ノーマル"},
	{ID: "mono", Label: "モノクロ", Steps: []Adjustment{
		{Op: OpGrayscale, Amount: 1},
		{Op: OpContrast, Amount: 1.1},
	}},
	{ID: "sepia", Label: "セピア", Steps: []Adjustment{
		{Op: OpSepia, Amount: 1},
	}},
	{ID: "vintage", Label: "ヴィンテージ", Steps: []Adjustment{
		{Op: OpSepia, Amount: 0.5},
		{Op: OpHueRotate, Amount: -30},
		{Op: OpSaturate, Amount: 1.4},
	}},
	{ID: "cool", Label: "クール", Steps: []Adjustment{
		{Op: OpHueRotate, Amount: 180},
		{Op: OpSaturate, Amount: 0.8},
		{Op: OpBrightness, Amount: 1.05},
	}},
	{ID: "warm", Label: "ウォーム", Steps: []Adjustment{
		{Op: OpSepia, Amount: 0.3},
		{Op: OpSaturate, Amount: 1.4},
		{Op: OpBrightness, Amount: 1.05},
	}},
	{ID: "dramatic", Label: "ドラマチック", Steps: []Adjustment{
		{Op: OpContrast, Amount: 1.5},
		{Op: OpSaturate, Amount: 1.2},
		{Op: OpBrightness, Amount: 0.9},
	}},
}

// All はカタログの全フィルターを定義順で返す
func All() []Descriptor {
	out := make([]Descriptor, len(catalog))
	for i, d := range catalog {
		out[i] = d.clone()
	}
	return out
}

// Lookup はIDに対応するフィルターを返す
func Lookup(id string) (Descriptor, bool) {
	for _, d := range catalog {
		if d.ID == id {
			return d.clone(), true
		}
	}
	return Descriptor{}, false
}

// Default は初期フィルターを返す
func Default() Descriptor {
	d, _ := Lookup(DefaultID)
	return d
}

// clone は呼び出し側がカタログを書き換えられないようにStepsを複製する
func (d Descriptor) clone() Descriptor {
	if d.Steps != nil {
		steps := make([]Adjustment, len(d.Steps))
		copy(steps, d.Steps)
		d.Steps = steps
	}
	return d
}

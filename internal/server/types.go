package server

import (
	"time"

	"purikura/internal/filter"
)

// HealthResponse はヘルスチェックの応答
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// FilterInfo はフィルター1件の応答
type FilterInfo struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	CSS   string `json:"css"` // プレビュー用のCSS filter値
}

// FiltersResponse はフィルター一覧の応答
type FiltersResponse struct {
	Filters []FilterInfo `json:"filters"`
	Default string       `json:"default"`
}

// SelectFilterRequest はフィルター選択のリクエスト
type SelectFilterRequest struct {
	ID string `json:"id" binding:"required"`
}

// ErrorResponse はエラー応答
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Hints     []string  `json:"hints,omitempty"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func newFilterInfo(d filter.Descriptor) FilterInfo {
	return FilterInfo{ID: d.ID, Label: d.Label, CSS: d.CSS()}
}

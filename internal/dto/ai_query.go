package dto

import (
	"copilot-salud-backend/internal/chart"
	"copilot-salud-backend/internal/intent"
	"copilot-salud-backend/internal/model"
)

// AIQueryRequest is one natural-language question for the pipeline.
type AIQueryRequest struct {
	Query string `json:"query" binding:"required" example:"¿Qué hospital tiene más camas?"`
	Theme string `json:"theme" example:"dark"`
}

// AIQueryResponse mirrors the pipeline result over the wire.
type AIQueryResponse struct {
	Status     string                `json:"status"`
	Analysis   *model.AnalysisResult `json:"analysis,omitempty"`
	Chart      *chart.Result         `json:"chart,omitempty"`
	Intent     intent.Intent         `json:"intent"`
	Reason     string                `json:"reason,omitempty"`
	RetryAfter int                   `json:"retry_after,omitempty"`
	Warning    string                `json:"warning,omitempty"`
	Error      string                `json:"error,omitempty"`
	DurationMS int64                 `json:"duration_ms"`
}

// DatasetInfo summarizes one loaded dataset for the catalog endpoint.
type DatasetInfo struct {
	Key     string   `json:"key"`
	Rows    int      `json:"rows"`
	Columns []string `json:"columns"`
}

// DatasetCatalog lists the datasets visible to the caller's role.
type DatasetCatalog struct {
	Role     string        `json:"role"`
	Datasets []DatasetInfo `json:"datasets"`
	Warnings []string      `json:"warnings,omitempty"`
}

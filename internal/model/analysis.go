package model

import "time"

// Metric is a single named value reported alongside an analysis,
// always backed by the loaded datasets, never invented by the model.
type Metric struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
	Unit  string      `json:"unit"`
}

// ChartSpec describes the visualization the LLM proposed for an answer.
// Axis names must reference real columns of the dataset named by
// AnalysisResult.DataQuery; the parser repairs them when they do not.
type ChartSpec struct {
	Type           string `json:"type"`
	Title          string `json:"title"`
	XAxis          string `json:"x_axis"`
	YAxis          string `json:"y_axis"`
	ColorBy        string `json:"color_by,omitempty"`
	SizeBy         string `json:"size_by,omitempty"`
	FilterCriteria string `json:"filter_criteria,omitempty"`
}

type AnalysisResult struct {
	AnalysisType     string    `json:"analysis_type"`
	MainInsight      string    `json:"main_insight"`
	DataQuery        string    `json:"data_query"`
	ChartConfig      ChartSpec `json:"chart_config"`
	Metrics          []Metric  `json:"metrics"`
	Recommendations  []string  `json:"recommendations"`
	DetailedFindings []string  `json:"detailed_findings"`
	Explanation      string    `json:"explanation"`
	Timestamp        time.Time `json:"timestamp"`
	Role             string    `json:"role"`
}

const (
	MaxMetrics         = 4
	MaxRecommendations = 3
)

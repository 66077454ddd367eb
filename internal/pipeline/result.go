package pipeline

import (
	"time"

	"copilot-salud-backend/internal/chart"
	"copilot-salud-backend/internal/intent"
	"copilot-salud-backend/internal/model"
)

// Status is the terminal state of one pipeline run.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusCacheHit  Status = "cache_hit"
	StatusRejected  Status = "rejected"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Rejection reasons.
const (
	RejectedRateLimited = "rate_limited"
	RejectedPermission  = "permission"
)

// Failure kinds.
const (
	FailureUpstream = "upstream"
	FailureParse    = "parse"
	FailureDataset  = "dataset"
)

// Result is the answer the pipeline hands to the API layer. Exactly
// one of the terminal states is set; Analysis and Chart are only
// present on success and cache_hit.
type Result struct {
	Status     Status                `json:"status"`
	Analysis   *model.AnalysisResult `json:"analysis,omitempty"`
	Chart      *chart.Result         `json:"chart,omitempty"`
	Intent     intent.Intent         `json:"intent"`
	Reason     string                `json:"reason,omitempty"`
	RetryAfter int                   `json:"retry_after,omitempty"`
	Warning    string                `json:"warning,omitempty"`
	Error      string                `json:"error,omitempty"`
	Duration   time.Duration         `json:"duration_ms"`
}

func success(analysis model.AnalysisResult, figure chart.Result, it intent.Intent) Result {
	return Result{Status: StatusSuccess, Analysis: &analysis, Chart: &figure, Intent: it}
}

func cacheHit(analysis model.AnalysisResult, figure chart.Result, it intent.Intent) Result {
	return Result{Status: StatusCacheHit, Analysis: &analysis, Chart: &figure, Intent: it}
}

func rejected(reason string, retryAfter int) Result {
	return Result{Status: StatusRejected, Reason: reason, RetryAfter: retryAfter}
}

func failed(kind string, err error) Result {
	r := Result{Status: StatusFailed, Reason: kind}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

func cancelled() Result {
	return Result{Status: StatusCancelled}
}

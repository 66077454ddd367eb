package dto

import (
	"copilot-salud-backend/internal/pipeline"
	"copilot-salud-backend/internal/ratelimit"
)

// CacheStats reports the answer cache counters.
type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

// SystemStats is the admin overview: limiter state, cache counters
// and pipeline outcomes since process start.
type SystemStats struct {
	RateLimiter ratelimit.Stats   `json:"rate_limiter"`
	Cache       CacheStats        `json:"cache"`
	Pipeline    pipeline.Snapshot `json:"pipeline"`
}

// UnblockRequest names the user whose block an admin lifts.
type UnblockRequest struct {
	Username string `json:"username" binding:"required"`
}

// ClearIPRequest names the IP whose suspicious mark an admin clears.
type ClearIPRequest struct {
	IP string `json:"ip" binding:"required"`
}

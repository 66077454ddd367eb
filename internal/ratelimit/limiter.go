package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"copilot-salud-backend/internal/audit"
)

// Limit describes one action class: how many requests a user may make
// inside a sliding window.
type Limit struct {
	MaxRequests int
	Window      time.Duration
}

// Limits maps action classes to their sliding-window budgets. Unknown
// actions fall back to "general".
var Limits = map[string]Limit{
	"login":           {MaxRequests: 5, Window: 300 * time.Second},
	"ai_query":        {MaxRequests: 10, Window: 60 * time.Second},
	"data_access":     {MaxRequests: 100, Window: 60 * time.Second},
	"admin_action":    {MaxRequests: 20, Window: 60 * time.Second},
	"user_management": {MaxRequests: 5, Window: 300 * time.Second},
	"system_config":   {MaxRequests: 3, Window: 600 * time.Second},
	"general":         {MaxRequests: 200, Window: 60 * time.Second},
}

const (
	maxFailedAttempts   = 5
	baseBlockSeconds    = 1800
	maxBlockSeconds     = 86400
	suspiciousThreshold = 3
	suspiciousTTL       = 3600 * time.Second
	warningThreshold    = 3
)

// Reasons reported on a denied Decision.
const (
	ReasonRateLimited  = "rate_limited"
	ReasonBlocked      = "blocked"
	ReasonSuspiciousIP = "suspicious_ip"
)

// Decision is the outcome of an Allow check.
type Decision struct {
	Allowed    bool   `json:"allowed"`
	Reason     string `json:"reason,omitempty"`
	RetryAfter int    `json:"retry_after,omitempty"`
	Remaining  int    `json:"remaining"`
	Warning    string `json:"warning,omitempty"`
}

type blockInfo struct {
	FailedAttempts int    `json:"failed_attempts"`
	FirstFailure   int64  `json:"first_failure,omitempty"`
	LastFailure    int64  `json:"last_failure,omitempty"`
	BlockedAt      int64  `json:"blocked_at,omitempty"`
	ExpiresAt      int64  `json:"expires_at,omitempty"`
	BlockLevel     int    `json:"block_level"`
	Reason         string `json:"reason,omitempty"`
	IPAddress      string `json:"ip_address,omitempty"`
}

func (b *blockInfo) active(now time.Time) bool {
	return b.ExpiresAt > 0 && now.Unix() < b.ExpiresAt
}

type ipMark struct {
	MarkedAt  int64  `json:"marked_at"`
	ExpiresAt int64  `json:"expires_at"`
	Reason    string `json:"reason,omitempty"`
}

// Stats is a snapshot of the limiter for the admin surface.
type Stats struct {
	ActiveWindows   map[string]int `json:"active_windows"`
	BlockedUsers    []string       `json:"blocked_users"`
	SuspiciousIPs   []string       `json:"suspicious_ips"`
	TotalAllowed    int64          `json:"total_allowed"`
	TotalRejected   int64          `json:"total_rejected"`
	HourlyAICapping bool           `json:"hourly_ai_capping"`
}

// Limiter enforces per-user sliding-window rate limits with failure
// tracking, block escalation and suspicious-IP marking. State that
// must survive restarts (blocks, suspicious IPs) is persisted to a
// JSON file; in-flight windows are not.
type Limiter struct {
	mu          sync.Mutex
	requests    map[string][]time.Time
	blocked     map[string]*blockInfo
	suspicious  map[string]ipMark
	clock       func() time.Time
	state       *stateManager
	auditor     *audit.Logger
	hourlyAICap int

	allowed  int64
	rejected int64
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(l *Limiter) { l.clock = clock }
}

// WithHourlyAICap enables a secondary hourly budget for ai_query on
// top of the per-minute window. Zero disables it.
func WithHourlyAICap(n int) Option {
	return func(l *Limiter) { l.hourlyAICap = n }
}

// NewLimiter builds a limiter backed by the given state file. Blocks
// and suspicious IPs persisted by a previous run are reloaded,
// dropping entries that have already expired.
func NewLimiter(stateFile string, auditor *audit.Logger, opts ...Option) *Limiter {
	l := &Limiter{
		requests:   make(map[string][]time.Time),
		blocked:    make(map[string]*blockInfo),
		suspicious: make(map[string]ipMark),
		clock:      time.Now,
		state:      newStateManager(stateFile),
		auditor:    auditor,
	}
	for _, opt := range opts {
		opt(l)
	}

	persisted, err := l.state.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Continuing with empty rate limiter state")
	}
	now := l.clock()
	for user, info := range persisted.BlockedUsers {
		if info.active(now) || info.FailedAttempts > 0 && info.ExpiresAt == 0 {
			l.blocked[user] = info
		}
	}
	for ip, mark := range persisted.SuspiciousIPs {
		if now.Unix() < mark.ExpiresAt {
			l.suspicious[ip] = mark
		}
	}
	return l
}

// LimitFor returns the budget for an action class, falling back to
// the general class for unknown actions.
func LimitFor(action string) Limit {
	if lim, ok := Limits[action]; ok {
		return lim
	}
	return Limits["general"]
}

// Allow checks whether user may perform action now. The call itself
// counts against the window when allowed.
func (l *Limiter) Allow(user, action, ip string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()

	if info, ok := l.blocked[user]; ok && info.active(now) {
		l.rejected++
		retry := int(info.ExpiresAt - now.Unix())
		l.auditRateLimit("blocked_request", user, action, ip, map[string]interface{}{
			"retry_after": retry,
			"block_level": info.BlockLevel,
		})
		return Decision{Allowed: false, Reason: ReasonBlocked, RetryAfter: retry}
	}

	if ip != "" {
		if mark, ok := l.suspicious[ip]; ok {
			if now.Unix() < mark.ExpiresAt {
				l.rejected++
				l.auditor.Suspicious("suspicious_ip_rejected", map[string]interface{}{
					"user":   user,
					"action": action,
					"ip":     ip,
				})
				return Decision{Allowed: false, Reason: ReasonSuspiciousIP, RetryAfter: int(mark.ExpiresAt - now.Unix())}
			}
			delete(l.suspicious, ip)
		}
	}

	lim := LimitFor(action)
	key := user + "_" + action
	window := l.prune(key, now, lim.Window)

	if len(window) >= lim.MaxRequests {
		l.rejected++
		l.auditRateLimit("rate_limit_exceeded", user, action, ip, map[string]interface{}{
			"limit":       lim.MaxRequests,
			"window_secs": int(lim.Window.Seconds()),
		})
		return Decision{Allowed: false, Reason: ReasonRateLimited, RetryAfter: int(lim.Window.Seconds())}
	}

	if action == "ai_query" && l.hourlyAICap > 0 {
		hourKey := user + "_ai_query_hourly"
		hourWindow := l.prune(hourKey, now, time.Hour)
		if len(hourWindow) >= l.hourlyAICap {
			l.rejected++
			l.auditRateLimit("hourly_ai_cap_exceeded", user, action, ip, map[string]interface{}{
				"limit": l.hourlyAICap,
			})
			return Decision{Allowed: false, Reason: ReasonRateLimited, RetryAfter: 3600}
		}
		l.requests[hourKey] = append(hourWindow, now)
	}

	l.requests[key] = append(window, now)
	l.allowed++

	remaining := lim.MaxRequests - len(l.requests[key])
	dec := Decision{Allowed: true, Remaining: remaining}
	if remaining <= warningThreshold {
		dec.Warning = fmt.Sprintf("quedan %d peticiones en la ventana actual", remaining)
	}
	return dec
}

// prune must be called with the lock held.
func (l *Limiter) prune(key string, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	stamps := l.requests[key]
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}

// RecordFailure registers a failed attempt (bad login, rejected
// admin action). Five consecutive failures block the user, with the
// block duration doubling on each escalation up to a day. Three or
// more failures mark the source IP as suspicious.
func (l *Limiter) RecordFailure(user, action, ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	info, ok := l.blocked[user]
	if !ok {
		info = &blockInfo{FirstFailure: now.Unix()}
		l.blocked[user] = info
	}
	info.FailedAttempts++
	info.LastFailure = now.Unix()
	if ip != "" {
		info.IPAddress = ip
	}

	if ip != "" && info.FailedAttempts >= suspiciousThreshold {
		l.suspicious[ip] = ipMark{
			MarkedAt:  now.Unix(),
			ExpiresAt: now.Add(suspiciousTTL).Unix(),
			Reason:    fmt.Sprintf("%d fallos consecutivos de %s", info.FailedAttempts, user),
		}
		l.auditor.Suspicious("ip_marked_suspicious", map[string]interface{}{
			"ip":       ip,
			"user":     user,
			"failures": info.FailedAttempts,
		})
	}

	if info.FailedAttempts >= maxFailedAttempts {
		duration := baseBlockSeconds
		for i := 0; i < info.BlockLevel; i++ {
			duration *= 2
			if duration >= maxBlockSeconds {
				duration = maxBlockSeconds
				break
			}
		}
		info.BlockedAt = now.Unix()
		info.ExpiresAt = now.Unix() + int64(duration)
		info.BlockLevel++
		info.FailedAttempts = 0
		info.Reason = fmt.Sprintf("bloqueo automático tras %d intentos fallidos (%s)", maxFailedAttempts, action)

		l.auditor.Security("user_blocked", map[string]interface{}{
			"user":          user,
			"action":        action,
			"ip":            ip,
			"block_level":   info.BlockLevel,
			"duration_secs": duration,
			"block_expires": info.ExpiresAt,
		})
	} else {
		l.auditor.Security("failed_attempt", map[string]interface{}{
			"user":     user,
			"action":   action,
			"ip":       ip,
			"failures": info.FailedAttempts,
		})
	}

	l.persistLocked()
}

// RecordSuccess resets the consecutive-failure counter for a user.
// An active block stays in force until it expires or an admin lifts
// it; only the escalation trail is cleared.
func (l *Limiter) RecordSuccess(user string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	info, ok := l.blocked[user]
	if !ok {
		return
	}
	if info.active(l.clock()) {
		return
	}
	delete(l.blocked, user)
	l.persistLocked()
}

// Unblock lifts an active block. Returns false when the user was not
// blocked.
func (l *Limiter) Unblock(user, admin string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	info, ok := l.blocked[user]
	if !ok || !info.active(l.clock()) {
		return false
	}
	delete(l.blocked, user)
	l.auditor.Security("user_unblocked", map[string]interface{}{
		"user":  user,
		"admin": admin,
	})
	l.persistLocked()
	return true
}

// ClearIP removes a suspicious-IP mark. Returns false when the IP
// was not marked.
func (l *Limiter) ClearIP(ip, admin string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.suspicious[ip]; !ok {
		return false
	}
	delete(l.suspicious, ip)
	l.auditor.Security("suspicious_ip_cleared", map[string]interface{}{
		"ip":    ip,
		"admin": admin,
	})
	l.persistLocked()
	return true
}

// Stats returns a snapshot for the admin endpoints.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	stats := Stats{
		ActiveWindows:   make(map[string]int),
		TotalAllowed:    l.allowed,
		TotalRejected:   l.rejected,
		HourlyAICapping: l.hourlyAICap > 0,
	}
	for key, stamps := range l.requests {
		count := 0
		for _, ts := range stamps {
			if now.Sub(ts) < time.Hour {
				count++
			}
		}
		if count > 0 {
			stats.ActiveWindows[key] = count
		}
	}
	for user, info := range l.blocked {
		if info.active(now) {
			stats.BlockedUsers = append(stats.BlockedUsers, user)
		}
	}
	for ip, mark := range l.suspicious {
		if now.Unix() < mark.ExpiresAt {
			stats.SuspiciousIPs = append(stats.SuspiciousIPs, ip)
		}
	}
	return stats
}

// Sweep drops expired window entries, blocks and IP marks. Called
// periodically by the scheduler.
func (l *Limiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	for key, stamps := range l.requests {
		cutoff := now.Add(-time.Hour)
		kept := stamps[:0]
		for _, ts := range stamps {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		if len(kept) == 0 {
			delete(l.requests, key)
		} else {
			l.requests[key] = kept
		}
	}
	changed := false
	for user, info := range l.blocked {
		if info.ExpiresAt > 0 && !info.active(now) {
			delete(l.blocked, user)
			changed = true
		}
	}
	for ip, mark := range l.suspicious {
		if now.Unix() >= mark.ExpiresAt {
			delete(l.suspicious, ip)
			changed = true
		}
	}
	if changed {
		l.persistLocked()
	}
}

// persistLocked must be called with the lock held.
func (l *Limiter) persistLocked() {
	state := persistedState{
		BlockedUsers:  make(map[string]*blockInfo, len(l.blocked)),
		SuspiciousIPs: make(map[string]ipMark, len(l.suspicious)),
		LastSaved:     l.clock().Unix(),
	}
	for user, info := range l.blocked {
		state.BlockedUsers[user] = info
	}
	for ip, mark := range l.suspicious {
		state.SuspiciousIPs[ip] = mark
	}
	if err := l.state.Save(state); err != nil {
		log.Error().Err(err).Msg("Failed to persist rate limiter state")
	}
}

func (l *Limiter) auditRateLimit(event, user, action, ip string, extra map[string]interface{}) {
	fields := map[string]interface{}{
		"user":   user,
		"action": action,
		"ip":     ip,
	}
	for k, v := range extra {
		fields[k] = v
	}
	l.auditor.RateLimiting(event, fields)
}

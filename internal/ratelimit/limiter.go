// Package ratelimit tracks per-client request counts and cumulative cost in
// sliding hour/day windows, held entirely in memory. Limits are advisory:
// state is lost on restart, and concurrent requests from one client may both
// pass Check before either records usage. Both are accepted limitations, not
// defects.
//
// Callers invoke Record only for calls that produced billable usage;
// downstream failures and incomplete responses return no usage and are not
// counted against the daily cost cap.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avezina/deepscout/internal/research"
)

// Denial reasons returned in Decision.Reason.
const (
	ReasonHourly = "hourly_limit"
	ReasonCost   = "cost_limit"
	ReasonDaily  = "daily_limit"
)

// Config holds the rate-limit thresholds.
type Config struct {
	// HourlyRequests caps requests per client per hour bucket.
	HourlyRequests int

	// DailyCostCapUSD caps the projected per-client daily spend.
	DailyCostCapUSD float64

	// DailyRequestsHigh and DailyRequestsMedium cap per-level daily counts.
	DailyRequestsHigh   int
	DailyRequestsMedium int

	// SweepInterval is the period of the background purge. Default 60s.
	SweepInterval time.Duration

	// IdleExpiry is how long an inactive client's state is kept. Default 48h.
	IdleExpiry time.Duration
}

// Decision is the outcome of a limit check.
type Decision struct {
	Allowed    bool
	Reason     string
	Remaining  int
	RetryAfter time.Time
}

// clientUsage is the per-client counter table. Keys are time-bucket strings:
// "hour:<n>", "day:<n>:<level>", "cost:<n>", "tokens:<n>".
type clientUsage struct {
	counts      map[string]float64
	lastRequest time.Time
}

// Limiter is an in-memory, mutex-guarded rate limiter. Create instances with
// [New]; the zero value is not usable.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*clientUsage
	cfg     Config
	logger  *slog.Logger

	// now is injectable for tests.
	now func() time.Time
}

// New constructs a Limiter. logger may be nil.
func New(cfg Config, logger *slog.Logger) *Limiter {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.IdleExpiry <= 0 {
		cfg.IdleExpiry = 48 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		clients: make(map[string]*clientUsage),
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Check evaluates whether clientID may issue a request at the given level.
// Checks run in order — hourly count, projected daily cost, per-level daily
// count — and the first failing check wins. Internal failures fail open:
// rate limiting must never become a single point of total denial.
func (l *Limiter) Check(clientID string, level research.AccuracyLevel, estimatedCost float64) (d Decision) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("rate limit check failed internally — failing open", "panic", r, "client_id", clientID)
			d = Decision{Allowed: true, Remaining: 0}
		}
	}()

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	u := l.clients[clientID]
	if u == nil {
		u = &clientUsage{counts: make(map[string]float64)}
	}

	hourly := int(u.counts[hourKey(now)])
	if hourly >= l.cfg.HourlyRequests {
		return Decision{Reason: ReasonHourly, RetryAfter: nextHour(now)}
	}

	if u.counts[costKey(now)]+estimatedCost > l.cfg.DailyCostCapUSD {
		return Decision{Reason: ReasonCost, RetryAfter: nextDay(now)}
	}

	dailyLimit := l.dailyLimit(level)
	daily := int(u.counts[dayKey(now, level)])
	if daily >= dailyLimit {
		return Decision{Reason: ReasonDaily, RetryAfter: nextDay(now)}
	}

	// Remaining quota reserves the slot about to be used.
	remaining := min(l.cfg.HourlyRequests-hourly, dailyLimit-daily) - 1
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Remaining: remaining}
}

// Record accounts one completed downstream call. Call it exactly once per
// call that reached the external API, never for requests the validator
// rejected.
func (l *Limiter) Record(clientID string, level research.AccuracyLevel, actualCost float64, tokensUsed int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	u := l.clients[clientID]
	if u == nil {
		u = &clientUsage{counts: make(map[string]float64)}
		l.clients[clientID] = u
	}
	u.counts[hourKey(now)]++
	u.counts[dayKey(now, level)]++
	u.counts[costKey(now)] += actualCost
	u.counts[tokensKey(now)] += float64(tokensUsed)
	u.lastRequest = now
}

// Stats describes a client's current-window usage.
type Stats struct {
	HourlyRequests int
	DailyCostUSD   float64
	DailyTokens    int64
	LastRequest    time.Time
}

// Stats returns the current-window usage for clientID. The second return is
// false when the client has no recorded state.
func (l *Limiter) Stats(clientID string) (Stats, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	u, ok := l.clients[clientID]
	if !ok {
		return Stats{}, false
	}
	now := l.now()
	return Stats{
		HourlyRequests: int(u.counts[hourKey(now)]),
		DailyCostUSD:   u.counts[costKey(now)],
		DailyTokens:    int64(u.counts[tokensKey(now)]),
		LastRequest:    u.lastRequest,
	}, true
}

// Run sweeps expired state every SweepInterval until ctx is cancelled.
func (l *Limiter) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.sweep()
		}
	}
}

// sweep drops clients idle past IdleExpiry and, within live clients, buckets
// older than the previous hour (hour buckets) or the previous day (day, cost,
// and token buckets). Keeps memory bounded under long-running operation.
func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	minHour := now.Unix()/3600 - 1
	minDay := now.Unix()/86400 - 1

	removedClients, removedBuckets := 0, 0
	for id, u := range l.clients {
		if now.Sub(u.lastRequest) > l.cfg.IdleExpiry {
			delete(l.clients, id)
			removedClients++
			continue
		}
		for key := range u.counts {
			if bucketExpired(key, minHour, minDay) {
				delete(u.counts, key)
				removedBuckets++
			}
		}
	}
	if removedClients > 0 || removedBuckets > 0 {
		l.logger.Debug("rate limit sweep completed",
			"clients_removed", removedClients,
			"buckets_removed", removedBuckets,
			"clients_live", len(l.clients),
		)
	}
}

func (l *Limiter) dailyLimit(level research.AccuracyLevel) int {
	if level == research.AccuracyHigh {
		return l.cfg.DailyRequestsHigh
	}
	return l.cfg.DailyRequestsMedium
}

// Bucket key helpers. Buckets are keyed by coarse UTC epoch divisions so a
// key never spans a boundary.

func hourKey(t time.Time) string {
	return fmt.Sprintf("hour:%d", t.Unix()/3600)
}

func dayKey(t time.Time, level research.AccuracyLevel) string {
	return fmt.Sprintf("day:%d:%s", t.Unix()/86400, level)
}

func costKey(t time.Time) string {
	return fmt.Sprintf("cost:%d", t.Unix()/86400)
}

func tokensKey(t time.Time) string {
	return fmt.Sprintf("tokens:%d", t.Unix()/86400)
}

// bucketExpired parses a bucket key and reports whether it predates the
// retention floor. Unparseable keys count as expired.
func bucketExpired(key string, minHour, minDay int64) bool {
	var n int64
	switch {
	case scanBucket(key, "hour:%d", &n):
		return n < minHour
	case scanBucket(key, "cost:%d", &n), scanBucket(key, "tokens:%d", &n):
		return n < minDay
	default:
		var level string
		if _, err := fmt.Sscanf(key, "day:%d:%s", &n, &level); err == nil {
			return n < minDay
		}
		return true
	}
}

func scanBucket(key, format string, n *int64) bool {
	_, err := fmt.Sscanf(key, format, n)
	return err == nil
}

func nextHour(t time.Time) time.Time {
	return t.Truncate(time.Hour).Add(time.Hour)
}

func nextDay(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
}

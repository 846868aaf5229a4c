// Package metrics provides Prometheus metrics for Glow: sessions, rewards,
// loot, notifications, store latency and HTTP traffic.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Sessions ───────────────────────────────────────────────────────────────

// SessionsRecorded counts completed sessions by activity type.
var SessionsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "glow",
	Name:      "sessions_recorded_total",
	Help:      "Total completed meditation sessions.",
}, []string{"type"})

// SessionMinutes counts meditated minutes by activity type.
var SessionMinutes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "glow",
	Name:      "session_minutes_total",
	Help:      "Total meditated minutes.",
}, []string{"type"})

// SessionsRejected counts sessions refused by validation or a store failure.
var SessionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "glow",
	Name:      "sessions_rejected_total",
	Help:      "Sessions that did not produce a reward.",
}, []string{"reason"})

// ─── Rewards ────────────────────────────────────────────────────────────────

// XPGranted counts XP granted across all users.
var XPGranted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "glow",
	Name:      "xp_granted_total",
	Help:      "Total XP granted.",
})

// TokensGranted counts tokens granted by ledger entry type.
var TokensGranted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "glow",
	Name:      "tokens_granted_total",
	Help:      "Total tokens granted.",
}, []string{"type"})

// LevelUps counts level-up events.
var LevelUps = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "glow",
	Name:      "level_ups_total",
	Help:      "Total level-up events.",
})

// StreakLength observes the streak reached by each first-of-day session.
var StreakLength = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "glow",
	Name:      "streak_days",
	Help:      "Streak length after a first-of-day session.",
	Buckets:   []float64{1, 2, 3, 5, 7, 14, 30, 60, 100, 365},
})

// ─── Loot ───────────────────────────────────────────────────────────────────

// LootDraws counts resolved loot draws by kind.
var LootDraws = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "glow",
	Name:      "loot_draws_total",
	Help:      "Total loot draws by kind.",
}, []string{"kind"})

// CardsRevealed counts opened glow cards.
var CardsRevealed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "glow",
	Name:      "cards_revealed_total",
	Help:      "Total glow cards revealed.",
})

// StreakSaversUsed counts savers consumed by sessions and the nightly sweep.
var StreakSaversUsed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "glow",
	Name:      "streak_savers_used_total",
	Help:      "Streak savers consumed to keep a streak alive.",
})

// ─── Engagement ─────────────────────────────────────────────────────────────

// AchievementsUnlocked counts achievement unlocks by category.
var AchievementsUnlocked = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "glow",
	Name:      "achievements_unlocked_total",
	Help:      "Total achievements unlocked.",
}, []string{"category"})

// NotificationsSent counts notifications by type and outcome (sent, suppressed).
var NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "glow",
	Name:      "notifications_total",
	Help:      "Notifications by type and outcome.",
}, []string{"type", "outcome"})

// ─── Store & Health ─────────────────────────────────────────────────────────

// StoreLatency tracks store operation duration in seconds.
var StoreLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "glow",
	Name:      "store_latency_seconds",
	Help:      "Store operation duration in seconds.",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
}, []string{"op"})

// HealthStatus tracks health check results (1 = healthy, 0 = unhealthy).
var HealthStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "glow",
	Name:      "health_status",
	Help:      "Health check status (1=healthy, 0=unhealthy).",
}, []string{"check"})

// JobRuns counts scheduled job executions by job and result.
var JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "glow",
	Name:      "job_runs_total",
	Help:      "Scheduled job runs.",
}, []string{"job", "result"})

// ─── HTTP ───────────────────────────────────────────────────────────────────

// HTTPRequests counts API requests by route pattern and status code.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "glow",
	Name:      "http_requests_total",
	Help:      "API requests by route and status.",
}, []string{"route", "code"})

// HTTPLatency tracks API request duration in seconds.
var HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "glow",
	Name:      "http_request_duration_seconds",
	Help:      "API request duration in seconds.",
	Buckets:   prometheus.DefBuckets,
}, []string{"route"})

// Package metrics holds the Prometheus instrumentation for the moderation bot:
// command outcomes, auto-moderation triggers, audit writes and pending unmutes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CommandsTotal counts prefix commands by name and outcome. The result
	// label is "ok", "denied", "usage", "failed", "refused" or "error".
	CommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "modbot_commands_total",
		Help: "Total number of prefix commands handled",
	}, []string{"command", "result"})

	// AutomodTriggersTotal counts messages removed for a blacklisted word.
	AutomodTriggersTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "modbot_automod_triggers_total",
		Help: "Total number of messages removed by auto-moderation",
	})

	AuditEntriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "modbot_audit_entries_total",
		Help: "Total number of audit entries written",
	})

	// WarningsIssuedTotal counts warnings by issuer kind: "auto" or "moderator".
	WarningsIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "modbot_warnings_issued_total",
		Help: "Total number of warnings recorded",
	}, []string{"issuer"})

	// BestEffortFailuresTotal counts swallowed failures of best-effort steps.
	BestEffortFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "modbot_best_effort_failures_total",
		Help: "Total number of swallowed best-effort step failures",
	}, []string{"step"})

	PendingUnmutes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "modbot_pending_unmutes",
		Help: "Current number of scheduled automatic unmutes",
	})
)

func init() {
	prometheus.MustRegister(
		CommandsTotal,
		AutomodTriggersTotal,
		AuditEntriesTotal,
		WarningsIssuedTotal,
		BestEffortFailuresTotal,
		PendingUnmutes,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

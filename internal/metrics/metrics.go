// Package metrics exposes Prometheus instrumentation for the reminder
// engine. Counters are registered once at init via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SchedulerTicks counts minute-tick executions
	SchedulerTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medremind_scheduler_ticks_total",
		Help: "Number of scheduler minute ticks executed",
	})

	// DueSelected counts medications selected as due per tick
	DueSelected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medremind_due_selected_total",
		Help: "Number of medications selected for reminder dispatch",
	})

	// ExpiredSkipped counts medications skipped because their reminder
	// window has lapsed
	ExpiredSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medremind_expired_skipped_total",
		Help: "Number of due medications skipped for an expired reminder window",
	})

	// NotificationsSent counts successful channel sends
	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medremind_notifications_sent_total",
		Help: "Number of notifications sent, by channel",
	}, []string{"channel"})

	// NotificationsFailed counts failed channel sends
	NotificationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medremind_notifications_failed_total",
		Help: "Number of notification sends that failed, by channel",
	}, []string{"channel"})

	// DigestsSent counts daily digest emails delivered
	DigestsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medremind_digests_sent_total",
		Help: "Number of daily digest emails sent",
	})

	// TickDuration observes how long each minute tick takes end to end
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "medremind_tick_duration_seconds",
		Help:    "Duration of scheduler minute ticks",
		Buckets: prometheus.DefBuckets,
	})

	// CalendarSyncs counts calendar sync attempts by outcome
	CalendarSyncs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medremind_calendar_syncs_total",
		Help: "Number of calendar sync attempts, by outcome",
	}, []string{"outcome"})
)

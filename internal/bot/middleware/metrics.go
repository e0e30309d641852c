package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbourn/go-group-bot/internal/bot"
)

var (
	// dispatchTotal counts messages by matched command and outcome.
	dispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupbot_messages_total",
			Help: "Inbound messages by matched command and outcome.",
		},
		[]string{"command", "outcome"},
	)

	// dispatchLat records time spent inside the pipeline below this middleware.
	dispatchLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "groupbot_message_duration_seconds",
			Help:    "Time spent handling inbound messages in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)

	dispatchInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "groupbot_messages_inflight",
			Help: "Messages currently in the pipeline.",
		},
	)
)

func init() {
	prometheus.MustRegister(dispatchTotal, dispatchLat, dispatchInflight)
}

// Metrics instruments every message. Unmatched messages are labelled
// command="none" so cardinality stays bounded by the command table.
func Metrics() bot.Middleware {
	return bot.Middleware{
		Name:     "metrics",
		Priority: PriorityMetrics,
		Handler: func(c *bot.Context) (bot.Step, error) {
			start := time.Now()
			dispatchInflight.Inc()

			return bot.Around(func(c *bot.Context, err error) {
				dispatchInflight.Dec()

				command := "none"
				if m, ok := c.Match(); ok {
					command = m.Command
				}
				outcome := "ok"
				switch {
				case err != nil:
					outcome = "error"
				case c.Bool(KeyRateLimited):
					outcome = "rate_limited"
				case c.Bool(bot.KeyBlacklisted):
					outcome = "blacklisted"
				}
				dispatchTotal.WithLabelValues(command, outcome).Inc()
				dispatchLat.WithLabelValues(command).Observe(time.Since(start).Seconds())
			}), nil
		},
	}
}

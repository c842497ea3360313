/*
Package metrics exposes Prometheus counters for mentorship activity.

Collectors register with the default registry; the server mounts promhttp on /metrics.
*/
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mentorlink"

var (
	// RelationshipsStarted counts relationships created by committed selections.
	RelationshipsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "relationships_started_total",
		Help:      "Mentor-mentee relationships created.",
	})

	// RelationshipsEnded counts relationships ended by their mentor.
	RelationshipsEnded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "relationships_ended_total",
		Help:      "Mentor-mentee relationships ended.",
	})

	// MessagesSent counts stored messages by content variant (text, file, combined).
	MessagesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_sent_total",
		Help:      "Messages stored, by content variant.",
	}, []string{"variant"})

	// MessagesDeleted counts messages removed by their sender.
	MessagesDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_deleted_total",
		Help:      "Messages deleted by their sender.",
	})

	// ReactionsAdded counts reactions that were not duplicates.
	ReactionsAdded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reactions_added_total",
		Help:      "Reactions added to messages.",
	})

	// ThreadFetches counts authoritative thread fetches, which is the polling load.
	ThreadFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "thread_fetches_total",
		Help:      "Thread fetches served, by caller role.",
	}, []string{"role"})
)

func init() {
	prometheus.MustRegister(
		RelationshipsStarted,
		RelationshipsEnded,
		MessagesSent,
		MessagesDeleted,
		ReactionsAdded,
		ThreadFetches,
	)
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

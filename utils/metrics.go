package utils

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RegistrationsTotal counts team registration attempts by outcome.
	RegistrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "unihub",
		Name:      "event_registrations_total",
		Help:      "Team registration and unregistration attempts by action and result.",
	}, []string{"action", "result"})

	// MediaOperationsTotal counts calls to the media store.
	MediaOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "unihub",
		Name:      "media_operations_total",
		Help:      "Media store uploads and deletions by operation and result.",
	}, []string{"operation", "result"})

	EmailsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "unihub",
		Name:      "emails_sent_total",
		Help:      "Account emails by kind and result.",
	}, []string{"kind", "result"})
)

// ResultLabel maps an error to the "ok"/"error" label value.
func ResultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

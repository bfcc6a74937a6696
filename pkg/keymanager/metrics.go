package keymanager

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	imports       *prometheus.CounterVec
	deletions     *prometheus.CounterVec
	notifications prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)

	return &metrics{
		imports: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keymanager",
			Name:      "imports_total",
			Help:      "Number of keys processed by import, by result status.",
		}, []string{"status"}),
		deletions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keymanager",
			Name:      "deletions_total",
			Help:      "Number of keys processed by delete, by result status.",
		}, []string{"status"}),
		notifications: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "keymanager",
			Name:      "duty_notifications_total",
			Help:      "Number of times duty scheduling was notified of new validators.",
		}),
	}
}

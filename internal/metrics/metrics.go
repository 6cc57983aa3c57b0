package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	SignIns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "session",
			Name:      "signin_total",
			Help:      "Sign-in attempts by provider and outcome kind.",
		},
		[]string{"provider", "outcome"},
	)

	SyncPermitted = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "session",
			Name:      "sync_permitted",
			Help:      "1 while the current identity may sync remotely.",
		},
	)
)

// Register adds all collectors to reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{SignIns, SyncPermitted} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

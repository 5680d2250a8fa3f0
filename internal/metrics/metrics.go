package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Store writes issued by the engine
	StoreWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timelogger_store_writes_total",
			Help: "Total writes submitted to the store",
		},
		[]string{"op", "result"},
	)

	// Live subscriptions currently open against the store
	ActiveSubscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "timelogger_active_subscriptions",
			Help: "Number of open store subscriptions",
		},
	)

	SnapshotsPushed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timelogger_snapshots_pushed_total",
			Help: "Snapshots pushed to live clients",
		},
		[]string{"kind"},
	)

	// Live WebSocket clients
	LiveClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "timelogger_live_clients",
			Help: "Number of connected live clients",
		},
	)

	SignInsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timelogger_sign_ins_total",
			Help: "Sign-ins by identity provider and whether a profile was created",
		},
		[]string{"provider", "new_profile"},
	)
)

func init() {
	prometheus.MustRegister(
		StoreWritesTotal,
		ActiveSubscriptions,
		SnapshotsPushed,
		LiveClients,
		SignInsTotal,
	)
}

// Handler exposes the default registry for mounting on the API router.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// WriteResult records the outcome of one store write.
func WriteResult(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	StoreWritesTotal.WithLabelValues(op, result).Inc()
}

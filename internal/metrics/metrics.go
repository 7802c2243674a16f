package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ticks_total", Help: "Count of market ticks ingested"},
		[]string{"symbol"},
	)
	BarsBuiltTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bars_built_total", Help: "Bars written by the resampler"},
		[]string{"symbol", "interval"},
	)
	AlertsTriggeredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "alerts_triggered_total", Help: "Alert rules fired"},
		[]string{"condition"},
	)
	PersistErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "persist_errors_total", Help: "Durable tick writes/deletes that failed"},
	)
	BufferedTicks = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "buffered_ticks", Help: "Ticks currently held in memory"},
		[]string{"symbol"},
	)
)

func init() {
	prometheus.MustRegister(TicksTotal, BarsBuiltTotal, AlertsTriggeredTotal, PersistErrorsTotal, BufferedTicks)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}

package promclient

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var OpenStreamsGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "tplus_open_streams",
		Help: "number of open websocket subscriptions",
	},
)

var OpenDepthStreamsGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "tplus_open_depth_streams",
		Help: "number of depth streams with an active orderbook maintainer",
	},
)

var AppliedDiffsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "tplus_applied_depth_diffs_total",
		Help: "order book diffs applied in sequence",
	},
)

var DepthResyncsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "tplus_depth_resyncs_total",
		Help: "forced order book resynchronizations (gaps, reconnects, overflows)",
	},
)

var StreamReconnectsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "tplus_stream_reconnects_total",
		Help: "websocket reconnect attempts across all streams",
	},
)

var DroppedStreamBuffersTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "tplus_dropped_stream_buffers_total",
		Help: "stream buffers dropped because a consumer could not keep pace",
	},
)

var SignedRequestsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "tplus_signed_requests_total",
		Help: "signed mutating requests dispatched",
	},
)

func StartPromClientServer(addr string) {
	reg := prometheus.NewRegistry()
	promHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	reg.MustRegister(OpenStreamsGauge)
	reg.MustRegister(OpenDepthStreamsGauge)
	reg.MustRegister(AppliedDiffsTotal)
	reg.MustRegister(DepthResyncsTotal)
	reg.MustRegister(StreamReconnectsTotal)
	reg.MustRegister(DroppedStreamBuffersTotal)
	reg.MustRegister(SignedRequestsTotal)
	reg.MustRegister(collectors.NewGoCollector())

	http.Handle("/metrics", promHandler)
	log.WithField("component", "promclient").Infof("prometheus server listening at %s", addr)

	if err := http.ListenAndServe(addr, nil); err != nil {
		log.WithField("component", "promclient").Fatalf("failed to serve: %v", err)
	}
}

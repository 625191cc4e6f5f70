package recidx

import "github.com/prometheus/client_golang/prometheus"

var LookupCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "recidx",
	Subsystem: "index",
	Name:      "lookups",
}, []string{"index"})

var RefreshCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "recidx",
	Subsystem: "index",
	Name:      "refresh",
}, []string{"index", "reason"})

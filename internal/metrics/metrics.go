// Package metrics exposes synchronization counters for Prometheus.
//
// A nil *Collector is valid and records nothing, so the engine can call it
// unconditionally.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "offsync"

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Collector holds the per-collection sync metrics.
type Collector struct {
	Pushes  *prometheus.CounterVec
	Fetches *prometheus.CounterVec
	Retired *prometheus.CounterVec
	Pending *prometheus.GaugeVec
	Online  prometheus.Gauge
}

// New creates a Collector and registers it with reg. A nil reg skips
// registration.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		Pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "total",
			Help:      "Pushes of pending changes to the remote source.",
		}, []string{"collection", "type", "result"}),
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "total",
			Help:      "Full fetches of a remote collection.",
		}, []string{"collection", "result"}),
		Retired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "changes",
			Name:      "retired_total",
			Help:      "Pending changes removed by reconciliation.",
		}, []string{"collection", "type", "reason"}),
		Pending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "changes",
			Name:      "pending",
			Help:      "Pending changes awaiting confirmation.",
		}, []string{"collection"}),
		Online: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online",
			Help:      "1 while the remote source is reachable.",
		}),
	}
	if reg == nil {
		return c, nil
	}
	for _, col := range []prometheus.Collector{c.Pushes, c.Fetches, c.Retired, c.Pending, c.Online} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

// ObservePush counts one finished push.
func (c *Collector) ObservePush(collection, kind string, err error) {
	if c == nil {
		return
	}
	c.Pushes.WithLabelValues(collection, kind, result(err)).Inc()
}

// ObserveFetch counts one finished fetch.
func (c *Collector) ObserveFetch(collection string, err error) {
	if c == nil {
		return
	}
	c.Fetches.WithLabelValues(collection, result(err)).Inc()
}

// ObserveRetired counts one retired change.
func (c *Collector) ObserveRetired(collection, kind, reason string) {
	if c == nil {
		return
	}
	c.Retired.WithLabelValues(collection, kind, reason).Inc()
}

// SetPending records the current change log size.
func (c *Collector) SetPending(collection string, n int) {
	if c == nil {
		return
	}
	c.Pending.WithLabelValues(collection).Set(float64(n))
}

// SetOnline records the connectivity signal.
func (c *Collector) SetOnline(online bool) {
	if c == nil {
		return
	}
	if online {
		c.Online.Set(1)
	} else {
		c.Online.Set(0)
	}
}

// Package stats tracks counters, gauges and latency histograms the
// way common_statsd.go's coreStats did — a name-keyed Tracker, a
// reg/update/copyT lifecycle — generalized from StatsD's wire
// protocol onto github.com/prometheus/client_golang, the teacher's own
// Prometheus dependency.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package stats

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// ErrUnknownMetric is returned by Inc/Set/Observe naming a metric that
// was never registered.
var ErrUnknownMetric = errors.New("stats: unknown metric name")

// Collector is a namespaced set of Prometheus metrics registered
// against a private registry (not the global default one, so a
// process embedding SPeMPE can run more than one Collector without
// collision), mirroring coreStats' per-runner Tracker map.
type Collector struct {
	reg        *prometheus.Registry
	counters   map[string]prometheus.Counter
	gauges     map[string]prometheus.Gauge
	histograms map[string]prometheus.Histogram
}

// NewCollector returns an empty Collector whose metric names are
// prefixed "<namespace>_".
func NewCollector(namespace string) *Collector {
	c := &Collector{
		reg:        prometheus.NewRegistry(),
		counters:   make(map[string]prometheus.Counter),
		gauges:     make(map[string]prometheus.Gauge),
		histograms: make(map[string]prometheus.Histogram),
	}
	c.reg.MustRegister(prometheus.NewGoCollector())

	// naming convention mirrors common_statsd.go's reg(): ".n" counters,
	// ".bps"/gauge-style instantaneous values, ".ns" latencies.
	c.registerCounter(namespace, "ticks_run", "Total host-loop ticks executed.")
	c.registerCounter(namespace, "frames_sent", "Total wire frames sent.")
	c.registerCounter(namespace, "frames_received", "Total wire frames received.")
	c.registerCounter(namespace, "retransmits", "Total reliable-channel retransmissions.")
	c.registerCounter(namespace, "sync_waves_run", "Total RunWaves invocations across all registries.")
	c.registerGauge(namespace, "deactivated_recipients", "Recipients currently in the DEACTIVATE state across all masters.")
	c.registerGauge(namespace, "active_objects", "Objects currently registered with the active object runtime.")
	c.registerGauge(namespace, "connected_clients", "Sessions currently in the connected state.")
	c.registerHistogram(namespace, "tick_duration_seconds", "Wall-clock duration of one host-loop tick.",
		prometheus.DefBuckets)
	return c
}

func (c *Collector) registerCounter(ns, name, help string) {
	m := prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: name, Help: help})
	c.reg.MustRegister(m)
	c.counters[name] = m
}

func (c *Collector) registerGauge(ns, name, help string) {
	m := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: name, Help: help})
	c.reg.MustRegister(m)
	c.gauges[name] = m
}

func (c *Collector) registerHistogram(ns, name, help string, buckets []float64) {
	m := prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: ns, Name: name, Help: help, Buckets: buckets})
	c.reg.MustRegister(m)
	c.histograms[name] = m
}

// Inc adds delta to the named counter. Panics on an unregistered name
// the same way a bad metric name trips coreStats' debug.Assert in the
// teacher's reg/update pair — a programming error, not a runtime one.
func (c *Collector) Inc(name string, delta float64) {
	m, ok := c.counters[name]
	if !ok {
		panic(errors.Wrapf(ErrUnknownMetric, "counter %q", name))
	}
	m.Add(delta)
}

// Set overwrites the named gauge's value.
func (c *Collector) Set(name string, val float64) {
	m, ok := c.gauges[name]
	if !ok {
		panic(errors.Wrapf(ErrUnknownMetric, "gauge %q", name))
	}
	m.Set(val)
}

// Observe records one sample against the named histogram.
func (c *Collector) Observe(name string, val float64) {
	m, ok := c.histograms[name]
	if !ok {
		panic(errors.Wrapf(ErrUnknownMetric, "histogram %q", name))
	}
	m.Observe(val)
}

// Handler returns a fasthttp-compatible handler serving this
// Collector's metrics in Prometheus text exposition format, adapted
// from promhttp's net/http.Handler via fasthttpadaptor so it can be
// mounted directly on rigelnet's loopback health server.
func (c *Collector) Handler() fasthttp.RequestHandler {
	h := promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
	return fasthttpadaptor.NewFastHTTPHandler(h)
}

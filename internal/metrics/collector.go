// Package metrics exposes controller health to Prometheus: fleet size via a
// registry callback and counters for task and ping activity.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector implements prometheus.Collector over the controller's live
// state. Gauges are read through callbacks at scrape time; counters are
// mutex-protected and bumped from the hot paths.
type Collector struct {
	ProbesConnected func() int
	TasksPending    func() int

	probesConnected *prometheus.Desc
	tasksPending    *prometheus.Desc
	tasksDispatched *prometheus.Desc
	taskTimeouts    *prometheus.Desc
	pingsTotal      *prometheus.Desc

	mu               sync.Mutex
	tasksDispatchedN float64
	taskTimeoutsN    float64
	pingsByProtocol  map[string]float64
}

// NewCollector builds a collector with no callbacks set. The caller assigns
// ProbesConnected and TasksPending; a gauge whose callback is nil is left out
// of the scrape.
func NewCollector() *Collector {
	return &Collector{
		probesConnected: prometheus.NewDesc(
			"minescope_probes_connected",
			"Number of currently connected probe sessions",
			nil, nil,
		),
		tasksPending: prometheus.NewDesc(
			"minescope_tasks_pending",
			"Number of dispatched tasks awaiting a reply or timeout",
			nil, nil,
		),
		tasksDispatched: prometheus.NewDesc(
			"minescope_tasks_dispatched_total",
			"Total tasks sent to probes",
			nil, nil,
		),
		taskTimeouts: prometheus.NewDesc(
			"minescope_task_timeouts_total",
			"Total tasks that expired without a probe reply",
			nil, nil,
		),
		pingsTotal: prometheus.NewDesc(
			"minescope_pings_total",
			"Total direct status pings served by the controller",
			[]string{"protocol"}, nil,
		),
		pingsByProtocol: make(map[string]float64),
	}
}

// RecordTaskDispatched counts one task handed to a probe.
func (c *Collector) RecordTaskDispatched() {
	c.mu.Lock()
	c.tasksDispatchedN++
	c.mu.Unlock()
}

// RecordTaskTimeout counts one task that expired.
func (c *Collector) RecordTaskTimeout() {
	c.mu.Lock()
	c.taskTimeoutsN++
	c.mu.Unlock()
}

// RecordPing counts one controller-side ping by protocol.
func (c *Collector) RecordPing(protocol string) {
	c.mu.Lock()
	c.pingsByProtocol[protocol]++
	c.mu.Unlock()
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.probesConnected
	ch <- c.tasksPending
	ch <- c.tasksDispatched
	ch <- c.taskTimeouts
	ch <- c.pingsTotal
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.ProbesConnected != nil {
		ch <- prometheus.MustNewConstMetric(c.probesConnected, prometheus.GaugeValue, float64(c.ProbesConnected()))
	}
	if c.TasksPending != nil {
		ch <- prometheus.MustNewConstMetric(c.tasksPending, prometheus.GaugeValue, float64(c.TasksPending()))
	}

	c.mu.Lock()
	dispatched := c.tasksDispatchedN
	timeouts := c.taskTimeoutsN
	pings := make(map[string]float64, len(c.pingsByProtocol))
	for k, v := range c.pingsByProtocol {
		pings[k] = v
	}
	c.mu.Unlock()

	ch <- prometheus.MustNewConstMetric(c.tasksDispatched, prometheus.CounterValue, dispatched)
	ch <- prometheus.MustNewConstMetric(c.taskTimeouts, prometheus.CounterValue, timeouts)
	for protocol, n := range pings {
		ch <- prometheus.MustNewConstMetric(c.pingsTotal, prometheus.CounterValue, n, protocol)
	}
}

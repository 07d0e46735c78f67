// Package metrics exports dispatch and status transition counters.
package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"pkt.systems/cmdbot/schema"
)

const namespace = "cmdbot"

// Collector records manager events as Prometheus metrics.
type Collector struct {
	execs       *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	transitions *prometheus.CounterVec
	flipped     *prometheus.CounterVec
}

// New constructs a Collector and registers it with reg. A nil reg registers
// nothing, which is useful when the caller only needs the sink.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		execs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exec_total",
			Help:      "Dispatched inputs by outcome.",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "exec_duration_seconds",
			Help:      "Dispatch latency by outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Status changes that flipped at least one command.",
		}, []string{"direction"}),
		flipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_flipped_total",
			Help:      "Commands whose resolved status flipped.",
		}, []string{"direction"}),
	}
	if reg != nil {
		for _, collector := range []prometheus.Collector{c.execs, c.latency, c.transitions, c.flipped} {
			if err := reg.Register(collector); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

// OnExec records a dispatch.
func (c *Collector) OnExec(event schema.ExecEvent) {
	outcome := string(event.Outcome)
	c.execs.WithLabelValues(outcome).Inc()
	c.latency.WithLabelValues(outcome).Observe(event.Duration.Seconds())
}

// OnTransition records a status transition.
func (c *Collector) OnTransition(event schema.TransitionEvent) {
	direction := string(event.Direction)
	c.transitions.WithLabelValues(direction).Inc()
	c.flipped.WithLabelValues(direction).Add(float64(len(event.Commands)))
}

// Summary renders the counters gathered from g as sorted "name{labels} value"
// lines. Histograms are reported by their sample count.
func Summary(g prometheus.Gatherer) ([]string, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, family := range families {
		if !strings.HasPrefix(family.GetName(), namespace+"_") {
			continue
		}
		for _, metric := range family.GetMetric() {
			labels := make([]string, 0, len(metric.GetLabel()))
			for _, pair := range metric.GetLabel() {
				labels = append(labels, pair.GetName()+"="+pair.GetValue())
			}
			name := family.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			switch {
			case metric.GetCounter() != nil:
				lines = append(lines, fmt.Sprintf("%s %g", name, metric.GetCounter().GetValue()))
			case metric.GetHistogram() != nil:
				lines = append(lines, fmt.Sprintf("%s count=%d", name, metric.GetHistogram().GetSampleCount()))
			}
		}
	}
	sort.Strings(lines)
	return lines, nil
}

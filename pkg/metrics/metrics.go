// Package metrics exports learning engine events as Prometheus counters.
//
// A Collector implements ltft.Observer. Register it on a private registry
// in tests and on prometheus.DefaultRegisterer in long-running tools.
package metrics

import (
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tosih/secu3-ltft/pkg/ltft"
)

const (
	metricsNamespace = "secu3"
	ltftSubsystem    = "ltft"
)

// Collector counts corrections, skipped cycles and suspended ticks.
type Collector struct {
	// CorrectionsTotal counts applied corrections.
	// Labels: channel (1, 2)
	CorrectionsTotal *prometheus.CounterVec

	// CellsWrittenTotal counts trim cells written by corrections.
	// Labels: channel
	CellsWrittenTotal *prometheus.CounterVec

	// SkippedTotal counts correction cycles that wrote nothing.
	// Labels: channel, reason (deadband, no_spread, handoff)
	SkippedTotal *prometheus.CounterVec

	// SuspendedTotal counts control ticks that never reached a gate.
	// Labels: reason (storage_busy, cold_engine, ...)
	SuspendedTotal *prometheus.CounterVec
}

// NewCollector creates the counters and registers them on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		CorrectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: ltftSubsystem,
				Name:      "corrections_total",
				Help:      "Learning corrections applied to the trim table",
			},
			[]string{"channel"},
		),
		CellsWrittenTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: ltftSubsystem,
				Name:      "cells_written_total",
				Help:      "Trim cells written by learning corrections",
			},
			[]string{"channel"},
		),
		SkippedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: ltftSubsystem,
				Name:      "skipped_total",
				Help:      "Correction cycles that left the trim table unchanged",
			},
			[]string{"channel", "reason"},
		),
		SuspendedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: ltftSubsystem,
				Name:      "suspended_total",
				Help:      "Control ticks on which learning was suspended",
			},
			[]string{"reason"},
		),
	}
}

var _ ltft.Observer = (*Collector)(nil)

func channelLabel(ch int) string {
	return strconv.Itoa(ch + 1)
}

// Suspended implements ltft.Observer.
func (c *Collector) Suspended(r ltft.Reason) {
	c.SuspendedTotal.WithLabelValues(r.String()).Inc()
}

// Corrected implements ltft.Observer.
func (c *Collector) Corrected(ch int, corners int) {
	c.CorrectionsTotal.WithLabelValues(channelLabel(ch)).Inc()
	c.CellsWrittenTotal.WithLabelValues(channelLabel(ch)).Add(float64(corners))
}

// Skipped implements ltft.Observer.
func (c *Collector) Skipped(ch int, s ltft.Skip) {
	c.SkippedTotal.WithLabelValues(channelLabel(ch), s.String()).Inc()
}

// Summary flattens the counters gathered from g into table rows of
// metric name, labels and value.
func Summary(g prometheus.Gatherer) ([][]string, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, err
	}
	var rows [][]string
	for _, f := range families {
		for _, m := range f.GetMetric() {
			if m.GetCounter() == nil {
				continue
			}
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			rows = append(rows, []string{
				f.GetName(),
				strings.Join(labels, ","),
				strconv.FormatFloat(m.GetCounter().GetValue(), 'f', 0, 64),
			})
		}
	}
	return rows, nil
}

// Package hdrprom adapts a hdrhistogram.Recorder into a prometheus.Collector,
// exposing interval snapshot statistics (quantiles, mean, standard
// deviation, max, total count) as Prometheus gauges.
//
// This is the only package in the module that imports
// github.com/prometheus/client_golang/prometheus: the core hdrhistogram
// package pays nothing for it, matching how prometheus-client_golang's own
// procfs and documentation packages are kept separate from its prometheus/
// core types.
package hdrprom

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/relaypoint/hdrhistogram"
)

// DefaultQuantiles mirrors the objectives prometheus-client_golang's own
// Summary type documents as suitable for most industrial purposes, with a
// tail quantile added since HDR histograms are cheap to query at p999.
var DefaultQuantiles = []float64{0.5, 0.9, 0.99, 0.999}

// Collector snapshots a Recorder's active histogram on every Collect call
// and reports it as a set of const gauges, following the
// Describe/Collect/NewDesc/MustNewConstMetric shape used throughout
// prometheus-client_golang's built-in collectors (e.g. dbstats_collector.go).
type Collector struct {
	recorder  *hdrhistogram.Recorder
	recycled  *hdrhistogram.Histogram
	quantiles []float64

	quantileDesc   *prometheus.Desc
	meanDesc       *prometheus.Desc
	stdDevDesc     *prometheus.Desc
	maxDesc        *prometheus.Desc
	totalCountDesc *prometheus.Desc
}

// NewCollector builds a Collector over recorder. namespace/subsystem/name
// follow the usual Prometheus naming convention; quantiles defaults to
// DefaultQuantiles if nil.
func NewCollector(recorder *hdrhistogram.Recorder, namespace, subsystem, name string, quantiles []float64) *Collector {
	if quantiles == nil {
		quantiles = DefaultQuantiles
	}
	fqName := prometheus.BuildFQName(namespace, subsystem, name)
	return &Collector{
		recorder:  recorder,
		quantiles: quantiles,
		quantileDesc: prometheus.NewDesc(
			fqName,
			"Quantile of values recorded in the last interval snapshot.",
			[]string{"quantile"}, nil,
		),
		meanDesc:       prometheus.NewDesc(fqName+"_mean", "Mean of values recorded in the last interval snapshot.", nil, nil),
		stdDevDesc:     prometheus.NewDesc(fqName+"_stddev", "Standard deviation of values recorded in the last interval snapshot.", nil, nil),
		maxDesc:        prometheus.NewDesc(fqName+"_max", "Max value recorded in the last interval snapshot.", nil, nil),
		totalCountDesc: prometheus.NewDesc(fqName+"_count", "Total count of values recorded in the last interval snapshot.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.quantileDesc
	ch <- c.meanDesc
	ch <- c.stdDevDesc
	ch <- c.maxDesc
	ch <- c.totalCountDesc
}

// Collect implements prometheus.Collector. Each call flips the recorder's
// active histogram via GetIntervalHistogram, so successive scrapes report
// disjoint intervals rather than a running cumulative view.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snapshot, err := c.recorder.GetIntervalHistogram(c.recycled)
	if err != nil {
		return
	}
	c.recycled = snapshot

	for _, q := range c.quantiles {
		v := snapshot.GetValueAtPercentile(q * 100)
		ch <- prometheus.MustNewConstMetric(c.quantileDesc, prometheus.GaugeValue, float64(v), formatQuantile(q))
	}
	ch <- prometheus.MustNewConstMetric(c.meanDesc, prometheus.GaugeValue, snapshot.GetMean())
	ch <- prometheus.MustNewConstMetric(c.stdDevDesc, prometheus.GaugeValue, snapshot.GetStdDeviation())
	ch <- prometheus.MustNewConstMetric(c.maxDesc, prometheus.GaugeValue, float64(snapshot.MaxValue()))
	ch <- prometheus.MustNewConstMetric(c.totalCountDesc, prometheus.GaugeValue, float64(snapshot.TotalCount()))
}

func formatQuantile(q float64) string {
	return strconv.FormatFloat(q, 'g', -1, 64)
}

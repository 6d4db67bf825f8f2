package prometheus

import (
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrEthical07/accountflow"
	"github.com/MrEthical07/accountflow/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() accountflow.MetricsSnapshot
	EventsDropped() uint64
}

type counterDesc struct {
	id   accountflow.MetricID
	desc *prom.Desc
}

// Exporter is a prom.Collector over an engine's metrics snapshot. Every
// Collect reads one snapshot, so series within a scrape are consistent.
type Exporter struct {
	source     metricsSource
	counters   []counterDesc
	histograms []counterDesc
	dropped    *prom.Desc
}

var _ prom.Collector = (*Exporter)(nil)

func NewExporter(engine *accountflow.Engine) *Exporter {
	return NewExporterFromSource(engine)
}

// NewExporterFromSource builds an exporter over any snapshot source.
func NewExporterFromSource(source metricsSource) *Exporter {
	e := &Exporter{
		source:     source,
		counters:   make([]counterDesc, 0, len(internaldefs.CounterDefs)),
		histograms: make([]counterDesc, 0, len(internaldefs.HistogramDefs)),
		dropped:    prom.NewDesc(internaldefs.EventsDroppedName, internaldefs.EventsDroppedHelp, nil, nil),
	}
	for _, def := range internaldefs.CounterDefs {
		e.counters = append(e.counters, counterDesc{id: def.ID, desc: prom.NewDesc(def.Name, def.Help, nil, nil)})
	}
	for _, def := range internaldefs.HistogramDefs {
		e.histograms = append(e.histograms, counterDesc{id: def.ID, desc: prom.NewDesc(def.Name, def.Help, nil, nil)})
	}
	return e
}

func (e *Exporter) Describe(ch chan<- *prom.Desc) {
	for _, c := range e.counters {
		ch <- c.desc
	}
	for _, h := range e.histograms {
		ch <- h.desc
	}
	ch <- e.dropped
}

// Collect emits nothing when metrics are disabled on the engine.
func (e *Exporter) Collect(ch chan<- prom.Metric) {
	if e == nil || e.source == nil {
		return
	}
	snapshot := e.source.MetricsSnapshot()
	dropped := e.source.EventsDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return
	}

	for _, c := range e.counters {
		ch <- prom.MustNewConstMetric(c.desc, prom.CounterValue, float64(snapshot.Counters[c.id]))
	}
	for _, h := range e.histograms {
		raw, ok := snapshot.Histograms[h.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		buckets := make(map[float64]uint64, len(internaldefs.HistogramBounds))
		for i, le := range internaldefs.HistogramBounds {
			buckets[le] = cumulative[i]
		}
		// The engine keeps bucket counts only, so the sum is reported as 0.
		ch <- prom.MustNewConstHistogram(h.desc, cumulative[len(cumulative)-1], 0, buckets)
	}
	ch <- prom.MustNewConstMetric(e.dropped, prom.CounterValue, float64(dropped))
}

// Handler serves the exporter from a private registry.
func (e *Exporter) Handler() (http.Handler, error) {
	reg := prom.NewRegistry()
	if err := reg.Register(e); err != nil {
		return nil, err
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}

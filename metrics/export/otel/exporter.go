package otel

import (
	"context"
	"errors"
	"fmt"

	tripAuth "github.com/MrEthical07/tripAuth"
	"github.com/MrEthical07/tripAuth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() tripAuth.MetricsSnapshot
	AuditDroppedByEvent() map[string]uint64
}

// series is one observed value: a counter ID read into an instrument under
// a fixed attribute set.
type series struct {
	id         tripAuth.MetricID
	instrument metric.Int64ObservableCounter
	attrs      metric.ObserveOption
}

type latency struct {
	id      tripAuth.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
	le      []metric.ObserveOption
}

// Exporter publishes engine metrics through observable OTel instruments.
// Counters in a family share one instrument keyed by the outcome
// attribute, so authentication shows up as a single
// tripauth_authenticate_total{outcome=...}. Latency buckets are one
// cumulative gauge keyed by le, and audit drops carry the event type.
type Exporter struct {
	source       metricsSource
	registration metric.Registration
	series       []series
	latency      []latency
	auditDropped metric.Int64ObservableCounter
}

// NewExporter registers instruments on meter that read engine on every
// collection.
func NewExporter(meter metric.Meter, engine *tripAuth.Engine) (*Exporter, error) {
	return NewExporterFromSource(meter, engine)
}

func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	instruments := map[string]metric.Int64ObservableCounter{}
	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		name, help := def.Name, def.Help
		var attrs []attribute.KeyValue
		if def.Family != "" {
			name, help = def.Family, internaldefs.FamilyHelp[def.Family]
			attrs = append(attrs, attribute.String(internaldefs.OutcomeLabel, def.Outcome))
		}

		ins, ok := instruments[name]
		if !ok {
			var err error
			ins, err = meter.Int64ObservableCounter(name, metric.WithDescription(help))
			if err != nil {
				return nil, fmt.Errorf("create counter %s: %w", name, err)
			}
			instruments[name] = ins
			observables = append(observables, ins)
		}
		e.series = append(e.series, series{id: def.ID, instrument: ins, attrs: metric.WithAttributes(attrs...)})
	}

	for _, def := range internaldefs.HistogramDefs {
		buckets, err := meter.Int64ObservableGauge(def.Name+"_bucket", metric.WithDescription(def.Help+" Cumulative count per upper bound."))
		if err != nil {
			return nil, fmt.Errorf("create bucket gauge for %s: %w", def.Name, err)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription(def.Help+" Total samples."))
		if err != nil {
			return nil, fmt.Errorf("create count gauge for %s: %w", def.Name, err)
		}
		l := latency{id: def.ID, buckets: buckets, count: count}
		for _, le := range internaldefs.HistogramBucketLabels {
			l.le = append(l.le, metric.WithAttributes(attribute.String("le", le)))
		}
		e.latency = append(e.latency, l)
		observables = append(observables, buckets, count)
	}

	dropped, err := meter.Int64ObservableCounter(internaldefs.AuditDroppedName, metric.WithDescription(internaldefs.AuditDroppedHelp))
	if err != nil {
		return nil, fmt.Errorf("create counter %s: %w", internaldefs.AuditDroppedName, err)
	}
	e.auditDropped = dropped
	observables = append(observables, dropped)

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, s := range e.series {
		o.ObserveInt64(s.instrument, int64(snapshot.Counters[s.id]), s.attrs)
	}
	for _, l := range e.latency {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[l.id]))
		for i, le := range l.le {
			o.ObserveInt64(l.buckets, int64(cumulative[i]), le)
		}
		o.ObserveInt64(l.count, int64(cumulative[len(cumulative)-1]))
	}
	for event, n := range e.source.AuditDroppedByEvent() {
		o.ObserveInt64(e.auditDropped, int64(n), metric.WithAttributes(attribute.String(internaldefs.AuditEventLabel, event)))
	}
	return nil
}

// Close unregisters the collection callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}

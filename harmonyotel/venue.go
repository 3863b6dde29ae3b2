package harmonyotel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/castaneai/harmony"
)

type venue struct {
	inner            harmony.Venue
	arriveCount      metric.Int64Counter
	arriveLatency    metric.Float64Histogram
	tableWaitLatency metric.Float64Histogram
	departCount      metric.Int64Counter
	abandonCount     metric.Int64Counter
}

// NewVenue wraps inner with metrics recorded on the global MeterProvider.
func NewVenue(inner harmony.Venue) (harmony.Venue, error) {
	meter := otel.GetMeterProvider().Meter(scopeName)
	arriveCount, err := meter.Int64Counter("harmony.arrive.count_total")
	if err != nil {
		return nil, err
	}
	arriveLatency, err := meter.Float64Histogram("harmony.arrive_wait_seconds",
		metric.WithUnit("s"), metric.WithExplicitBucketBoundaries(latencyHistogramBuckets...))
	if err != nil {
		return nil, err
	}
	tableWaitLatency, err := meter.Float64Histogram("harmony.table_wait_seconds",
		metric.WithUnit("s"), metric.WithExplicitBucketBoundaries(latencyHistogramBuckets...))
	if err != nil {
		return nil, err
	}
	departCount, err := meter.Int64Counter("harmony.depart.count_total")
	if err != nil {
		return nil, err
	}
	abandonCount, err := meter.Int64Counter("harmony.abandon.count_total")
	if err != nil {
		return nil, err
	}
	v := &venue{
		inner:            inner,
		arriveCount:      arriveCount,
		arriveLatency:    arriveLatency,
		tableWaitLatency: tableWaitLatency,
		departCount:      departCount,
		abandonCount:     abandonCount,
	}
	if err := v.registerGauges(meter); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *venue) registerGauges(meter metric.Meter) error {
	admitted, err := meter.Int64ObservableGauge("harmony.admitted")
	if err != nil {
		return err
	}
	waiting, err := meter.Int64ObservableGauge("harmony.waiting")
	if err != nil {
		return err
	}
	tablesFree, err := meter.Int64ObservableGauge("harmony.tables_free")
	if err != nil {
		return err
	}
	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := v.inner.Snapshot()
		for _, color := range harmony.Colors {
			attrs := metric.WithAttributes(colorKey.String(color.String()))
			o.ObserveInt64(admitted, int64(s.Count(color)), attrs)
			o.ObserveInt64(waiting, int64(s.Waiting(color)), attrs)
		}
		o.ObserveInt64(tablesFree, int64(s.TablesFree))
		return nil
	}, admitted, waiting, tablesFree)
	return err
}

func (v *venue) Arrive(ctx context.Context, actor harmony.Actor) (*harmony.AdmissionToken, error) {
	colorAttr := colorKey.String(actor.Color.String())
	statusAttr := statusOK
	start := time.Now()
	defer func() {
		v.arriveCount.Add(ctx, 1, metric.WithAttributes(colorAttr, statusAttr))
		v.arriveLatency.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(colorAttr, statusAttr))
	}()
	token, err := v.inner.Arrive(ctx, actor)
	if err != nil {
		statusAttr = statusOf(err)
		return nil, err
	}
	return token, nil
}

func (v *venue) EnterTable(ctx context.Context, token *harmony.AdmissionToken) (*harmony.TableHandle, error) {
	statusAttr := statusOK
	start := time.Now()
	defer func() {
		attrs := []attribute.KeyValue{statusAttr}
		if token != nil {
			attrs = append(attrs, colorKey.String(token.Actor().Color.String()))
		}
		v.tableWaitLatency.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attrs...))
	}()
	table, err := v.inner.EnterTable(ctx, token)
	if err != nil {
		statusAttr = statusOf(err)
		return nil, err
	}
	return table, nil
}

func (v *venue) Depart(ctx context.Context, token *harmony.AdmissionToken, table *harmony.TableHandle) error {
	err := v.inner.Depart(ctx, token, table)
	v.departCount.Add(ctx, 1, metric.WithAttributes(tokenAttrs(token, err)...))
	return err
}

func (v *venue) Abandon(ctx context.Context, token *harmony.AdmissionToken) error {
	err := v.inner.Abandon(ctx, token)
	v.abandonCount.Add(ctx, 1, metric.WithAttributes(tokenAttrs(token, err)...))
	return err
}

func (v *venue) Snapshot() harmony.Snapshot {
	return v.inner.Snapshot()
}

func tokenAttrs(token *harmony.AdmissionToken, err error) []attribute.KeyValue {
	attrs := []attribute.KeyValue{statusOK}
	if err != nil {
		attrs[0] = statusOf(err)
	}
	if token != nil {
		attrs = append(attrs, colorKey.String(token.Actor().Color.String()))
	}
	return attrs
}

func statusOf(err error) attribute.KeyValue {
	switch {
	case harmony.ErrorHasStatus(err, harmony.ErrorStatusCanceled):
		return statusCanceled
	case harmony.ErrorHasStatus(err, harmony.ErrorStatusInvalidState),
		harmony.ErrorHasStatus(err, harmony.ErrorStatusInvalidRequest),
		harmony.ErrorHasStatus(err, harmony.ErrorStatusResourceExhausted):
		return statusRejected
	default:
		return statusError
	}
}

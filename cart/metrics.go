package cart

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/norun9/gomarketplace/cartservice/cart"

type storeMetrics struct {
	operations      metric.Int64Counter
	persistFailures metric.Int64Counter
	persistDuration metric.Float64Histogram
}

func newStoreMetrics(mp metric.MeterProvider) storeMetrics {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	// Instrument creation only fails on invalid names; the returned
	// instruments are usable no-ops in that case.
	ops, _ := meter.Int64Counter("cart.operations",
		metric.WithDescription("Cart mutations applied, by operation"))
	failures, _ := meter.Int64Counter("cart.persist.failures",
		metric.WithDescription("Snapshot writes that returned an error"))
	duration, _ := meter.Float64Histogram("cart.persist.duration",
		metric.WithDescription("Snapshot write latency"),
		metric.WithUnit("ms"))

	return storeMetrics{
		operations:      ops,
		persistFailures: failures,
		persistDuration: duration,
	}
}

func (m storeMetrics) recordOperation(ctx context.Context, op string) {
	m.operations.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))
}

func (m storeMetrics) recordPersist(ctx context.Context, start time.Time, err error) {
	m.persistDuration.Record(ctx, float64(time.Since(start))/float64(time.Millisecond))
	if err != nil {
		m.persistFailures.Add(ctx, 1)
	}
}

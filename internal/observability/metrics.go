package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/kiranshivaraju/crashbot"

// Metrics holds the application instruments.
type Metrics struct {
	listRequests metric.Int64Counter
}

// NewMetrics creates the application instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	listRequests, err := meter.Int64Counter("list_counter",
		metric.WithDescription("Number of requests to the incident listing endpoint"),
	)
	if err != nil {
		return nil, err
	}
	return &Metrics{listRequests: listRequests}, nil
}

// IncListRequests records one listing request for path.
func (m *Metrics) IncListRequests(ctx context.Context, path string) {
	m.listRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("pathname", path)))
}

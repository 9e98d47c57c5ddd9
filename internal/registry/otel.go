package registry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/shiftpulse/pulsemap/internal/registry"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

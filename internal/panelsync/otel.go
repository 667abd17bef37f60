package panelsync

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/pathoscope/wsiview/internal/panelsync"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

package harmonyotel

import (
	"go.opentelemetry.io/otel/attribute"
)

const (
	scopeName = "github.com/castaneai/harmony"
)

const (
	colorKey  = attribute.Key("color")
	statusKey = attribute.Key("status")
)

var (
	statusOK       = statusKey.String("ok")
	statusCanceled = statusKey.String("canceled")
	statusRejected = statusKey.String("rejected")
	statusError    = statusKey.String("error")
)

var (
	latencyHistogramBuckets = []float64{
		.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10,
	}
)

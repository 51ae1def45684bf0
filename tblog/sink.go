// Package tblog provides step-keyed training telemetry: named scalars,
// image grids, and histograms. The trainer writes through the Sink
// interface; destinations include an in-memory collector for inspection and
// a JSON-over-HTTP sidecar emitter.
package tblog

import (
	"github.com/sslstudent/3dprint-image-translation/tensor"
)

// Sink accepts named training telemetry keyed by an integer step. Scalars
// and images logged during an epoch are keyed by global step; evaluation
// metrics are keyed by epoch.
type Sink interface {
	AddScalar(tag string, value float64, step int)
	AddImage(tag string, image *tensor.Tensor, step int)
	AddHistogram(tag string, values []float64, step int)
}

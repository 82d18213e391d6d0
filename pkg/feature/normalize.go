package feature

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/tunogya/spi/pkg/model"
)

// Normalize scales a vector to unit L2 magnitude.
// A zero vector is returned unchanged.
func Normalize(v model.FeatureVector) model.FeatureVector {
	values := v.ToFloat64()
	magnitude := floats.Norm(values, 2)
	if magnitude == 0 {
		return v
	}

	floats.Scale(1/magnitude, values)
	return model.FromFloat64(values)
}

// Squash maps an unbounded indicator value into (-1, 1)
func Squash(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return math.Tanh(x)
}

// Magnitude returns the L2 magnitude of a vector
func Magnitude(v model.FeatureVector) float64 {
	return floats.Norm(v.ToFloat64(), 2)
}

package model

// FeatureVector is a fixed-length float32 vector for similarity search
type FeatureVector []float32

// DefaultVectorDim is the default embedding dimension
const DefaultVectorDim = 768

// NewFeatureVector creates a zeroed FeatureVector with the specified dimension
func NewFeatureVector(dim int) FeatureVector {
	return make(FeatureVector, dim)
}

// Dim returns the dimension of the vector
func (fv FeatureVector) Dim() int {
	return len(fv)
}

// Copy creates a deep copy of the vector
func (fv FeatureVector) Copy() FeatureVector {
	result := make(FeatureVector, len(fv))
	copy(result, fv)
	return result
}

// ToFloat64 converts the vector to a float64 slice
func (fv FeatureVector) ToFloat64() []float64 {
	result := make([]float64, len(fv))
	for i, v := range fv {
		result[i] = float64(v)
	}
	return result
}

// FromFloat64 creates a FeatureVector from a float64 slice
func FromFloat64(data []float64) FeatureVector {
	result := make(FeatureVector, len(data))
	for i, v := range data {
		result[i] = float32(v)
	}
	return result
}

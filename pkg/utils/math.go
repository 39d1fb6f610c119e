package utils

import "math"

// Dot is the inner product of a and b accumulated in float64. Vectors of different length score 0.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i, v := range a {
		sum += float64(v) * float64(b[i])
	}
	return sum
}

// NormalizeL2 scales x in place to unit length and returns the length it had before. A zero
// vector is left untouched and reports 0.
func NormalizeL2(x []float32) float64 {
	norm := math.Sqrt(Dot(x, x))
	if norm == 0 {
		return 0
	}
	inv := 1 / norm
	for i, v := range x {
		x[i] = float32(float64(v) * inv)
	}
	return norm
}

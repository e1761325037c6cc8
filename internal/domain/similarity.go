package domain

import "math"

// Similarity returns the cosine similarity of two L2-normalized vectors.
// For normalized input the cosine is the plain dot product; the result is clamped
// to [0,1]. Vectors of different or zero length score 0.
func Similarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	switch {
	case dot < 0 || math.IsNaN(dot):
		return 0
	case dot > 1:
		return 1
	}
	return dot
}

// ValidEmbedding reports whether v is a usable vector of exactly dim finite values.
func ValidEmbedding(v []float32, dim int) bool {
	if len(v) != dim || dim == 0 {
		return false
	}
	for _, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return false
		}
	}
	return true
}

// Normalize scales v to unit length in place and returns it. A zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	if sum == 0 {
		return v
	}
	n := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / n)
	}
	return v
}

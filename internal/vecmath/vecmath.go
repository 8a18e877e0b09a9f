// Package vecmath provides small vector operations used by the
// personalized recommendation strategy.
package vecmath

import "math"

// CosineSimilarity computes the cosine similarity between two float32 vectors.
// Returns a value between -1.0 and 1.0. Returns 0.0 if either vector has zero
// magnitude or the vectors have different lengths.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}

	magA = math.Sqrt(magA)
	magB = math.Sqrt(magB)

	if magA == 0 || magB == 0 {
		return 0.0
	}

	return dot / (magA * magB)
}

// Normalize performs in-place L2 normalization of a float32 vector.
// A zero vector is left unchanged.
func Normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}

// MeanCosine returns the mean cosine similarity between target and each
// vector in others. Returns 0.0 when others is empty.
func MeanCosine(target []float32, others [][]float32) float64 {
	if len(others) == 0 {
		return 0.0
	}
	var sum float64
	for _, o := range others {
		sum += CosineSimilarity(target, o)
	}
	return sum / float64(len(others))
}

package feature

import "strings"

// TextEmbedder turns strategy text into n embedding slots.
// Implementations must be deterministic for the same text.
type TextEmbedder interface {
	Embed(text string, n int) []float64
}

// HashEmbedder is a placeholder text embedding: each slot is ±0.1 depending on one bit
// of a 32-bit rolling hash of the text.
type HashEmbedder struct {
	Amplitude float64
}

// NewHashEmbedder creates a HashEmbedder with the default ±0.1 amplitude
func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{Amplitude: 0.1}
}

// Embed implements TextEmbedder
func (h *HashEmbedder) Embed(text string, n int) []float64 {
	if n <= 0 {
		return nil
	}

	hash := RollingHash(strings.ToLower(text))
	slots := make([]float64, n)
	for i := range slots {
		if (hash>>(uint(i)%32))&1 == 1 {
			slots[i] = h.Amplitude
		} else {
			slots[i] = -h.Amplitude
		}
	}

	return slots
}

// RollingHash is a 32-bit polynomial rolling hash (base 31) over the runes of s
func RollingHash(s string) uint32 {
	var hash uint32
	for _, r := range s {
		hash = hash*31 + uint32(r)
	}
	return hash
}

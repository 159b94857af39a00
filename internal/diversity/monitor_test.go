package diversity

import (
	"math"
	"testing"
)

// unitAt returns a 2-d unit vector whose cosine similarity against
// [1, 0] is exactly cos.
func unitAt(cos float64) []float32 {
	sin := math.Sqrt(1 - cos*cos)
	return []float32{float32(cos), float32(sin)}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"identical vectors", []float32{1, 0, 0}, []float32{1, 0, 0}, 1.0},
		{"orthogonal vectors", []float32{1, 0, 0}, []float32{0, 1, 0}, 0.0},
		{"opposite vectors", []float32{1, 0, 0}, []float32{-1, 0, 0}, -1.0},
		{"different lengths", []float32{1, 2}, []float32{1, 2, 3}, 0.0},
		{"zero vector", []float32{0, 0, 0}, []float32{1, 2, 3}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(float64(got-tt.expected)) > 1e-6 {
				t.Errorf("got %f, want %f", got, tt.expected)
			}
		})
	}
}

func TestEvaluateThresholds(t *testing.T) {
	history := [][]float32{{1, 0}}

	tests := []struct {
		name     string
		cos      float64
		advisory string
	}{
		{"high similarity", 0.85, HighAdvisory},
		{"moderate similarity", 0.75, ModerateAdvisory},
		{"acceptable similarity", 0.5, ""},
		{"dissimilar", 0.0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			advisory, maxSim := Evaluate(unitAt(tt.cos), history)
			if advisory != tt.advisory {
				t.Errorf("advisory: got %q, want %q", advisory, tt.advisory)
			}
			if math.Abs(maxSim-tt.cos) > 1e-6 {
				t.Errorf("max similarity: got %f, want %f", maxSim, tt.cos)
			}
		})
	}
}

func TestEvaluateTakesMaximum(t *testing.T) {
	history := [][]float32{unitAt(0.2), unitAt(0.95), unitAt(0.5)}

	advisory, maxSim := Evaluate([]float32{1, 0}, history)
	if advisory != HighAdvisory {
		t.Errorf("expected high advisory, got %q", advisory)
	}
	if maxSim < 0.94 || maxSim > 0.96 {
		t.Errorf("expected max similarity near 0.95, got %f", maxSim)
	}
}

func TestFirstReflectionNoFeedback(t *testing.T) {
	m := NewMonitor()

	advisory, maxSim := m.Check([]float32{1, 0})
	if advisory != "" {
		t.Errorf("first reflection must yield no advisory, got %q", advisory)
	}
	if maxSim != 0 {
		t.Errorf("expected zero similarity against empty history, got %f", maxSim)
	}
	if m.History() != 1 {
		t.Errorf("expected embedding recorded, history = %d", m.History())
	}
}

func TestMonitorAccumulates(t *testing.T) {
	m := NewMonitor()

	m.Check([]float32{1, 0, 0})
	advisory, _ := m.Check([]float32{0, 1, 0})
	if advisory != "" {
		t.Errorf("orthogonal reflection must yield no advisory, got %q", advisory)
	}

	// Orthogonal to the first, but close to the second: the advisory
	// must come from the accumulated history, not just the last entry.
	sin := float32(math.Sqrt(1 - 0.95*0.95))
	advisory, _ = m.Check([]float32{0, 0.95, sin})
	if advisory != HighAdvisory {
		t.Errorf("expected high advisory from accumulated history, got %q", advisory)
	}
}

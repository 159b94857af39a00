// Package diversity tracks semantic similarity between cycle reflections
// and produces advisory feedback when the agent starts repeating itself.
package diversity

import "math"

// Similarity thresholds for advisory feedback.
const (
	HighThreshold     = 0.8
	ModerateThreshold = 0.7
)

// Advisory texts injected into the next cycle's prompt. The "Advisory:"
// prefix is what makes the note distinguishable inside the system message.
const (
	HighAdvisory = "Advisory: Your current line of reflection shows high similarity " +
		"to a previous cycle. Consider exploring a distinctly different topic, " +
		"problem space, or mode of inquiry to diversify your exploration."

	ModerateAdvisory = "Advisory: Your current line of reflection shows moderate similarity " +
		"to a previous cycle. You might consider branching into a related but " +
		"distinct area to expand the breadth of your exploration."
)

// Monitor compares new reflection embeddings against the run's history.
type Monitor struct {
	history [][]float32
}

// NewMonitor creates an empty monitor. Embeddings are accumulated per run
// via [Monitor.Check]; the first reflection of a run never produces
// feedback because there is nothing to compare against.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// Check compares embedding against all recorded embeddings, records it,
// and returns the advisory text for the maximum cosine similarity found.
// An empty string means similarity is acceptable and no feedback is due.
func (m *Monitor) Check(embedding []float32) (advisory string, maxSimilarity float64) {
	advisory, maxSimilarity = Evaluate(embedding, m.history)
	m.history = append(m.history, embedding)
	return advisory, maxSimilarity
}

// History returns the number of embeddings recorded so far.
func (m *Monitor) History() int { return len(m.history) }

// Evaluate applies the threshold policy to an embedding against an
// explicit history. Exposed separately from [Monitor.Check] so the policy
// is testable as a pure function.
func Evaluate(embedding []float32, history [][]float32) (advisory string, maxSimilarity float64) {
	if len(history) == 0 {
		return "", 0
	}

	for _, h := range history {
		if s := float64(CosineSimilarity(embedding, h)); s > maxSimilarity {
			maxSimilarity = s
		}
	}

	switch {
	case maxSimilarity > HighThreshold:
		return HighAdvisory, maxSimilarity
	case maxSimilarity > ModerateThreshold:
		return ModerateAdvisory, maxSimilarity
	default:
		return "", maxSimilarity
	}
}

// CosineSimilarity computes cosine similarity between two vectors.
// Mismatched lengths and zero vectors yield 0.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float32
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}

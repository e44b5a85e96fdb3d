package workflow

import "github.com/mikeboe/support-agent/pkg/vectorstore"

// ComputeRelevance turns cosine distances into an average relevance score in
// [0,1]. Hits without a distance are ignored; if no hit carries one the score
// is 0.0, which keeps web search permissible.
func ComputeRelevance(hits []vectorstore.RetrievalHit) float64 {
	var sum float64
	var n int
	for _, h := range hits {
		if h.Distance == nil {
			continue
		}
		rel := 1 - *h.Distance
		if rel < 0 {
			rel = 0
		}
		sum += rel
		n++
	}
	if n == 0 {
		return 0.0
	}
	return sum / float64(n)
}

package workflow

import (
	"math"
	"testing"

	"github.com/mikeboe/support-agent/pkg/vectorstore"
)

func hitsWithDistances(ds ...float64) []vectorstore.RetrievalHit {
	hits := make([]vectorstore.RetrievalHit, len(ds))
	for i := range ds {
		d := ds[i]
		hits[i] = vectorstore.RetrievalHit{Content: "x", Distance: &d}
	}
	return hits
}

func TestComputeRelevance(t *testing.T) {
	tests := []struct {
		name string
		hits []vectorstore.RetrievalHit
		want float64
	}{
		{"empty", nil, 0.0},
		{"no defined distances", []vectorstore.RetrievalHit{{Content: "a"}, {Content: "b"}}, 0.0},
		{"perfect matches", hitsWithDistances(0.0, 0.0), 1.0},
		{"distances at or beyond one clamp to zero", hitsWithDistances(1.0, 1.5, 2.0), 0.0},
		{"mixed", hitsWithDistances(0.2, 0.6), 0.6},
		{"single", hitsWithDistances(0.25), 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeRelevance(tt.hits)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ComputeRelevance() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeRelevanceIgnoresUndefined(t *testing.T) {
	d := 0.4
	hits := []vectorstore.RetrievalHit{
		{Content: "scored", Distance: &d},
		{Content: "unscored"},
	}
	if got := ComputeRelevance(hits); math.Abs(got-0.6) > 1e-9 {
		t.Errorf("ComputeRelevance() = %v, want 0.6", got)
	}
}

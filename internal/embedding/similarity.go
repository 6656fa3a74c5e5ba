package embedding

import (
	"fmt"
	"math"
	"sort"
)

// CosineSimilarity returns the cosine of the angle between a and b, in
// [-1, 1]. A zero vector has similarity 0 with everything.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same length: %d != %d", len(a), len(b))
	}

	var dot, aMag, bMag float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		aMag += float64(a[i]) * float64(a[i])
		bMag += float64(b[i]) * float64(b[i])
	}
	if aMag == 0 || bMag == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(aMag) * math.Sqrt(bMag)), nil
}

// Rank scores records against query and returns the k best matches by
// similarity descending; ties keep id order. Records whose dimension
// differs from the query are skipped.
func Rank(query []float32, records []Record, k int) []Match {
	matches := make([]Match, 0, len(records))
	for _, r := range records {
		sim, err := CosineSimilarity(query, r.Vector)
		if err != nil {
			continue
		}
		matches = append(matches, Match{
			ID:         r.ID,
			Document:   r.Document,
			Metadata:   r.Metadata,
			Similarity: sim,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].ID < matches[j].ID
	})

	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

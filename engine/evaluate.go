package engine

import (
	"slices"
	"sort"
)

// Evaluation is the verdict on a placement guess.
type Evaluation struct {
	Correct     bool
	CorrectRank int
}

// CorrectRank returns the smallest position i such that candidate < sorted[i],
// or len(known) when the candidate is larger than every known value. known
// need not be sorted; it is not modified.
func CorrectRank(candidate float64, known []float64) int {
	sorted := slices.Clone(known)
	slices.Sort(sorted)
	return sort.Search(len(sorted), func(i int) bool { return candidate < sorted[i] })
}

// Evaluate compares guessedRank against the unique correct insertion rank of
// candidate among known. The candidate must come from the authoritative
// catalog; known values are caller supplied.
func Evaluate(candidate Card, known []float64, guessedRank int) Evaluation {
	rank := CorrectRank(candidate.BadLuckIndex, known)
	return Evaluation{
		Correct:     guessedRank == rank,
		CorrectRank: rank,
	}
}

package engine

import (
	"math/rand/v2"
	"slices"
	"testing"
)

func TestCorrectRankTable(t *testing.T) {
	known := []float64{2, 4, 6}
	cases := []struct {
		candidate float64
		want      int
	}{
		{1, 0},
		{3, 1},
		{5, 2},
		{7, 3},
		{0.5, 0},
		{100, 3},
	}
	for _, tc := range cases {
		if got := CorrectRank(tc.candidate, known); got != tc.want {
			t.Errorf("CorrectRank(%v, %v) = %d, want %d", tc.candidate, known, got, tc.want)
		}
	}
}

func TestCorrectRankEmptyHand(t *testing.T) {
	if got := CorrectRank(42, nil); got != 0 {
		t.Fatalf("CorrectRank on empty hand = %d, want 0", got)
	}
}

func TestCorrectRankUnsortedInput(t *testing.T) {
	known := []float64{6, 2, 4}
	if got := CorrectRank(5, known); got != 2 {
		t.Fatalf("CorrectRank(5, %v) = %d, want 2", known, got)
	}
	if !slices.Equal(known, []float64{6, 2, 4}) {
		t.Fatalf("input mutated: %v", known)
	}
}

// TestCorrectRankProperty checks that exactly one rank in [0, len] is correct
// and that inserting at it keeps the sequence strictly ascending.
func TestCorrectRankProperty(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for iter := 0; iter < 500; iter++ {
		n := rng.IntN(8)
		seen := make(map[int]bool)
		known := make([]float64, 0, n)
		for len(known) < n {
			v := rng.IntN(100) * 2
			if seen[v] {
				continue
			}
			seen[v] = true
			known = append(known, float64(v))
		}
		candidate := float64(rng.IntN(100)*2 + 1)
		card := Card{ID: 1, BadLuckIndex: candidate}

		correct := 0
		for r := 0; r <= n; r++ {
			if Evaluate(card, known, r).Correct {
				correct++
			}
		}
		if correct != 1 {
			t.Fatalf("known=%v candidate=%v: %d correct ranks, want 1", known, candidate, correct)
		}

		rank := CorrectRank(candidate, known)
		sorted := slices.Clone(known)
		slices.Sort(sorted)
		merged := slices.Insert(sorted, rank, candidate)
		for i := 1; i < len(merged); i++ {
			if merged[i-1] >= merged[i] {
				t.Fatalf("insert at %d breaks order: %v", rank, merged)
			}
		}
	}
}

func TestEvaluateReportsCorrectRank(t *testing.T) {
	card := Card{ID: 9, BadLuckIndex: 5}
	ev := Evaluate(card, []float64{2, 4, 6}, 1)
	if ev.Correct {
		t.Fatal("rank 1 should be wrong for 5 in [2 4 6]")
	}
	if ev.CorrectRank != 2 {
		t.Fatalf("CorrectRank = %d, want 2", ev.CorrectRank)
	}
	if !Evaluate(card, []float64{2, 4, 6}, 2).Correct {
		t.Fatal("rank 2 should be correct for 5 in [2 4 6]")
	}
}

func TestHandInsertKeepsOrder(t *testing.T) {
	h, err := NewHand(Card{ID: 3, BadLuckIndex: 6}, Card{ID: 1, BadLuckIndex: 2}, Card{ID: 2, BadLuckIndex: 4})
	if err != nil {
		t.Fatalf("NewHand: %v", err)
	}
	if !slices.Equal(h.IDs(), []int64{1, 2, 3}) {
		t.Fatalf("IDs = %v, want [1 2 3]", h.IDs())
	}
	h2, err := h.Insert(Card{ID: 4, BadLuckIndex: 5})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if !slices.Equal(h2.Indexes(), []float64{2, 4, 5, 6}) {
		t.Fatalf("Indexes = %v", h2.Indexes())
	}
	if h.Len() != 3 {
		t.Fatalf("original hand changed: len %d", h.Len())
	}
	if _, err := h2.Insert(Card{ID: 4, BadLuckIndex: 5}); err == nil {
		t.Fatal("expected duplicate error")
	}
}

func TestNewHandRejectsDuplicates(t *testing.T) {
	if _, err := NewHand(Card{ID: 1, BadLuckIndex: 1}, Card{ID: 1, BadLuckIndex: 1}); err == nil {
		t.Fatal("expected duplicate error")
	}
}

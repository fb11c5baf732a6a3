package rating

import "testing"

func TestEloEqualRatingsDrawIsNoOp(t *testing.T) {
	if got := Elo(1200, 1200, 0.5, DefaultK); got != 1200 {
		t.Fatalf("draw between equals should not move rating, got %d", got)
	}
}

func TestEloEqualRatingsDecisive(t *testing.T) {
	win := Elo(1200, 1200, 1, DefaultK)
	loss := Elo(1200, 1200, 0, DefaultK)
	if win != 1216 || loss != 1184 {
		t.Fatalf("expected 1216/1184, got %d/%d", win, loss)
	}
}

func TestEloUnderdogWinGainsMore(t *testing.T) {
	underdog := Elo(1000, 1400, 1, DefaultK)
	favorite := Elo(1400, 1000, 1, DefaultK)
	if underdog-1000 <= favorite-1400 {
		t.Fatalf("underdog win should gain more than favorite win: %d vs %d", underdog-1000, favorite-1400)
	}
}

func TestEloUsesPreGamePair(t *testing.T) {
	// The two updates are independent functions of the original pair.
	newA := Elo(1500, 1300, 1, DefaultK)
	newB := Elo(1300, 1500, 0, DefaultK)
	if newA == 1500 || newB == 1300 {
		t.Fatalf("both ratings should move: %d %d", newA, newB)
	}
	// recomputing with the same inputs is stable
	if newA != Elo(1500, 1300, 1, DefaultK) {
		t.Fatal("evaluator must be pure")
	}
}

func TestScores(t *testing.T) {
	w, b := Scores(true, false)
	if w+b != 1 || w != 1 {
		t.Fatalf("decisive scores must sum to 1, got %v %v", w, b)
	}
	w, b = Scores(false, false)
	if w != 0.5 || b != 0.5 {
		t.Fatalf("draw scores must be 0.5/0.5, got %v %v", w, b)
	}
}

func TestEloZeroKFallsBackToDefault(t *testing.T) {
	if Elo(1200, 1200, 1, 0) != Elo(1200, 1200, 1, DefaultK) {
		t.Fatal("non-positive K should use the default")
	}
}

package elo

import "testing"

func approxEqual(a, b, eps float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= eps
}

func TestEqualRatingsWinSplitsEvenly(t *testing.T) {
	newA, newB := Calculate(1200, 1200, 0, 0, WinA)
	if newA <= 1200 {
		t.Fatalf("expected winner's rating to increase, got %v", newA)
	}
	if newB >= 1200 {
		t.Fatalf("expected loser's rating to decrease, got %v", newB)
	}
	// Equal ratings + equal K means symmetric movement.
	if !approxEqual(newA-1200, 1200-newB, 1e-9) {
		t.Fatalf("expected symmetric movement, got %v vs %v", newA-1200, 1200-newB)
	}
}

func TestDrawBetweenEqualRatingsIsNoOp(t *testing.T) {
	newA, newB := Calculate(1500, 1500, 10, 10, Draw)
	if !approxEqual(newA, 1500, 1e-9) || !approxEqual(newB, 1500, 1e-9) {
		t.Fatalf("expected no movement on a draw between equal ratings, got %v %v", newA, newB)
	}
}

func TestUpsetGrantsLargerSwing(t *testing.T) {
	// Lower-rated player B beats higher-rated A: B should gain more than a
	// similarly-experienced player would for beating an equal.
	_, equalB := Calculate(1200, 1200, 10, 10, WinB)
	_, upsetB := Calculate(1600, 1200, 10, 10, WinB)
	equalGain := equalB - 1200
	upsetGain := upsetB - 1200
	if upsetGain <= equalGain {
		t.Fatalf("expected upset win to grant a larger gain: %v <= %v", upsetGain, equalGain)
	}
}

func TestKFactorTapersAfterThreshold(t *testing.T) {
	newNovice, _ := Calculate(1200, 1200, 29, 29, WinA)
	newVeteran, _ := Calculate(1200, 1200, 30, 30, WinA)
	if newNovice-1200 <= newVeteran-1200 {
		t.Fatalf("expected a player below the experience threshold to move more: %v <= %v",
			newNovice-1200, newVeteran-1200)
	}
}

func TestDimensionsAreIndependent(t *testing.T) {
	// Overall dimension: veteran vs veteran. Per-game dimension: novice vs
	// novice. Calling Calculate twice with different gamesPlayed inputs
	// must not let one call's K-factor leak into the other.
	overallA, overallB := Calculate(1000, 1000, 50, 50, WinA)
	perGameA, perGameB := Calculate(1000, 1000, 2, 2, WinA)
	if approxEqual(overallA-1000, perGameA-1000, 1e-9) {
		t.Fatalf("expected different K-factors to produce different deltas")
	}
	if approxEqual(overallB-1000, perGameB-1000, 1e-9) {
		t.Fatalf("expected different K-factors to produce different deltas")
	}
}

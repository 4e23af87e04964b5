package formulas

import (
	"math"
	"testing"
)

func TestMean(t *testing.T) {
	if got := Mean([]float64{1, 2, 3, 4}); got != 2.5 {
		t.Errorf("Mean = %v, want 2.5", got)
	}

	if got := Mean(nil); got != 0 {
		t.Errorf("Mean of empty slice = %v, want 0", got)
	}
}

func TestSpearman_PerfectCorrelation(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{10, 20, 30, 40, 50}

	got := Spearman(x, y)
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("Spearman = %v, want 1.0", got)
	}
}

func TestSpearman_PerfectInverse(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{50, 40, 30, 20, 10}

	got := Spearman(x, y)
	if math.Abs(got+1.0) > 1e-9 {
		t.Errorf("Spearman = %v, want -1.0", got)
	}
}

func TestSpearman_MonotoneTransformInvariant(t *testing.T) {
	x := []float64{1.2, -0.4, 3.8, 0.9, 2.1}
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = math.Exp(v)
	}

	got := Spearman(x, y)
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("Spearman under monotone transform = %v, want 1.0", got)
	}
}

func TestSpearman_PooledRanks(t *testing.T) {
	// Two pooled days of integer ranks over three assets: repeated rank
	// values must be handled via average-rank ties without changing the
	// result relative to Pearson on the raw ranks.
	predicted := []float64{1, 2, 3, 1, 2, 3}
	actual := []float64{2, 1, 3, 1, 2, 3}

	got := Spearman(predicted, actual)
	if math.IsNaN(got) {
		t.Fatal("Spearman returned NaN for valid pooled ranks")
	}
	if got <= 0 || got >= 1 {
		t.Errorf("Spearman = %v, want value in (0, 1)", got)
	}
}

func TestSpearman_DegenerateInput(t *testing.T) {
	if got := Spearman([]float64{1}, []float64{1}); !math.IsNaN(got) {
		t.Errorf("Spearman of single pair = %v, want NaN", got)
	}

	if got := Spearman([]float64{1, 2}, []float64{1}); !math.IsNaN(got) {
		t.Errorf("Spearman of mismatched lengths = %v, want NaN", got)
	}
}

package calib

import (
	"math"
	"testing"
)

// testGeometry is a six-anchor site: four surveyed (fixed) anchors at
// varying heights and two free anchors the solver has to place.
var testGeometry = []Vec3{
	{0, 0, 0.5},
	{6, 0, 2.5},
	{6, 4, 1.0},
	{0, 4, 2.8},
	{3, 2, 2.8}, // free
	{1, 3, 2.2}, // free
}

var testFixed = []bool{true, true, true, true, false, false}

// perturbedGuess nudges the free anchors away from the truth
func perturbedGuess() []Vec3 {
	guess := append([]Vec3(nil), testGeometry...)
	guess[4] = Vec3{2.5, 1.5, 2.5}
	guess[5] = Vec3{1.5, 3.5, 2.0}
	return guess
}

// exactSamples builds a sample set of noise-free inter-anchor ranges
func exactSamples(count int) *SampleSet {
	n := len(testGeometry)
	ranges := make([][][]float64, n)
	for i := 0; i < n; i++ {
		ranges[i] = make([][]float64, count)
		for m := 0; m < count; m++ {
			row := make([]float64, n)
			for k := 0; k < n; k++ {
				if k == i {
					row[k] = Invalid
					continue
				}
				row[k] = math.Sqrt(testGeometry[i].sub(testGeometry[k]).norm2())
			}
			ranges[i][m] = row
		}
	}
	set, _ := NewSampleSet(ranges)
	return set
}

func maxError(t *testing.T, s *Solver) float64 {
	t.Helper()
	worst := 0.0
	for _, e := range s.EstimationError(testGeometry) {
		if e > worst {
			worst = e
		}
	}
	return worst
}

func TestStageOne_RecoversFreeAnchors(t *testing.T) {
	samples := exactSamples(3)
	solver, err := NewSolver(samples, perturbedGuess(), testFixed)
	if err != nil {
		t.Fatalf("NewSolver failed: %v", err)
	}

	solver.StageOne(samples.MedianMatrix())

	if worst := maxError(t, solver); worst > 0.05 {
		t.Errorf("stage one error %.3fm, want under 5cm with noise-free ranges", worst)
	}

	// Fixed anchors must not move at all.
	for i := 0; i < 4; i++ {
		if solver.Coords[i] != testGeometry[i] {
			t.Errorf("fixed anchor %d moved to %v", i, solver.Coords[i])
		}
	}
}

func TestStageTwo_RefinesEstimate(t *testing.T) {
	samples := exactSamples(3)
	solver, err := NewSolver(samples, perturbedGuess(), testFixed)
	if err != nil {
		t.Fatalf("NewSolver failed: %v", err)
	}

	// Start the refinement from the perturbed guess directly.
	solver.Coords = perturbedGuess()
	before := maxError(t, solver)

	solver.StageTwo(samples.MedianMatrix())

	after := maxError(t, solver)
	if after >= before {
		t.Errorf("refinement made things worse: %.3fm -> %.3fm", before, after)
	}
	if after > 0.10 {
		t.Errorf("stage two error %.3fm, want under 10cm with noise-free ranges", after)
	}
}

func TestCalibrateMedian_FullPipeline(t *testing.T) {
	samples := exactSamples(5)
	solver, err := NewSolver(samples, perturbedGuess(), testFixed)
	if err != nil {
		t.Fatalf("NewSolver failed: %v", err)
	}

	solver.CalibrateMedian()

	if worst := maxError(t, solver); worst > 0.05 {
		t.Errorf("pipeline error %.3fm, want under 5cm", worst)
	}
}

func TestSolveAll_AveragesSamples(t *testing.T) {
	samples := exactSamples(3)
	solver, err := NewSolver(samples, perturbedGuess(), testFixed)
	if err != nil {
		t.Fatalf("NewSolver failed: %v", err)
	}

	coords := solver.SolveAll()
	if len(coords) != len(testGeometry) {
		t.Fatalf("got %d coordinates, want %d", len(coords), len(testGeometry))
	}
	if worst := maxError(t, solver); worst > 0.05 {
		t.Errorf("averaged error %.3fm, want under 5cm", worst)
	}
}

func TestNewSolver_Validation(t *testing.T) {
	samples := exactSamples(2)

	if _, err := NewSolver(samples, perturbedGuess()[:3], testFixed[:3]); err == nil {
		t.Error("mismatched guess length should fail")
	}
	if _, err := NewSolver(samples, perturbedGuess(), testFixed[:3]); err == nil {
		t.Error("mismatched fixed length should fail")
	}
}

func TestTrilaterate(t *testing.T) {
	target := Vec3{2.5, 1.0, 1.75}
	refs := []Vec3{{0, 0, 0}, {5, 0, 0.5}, {5, 5, 2}, {0, 5, 3}, {2, 2, 4}}

	dists := make([]float64, len(refs))
	for i, r := range refs {
		dists[i] = math.Sqrt(target.sub(r).norm2())
	}

	got, ok := trilaterate(refs, dists)
	if !ok {
		t.Fatal("trilaterate reported degenerate geometry")
	}
	if err := math.Sqrt(got.sub(target).norm2()); err > 1e-6 {
		t.Errorf("trilaterate error %.2e m, want exact recovery", err)
	}
}

func TestTrilaterate_Degenerate(t *testing.T) {
	// All references on one line cannot fix a 3D position.
	refs := []Vec3{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}, {3, 0, 0}}
	dists := []float64{1, 1, 1, 1}

	if _, ok := trilaterate(refs, dists); ok {
		t.Error("collinear references should report degenerate geometry")
	}
}

func TestMinimizeNelderMead_Quadratic(t *testing.T) {
	target := []float64{1, -2, 3}
	f := func(x []float64) float64 {
		sum := 0.0
		for i := range x {
			d := x[i] - target[i]
			sum += d * d
		}
		return sum
	}

	got := minimizeNelderMead(f, []float64{0, 0, 0}, 0)
	for i := range target {
		if math.Abs(got[i]-target[i]) > 1e-2 {
			t.Errorf("dim %d: got %.4f, want %.4f", i, got[i], target[i])
		}
	}
}

func BenchmarkStageOne(b *testing.B) {
	samples := exactSamples(3)
	solver, _ := NewSolver(samples, perturbedGuess(), testFixed)
	matrix := samples.MedianMatrix()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		solver.StageOne(matrix)
	}
}

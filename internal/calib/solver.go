package calib

import (
	"fmt"
	"math"
)

// Vec3 is a point in metres
type Vec3 [3]float64

func (v Vec3) sub(o Vec3) Vec3 {
	return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]}
}

func (v Vec3) norm2() float64 {
	return v[0]*v[0] + v[1]*v[1] + v[2]*v[2]
}

// Solver runs the two-stage autocalibration over one sample set
type Solver struct {
	// Samples is the inter-anchor ranging data
	Samples *SampleSet

	// InitialGuess seeds the iteration; rough tape-measure coordinates or
	// even a sketch are enough
	InitialGuess []Vec3

	// Fixed marks anchors whose coordinates are trusted and never moved.
	// At least one anchor should be fixed to pin the frame of reference.
	Fixed []bool

	// MaxIters bounds stage one. Default 1500.
	MaxIters int

	// ConvergenceThresh stops stage one when the coordinate update falls
	// below it (Frobenius norm, metres). Default 0.01.
	ConvergenceThresh float64

	// MinAnchors is the minimum number of valid ranges needed before a
	// least-squares reposition is attempted. Default 4.
	MinAnchors int

	// LowerPercentile and UpperPercentile bound the per-pair outlier filter
	// applied before stage two. Defaults 25 and 75.
	LowerPercentile float64
	UpperPercentile float64

	// Coords is the current estimate, updated by the stages
	Coords []Vec3
}

// NewSolver creates a solver with default tuning
func NewSolver(samples *SampleSet, guess []Vec3, fixed []bool) (*Solver, error) {
	if samples.Anchors() != len(guess) {
		return nil, fmt.Errorf("%d anchors in samples but %d initial coordinates", samples.Anchors(), len(guess))
	}
	if len(guess) != len(fixed) {
		return nil, fmt.Errorf("%d initial coordinates but %d fixed flags", len(guess), len(fixed))
	}
	return &Solver{
		Samples:           samples,
		InitialGuess:      append([]Vec3(nil), guess...),
		Fixed:             append([]bool(nil), fixed...),
		MaxIters:          1500,
		ConvergenceThresh: 0.01,
		MinAnchors:        4,
		LowerPercentile:   25,
		UpperPercentile:   75,
		Coords:            append([]Vec3(nil), guess...),
	}, nil
}

// StageOne iteratively repositions each free anchor by trilateration from
// its valid ranges, starting from the initial guess. Updated coordinates
// feed into the same pass, which speeds convergence. Stops when the
// coordinates settle or MaxIters is reached.
func (s *Solver) StageOne(ranges [][]float64) {
	coords := append([]Vec3(nil), s.InitialGuess...)

	for iter := 0; iter < s.MaxIters; iter++ {
		old := append([]Vec3(nil), coords...)

		for i := range coords {
			if s.Fixed[i] {
				continue
			}
			var pts []Vec3
			var dists []float64
			for k := range coords {
				if k == i || ranges[i][k] < 0 {
					continue
				}
				pts = append(pts, coords[k])
				dists = append(dists, ranges[i][k])
			}
			if len(pts) < s.MinAnchors {
				continue
			}
			if p, ok := trilaterate(pts, dists); ok {
				coords[i] = p
			}
		}

		if coordDelta(coords, old) < s.ConvergenceThresh {
			break
		}
	}

	s.Coords = coords
}

// StageTwo refines the whole geometry at once: a simplex search over every
// free coordinate minimizing the squared disagreement between inter-anchor
// distances and measured ranges. Runs from the current estimate.
func (s *Solver) StageTwo(ranges [][]float64) {
	n := len(s.Coords)

	cost := func(x []float64) float64 {
		theta := unflatten(x)
		for i := range theta {
			if s.Fixed[i] {
				theta[i] = s.InitialGuess[i]
			}
		}
		total := 0.0
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				r := ranges[i][j]
				if i == j || r < 0 {
					continue
				}
				d2 := theta[i].sub(theta[j]).norm2()
				diff := d2 - r*r
				total += diff * diff
			}
		}
		return total
	}

	x := minimizeNelderMead(cost, flatten(s.Coords), 0)
	coords := unflatten(x)
	for i := range coords {
		if s.Fixed[i] {
			coords[i] = s.InitialGuess[i]
		}
	}
	s.Coords = coords
}

// Calibrate runs both stages on one sample, with outlier filtering before
// the refinement stage
func (s *Solver) Calibrate(sampleIdx int) {
	s.StageOne(s.Samples.Matrix(sampleIdx))
	s.StageTwo(s.Samples.FilteredMatrix(sampleIdx, s.LowerPercentile, s.UpperPercentile))
}

// CalibrateMedian runs both stages on the per-pair median of all samples
func (s *Solver) CalibrateMedian() {
	m := s.Samples.MedianMatrix()
	s.StageOne(m)
	s.StageTwo(m)
}

// SolveAll calibrates every sample independently and returns the per-anchor
// centroid of the estimates. Averaging across samples damps the jitter a
// single noisy sample would otherwise inject.
func (s *Solver) SolveAll() []Vec3 {
	n := len(s.InitialGuess)
	sum := make([]Vec3, n)

	count := s.Samples.Count()
	for m := 0; m < count; m++ {
		s.Calibrate(m)
		for i, c := range s.Coords {
			sum[i][0] += c[0]
			sum[i][1] += c[1]
			sum[i][2] += c[2]
		}
	}

	for i := range sum {
		sum[i][0] /= float64(count)
		sum[i][1] /= float64(count)
		sum[i][2] /= float64(count)
	}
	s.Coords = sum
	return append([]Vec3(nil), sum...)
}

// EstimationError returns the per-anchor euclidean distance between the
// current estimate and ground truth
func (s *Solver) EstimationError(gt []Vec3) []float64 {
	out := make([]float64, len(s.Coords))
	for i := range s.Coords {
		out[i] = math.Sqrt(s.Coords[i].sub(gt[i]).norm2())
	}
	return out
}

// trilaterate solves the closed-form least-squares position from at least
// four reference points and their distances. Differencing against the last
// reference linearizes the sphere equations; the normal equations then give
// the position directly. Returns ok=false when the references are
// degenerate (coplanar or coincident).
func trilaterate(pts []Vec3, dists []float64) (Vec3, bool) {
	n := len(pts)
	if n < 2 {
		return Vec3{}, false
	}
	last := pts[n-1]
	dLast := dists[n-1]

	rows := n - 1
	a := make([][3]float64, rows)
	b := make([]float64, rows)
	for i := 0; i < rows; i++ {
		for c := 0; c < 3; c++ {
			a[i][c] = 2 * (last[c] - pts[i][c])
		}
		b[i] = dists[i]*dists[i] - dLast*dLast - pts[i].norm2() + last.norm2()
	}

	// Normal equations: (AᵀA) x = AᵀB
	var m [3][3]float64
	var v [3]float64
	for i := 0; i < rows; i++ {
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				m[r][c] += a[i][r] * a[i][c]
			}
			v[r] += a[i][r] * b[i]
		}
	}

	x, ok := solve3(m, v)
	if !ok {
		return Vec3{}, false
	}
	return Vec3{x[0], x[1], x[2]}, true
}

// solve3 solves a 3x3 linear system with partial pivoting
func solve3(m [3][3]float64, v [3]float64) ([3]float64, bool) {
	const eps = 1e-12

	for col := 0; col < 3; col++ {
		pivot := col
		for r := col + 1; r < 3; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(m[pivot][col]) < eps {
			return [3]float64{}, false
		}
		m[col], m[pivot] = m[pivot], m[col]
		v[col], v[pivot] = v[pivot], v[col]

		for r := col + 1; r < 3; r++ {
			f := m[r][col] / m[col][col]
			for c := col; c < 3; c++ {
				m[r][c] -= f * m[col][c]
			}
			v[r] -= f * v[col]
		}
	}

	var x [3]float64
	for r := 2; r >= 0; r-- {
		x[r] = v[r]
		for c := r + 1; c < 3; c++ {
			x[r] -= m[r][c] * x[c]
		}
		x[r] /= m[r][r]
	}
	return x, true
}

func coordDelta(a, b []Vec3) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i].sub(b[i]).norm2()
	}
	return math.Sqrt(sum)
}

func flatten(coords []Vec3) []float64 {
	out := make([]float64, 0, len(coords)*3)
	for _, c := range coords {
		out = append(out, c[0], c[1], c[2])
	}
	return out
}

func unflatten(x []float64) []Vec3 {
	out := make([]Vec3, len(x)/3)
	for i := range out {
		out[i] = Vec3{x[3*i], x[3*i+1], x[3*i+2]}
	}
	return out
}

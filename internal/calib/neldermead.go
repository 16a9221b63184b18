package calib

import (
	"math"
	"sort"
)

// Nelder-Mead downhill simplex coefficients (the standard choices)
const (
	nmReflect  = 1.0
	nmExpand   = 2.0
	nmContract = 0.5
	nmShrink   = 0.5

	// Termination tolerances: simplex spread in parameter space and in
	// function value.
	nmXTol = 1e-4
	nmFTol = 1e-4
)

// minimizeNelderMead runs a downhill simplex search from x0 and returns the
// best point found. maxIter 0 means 200 iterations per dimension. The
// simplex needs no gradient, which suits the non-smooth cost the outlier
// mask produces.
func minimizeNelderMead(f func([]float64) float64, x0 []float64, maxIter int) []float64 {
	n := len(x0)
	if n == 0 {
		return x0
	}
	if maxIter == 0 {
		maxIter = 200 * n
	}

	// Initial simplex: x0 plus one vertex per dimension, perturbed 5%
	// (or a small absolute step where the coordinate is zero).
	simplex := make([][]float64, n+1)
	values := make([]float64, n+1)
	simplex[0] = append([]float64(nil), x0...)
	for i := 1; i <= n; i++ {
		v := append([]float64(nil), x0...)
		if v[i-1] != 0 {
			v[i-1] *= 1.05
		} else {
			v[i-1] = 0.00025
		}
		simplex[i] = v
	}
	for i := range simplex {
		values[i] = f(simplex[i])
	}

	order := make([]int, n+1)
	for iter := 0; iter < maxIter; iter++ {
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(a, b int) bool { return values[order[a]] < values[order[b]] })

		best, worst := order[0], order[n]
		secondWorst := order[n-1]

		if spread(simplex, values, best) {
			break
		}

		// Centroid of all vertices but the worst.
		centroid := make([]float64, n)
		for _, idx := range order[:n] {
			for c := 0; c < n; c++ {
				centroid[c] += simplex[idx][c]
			}
		}
		for c := 0; c < n; c++ {
			centroid[c] /= float64(n)
		}

		reflected := combine(centroid, simplex[worst], -nmReflect)
		fr := f(reflected)

		switch {
		case fr < values[best]:
			expanded := combine(centroid, simplex[worst], -nmReflect*nmExpand)
			if fe := f(expanded); fe < fr {
				simplex[worst], values[worst] = expanded, fe
			} else {
				simplex[worst], values[worst] = reflected, fr
			}

		case fr < values[secondWorst]:
			simplex[worst], values[worst] = reflected, fr

		default:
			contracted := combine(centroid, simplex[worst], nmContract)
			if fc := f(contracted); fc < values[worst] {
				simplex[worst], values[worst] = contracted, fc
			} else {
				// Shrink everything toward the best vertex.
				for _, idx := range order[1:] {
					for c := 0; c < n; c++ {
						simplex[idx][c] = simplex[best][c] + nmShrink*(simplex[idx][c]-simplex[best][c])
					}
					values[idx] = f(simplex[idx])
				}
			}
		}
	}

	best := 0
	for i := 1; i <= n; i++ {
		if values[i] < values[best] {
			best = i
		}
	}
	return simplex[best]
}

// combine returns centroid + t*(vertex - centroid)
func combine(centroid, vertex []float64, t float64) []float64 {
	out := make([]float64, len(centroid))
	for c := range out {
		out[c] = centroid[c] + t*(vertex[c]-centroid[c])
	}
	return out
}

// spread reports whether the simplex has collapsed within tolerance
func spread(simplex [][]float64, values []float64, best int) bool {
	maxX, maxF := 0.0, 0.0
	for i := range simplex {
		if i == best {
			continue
		}
		for c := range simplex[i] {
			if d := math.Abs(simplex[i][c] - simplex[best][c]); d > maxX {
				maxX = d
			}
		}
		if d := math.Abs(values[i] - values[best]); d > maxF {
			maxF = d
		}
	}
	return maxX <= nmXTol && maxF <= nmFTol
}

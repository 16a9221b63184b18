package calib

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/uwbtools/dwmctl/internal/logging"
)

// Invalid marks a range measurement that was not received
const Invalid = -1.0

// SampleSet holds inter-anchor ranging data: for each anchor i, M samples
// of its measured distance to every anchor k, in metres. ranges[i][m][k] is
// sample m of the i-to-k distance, Invalid when the measurement failed.
type SampleSet struct {
	ranges [][][]float64
}

// NewSampleSet builds a set from raw data. Every anchor must carry the same
// number of samples and every sample one column per anchor.
func NewSampleSet(ranges [][][]float64) (*SampleSet, error) {
	n := len(ranges)
	if n == 0 {
		return nil, fmt.Errorf("no anchors in sample set")
	}
	count := len(ranges[0])
	for i, anchor := range ranges {
		if len(anchor) != count {
			return nil, fmt.Errorf("anchor %d has %d samples, expected %d", i, len(anchor), count)
		}
		for m, sample := range anchor {
			if len(sample) != n {
				return nil, fmt.Errorf("anchor %d sample %d has %d columns, expected %d", i, m, len(sample), n)
			}
		}
	}
	return &SampleSet{ranges: ranges}, nil
}

// Anchors returns the number of anchors in the set
func (s *SampleSet) Anchors() int {
	return len(s.ranges)
}

// Count returns the number of samples per anchor
func (s *SampleSet) Count() int {
	if len(s.ranges) == 0 {
		return 0
	}
	return len(s.ranges[0])
}

// Matrix returns the range matrix of one sample: element [i][k] is the
// i-to-k distance at sample m
func (s *SampleSet) Matrix(m int) [][]float64 {
	n := s.Anchors()
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = append([]float64(nil), s.ranges[i][m]...)
	}
	return out
}

// MedianMatrix returns the per-pair median over all valid samples, Invalid
// where a pair never produced a measurement
func (s *SampleSet) MedianMatrix() [][]float64 {
	n := s.Anchors()
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = make([]float64, n)
		for k := 0; k < n; k++ {
			out[i][k] = median(s.valid(i, k))
		}
	}
	return out
}

// FilteredMatrix returns sample m with outliers removed: a measurement
// outside the [lower, upper] percentile band of its pair's valid samples is
// replaced with Invalid. Percentiles are in [0, 100].
func (s *SampleSet) FilteredMatrix(m int, lower, upper float64) [][]float64 {
	n := s.Anchors()
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = make([]float64, n)
		for k := 0; k < n; k++ {
			r := s.ranges[i][m][k]
			valid := s.valid(i, k)
			if r < 0 || len(valid) == 0 {
				out[i][k] = Invalid
				continue
			}
			lo := percentile(valid, lower)
			hi := percentile(valid, upper)
			if r < lo || r > hi {
				out[i][k] = Invalid
				continue
			}
			out[i][k] = r
		}
	}
	return out
}

// valid returns the sorted valid samples of one pair
func (s *SampleSet) valid(i, k int) []float64 {
	var out []float64
	for m := 0; m < s.Count(); m++ {
		if r := s.ranges[i][m][k]; r > 0 {
			out = append(out, r)
		}
	}
	sort.Float64s(out)
	return out
}

// median of a sorted slice, Invalid when empty
func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return Invalid
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// percentile computes percentile p (0-100) of a sorted slice with linear
// interpolation between closest ranks
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return Invalid
	}
	if n == 1 {
		return sorted[0]
	}
	pos := p / 100 * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo < 0 {
		return sorted[0]
	}
	if hi >= n {
		return sorted[n-1]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// LoadSampleSet reads ranging captures from dir: one "<id>_ranging_data.txt"
// file per anchor, one sample per line, one whitespace-separated range per
// anchor column. The first sample of each file is discarded; captures start
// before the network settles and the first line is usually junk. An anchor
// whose file is missing contributes all-Invalid samples.
func LoadSampleSet(dir string, ids []string, samples int) (*SampleSet, error) {
	if samples < 2 {
		return nil, fmt.Errorf("need at least 2 samples (the first is discarded), got %d", samples)
	}
	n := len(ids)
	if n == 0 {
		return nil, fmt.Errorf("no anchor ids")
	}

	kept := samples - 1
	ranges := make([][][]float64, n)
	for i, id := range ids {
		path := filepath.Join(dir, id+"_ranging_data.txt")
		rows, err := readRangingFile(path, n)
		if err != nil {
			logging.Warn("Ranging capture missing, anchor contributes no samples",
				zap.String("anchor", id),
				zap.Error(err),
			)
			rows = nil
		}
		if len(rows) > 0 {
			rows = rows[1:] // discard first sample
		}

		anchor := make([][]float64, kept)
		for m := 0; m < kept; m++ {
			if m < len(rows) {
				anchor[m] = rows[m]
				continue
			}
			row := make([]float64, n)
			for k := range row {
				row[k] = Invalid
			}
			anchor[m] = row
		}
		ranges[i] = anchor
	}

	return NewSampleSet(ranges)
}

// readRangingFile parses one capture file into rows of n ranges
func readRangingFile(path string, n int) ([][]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var rows [][]float64
	for lineNo, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != n {
			return nil, fmt.Errorf("%s:%d: %d columns, expected %d", path, lineNo+1, len(fields), n)
		}
		row := make([]float64, n)
		for k, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: bad range %q: %w", path, lineNo+1, f, err)
			}
			row[k] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

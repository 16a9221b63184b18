package calib

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestMedianMatrix(t *testing.T) {
	// Two anchors, three samples of the 0-1 range with one dropout.
	ranges := [][][]float64{
		{
			{Invalid, 4.0},
			{Invalid, 6.0},
			{Invalid, Invalid},
		},
		{
			{4.1, Invalid},
			{5.9, Invalid},
			{5.0, Invalid},
		},
	}
	set, err := NewSampleSet(ranges)
	if err != nil {
		t.Fatalf("NewSampleSet failed: %v", err)
	}

	m := set.MedianMatrix()
	if got := m[0][1]; got != 5.0 {
		t.Errorf("median of {4, 6} = %v, want 5", got)
	}
	if got := m[1][0]; got != 5.0 {
		t.Errorf("median of {4.1, 5.9, 5.0} = %v, want 5.0", got)
	}
	if got := m[0][0]; got != Invalid {
		t.Errorf("self range should stay invalid, got %v", got)
	}
}

func TestFilteredMatrix(t *testing.T) {
	// Nine tight samples and one wild outlier for the 0-1 pair.
	const count = 10
	ranges := make([][][]float64, 2)
	for i := 0; i < 2; i++ {
		ranges[i] = make([][]float64, count)
		for m := 0; m < count; m++ {
			ranges[i][m] = []float64{Invalid, Invalid}
		}
	}
	for m := 0; m < count-1; m++ {
		ranges[0][m][1] = 5.0 + 0.01*float64(m)
	}
	ranges[0][count-1][1] = 42.0 // outlier

	set, err := NewSampleSet(ranges)
	if err != nil {
		t.Fatalf("NewSampleSet failed: %v", err)
	}

	filtered := set.FilteredMatrix(count-1, 10, 90)
	if filtered[0][1] != Invalid {
		t.Errorf("outlier survived the percentile filter: %v", filtered[0][1])
	}

	kept := set.FilteredMatrix(4, 10, 90)
	if kept[0][1] == Invalid {
		t.Error("in-band sample should survive the filter")
	}
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}

	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{50, 3},
		{100, 5},
		{25, 2},
	}
	for _, tt := range tests {
		if got := percentile(sorted, tt.p); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}

	if percentile(nil, 50) != Invalid {
		t.Error("empty slice should yield Invalid")
	}
}

func TestLoadSampleSet(t *testing.T) {
	dir := t.TempDir()

	// Anchor a1: first sample is junk and must be discarded.
	a1 := "-1 -1\n-1 4.0\n-1 4.2\n"
	if err := os.WriteFile(filepath.Join(dir, "a1_ranging_data.txt"), []byte(a1), 0600); err != nil {
		t.Fatal(err)
	}
	// Anchor a2 has no capture file at all.

	set, err := LoadSampleSet(dir, []string{"a1", "a2"}, 3)
	if err != nil {
		t.Fatalf("LoadSampleSet failed: %v", err)
	}

	if set.Anchors() != 2 || set.Count() != 2 {
		t.Fatalf("set is %dx%d samples, want 2 anchors x 2 samples", set.Anchors(), set.Count())
	}

	m := set.Matrix(0)
	if m[0][1] != 4.0 {
		t.Errorf("first kept sample = %v, want 4.0 (junk line discarded)", m[0][1])
	}
	if m[1][0] != Invalid || m[1][1] != Invalid {
		t.Errorf("missing capture should contribute Invalid rows, got %v", m[1])
	}
}

func TestLoadSampleSet_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadSampleSet(dir, []string{"a1"}, 1); err == nil {
		t.Error("fewer than 2 samples should fail")
	}
	if _, err := LoadSampleSet(dir, nil, 3); err == nil {
		t.Error("empty id list should fail")
	}

	// Malformed capture: wrong column count.
	bad := "1.0 2.0 3.0\n"
	if err := os.WriteFile(filepath.Join(dir, "a1_ranging_data.txt"), []byte(bad), 0600); err != nil {
		t.Fatal(err)
	}
	set, err := LoadSampleSet(dir, []string{"a1", "a2"}, 3)
	if err != nil {
		t.Fatalf("LoadSampleSet failed: %v", err)
	}
	// A malformed file is treated like a missing one.
	if set.Matrix(0)[0][0] != Invalid {
		t.Error("malformed capture should contribute Invalid rows")
	}
}

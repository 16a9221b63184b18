package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/uwbtools/dwmctl/internal/calib"
	"github.com/uwbtools/dwmctl/internal/config"
)

var (
	calPlanPath string
	calDataDir  string
	calSamples  int
	calWrite    bool
	calMedian   bool
)

func init() {
	rootCmd.AddCommand(calibrateCmd)
	calibrateCmd.Flags().StringVar(&calPlanPath, "plan", "", "Network plan with anchor guesses (required)")
	calibrateCmd.Flags().StringVar(&calDataDir, "data", "", "Directory with per-anchor ranging captures (required)")
	calibrateCmd.Flags().IntVar(&calSamples, "samples", 10, "Ranging samples per anchor in the captures")
	calibrateCmd.Flags().BoolVar(&calWrite, "write", false, "Write the solved positions back into the plan")
	calibrateCmd.Flags().BoolVar(&calMedian, "median", false, "Solve once from the per-pair median of all samples")
	_ = calibrateCmd.MarkFlagRequired("plan")
	_ = calibrateCmd.MarkFlagRequired("data")
}

// calibrateCmd solves anchor positions from inter-anchor ranging data
var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Solve anchor positions from ranging captures",
	Long: `Estimate anchor coordinates from inter-anchor ranging data.

Each anchor's plan position is the starting guess; anchors marked surveyed
are trusted and never moved, which pins the coordinate frame. The solver
first repositions each free anchor by trilateration from the measured
ranges, then refines the whole geometry with a derivative-free minimization
of the range disagreement.

Captures are read from <data>/<label>_ranging_data.txt (falling back to the
address when a node has no label): one line per sample, one range in metres
per anchor column, -1 for a failed measurement.`,
	Example: `  # Solve and print
  dwmctl calibrate --plan site.yaml --data ./captures

  # Solve and update the plan in place
  dwmctl calibrate --plan site.yaml --data ./captures --write

  # Single solve over the per-pair median ranges
  dwmctl calibrate --plan site.yaml --data ./captures --median`,
	RunE: runCalibrate,
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	plan, err := config.LoadPlan(calPlanPath)
	if err != nil {
		return err
	}

	ids, guess, fixed, err := calibrationInputs(plan)
	if err != nil {
		return err
	}

	samples, err := calib.LoadSampleSet(calDataDir, ids, calSamples)
	if err != nil {
		return err
	}

	solver, err := calib.NewSolver(samples, guess, fixed)
	if err != nil {
		return err
	}

	fmt.Printf("Solving %d anchors (%d surveyed) from %d samples...\n\n",
		len(ids), countFixed(fixed), samples.Count())

	var coords []calib.Vec3
	if calMedian {
		// One solve over the per-pair median range matrix; cheaper than
		// averaging per-sample solves and robust to the odd bad sample.
		solver.CalibrateMedian()
		coords = append([]calib.Vec3(nil), solver.Coords...)
	} else {
		coords = solver.SolveAll()
	}

	// Distance each anchor moved from its plan guess.
	moved := solver.EstimationError(guess)

	fmt.Printf("%-18s %9s %9s %9s %9s\n", "ANCHOR", "X", "Y", "Z", "MOVED")
	for i, id := range ids {
		status := ""
		if fixed[i] {
			status = "  (surveyed)"
		}
		fmt.Printf("%-18s %8.2fm %8.2fm %8.2fm %8.2fm%s\n",
			id, coords[i][0], coords[i][1], coords[i][2], moved[i], status)
	}

	if !calWrite {
		fmt.Println("\nRe-run with --write to store these positions in the plan.")
		return nil
	}

	writeSolvedPositions(plan, coords)
	if err := config.SavePlan(calPlanPath, plan); err != nil {
		return err
	}
	fmt.Printf("\nUpdated %s\n", calPlanPath)
	return nil
}

// calibrationInputs collects the anchors across all networks, in plan order
func calibrationInputs(plan *config.Plan) ([]string, []calib.Vec3, []bool, error) {
	var (
		ids   []string
		guess []calib.Vec3
		fixed []bool
	)

	for _, network := range plan.Networks {
		for _, node := range network.Nodes {
			if node.Type != "anchor" {
				continue
			}
			id := node.Label
			if id == "" {
				id = node.Address
			}
			ids = append(ids, id)
			guess = append(guess, calib.Vec3{node.Position.X, node.Position.Y, node.Position.Z})
			fixed = append(fixed, node.Surveyed)
		}
	}

	if len(ids) < 4 {
		return nil, nil, nil, fmt.Errorf("calibration needs at least 4 anchors, plan has %d", len(ids))
	}
	if countFixed(fixed) == 0 {
		return nil, nil, nil, fmt.Errorf("at least one anchor must be marked surveyed to pin the coordinate frame")
	}
	return ids, guess, fixed, nil
}

func countFixed(fixed []bool) int {
	n := 0
	for _, f := range fixed {
		if f {
			n++
		}
	}
	return n
}

// writeSolvedPositions stores the solved coordinates on the plan's free
// anchors; surveyed anchors keep their hand-entered positions
func writeSolvedPositions(plan *config.Plan, coords []calib.Vec3) {
	i := 0
	for ni := range plan.Networks {
		for nj := range plan.Networks[ni].Nodes {
			node := &plan.Networks[ni].Nodes[nj]
			if node.Type != "anchor" {
				continue
			}
			if !node.Surveyed {
				node.Position.X = coords[i][0]
				node.Position.Y = coords[i][1]
				node.Position.Z = coords[i][2]
			}
			i++
		}
	}
}

package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/uwbtools/dwmctl/internal/config"
	"github.com/uwbtools/dwmctl/internal/deviceconfig"
	"github.com/uwbtools/dwmctl/internal/transport"
	"github.com/uwbtools/dwmctl/internal/ui"
)

var (
	applyVerify  bool
	applyYes     bool
	applyTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(applyCmd)
	applyCmd.Flags().BoolVar(&applyVerify, "verify", false, "Read configurations back after the batch and report mismatches")
	applyCmd.Flags().BoolVar(&applyYes, "yes", false, "Skip the confirmation prompt")
	applyCmd.Flags().DurationVar(&applyTimeout, "timeout", transport.DefaultConnectTimeout, "Per-device connect timeout")
}

// applyCmd configures a whole network from a plan file
var applyCmd = &cobra.Command{
	Use:   "apply [plan.yaml]",
	Short: "Apply a network plan to its devices",
	Long: `Configure every device named in a YAML network plan.

Each device gets its own connection and its messages are written in a fixed
order: network id, operation mode, position, update rates, reporting mode,
label. The batch is best-effort: a device that cannot be reached or rejects
a write is reported and the batch moves on, so one dead module does not
block the rest of the site.

Without an argument the default plan from the registry preferences is used.`,
	Example: `  # Apply a plan
  dwmctl apply site.yaml

  # Apply and read everything back afterwards
  dwmctl apply site.yaml --verify

  # Non-interactive use (no confirmation prompt)
  dwmctl apply site.yaml --yes`,
	Args: cobra.MaximumNArgs(1),
	RunE: runApply,
}

func runApply(cmd *cobra.Command, args []string) error {
	planPath, err := resolvePlanPath(args)
	if err != nil {
		return err
	}

	plan, err := config.LoadPlan(planPath)
	if err != nil {
		return err
	}

	updates, err := plan.Updates()
	if err != nil {
		return err
	}

	if !applyYes && ui.IsInteractive() {
		if !ui.ReconfigureConfirmation(len(updates)) {
			return nil
		}
	}

	t, err := newTransport()
	if err != nil {
		return err
	}
	t.ConnectTimeout = applyTimeout
	client := deviceconfig.NewClient(t)

	ctx := cmd.Context()
	out := ui.NewPrinter(nil)

	out.PrintHeader("Batch Apply", "dwmctl apply "+planPath, map[string]string{
		"Plan":    planPath,
		"Devices": strconv.Itoa(len(updates)),
	})
	out.Newline()

	prog := ui.NewProgress("Applying configuration...", len(updates))
	names := make([]string, len(updates))
	for i, u := range updates {
		names[i] = deviceStepName(u)
	}
	prog.SetStepNames(names)
	prog.StartStep(1, "")

	step := 0
	report := client.Apply(ctx, updates, func(res deviceconfig.DeviceResult) {
		step++
		if res.Err != nil {
			prog.FailStep(step, deviceconfig.GetShortErrorMessage(res.Err))
		} else {
			prog.CompleteStep(step, fmt.Sprintf("%d message(s)", res.Applied))
		}
		if step < len(updates) {
			prog.StartStep(step+1, "")
		}
	})
	out.PrintProgress(prog)
	out.Newline()
	out.Println(report.Format())

	recordPlanResults(plan, report)

	if applyVerify {
		verifyBatch(cmd, out, client, updates, report)
	}

	if !report.Succeeded() {
		failures := report.Failures()
		out.PrintError(
			fmt.Sprintf("%d of %d devices not configured", len(failures), len(report.Results)),
			nil,
			[]string{
				"Check the failed modules are powered and in range",
				"Modules holding another BLE connection do not accept new sessions",
				"Re-run the apply; already configured devices are simply rewritten",
			})
		return fmt.Errorf("%d of %d devices failed", len(failures), len(report.Results))
	}

	out.PrintSuccess("Network plan applied", map[string]string{
		"Plan":    planPath,
		"Devices": strconv.Itoa(len(report.Results)),
	})
	return nil
}

// deviceStepName labels one device's progress step
func deviceStepName(u deviceconfig.Update) string {
	if u.Label != "" {
		return fmt.Sprintf("%s (%s)", u.Label, u.Address)
	}
	return u.Address.String()
}

// resolvePlanPath takes the plan from the argument or falls back to the
// registry's default plan preference
func resolvePlanPath(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}

	reg, err := config.LoadRegistry()
	if err != nil {
		return "", fmt.Errorf("failed to load device registry: %w", err)
	}
	if reg.Preferences.DefaultPlan == "" {
		return "", fmt.Errorf("no plan given and no default plan configured")
	}
	return reg.Preferences.DefaultPlan, nil
}

// recordPlanResults remembers each successfully configured device's role and
// network in the registry, for display in later scans. Registry trouble is
// not worth failing an apply that already happened.
func recordPlanResults(plan *config.Plan, report *deviceconfig.ApplyReport) {
	reg, err := config.LoadRegistry()
	if err != nil {
		return
	}

	failed := make(map[string]bool)
	for _, res := range report.Failures() {
		failed[res.Address.String()] = true
	}

	for _, network := range plan.Networks {
		pan := fmt.Sprintf("0x%04x", network.PANID)
		for _, node := range network.Nodes {
			addr, err := transport.ParseAddress(node.Address)
			if err != nil || failed[addr.String()] {
				continue
			}
			reg.RecordConfiguration(addr.String(), node.Type, pan)
			if node.Label != "" {
				reg.SetDeviceNickname(addr.String(), node.Label)
			}
		}
	}

	_ = reg.Save()
}

// verifyBatch reads back every device that applied cleanly and prints what
// does not match the plan
func verifyBatch(cmd *cobra.Command, out *ui.Printer, client *deviceconfig.Client, updates []deviceconfig.Update, report *deviceconfig.ApplyReport) {
	failed := make(map[string]bool)
	for _, res := range report.Failures() {
		failed[res.Address.String()] = true
	}

	fmt.Println("Verifying...")

	mismatched := 0
	for _, u := range updates {
		if failed[u.Address.String()] {
			continue
		}
		result := client.VerifyUpdate(cmd.Context(), u, nil)
		if result.Success {
			continue
		}
		mismatched++
		fmt.Printf("✗ %s:\n", u.Address)
		if result.Error != nil {
			fmt.Printf("    %v\n", result.Error)
		}
		for _, mismatch := range result.Mismatches {
			fmt.Printf("    %s\n", mismatch)
		}
	}

	if mismatched == 0 {
		fmt.Println("✓ All configurations verified")
		fmt.Println()
		return
	}
	out.PrintWarning("Read-back does not match the plan", map[string]string{
		"Devices": strconv.Itoa(mismatched),
	})
	out.Newline()
}

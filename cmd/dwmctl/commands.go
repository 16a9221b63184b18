package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/uwbtools/dwmctl/internal/config"
	"github.com/uwbtools/dwmctl/internal/deviceconfig"
	"github.com/uwbtools/dwmctl/internal/discovery"
	"github.com/uwbtools/dwmctl/internal/protocol"
	"github.com/uwbtools/dwmctl/internal/transport"
	"github.com/uwbtools/dwmctl/internal/ui"
)

// Common command flags
var (
	deviceAddr   string
	outputFormat string
	scanTimeout  int
	scanWait     string
	pickDevice   bool
	noVerify     bool
)

func init() {
	// Common flags for device commands (persistent on root)
	rootCmd.PersistentFlags().StringVar(&deviceAddr, "device", "", "Device address (skips discovery)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "detailed", "Output format (detailed, compact, json)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(setPositionCmd)
	rootCmd.AddCommand(setModeCmd)
}

// newTransport opens the BLE central. Commands share one transport between
// discovery and configuration; the radio serves one connection at a time
// either way.
func newTransport() (*transport.BLE, error) {
	t, err := transport.NewBLE()
	if err != nil {
		return nil, fmt.Errorf("failed to open BLE transport: %w", err)
	}
	return t, nil
}

// resolveDevice returns the target device address: the --device flag when
// given, otherwise via discovery. With several candidates an interactive
// terminal gets the picker; otherwise the caller has to disambiguate.
func resolveDevice(ctx context.Context, t transport.Transport) (transport.Address, error) {
	if deviceAddr != "" {
		addr, err := transport.ParseAddress(deviceAddr)
		if err != nil {
			return transport.Address{}, fmt.Errorf("invalid --device: %w", err)
		}
		return addr, nil
	}

	scanner := discovery.NewScanner(t)

	if ui.IsInteractive() {
		dev, err := ui.PickDevice(func() ([]*discovery.Device, error) {
			return scanner.ScanForDevices(ctx)
		})
		if err != nil {
			return transport.Address{}, err
		}
		return dev.Address, nil
	}

	fmt.Println("No device specified, attempting discovery...")
	devices, err := scanner.ScanForDevices(ctx)
	if err != nil {
		return transport.Address{}, fmt.Errorf("discovery failed: %w", err)
	}
	if len(devices) == 0 {
		return transport.Address{}, fmt.Errorf("no devices found. Use --device to specify an address")
	}
	if len(devices) > 1 {
		fmt.Printf("Found %d devices:\n", len(devices))
		for i, dev := range devices {
			fmt.Printf("%d. %s\n", i+1, dev)
		}
		return transport.Address{}, fmt.Errorf("multiple devices found. Use --device to specify which one")
	}

	fmt.Printf("Found device: %s\n\n", devices[0])
	return devices[0].Address, nil
}

// scanCmd discovers modules over BLE
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for DWM modules over BLE",
	Long: `Scan for DWM1001 modules advertising over Bluetooth Low Energy.

Discovered devices are listed strongest signal first. Sightings are recorded
in the device registry, so nicknames and last-known roles from earlier
sessions show up alongside fresh scan results.`,
	Example: `  # Scan with the default timeout
  dwmctl scan

  # Quick 3-second scan
  dwmctl scan --timeout 3

  # Scan, then choose a device interactively
  dwmctl scan --pick

  # Block until a specific module is sighted (e.g. after a power cycle)
  dwmctl scan --wait C8:DF:84:12:34:56`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 0, "Scan timeout in seconds (0 = registry preference)")
	scanCmd.Flags().StringVar(&scanWait, "wait", "", "Block until the device at this address is sighted")
	scanCmd.Flags().BoolVar(&pickDevice, "pick", false, "Choose a device interactively after the scan")
}

func runScan(cmd *cobra.Command, args []string) error {
	reg, err := config.LoadRegistry()
	if err != nil {
		return fmt.Errorf("failed to load device registry: %w", err)
	}

	timeout := scanTimeout
	if timeout <= 0 {
		timeout = reg.Preferences.ScanTimeout
	}

	t, err := newTransport()
	if err != nil {
		return err
	}

	scanner := discovery.NewScanner(t)
	scanner.Timeout = time.Duration(timeout) * time.Second
	if reg.Preferences.NamePrefix != "" {
		scanner.Prefix = reg.Preferences.NamePrefix
	}

	ctx := cmd.Context()

	if scanWait != "" {
		addr, err := transport.ParseAddress(scanWait)
		if err != nil {
			return fmt.Errorf("invalid --wait: %w", err)
		}
		fmt.Printf("Waiting for %s (timeout: %ds)...\n", addr, timeout)
		dev, err := scanner.WaitForDevice(ctx, addr)
		if err != nil {
			return err
		}
		recordSighting(reg, dev)
		if err := reg.Save(); err != nil {
			return fmt.Errorf("failed to save device registry: %w", err)
		}
		fmt.Printf("Sighted: %s\n", dev)
		return nil
	}

	if pickDevice && ui.IsInteractive() {
		dev, err := ui.PickDevice(func() ([]*discovery.Device, error) {
			return scanner.ScanForDevices(ctx)
		})
		if err != nil {
			return err
		}
		recordSighting(reg, dev)
		if err := reg.Save(); err != nil {
			return fmt.Errorf("failed to save device registry: %w", err)
		}
		fmt.Printf("Selected: %s\n", dev)
		fmt.Printf("\nUse 'dwmctl show --device %s' to view its configuration\n", dev.Address)
		return nil
	}

	fmt.Printf("Scanning for DWM modules (timeout: %ds)...\n\n", timeout)

	devices, err := scanner.ScanForDevices(ctx)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(devices) == 0 {
		fmt.Println("No devices found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Ensure the modules are powered and within a few metres")
		fmt.Println("  - Check that Bluetooth is enabled on this machine")
		fmt.Println("  - Modules already holding a BLE connection do not advertise")
		fmt.Println("  - Try increasing --timeout in crowded radio environments")
		fmt.Println("  - Use --device to specify an address manually")
		return nil
	}

	fmt.Printf("Found %d device(s):\n\n", len(devices))

	for i, dev := range devices {
		fmt.Printf("%d. %s\n", i+1, dev)
		if known := reg.GetDevice(dev.Address.String()); known != nil {
			if known.Nickname != "" {
				fmt.Printf("   Nickname: %s\n", known.Nickname)
			}
			if known.Role != "" {
				fmt.Printf("   Last configured: %s on pan %s\n", known.Role, known.LastPAN)
			}
		}
		fmt.Printf("   Sightings: %d\n", dev.Sightings)
		fmt.Println()
		recordSighting(reg, dev)
	}

	if err := reg.Save(); err != nil {
		return fmt.Errorf("failed to save device registry: %w", err)
	}

	fmt.Println("Use 'dwmctl show --device <addr>' to view a device's configuration")
	fmt.Println("Use 'dwmctl apply <plan.yaml>' to configure a network")

	return nil
}

func recordSighting(reg *config.Registry, dev *discovery.Device) {
	reg.UpdateDeviceSighting(dev.Address.String(), dev.RSSI)
}

// showCmd displays the current device configuration
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show device configuration",
	Long: `Display the current configuration of a DWM module.

This command connects to the device and reads back its persisted
configuration: network id, operation mode, position, update rates,
reporting mode and label. The live location estimate is included when the
device has one.`,
	Example: `  # Show config with auto-discovery
  dwmctl show

  # Show config for a specific device
  dwmctl show --device C8:DF:84:12:34:56

  # Compact one-line output
  dwmctl show --device C8:DF:84:12:34:56 --format compact

  # JSON output for scripting
  dwmctl show --device C8:DF:84:12:34:56 --format json`,
	RunE: runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	t, err := newTransport()
	if err != nil {
		return err
	}
	addr, err := resolveDevice(ctx, t)
	if err != nil {
		return err
	}

	client := deviceconfig.NewClient(t)

	fmt.Printf("Reading configuration from %s...\n\n", addr)

	snapshot, err := client.ReadSnapshot(ctx, addr)
	if err != nil {
		return describeFailure("failed to read configuration", err)
	}

	switch outputFormat {
	case "compact":
		fmt.Println(snapshot.Summary())
	case "json":
		data, err := json.MarshalIndent(snapshot, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(data))
	case "detailed":
		fallthrough
	default:
		fmt.Println(snapshot.FormatDetailed())
	}

	return nil
}

// setPositionCmd directly writes an anchor position
var setPositionCmd = &cobra.Command{
	Use:   "set-position <x> <y> <z>",
	Short: "Set a device's persisted position",
	Long: `Directly write a device's persisted position without a plan.

Coordinates are in metres. The position survives power cycles; anchors use
it as their surveyed location for ranging.`,
	Example: `  # Place an anchor at x=3.2m y=0.5m z=2.4m
  dwmctl set-position 3.2 0.5 2.4 --device C8:DF:84:12:34:56

  # Low-confidence position, skip read-back verification
  dwmctl set-position 1 1 1 --quality 30 --no-verify --device C8:DF:84:12:34:56`,
	Args: cobra.ExactArgs(3),
	RunE: runSetPosition,
}

var positionQuality uint8

func init() {
	setPositionCmd.Flags().Uint8Var(&positionQuality, "quality", 100, "Position quality factor (0-100)")
	setPositionCmd.Flags().BoolVar(&noVerify, "no-verify", false, "Skip configuration verification after update")
	setModeCmd.Flags().BoolVar(&noVerify, "no-verify", false, "Skip configuration verification after update")
}

func runSetPosition(cmd *cobra.Command, args []string) error {
	coords := make([]float64, 3)
	for i, arg := range args {
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return fmt.Errorf("invalid coordinate %q: %w", arg, err)
		}
		coords[i] = v
	}

	msg := &protocol.PersistedPosition{
		X:             coords[0],
		Y:             coords[1],
		Z:             coords[2],
		QualityFactor: positionQuality,
	}

	return writeSingle(cmd.Context(), msg, fmt.Sprintf("position (%.2f, %.2f, %.2f) qf=%d",
		coords[0], coords[1], coords[2], positionQuality))
}

// setModeCmd directly writes the operation mode
var setModeCmd = &cobra.Command{
	Use:   "set-mode <anchor|tag>",
	Short: "Set a device's operation mode",
	Long: `Directly set a device's operation mode without a plan.

The full mode word is written: role, initiator flag, low-power flag, LEDs
and the on-board location engine. Flags not given use the defaults shown.`,
	Example: `  # Make a device the initiator anchor
  dwmctl set-mode anchor --initiator --device C8:DF:84:12:34:56

  # Make a device a low-power tag with LEDs off
  dwmctl set-mode tag --low-power --no-leds --device C8:DF:84:12:34:56`,
	Args: cobra.ExactArgs(1),
	RunE: runSetMode,
}

var (
	modeInitiator bool
	modeLowPower  bool
	modeNoLEDs    bool
	modeNoEngine  bool
)

func init() {
	setModeCmd.Flags().BoolVar(&modeInitiator, "initiator", false, "Make this anchor the network initiator")
	setModeCmd.Flags().BoolVar(&modeLowPower, "low-power", false, "Enable low-power operation")
	setModeCmd.Flags().BoolVar(&modeNoLEDs, "no-leds", false, "Disable the status LEDs")
	setModeCmd.Flags().BoolVar(&modeNoEngine, "no-location-engine", false, "Disable the on-board location engine")
}

func runSetMode(cmd *cobra.Command, args []string) error {
	mode := &protocol.OperationMode{
		UWB:            protocol.UWBActive,
		Initiator:      modeInitiator,
		LowPower:       modeLowPower,
		LEDs:           !modeNoLEDs,
		LocationEngine: !modeNoEngine,
	}

	switch args[0] {
	case "anchor":
		mode.Type = protocol.NodeAnchor
	case "tag":
		mode.Type = protocol.NodeTag
		if modeInitiator {
			return fmt.Errorf("only an anchor can be the initiator")
		}
	default:
		return fmt.Errorf("unknown mode %q (want anchor or tag)", args[0])
	}

	return writeSingle(cmd.Context(), mode, fmt.Sprintf("mode %s", args[0]))
}

// writeSingle resolves the target device and writes one message, with
// read-back verification unless --no-verify is set
func writeSingle(ctx context.Context, msg protocol.Message, what string) error {
	t, err := newTransport()
	if err != nil {
		return err
	}
	addr, err := resolveDevice(ctx, t)
	if err != nil {
		return err
	}

	client := deviceconfig.NewClient(t)
	update := deviceconfig.Update{Address: addr, Messages: []protocol.Message{msg}}

	fmt.Printf("Writing %s to %s...\n", what, addr)

	if noVerify {
		if err := client.Send(ctx, addr, msg); err != nil {
			return describeFailure("update failed", err)
		}
		fmt.Println("✓ Configuration updated successfully (not verified)")
		return nil
	}

	// Snapshot before the write so the verified path can show what changed.
	// Best-effort: a failed read just skips the diff.
	before, snapErr := client.ReadSnapshot(ctx, addr)
	if snapErr != nil {
		before = nil
	}

	result := client.ApplyAndVerify(ctx, update, nil)
	if !result.Success {
		if len(result.Mismatches) > 0 {
			fmt.Println("\nMismatches detected:")
			for _, mismatch := range result.Mismatches {
				fmt.Printf("  - %s\n", mismatch)
			}
		}
		return describeFailure(
			fmt.Sprintf("configuration verification failed after %d attempt(s)", result.Attempts),
			result.Error)
	}

	fmt.Printf("✓ Configuration updated and verified successfully (%d attempt(s))\n", result.Attempts)

	if before != nil {
		if after, err := client.ReadSnapshot(ctx, addr); err == nil {
			fmt.Println()
			fmt.Print(deviceconfig.FormatDiff(before, after))
		}
	}
	return nil
}

// describeFailure wraps a device error with its troubleshooting hint when it
// has one
func describeFailure(what string, err error) error {
	var connErr *deviceconfig.ConnectionError
	if errors.As(err, &connErr) {
		fmt.Println()
		fmt.Println(deviceconfig.GetTroubleshootingHint(err))
	}
	if err == nil {
		return fmt.Errorf("%s", what)
	}
	return fmt.Errorf("%s: %w", what, err)
}

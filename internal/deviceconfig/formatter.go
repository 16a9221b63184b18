package deviceconfig

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/uwbtools/dwmctl/internal/protocol"
)

// Summary returns a one-line summary of the node snapshot
func (s *Snapshot) Summary() string {
	label := "(unnamed)"
	if s.Label != nil && s.Label.Label != "" {
		label = s.Label.Label
	}
	role := "?"
	if s.Mode != nil {
		role = s.Mode.Type.String()
	}
	pan := "?"
	if s.Network != nil {
		pan = fmt.Sprintf("0x%04x", s.Network.PANID)
	}
	return fmt.Sprintf("%s %s [%s] pan=%s", s.Address, label, role, pan)
}

// FormatIdentity returns a formatted string with node identification information
func (s *Snapshot) FormatIdentity() string {
	var b strings.Builder

	b.WriteString("=== Node Identity ===\n")
	b.WriteString(fmt.Sprintf("Address: %s\n", s.Address))
	if s.Label != nil {
		b.WriteString(fmt.Sprintf("Label:   %q\n", s.Label.Label))
	} else {
		b.WriteString("Label:   (not read)\n")
	}
	if s.Network != nil {
		b.WriteString(fmt.Sprintf("Network: 0x%04x\n", s.Network.PANID))
	} else {
		b.WriteString("Network: (not read)\n")
	}

	return b.String()
}

// FormatMode returns a formatted string with the node's operation mode
func (s *Snapshot) FormatMode() string {
	var b strings.Builder

	b.WriteString("=== Operation Mode ===\n")
	if s.Mode == nil {
		b.WriteString("(not read)\n")
		return b.String()
	}

	b.WriteString(fmt.Sprintf("Role:            %s\n", s.Mode.Type))
	b.WriteString(fmt.Sprintf("UWB:             %s\n", s.Mode.UWB))
	b.WriteString(fmt.Sprintf("Firmware Slot:   %d\n", s.Mode.FirmwareSlot))
	b.WriteString(fmt.Sprintf("Initiator:       %v\n", s.Mode.Initiator))
	b.WriteString(fmt.Sprintf("Low Power:       %v\n", s.Mode.LowPower))
	b.WriteString(fmt.Sprintf("Location Engine: %v\n", s.Mode.LocationEngine))
	b.WriteString(fmt.Sprintf("Accelerometer:   %v\n", s.Mode.Accelerometer))
	b.WriteString(fmt.Sprintf("LEDs:            %v\n", s.Mode.LEDs))

	return b.String()
}

// FormatPosition returns a formatted string with position information
func (s *Snapshot) FormatPosition() string {
	var b strings.Builder

	b.WriteString("=== Position ===\n")
	if s.Position != nil {
		b.WriteString(fmt.Sprintf("Persisted: x=%.3fm y=%.3fm z=%.3fm (qf=%d)\n",
			s.Position.X, s.Position.Y, s.Position.Z, s.Position.QualityFactor))
	} else {
		b.WriteString("Persisted: (not read)\n")
	}
	if s.Location != nil {
		b.WriteString(fmt.Sprintf("Computed:  x=%.3fm y=%.3fm z=%.3fm (q=%d)\n",
			s.Location.X, s.Location.Y, s.Location.Z, s.Location.Quality))
	} else {
		b.WriteString("Computed:  (no fix)\n")
	}

	return b.String()
}

// FormatRates returns a formatted string with the update rate configuration
func (s *Snapshot) FormatRates() string {
	var b strings.Builder

	b.WriteString("=== Update Rates ===\n")
	if s.UpdateRate != nil {
		b.WriteString(fmt.Sprintf("Active:     %d ms\n", s.UpdateRate.ActiveMs))
		b.WriteString(fmt.Sprintf("Stationary: %d ms\n", s.UpdateRate.StationaryMs))
	} else {
		b.WriteString("(not read)\n")
	}
	if s.LocMode != nil {
		b.WriteString(fmt.Sprintf("Reporting:  %s\n", s.LocMode.Mode))
	}

	return b.String()
}

// FormatDetailed returns a comprehensive formatted string with all node details
func (s *Snapshot) FormatDetailed() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(s.FormatIdentity())
	b.WriteString("\n")
	b.WriteString(s.FormatMode())
	b.WriteString("\n")
	b.WriteString(s.FormatPosition())
	b.WriteString("\n")
	b.WriteString(s.FormatRates())

	return b.String()
}

// FormatChanges returns a formatted string showing what an update will write
func (u *Update) FormatChanges() string {
	var b strings.Builder

	b.WriteString("=== Pending Changes ===\n")
	if u.Label != "" {
		b.WriteString(fmt.Sprintf("Device: %s (%s)\n", u.Address, u.Label))
	} else {
		b.WriteString(fmt.Sprintf("Device: %s\n", u.Address))
	}

	if len(u.Messages) == 0 {
		b.WriteString("(no changes specified)\n")
		return b.String()
	}

	for _, msg := range u.Messages {
		b.WriteString(fmt.Sprintf("  %-18s %s\n", protocol.CommandName(msg.Command())+":", msg))
	}

	return b.String()
}

// Format returns a human-readable summary of the batch outcome
func (r *ApplyReport) Format() string {
	var b strings.Builder

	failures := r.Failures()
	b.WriteString(fmt.Sprintf("Configured %d/%d devices\n", len(r.Results)-len(failures), len(r.Results)))

	for _, res := range r.Results {
		name := res.Address.String()
		if res.Label != "" {
			name = fmt.Sprintf("%s (%s)", res.Address, res.Label)
		}
		if res.Failed() {
			b.WriteString(fmt.Sprintf("  ✗ %s: %d message(s) applied, then: %s\n",
				name, res.Applied, GetShortErrorMessage(res.Err)))
		} else {
			b.WriteString(fmt.Sprintf("  ✓ %s: %d message(s) applied\n", name, res.Applied))
		}
	}

	return b.String()
}

// FormatDiff returns a formatted diff between two snapshots of the same node
func FormatDiff(old, new *Snapshot) string {
	var b strings.Builder

	b.WriteString("=== Configuration Differences ===\n")

	hasChanges := false
	diff := func(field, oldVal, newVal string) {
		if oldVal != newVal {
			b.WriteString(fmt.Sprintf("  %-12s %s → %s\n", field+":", oldVal, newVal))
			hasChanges = true
		}
	}

	diff("Position", describe(old.Position), describe(new.Position))
	diff("Mode", describe(old.Mode), describe(new.Mode))
	diff("Network", describe(old.Network), describe(new.Network))
	diff("Rates", describe(old.UpdateRate), describe(new.UpdateRate))
	diff("Reporting", describe(old.LocMode), describe(new.LocMode))
	diff("Label", describe(old.Label), describe(new.Label))

	if !hasChanges {
		b.WriteString("  (no differences detected)\n")
	}

	return b.String()
}

// describe renders a snapshot field, treating a nil (unread) field as unset.
// The reflect check catches typed nil pointers hiding inside the interface.
func describe(m protocol.Message) string {
	if m == nil || reflect.ValueOf(m).IsNil() {
		return "(unset)"
	}
	return m.String()
}

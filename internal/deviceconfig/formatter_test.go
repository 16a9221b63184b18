package deviceconfig

import (
	"errors"
	"strings"
	"testing"

	"github.com/uwbtools/dwmctl/internal/protocol"
	"github.com/uwbtools/dwmctl/internal/transport"
)

func sampleSnapshot() *Snapshot {
	return &Snapshot{
		Address:    transport.MustParseAddress("EC:1B:82:4A:10:C5"),
		Position:   &protocol.PersistedPosition{X: 1.5, Y: -2, Z: 0.25, QualityFactor: 100},
		Mode:       &protocol.OperationMode{Type: protocol.NodeAnchor, UWB: protocol.UWBActive, Initiator: true},
		Network:    &protocol.NetworkID{PANID: 0x0c50},
		UpdateRate: &protocol.UpdateRate{ActiveMs: 100, StationaryMs: 1000},
		LocMode:    &protocol.LocationMode{Mode: protocol.LocationPosition},
		Label:      &protocol.NodeLabel{Label: "anchor-1"},
	}
}

func TestSnapshotSummary(t *testing.T) {
	s := sampleSnapshot()
	summary := s.Summary()

	for _, want := range []string{"EC:1B:82:4A:10:C5", "anchor-1", "anchor", "0x0c50"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary %q missing %q", summary, want)
		}
	}

	// Snapshots with unread fields still summarize.
	bare := &Snapshot{Address: s.Address}
	if !strings.Contains(bare.Summary(), "(unnamed)") {
		t.Errorf("bare summary = %q, want unnamed placeholder", bare.Summary())
	}
}

func TestSnapshotFormatDetailed(t *testing.T) {
	out := sampleSnapshot().FormatDetailed()

	for _, want := range []string{
		"Node Identity", "Operation Mode", "Position", "Update Rates",
		"anchor-1", "0x0c50", "x=1.500m", "100 ms", "(no fix)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("detailed output missing %q", want)
		}
	}
}

func TestUpdateFormatChanges(t *testing.T) {
	u := Update{
		Address: transport.MustParseAddress("EC:1B:82:4A:10:C5"),
		Label:   "anchor-1",
		Messages: []protocol.Message{
			&protocol.NetworkID{PANID: 0x0c50},
			&protocol.NodeLabel{Label: "anchor-1"},
		},
	}

	out := u.FormatChanges()
	if !strings.Contains(out, "NetworkID") || !strings.Contains(out, "NodeLabel") {
		t.Errorf("changes output missing message names:\n%s", out)
	}

	empty := Update{Address: u.Address}
	if !strings.Contains(empty.FormatChanges(), "no changes") {
		t.Error("empty update should say so")
	}
}

func TestApplyReportFormat(t *testing.T) {
	report := &ApplyReport{Results: []DeviceResult{
		{Address: transport.MustParseAddress("EC:1B:82:4A:10:01"), Label: "anchor-1", Applied: 3},
		{Address: transport.MustParseAddress("EC:1B:82:4A:10:02"), Label: "anchor-2", Applied: 1,
			Err: NewWriteError("EC:1B:82:4A:10:02", 0x03, errors.New("link dropped"))},
	}}

	out := report.Format()
	if !strings.Contains(out, "Configured 1/2 devices") {
		t.Errorf("report header wrong:\n%s", out)
	}
	if !strings.Contains(out, "anchor-2") || !strings.Contains(out, "session dropped") {
		t.Errorf("report should name the failed device and cause:\n%s", out)
	}
}

func TestFormatDiff(t *testing.T) {
	old := sampleSnapshot()
	updated := sampleSnapshot()
	updated.Network = &protocol.NetworkID{PANID: 0x9999}
	updated.Label = &protocol.NodeLabel{Label: "anchor-9"}

	out := FormatDiff(old, updated)
	if !strings.Contains(out, "0x9999") || !strings.Contains(out, "anchor-9") {
		t.Errorf("diff missing changed values:\n%s", out)
	}
	if strings.Contains(out, "Position:") {
		t.Errorf("diff should omit unchanged fields:\n%s", out)
	}

	same := FormatDiff(old, sampleSnapshot())
	if !strings.Contains(same, "no differences") {
		t.Errorf("identical snapshots should diff clean:\n%s", same)
	}
}

package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/uwbtools/dwmctl/internal/deviceconfig"
	"github.com/uwbtools/dwmctl/internal/protocol"
	"github.com/uwbtools/dwmctl/internal/transport"
)

// Plan is a declarative description of one or more UWB networks: which
// modules belong to them, what role each plays, and where the anchors sit.
// Plans are written by hand (or by the calibration solver) and applied in
// one batch.
type Plan struct {
	Version  int       `yaml:"version"`
	Networks []Network `yaml:"networks"`
}

// Network groups the nodes that share a PAN identifier. Network-level
// settings are defaults; a node may override them.
type Network struct {
	PANID        uint16    `yaml:"pan_id"`
	UpdateRate   *RateSpec `yaml:"update_rate,omitempty"`
	LocationMode string    `yaml:"location_mode,omitempty"`
	Nodes        []Node    `yaml:"nodes"`
}

// Node describes one module in a network
type Node struct {
	Address      string        `yaml:"address"`
	Label        string        `yaml:"label,omitempty"`
	Type         string        `yaml:"type"` // "anchor" or "tag"
	Initiator    bool          `yaml:"initiator,omitempty"`
	Position     *PositionSpec `yaml:"position,omitempty"`
	Surveyed     bool          `yaml:"surveyed,omitempty"` // position is tape-measured truth, not an estimate
	UpdateRate   *RateSpec     `yaml:"update_rate,omitempty"`
	LocationMode string        `yaml:"location_mode,omitempty"`
	LowPower     bool          `yaml:"low_power,omitempty"`
	LEDs         *bool         `yaml:"leds,omitempty"` // nil means on
}

// PositionSpec is an anchor's surveyed position in metres
type PositionSpec struct {
	X       float64 `yaml:"x"`
	Y       float64 `yaml:"y"`
	Z       float64 `yaml:"z"`
	Quality *uint8  `yaml:"quality,omitempty"` // nil means 100
}

// RateSpec is a tag's location update rates in milliseconds
type RateSpec struct {
	ActiveMs     uint32 `yaml:"active_ms"`
	StationaryMs uint32 `yaml:"stationary_ms"`
}

// LoadPlan reads and validates a plan file
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan file: %w", err)
	}

	if plan.Version != 1 {
		return nil, fmt.Errorf("unsupported plan version: %d (expected 1)", plan.Version)
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// SavePlan validates and writes a plan file. The calibration solver uses it
// to write solved anchor positions back into the plan.
func SavePlan(path string, plan *Plan) error {
	if err := plan.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write plan file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace plan file: %w", err)
	}
	return nil
}

// Validate checks the structural rules the codec cannot: addresses parse and
// are unique across the plan, roles are known, anchors carry positions, and
// each network has at most one initiator (an anchor). Field ranges are left
// to the codec, which rejects them when the messages are built.
func (p *Plan) Validate() error {
	if len(p.Networks) == 0 {
		return fmt.Errorf("plan defines no networks")
	}

	seen := make(map[transport.Address]string)

	for ni, network := range p.Networks {
		where := fmt.Sprintf("network %d (pan 0x%04x)", ni, network.PANID)

		if network.PANID == 0 {
			return fmt.Errorf("%s: pan_id 0 is reserved", where)
		}
		if len(network.Nodes) == 0 {
			return fmt.Errorf("%s: no nodes", where)
		}
		if network.LocationMode != "" {
			if _, err := parseLocationMode(network.LocationMode); err != nil {
				return fmt.Errorf("%s: %w", where, err)
			}
		}

		initiators := 0
		for _, node := range network.Nodes {
			nodeWhere := fmt.Sprintf("%s, node %q", where, node.Address)

			addr, err := transport.ParseAddress(node.Address)
			if err != nil {
				return fmt.Errorf("%s: %w", nodeWhere, err)
			}
			if prev, dup := seen[addr]; dup {
				return fmt.Errorf("%s: address already used by %s", nodeWhere, prev)
			}
			seen[addr] = nodeWhere

			switch node.Type {
			case "anchor":
				if node.Position == nil {
					return fmt.Errorf("%s: anchors need a surveyed position", nodeWhere)
				}
			case "tag":
				if node.Surveyed {
					return fmt.Errorf("%s: only anchors can be surveyed", nodeWhere)
				}
				if node.Initiator {
					return fmt.Errorf("%s: only an anchor can be the initiator", nodeWhere)
				}
			default:
				return fmt.Errorf("%s: unknown node type %q (want anchor or tag)", nodeWhere, node.Type)
			}

			if node.Initiator {
				initiators++
			}
			if node.LocationMode != "" {
				if _, err := parseLocationMode(node.LocationMode); err != nil {
					return fmt.Errorf("%s: %w", nodeWhere, err)
				}
			}
		}

		if initiators > 1 {
			return fmt.Errorf("%s: %d initiators, a network has at most one", where, initiators)
		}
	}

	return nil
}

// Updates builds the per-device message sequences the plan describes, in
// plan order. The message order within a device is fixed: identity first
// (network, mode), then position, rates, reporting mode, and label last.
func (p *Plan) Updates() ([]deviceconfig.Update, error) {
	var updates []deviceconfig.Update

	for _, network := range p.Networks {
		for _, node := range network.Nodes {
			addr, err := transport.ParseAddress(node.Address)
			if err != nil {
				return nil, err
			}

			msgs, err := nodeMessages(network, node)
			if err != nil {
				return nil, fmt.Errorf("node %q: %w", node.Address, err)
			}

			updates = append(updates, deviceconfig.Update{
				Address:  addr,
				Label:    node.Label,
				Messages: msgs,
			})
		}
	}

	return updates, nil
}

// nodeMessages assembles one node's messages from network defaults and node
// overrides
func nodeMessages(network Network, node Node) ([]protocol.Message, error) {
	var msgs []protocol.Message

	msgs = append(msgs, &protocol.NetworkID{PANID: network.PANID})

	mode := &protocol.OperationMode{
		UWB:            protocol.UWBActive,
		LEDs:           node.LEDs == nil || *node.LEDs,
		Initiator:      node.Initiator,
		LowPower:       node.LowPower,
		LocationEngine: true,
	}
	if node.Type == "anchor" {
		mode.Type = protocol.NodeAnchor
	} else {
		mode.Type = protocol.NodeTag
	}
	msgs = append(msgs, mode)

	if node.Position != nil {
		qf := uint8(100)
		if node.Position.Quality != nil {
			qf = *node.Position.Quality
		}
		msgs = append(msgs, &protocol.PersistedPosition{
			X:             node.Position.X,
			Y:             node.Position.Y,
			Z:             node.Position.Z,
			QualityFactor: qf,
		})
	}

	if rate := pickRate(node.UpdateRate, network.UpdateRate); rate != nil {
		msgs = append(msgs, &protocol.UpdateRate{
			ActiveMs:     rate.ActiveMs,
			StationaryMs: rate.StationaryMs,
		})
	}

	if spec := pickString(node.LocationMode, network.LocationMode); spec != "" {
		lm, err := parseLocationMode(spec)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, &protocol.LocationMode{Mode: lm})
	}

	if node.Label != "" {
		msgs = append(msgs, &protocol.NodeLabel{Label: node.Label})
	}

	return msgs, nil
}

func pickRate(node, network *RateSpec) *RateSpec {
	if node != nil {
		return node
	}
	return network
}

func pickString(node, network string) string {
	if node != "" {
		return node
	}
	return network
}

func parseLocationMode(s string) (protocol.LocationDataMode, error) {
	switch strings.ToLower(s) {
	case "position":
		return protocol.LocationPosition, nil
	case "distances":
		return protocol.LocationDistances, nil
	case "position+distances", "both":
		return protocol.LocationPositionDistances, nil
	default:
		return 0, fmt.Errorf("unknown location mode %q (want position, distances or position+distances)", s)
	}
}

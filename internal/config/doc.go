// Package config holds the two configuration surfaces of dwmctl.
//
// The first is the network plan: a YAML file describing one or more UWB
// networks - their PAN identifiers, which modules belong to them, each
// node's role, and the surveyed anchor positions. A plan is loaded with
// LoadPlan, validated structurally, and turned into per-device message
// sequences with Plan.Updates. Plans live wherever the user keeps them;
// they are inputs, not state.
//
// The second is the user registry: a YAML file of client-side metadata
// (nicknames, last scan sightings, preferences) stored in the
// platform-appropriate configuration directory:
//   - Linux: $XDG_CONFIG_HOME/dwmctl/config.yaml or $HOME/.config/dwmctl/config.yaml
//   - macOS: $HOME/.config/dwmctl/config.yaml
//   - Windows: %LOCALAPPDATA%\dwmctl\config.yaml
//
// # Usage Example
//
//	plan, err := config.LoadPlan("site.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	updates, err := plan.Updates()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	report := client.Apply(ctx, updates, nil)
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across goroutines.
// File operations are protected by a mutex to ensure atomic writes.
package config

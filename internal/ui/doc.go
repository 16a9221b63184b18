// Package ui provides terminal output components for the dwmctl CLI.
//
// The package wraps lipgloss styling and Bubble Tea rendering behind a small
// set of widgets:
//
//   - Header: bordered command context box shown at the start of a command
//   - Result: success/failure/warning boxes, failures with troubleshooting
//     tips
//   - Progress: per-step progress display used by batch apply
//   - PickDevice: interactive scan-and-select picker for commands that need
//     exactly one device
//   - ConfirmDangerousOperation: typed confirmation for operations that
//     rewrite device flash
//
// All widgets degrade to the minimum supported width on narrow terminals.
// Commands should check IsInteractive before launching the picker and fall
// back to plain listings when stdout is not a terminal.
package ui

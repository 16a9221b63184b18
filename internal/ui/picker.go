package ui

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/uwbtools/dwmctl/internal/discovery"
)

// ErrPickerAborted is returned when the user leaves the picker without
// choosing a device
var ErrPickerAborted = errors.New("no device selected")

// scanDoneMsg carries the scan result into the picker model
type scanDoneMsg struct {
	devices []*discovery.Device
	err     error
}

// pickerModel is a Bubble Tea model that shows a spinner while a scan runs,
// then lets the user pick one of the discovered devices.
type pickerModel struct {
	spinner  spinner.Model
	scan     func() ([]*discovery.Device, error)
	scanning bool
	devices  []*discovery.Device
	cursor   int
	chosen   *discovery.Device
	err      error
}

func newPickerModel(scan func() ([]*discovery.Device, error)) pickerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(PrimaryColor)
	return pickerModel{
		spinner:  s,
		scan:     scan,
		scanning: true,
	}
}

// Init implements tea.Model
func (m pickerModel) Init() tea.Cmd {
	runScan := func() tea.Msg {
		devices, err := m.scan()
		return scanDoneMsg{devices: devices, err: err}
	}
	return tea.Batch(m.spinner.Tick, runScan)
}

// Update implements tea.Model
func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case scanDoneMsg:
		m.scanning = false
		m.devices = msg.devices
		m.err = msg.err
		if m.err == nil && len(m.devices) == 0 {
			m.err = errors.New("no devices found")
		}
		if m.err != nil {
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		if !m.scanning {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.devices)-1 {
				m.cursor++
			}
		case "enter":
			if !m.scanning && len(m.devices) > 0 {
				m.chosen = m.devices[m.cursor]
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

// View implements tea.Model
func (m pickerModel) View() string {
	var b strings.Builder

	if m.scanning {
		b.WriteString("\n")
		b.WriteString(PickerTitleStyle.Render(m.spinner.View() + " Scanning for devices..."))
		b.WriteString("\n\n")
		b.WriteString(PickerHelpStyle.Render("q to abort"))
		b.WriteString("\n")
		return b.String()
	}

	if m.err != nil {
		return ""
	}

	b.WriteString("\n")
	b.WriteString(PickerTitleStyle.Render(fmt.Sprintf("Found %d devices", len(m.devices))))
	b.WriteString("\n\n")

	for i, dev := range m.devices {
		if i == m.cursor {
			b.WriteString(PickerSelectedStyle.Render("❯ " + dev.String()))
		} else {
			b.WriteString(PickerItemStyle.Render(dev.String()))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(PickerHelpStyle.Render("↑/↓ move · enter select · q abort"))
	b.WriteString("\n")
	return b.String()
}

// PickDevice runs the scan function behind a spinner and lets the user choose
// one of the discovered devices. Returns ErrPickerAborted when the user quits
// without a selection, or the scan error when discovery itself failed.
func PickDevice(scan func() ([]*discovery.Device, error)) (*discovery.Device, error) {
	model := newPickerModel(scan)
	p := tea.NewProgram(model, tea.WithOutput(os.Stdout))

	final, err := p.Run()
	if err != nil {
		return nil, err
	}

	m := final.(pickerModel)
	if m.err != nil {
		return nil, m.err
	}
	if m.chosen == nil {
		return nil, ErrPickerAborted
	}
	return m.chosen, nil
}

package config

import "time"

// Registry represents the entire user configuration file.
// This stores user-defined metadata for modules and application preferences.
type Registry struct {
	Version     int                `yaml:"version"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by device address
	Preferences *Preferences       `yaml:"preferences,omitempty"`
}

// Device represents user-defined metadata for a single module.
// This is keyed by the device's address in the Registry.
type Device struct {
	Nickname string    `yaml:"nickname,omitempty"`  // User-friendly name
	LastSeen time.Time `yaml:"last_seen,omitempty"` // Last scan sighting
	LastRSSI int       `yaml:"last_rssi,omitempty"` // Signal strength at last sighting (dBm)
	LastPAN  string    `yaml:"last_pan,omitempty"`  // Last known network id (hex)
	Role     string    `yaml:"role,omitempty"`      // Last known role ("anchor" or "tag")
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	ScanTimeout int    `yaml:"scan_timeout"`           // Scan duration in seconds
	NamePrefix  string `yaml:"name_prefix,omitempty"`  // Advertised-name filter for scans
	DefaultPlan string `yaml:"default_plan,omitempty"` // Plan file used when apply gets no argument
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version: 1,
		Devices: make(map[string]*Device),
		Preferences: &Preferences{
			ScanTimeout: 10,
			NamePrefix:  "DW",
		},
	}
}

// GetDevice retrieves device metadata by address.
// Returns nil if the device doesn't exist in the registry.
func (r *Registry) GetDevice(address string) *Device {
	return r.Devices[address]
}

// EnsureDevice ensures a device entry exists in the registry.
// If the device doesn't exist, creates a new entry with default values.
// Returns the device entry (existing or newly created).
func (r *Registry) EnsureDevice(address string) *Device {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}

	if device, exists := r.Devices[address]; exists {
		return device
	}

	device := &Device{}
	r.Devices[address] = device
	return device
}

// UpdateDeviceSighting records a scan sighting for a device.
func (r *Registry) UpdateDeviceSighting(address string, rssi int) {
	device := r.EnsureDevice(address)
	device.LastSeen = time.Now()
	device.LastRSSI = rssi
}

// SetDeviceNickname sets a user-friendly nickname for a device.
func (r *Registry) SetDeviceNickname(address, nickname string) {
	device := r.EnsureDevice(address)
	device.Nickname = nickname
}

// RecordConfiguration stores the role and network a device was last
// configured with, for display in later scans.
func (r *Registry) RecordConfiguration(address, role, pan string) {
	device := r.EnsureDevice(address)
	device.Role = role
	device.LastPAN = pan
}

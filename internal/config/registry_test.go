package config

import (
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestGetConfigDir(t *testing.T) {
	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	// Should not be empty
	if configDir == "" {
		t.Error("GetConfigDir() returned empty string")
	}

	// Should contain "dwmctl"
	if !strings.Contains(configDir, "dwmctl") {
		t.Errorf("GetConfigDir() = %v, should contain 'dwmctl'", configDir)
	}

	// Platform-specific checks
	switch runtime.GOOS {
	case "windows":
		if !strings.Contains(configDir, "AppData") && !strings.Contains(configDir, "Local") {
			t.Errorf("Windows config dir should contain 'AppData' or 'Local', got: %v", configDir)
		}
	case "darwin", "linux":
		if !strings.Contains(configDir, ".config") {
			t.Errorf("Unix config dir should contain '.config', got: %v", configDir)
		}
	}

	t.Logf("Config directory: %s", configDir)
}

func TestGetConfigPath(t *testing.T) {
	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}

	// Should end with config.yaml
	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}

	t.Logf("Config path: %s", configPath)
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	if reg.Version != 1 {
		t.Errorf("NewRegistry().Version = %v, want 1", reg.Version)
	}

	if reg.Devices == nil {
		t.Error("NewRegistry().Devices should not be nil")
	}

	if reg.Preferences == nil {
		t.Error("NewRegistry().Preferences should not be nil")
	}

	if reg.Preferences.ScanTimeout != 10 {
		t.Errorf("NewRegistry().Preferences.ScanTimeout = %v, want 10", reg.Preferences.ScanTimeout)
	}

	if reg.Preferences.NamePrefix != "DW" {
		t.Errorf("NewRegistry().Preferences.NamePrefix = %v, want DW", reg.Preferences.NamePrefix)
	}
}

func TestRegistryEnsureDevice(t *testing.T) {
	reg := NewRegistry()

	// First call should create device
	device1 := reg.EnsureDevice("EC:1B:82:4A:10:C5")
	if device1 == nil {
		t.Fatal("EnsureDevice() returned nil")
	}

	// Second call should return same device
	device2 := reg.EnsureDevice("EC:1B:82:4A:10:C5")
	if device1 != device2 {
		t.Error("EnsureDevice() should return same instance for same address")
	}

	// Different address should create new device
	device3 := reg.EnsureDevice("EC:1B:82:4A:10:C6")
	if device1 == device3 {
		t.Error("EnsureDevice() should create new instance for different address")
	}
}

func TestRegistryUpdateDeviceSighting(t *testing.T) {
	reg := NewRegistry()

	before := time.Now()
	reg.UpdateDeviceSighting("EC:1B:82:4A:10:C5", -67)
	after := time.Now()

	device := reg.GetDevice("EC:1B:82:4A:10:C5")
	if device == nil {
		t.Fatal("Device should exist after UpdateDeviceSighting()")
	}

	if device.LastRSSI != -67 {
		t.Errorf("LastRSSI = %v, want -67", device.LastRSSI)
	}

	if device.LastSeen.Before(before) || device.LastSeen.After(after) {
		t.Errorf("LastSeen = %v, should be between %v and %v", device.LastSeen, before, after)
	}
}

func TestRegistrySetDeviceNickname(t *testing.T) {
	reg := NewRegistry()

	reg.SetDeviceNickname("EC:1B:82:4A:10:C5", "north-east anchor")

	device := reg.GetDevice("EC:1B:82:4A:10:C5")
	if device == nil {
		t.Fatal("Device should exist after SetDeviceNickname()")
	}

	if device.Nickname != "north-east anchor" {
		t.Errorf("Nickname = %v, want 'north-east anchor'", device.Nickname)
	}
}

func TestRegistryRecordConfiguration(t *testing.T) {
	reg := NewRegistry()

	reg.RecordConfiguration("EC:1B:82:4A:10:C5", "anchor", "0x0c50")

	device := reg.GetDevice("EC:1B:82:4A:10:C5")
	if device == nil {
		t.Fatal("Device should exist after RecordConfiguration()")
	}

	if device.Role != "anchor" {
		t.Errorf("Role = %v, want anchor", device.Role)
	}

	if device.LastPAN != "0x0c50" {
		t.Errorf("LastPAN = %v, want 0x0c50", device.LastPAN)
	}
}

// Benchmark tests

func BenchmarkGetConfigDir(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = GetConfigDir()
	}
}

func BenchmarkEnsureDevice(b *testing.B) {
	reg := NewRegistry()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		reg.EnsureDevice("EC:1B:82:4A:10:C5")
	}
}

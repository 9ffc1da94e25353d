package config

import (
	"sort"
	"strings"
	"time"
)

// Defaults for a fresh preferences section.
const (
	DefaultDiscoverTimeout = 5 // seconds
	DefaultTimeoutMS       = 5000
	DefaultPollIntervalMS  = 2000
	DefaultReloadDelayMS   = 2000
	DefaultPort            = 80
	DefaultAPIPrefix       = "/api"
)

// Registry represents the entire user configuration file.
// It stores known adapters and application preferences.
type Registry struct {
	Version     int                `yaml:"version"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by adapter name or host
	Preferences *Preferences       `yaml:"preferences,omitempty"`
}

// Device represents what the tool remembers about one adapter.
type Device struct {
	Nickname  string    `yaml:"nickname,omitempty"`   // User-friendly name, usable as --device
	Host      string    `yaml:"host,omitempty"`       // Fixed hostname or IP; empty means use LastIP
	Port      int       `yaml:"port,omitempty"`       // HTTP port, 0 means default
	APIPrefix string    `yaml:"api_prefix,omitempty"` // Overrides the preferences prefix
	LastIP    string    `yaml:"last_ip,omitempty"`    // Last known IP address
	LastSeen  time.Time `yaml:"last_seen,omitempty"`  // Last discovery/connection time
	Buses     []string  `yaml:"buses,omitempty"`      // CAN buses reported by the beacon
}

// Address returns the host to connect to: Host if set, otherwise LastIP.
func (d *Device) Address() string {
	if d.Host != "" {
		return d.Host
	}
	return d.LastIP
}

// Preferences represents application-wide user preferences.
// Millisecond values follow the command-line flags of the same name.
type Preferences struct {
	AutoDiscover    bool   `yaml:"auto_discover"`             // Scan on startup when no device is given
	DiscoverTimeout int    `yaml:"discover_timeout"`          // Discovery timeout in seconds
	TimeoutMS       int    `yaml:"timeout_ms"`                // Request deadline, 0 = none
	PollIntervalMS  int    `yaml:"poll_interval_ms"`          // Status poll interval, 0 = once
	ReloadDelayMS   int    `yaml:"reload_delay_ms"`           // Wait before reloading after a save
	DefaultPort     int    `yaml:"default_port,omitempty"`    // HTTP port when none is given
	APIPrefix       string `yaml:"api_prefix,omitempty"`      // API path prefix
	LogLevel        string `yaml:"log_level,omitempty"`       // Used when --log-level is not set
	LastDevice      string `yaml:"last_device,omitempty"`     // Registry key of the last adapter used
	BeaconPort      int    `yaml:"beacon_port,omitempty"`     // UDP port for CANBeacon discovery
	DisableMDNS     bool   `yaml:"disable_mdns,omitempty"`    // Skip mDNS during discovery
	DisableBeacons  bool   `yaml:"disable_beacons,omitempty"` // Skip CANBeacon during discovery
}

// DefaultPreferences returns the preferences written to a new file.
func DefaultPreferences() *Preferences {
	return &Preferences{
		AutoDiscover:    true,
		DiscoverTimeout: DefaultDiscoverTimeout,
		TimeoutMS:       DefaultTimeoutMS,
		PollIntervalMS:  DefaultPollIntervalMS,
		ReloadDelayMS:   DefaultReloadDelayMS,
		DefaultPort:     DefaultPort,
		APIPrefix:       DefaultAPIPrefix,
	}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Devices:     make(map[string]*Device),
		Preferences: DefaultPreferences(),
	}
}

// GetDevice retrieves a device entry by key.
// Returns nil if the device doesn't exist in the registry.
func (r *Registry) GetDevice(key string) *Device {
	return r.Devices[key]
}

// EnsureDevice ensures a device entry exists in the registry.
// If the device doesn't exist, creates a new entry with default values.
// Returns the device entry (existing or newly created).
func (r *Registry) EnsureDevice(key string) *Device {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}

	if device, exists := r.Devices[key]; exists {
		return device
	}

	device := &Device{}
	r.Devices[key] = device
	return device
}

// UpdateDeviceLastSeen updates the last seen timestamp and IP for a device.
func (r *Registry) UpdateDeviceLastSeen(key, ip string) {
	device := r.EnsureDevice(key)
	device.LastSeen = time.Now()
	device.LastIP = ip
}

// SetDeviceNickname sets a user-friendly nickname for a device.
func (r *Registry) SetDeviceNickname(key, nickname string) {
	device := r.EnsureDevice(key)
	device.Nickname = nickname
}

// RemoveDevice forgets a device. It reports whether the key existed.
func (r *Registry) RemoveDevice(key string) bool {
	if _, ok := r.Devices[key]; !ok {
		return false
	}
	delete(r.Devices, key)
	if r.Preferences != nil && r.Preferences.LastDevice == key {
		r.Preferences.LastDevice = ""
	}
	return true
}

// FindDevice looks a device up by key or nickname, case-insensitively.
// Returns the registry key and entry, or "" and nil.
func (r *Registry) FindDevice(name string) (string, *Device) {
	if d, ok := r.Devices[name]; ok {
		return name, d
	}
	for _, key := range r.DeviceKeys() {
		d := r.Devices[key]
		if strings.EqualFold(key, name) || (d.Nickname != "" && strings.EqualFold(d.Nickname, name)) {
			return key, d
		}
	}
	return "", nil
}

// DeviceKeys returns the registry keys in sorted order.
func (r *Registry) DeviceKeys() []string {
	keys := make([]string, 0, len(r.Devices))
	for k := range r.Devices {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Prefs returns the preferences, creating defaults if the section is missing.
func (r *Registry) Prefs() *Preferences {
	if r.Preferences == nil {
		r.Preferences = DefaultPreferences()
	}
	return r.Preferences
}

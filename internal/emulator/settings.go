package emulator

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/muurk/canbridge/internal/deviceconfig"
	"gopkg.in/yaml.v3"
)

// Firmware limits and replies.
const (
	maxPostContent = 511
	maxSSIDLength  = 32
	maxPassLength  = 64

	// MaskedPassword replaces the stored passphrase in GET /config.
	MaskedPassword = "******"

	ReplyUpdating    = "Updating settings..."
	ReplyTooLong     = "POST content too long."
	ReplyBadQuery    = "Error reading query parameters."
	ReplyBadIP       = "IP address must be of form '1.2.3.4'."
	ReplyBadBitrate  = "Invalid CAN bitrate value was given."
	ReplySSIDTooLong = "Wi-Fi SSID is too long."
	ReplyPassTooLong = "Wi-Fi password is too long."
	ReplySaveFailed  = "Couldn't save the given config."
	ReplyRestarting  = "Restarting..."
)

// Settings is the persistent configuration of an emulated adapter.
type Settings struct {
	EthUseDHCP  bool   `yaml:"eth_use_dhcp"`
	EthIP       string `yaml:"eth_ip"`
	EthNetmask  string `yaml:"eth_netmask"`
	EthGateway  string `yaml:"eth_gw"`
	WiFiEnabled bool   `yaml:"wifi_enabled"`
	WiFiSSID    string `yaml:"wifi_ssid"`
	WiFiPass    string `yaml:"wifi_pass"`
	WiFiUseDHCP bool   `yaml:"wifi_use_dhcp"`
	WiFiIP      string `yaml:"wifi_ip"`
	WiFiNetmask string `yaml:"wifi_netmask"`
	WiFiGateway string `yaml:"wifi_gw"`
	CANBitrate  int    `yaml:"can_bitrate"`
}

// DefaultSettings returns the factory settings of the adapter firmware.
func DefaultSettings() Settings {
	return Settings{
		EthUseDHCP:  false,
		EthIP:       "192.168.2.163",
		EthNetmask:  "255.255.255.0",
		EthGateway:  "192.168.2.1",
		WiFiEnabled: false,
		WiFiSSID:    "ssid_changeme",
		WiFiPass:    "password_changeme",
		WiFiUseDHCP: true,
		WiFiIP:      "192.168.2.163",
		WiFiNetmask: "255.255.255.0",
		WiFiGateway: "192.168.2.1",
		CANBitrate:  500,
	}
}

// Record renders the settings as served by GET /config.
func (s Settings) Record() deviceconfig.ConfigRecord {
	return deviceconfig.ConfigRecord{
		deviceconfig.KeyEthUseDHCP:  s.EthUseDHCP,
		deviceconfig.KeyEthIP:       s.EthIP,
		deviceconfig.KeyEthNetmask:  s.EthNetmask,
		deviceconfig.KeyEthGateway:  s.EthGateway,
		deviceconfig.KeyWiFiEnabled: s.WiFiEnabled,
		deviceconfig.KeyWiFiSSID:    s.WiFiSSID,
		deviceconfig.KeyWiFiPass:    MaskedPassword,
		deviceconfig.KeyWiFiUseDHCP: s.WiFiUseDHCP,
		deviceconfig.KeyWiFiIP:      s.WiFiIP,
		deviceconfig.KeyWiFiNetmask: s.WiFiNetmask,
		deviceconfig.KeyWiFiGateway: s.WiFiGateway,
		deviceconfig.KeyCANBitrate:  float64(s.CANBitrate),
	}
}

// RejectError is a POST the firmware refuses. Its message is the reply body.
type RejectError struct {
	Reply string
}

func (e *RejectError) Error() string { return e.Reply }

func reject(reply string) error { return &RejectError{Reply: reply} }

// fieldSetter parses one form value into s.
type fieldSetter func(s *Settings, value string) error

// boolField is true for any value starting with "true" (any case) and
// false otherwise, as the firmware parses it.
func boolField(dst func(*Settings) *bool) fieldSetter {
	return func(s *Settings, value string) error {
		*dst(s) = strings.HasPrefix(strings.ToLower(value), "true")
		return nil
	}
}

func ipField(key string, dst func(*Settings) *string) fieldSetter {
	return func(s *Settings, value string) error {
		if err := deviceconfig.ValidateIPv4(key, value); err != nil {
			return reject(ReplyBadIP)
		}
		*dst(s) = value
		return nil
	}
}

func textField(limit int, reply string, dst func(*Settings) *string) fieldSetter {
	return func(s *Settings, value string) error {
		if len(value) > limit {
			return reject(reply)
		}
		*dst(s) = value
		return nil
	}
}

// formFields lists the keys accepted by POST /config in the order the
// firmware reads them. Unknown keys are ignored.
var formFields = []struct {
	key string
	set fieldSetter
}{
	{deviceconfig.KeyEthUseDHCP, boolField(func(s *Settings) *bool { return &s.EthUseDHCP })},
	{deviceconfig.KeyEthIP, ipField(deviceconfig.KeyEthIP, func(s *Settings) *string { return &s.EthIP })},
	{deviceconfig.KeyEthNetmask, ipField(deviceconfig.KeyEthNetmask, func(s *Settings) *string { return &s.EthNetmask })},
	{deviceconfig.KeyEthGateway, ipField(deviceconfig.KeyEthGateway, func(s *Settings) *string { return &s.EthGateway })},
	{deviceconfig.KeyWiFiEnabled, boolField(func(s *Settings) *bool { return &s.WiFiEnabled })},
	{deviceconfig.KeyWiFiSSID, textField(maxSSIDLength, ReplySSIDTooLong, func(s *Settings) *string { return &s.WiFiSSID })},
	{deviceconfig.KeyWiFiPass, textField(maxPassLength, ReplyPassTooLong, func(s *Settings) *string { return &s.WiFiPass })},
	{deviceconfig.KeyWiFiUseDHCP, boolField(func(s *Settings) *bool { return &s.WiFiUseDHCP })},
	{deviceconfig.KeyWiFiIP, ipField(deviceconfig.KeyWiFiIP, func(s *Settings) *string { return &s.WiFiIP })},
	{deviceconfig.KeyWiFiNetmask, ipField(deviceconfig.KeyWiFiNetmask, func(s *Settings) *string { return &s.WiFiNetmask })},
	{deviceconfig.KeyWiFiGateway, ipField(deviceconfig.KeyWiFiGateway, func(s *Settings) *string { return &s.WiFiGateway })},
	{deviceconfig.KeyCANBitrate, func(s *Settings, value string) error {
		n, err := strconv.Atoi(value)
		if err != nil || deviceconfig.ValidateBitrate(float64(n)) != nil {
			return reject(ReplyBadBitrate)
		}
		s.CANBitrate = n
		return nil
	}},
}

// ApplyForm returns a copy of s with the form applied.
// The first invalid field rejects the whole update.
func (s Settings) ApplyForm(form url.Values) (Settings, []string, error) {
	next := s
	var changed []string
	for _, f := range formFields {
		values, ok := form[f.key]
		if !ok || len(values) == 0 {
			continue
		}
		if err := f.set(&next, values[0]); err != nil {
			return s, nil, err
		}
		changed = append(changed, f.key)
	}
	return next, changed, nil
}

// Store holds the settings and persists them to a YAML file.
// An empty path keeps them in memory only.
type Store struct {
	mu       sync.RWMutex
	path     string
	settings Settings
}

// NewMemoryStore returns a store that never touches the disk.
func NewMemoryStore(initial Settings) *Store {
	return &Store{settings: initial}
}

// LoadStore opens the settings file at path.
// A missing file yields the factory settings.
func LoadStore(path string) (*Store, error) {
	s := &Store{path: path, settings: DefaultSettings()}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	if err := yaml.Unmarshal(data, &s.settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}
	return s, nil
}

// Path returns the backing file, or "" for a memory store.
func (s *Store) Path() string {
	return s.path
}

// Settings returns a copy of the current settings.
func (s *Store) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Apply validates the form, then stores and persists the result.
// Validation failures are *RejectError.
func (s *Store) Apply(form url.Values) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, changed, err := s.settings.ApplyForm(form)
	if err != nil {
		return nil, err
	}
	if err := s.write(next); err != nil {
		return nil, err
	}
	s.settings = next
	return changed, nil
}

// Reset restores the factory settings, like holding the adapter's button.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(DefaultSettings()); err != nil {
		return err
	}
	s.settings = DefaultSettings()
	return nil
}

func (s *Store) write(next Settings) error {
	if s.path == "" {
		return nil
	}

	data, err := yaml.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary settings file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save settings file: %w", err)
	}
	return nil
}

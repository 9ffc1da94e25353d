package config

import (
	"os"
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

	if configDir == "" {
		t.Error("GetConfigDir() returned empty string")
	}

	if !strings.Contains(configDir, "canbridge") {
		t.Errorf("GetConfigDir() = %v, should contain 'canbridge'", configDir)
	}

	switch runtime.GOOS {
	case "windows":
		if !strings.Contains(configDir, "AppData") && !strings.Contains(configDir, "Local") {
			t.Errorf("Windows config dir should contain 'AppData' or 'Local', got: %v", configDir)
		}
	case "darwin", "linux":
		if os.Getenv("XDG_CONFIG_HOME") == "" && !strings.Contains(configDir, ".config") {
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

	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}
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
		t.Fatal("NewRegistry().Preferences should not be nil")
	}

	p := reg.Preferences
	if p.TimeoutMS != 5000 || p.PollIntervalMS != 2000 || p.ReloadDelayMS != 2000 {
		t.Errorf("timing preferences = %d/%d/%d, want 5000/2000/2000", p.TimeoutMS, p.PollIntervalMS, p.ReloadDelayMS)
	}
	if p.DefaultPort != 80 {
		t.Errorf("DefaultPort = %v, want 80", p.DefaultPort)
	}
	if p.APIPrefix != "/api" {
		t.Errorf("APIPrefix = %v, want /api", p.APIPrefix)
	}
	if !p.AutoDiscover {
		t.Error("AutoDiscover should default to true")
	}
}

func TestRegistryEnsureDevice(t *testing.T) {
	reg := NewRegistry()

	device := reg.EnsureDevice("ESP32-socketcand")
	if device == nil {
		t.Fatal("EnsureDevice() returned nil")
	}

	again := reg.EnsureDevice("ESP32-socketcand")
	if device != again {
		t.Error("EnsureDevice() should return same device instance")
	}

	var empty Registry
	if empty.EnsureDevice("x") == nil {
		t.Error("EnsureDevice() on zero Registry returned nil")
	}
}

func TestRegistryUpdateDeviceLastSeen(t *testing.T) {
	reg := NewRegistry()
	before := time.Now()

	reg.UpdateDeviceLastSeen("ESP32-socketcand", "192.168.2.163")

	device := reg.GetDevice("ESP32-socketcand")
	if device == nil {
		t.Fatal("Device should exist after UpdateDeviceLastSeen")
	}
	if device.LastIP != "192.168.2.163" {
		t.Errorf("LastIP = %v, want 192.168.2.163", device.LastIP)
	}
	if device.LastSeen.Before(before) {
		t.Errorf("LastSeen = %v, should be after %v", device.LastSeen, before)
	}
}

func TestRegistrySetDeviceNickname(t *testing.T) {
	reg := NewRegistry()
	reg.SetDeviceNickname("ESP32-socketcand", "bench")

	if got := reg.GetDevice("ESP32-socketcand").Nickname; got != "bench" {
		t.Errorf("Nickname = %v, want bench", got)
	}
}

func TestRegistryRemoveDevice(t *testing.T) {
	reg := NewRegistry()
	reg.Remember("ESP32-socketcand", "192.168.2.163", nil)

	if !reg.RemoveDevice("ESP32-socketcand") {
		t.Error("RemoveDevice() = false, want true")
	}
	if reg.GetDevice("ESP32-socketcand") != nil {
		t.Error("device still present after RemoveDevice")
	}
	if reg.Preferences.LastDevice != "" {
		t.Errorf("LastDevice = %q, want cleared", reg.Preferences.LastDevice)
	}
	if reg.RemoveDevice("ESP32-socketcand") {
		t.Error("second RemoveDevice() = true, want false")
	}
}

func TestRegistryFindDevice(t *testing.T) {
	reg := NewRegistry()
	reg.SetDeviceNickname("ESP32-socketcand", "Bench")
	reg.EnsureDevice("other")

	tests := []struct {
		name    string
		query   string
		wantKey string
	}{
		{"exact key", "ESP32-socketcand", "ESP32-socketcand"},
		{"key case-insensitive", "esp32-SOCKETCAND", "ESP32-socketcand"},
		{"nickname", "bench", "ESP32-socketcand"},
		{"other", "other", "other"},
		{"unknown", "nothing", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, _ := reg.FindDevice(tt.query)
			if key != tt.wantKey {
				t.Errorf("FindDevice(%q) key = %q, want %q", tt.query, key, tt.wantKey)
			}
		})
	}
}

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry()
	reg.Devices["ESP32-socketcand"] = &Device{Nickname: "bench", LastIP: "192.168.2.163"}
	reg.Devices["lab"] = &Device{Host: "lab.local", Port: 8080, APIPrefix: "/v1", LastIP: "10.0.0.9"}
	reg.Devices["unaddressed"] = &Device{}

	tests := []struct {
		name   string
		query  string
		want   Target
		wantOK bool
	}{
		{
			name:   "nickname uses last IP and defaults",
			query:  "bench",
			want:   Target{Key: "ESP32-socketcand", Host: "192.168.2.163", Port: 80, APIPrefix: "/api"},
			wantOK: true,
		},
		{
			name:   "fixed host overrides",
			query:  "lab",
			want:   Target{Key: "lab", Host: "lab.local", Port: 8080, APIPrefix: "/v1"},
			wantOK: true,
		},
		{
			name:   "entry without address uses key",
			query:  "unaddressed",
			want:   Target{Key: "unaddressed", Host: "unaddressed", Port: 80, APIPrefix: "/api"},
			wantOK: true,
		},
		{
			name:   "bare IP",
			query:  "192.168.4.1",
			want:   Target{Host: "192.168.4.1", Port: 80, APIPrefix: "/api"},
			wantOK: true,
		},
		{
			name:   "host and port",
			query:  "127.0.0.1:8081",
			want:   Target{Host: "127.0.0.1", Port: 8081, APIPrefix: "/api"},
			wantOK: true,
		},
		{
			name:   "empty without last device",
			query:  "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := reg.Resolve(tt.query)
			if ok != tt.wantOK {
				t.Fatalf("Resolve(%q) ok = %v, want %v", tt.query, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %+v, want %+v", tt.query, got, tt.want)
			}
		})
	}

	reg.Preferences.LastDevice = "lab"
	if got, _ := reg.Resolve(""); got.Key != "lab" {
		t.Errorf("Resolve(\"\") = %+v, want last device", got)
	}
}

func TestTargetBaseURL(t *testing.T) {
	tests := []struct {
		target Target
		want   string
	}{
		{Target{Host: "192.168.2.163", Port: 80}, "http://192.168.2.163:80"},
		{Target{Host: "fe80::1", Port: 8080}, "http://[fe80::1]:8080"},
	}
	for _, tt := range tests {
		if got := tt.target.BaseURL(); got != tt.want {
			t.Errorf("BaseURL() = %v, want %v", got, tt.want)
		}
	}
}

func TestRegistryRemember(t *testing.T) {
	reg := NewRegistry()
	reg.Remember("ESP32-socketcand", "192.168.2.163", []string{"can0"})
	reg.Remember("ESP32-socketcand", "", nil)

	d := reg.GetDevice("ESP32-socketcand")
	if d.LastIP != "192.168.2.163" {
		t.Errorf("LastIP = %q, want kept when empty ip is remembered", d.LastIP)
	}
	if len(d.Buses) != 1 || d.Buses[0] != "can0" {
		t.Errorf("Buses = %v, want [can0]", d.Buses)
	}
	if reg.Preferences.LastDevice != "ESP32-socketcand" {
		t.Errorf("LastDevice = %q", reg.Preferences.LastDevice)
	}
}

func TestRegistrySaveAndLoad(t *testing.T) {
	testConfigPath := filepath.Join(t.TempDir(), "config.yaml")

	reg := NewRegistry()
	reg.SetDeviceNickname("ESP32-socketcand", "bench")
	reg.Remember("ESP32-socketcand", "192.168.2.163", []string{"can0"})
	reg.Preferences.PollIntervalMS = 500

	if err := reg.SaveTo(testConfigPath); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}
	if _, err := os.Stat(testConfigPath + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind after SaveTo")
	}

	data, err := os.ReadFile(testConfigPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.HasPrefix(string(data), "# canbridge configuration file") {
		t.Errorf("saved file missing header:\n%s", data)
	}

	loadedReg, err := loadRegistryFromFile(testConfigPath)
	if err != nil {
		t.Fatalf("Failed to load registry: %v", err)
	}

	device := loadedReg.GetDevice("ESP32-socketcand")
	if device == nil {
		t.Fatal("Device should exist in loaded registry")
	}
	if device.Nickname != "bench" {
		t.Errorf("Loaded nickname = %v, want bench", device.Nickname)
	}
	if device.LastIP != "192.168.2.163" {
		t.Errorf("Loaded LastIP = %v", device.LastIP)
	}
	if loadedReg.Preferences.PollIntervalMS != 500 {
		t.Errorf("Loaded PollIntervalMS = %v, want 500", loadedReg.Preferences.PollIntervalMS)
	}
	if loadedReg.Preferences.LastDevice != "ESP32-socketcand" {
		t.Errorf("Loaded LastDevice = %v", loadedReg.Preferences.LastDevice)
	}
}

func TestLoadRegistryFromFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file gives defaults", func(t *testing.T) {
		reg, err := loadRegistryFromFile(filepath.Join(dir, "absent.yaml"))
		if err != nil {
			t.Fatalf("loadRegistryFromFile() error = %v", err)
		}
		if reg.Version != 1 || reg.Preferences == nil {
			t.Errorf("registry = %+v, want defaults", reg)
		}
	})

	t.Run("wrong version", func(t *testing.T) {
		path := filepath.Join(dir, "v2.yaml")
		if err := os.WriteFile(path, []byte("version: 2\n"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := loadRegistryFromFile(path); err == nil {
			t.Error("loadRegistryFromFile() error = nil, want unsupported version")
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		if err := os.WriteFile(path, []byte("version: [\n"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := loadRegistryFromFile(path); err == nil {
			t.Error("loadRegistryFromFile() error = nil, want parse error")
		}
	})

	t.Run("sections filled in", func(t *testing.T) {
		path := filepath.Join(dir, "bare.yaml")
		if err := os.WriteFile(path, []byte("version: 1\n"), 0600); err != nil {
			t.Fatal(err)
		}
		reg, err := loadRegistryFromFile(path)
		if err != nil {
			t.Fatalf("loadRegistryFromFile() error = %v", err)
		}
		if reg.Devices == nil || reg.Preferences == nil {
			t.Errorf("registry = %+v, want maps and preferences initialised", reg)
		}
	})
}

func BenchmarkGetConfigDir(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = GetConfigDir()
	}
}

func BenchmarkResolve(b *testing.B) {
	reg := NewRegistry()
	reg.SetDeviceNickname("ESP32-socketcand", "bench")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = reg.Resolve("bench")
	}
}

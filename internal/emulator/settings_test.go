package emulator

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/muurk/canbridge/internal/deviceconfig"
)

func TestDefaultSettings_Record(t *testing.T) {
	rec := DefaultSettings().Record()

	for _, key := range deviceconfig.KnownKeys {
		if _, ok := rec[key]; !ok {
			t.Errorf("Record() missing key %q", key)
		}
	}
	if rec[deviceconfig.KeyWiFiPass] != MaskedPassword {
		t.Errorf("wifi_pass = %v, want %q", rec[deviceconfig.KeyWiFiPass], MaskedPassword)
	}
	if rec[deviceconfig.KeyCANBitrate] != float64(500) {
		t.Errorf("can_bitrate = %v (%T), want float64 500", rec[deviceconfig.KeyCANBitrate], rec[deviceconfig.KeyCANBitrate])
	}
	if rec[deviceconfig.KeyEthIP] != "192.168.2.163" {
		t.Errorf("eth_ip = %v", rec[deviceconfig.KeyEthIP])
	}
}

func TestSettings_ApplyForm(t *testing.T) {
	tests := []struct {
		name      string
		form      string
		wantReply string
		check     func(t *testing.T, s Settings)
	}{
		{
			name: "bitrate only",
			form: "can_bitrate=250",
			check: func(t *testing.T, s Settings) {
				if s.CANBitrate != 250 {
					t.Errorf("CANBitrate = %d, want 250", s.CANBitrate)
				}
				if s.EthIP != "192.168.2.163" {
					t.Errorf("EthIP changed to %q", s.EthIP)
				}
			},
		},
		{
			name: "wifi block",
			form: "wifi_enabled=TRUE&wifi_ssid=office&wifi_pass=s3cret-pass&wifi_use_dhcp=false&wifi_ip=10.0.0.9",
			check: func(t *testing.T, s Settings) {
				if !s.WiFiEnabled || s.WiFiUseDHCP {
					t.Errorf("wifi flags = %v/%v", s.WiFiEnabled, s.WiFiUseDHCP)
				}
				if s.WiFiSSID != "office" || s.WiFiPass != "s3cret-pass" || s.WiFiIP != "10.0.0.9" {
					t.Errorf("settings = %+v", s)
				}
			},
		},
		{
			name: "unknown keys ignored",
			form: "hostname=bench&eth_gw=192.168.2.254",
			check: func(t *testing.T, s Settings) {
				if s.EthGateway != "192.168.2.254" {
					t.Errorf("EthGateway = %q", s.EthGateway)
				}
			},
		},
		{name: "bad bitrate", form: "can_bitrate=333", wantReply: ReplyBadBitrate},
		{name: "non numeric bitrate", form: "can_bitrate=fast", wantReply: ReplyBadBitrate},
		{name: "bad ip", form: "eth_ip=192.168.2", wantReply: ReplyBadIP},
		{
			name: "non true bool is false",
			form: "wifi_enabled=Truely&wifi_use_dhcp=maybe",
			check: func(t *testing.T, s Settings) {
				if !s.WiFiEnabled {
					t.Error("WiFiEnabled = false for \"Truely\"")
				}
				if s.WiFiUseDHCP {
					t.Error("WiFiUseDHCP = true for \"maybe\"")
				}
			},
		},
		{name: "long ssid", form: "wifi_ssid=" + strings.Repeat("x", 33), wantReply: ReplySSIDTooLong},
		{name: "long pass", form: "wifi_pass=" + strings.Repeat("x", 65), wantReply: ReplyPassTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form, err := url.ParseQuery(tt.form)
			if err != nil {
				t.Fatalf("ParseQuery() error = %v", err)
			}

			before := DefaultSettings()
			got, _, err := before.ApplyForm(form)

			if tt.wantReply != "" {
				var rej *RejectError
				if !errors.As(err, &rej) {
					t.Fatalf("ApplyForm() error = %v, want RejectError", err)
				}
				if rej.Reply != tt.wantReply {
					t.Errorf("Reply = %q, want %q", rej.Reply, tt.wantReply)
				}
				if got != before {
					t.Errorf("rejected form changed settings: %+v", got)
				}
				return
			}

			if err != nil {
				t.Fatalf("ApplyForm() error = %v", err)
			}
			tt.check(t, got)
		})
	}
}

func TestSettings_ApplyFormRejectsWholeUpdate(t *testing.T) {
	form := url.Values{
		"eth_ip":      {"10.1.1.1"},
		"can_bitrate": {"7"},
	}
	s := DefaultSettings()
	got, changed, err := s.ApplyForm(form)
	if err == nil {
		t.Fatal("ApplyForm() error = nil, want rejection")
	}
	if got.EthIP != s.EthIP || changed != nil {
		t.Errorf("partial update applied: %+v %v", got, changed)
	}
}

func TestStore_PersistsToYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "adapter.yaml")

	store, err := LoadStore(path)
	if err != nil {
		t.Fatalf("LoadStore() error = %v", err)
	}
	if store.Settings() != DefaultSettings() {
		t.Errorf("missing file should give factory settings, got %+v", store.Settings())
	}

	changed, err := store.Apply(url.Values{"can_bitrate": {"1000"}, "wifi_ssid": {"lab"}})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(changed) != 2 {
		t.Errorf("changed = %v, want 2 keys", changed)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "can_bitrate: 1000") {
		t.Errorf("state file missing bitrate:\n%s", data)
	}

	reopened, err := LoadStore(path)
	if err != nil {
		t.Fatalf("LoadStore() error = %v", err)
	}
	if got := reopened.Settings(); got.CANBitrate != 1000 || got.WiFiSSID != "lab" {
		t.Errorf("reopened settings = %+v", got)
	}

	if err := reopened.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if reopened.Settings() != DefaultSettings() {
		t.Errorf("Reset() settings = %+v", reopened.Settings())
	}
}

func TestStore_RejectedApplyKeepsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adapter.yaml")
	store, _ := LoadStore(path)

	if _, err := store.Apply(url.Values{"eth_ip": {"nope"}}); err == nil {
		t.Fatal("Apply() error = nil, want rejection")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("rejected Apply() wrote the state file")
	}
}

func TestLoadStore_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("can_bitrate: [\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadStore(path); err == nil {
		t.Error("LoadStore() error = nil, want parse error")
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore(DefaultSettings())
	if store.Path() != "" {
		t.Errorf("Path() = %q, want empty", store.Path())
	}
	if _, err := store.Apply(url.Values{"eth_use_dhcp": {"true"}}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !store.Settings().EthUseDHCP {
		t.Error("EthUseDHCP not applied")
	}
}

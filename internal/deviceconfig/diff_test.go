package deviceconfig

import (
	"encoding/json"
	"reflect"
	"testing"
)

func factoryRecord(t *testing.T) ConfigRecord {
	t.Helper()
	rec, err := ParseConfigRecord([]byte(factoryConfigResponse))
	if err != nil {
		t.Fatalf("ParseConfigRecord() error = %v", err)
	}
	return rec
}

func TestDiff(t *testing.T) {
	tests := []struct {
		name   string
		modify func(w ConfigRecord)
		want   ConfigRecord
	}{
		{
			name:   "unmodified record is empty",
			modify: func(w ConfigRecord) {},
			want:   ConfigRecord{},
		},
		{
			name:   "changed string",
			modify: func(w ConfigRecord) { w[KeyWiFiSSID] = "office" },
			want:   ConfigRecord{KeyWiFiSSID: "office"},
		},
		{
			name:   "changed bool",
			modify: func(w ConfigRecord) { w[KeyWiFiEnabled] = true },
			want:   ConfigRecord{KeyWiFiEnabled: true},
		},
		{
			name:   "changed number",
			modify: func(w ConfigRecord) { w[KeyCANBitrate] = 250.0 },
			want:   ConfigRecord{KeyCANBitrate: 250.0},
		},
		{
			name:   "bool set to false is sent",
			modify: func(w ConfigRecord) { w[KeyWiFiUseDHCP] = false },
			want:   ConfigRecord{KeyWiFiUseDHCP: false},
		},
		{
			name:   "cleared string is not sent",
			modify: func(w ConfigRecord) { w[KeyEthGateway] = "" },
			want:   ConfigRecord{},
		},
		{
			name:   "nil value is not sent",
			modify: func(w ConfigRecord) { w[KeyEthIP] = nil },
			want:   ConfigRecord{},
		},
		{
			name:   "type change counts as a change",
			modify: func(w ConfigRecord) { w[KeyCANBitrate] = "500" },
			want:   ConfigRecord{KeyCANBitrate: "500"},
		},
		{
			name:   "key absent from original is sent",
			modify: func(w ConfigRecord) { w["hostname"] = "bench-1" },
			want:   ConfigRecord{"hostname": "bench-1"},
		},
		{
			name: "set back to original value",
			modify: func(w ConfigRecord) {
				w[KeyWiFiSSID] = "temp"
				w[KeyWiFiSSID] = "ssid_changeme"
			},
			want: ConfigRecord{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := factoryRecord(t)
			working := original.Clone()
			tt.modify(working)

			got := Diff(original, working)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Diff() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDiff_OnlyNonBlankChangedFields(t *testing.T) {
	original := factoryRecord(t)
	working := original.Clone()
	working[KeyWiFiSSID] = "office"
	working[KeyWiFiPass] = ""
	working[KeyEthUseDHCP] = true

	diff := Diff(original, working)
	for k, v := range diff {
		if isBlank(v) {
			t.Errorf("Diff() contains blank value for %s", k)
		}
		if ValuesEqual(v, original[k]) {
			t.Errorf("Diff() contains unchanged value for %s", k)
		}
		if !ValuesEqual(v, working[k]) {
			t.Errorf("Diff()[%s] = %v, want working value %v", k, v, working[k])
		}
	}
	if len(diff) != 2 {
		t.Errorf("Diff() has %d fields, want 2: %v", len(diff), diff)
	}
}

func TestTrimStrings(t *testing.T) {
	rec := ConfigRecord{
		KeyWiFiSSID:   "  office ",
		KeyEthIP:      "\t10.0.0.2\n",
		KeyCANBitrate: 500.0,
		KeyEthUseDHCP: true,
		KeyWiFiIP:     nil,
	}
	TrimStrings(rec)

	want := ConfigRecord{
		KeyWiFiSSID:   "office",
		KeyEthIP:      "10.0.0.2",
		KeyCANBitrate: 500.0,
		KeyEthUseDHCP: true,
		KeyWiFiIP:     nil,
	}
	if !reflect.DeepEqual(rec, want) {
		t.Errorf("TrimStrings() = %v, want %v", rec, want)
	}
}

func TestTrimmedEqualValueIsNotSent(t *testing.T) {
	original := factoryRecord(t)
	working := original.Clone()
	working[KeyWiFiSSID] = "  ssid_changeme  "

	TrimStrings(working)
	if d := Diff(original, working); len(d) != 0 {
		t.Errorf("Diff() = %v, want empty after trimming", d)
	}
}

func TestClearedFields(t *testing.T) {
	original := factoryRecord(t)
	working := original.Clone()
	working[KeyEthGateway] = ""
	working[KeyEthIP] = nil
	working[KeyWiFiIP] = "" // already blank in the original

	want := []string{KeyEthGateway, KeyEthIP}
	if got := ClearedFields(original, working); !reflect.DeepEqual(got, want) {
		t.Errorf("ClearedFields() = %v, want %v", got, want)
	}
}

func TestValuesEqual(t *testing.T) {
	tests := []struct {
		a, b any
		want bool
	}{
		{"x", "x", true},
		{"1", 1.0, false},
		{true, true, true},
		{true, "true", false},
		{500.0, 500.0, true},
		{500, 500.0, true},
		{500.0, 500, true},
		{json.Number("500"), 500.0, true},
		{250, 500.0, false},
		{500, "500", false},
		{nil, nil, true},
		{nil, "", false},
	}

	for _, tt := range tests {
		if got := ValuesEqual(tt.a, tt.b); got != tt.want {
			t.Errorf("ValuesEqual(%#v, %#v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestFormData(t *testing.T) {
	diff := ConfigRecord{KeyWiFiSSID: "office"}
	if got := diff.FormData().Encode(); got != "wifi_ssid=office" {
		t.Errorf("FormData().Encode() = %q, want wifi_ssid=office", got)
	}

	diff = ConfigRecord{KeyWiFiEnabled: true, KeyCANBitrate: 250.0, KeyWiFiSSID: "a b&c"}
	want := "can_bitrate=250&wifi_enabled=true&wifi_ssid=a+b%26c"
	if got := diff.FormData().Encode(); got != want {
		t.Errorf("FormData().Encode() = %q, want %q", got, want)
	}
}

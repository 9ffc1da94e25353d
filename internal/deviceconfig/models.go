package deviceconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Configuration keys served by GET /api/config.
const (
	KeyEthUseDHCP  = "eth_use_dhcp"
	KeyEthIP       = "eth_ip"
	KeyEthNetmask  = "eth_netmask"
	KeyEthGateway  = "eth_gw"
	KeyWiFiEnabled = "wifi_enabled"
	KeyWiFiSSID    = "wifi_ssid"
	KeyWiFiPass    = "wifi_pass"
	KeyWiFiUseDHCP = "wifi_use_dhcp"
	KeyWiFiIP      = "wifi_ip"
	KeyWiFiNetmask = "wifi_netmask"
	KeyWiFiGateway = "wifi_gw"
	KeyCANBitrate  = "can_bitrate"
)

// KnownKeys lists the keys every adapter is expected to return, in display order.
var KnownKeys = []string{
	KeyEthUseDHCP, KeyEthIP, KeyEthNetmask, KeyEthGateway,
	KeyWiFiEnabled, KeyWiFiSSID, KeyWiFiPass, KeyWiFiUseDHCP,
	KeyWiFiIP, KeyWiFiNetmask, KeyWiFiGateway,
	KeyCANBitrate,
}

// PlaceholderText is shown in string fields until the first fetch completes.
const PlaceholderText = "loading..."

// ConfigRecord is the flat settings object exchanged with the adapter.
//
// Values are whatever encoding/json produces for a primitive: bool, string,
// float64 or nil. The key set is exactly what the server returned.
type ConfigRecord map[string]any

// PlaceholderRecord returns the record displayed before any configuration
// has been fetched.
func PlaceholderRecord() ConfigRecord {
	return ConfigRecord{
		KeyEthUseDHCP:  false,
		KeyEthIP:       PlaceholderText,
		KeyEthNetmask:  PlaceholderText,
		KeyEthGateway:  PlaceholderText,
		KeyWiFiEnabled: false,
		KeyWiFiSSID:    PlaceholderText,
		KeyWiFiPass:    "",
		KeyWiFiUseDHCP: false,
		KeyWiFiIP:      PlaceholderText,
		KeyWiFiNetmask: PlaceholderText,
		KeyWiFiGateway: PlaceholderText,
		KeyCANBitrate:  float64(0),
	}
}

// ParseConfigRecord decodes a JSON object into a ConfigRecord.
// Each call returns a freshly allocated record.
func ParseConfigRecord(data []byte) (ConfigRecord, error) {
	var rec ConfigRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("configuration is null, expected a JSON object")
	}
	return rec, nil
}

// Clone returns an independent copy of the record.
// Values are primitives, so a shallow copy is sufficient.
func (r ConfigRecord) Clone() ConfigRecord {
	if r == nil {
		return nil
	}
	out := make(ConfigRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Keys returns the record's keys with known keys first, in KnownKeys order,
// followed by any extra keys sorted alphabetically.
func (r ConfigRecord) Keys() []string {
	keys := make([]string, 0, len(r))
	seen := make(map[string]bool, len(r))
	for _, k := range KnownKeys {
		if _, ok := r[k]; ok {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	var extra []string
	for k := range r {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(keys, extra...)
}

// MissingKeys returns the known keys absent from the record.
func (r ConfigRecord) MissingKeys() []string {
	var missing []string
	for _, k := range KnownKeys {
		if _, ok := r[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}

// String returns the string value for key, or "" if absent or not a string.
func (r ConfigRecord) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// Bool returns the boolean value for key, or false if absent or not a bool.
func (r ConfigRecord) Bool(key string) bool {
	b, _ := r[key].(bool)
	return b
}

// Number returns the numeric value for key, or 0 if absent or not a number.
func (r ConfigRecord) Number(key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	}
	return 0
}

// CoerceValue converts user text into the type of current.
// Booleans accept the strconv.ParseBool spellings plus on/off and yes/no.
func CoerceValue(current any, raw string) (any, error) {
	switch current.(type) {
	case bool:
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "on", "yes", "y", "enabled":
			return true, nil
		case "off", "no", "n", "disabled":
			return false, nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("expected true or false, got %q", raw)
		}
		return b, nil
	case float64, int, json.Number:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("expected a number, got %q", raw)
		}
		return f, nil
	default:
		return raw, nil
	}
}

// FormatValue renders a value the way a browser form would serialize it.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case json.Number:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// StatusSnapshot is the opaque status document returned by GET /api/status.
type StatusSnapshot struct {
	// Raw is the body exactly as received
	Raw json.RawMessage

	// Value is the decoded document (object, array or primitive)
	Value any
}

// ParseStatusSnapshot validates and decodes a status body.
func ParseStatusSnapshot(data []byte) (*StatusSnapshot, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	raw := make(json.RawMessage, len(data))
	copy(raw, data)
	return &StatusSnapshot{Raw: raw, Value: v}, nil
}

// Indented returns the snapshot pretty-printed with two-space indentation.
func (s *StatusSnapshot) Indented() string {
	if s == nil {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, s.Raw, "", "  "); err != nil {
		return string(s.Raw)
	}
	return buf.String()
}

// SubmitResponse is the adapter's reply to a configuration POST.
type SubmitResponse struct {
	StatusCode int
	Body       string
}

// OK reports whether the adapter accepted the update (any 2xx status).
// The adapter restarts after accepting new settings.
func (r *SubmitResponse) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

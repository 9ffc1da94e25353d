package deviceconfig

import (
	"fmt"
	"sort"
	"strings"
)

// FieldLabels maps configuration keys to display labels.
var FieldLabels = map[string]string{
	KeyEthUseDHCP:  "Use DHCP",
	KeyEthIP:       "IP Address",
	KeyEthNetmask:  "Netmask",
	KeyEthGateway:  "Gateway",
	KeyWiFiEnabled: "Enabled",
	KeyWiFiSSID:    "SSID",
	KeyWiFiPass:    "Password",
	KeyWiFiUseDHCP: "Use DHCP",
	KeyWiFiIP:      "IP Address",
	KeyWiFiNetmask: "Netmask",
	KeyWiFiGateway: "Gateway",
	KeyCANBitrate:  "Bitrate",
}

// Section groups related configuration keys for display.
type Section struct {
	Title string
	Keys  []string
}

// Sections is the display grouping used by every formatter.
var Sections = []Section{
	{Title: "Ethernet", Keys: []string{KeyEthUseDHCP, KeyEthIP, KeyEthNetmask, KeyEthGateway}},
	{Title: "Wi-Fi", Keys: []string{KeyWiFiEnabled, KeyWiFiSSID, KeyWiFiPass, KeyWiFiUseDHCP, KeyWiFiIP, KeyWiFiNetmask, KeyWiFiGateway}},
	{Title: "CAN", Keys: []string{KeyCANBitrate}},
}

// Label returns the display label for key, falling back to the key itself.
func Label(key string) string {
	if l, ok := FieldLabels[key]; ok {
		return l
	}
	return key
}

// DisplayValue renders a value for humans: booleans as Yes/No, the CAN
// bitrate with its unit, passwords masked.
func DisplayValue(key string, v any) string {
	if key == KeyWiFiPass {
		if s, _ := v.(string); s == "" {
			return "(not set)"
		}
		return "********"
	}
	switch val := v.(type) {
	case nil:
		return "(null)"
	case bool:
		if val {
			return "Yes"
		}
		return "No"
	case float64:
		if key == KeyCANBitrate {
			return fmt.Sprintf("%s kbit/s", FormatValue(val))
		}
	}
	return FormatValue(v)
}

// FormatCompact returns one line per section
func (r ConfigRecord) FormatCompact() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Ethernet: dhcp=%v ip=%s mask=%s gw=%s\n",
		r.Bool(KeyEthUseDHCP), r.String(KeyEthIP), r.String(KeyEthNetmask), r.String(KeyEthGateway)))
	b.WriteString(fmt.Sprintf("Wi-Fi:    enabled=%v ssid=%q dhcp=%v ip=%s mask=%s gw=%s\n",
		r.Bool(KeyWiFiEnabled), r.String(KeyWiFiSSID), r.Bool(KeyWiFiUseDHCP),
		r.String(KeyWiFiIP), r.String(KeyWiFiNetmask), r.String(KeyWiFiGateway)))
	b.WriteString(fmt.Sprintf("CAN:      bitrate=%s kbit/s\n", FormatValue(r[KeyCANBitrate])))

	return b.String()
}

// FormatDetailed returns a comprehensive formatted string with all configuration details
func (r ConfigRecord) FormatDetailed() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString("╔════════════════════════════════════════════════════════════════╗\n")
	b.WriteString("║              CAN ADAPTER NETWORK CONFIGURATION                 ║\n")
	b.WriteString("╚════════════════════════════════════════════════════════════════╝\n")

	shown := make(map[string]bool)
	for _, sec := range Sections {
		b.WriteString(fmt.Sprintf("\n=== %s ===\n", sec.Title))
		for _, k := range sec.Keys {
			shown[k] = true
			v, ok := r[k]
			if !ok {
				b.WriteString(fmt.Sprintf("%-12s (missing)\n", Label(k)+":"))
				continue
			}
			b.WriteString(fmt.Sprintf("%-12s %s\n", Label(k)+":", DisplayValue(k, v)))
		}
	}

	var extra []string
	for k := range r {
		if !shown[k] {
			extra = append(extra, k)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		b.WriteString("\n=== Other ===\n")
		for _, k := range extra {
			b.WriteString(fmt.Sprintf("%s: %s\n", k, DisplayValue(k, r[k])))
		}
	}

	return b.String()
}

// FormatChanges returns the fields of a diff with their old and new values.
func FormatChanges(original, diff ConfigRecord) string {
	var b strings.Builder

	b.WriteString("=== Configuration Changes ===\n")

	if len(diff) == 0 {
		b.WriteString("(no changes)\n")
		return b.String()
	}

	for _, k := range diff.Keys() {
		old := "(unset)"
		if v, ok := original[k]; ok {
			old = DisplayValue(k, v)
		}
		b.WriteString(fmt.Sprintf("  %-14s %s → %s\n", k+":", old, DisplayValue(k, diff[k])))
	}

	return b.String()
}

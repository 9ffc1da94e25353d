package deviceconfig

import (
	"fmt"
	"net"
	"strings"
)

// SupportedBitrates lists the CAN bus speeds (kbit/s) the adapter's driver
// can be configured for.
var SupportedBitrates = []int{25, 50, 100, 125, 250, 500, 800, 1000}

// ValidateBitrate checks a CAN bitrate in kbit/s.
func ValidateBitrate(kbps float64) error {
	for _, b := range SupportedBitrates {
		if float64(b) == kbps {
			return nil
		}
	}
	return NewValidationError(fmt.Sprintf("unsupported CAN bitrate %s (supported: %s)",
		FormatValue(kbps), bitrateList()))
}

func bitrateList() string {
	parts := make([]string, len(SupportedBitrates))
	for i, b := range SupportedBitrates {
		parts[i] = fmt.Sprint(b)
	}
	return strings.Join(parts, ", ")
}

// ValidateIPv4 checks a dotted-quad address.
func ValidateIPv4(field, value string) error {
	ip := net.ParseIP(value)
	if ip == nil || ip.To4() == nil {
		return NewValidationError(fmt.Sprintf("%s: %q is not an IPv4 address", field, value))
	}
	return nil
}

// ValidateNetmask checks a dotted-quad netmask with contiguous leading ones.
func ValidateNetmask(field, value string) error {
	if err := ValidateIPv4(field, value); err != nil {
		return err
	}
	mask := net.IPMask(net.ParseIP(value).To4())
	if ones, bits := mask.Size(); ones == 0 && bits == 0 {
		return NewValidationError(fmt.Sprintf("%s: %q is not a valid netmask", field, value))
	}
	return nil
}

// ValidateWiFiSSID validates a WiFi SSID.
// SSIDs must be non-empty and <= 32 bytes.
func ValidateWiFiSSID(ssid string) error {
	if ssid == "" {
		return NewValidationError("WiFi SSID cannot be empty")
	}
	if len(ssid) > 32 {
		return NewValidationError(fmt.Sprintf("WiFi SSID too long (max 32 chars): %d chars", len(ssid)))
	}
	return nil
}

// ValidateWiFiPassword validates a WPA2 passphrase: 8-63 characters.
func ValidateWiFiPassword(password string) error {
	if len(password) < 8 {
		return NewValidationError(fmt.Sprintf("WPA2 password too short (min 8 chars): %d chars", len(password)))
	}
	if len(password) > 63 {
		return NewValidationError(fmt.Sprintf("WPA2 password too long (max 63 chars): %d chars", len(password)))
	}
	return nil
}

// ValidateField checks a single typed value against the rules for key.
// Unknown keys are accepted as-is.
func ValidateField(key string, value any) error {
	switch key {
	case KeyEthUseDHCP, KeyWiFiEnabled, KeyWiFiUseDHCP:
		if _, ok := value.(bool); !ok {
			return NewValidationError(fmt.Sprintf("%s must be true or false", key))
		}
	case KeyEthIP, KeyEthGateway, KeyWiFiIP, KeyWiFiGateway:
		return ValidateIPv4(key, fmt.Sprint(value))
	case KeyEthNetmask, KeyWiFiNetmask:
		return ValidateNetmask(key, fmt.Sprint(value))
	case KeyWiFiSSID:
		return ValidateWiFiSSID(fmt.Sprint(value))
	case KeyWiFiPass:
		return ValidateWiFiPassword(fmt.Sprint(value))
	case KeyCANBitrate:
		f, ok := value.(float64)
		if !ok {
			return NewValidationError(fmt.Sprintf("%s must be a number", key))
		}
		return ValidateBitrate(f)
	}
	return nil
}

// ValidateChanges validates every field of a diff, then checks the merged
// result for combinations the adapter would not come up with.
// Returns a slice of validation errors (empty if valid).
func ValidateChanges(original, diff ConfigRecord) []error {
	var errs []error

	for _, k := range diff.Keys() {
		if err := ValidateField(k, diff[k]); err != nil {
			errs = append(errs, err)
		}
	}

	merged := original.Clone()
	if merged == nil {
		merged = make(ConfigRecord)
	}
	for k, v := range diff {
		merged[k] = v
	}
	errs = append(errs, CheckLogicalConflicts(merged)...)

	return errs
}

// CheckLogicalConflicts checks for settings that are valid individually but
// problematic together.
func CheckLogicalConflicts(rec ConfigRecord) []error {
	var conflicts []error

	if rec.Bool(KeyWiFiEnabled) && rec.String(KeyWiFiSSID) == "" {
		conflicts = append(conflicts, NewValidationError(
			"warning: Wi-Fi is enabled but no SSID is set",
		))
	}

	if !rec.Bool(KeyEthUseDHCP) && !rec.Bool(KeyWiFiEnabled) {
		ip := rec.String(KeyEthIP)
		gw := rec.String(KeyEthGateway)
		mask := rec.String(KeyEthNetmask)
		if !sameSubnet(ip, gw, mask) {
			conflicts = append(conflicts, NewValidationError(
				fmt.Sprintf("warning: gateway %s is outside the %s/%s subnet", gw, ip, mask),
			))
		}
	}

	return conflicts
}

// sameSubnet reports whether ip and gw share the network defined by mask.
// Unparseable input is treated as a match so only real conflicts warn.
func sameSubnet(ip, gw, mask string) bool {
	a := net.ParseIP(ip).To4()
	b := net.ParseIP(gw).To4()
	m := net.ParseIP(mask).To4()
	if a == nil || b == nil || m == nil {
		return true
	}
	im := net.IPMask(m)
	return a.Mask(im).Equal(b.Mask(im))
}

// FormatValidationErrors formats a slice of validation errors into a user-friendly message.
func FormatValidationErrors(errors []error) string {
	if len(errors) == 0 {
		return "No validation errors"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Configuration validation failed with %d error(s):\n", len(errors)))

	for i, err := range errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}

	return sb.String()
}

// IsWarning checks if a validation error is a warning (non-fatal).
// Warnings have error messages starting with "warning:".
func IsWarning(err error) bool {
	if devErr, ok := err.(*DeviceError); ok {
		return strings.HasPrefix(devErr.Message, "warning:")
	}
	return strings.Contains(err.Error(), "warning:")
}

// SeparateWarningsAndErrors splits validation results into warnings and
// errors that should stop the update.
func SeparateWarningsAndErrors(errors []error) (warnings []error, criticalErrors []error) {
	for _, err := range errors {
		if IsWarning(err) {
			warnings = append(warnings, err)
		} else {
			criticalErrors = append(criticalErrors, err)
		}
	}
	return warnings, criticalErrors
}

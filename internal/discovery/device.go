package discovery

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Source records how an adapter was found.
type Source string

const (
	SourceBeacon Source = "beacon"
	SourceMDNS   Source = "mdns"
)

// Device represents a discovered CAN adapter on the network
type Device struct {
	// Name is the advertised adapter name (e.g., "ESP32-socketcand")
	Name string

	// Type is the beacon type attribute, normally "adapter"
	Type string

	// Description is a free-form description from the beacon
	Description string

	// Hostname is the mDNS hostname, empty for beacon-only devices
	Hostname string

	// IP is the adapter address (e.g., "192.168.2.163")
	IP string

	// Port is the HTTP port of the configuration API (typically 80)
	Port int

	// CANURLs are the socketcand endpoints (e.g., "can://192.168.2.163:9999")
	CANURLs []string

	// Buses are the CAN bus names exposed by the adapter (e.g., "can0")
	Buses []string

	// Sources lists every mechanism that reported this adapter
	Sources []Source

	// Metadata contains mDNS TXT record data
	Metadata map[string]string

	// DiscoveredAt is when the device was first seen
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	name := d.Name
	if name == "" {
		name = d.Hostname
	}
	if name == "" {
		name = "CAN adapter"
	}
	return fmt.Sprintf("%s at %s", name, net.JoinHostPort(d.IP, strconv.Itoa(d.Port)))
}

// BaseURL returns the HTTP base URL for the device
func (d *Device) BaseURL() string {
	return "http://" + net.JoinHostPort(d.IP, strconv.Itoa(d.Port))
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (d *Device) GetMetadata(key string) string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata[key]
}

// HasSource reports whether src reported this device.
func (d *Device) HasSource(src Source) bool {
	for _, s := range d.Sources {
		if s == src {
			return true
		}
	}
	return false
}

// SourceLabel joins the sources for display, e.g. "beacon+mdns".
func (d *Device) SourceLabel() string {
	parts := make([]string, len(d.Sources))
	for i, s := range d.Sources {
		parts[i] = string(s)
	}
	return strings.Join(parts, "+")
}

// merge folds other (same IP) into d, keeping the earliest timestamp and
// filling fields d does not have yet.
func (d *Device) merge(other *Device) {
	if d.Name == "" {
		d.Name = other.Name
	}
	if d.Type == "" {
		d.Type = other.Type
	}
	if d.Description == "" {
		d.Description = other.Description
	}
	if d.Hostname == "" {
		d.Hostname = other.Hostname
	}
	if other.Port != 0 && other.HasSource(SourceMDNS) {
		d.Port = other.Port
	}
	d.CANURLs = appendUnique(d.CANURLs, other.CANURLs...)
	d.Buses = appendUnique(d.Buses, other.Buses...)
	for _, s := range other.Sources {
		if !d.HasSource(s) {
			d.Sources = append(d.Sources, s)
		}
	}
	if len(other.Metadata) > 0 {
		if d.Metadata == nil {
			d.Metadata = make(map[string]string, len(other.Metadata))
		}
		for k, v := range other.Metadata {
			if _, ok := d.Metadata[k]; !ok {
				d.Metadata[k] = v
			}
		}
	}
	if !other.DiscoveredAt.IsZero() && other.DiscoveredAt.Before(d.DiscoveredAt) {
		d.DiscoveredAt = other.DiscoveredAt
	}
}

func appendUnique(list []string, items ...string) []string {
	for _, it := range items {
		found := false
		for _, l := range list {
			if l == it {
				found = true
				break
			}
		}
		if !found {
			list = append(list, it)
		}
	}
	return list
}

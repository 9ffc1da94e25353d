package config

import (
	"net"
	"strconv"
	"time"
)

// Target is a fully resolved adapter address.
type Target struct {
	Key       string // Registry key, empty when the name was not found
	Host      string
	Port      int
	APIPrefix string
}

// BaseURL returns the http URL of the adapter web server.
func (t Target) BaseURL() string {
	return "http://" + net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// Resolve turns a --device argument into a Target.
//
// name may be a registry key, a nickname, a hostname, an IP or "host:port".
// An empty name falls back to Preferences.LastDevice. Ports and prefixes
// come from the device entry first, then the preferences.
func (r *Registry) Resolve(name string) (Target, bool) {
	prefs := r.Prefs()

	if name == "" {
		name = prefs.LastDevice
	}
	if name == "" {
		return Target{}, false
	}

	t := Target{Port: prefs.DefaultPort, APIPrefix: prefs.APIPrefix}
	if t.Port == 0 {
		t.Port = DefaultPort
	}
	if t.APIPrefix == "" {
		t.APIPrefix = DefaultAPIPrefix
	}

	if key, d := r.FindDevice(name); d != nil {
		t.Key = key
		t.Host = d.Address()
		if t.Host == "" {
			t.Host = key
		}
		if d.Port != 0 {
			t.Port = d.Port
		}
		if d.APIPrefix != "" {
			t.APIPrefix = d.APIPrefix
		}
		return t, true
	}

	t.Host = name
	if host, port, err := net.SplitHostPort(name); err == nil {
		if p, err := strconv.Atoi(port); err == nil {
			t.Host = host
			t.Port = p
		}
	}
	return t, true
}

// Remember records a successful connection to host under key and marks it
// as the last used adapter.
func (r *Registry) Remember(key, ip string, buses []string) {
	device := r.EnsureDevice(key)
	device.LastSeen = time.Now()
	if ip != "" {
		device.LastIP = ip
	}
	if len(buses) > 0 {
		device.Buses = append([]string(nil), buses...)
	}
	r.Prefs().LastDevice = key
}

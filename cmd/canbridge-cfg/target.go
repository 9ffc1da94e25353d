package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/canbridge/internal/config"
	"github.com/muurk/canbridge/internal/deviceconfig"
	"github.com/muurk/canbridge/internal/discovery"
	"github.com/muurk/canbridge/internal/logging"
	"github.com/muurk/canbridge/internal/session"
	"github.com/muurk/canbridge/internal/ui"
)

// Flags shared by every adapter command (persistent on root)
var (
	deviceName     string
	devicePort     int
	apiPrefix      string
	timeoutMS      int
	pollIntervalMS int
	reloadDelayMS  int
	logLevel       string
	configPath     string
)

// registry is loaded once per run by setup
var registry *config.Registry

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&deviceName, "device", "", "Adapter name, nickname, IP or host:port (skips discovery)")
	pf.IntVar(&devicePort, "port", config.DefaultPort, "Adapter HTTP port")
	pf.StringVar(&apiPrefix, "api-prefix", config.DefaultAPIPrefix, "Path prefix of the adapter API")
	pf.IntVar(&timeoutMS, "timeout-ms", config.DefaultTimeoutMS, "Request deadline in milliseconds (0 = none)")
	pf.IntVar(&pollIntervalMS, "poll-interval-ms", config.DefaultPollIntervalMS, "Status poll interval in milliseconds (0 = once)")
	pf.IntVar(&reloadDelayMS, "reload-delay-ms", config.DefaultReloadDelayMS, "Wait after an accepted save before reloading, in milliseconds")
	pf.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when unset")
	pf.StringVar(&configPath, "config", "", "Registry file (default: the user config directory)")
}

// setup loads the registry and initializes logging before any command runs.
func setup(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	registry = reg

	level := logLevel
	if level == "" {
		level = reg.Prefs().LogLevel
	}

	// The console owns the terminal; its logs only go to CANBRIDGE_LOG_FILE
	opts := logging.Options{Level: level, NoConsole: cmd == rootCmd || cmd == wizardCmd}
	if err := logging.InitializeWithOptions(opts); err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	return nil
}

func loadRegistry() (*config.Registry, error) {
	var (
		reg *config.Registry
		err error
	)
	if configPath != "" {
		reg, err = config.LoadRegistryFile(configPath)
	} else {
		reg, err = config.LoadRegistry()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return reg, nil
}

// saveRegistry writes the registry back. Failures are logged, not fatal.
func saveRegistry() {
	var err error
	if configPath != "" {
		err = registry.SaveTo(configPath)
	} else {
		err = registry.Save()
	}
	if err != nil {
		logging.Warn("Couldn't save config", zap.Error(err))
	}
}

// sessionOptions merges the preferences with any timing flags given.
func sessionOptions(cmd *cobra.Command) session.Options {
	prefs := registry.Prefs()
	t, p, r := prefs.TimeoutMS, prefs.PollIntervalMS, prefs.ReloadDelayMS

	flags := cmd.Flags()
	if flags.Changed("timeout-ms") {
		t = timeoutMS
	}
	if flags.Changed("poll-interval-ms") {
		p = pollIntervalMS
	}
	if flags.Changed("reload-delay-ms") {
		r = reloadDelayMS
	}
	return session.OptionsFromMillis(t, p, r)
}

// newScanner builds a scanner from the discovery preferences.
// A zero timeout uses the preferred discovery timeout.
func newScanner(timeout time.Duration) *discovery.Scanner {
	prefs := registry.Prefs()

	s := discovery.NewScanner()
	switch {
	case timeout > 0:
		s.Timeout = timeout
	case prefs.DiscoverTimeout > 0:
		s.Timeout = time.Duration(prefs.DiscoverTimeout) * time.Second
	}
	if prefs.BeaconPort != 0 {
		s.BeaconPort = prefs.BeaconPort
	}
	s.DisableBeacon = prefs.DisableBeacons
	s.DisableMDNS = prefs.DisableMDNS
	return s
}

// resolveTarget finds the adapter a command should talk to: --device (a
// registry key, nickname or address), then the last adapter used, then a
// discovery scan when exactly one adapter answers.
func resolveTarget(ctx context.Context, cmd *cobra.Command) (config.Target, error) {
	t, ok := registry.Resolve(deviceName)
	switch {
	case !ok:
		var err error
		t, err = discoverTarget(ctx, cmd.ErrOrStderr())
		if err != nil {
			return config.Target{}, err
		}
	case t.Key == "" && isAdapterName(deviceName) && registry.Prefs().AutoDiscover:
		if found, ok := findByName(ctx, newScanner(0), deviceName, cmd.ErrOrStderr()); ok {
			t = found
		}
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		t.Port = devicePort
	}
	if flags.Changed("api-prefix") {
		t.APIPrefix = apiPrefix
	}
	return t, nil
}

func discoverTarget(ctx context.Context, out io.Writer) (config.Target, error) {
	prefs := registry.Prefs()
	if !prefs.AutoDiscover {
		return config.Target{}, fmt.Errorf("no adapter specified. Use --device or enable auto_discover in the config file")
	}

	scanner := newScanner(0)
	fmt.Fprintf(out, "No adapter specified, scanning for %s...\n", scanner.Timeout)

	devices, err := scanner.ScanForDevicesWithContext(ctx)
	if err != nil {
		return config.Target{}, fmt.Errorf("discovery failed: %w", err)
	}

	switch len(devices) {
	case 0:
		return config.Target{}, fmt.Errorf("no adapters found. Use --device to specify one")
	case 1:
	default:
		fmt.Fprintf(out, "Found %d adapters:\n", len(devices))
		for i, d := range devices {
			fmt.Fprintf(out, "%d. %s\n", i+1, d)
		}
		return config.Target{}, fmt.Errorf("multiple adapters found. Use --device to specify which one")
	}

	d := devices[0]
	fmt.Fprintf(out, "Found adapter: %s\n\n", d)
	return targetFromDevice(d, prefs), nil
}

// isAdapterName reports whether name looks like an announced adapter name
// ("ESP32-socketcand") rather than an IP, host:port or DNS name.
func isAdapterName(name string) bool {
	if name == "" || strings.EqualFold(name, "localhost") || net.ParseIP(name) != nil {
		return false
	}
	return !strings.ContainsAny(name, ".:")
}

// findByName looks an adapter up by its announced name. It reports false
// when nothing with that name answers before the scan timeout, leaving the
// name to be resolved as a hostname.
func findByName(ctx context.Context, scanner *discovery.Scanner, name string, out io.Writer) (config.Target, bool) {
	fmt.Fprintf(out, "%s is not in the registry, looking for it for up to %s...\n", name, scanner.Timeout)

	d, err := scanner.WaitForDeviceWithContext(ctx, name)
	if err != nil {
		logging.Debug("Adapter lookup failed", zap.String("name", name), zap.Error(err))
		return config.Target{}, false
	}

	fmt.Fprintf(out, "Found adapter: %s\n\n", d)
	return targetFromDevice(d, registry.Prefs()), true
}

func targetFromDevice(d *discovery.Device, prefs *config.Preferences) config.Target {
	t := config.Target{
		Key:       d.Name,
		Host:      d.IP,
		Port:      d.Port,
		APIPrefix: prefs.APIPrefix,
	}
	if t.Port == 0 {
		t.Port = prefs.DefaultPort
	}
	if t.Port == 0 {
		t.Port = config.DefaultPort
	}
	if t.APIPrefix == "" {
		t.APIPrefix = config.DefaultAPIPrefix
	}
	return t
}

// newClient creates an adapter client for t.
func newClient(t config.Target, opts session.Options) *deviceconfig.Client {
	client := deviceconfig.NewClient(t.Host, t.Port)
	client.SetAPIPrefix(t.APIPrefix)
	client.SetTimeout(opts.Timeout)
	return client
}

// rememberTarget records a successful exchange with t in the registry.
func rememberTarget(t config.Target, buses []string) {
	key := t.Key
	if key == "" {
		key = t.Host
	}
	registry.Remember(key, t.Host, buses)

	prefs := registry.Prefs()
	if d := registry.GetDevice(key); d != nil {
		if t.Port != prefs.DefaultPort {
			d.Port = t.Port
		}
		if t.APIPrefix != prefs.APIPrefix {
			d.APIPrefix = t.APIPrefix
		}
	}
	saveRegistry()
}

// targetParams are the header lines describing an adapter.
func targetParams(t config.Target) []ui.Param {
	name := t.Key
	if name == "" {
		name = t.Host
	}
	return []ui.Param{
		{Key: "Adapter", Value: name},
		{Key: "URL", Value: t.BaseURL() + t.APIPrefix},
	}
}

// commandLine reconstructs the invocation for display in headers.
func commandLine(cmd *cobra.Command, args []string) string {
	return strings.TrimSpace(cmd.CommandPath() + " " + strings.Join(args, " "))
}

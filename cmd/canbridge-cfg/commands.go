package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/canbridge/internal/deviceconfig"
	"github.com/muurk/canbridge/internal/discovery"
	"github.com/muurk/canbridge/internal/logging"
	"github.com/muurk/canbridge/internal/session"
	"github.com/muurk/canbridge/internal/ui"
	"github.com/muurk/canbridge/internal/wizard/tui"
)

// Command flags
var (
	scanTimeout  int
	scanSave     bool
	statusFormat string
	showFormat   string
	watchStatus  bool
	assumeYes    bool
	noVerify     bool
	verbose      bool
)

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(wizardCmd)
}

// statusCmd prints the adapter's status document
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show adapter status",
	Long: `Display the live status document of an adapter: uptime, network
interfaces, CAN driver state and traffic counters.

With --watch the status is fetched every --poll-interval-ms until interrupted.
A failed fetch keeps the last status and is retried on the next poll.`,
	Example: `  # Show status once
  canbridge-cfg status --device 192.168.2.163

  # Follow status every second
  canbridge-cfg status --watch --poll-interval-ms 1000

  # Raw JSON for scripting
  canbridge-cfg status --format json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Keep polling until interrupted")
	statusCmd.Flags().StringVar(&statusFormat, "format", "detailed", "Output format (detailed, json)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	target, err := resolveTarget(ctx, cmd)
	if err != nil {
		return err
	}

	opts := sessionOptions(cmd)
	if !watchStatus {
		opts.PollInterval = 0
	} else if opts.PollInterval <= 0 {
		opts.PollInterval = session.DefaultPollInterval
	}
	poller := session.NewStatusPoller(newClient(target, opts), opts)

	out := cmd.OutOrStdout()
	p := ui.NewPrinter(out)
	jsonOut := statusFormat == "json"

	if !watchStatus {
		if err := poller.FetchUpdate(ctx); err != nil {
			if !jsonOut {
				printDeviceError(p, "Status unavailable", err)
			}
			return err
		}
		rememberTarget(target, nil)

		snap := poller.Snapshot()
		if jsonOut {
			fmt.Fprintln(out, snap.Indented())
			return nil
		}
		p.PrintHeader("Adapter Status", commandLine(cmd, args), targetParams(target)...)
		p.PrintOutput("Status", snap.Indented())
		return nil
	}

	if !jsonOut {
		params := append(targetParams(target), ui.Param{Key: "Interval", Value: opts.PollInterval.String()})
		p.PrintHeader("Adapter Status", commandLine(cmd, args), params...)
	}

	changed := make(chan struct{}, 1)
	poller.SetOnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	poller.Start(ctx)
	defer poller.Stop()

	remembered := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			st := poller.Status()
			if st.Message == "" && !remembered {
				rememberTarget(target, nil)
				remembered = true
			}
			printWatchUpdate(p, st, jsonOut)
		}
	}
}

// printWatchUpdate prints one poll result. In JSON mode failures only go to
// the log so stdout stays a stream of documents.
func printWatchUpdate(p *ui.Printer, st session.PollerStatus, jsonOut bool) {
	if jsonOut {
		if st.Message == "" && st.Snapshot != nil {
			p.Println(string(st.Snapshot.Raw))
		}
		return
	}

	stamp := st.LastAttempt.Format("15:04:05")
	if st.Message != "" {
		line := fmt.Sprintf("%s  %s  %s", stamp, ui.WarningMarker, st.Message)
		if !st.LastSuccess.IsZero() {
			line += fmt.Sprintf(" (last status %s ago)", time.Since(st.LastSuccess).Round(time.Second))
		}
		p.Println(line)
		return
	}
	if st.Snapshot != nil {
		p.PrintOutput("Status at "+stamp, st.Snapshot.Indented())
	}
}

// showCmd displays the adapter configuration
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show adapter configuration",
	Long: `Display the current configuration of an adapter.

This command connects to the adapter and retrieves its Ethernet, Wi-Fi and
CAN settings. The Wi-Fi passphrase is never shown.`,
	Example: `  # Show config of the last used adapter
  canbridge-cfg show

  # Show config for a specific adapter
  canbridge-cfg show --device 192.168.2.163

  # Compact output format
  canbridge-cfg show --device bench --format compact

  # JSON output for scripting
  canbridge-cfg show --device 192.168.2.163 --format json`,
	RunE: runShow,
}

func init() {
	showCmd.Flags().StringVar(&showFormat, "format", "detailed", "Output format (detailed, compact, json)")
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	target, err := resolveTarget(ctx, cmd)
	if err != nil {
		return err
	}

	client := newClient(target, sessionOptions(cmd))
	out := cmd.OutOrStdout()

	if showFormat != "json" {
		fmt.Fprintf(out, "Fetching configuration from %s...\n\n", client.ConfigURL())
	}

	rec, err := client.GetConfiguration(ctx)
	if err != nil {
		return fmt.Errorf("failed to get configuration: %w", err)
	}
	rememberTarget(target, nil)

	missing := rec.MissingKeys()
	if len(missing) > 0 {
		logging.Warn("Adapter configuration is missing fields", zap.Strings("fields", missing))
	}

	// Display configuration based on format
	switch showFormat {
	case "compact":
		fmt.Fprintln(out, rec.FormatCompact())
	case "json":
		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(out, string(data))
	case "detailed":
		fallthrough
	default:
		fmt.Fprintln(out, rec.FormatDetailed())
	}

	// JSON output stays machine readable
	if len(missing) > 0 && showFormat != "json" {
		ui.NewPrinter(out).PrintWarning("Configuration incomplete",
			ui.Param{Key: "Missing", Value: strings.Join(missing, ", ")},
			ui.Param{Key: "Note", Value: "Older firmware may not report every setting"},
		)
	}

	return nil
}

// setCmd edits settings and submits the changed fields
var setCmd = &cobra.Command{
	Use:   "set <key=value>...",
	Short: "Change adapter settings",
	Long: `Change one or more settings without using the console.

The current configuration is fetched first; only values that differ from it
are sent. Values are trimmed, and booleans accept true/false. After the
adapter accepts the update it restarts, and the configuration is fetched
again to verify it.

Clearing a setting (key=) is not supported by the adapter and is never sent.

Settings:
  eth_use_dhcp, eth_ip, eth_netmask, eth_gw
  wifi_enabled, wifi_ssid, wifi_pass, wifi_use_dhcp, wifi_ip, wifi_netmask, wifi_gw
  can_bitrate (kbit/s: 25, 50, 100, 125, 250, 500, 800, 1000)`,
	Example: `  # Change the CAN bitrate
  canbridge-cfg set can_bitrate=250 --device 192.168.2.163

  # Join a Wi-Fi network with DHCP, without the confirmation prompt
  canbridge-cfg set wifi_enabled=true wifi_ssid=workshop wifi_pass=secret --yes

  # Static Ethernet address
  canbridge-cfg set eth_use_dhcp=false eth_ip=192.168.2.50 eth_gw=192.168.2.1`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSet,
}

func init() {
	setCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Apply without asking for confirmation")
	setCmd.Flags().BoolVar(&noVerify, "no-verify", false, "Skip re-fetching the configuration after the adapter restarts")
	setCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show the adapter's raw reply")
}

// assignment is one key=value argument
type assignment struct {
	Key   string
	Value string
}

// parseAssignments splits key=value arguments. Values may contain '='.
func parseAssignments(args []string) ([]assignment, error) {
	seen := make(map[string]bool)
	out := make([]assignment, 0, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid argument %q (expected key=value)", arg)
		}
		if seen[key] {
			return nil, fmt.Errorf("%s is set more than once", key)
		}
		seen[key] = true
		out = append(out, assignment{Key: key, Value: value})
	}
	return out, nil
}

// changeLines describes each field of diff for the confirmation box.
func changeLines(original, diff deviceconfig.ConfigRecord) []string {
	lines := make([]string, 0, len(diff))
	for _, k := range diff.Keys() {
		old := "(unset)"
		if v, ok := original[k]; ok {
			old = deviceconfig.DisplayValue(k, v)
		}
		lines = append(lines, fmt.Sprintf("%s: %s → %s", k, old, deviceconfig.DisplayValue(k, diff[k])))
	}
	return lines
}

// unverifiable fields are reported masked or move the adapter
var unverifiable = map[string]bool{
	deviceconfig.KeyWiFiPass: true,
}

// verifyApplied lists the sent fields the adapter reports differently.
func verifyApplied(sent, fetched deviceconfig.ConfigRecord) []string {
	var mismatches []string
	for _, k := range sent.Keys() {
		if unverifiable[k] {
			continue
		}
		if !deviceconfig.ValuesEqual(sent[k], fetched[k]) {
			mismatches = append(mismatches, fmt.Sprintf("%s: sent %s, adapter reports %s",
				k, deviceconfig.FormatValue(sent[k]), deviceconfig.FormatValue(fetched[k])))
		}
	}
	return mismatches
}

// movesAdapter reports whether diff may change the adapter's address.
func movesAdapter(diff deviceconfig.ConfigRecord) bool {
	for _, k := range []string{deviceconfig.KeyEthUseDHCP, deviceconfig.KeyEthIP, deviceconfig.KeyWiFiEnabled, deviceconfig.KeyWiFiUseDHCP, deviceconfig.KeyWiFiIP} {
		if _, ok := diff[k]; ok {
			return true
		}
	}
	return false
}

func runSet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	changes, err := parseAssignments(args)
	if err != nil {
		return err
	}

	target, err := resolveTarget(ctx, cmd)
	if err != nil {
		return err
	}

	opts := sessionOptions(cmd)
	editor := session.NewConfigEditor(newClient(target, opts), opts)
	defer editor.Close()

	reloaded := make(chan error, 1)
	editor.SetReloadFunc(func(ctx context.Context) {
		reloaded <- editor.FetchUpdate(ctx)
	})

	out := cmd.OutOrStdout()
	width := ui.GetTerminalWidth()

	params := append(targetParams(target), ui.Param{Key: "Changes", Value: fmt.Sprintf("%d field(s)", len(changes))})
	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "Apply Settings",
		Command: commandLine(cmd, args),
		Params:  params,
		StepNames: []string{
			"Fetch configuration",
			"Apply changes",
			"Confirm",
			"Submit changes",
			"Verify after restart",
		},
		Verbose: verbose,
		Output:  out,
		Width:   width,
	})

	err = runner.Run(ctx, func(ctx context.Context, onStep ui.StepCallback) ([]ui.Param, error) {
		onStep(1, "", ui.StepRunning, "")
		if err := editor.Initialize(ctx); err != nil {
			onStep(1, "", ui.StepFailed, deviceconfig.GetShortErrorMessage(err))
			return nil, err
		}
		onStep(1, "", ui.StepComplete, "")

		// Step 2: edit the working copy
		working := editor.Working()
		for _, c := range changes {
			if _, ok := working[c.Key]; !ok {
				onStep(2, "", ui.StepFailed, c.Key)
				return nil, deviceconfig.NewValidationError(fmt.Sprintf("unknown setting %q", c.Key))
			}
			if err := editor.SetString(c.Key, c.Value); err != nil {
				onStep(2, "", ui.StepFailed, c.Key)
				return nil, deviceconfig.NewValidationError(err.Error())
			}
		}

		original := editor.Original()
		diff := editor.PendingChanges()
		if len(diff) == 0 {
			onStep(2, "", ui.StepComplete, "no changes")
			for n := 3; n <= 5; n++ {
				onStep(n, "", ui.StepSkipped, "")
			}
			// Submit makes no request for an empty diff
			if _, err := editor.Submit(ctx); err != nil {
				return nil, err
			}
			return []ui.Param{{Key: "Result", Value: editor.Message()}}, nil
		}

		lines := changeLines(original, diff)
		trimmed := editor.Working()
		deviceconfig.TrimStrings(trimmed)
		for _, k := range deviceconfig.ClearedFields(original, trimmed) {
			lines = append(lines, fmt.Sprintf("%s: cleared values are not sent", k))
		}
		// Advisory only: the adapter has the final say
		warnings := deviceconfig.ValidateChanges(original, diff)
		for _, w := range warnings {
			lines = append(lines, ui.WarningMarker+" "+deviceconfig.GetShortErrorMessage(w))
		}
		note := fmt.Sprintf("%d to send", len(diff))
		if len(warnings) > 0 {
			note += fmt.Sprintf(", %d warning(s)", len(warnings))
		}
		onStep(2, "", ui.StepComplete, note)

		// Step 3: confirmation
		if assumeYes {
			onStep(3, "", ui.StepComplete, "--yes")
		} else {
			if !ui.ConfirmSubmit(cmd.InOrStdin(), out, width, lines) {
				onStep(3, "", ui.StepSkipped, "declined")
				return nil, ui.ErrCanceled
			}
			onStep(3, "", ui.StepComplete, "")
		}

		// Step 4: submit
		onStep(4, "", ui.StepRunning, "")
		res, err := editor.Submit(ctx)
		if err != nil {
			onStep(4, "", ui.StepFailed, deviceconfig.GetShortErrorMessage(err))
			return nil, err
		}
		runner.SetReply(res.Response.Body)
		if !res.Response.OK() {
			onStep(4, "", ui.StepFailed, fmt.Sprintf("HTTP %d", res.Response.StatusCode))
			return nil, deviceconfig.NewHTTPError(res.Response.StatusCode, res.Response.Body)
		}
		onStep(4, "", ui.StepComplete, fmt.Sprintf("HTTP %d", res.Response.StatusCode))

		details := []ui.Param{
			{Key: "Sent", Value: strings.Join(res.Sent.Keys(), ", ")},
			{Key: "Reply", Value: res.Response.Body},
		}
		if len(res.Cleared) > 0 {
			details = append(details, ui.Param{Key: "Not sent", Value: strings.Join(res.Cleared, ", ")})
		}

		// Step 5: wait for the restart and re-fetch
		if noVerify || !res.ReloadScheduled {
			onStep(5, "", ui.StepSkipped, "")
			return details, nil
		}

		onStep(5, "", ui.StepRunning, fmt.Sprintf("waiting %s", opts.ReloadDelay))
		var reloadErr error
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case reloadErr = <-reloaded:
		}

		if reloadErr != nil {
			msg := "adapter not reachable after restart"
			if movesAdapter(res.Sent) {
				msg = "adapter may have moved to a new address"
			}
			onStep(5, "", ui.StepSkipped, msg)
			return append(details, ui.Param{Key: "Verified", Value: "no"}), nil
		}

		if mismatches := verifyApplied(res.Sent, editor.Original()); len(mismatches) > 0 {
			onStep(5, "", ui.StepFailed, fmt.Sprintf("%d mismatch(es)", len(mismatches)))
			return nil, deviceconfig.NewValidationError("adapter reports different values: " + strings.Join(mismatches, "; "))
		}
		onStep(5, "", ui.StepComplete, "")
		return append(details, ui.Param{Key: "Verified", Value: "yes"}), nil
	})

	if errors.Is(err, ui.ErrCanceled) {
		return nil
	}
	if err == nil {
		rememberTarget(target, nil)
	}
	return err
}

// scanCmd discovers adapters on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for CAN adapters on the network",
	Long: `Scan for adapters by listening for CANBeacon broadcasts (UDP 42000) and
browsing mDNS for _http._tcp services with device=socketcand.

Adapters already in the registry get their last known address updated.
With --save every adapter found is added to the registry.`,
	Example: `  # Scan using the configured timeout (5 seconds by default)
  canbridge-cfg scan

  # Longer scan, remembering every adapter found
  canbridge-cfg scan --timeout 15 --save`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 0, "Scan timeout in seconds (0 = configured default)")
	scanCmd.Flags().BoolVar(&scanSave, "save", false, "Add every adapter found to the registry")
}

// deviceKey is the registry key for a discovered adapter.
func deviceKey(d *discovery.Device) string {
	if d.Name != "" {
		return d.Name
	}
	return d.IP
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	scanner := newScanner(time.Duration(scanTimeout) * time.Second)

	var sources []string
	if !scanner.DisableBeacon {
		sources = append(sources, fmt.Sprintf("CANBeacon (UDP %d)", scanner.BeaconPort))
	}
	if !scanner.DisableMDNS {
		sources = append(sources, "mDNS")
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader("Adapter Scan", commandLine(cmd, args),
		ui.Param{Key: "Timeout", Value: scanner.Timeout.String()},
		ui.Param{Key: "Sources", Value: strings.Join(sources, ", ")},
	)
	p.PrintPleaseWait("Listening for adapters", fmt.Sprintf("up to %s", scanner.Timeout))

	devices, err := scanner.ScanForDevicesWithContext(ctx)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(devices) == 0 {
		p.PrintError("No adapters found", errors.New("nothing answered within "+scanner.Timeout.String()), []string{
			"Ensure the adapter is powered on and its Ethernet or Wi-Fi link is up",
			"Beacons are broadcast; they do not cross routers or VLANs",
			"Check that your firewall allows UDP 42000 and mDNS (UDP 5353)",
			"Try increasing --timeout for slower networks",
			"Use --device to specify the address if discovery fails",
		})
		return nil
	}

	p.PrintOutput(fmt.Sprintf("Found %d adapter(s)", len(devices)), formatDevices(devices))

	if n := rememberDevices(devices, scanSave); n > 0 {
		saveRegistry()
		if scanSave {
			p.PrintSuccess("Registry updated", ui.Param{Key: "Adapters", Value: fmt.Sprintf("%d saved", n)})
		}
	}

	p.Println("Use 'canbridge-cfg show --device <name>' to view an adapter's configuration")
	p.Println("Use 'canbridge-cfg' for the interactive console")
	return nil
}

func formatDevices(devices []*discovery.Device) string {
	var b strings.Builder
	for i, d := range devices {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, deviceKey(d))
		fmt.Fprintf(&b, "   Address: %s\n", d.BaseURL())
		if len(d.Buses) > 0 {
			fmt.Fprintf(&b, "   Buses:   %s\n", strings.Join(d.Buses, ", "))
		}
		for _, u := range d.CANURLs {
			fmt.Fprintf(&b, "   CAN:     %s\n", u)
		}
		fmt.Fprintf(&b, "   Found:   %s\n", d.SourceLabel())
	}
	return strings.TrimRight(b.String(), "\n")
}

// rememberDevices refreshes the registry entries of found adapters. Unknown
// adapters are added only when all is set. Returns the number of entries
// touched.
func rememberDevices(devices []*discovery.Device, all bool) int {
	n := 0
	for _, d := range devices {
		key := deviceKey(d)
		if registry.GetDevice(key) == nil && !all {
			continue
		}
		registry.UpdateDeviceLastSeen(key, d.IP)
		entry := registry.GetDevice(key)
		if len(d.Buses) > 0 {
			entry.Buses = append([]string(nil), d.Buses...)
		}
		if d.Port != 0 && d.Port != registry.Prefs().DefaultPort {
			entry.Port = d.Port
		}
		n++
	}
	return n
}

// wizardCmd launches the interactive console
var wizardCmd = &cobra.Command{
	Use:     "wizard",
	Aliases: []string{"console"},
	Short:   "Launch the interactive console",
	Long: `Launch a full-screen console for adapter configuration.

The console provides:
- Discovery of adapters, listing saved adapters first
- A live status pane refreshed every --poll-interval-ms
- A settings form; only modified fields are submitted
- Automatic reload once the adapter has restarted

This is the recommended way to configure adapters for most users.
Logs are written only to CANBRIDGE_LOG_FILE while the console runs.`,
	Example: `  # Launch the console with discovery
  canbridge-cfg wizard
  # Or simply (wizard is default):
  canbridge-cfg

  # Open a specific adapter directly
  canbridge-cfg wizard --device 192.168.2.163
  canbridge-cfg --device bench`,
	RunE: runWizard,
}

// knownDevices lists registry entries with an address as console cards.
func knownDevices() []*discovery.Device {
	prefs := registry.Prefs()
	var out []*discovery.Device
	for _, key := range registry.DeviceKeys() {
		entry := registry.Devices[key]
		addr := entry.Address()
		if addr == "" {
			continue
		}
		port := entry.Port
		if port == 0 {
			port = prefs.DefaultPort
		}
		d := &discovery.Device{
			Name:         key,
			IP:           addr,
			Port:         port,
			Buses:        append([]string(nil), entry.Buses...),
			DiscoveredAt: entry.LastSeen,
			Metadata:     map[string]string{},
		}
		if entry.Nickname != "" {
			d.Metadata["nickname"] = entry.Nickname
		}
		out = append(out, d)
	}
	return out
}

func wizardConfig(cmd *cobra.Command) tui.Config {
	prefs := registry.Prefs()

	cfg := tui.Config{
		Scanner:     newScanner(0),
		Known:       knownDevices(),
		Options:     sessionOptions(cmd),
		APIPrefix:   prefs.APIPrefix,
		DefaultPort: prefs.DefaultPort,
	}
	if cmd.Flags().Changed("api-prefix") || cfg.APIPrefix == "" {
		cfg.APIPrefix = apiPrefix
	}
	if cmd.Flags().Changed("port") || cfg.DefaultPort == 0 {
		cfg.DefaultPort = devicePort
	}

	cfg.OnConnect = func(d *discovery.Device) {
		key := deviceKey(d)
		registry.Remember(key, d.IP, d.Buses)
		if d.Port != cfg.DefaultPort {
			registry.EnsureDevice(key).Port = d.Port
		}
		saveRegistry()
	}

	if deviceName != "" {
		t, _ := registry.Resolve(deviceName)
		if cmd.Flags().Changed("port") {
			t.Port = devicePort
		}
		if cmd.Flags().Changed("api-prefix") {
			t.APIPrefix = apiPrefix
		}
		name := t.Key
		if name == "" {
			name = t.Host
		}
		cfg.Start = &discovery.Device{Name: name, IP: t.Host, Port: t.Port, DiscoveredAt: time.Now()}
		cfg.APIPrefix = t.APIPrefix
	}
	return cfg
}

func runWizard(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := wizardConfig(cmd)

	logging.Info("Starting console",
		zap.Int("known_devices", len(cfg.Known)),
		zap.Bool("direct", cfg.Start != nil),
	)

	if err := tui.Run(ctx, cfg); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("console error: %w", err)
	}
	return nil
}

// printDeviceError renders err with its troubleshooting hints.
func printDeviceError(p *ui.Printer, title string, err error) {
	p.PrintError(title, errors.New(deviceconfig.GetShortErrorMessage(err)),
		ui.TroubleshootingFor(deviceconfig.GetTroubleshootingHint(err)))
}

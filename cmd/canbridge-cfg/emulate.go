package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/muurk/canbridge/internal/emulator"
	"github.com/muurk/canbridge/internal/logging"
	"github.com/muurk/canbridge/internal/ui"
)

// Emulator flags
var (
	emuListen       string
	emuStateFile    string
	emuName         string
	emuBuses        []string
	emuBeacon       bool
	emuBeaconTarget string
	emuMDNS         bool
	emuRestartMS    int
	emuHeartbeatMS  int
)

func init() {
	d := emulator.DefaultConfig()

	f := emulateCmd.Flags()
	f.StringVar(&emuListen, "listen", d.Listen, "Address of the emulated web server")
	f.StringVar(&emuStateFile, "state-file", "", "YAML file holding the settings (default: in memory)")
	f.StringVar(&emuName, "name", d.Name, "Adapter name announced in beacons and mDNS")
	f.StringSliceVar(&emuBuses, "bus", d.Buses, "CAN bus names announced in beacons")
	f.BoolVar(&emuBeacon, "beacon", false, "Broadcast CANBeacons every 2 seconds")
	f.StringVar(&emuBeaconTarget, "beacon-target", "", "Beacon broadcast address (default 255.255.255.255:42000)")
	f.BoolVar(&emuMDNS, "mdns", false, "Register an mDNS service for discovery")
	f.IntVar(&emuRestartMS, "restart-delay-ms", int(d.RestartDelay/time.Millisecond), "Downtime after accepting new settings")
	f.IntVar(&emuHeartbeatMS, "heartbeat-ms", int(d.Heartbeat/time.Millisecond), "OpenCyphal heartbeat counter period (0 = none)")

	rootCmd.AddCommand(emulateCmd)
}

// emulateCmd runs a software adapter
var emulateCmd = &cobra.Command{
	Use:   "emulate",
	Short: "Run an emulated adapter",
	Long: `Serve the adapter's /api/status and /api/config endpoints from this machine.

The emulator validates posted settings the way the firmware does, restarts
briefly after accepting them, and can announce itself with CANBeacons and
mDNS so 'scan' and the console find it. Use --state-file to keep settings
across runs.`,
	Example: `  # Emulator on port 8080 with settings in memory
  canbridge-cfg emulate

  # Discoverable emulator keeping its settings
  canbridge-cfg emulate --listen :8080 --state-file adapter.yaml --beacon --mdns

  # Talk to it
  canbridge-cfg show --device 127.0.0.1:8080`,
	RunE: runEmulate,
}

func emulatorConfig(cmd *cobra.Command) emulator.Config {
	cfg := emulator.DefaultConfig()
	cfg.Listen = emuListen
	cfg.StatePath = emuStateFile
	cfg.Name = emuName
	cfg.Buses = emuBuses
	cfg.Beacon = emuBeacon
	cfg.BeaconTarget = emuBeaconTarget
	cfg.MDNS = emuMDNS
	cfg.RestartDelay = time.Duration(emuRestartMS) * time.Millisecond
	cfg.Heartbeat = time.Duration(emuHeartbeatMS) * time.Millisecond
	if cmd.Flags().Changed("api-prefix") {
		cfg.APIPrefix = apiPrefix
	}
	return cfg
}

func runEmulate(cmd *cobra.Command, args []string) error {
	if !logging.GetLogger().Core().Enabled(zapcore.DebugLevel) {
		gin.SetMode(gin.ReleaseMode)
	}

	cfg := emulatorConfig(cmd)

	store, err := emulator.LoadStore(cfg.StatePath)
	if err != nil {
		return err
	}

	stateDesc := "in memory"
	if cfg.StatePath != "" {
		stateDesc = cfg.StatePath
	}
	var announce []string
	if cfg.Beacon {
		announce = append(announce, "CANBeacon")
	}
	if cfg.MDNS {
		announce = append(announce, "mDNS")
	}
	if len(announce) == 0 {
		announce = append(announce, "off")
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader("Adapter Emulator", commandLine(cmd, args),
		ui.Param{Key: "Listen", Value: cfg.Listen},
		ui.Param{Key: "API", Value: cfg.APIPrefix},
		ui.Param{Key: "Name", Value: cfg.Name},
		ui.Param{Key: "Buses", Value: strings.Join(cfg.Buses, ", ")},
		ui.Param{Key: "Settings", Value: stateDesc},
		ui.Param{Key: "Announce", Value: strings.Join(announce, ", ")},
	)
	p.Println(fmt.Sprintf("Serving until interrupted (Ctrl+C). Try: canbridge-cfg status --device %s", emulatorHint(cfg.Listen)))

	return emulator.New(cfg, store).Run(cmd.Context())
}

// emulatorHint turns a listen address into something --device accepts.
func emulatorHint(listen string) string {
	if strings.HasPrefix(listen, ":") {
		return "127.0.0.1" + listen
	}
	return listen
}

// Package emulator serves the adapter web API from the host, so canbridge can
// be used and tested without an ESP32 on the bench.
//
// The emulated endpoints behave like the firmware:
//   - GET {prefix}/status returns the status report (uptime, network
//     interfaces, CAN driver, socketcand and OpenCyphal counters), plus a
//     section about the machine running the emulator.
//   - GET {prefix}/config returns the settings with the Wi-Fi passphrase
//     masked as "******".
//   - POST {prefix}/config accepts form-encoded fields, validates them and
//     replies "Updating settings..." (200) or a reason (500). Accepted
//     settings are saved and the emulator answers 503 for RestartDelay, as
//     the adapter does while it reboots.
//
// Settings persist to a YAML file when a state path is given.
//
// # Discovery
//
// With Beacon enabled the emulator broadcasts CANBeacons like the firmware.
// Beacons carry no HTTP port, so an emulator on a port other than 80 is best
// found through mDNS, which advertises the actual port.
//
// # Usage Example
//
//	store, err := emulator.LoadStore("adapter.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	cfg := emulator.DefaultConfig()
//	cfg.MDNS = true
//	srv := emulator.New(cfg, store)
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package emulator

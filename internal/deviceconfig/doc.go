// Package deviceconfig provides an HTTP client for the CAN adapter's JSON API.
//
// The adapter serves two documents under a configurable prefix (default
// "/api"):
//   - GET  <prefix>/status  an opaque JSON status snapshot
//   - GET  <prefix>/config  a flat JSON object of network and bus settings
//   - POST <prefix>/config  form-encoded settings; the adapter restarts on success
//
// # Configuration Record
//
// ConfigRecord is a plain map so that keys the client does not know about
// survive a read-modify-write cycle. Typed accessors and the Key* constants
// cover the settings every firmware build exposes:
//   - Ethernet: DHCP flag, static IP, netmask, gateway
//   - Wi-Fi: enable flag, SSID, passphrase, DHCP flag, static IP, netmask, gateway
//   - CAN: bus bitrate in kbit/s
//
// # Usage Example
//
//	client := deviceconfig.NewClient("192.168.2.163", 80)
//
//	original, err := client.GetConfiguration(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	working := original.Clone()
//	working[deviceconfig.KeyWiFiSSID] = "office"
//
//	diff := deviceconfig.Diff(original, working)
//	resp, err := client.PostConfiguration(ctx, diff.FormData())
//
// # Diffs
//
// Diff only includes fields whose value is non-empty and differs from the
// fetched baseline. Blank fields are never transmitted, so a setting cannot
// be cleared by emptying it; ClearedFields reports such edits so callers can
// tell the user.
//
// # Error Handling
//
// Transport failures are returned as *DeviceError, classified into timeouts,
// refused connections, DNS failures and general network errors. A POST that
// reaches the adapter always yields a SubmitResponse, even for non-2xx codes.
package deviceconfig

// Package config provides user configuration management for canbridge.
//
// This package manages a YAML-based configuration file that remembers CAN
// adapters found by discovery or used on the command line, together with
// application preferences such as request timeouts and the status poll
// interval. The configuration follows OS-specific conventions for storage
// location.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/canbridge/config.yaml or $HOME/.config/canbridge/config.yaml
//   - macOS: $HOME/.config/canbridge/config.yaml
//   - Windows: %LOCALAPPDATA%\canbridge\config.yaml
//
// # Security
//
// The adapter's Wi-Fi passphrase is never written to this file.
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	registry.SetDeviceNickname("ESP32-socketcand", "bench")
//	target, ok := registry.Resolve("bench")
//	if ok {
//	    client := deviceconfig.NewClientWithURL(target.BaseURL())
//	    client.SetAPIPrefix(target.APIPrefix)
//	}
//
//	if err := registry.Save(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across goroutines.
// File operations are protected by a mutex to ensure atomic writes.
package config

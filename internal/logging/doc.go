// Package logging provides structured logging for canbridge tools.
//
// The package wraps a zap logger behind package-level helpers so that every
// component logs the same way without passing a logger around. Logging is
// silent by default: CLI output stays clean unless the user opts in.
//
// # Enabling Output
//
// Set a level with the --log-level flag or the CANBRIDGE_LOG_LEVEL
// environment variable:
//
//	CANBRIDGE_LOG_LEVEL=debug canbridge-cfg status --device 192.168.2.163
//
// Console output goes to stderr. Setting CANBRIDGE_LOG_FILE additionally
// writes JSON entries to a file rotated by lumberjack (10 MB, 3 backups).
//
// # Structured Logging
//
//	logging.Info("Configuration submitted",
//	    zap.String("device", baseURL),
//	    zap.Strings("keys", keys),
//	)
//
// Components that log a lot take a named child logger:
//
//	log := logging.Named("poller")
//	log.Debug("Status fetched", zap.Int("bytes", n))
//
// # Domain Helpers
//
//   - LogHTTPExchange: one device request with method, URL, status and latency
//   - LogFormSubmission: the keys of a configuration update (never values)
//   - LogStateChange: editor and poller state transitions
//
// # Thread Safety
//
// All logging functions are safe for concurrent use once Initialize has
// returned.
package logging

// Package ui provides terminal output components for the canbridge-cfg CLI.
//
// These components use Lipgloss and the Bubbles progress bar to render
// styled output for one-shot commands. Unlike the interactive wizard, they
// follow a "run once and exit" pattern.
//
// # Components
//
//   - Header: command banner showing the operation and the target adapter
//   - Progress: step list with a progress bar
//   - Result: success, warning and failure boxes
//   - OutputBox: raw adapter reply (status document or POST reply)
//
// Runner ties them together for multi-step commands such as "set":
//
//	runner := ui.NewRunner(ui.RunnerConfig{
//	    Title:     "Apply Settings",
//	    Command:   "canbridge-cfg set can_bitrate=250",
//	    Params:    []ui.Param{{Key: "Adapter", Value: target.BaseURL()}},
//	    StepNames: []string{"Fetch settings", "Validate", "Submit", "Reload"},
//	})
//
//	err := runner.Run(ctx, func(ctx context.Context, onStep ui.StepCallback) ([]ui.Param, error) {
//	    onStep(1, "", ui.StepRunning, "")
//	    // ...
//	    onStep(1, "", ui.StepComplete, "")
//	    return nil, nil
//	})
//
// Failures are rendered with troubleshooting tips taken from
// deviceconfig.GetTroubleshootingHint.
//
// # Logging
//
// Logging is controlled by CANBRIDGE_LOG_LEVEL or --log-level. When unset,
// zap logging is silent so the curated output is shown cleanly.
package ui

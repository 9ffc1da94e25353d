// Package tui implements the interactive console for CAN adapters.
//
// It is a full-screen Bubble Tea program with two screens:
//
//  1. Discovery: adapters saved in the registry are listed at once, and a
//     scan listens for CANBeacons and mDNS adverts, adding adapters as they
//     are found. An address can also be typed in ("m").
//
//  2. Dashboard: a settings form next to the live status document. The
//     screen is driven by a session.Manager: the status poller refreshes the
//     right pane, and the config editor holds the form values. Only modified
//     fields are submitted; after an accepted submit the adapter restarts and
//     the form reloads once ReloadDelay has passed.
//
// Every screen is wrapped by RenderApplicationContainer, which draws the
// header, the content and a footer with context-sensitive help.
//
// # Framework Components
//
//   - bubbles/list: adapter cards with filtering
//   - bubbles/textinput: manual address entry and inline field editing
//   - bubbles/viewport: scrolling status document
//   - bubbles/spinner, bubbles/progress: scan and submit feedback
//   - bubbles/help, bubbles/key: key bindings and help
//   - lipgloss: styling and layout
//
// # Usage Example
//
//	err := tui.Run(ctx, tui.Config{
//	    Options:   session.DefaultOptions(),
//	    APIPrefix: "/api",
//	})
//
// # Logging
//
// The console owns the terminal, so log output should go to a file
// (CANBRIDGE_LOG_FILE) rather than stderr while it runs.
package tui

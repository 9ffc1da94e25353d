// Package session holds the client-side state for one adapter: a
// StatusPoller that keeps the latest status snapshot, and a ConfigEditor
// that tracks the fetched configuration alongside the user's edits.
//
// Both components catch their own failures and expose them as a message
// string prefixed with "ERROR:". A Manager owns one of each, runs the poll
// loop, and reports changes on a single coalescing channel for UIs to
// redraw from.
//
//	m := session.NewClientManager(deviceconfig.NewClient(host, 80), session.DefaultOptions())
//	m.Start(ctx)
//	defer m.Close()
//
//	for range m.Updates() {
//	    render(m.Poller().Status(), m.Editor().Working())
//	}
package session

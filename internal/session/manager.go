package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/canbridge/internal/deviceconfig"
	"github.com/muurk/canbridge/internal/logging"
)

// Device is everything a session needs from an adapter.
type Device interface {
	StatusSource
	ConfigSource
}

// Manager owns the status poller and the config editor for one adapter.
type Manager struct {
	opts   Options
	poller *StatusPoller
	editor *ConfigEditor

	mu      sync.Mutex
	updates chan struct{}
	closed  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager creates a manager for device. Nothing is fetched until Start.
func NewManager(device Device, opts Options) *Manager {
	m := &Manager{
		opts:    opts,
		poller:  NewStatusPoller(device, opts),
		editor:  NewConfigEditor(device, opts),
		updates: make(chan struct{}, 1),
	}

	m.poller.SetOnChange(m.notify)
	m.editor.SetOnChange(m.notify)
	m.editor.SetReloadFunc(m.reload)

	return m
}

// NewClientManager creates a manager for an HTTP client, applying the
// session timeout to the client as well.
func NewClientManager(client *deviceconfig.Client, opts Options) *Manager {
	client.SetTimeout(opts.Timeout)
	return NewManager(client, opts)
}

// reload re-fetches the configuration after an accepted submit. In one-shot
// mode status is fetched again too, since no poll loop will do it.
func (m *Manager) reload(ctx context.Context) {
	logging.Info("Reloading adapter state")
	if err := m.editor.FetchUpdate(ctx); err != nil {
		logging.Debug("Reload of configuration failed", zap.Error(err))
	}
	if m.opts.PollInterval <= 0 {
		_ = m.poller.FetchUpdate(ctx)
	}
}

// notify performs a non-blocking send so bursts coalesce into one update.
func (m *Manager) notify() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	select {
	case m.updates <- struct{}{}:
	default:
	}
}

// Updates delivers a signal whenever any component state changes.
// The channel is closed by Close.
func (m *Manager) Updates() <-chan struct{} {
	return m.updates
}

// Start begins status polling and the initial configuration fetch.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.closed || m.cancel != nil {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	m.poller.Start(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		_ = m.editor.Initialize(ctx)
	}()
}

// Poller returns the status poller.
func (m *Manager) Poller() *StatusPoller {
	return m.poller
}

// Editor returns the config editor.
func (m *Manager) Editor() *ConfigEditor {
	return m.editor
}

// Options returns the timing options the manager was created with.
func (m *Manager) Options() Options {
	return m.opts
}

// Close stops polling, cancels pending reloads and closes Updates.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.poller.Stop()
	m.editor.Close()
	m.wg.Wait()

	m.mu.Lock()
	m.closed = true
	close(m.updates)
	m.mu.Unlock()
}

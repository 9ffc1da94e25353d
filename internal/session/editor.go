package session

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/canbridge/internal/deviceconfig"
	"github.com/muurk/canbridge/internal/logging"
)

// ConfigSource reads and writes the adapter configuration.
type ConfigSource interface {
	GetConfiguration(ctx context.Context) (deviceconfig.ConfigRecord, error)
	PostConfiguration(ctx context.Context, form url.Values) (*deviceconfig.SubmitResponse, error)
}

// State is the editor lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateLoadError
	StateSubmitting
	StateReloading
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateLoadError:
		return "load-error"
	case StateSubmitting:
		return "submitting"
	case StateReloading:
		return "reloading"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// SubmitResult describes what a Submit call did.
type SubmitResult struct {
	// Sent is the diff that was posted; empty when nothing was sent
	Sent deviceconfig.ConfigRecord

	// Cleared lists fields emptied by the user; they are never sent
	Cleared []string

	// Response is the adapter's reply, nil if no request completed
	Response *deviceconfig.SubmitResponse

	// ReloadScheduled is true when the adapter accepted the update
	ReloadScheduled bool
}

// ConfigEditor holds the fetched configuration and an editable copy of it.
// Submit posts only the fields that changed, then schedules a reload once
// the adapter accepts them.
type ConfigEditor struct {
	source ConfigSource
	opts   Options

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       State
	original    deviceconfig.ConfigRecord
	working     deviceconfig.ConfigRecord
	message     string
	reloadTimer *time.Timer
	reloadFn    func(ctx context.Context)
	onChange    func()
	closed      bool
}

// NewConfigEditor creates an editor holding the placeholder record.
func NewConfigEditor(source ConfigSource, opts Options) *ConfigEditor {
	ctx, cancel := context.WithCancel(context.Background())
	e := &ConfigEditor{
		source:  source,
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		state:   StateUninitialized,
		working: deviceconfig.PlaceholderRecord(),
		message: MsgLoading,
	}
	e.reloadFn = func(ctx context.Context) { _ = e.FetchUpdate(ctx) }
	return e
}

// SetOnChange registers fn to be called whenever state, message or records change.
func (e *ConfigEditor) SetOnChange(fn func()) {
	e.mu.Lock()
	e.onChange = fn
	e.mu.Unlock()
}

// SetReloadFunc replaces what runs when the post-submit reload fires.
// The default re-fetches the configuration.
func (e *ConfigEditor) SetReloadFunc(fn func(ctx context.Context)) {
	e.mu.Lock()
	e.reloadFn = fn
	e.mu.Unlock()
}

func (e *ConfigEditor) notify() {
	e.mu.Lock()
	cb := e.onChange
	e.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// setStateLocked must be called with mu held.
func (e *ConfigEditor) setStateLocked(s State) {
	if e.state != s {
		logging.LogStateChange("config-editor", e.state.String(), s.String())
		e.state = s
	}
}

func (e *ConfigEditor) busyLocked() bool {
	return e.state == StateLoading || e.state == StateSubmitting
}

// FetchUpdate loads the configuration. On success the fetched record
// becomes the baseline and an independent copy becomes the working record.
// On failure both records are left alone.
func (e *ConfigEditor) FetchUpdate(ctx context.Context) error {
	e.mu.Lock()
	if e.busyLocked() {
		e.mu.Unlock()
		return ErrBusy
	}
	prev := e.state
	e.setStateLocked(StateLoading)
	e.mu.Unlock()
	e.notify()

	reqCtx, cancel := withTimeout(ctx, e.opts.Timeout)
	rec, err := e.source.GetConfiguration(reqCtx)
	cancel()

	e.mu.Lock()
	switch {
	case err != nil && abandoned(ctx, err):
		e.setStateLocked(prev)
	case err != nil:
		e.message = fmt.Sprintf(msgConfigFetchFailed, reason(err))
		e.setStateLocked(StateLoadError)
		logging.Warn("Configuration fetch failed", zap.Error(err))
	default:
		e.original = rec
		e.working = rec.Clone()
		e.message = ""
		e.setStateLocked(StateReady)
	}
	e.mu.Unlock()
	e.notify()

	return err
}

// Initialize is the initial fetch.
func (e *ConfigEditor) Initialize(ctx context.Context) error {
	return e.FetchUpdate(ctx)
}

// Set stores value in the working record.
func (e *ConfigEditor) Set(key string, value any) {
	e.mu.Lock()
	e.working[key] = value
	e.mu.Unlock()
	e.notify()
}

// SetString converts raw to the type of the field's current value and
// stores it. Unknown keys are stored as strings.
func (e *ConfigEditor) SetString(key, raw string) error {
	e.mu.Lock()
	v, err := deviceconfig.CoerceValue(e.working[key], raw)
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("%s: %w", key, err)
	}
	e.working[key] = v
	e.mu.Unlock()
	e.notify()
	return nil
}

// pendingLocked returns the diff and cleared fields a submit would produce,
// computed on a trimmed copy of the working record.
func (e *ConfigEditor) pendingLocked() (deviceconfig.ConfigRecord, []string) {
	if e.original == nil {
		return nil, nil
	}
	w := e.working.Clone()
	deviceconfig.TrimStrings(w)
	return deviceconfig.Diff(e.original, w), deviceconfig.ClearedFields(e.original, w)
}

// PendingChanges returns the diff a submit would send right now.
func (e *ConfigEditor) PendingChanges() deviceconfig.ConfigRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	diff, _ := e.pendingLocked()
	return diff
}

// Dirty reports whether a submit would send anything.
func (e *ConfigEditor) Dirty() bool {
	return len(e.PendingChanges()) > 0
}

// Submit sends the changed fields to the adapter.
//
// Without a baseline it aborts with ErrNoBaseline. With nothing changed it
// sets MsgNoChanges and makes no request. Otherwise the message becomes the
// adapter's reply, and a 2xx reply schedules a reload after ReloadDelay.
// A transport failure is returned and the working record is kept.
func (e *ConfigEditor) Submit(ctx context.Context) (*SubmitResult, error) {
	e.mu.Lock()
	if e.busyLocked() {
		e.mu.Unlock()
		return nil, ErrBusy
	}

	if e.original == nil {
		e.message = MsgNoBaseline
		e.mu.Unlock()
		e.notify()
		return nil, ErrNoBaseline
	}

	deviceconfig.TrimStrings(e.working)
	diff := deviceconfig.Diff(e.original, e.working)
	res := &SubmitResult{Cleared: deviceconfig.ClearedFields(e.original, e.working)}

	if len(res.Cleared) > 0 {
		logging.Warn("Cleared fields are not sent to the adapter", zap.Strings("fields", res.Cleared))
	}

	if len(diff) == 0 {
		e.message = MsgNoChanges
		e.mu.Unlock()
		e.notify()
		return res, nil
	}

	e.setStateLocked(StateSubmitting)
	e.mu.Unlock()
	e.notify()

	reqCtx, cancel := withTimeout(ctx, e.opts.Timeout)
	resp, err := e.source.PostConfiguration(reqCtx, diff.FormData())
	cancel()

	e.mu.Lock()
	if err != nil {
		e.message = fmt.Sprintf(msgConfigPostFailed, reason(err))
		e.setStateLocked(StateReady)
		e.mu.Unlock()
		e.notify()
		logging.Warn("Configuration submit failed", zap.Error(err))
		return res, err
	}

	res.Sent = diff
	res.Response = resp
	e.message = resp.Body

	if resp.OK() {
		for k, v := range diff {
			e.original[k] = v
		}
		e.setStateLocked(StateReloading)
		res.ReloadScheduled = e.scheduleReloadLocked()
	} else {
		e.setStateLocked(StateReady)
		logging.Warn("Adapter rejected configuration",
			zap.Int("status", resp.StatusCode),
			zap.String("body", resp.Body),
		)
	}
	e.mu.Unlock()
	e.notify()

	return res, nil
}

// scheduleReloadLocked arms the reload timer, replacing any pending one.
func (e *ConfigEditor) scheduleReloadLocked() bool {
	if e.reloadTimer != nil {
		e.reloadTimer.Stop()
	}
	if e.closed {
		return false
	}
	e.reloadTimer = time.AfterFunc(e.opts.ReloadDelay, e.fireReload)
	logging.Debug("Reload scheduled", zap.Duration("delay", e.opts.ReloadDelay))
	return true
}

func (e *ConfigEditor) fireReload() {
	e.mu.Lock()
	e.reloadTimer = nil
	fn := e.reloadFn
	closed := e.closed
	e.mu.Unlock()

	if closed || fn == nil {
		return
	}
	fn(e.ctx)
}

// ReloadPending reports whether a reload timer is armed.
func (e *ConfigEditor) ReloadPending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reloadTimer != nil
}

// Close cancels a pending reload and any reload in flight.
func (e *ConfigEditor) Close() {
	e.mu.Lock()
	e.closed = true
	if e.reloadTimer != nil {
		e.reloadTimer.Stop()
		e.reloadTimer = nil
	}
	e.mu.Unlock()
	e.cancel()
}

// State returns the lifecycle state.
func (e *ConfigEditor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Message returns the latest user-facing message.
func (e *ConfigEditor) Message() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.message
}

// Original returns a copy of the baseline, or nil before the first fetch.
func (e *ConfigEditor) Original() deviceconfig.ConfigRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.original.Clone()
}

// Working returns a copy of the working record.
func (e *ConfigEditor) Working() deviceconfig.ConfigRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.working.Clone()
}

package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/canbridge/internal/deviceconfig"
	"github.com/muurk/canbridge/internal/logging"
)

// StatusSource fetches the adapter's status document.
type StatusSource interface {
	GetStatus(ctx context.Context) (*deviceconfig.StatusSnapshot, error)
}

// PollerStatus is a point-in-time copy of the poller state.
type PollerStatus struct {
	Snapshot            *deviceconfig.StatusSnapshot
	Message             string
	LastAttempt         time.Time
	LastSuccess         time.Time
	ConsecutiveFailures int
	Running             bool
}

// StatusPoller repeatedly fetches the status document. A failed fetch keeps
// the previous snapshot and records an error message; the next attempt is
// simply the next scheduled one.
type StatusPoller struct {
	source StatusSource
	opts   Options

	// fetchMu serialises requests so attempts never overlap
	fetchMu sync.Mutex

	mu          sync.RWMutex
	snapshot    *deviceconfig.StatusSnapshot
	message     string
	lastAttempt time.Time
	lastSuccess time.Time
	failures    int
	onChange    func()

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewStatusPoller creates a poller. Nothing is fetched until FetchUpdate,
// Run or Start is called.
func NewStatusPoller(source StatusSource, opts Options) *StatusPoller {
	return &StatusPoller{
		source:  source,
		opts:    opts,
		message: MsgLoading,
	}
}

// SetOnChange registers fn to be called after every attempt.
func (p *StatusPoller) SetOnChange(fn func()) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

// FetchUpdate performs a single status request and records the outcome.
// The error is returned for callers that need it; it is also reflected in
// Message.
func (p *StatusPoller) FetchUpdate(ctx context.Context) error {
	p.fetchMu.Lock()
	defer p.fetchMu.Unlock()

	reqCtx, cancel := withTimeout(ctx, p.opts.Timeout)
	snap, err := p.source.GetStatus(reqCtx)
	cancel()

	if err != nil && abandoned(ctx, err) {
		return err
	}

	p.mu.Lock()
	p.lastAttempt = time.Now()
	if err != nil {
		p.failures++
		p.message = fmt.Sprintf(msgStatusFetchFailed, reason(err))
		logging.Warn("Status fetch failed",
			zap.Int("consecutive_failures", p.failures),
			zap.Error(err),
		)
	} else {
		p.snapshot = snap
		p.message = ""
		p.failures = 0
		p.lastSuccess = p.lastAttempt
	}
	cb := p.onChange
	p.mu.Unlock()

	if cb != nil {
		cb()
	}
	return err
}

// Run fetches, waits PollInterval and repeats until ctx is done. With a zero
// PollInterval it fetches exactly once.
func (p *StatusPoller) Run(ctx context.Context) {
	for {
		_ = p.FetchUpdate(ctx)

		if p.opts.PollInterval <= 0 {
			return
		}

		timer := time.NewTimer(p.opts.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Start runs the poll loop in the background. Calling Start on a running
// poller has no effect.
func (p *StatusPoller) Start(ctx context.Context) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	if p.done != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	logging.Debug("Status poller started", zap.Duration("interval", p.opts.PollInterval))

	go func() {
		defer close(done)
		p.Run(ctx)

		p.runMu.Lock()
		if p.done == done {
			p.cancel()
			p.cancel, p.done = nil, nil
		}
		p.runMu.Unlock()
	}()
}

// Stop cancels the loop and waits for it to exit.
func (p *StatusPoller) Stop() {
	p.runMu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	logging.Debug("Status poller stopped")
}

// Done returns a channel closed when the current loop exits, or nil if the
// poller is not running.
func (p *StatusPoller) Done() <-chan struct{} {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	return p.done
}

// Snapshot returns the latest successfully fetched status, or nil.
func (p *StatusPoller) Snapshot() *deviceconfig.StatusSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot
}

// Message returns "" after a successful fetch, or the last error message.
func (p *StatusPoller) Message() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.message
}

// Status returns a copy of the poller state.
func (p *StatusPoller) Status() PollerStatus {
	p.runMu.Lock()
	running := p.done != nil
	p.runMu.Unlock()

	p.mu.RLock()
	defer p.mu.RUnlock()
	return PollerStatus{
		Snapshot:            p.snapshot,
		Message:             p.message,
		LastAttempt:         p.lastAttempt,
		LastSuccess:         p.lastSuccess,
		ConsecutiveFailures: p.failures,
		Running:             running,
	}
}

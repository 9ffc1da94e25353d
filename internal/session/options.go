package session

import (
	"context"
	"time"
)

const (
	// DefaultTimeout bounds every request made by a session component.
	DefaultTimeout = 5 * time.Second

	// DefaultPollInterval is the pause between two status fetches.
	DefaultPollInterval = 2 * time.Second

	// DefaultReloadDelay is how long to wait after an accepted submit before
	// re-fetching. The adapter restarts its network stack in the meantime.
	DefaultReloadDelay = 2 * time.Second
)

// Options controls timing for the poller and the editor.
type Options struct {
	// Timeout is the per-request deadline. Zero means no deadline.
	Timeout time.Duration

	// PollInterval is the wait between status fetches. Zero means fetch once.
	PollInterval time.Duration

	// ReloadDelay is the wait between an accepted submit and the reload.
	ReloadDelay time.Duration
}

// DefaultOptions returns the options used by the interactive dashboard.
func DefaultOptions() Options {
	return Options{
		Timeout:      DefaultTimeout,
		PollInterval: DefaultPollInterval,
		ReloadDelay:  DefaultReloadDelay,
	}
}

// OneShotOptions fetches status once and applies no request deadline.
func OneShotOptions() Options {
	return Options{
		Timeout:      0,
		PollInterval: 0,
		ReloadDelay:  DefaultReloadDelay,
	}
}

// OptionsFromMillis builds Options from millisecond values, as taken from
// flags or the preferences file. Negative values are treated as zero.
func OptionsFromMillis(timeoutMS, pollMS, reloadMS int) Options {
	ms := func(v int) time.Duration {
		if v < 0 {
			v = 0
		}
		return time.Duration(v) * time.Millisecond
	}
	return Options{
		Timeout:      ms(timeoutMS),
		PollInterval: ms(pollMS),
		ReloadDelay:  ms(reloadMS),
	}
}

// withTimeout applies d to ctx unless it is zero.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

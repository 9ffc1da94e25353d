package session

import (
	"context"
	"errors"

	"github.com/muurk/canbridge/internal/deviceconfig"
)

// User-facing messages.
const (
	MsgLoading    = deviceconfig.PlaceholderText
	MsgNoBaseline = "ERROR: No settings fetched from server. Try reloading."
	MsgNoChanges  = "Settings were not saved because no fields were modified."

	msgStatusFetchFailed = "ERROR: Couldn't fetch status from server: %s"
	msgConfigFetchFailed = "ERROR: Couldn't fetch settings from server: %s"
	msgConfigPostFailed  = "ERROR: Couldn't post settings to server: %s"
)

var (
	// ErrBusy is returned when a fetch or submit is already in flight.
	ErrBusy = errors.New("another request is in progress")

	// ErrNoBaseline is returned by Submit before any configuration was fetched.
	ErrNoBaseline = errors.New("no settings fetched from server")
)

// reason renders err for embedding in a message.
func reason(err error) string {
	return deviceconfig.GetShortErrorMessage(err)
}

// abandoned reports whether err came from ctx being canceled by its owner,
// as opposed to a request deadline.
func abandoned(ctx context.Context, err error) bool {
	return errors.Is(err, context.Canceled) && ctx.Err() != nil
}

package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/muurk/canbridge/internal/deviceconfig"
)

// ErrCanceled is returned by an Operation that stopped on the user's request.
// Run shows it as a warning rather than a failure.
var ErrCanceled = errors.New("canceled")

// RunnerConfig holds configuration for a multi-step command
type RunnerConfig struct {
	Title     string    // Command title (e.g., "Apply Settings")
	Command   string    // Full command (e.g., "canbridge-cfg set can_bitrate=250")
	Params    []Param   // Parameters to display in header
	StepNames []string  // Names for each step
	Verbose   bool      // Whether to show the adapter's raw reply
	Output    io.Writer // Output writer (default: os.Stdout)
	Width     int       // Render width (default: terminal width)
}

// Runner orchestrates the UI for a multi-step command.
// It manages the header, progress and result flow and provides
// callbacks for reporting progress.
type Runner struct {
	config    RunnerConfig
	header    *Header
	progress  *Progress
	output    io.Writer
	reply     string
	startTime time.Time
	width     int
}

// NewRunner creates a new runner for a command
func NewRunner(config RunnerConfig) *Runner {
	if config.Output == nil {
		config.Output = os.Stdout
	}

	width := config.Width
	if width == 0 {
		width = GetTerminalWidth()
	}

	header := NewHeader(config.Title, config.Command, config.Params...)
	header.SetWidth(width)

	var progress *Progress
	if len(config.StepNames) > 0 {
		progress = NewProgress("", config.StepNames).SetWidth(width)
	}

	return &Runner{
		config:   config,
		header:   header,
		progress: progress,
		output:   config.Output,
		width:    width,
	}
}

// Operation is the work performed by a Runner. It reports progress through
// onStep and returns the details to show in the success box.
type Operation func(ctx context.Context, onStep StepCallback) ([]Param, error)

// Run executes the operation with UI updates.
func (r *Runner) Run(ctx context.Context, operation Operation) error {
	r.startTime = time.Now()

	_, _ = fmt.Fprintln(r.output, r.header.Render())
	_, _ = fmt.Fprintln(r.output)

	details, err := operation(ctx, r.createStepCallback())
	duration := time.Since(r.startTime)

	switch {
	case errors.Is(err, ErrCanceled):
		r.skipRemaining()
		r.printCanceled()
	case err != nil:
		r.skipRemaining()
		r.printFailure(err)
	default:
		r.printSuccess(details, duration)
	}
	return err
}

// SetReply stores the adapter's raw reply for verbose display
func (r *Runner) SetReply(reply string) {
	r.reply = reply
}

// Progress returns the step tracker, or nil when the runner has no steps.
func (r *Runner) Progress() *Progress {
	return r.progress
}

func (r *Runner) createStepCallback() StepCallback {
	return func(stepNumber int, name string, status StepStatus, message string) {
		if r.progress == nil || stepNumber < 1 || stepNumber > len(r.progress.Steps) {
			return
		}

		if name != "" {
			r.progress.Steps[stepNumber-1].Name = name
		}
		r.progress.Update(stepNumber, status, message)

		step := r.progress.Steps[stepNumber-1]
		switch {
		case status.finished():
			_, _ = fmt.Fprintln(r.output, r.progress.line(step))
		case status == StepRunning:
			// Overwritten when the step finishes
			_, _ = fmt.Fprint(r.output, r.progress.line(step)+"\r")
		}
	}
}

// skipRemaining marks steps that never started as skipped.
func (r *Runner) skipRemaining() {
	if r.progress == nil {
		return
	}
	for _, n := range r.progress.Pending() {
		r.progress.Update(n, StepSkipped, "")
		_, _ = fmt.Fprintln(r.output, r.progress.line(r.progress.Steps[n-1]))
	}
}

func (r *Runner) printSuccess(details []Param, duration time.Duration) {
	_, _ = fmt.Fprintln(r.output)

	result := NewSuccessResult(r.config.Title+" complete", details...).
		AddDetail("Duration", duration.Round(time.Millisecond).String()).
		SetWidth(r.width)
	_, _ = fmt.Fprintln(r.output, result.Render())

	r.printReply()
}

func (r *Runner) printCanceled() {
	_, _ = fmt.Fprintln(r.output)
	result := NewWarningResult(r.config.Title+" canceled", Param{Key: "Result", Value: "Nothing was sent to the adapter"})
	result.SetWidth(r.width)
	_, _ = fmt.Fprintln(r.output, result.Render())
}

func (r *Runner) printFailure(err error) {
	_, _ = fmt.Fprintln(r.output)

	tips := TroubleshootingFor(deviceconfig.GetTroubleshootingHint(err))
	if !r.config.Verbose {
		tips = append(tips, "Run with --log-level debug for the full HTTP exchange")
	}

	result := NewFailureResult(r.config.Title+" failed", errors.New(deviceconfig.GetShortErrorMessage(err)), tips)
	result.SetWidth(r.width)
	_, _ = fmt.Fprintln(r.output, result.Render())

	r.printReply()
}

func (r *Runner) printReply() {
	if !r.config.Verbose || r.reply == "" {
		return
	}
	_, _ = fmt.Fprintln(r.output)
	box := NewOutputBox("Adapter reply", r.reply)
	box.SetWidth(r.width)
	_, _ = fmt.Fprintln(r.output, box.Render())
}

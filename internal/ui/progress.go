package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// StepStatus is the state of one step of an adapter exchange
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepComplete
	StepFailed
	StepSkipped
)

// finished reports whether the step has left the running/pending states.
func (s StepStatus) finished() bool {
	return s == StepComplete || s == StepFailed || s == StepSkipped
}

// marker returns the glyph and style shown for a status.
func (s StepStatus) marker() (string, lipgloss.Style) {
	switch s {
	case StepComplete:
		return StepMarkerComplete, StepCompleteStyle
	case StepRunning:
		return StepMarkerRunning, StepRunningStyle
	case StepFailed:
		return FailureMarker, ErrorTitleStyle
	case StepSkipped:
		return StepMarkerSkipped, StepPendingStyle
	default:
		return StepMarkerPending, StepPendingStyle
	}
}

// Step is one line of the step list, e.g. "Submit changes".
type Step struct {
	Number  int
	Name    string
	Status  StepStatus
	Message string // short note such as "HTTP 200" or "2 to send"
}

// Progress tracks the steps of a fetch/apply/submit/verify sequence.
type Progress struct {
	Label string
	Steps []Step
	Width int

	bar progress.Model
}

// stepNameColumn is where markers line up in the step list.
const stepNameColumn = 32

// NewProgress creates a tracker with one pending step per name.
func NewProgress(label string, names []string) *Progress {
	steps := make([]Step, len(names))
	for i, name := range names {
		steps[i] = Step{Number: i + 1, Name: name}
	}
	p := &Progress{Label: label, Steps: steps}
	return p.SetWidth(GetTerminalWidth())
}

// SetWidth sizes the bar for a terminal width.
func (p *Progress) SetWidth(width int) *Progress {
	p.Width = width
	barWidth := min(max(width-24, 16), 48)
	p.bar = progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth))
	return p
}

// Update sets a step's status and note. Out-of-range numbers are ignored.
func (p *Progress) Update(n int, status StepStatus, message string) {
	if n < 1 || n > len(p.Steps) {
		return
	}
	p.Steps[n-1].Status = status
	p.Steps[n-1].Message = message
}

// Pending returns the numbers of steps that never started.
func (p *Progress) Pending() []int {
	var nums []int
	for _, s := range p.Steps {
		if s.Status == StepPending {
			nums = append(nums, s.Number)
		}
	}
	return nums
}

// Done counts completed and skipped steps. Failed steps do not count.
func (p *Progress) Done() int {
	n := 0
	for _, s := range p.Steps {
		if s.Status == StepComplete || s.Status == StepSkipped {
			n++
		}
	}
	return n
}

// Fraction is Done over the number of steps.
func (p *Progress) Fraction() float64 {
	if len(p.Steps) == 0 {
		return 0
	}
	return float64(p.Done()) / float64(len(p.Steps))
}

// Render returns the label, bar and step list.
func (p *Progress) Render() string {
	var b strings.Builder
	if p.Label != "" {
		b.WriteString(ProgressLabelStyle.Render(p.Label))
		b.WriteString("\n\n")
	}

	bar := fmt.Sprintf("%s  %3.0f%%  [%d/%d]", p.bar.ViewAs(p.Fraction()), p.Fraction()*100, p.Done(), len(p.Steps))
	b.WriteString(lipgloss.NewStyle().PaddingLeft(2).Render(bar))
	b.WriteString("\n\n")

	lines := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		lines[i] = p.line(s)
	}
	b.WriteString(strings.Join(lines, "\n"))
	return b.String()
}

func (p *Progress) String() string {
	return p.Render()
}

// line renders "  [2/5] Submit changes      ✓  (HTTP 200)".
func (p *Progress) line(s Step) string {
	marker, style := s.Status.marker()

	pad := stepNameColumn - lipgloss.Width(s.Name)
	if pad < 1 {
		pad = 1
	}

	out := fmt.Sprintf("  [%d/%d] %s%s%s", s.Number, len(p.Steps), style.Render(s.Name), strings.Repeat(" ", pad), style.Render(marker))
	if s.Message != "" {
		out += "  " + StepNoteStyle.Render("("+s.Message+")")
	}
	return out
}

// StepCallback reports progress from inside a Runner operation. A non-empty
// name renames the step.
type StepCallback func(stepNumber int, name string, status StepStatus, message string)

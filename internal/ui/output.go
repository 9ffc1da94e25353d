package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// OutputBox shows raw text returned by the adapter, such as the status
// document or the reply to a settings POST.
type OutputBox struct {
	Title    string
	Content  string
	Width    int
	MaxLines int // 0 shows everything
}

// NewOutputBox creates a box for the given content
func NewOutputBox(title, content string) *OutputBox {
	return &OutputBox{
		Title:   title,
		Content: content,
		Width:   GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (o *OutputBox) SetWidth(width int) *OutputBox {
	o.Width = width
	return o
}

// SetMaxLines limits the number of content lines rendered
func (o *OutputBox) SetMaxLines(n int) *OutputBox {
	o.MaxLines = n
	return o
}

// Render returns the styled box as a string
func (o *OutputBox) Render() string {
	width := clampWidth(o.Width)

	content := strings.TrimRight(o.Content, "\n")
	if o.MaxLines > 0 {
		lines := strings.Split(content, "\n")
		if len(lines) > o.MaxLines {
			hidden := len(lines) - o.MaxLines
			lines = append(lines[:o.MaxLines], StepNoteStyle.Render(fmt.Sprintf("... %d more lines", hidden)))
			content = strings.Join(lines, "\n")
		}
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		OutputTitleStyle.Render(o.Title),
		OutputContentStyle.Render(content),
	)

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Width(width-4).
		Padding(0, 1).
		Render(body)
}

// String implements fmt.Stringer
func (o *OutputBox) String() string {
	return o.Render()
}

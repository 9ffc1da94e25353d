package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Confirm displays a warning box listing the pending changes and asks the
// user to answer y/N. Returns true only for an explicit yes.
func Confirm(in io.Reader, out io.Writer, width int, title string, changes []string, note string) bool {
	width = clampWidth(width)

	lines := []string{"", WarningTitleStyle.Render(fmt.Sprintf("   %s  CONFIRM  ─  %s", WarningMarker, title)), ""}

	bulletStyle := lipgloss.NewStyle().Foreground(TextColor)
	for _, change := range changes {
		lines = append(lines, bulletStyle.Render("   • "+change))
	}
	lines = append(lines, "")

	if note != "" {
		noteStyle := lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true).
			Width(width - 12).
			PaddingLeft(3)
		lines = append(lines, noteStyle.Render(note), "")
	}

	_, _ = fmt.Fprintln(out, boxStyle(WarningColor, width).Render(strings.Join(lines, "\n")))
	_, _ = fmt.Fprintln(out)

	promptStyle := lipgloss.NewStyle().
		Foreground(WarningColor).
		Bold(true)
	_, _ = fmt.Fprint(out, promptStyle.Render("Apply these changes? [y/N]: "))

	input, err := bufio.NewReader(in).ReadString('\n')
	_, _ = fmt.Fprintln(out)
	if err != nil && input == "" {
		return false
	}

	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true
	}

	cancelStyle := lipgloss.NewStyle().Foreground(MutedColor)
	_, _ = fmt.Fprintln(out, cancelStyle.Render("  Nothing was sent."))
	_, _ = fmt.Fprintln(out)
	return false
}

// ConfirmSubmit is the confirmation shown before posting settings. The
// adapter saves and restarts after an accepted POST.
func ConfirmSubmit(in io.Reader, out io.Writer, width int, changes []string) bool {
	return Confirm(in, out, width, "APPLY SETTINGS", changes,
		"The adapter saves accepted settings and restarts. It is unreachable for a "+
			"few seconds, and a changed IP address or DHCP mode may move it to a new address.")
}

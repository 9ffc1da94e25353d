package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/canbridge/internal/deviceconfig"
	"github.com/muurk/canbridge/internal/session"
)

// Message types for async operations
type sessionUpdateMsg struct{}

type sessionClosedMsg struct{}

type submitDoneMsg struct {
	result *session.SubmitResult
	err    error
}

type refreshDoneMsg struct {
	err error
}

// dashboardKeyMap defines key bindings for the dashboard screen
type dashboardKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Edit    key.Binding
	Submit  key.Binding
	Refresh key.Binding
	Revert  key.Binding
	Scroll  key.Binding
	Help    key.Binding
	Back    key.Binding
	Quit    key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k dashboardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Edit, k.Submit, k.Refresh, k.Help, k.Back, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k dashboardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Edit, k.Revert},
		{k.Submit, k.Refresh, k.Scroll},
		{k.Help, k.Back, k.Quit},
	}
}

// editKeyMap defines key bindings while a field is being edited
type editKeyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k editKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Confirm, k.Cancel}
}

// FullHelp returns keybindings for the expanded help view
func (k editKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Confirm, k.Cancel}}
}

// DashboardModel shows the status pane and the settings form for one
// adapter. All adapter I/O goes through the session manager; the model only
// renders its state and forwards edits.
type DashboardModel struct {
	// Adapter
	Name    string
	BaseURL string
	Manager *session.Manager

	// UI state
	Width  int
	Height int

	// Navigation
	Cursor      int
	Editing     bool
	Input       textinput.Model
	FieldErr    string
	ShowingHelp bool
	backRequest bool

	// Submit state
	Submitting bool
	LastSubmit *session.SubmitResult
	SubmitErr  error

	StatusView viewport.Model
	Spinner    spinner.Model
	Help       help.Model
	Keys       dashboardKeyMap
	EditKeys   editKeyMap

	ctx context.Context
}

// NewDashboardModel creates a dashboard for a started manager.
func NewDashboardModel(ctx context.Context, name, baseURL string, manager *session.Manager) DashboardModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	input := textinput.New()
	input.CharLimit = 64
	input.Width = 28

	vp := viewport.New(40, 12)

	return DashboardModel{
		Name:       name,
		BaseURL:    baseURL,
		Manager:    manager,
		Input:      input,
		StatusView: vp,
		Spinner:    s,
		Help:       help.New(),
		Keys: dashboardKeyMap{
			Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
			Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
			Edit:    key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "edit/toggle")),
			Submit:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "submit")),
			Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
			Revert:  key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "undo field")),
			Scroll:  key.NewBinding(key.WithKeys("pgup", "pgdown"), key.WithHelp("pgup/pgdn", "scroll status")),
			Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
			Back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "adapters")),
			Quit:    key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		},
		EditKeys: editKeyMap{
			Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "keep")),
			Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		},
		ctx: ctx,
	}.syncStatus()
}

// Init waits for the first session update
func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.Manager.Updates()), m.Spinner.Tick)
}

// waitForUpdate turns one signal from the manager into a message.
func waitForUpdate(updates <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-updates; !ok {
			return sessionClosedMsg{}
		}
		return sessionUpdateMsg{}
	}
}

func (m DashboardModel) context() context.Context {
	if m.ctx != nil {
		return m.ctx
	}
	return context.Background()
}

// keys returns the field keys in display order
func (m DashboardModel) keys() []string {
	working := m.Manager.Editor().Working()
	if len(working) == 0 {
		return deviceconfig.KnownKeys
	}
	return working.Keys()
}

func (m DashboardModel) currentKey() string {
	keys := m.keys()
	if m.Cursor < 0 || m.Cursor >= len(keys) {
		return ""
	}
	return keys[m.Cursor]
}

// Update handles messages and updates the model
func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m.resize(), nil

	case sessionUpdateMsg:
		return m.syncStatus(), waitForUpdate(m.Manager.Updates())

	case sessionClosedMsg:
		return m, nil

	case submitDoneMsg:
		m.Submitting = false
		m.LastSubmit = msg.result
		m.SubmitErr = msg.err
		return m, nil

	case refreshDoneMsg:
		m.LastSubmit = nil
		m.SubmitErr = nil
		return m.syncStatus(), nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.ShowingHelp {
			m.ShowingHelp = false
			return m, nil
		}
		if m.Editing {
			return m.updateEditing(msg)
		}
		return m.updateNormalMode(msg)
	}

	return m, nil
}

// updateNormalMode handles input when no field is being edited
func (m DashboardModel) updateNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := len(m.keys())

	switch msg.String() {
	case "q":
		return m, tea.Quit

	case "esc":
		m.backRequest = true
		return m, nil

	case "up", "k":
		m.Cursor--
		if m.Cursor < 0 {
			m.Cursor = n - 1
		}

	case "down", "j", "tab":
		m.Cursor++
		if m.Cursor >= n {
			m.Cursor = 0
		}

	case "enter", " ":
		return m.startEditing()

	case "u":
		k := m.currentKey()
		if orig := m.Manager.Editor().Original(); orig != nil {
			if v, ok := orig[k]; ok {
				m.Manager.Editor().Set(k, v)
			}
		}

	case "s":
		if m.Submitting {
			return m, nil
		}
		m.Submitting = true
		m.LastSubmit = nil
		m.SubmitErr = nil
		return m, submitCmd(m.context(), m.Manager.Editor())

	case "r":
		return m, refreshCmd(m.context(), m.Manager)

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.StatusView, cmd = m.StatusView.Update(msg)
		return m, cmd

	case "?":
		m.ShowingHelp = true
	}

	return m, nil
}

// startEditing toggles a boolean field or opens the inline editor
func (m DashboardModel) startEditing() (tea.Model, tea.Cmd) {
	editor := m.Manager.Editor()
	if editor.State() != session.StateReady {
		return m, nil
	}

	k := m.currentKey()
	v := editor.Working()[k]
	if b, ok := v.(bool); ok {
		editor.Set(k, !b)
		return m, nil
	}

	m.Editing = true
	m.FieldErr = ""
	m.Input.SetValue(deviceconfig.FormatValue(v))
	m.Input.EchoMode = textinput.EchoNormal
	if k == deviceconfig.KeyWiFiPass {
		m.Input.EchoMode = textinput.EchoPassword
		m.Input.SetValue("")
	}
	m.Input.CursorEnd()
	m.Input.Focus()
	return m, textinput.Blink
}

// updateEditing handles input while a field is being edited
func (m DashboardModel) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.Editing = false
		m.FieldErr = ""
		m.Input.Blur()
		return m, nil

	case "enter":
		if err := m.Manager.Editor().SetString(m.currentKey(), m.Input.Value()); err != nil {
			m.FieldErr = err.Error()
			return m, nil
		}
		m.Editing = false
		m.FieldErr = ""
		m.Input.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.Input, cmd = m.Input.Update(msg)
	return m, cmd
}

func submitCmd(ctx context.Context, editor *session.ConfigEditor) tea.Cmd {
	return func() tea.Msg {
		res, err := editor.Submit(ctx)
		return submitDoneMsg{result: res, err: err}
	}
}

func refreshCmd(ctx context.Context, manager *session.Manager) tea.Cmd {
	return func() tea.Msg {
		err := manager.Editor().FetchUpdate(ctx)
		if manager.Options().PollInterval <= 0 {
			_ = manager.Poller().FetchUpdate(ctx)
		}
		return refreshDoneMsg{err: err}
	}
}

// IsBackRequested reports whether the user asked to return to discovery
func (m DashboardModel) IsBackRequested() bool {
	return m.backRequest
}

func (m DashboardModel) paneWidths() (int, int) {
	width := CalculateBoxWidth(m.Width) - 6
	left := width * 11 / 20
	return left, width - left
}

func (m DashboardModel) resize() DashboardModel {
	_, right := m.paneWidths()
	m.StatusView.Width = right - 4
	h := m.Height - 12
	if h < 8 {
		h = 8
	}
	m.StatusView.Height = h
	return m.syncStatus()
}

// syncStatus copies the poller's snapshot into the status viewport
func (m DashboardModel) syncStatus() DashboardModel {
	if m.Manager == nil {
		return m
	}
	st := m.Manager.Poller().Status()
	content := session.MsgLoading
	if st.Snapshot != nil {
		content = st.Snapshot.Indented()
	}
	m.StatusView.SetContent(content)
	return m
}

// View renders the dashboard
func (m DashboardModel) View() string {
	if m.ShowingHelp {
		return RenderModal(m.renderHelpContent(), m.Width, m.Height)
	}

	var helpText string
	if m.Editing {
		helpText = m.Help.View(m.EditKeys)
	} else {
		helpText = m.Help.View(m.Keys)
	}
	return RenderApplicationContainer(m.renderContent(), helpText, m.Width, m.Height)
}

func (m DashboardModel) renderContent() string {
	left, right := m.paneWidths()

	deviceLine := lipgloss.NewStyle().Foreground(TextColor).
		Render(fmt.Sprintf("Adapter: %s • %s", m.Name, m.BaseURL))

	var stateLine string
	editor := m.Manager.Editor()
	switch {
	case m.Submitting || editor.State() == session.StateSubmitting:
		stateLine = SpinnerStyle.Render(m.Spinner.View() + " Submitting...")
	case editor.State() == session.StateLoading || editor.State() == session.StateReloading:
		stateLine = SpinnerStyle.Render(m.Spinner.View() + " " + session.MsgLoading)
	case editor.Dirty():
		stateLine = ModifiedStyle.Render(fmt.Sprintf("⚠ MODIFIED (%d fields)", len(editor.PendingChanges())))
	}

	settings := PaneStyle.Width(left).Render(m.renderSettings())
	status := PaneStyle.Width(right).Render(m.renderStatus())
	panes := lipgloss.JoinHorizontal(lipgloss.Top, settings, status)

	return lipgloss.JoinVertical(lipgloss.Left,
		deviceLine,
		stateLine,
		panes,
		m.renderMessages(),
	)
}

// renderSettings renders the configuration form grouped by section
func (m DashboardModel) renderSettings() string {
	editor := m.Manager.Editor()
	working := editor.Working()
	if len(working) == 0 {
		working = deviceconfig.PlaceholderRecord()
	}
	original := editor.Original()
	keys := m.keys()

	sectionOf := make(map[string]string)
	for _, s := range deviceconfig.Sections {
		for _, k := range s.Keys {
			sectionOf[k] = s.Title
		}
	}

	var lines []string
	current := ""
	for i, k := range keys {
		title, ok := sectionOf[k]
		if !ok {
			title = "Other"
		}
		if title != current {
			if current != "" {
				lines = append(lines, "")
			}
			lines = append(lines, SectionTitleStyle.Render(title))
			current = title
		}

		changed := original != nil && !deviceconfig.ValuesEqual(original[k], working[k])
		lines = append(lines, m.renderField(i, k, working[k], changed))
	}
	return strings.Join(lines, "\n")
}

// renderField renders one configuration line:
// "→ Label          Value" with a marker for modified fields.
func (m DashboardModel) renderField(idx int, k string, v any, changed bool) string {
	selected := idx == m.Cursor

	labelStyle := lipgloss.NewStyle().Width(14).Foreground(SubtleColor)
	valueStyle := lipgloss.NewStyle()
	if selected {
		labelStyle = labelStyle.Foreground(HighlightColor).Bold(true)
		valueStyle = valueStyle.Foreground(HighlightColor).Bold(true)
	}

	arrow := "  "
	if selected {
		arrow = "→ "
	}

	value := valueStyle.Render(deviceconfig.DisplayValue(k, v))
	if selected && m.Editing {
		value = InlineEditorStyle().Render(m.Input.View())
		if m.FieldErr != "" {
			value += "\n" + ErrorMessageStyle.Render(m.FieldErr)
		}
	}

	marker := ""
	if changed {
		marker = ModifiedStyle.Render(" *")
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, arrow, labelStyle.Render(deviceconfig.Label(k)), value, marker)
}

// renderStatus renders the status pane
func (m DashboardModel) renderStatus() string {
	st := m.Manager.Poller().Status()

	var age string
	if !st.LastSuccess.IsZero() {
		age = SubtitleStyle.Render(fmt.Sprintf(" updated %s ago", time.Since(st.LastSuccess).Round(time.Second)))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		SectionTitleStyle.Render("Status")+age,
		m.StatusView.View(),
	)
}

// renderMessages renders the poller and editor message lines plus
// advisory warnings about the pending changes.
func (m DashboardModel) renderMessages() string {
	editor := m.Manager.Editor()
	var lines []string

	if msg := m.Manager.Poller().Message(); msg != "" && msg != session.MsgLoading {
		lines = append(lines, messageLine(msg))
	}
	if msg := editor.Message(); msg != "" && msg != session.MsgLoading {
		lines = append(lines, messageLine(msg))
	}
	if m.SubmitErr != nil && !errors.Is(m.SubmitErr, session.ErrBusy) {
		lines = append(lines, ErrorMessageStyle.Render(deviceconfig.GetShortErrorMessage(m.SubmitErr)))
	}
	if m.LastSubmit != nil && m.LastSubmit.ReloadScheduled {
		lines = append(lines, SubtitleStyle.Render(fmt.Sprintf("Reloading in %s...", m.Manager.Options().ReloadDelay)))
	}

	if cleared := deviceconfig.ClearedFields(editor.Original(), editor.Working()); len(cleared) > 0 {
		lines = append(lines, WarningMessageStyle.Render("⚠ Cleared fields are not sent: "+strings.Join(cleared, ", ")))
	}
	if diff := editor.PendingChanges(); len(diff) > 0 {
		for _, err := range deviceconfig.ValidateChanges(editor.Original(), diff) {
			lines = append(lines, WarningMessageStyle.Render("⚠ "+err.Error()))
		}
	}

	return strings.Join(lines, "\n")
}

func messageLine(msg string) string {
	if strings.HasPrefix(msg, "ERROR") {
		return ErrorMessageStyle.Render(msg)
	}
	return MessageStyle.Render(msg)
}

func (m DashboardModel) renderHelpContent() string {
	body := lipgloss.JoinVertical(lipgloss.Left,
		SectionTitleStyle.Render("Keys"),
		"",
		m.Help.FullHelpView(m.Keys.FullHelp()),
		"",
		SubtitleStyle.Render("Only modified fields are sent. After an accepted"),
		SubtitleStyle.Render("submit the adapter restarts and settings reload."),
		"",
		SubtitleStyle.Render("Press any key to close"),
	)
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(BorderColor).
		Padding(1, 2).
		Width(SafeModalWidth(60, m.Width)).
		Render(body)
}

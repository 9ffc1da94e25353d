package tui

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/canbridge/internal/discovery"
)

// Messages for async scan events
type scanStartedMsg struct {
	events <-chan tea.Msg
}

type deviceFoundMsg struct {
	device *discovery.Device
	events <-chan tea.Msg
}

type scanCompleteMsg struct {
	devices []*discovery.Device
	err     error
}

// discoveryKeyMap defines key bindings for the discovery screen
type discoveryKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Enter  key.Binding
	Rescan key.Binding
	Manual key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k discoveryKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Enter, k.Rescan, k.Manual, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k discoveryKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter},
		{k.Rescan, k.Manual, k.Quit},
	}
}

// manualModeKeyMap defines key bindings for manual address entry
type manualModeKeyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (m manualModeKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{m.Confirm, m.Cancel}
}

// FullHelp returns keybindings for the expanded help view
func (m manualModeKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{m.Confirm, m.Cancel}}
}

// deviceItem wraps a Device for use with bubbles/list
type deviceItem struct {
	device *discovery.Device
	known  bool // came from the saved registry rather than a scan
}

func (d deviceItem) FilterValue() string {
	return d.device.Name + " " + d.device.IP + " " + d.device.Hostname
}

func (d deviceItem) Title() string {
	if d.device.Name != "" {
		return d.device.Name
	}
	return d.device.IP
}

func (d deviceItem) Description() string {
	return fmt.Sprintf("%s • %s", d.address(), d.origin())
}

func (d deviceItem) address() string {
	return net.JoinHostPort(d.device.IP, strconv.Itoa(d.device.Port))
}

func (d deviceItem) origin() string {
	if d.known {
		return "saved"
	}
	if label := d.device.SourceLabel(); label != "" {
		return label
	}
	return "manual"
}

// deviceDelegate renders adapters as cards
type deviceDelegate struct {
	width int
}

func (d deviceDelegate) Height() int { return 6 }

func (d deviceDelegate) Spacing() int { return 1 }

func (d deviceDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d deviceDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(deviceItem)
	if !ok {
		return
	}
	selected := index == m.Index()

	var content strings.Builder
	if selected {
		content.WriteString(SelectedMenuItemStyle.Render("→ " + it.Title()))
	} else {
		content.WriteString("  " + it.Title())
	}
	content.WriteString("\n")

	buses := "-"
	if len(it.device.Buses) > 0 {
		buses = strings.Join(it.device.Buses, ", ")
	}
	content.WriteString(fmt.Sprintf("  Address: %s\n", it.address()))
	content.WriteString(fmt.Sprintf("  Buses:   %s\n", buses))

	foundStyle := lipgloss.NewStyle().Foreground(SecondaryColor).Bold(true)
	content.WriteString(fmt.Sprintf("  Found:   %s", foundStyle.Render(it.origin())))

	cardWidth := d.width - 6
	if cardWidth < MinTerminalWidth-6 {
		cardWidth = MinTerminalWidth - 6
	}
	if cardWidth > MaxContentWidth-6 {
		cardWidth = MaxContentWidth - 6
	}

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(BorderColor).
		Padding(0, 2).
		MarginLeft(2).
		Width(cardWidth)
	if selected {
		cardStyle = cardStyle.BorderForeground(HighlightColor)
	}

	fmt.Fprint(w, cardStyle.Render(content.String()))
}

// DiscoveryModel is the adapter discovery screen
type DiscoveryModel struct {
	Scanner *discovery.Scanner
	Known   []*discovery.Device

	// Discovery state
	Scanning   bool
	DeviceList list.Model
	Selected   bool
	Err        error

	// Manual address entry state
	ManualMode  bool
	AddrInput   textinput.Model
	DefaultPort int

	// UI state
	Width         int
	Height        int
	Spinner       spinner.Model
	ProgressBar   progress.Model
	ScanStartTime time.Time
	Help          help.Model
	Keys          discoveryKeyMap
	ManualKeys    manualModeKeyMap

	ctx context.Context
}

// NewDiscoveryModel creates the discovery screen. Known adapters from the
// registry are listed before anything is scanned.
func NewDiscoveryModel(scanner *discovery.Scanner, known []*discovery.Device, defaultPort int) DiscoveryModel {
	if scanner == nil {
		scanner = discovery.NewScanner()
	}
	if defaultPort == 0 {
		defaultPort = discovery.DefaultPort
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	addrInput := textinput.New()
	addrInput.Placeholder = "192.168.2.163 or host:port"
	addrInput.CharLimit = 64
	addrInput.Width = 30

	progressBar := progress.New(progress.WithDefaultGradient())
	progressBar.Width = 40

	deviceList := list.New(nil, deviceDelegate{width: MinTerminalWidth}, 0, 0)
	deviceList.Title = "CAN Adapters"
	deviceList.SetShowStatusBar(false)
	deviceList.SetFilteringEnabled(true)
	deviceList.Styles.Title = SectionTitleStyle

	m := DiscoveryModel{
		Scanner:     scanner,
		Known:       known,
		DeviceList:  deviceList,
		AddrInput:   addrInput,
		DefaultPort: defaultPort,
		Spinner:     s,
		ProgressBar: progressBar,
		Help:        help.New(),
		Keys: discoveryKeyMap{
			Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "move up")),
			Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "move down")),
			Enter:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
			Rescan: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rescan")),
			Manual: key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "enter address")),
			Quit:   key.NewBinding(key.WithKeys("q", "esc"), key.WithHelp("q", "quit")),
		},
		ManualKeys: manualModeKeyMap{
			Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
			Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		},
	}
	m.resetItems()
	return m
}

// Init starts the first scan
func (m DiscoveryModel) Init() tea.Cmd {
	return tea.Batch(startScan(m.scanContext(), m.Scanner), m.Spinner.Tick)
}

func (m DiscoveryModel) scanContext() context.Context {
	if m.ctx != nil {
		return m.ctx
	}
	return context.Background()
}

// WithContext bounds scans by ctx
func (m DiscoveryModel) WithContext(ctx context.Context) DiscoveryModel {
	m.ctx = ctx
	return m
}

func (m *DiscoveryModel) resetItems() {
	items := make([]list.Item, 0, len(m.Known))
	for _, d := range m.Known {
		items = append(items, deviceItem{device: d, known: true})
	}
	m.DeviceList.SetItems(items)
}

// addDevice inserts a scanned adapter, replacing a saved entry with the same IP.
func (m *DiscoveryModel) addDevice(d *discovery.Device) {
	items := m.DeviceList.Items()
	for i, it := range items {
		if di, ok := it.(deviceItem); ok && di.device.IP == d.IP {
			items[i] = deviceItem{device: d}
			m.DeviceList.SetItems(items)
			return
		}
	}
	m.DeviceList.InsertItem(len(items), deviceItem{device: d})
}

// Update handles messages and updates the model
func (m DiscoveryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.ManualMode {
			return m.updateManualMode(msg)
		}
		if m.DeviceList.FilterState() != list.Filtering {
			if model, cmd, handled := m.updateNormalMode(msg); handled {
				return model, cmd
			}
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.DeviceList.SetDelegate(deviceDelegate{width: msg.Width})
		m.DeviceList.SetWidth(msg.Width - 4)
		m.DeviceList.SetHeight(msg.Height - 12)
		return m, nil

	case scanStartedMsg:
		m.Scanning = true
		m.ScanStartTime = time.Now()
		return m, waitForScanEvent(msg.events)

	case deviceFoundMsg:
		m.addDevice(msg.device)
		return m, waitForScanEvent(msg.events)

	case scanCompleteMsg:
		m.Scanning = false
		m.Err = msg.err
		for _, d := range msg.devices {
			m.addDevice(d)
		}
		return m, nil

	case spinner.TickMsg:
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	if !m.ManualMode {
		m.DeviceList, cmd = m.DeviceList.Update(msg)
	}
	return m, cmd
}

// updateNormalMode handles keys on the device list. handled is false for
// keys the list itself should see.
func (m DiscoveryModel) updateNormalMode(msg tea.KeyMsg) (DiscoveryModel, tea.Cmd, bool) {
	switch msg.String() {
	case "enter":
		if m.DeviceList.SelectedItem() != nil {
			m.Selected = true
		}
		return m, nil, true

	case "r":
		if m.Scanning {
			return m, nil, true
		}
		m.Err = nil
		m.resetItems()
		return m, tea.Batch(startScan(m.scanContext(), m.Scanner), m.Spinner.Tick), true

	case "m":
		m.ManualMode = true
		m.AddrInput.SetValue("")
		m.AddrInput.Focus()
		return m, textinput.Blink, true
	}
	return m, nil, false
}

// updateManualMode handles keyboard input in manual address entry mode
func (m DiscoveryModel) updateManualMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg.String() {
	case "esc":
		m.ManualMode = false
		m.AddrInput.Blur()
		return m, nil

	case "enter":
		if d := ManualDevice(m.AddrInput.Value(), m.DefaultPort); d != nil {
			m.DeviceList.InsertItem(0, deviceItem{device: d})
			m.DeviceList.Select(0)
			m.ManualMode = false
			m.AddrInput.Blur()
			m.Selected = true
		}
		return m, nil
	}

	m.AddrInput, cmd = m.AddrInput.Update(msg)
	return m, cmd
}

// ManualDevice builds a device from a typed "host" or "host:port". It
// returns nil for blank input.
func ManualDevice(addr string, defaultPort int) *discovery.Device {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil
	}
	host, port := addr, defaultPort
	if h, p, err := net.SplitHostPort(addr); err == nil {
		if n, err := strconv.Atoi(p); err == nil {
			host, port = h, n
		}
	}
	return &discovery.Device{
		IP:           host,
		Port:         port,
		Hostname:     host,
		DiscoveredAt: time.Now(),
	}
}

// View renders the discovery screen
func (m DiscoveryModel) View() string {
	width := m.Width
	if width == 0 {
		width = MinTerminalWidth
	}

	var content, helpText string
	switch {
	case m.ManualMode:
		content = m.renderManualEntry()
		helpText = m.Help.View(m.ManualKeys)
	default:
		content = m.renderDeviceResults(width)
		helpText = m.Help.View(m.Keys)
	}

	return RenderApplicationContainer(content, helpText, m.Width, m.Height)
}

// renderScanning renders the scan progress line shown above the list
func (m DiscoveryModel) renderScanning(width int) string {
	elapsed := time.Since(m.ScanStartTime)
	total := m.Scanner.Timeout
	if total <= 0 {
		total = discovery.DefaultScanTimeout
	}
	percent := float64(elapsed) / float64(total)
	if percent > 1 {
		percent = 1
	}

	title := fmt.Sprintf("%s Listening for CAN beacons and mDNS adverts...", m.Spinner.View())
	content := lipgloss.JoinVertical(lipgloss.Center,
		"",
		SectionTitleStyle.Render(title),
		"",
		m.ProgressBar.ViewAs(percent),
		SubtitleStyle.Render(fmt.Sprintf("Elapsed: %ds", int(elapsed.Seconds()))),
		"",
	)
	return lipgloss.Place(width-4, 0, lipgloss.Center, lipgloss.Top, content)
}

// renderDeviceResults renders the device list or a "nothing found" message
func (m DiscoveryModel) renderDeviceResults(width int) string {
	var b strings.Builder

	if m.Scanning {
		b.WriteString(m.renderScanning(width))
		b.WriteString("\n")
	}

	switch {
	case m.Err != nil:
		b.WriteString(RenderError(fmt.Sprintf("Scan failed: %v", m.Err)))
		b.WriteString("\n\n")
		b.WriteString(troubleshootingText)

	case len(m.DeviceList.Items()) == 0 && !m.Scanning:
		b.WriteString("\n  ")
		b.WriteString(WarningMessageStyle.Bold(true).Render("⚠ No adapters found on your network"))
		b.WriteString("\n\n")
		b.WriteString(troubleshootingText)

	default:
		b.WriteString(m.DeviceList.View())
	}

	return b.String()
}

const troubleshootingText = `  Troubleshooting:
    • Ensure the adapter is powered and its Ethernet link is up
    • Beacons are UDP broadcasts on port 42000; they do not cross routers
    • Allow UDP 42000 and mDNS (5353) through the local firewall
    • Press 'm' to enter the adapter address directly
`

// renderManualEntry renders the manual address entry dialog
func (m DiscoveryModel) renderManualEntry() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(RenderSubtitle("  Enter the adapter address"))
	b.WriteString("\n\n")
	b.WriteString("  Address: ")
	b.WriteString(m.AddrInput.View())
	b.WriteString("\n\n")

	return b.String()
}

// GetSelectedDevice returns the selected device (if any)
func (m DiscoveryModel) GetSelectedDevice() *discovery.Device {
	if !m.Selected {
		return nil
	}
	if item, ok := m.DeviceList.SelectedItem().(deviceItem); ok {
		return item.device
	}
	return nil
}

// startScan runs Scanner.Watch in the background and streams its results
// as tea messages.
func startScan(ctx context.Context, scanner *discovery.Scanner) tea.Cmd {
	return func() tea.Msg {
		events := make(chan tea.Msg, 8)
		go func() {
			defer close(events)
			devices, err := scanner.Watch(ctx, func(d *discovery.Device) {
				select {
				case events <- deviceFoundMsg{device: d, events: events}:
				case <-ctx.Done():
				}
			})
			select {
			case events <- scanCompleteMsg{devices: devices, err: err}:
			case <-ctx.Done():
			}
		}()
		return scanStartedMsg{events: events}
	}
}

// waitForScanEvent delivers the next scan event. deviceFoundMsg re-arms it
// until the scan completes.
func waitForScanEvent(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return nil
		}
		return msg
	}
}

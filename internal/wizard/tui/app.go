package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/muurk/canbridge/internal/deviceconfig"
	"github.com/muurk/canbridge/internal/discovery"
	"github.com/muurk/canbridge/internal/logging"
	"github.com/muurk/canbridge/internal/session"
)

// Screen represents the current active screen in the application
type Screen string

const (
	ScreenDiscovery Screen = "discovery"
	ScreenDashboard Screen = "dashboard"
)

// Config holds everything the console needs from the command line.
type Config struct {
	// Scanner finds adapters; nil uses discovery.NewScanner()
	Scanner *discovery.Scanner

	// Known adapters from the registry, listed before scan results
	Known []*discovery.Device

	// Start opens this adapter directly, skipping discovery
	Start *discovery.Device

	// Options are the session timings
	Options session.Options

	// APIPrefix is the path prefix of the adapter API (default "/api")
	APIPrefix string

	// DefaultPort is used for manually entered addresses without a port
	DefaultPort int

	// OnConnect is called when an adapter is opened
	OnConnect func(*discovery.Device)
}

// AppModel is the top-level coordinator model that manages screen transitions
type AppModel struct {
	CurrentScreen Screen

	DiscoveryModel DiscoveryModel
	DashboardModel DashboardModel

	SelectedDevice *discovery.Device
	Manager        *session.Manager

	Width  int
	Height int

	config Config
	ctx    context.Context
	cancel context.CancelFunc
	log    *zap.Logger
}

// NewAppModel creates the application model. It starts on the dashboard
// when cfg.Start is set, otherwise on discovery.
func NewAppModel(ctx context.Context, cfg Config) AppModel {
	ctx, cancel := context.WithCancel(ctx)
	m := AppModel{
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
		log:    logging.Named("tui"),
	}

	if cfg.Start != nil {
		return m.connect(cfg.Start)
	}
	m.CurrentScreen = ScreenDiscovery
	m.DiscoveryModel = m.newDiscovery()
	return m
}

func (m AppModel) newDiscovery() DiscoveryModel {
	return NewDiscoveryModel(m.config.Scanner, m.config.Known, m.config.DefaultPort).WithContext(m.ctx)
}

// Init initializes the application
func (m AppModel) Init() tea.Cmd {
	switch m.CurrentScreen {
	case ScreenDashboard:
		return m.DashboardModel.Init()
	default:
		return m.DiscoveryModel.Init()
	}
}

// Update handles all messages and routes them to the appropriate screen
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

		if m.CurrentScreen == ScreenDiscovery {
			d, _ := m.DiscoveryModel.Update(msg)
			m.DiscoveryModel = d.(DiscoveryModel)
		}
		if m.Manager != nil {
			db, _ := m.DashboardModel.Update(msg)
			m.DashboardModel = db.(DashboardModel)
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}

	return m.updateCurrentScreen(msg)
}

// updateCurrentScreen routes updates to the currently active screen
func (m AppModel) updateCurrentScreen(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.CurrentScreen {
	case ScreenDiscovery:
		if keyMsg, ok := msg.(tea.KeyMsg); ok && m.canQuitDiscovery() {
			if s := keyMsg.String(); s == "q" || s == "esc" {
				return m, tea.Quit
			}
		}

		updated, c := m.DiscoveryModel.Update(msg)
		m.DiscoveryModel = updated.(DiscoveryModel)
		cmd = c

		if dev := m.DiscoveryModel.GetSelectedDevice(); dev != nil {
			m = m.connect(dev)
			return m, m.DashboardModel.Init()
		}

	case ScreenDashboard:
		updated, c := m.DashboardModel.Update(msg)
		m.DashboardModel = updated.(DashboardModel)
		cmd = c

		if m.DashboardModel.IsBackRequested() {
			return m.backToDiscovery()
		}
	}

	return m, cmd
}

func (m AppModel) canQuitDiscovery() bool {
	return !m.DiscoveryModel.ManualMode && m.DiscoveryModel.DeviceList.FilterState() == list.Unfiltered
}

// connect starts a session with dev and shows the dashboard
func (m AppModel) connect(dev *discovery.Device) AppModel {
	m.closeSession()

	client := deviceconfig.NewClient(dev.IP, dev.Port)
	if m.config.APIPrefix != "" {
		client.SetAPIPrefix(m.config.APIPrefix)
	}

	m.log.Info("Opening adapter", zap.String("url", dev.BaseURL()))
	m.Manager = session.NewClientManager(client, m.config.Options)
	m.Manager.Start(m.ctx)

	if m.config.OnConnect != nil {
		m.config.OnConnect(dev)
	}

	name := dev.Name
	if name == "" {
		name = dev.IP
	}

	m.SelectedDevice = dev
	m.CurrentScreen = ScreenDashboard
	m.DashboardModel = NewDashboardModel(m.ctx, name, dev.BaseURL(), m.Manager)
	if m.Width > 0 {
		db, _ := m.DashboardModel.Update(tea.WindowSizeMsg{Width: m.Width, Height: m.Height})
		m.DashboardModel = db.(DashboardModel)
	}
	return m
}

// backToDiscovery closes the session and rescans
func (m AppModel) backToDiscovery() (tea.Model, tea.Cmd) {
	m.closeSession()
	m.CurrentScreen = ScreenDiscovery
	m.DiscoveryModel = m.newDiscovery()
	if m.Width > 0 {
		d, _ := m.DiscoveryModel.Update(tea.WindowSizeMsg{Width: m.Width, Height: m.Height})
		m.DiscoveryModel = d.(DiscoveryModel)
	}
	return m, m.DiscoveryModel.Init()
}

func (m *AppModel) closeSession() {
	if m.Manager != nil {
		m.Manager.Close()
		m.Manager = nil
	}
}

// Close stops the active session and any scan in progress
func (m AppModel) Close() {
	m.closeSession()
	if m.cancel != nil {
		m.cancel()
	}
}

// View renders the current screen
func (m AppModel) View() string {
	switch m.CurrentScreen {
	case ScreenDashboard:
		return m.DashboardModel.View()
	default:
		return m.DiscoveryModel.View()
	}
}

// Run starts the console and blocks until the user quits.
func Run(ctx context.Context, cfg Config) error {
	model := NewAppModel(ctx, cfg)
	final, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if app, ok := final.(AppModel); ok {
		app.Close()
	} else {
		model.Close()
	}
	return err
}

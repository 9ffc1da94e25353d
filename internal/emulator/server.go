package emulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/muurk/canbridge/internal/discovery"
	"github.com/muurk/canbridge/internal/logging"
	"go.uber.org/zap"
)

// Config holds the emulator configuration.
type Config struct {
	Listen    string // TCP address of the web server, e.g. ":8080"
	StatePath string // YAML settings file, empty = in memory
	APIPrefix string // Path prefix of the endpoints, "/api" by default

	Name        string   // Adapter name used for the beacon and mDNS
	Description string   // Beacon description attribute
	Buses       []string // CAN buses announced in the beacon

	Beacon       bool          // Broadcast CANBeacons
	BeaconTarget string        // Broadcast address, default 255.255.255.255:42000
	MDNS         bool          // Register the mDNS service
	RestartDelay time.Duration // Downtime after accepting new settings
	Heartbeat    time.Duration // OpenCyphal heartbeat period, 0 = none
}

// DefaultConfig returns the configuration used by `emulate` without flags.
func DefaultConfig() Config {
	return Config{
		Listen:       ":8080",
		APIPrefix:    "/api",
		Name:         "ESP32-socketcand",
		Description:  "canbridge emulated adapter",
		Buses:        []string{"can0"},
		RestartDelay: time.Second,
		Heartbeat:    time.Second,
	}
}

// Server is an emulated adapter web server.
type Server struct {
	config   Config
	store    *Store
	counters *Counters
	reporter *Reporter
	engine   *gin.Engine
	log      *zap.Logger

	mu           sync.Mutex
	restartUntil time.Time
	restarts     int
}

// New creates an emulator backed by store.
func New(config Config, store *Store) *Server {
	if config.APIPrefix == "" {
		config.APIPrefix = "/api"
	}
	if config.Name == "" {
		config.Name = DefaultConfig().Name
	}

	counters := &Counters{}
	s := &Server{
		config:   config,
		store:    store,
		counters: counters,
		reporter: NewReporter(counters),
		log:      logging.Named("emulator"),
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), s.whileRestarting())

	api := r.Group(s.config.APIPrefix)
	api.GET("/status", s.handleGetStatus)
	api.GET("/config", s.handleGetConfig)
	api.POST("/config", s.handlePostConfig)
	return r
}

// Handler returns the HTTP handler serving the adapter API.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Store returns the settings store.
func (s *Server) Store() *Store {
	return s.store
}

// Counters returns the live traffic counters.
func (s *Server) Counters() *Counters {
	return s.counters
}

// Reporter returns the status reporter.
func (s *Server) Reporter() *Reporter {
	return s.reporter
}

// Restarts returns how many times accepted settings triggered a restart.
func (s *Server) Restarts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("Request served",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status_code", c.Writer.Status()),
			zap.String("remote_addr", c.ClientIP()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

// whileRestarting answers 503 while the adapter is "rebooting" after a save.
func (s *Server) whileRestarting() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		down := time.Now().Before(s.restartUntil)
		s.mu.Unlock()
		if down {
			c.String(http.StatusServiceUnavailable, ReplyRestarting)
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) restart() {
	s.mu.Lock()
	s.restarts++
	s.restartUntil = time.Now().Add(s.config.RestartDelay)
	s.mu.Unlock()
	s.reporter.Restarted()
	s.log.Info("Restarting to apply settings", zap.Duration("downtime", s.config.RestartDelay))
}

func (s *Server) handleGetStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	c.JSON(http.StatusOK, s.reporter.Report(ctx, s.store.Settings()))
}

func (s *Server) handleGetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Settings().Record())
}

func (s *Server) handlePostConfig(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPostContent+1))
	if err != nil {
		c.String(http.StatusInternalServerError, ReplyBadQuery)
		return
	}
	if len(body) > maxPostContent {
		c.String(http.StatusInternalServerError, ReplyTooLong)
		return
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		c.String(http.StatusInternalServerError, ReplyBadQuery)
		return
	}

	changed, err := s.store.Apply(form)
	if err != nil {
		var rej *RejectError
		if errors.As(err, &rej) {
			s.log.Warn("Rejected settings", zap.String("reason", rej.Reply))
			c.String(http.StatusInternalServerError, rej.Reply)
			return
		}
		s.log.Error("Couldn't save settings", zap.Error(err))
		c.String(http.StatusInternalServerError, ReplySaveFailed)
		return
	}

	s.log.Info("Settings updated", zap.Strings("keys", changed))
	c.String(http.StatusOK, ReplyUpdating)
	s.restart()
}

// Run serves the API on config.Listen until ctx is canceled.
// Beacon broadcasting, mDNS registration and the heartbeat counter run
// alongside when enabled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	port := 0
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		port = addr.Port
	}

	logging.Info("Starting adapter emulator",
		zap.String("addr", ln.Addr().String()),
		zap.String("api_prefix", s.config.APIPrefix),
		zap.String("state_file", s.store.Path()),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	if s.config.Heartbeat > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.heartbeat(ctx)
		}()
	}

	if s.config.Beacon {
		b := &discovery.Broadcaster{
			Beacon: discovery.NewBeacon(s.config.Name, s.config.Description, beaconIPs(s.store.Settings()), s.config.Buses...),
			Target: s.config.BeaconTarget,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.Run(ctx); err != nil {
				logging.Warn("Beacon broadcaster stopped", zap.Error(err))
			}
		}()
	}

	if s.config.MDNS {
		adv, err := discovery.Advertise(s.config.Name, port, s.config.Buses, "api="+s.config.APIPrefix)
		if err != nil {
			logging.Warn("Couldn't register mDNS service", zap.Error(err))
		} else {
			defer adv.Shutdown()
		}
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		cancel()
		wg.Wait()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}

	logging.Info("Shutting down adapter emulator")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	err := srv.Shutdown(shutdownCtx)
	wg.Wait()
	return err
}

func (s *Server) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(s.config.Heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.counters.HeartbeatsSent.Add(1)
		}
	}
}

// beaconIPs lists the adapter addresses announced in socketcand URLs.
// The firmware announces its configured interface addresses; the emulator
// announces the host's non-loopback IPv4 addresses, falling back to the
// configured Ethernet address.
func beaconIPs(settings Settings) []string {
	var ips []string
	if addrs, err := net.InterfaceAddrs(); err == nil {
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok || ipnet.IP.IsLoopback() || ipnet.IP.To4() == nil {
				continue
			}
			ips = append(ips, ipnet.IP.String())
		}
	}
	if len(ips) == 0 && settings.EthIP != "" {
		ips = append(ips, settings.EthIP)
	}
	return ips
}

// ListenAddr formats host and port for Config.Listen.
func ListenAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

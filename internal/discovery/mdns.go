package discovery

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/canbridge/internal/logging"
)

const (
	// ServiceType is the mDNS service type adapters advertise their web UI as
	ServiceType = "_http._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DeviceTXTKey and DeviceTXTValue mark an adapter among other HTTP services
	DeviceTXTKey   = "device"
	DeviceTXTValue = "socketcand"

	// DefaultScanTimeout is the default timeout for device discovery.
	// Beacons arrive every 2s, so this catches at least two rounds.
	DefaultScanTimeout = 5 * time.Second

	// DefaultPort is the default HTTP port for adapters
	DefaultPort = 80
)

// Scanner finds adapters by listening for CANBeacons and browsing mDNS.
type Scanner struct {
	// Timeout is the maximum time to wait for device discovery
	Timeout time.Duration

	// BeaconPort is the UDP port to listen on (default 42000)
	BeaconPort int

	// DisableBeacon turns off the UDP beacon listener
	DisableBeacon bool

	// DisableMDNS turns off mDNS browsing
	DisableMDNS bool
}

// NewScanner creates a new scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout:    DefaultScanTimeout,
		BeaconPort: BeaconPort,
	}
}

// collector merges devices reported concurrently by several sources.
type collector struct {
	mu      sync.Mutex
	byIP    map[string]*Device
	onFound func(*Device)
}

func newCollector(onFound func(*Device)) *collector {
	return &collector{byIP: make(map[string]*Device), onFound: onFound}
}

func (c *collector) add(d *Device) {
	c.mu.Lock()
	existing, ok := c.byIP[d.IP]
	if ok {
		existing.merge(d)
	} else {
		c.byIP[d.IP] = d
	}
	cb := c.onFound
	c.mu.Unlock()

	if !ok && cb != nil {
		cb(d)
	}
}

func (c *collector) devices() []*Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Device, 0, len(c.byIP))
	for _, d := range c.byIP {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DiscoveredAt.Before(out[j].DiscoveredAt)
	})
	return out
}

// ScanForDevicesWithContext discovers devices with a custom context. It
// returns once the timeout expires or ctx is canceled.
func (s *Scanner) ScanForDevicesWithContext(ctx context.Context) ([]*Device, error) {
	return s.scan(ctx, nil, nil)
}

// Watch reports each newly found adapter through found until the timeout
// expires. Devices seen by several sources are reported once.
func (s *Scanner) Watch(ctx context.Context, found func(*Device)) ([]*Device, error) {
	return s.scan(ctx, found, nil)
}

// scan runs the enabled sources until ctx or the timeout ends, or stop
// returns true for a found device.
func (s *Scanner) scan(ctx context.Context, found func(*Device), stop func(*Device) bool) ([]*Device, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	col := newCollector(func(d *Device) {
		if found != nil {
			found(d)
		}
		if stop != nil && stop(d) {
			cancel()
		}
	})

	var wg sync.WaitGroup
	var failures []error

	if !s.DisableBeacon {
		port := s.BeaconPort
		if port == 0 {
			port = BeaconPort
		}
		conn, err := net.ListenPacket("udp4", fmt.Sprintf(":%d", port))
		if err != nil {
			failures = append(failures, fmt.Errorf("failed to listen for beacons on port %d: %w", port, err))
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer conn.Close()
				if err := ListenBeacons(ctx, conn, col.add); err != nil {
					logging.Warn("Beacon listener stopped", zap.Error(err))
				}
			}()
		}
	}

	if !s.DisableMDNS {
		if err := s.browse(ctx, &wg, col); err != nil {
			failures = append(failures, err)
		}
	}

	enabled := 0
	if !s.DisableBeacon {
		enabled++
	}
	if !s.DisableMDNS {
		enabled++
	}
	if enabled > 0 && len(failures) == enabled {
		cancel()
		wg.Wait()
		return nil, failures[0]
	}
	for _, err := range failures {
		logging.Warn("Discovery source unavailable", zap.Error(err))
	}

	<-ctx.Done()
	wg.Wait()

	return col.devices(), nil
}

// browse starts an mDNS browse feeding col. The goroutine it starts exits
// when zeroconf closes the entries channel after ctx ends.
func (s *Scanner) browse(ctx context.Context, wg *sync.WaitGroup, col *collector) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for entry := range entries {
			if device := s.parseServiceEntry(entry); device != nil {
				col.add(device)
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}
	return nil
}

// WaitForDeviceWithContext waits for an adapter whose name, hostname or IP
// matches nameOrIP (case-insensitive).
func (s *Scanner) WaitForDeviceWithContext(ctx context.Context, nameOrIP string) (*Device, error) {
	var (
		mu    sync.Mutex
		match *Device
	)
	matches := func(d *Device) bool {
		ok := strings.EqualFold(d.Name, nameOrIP) ||
			strings.EqualFold(strings.TrimSuffix(d.Hostname, "."), strings.TrimSuffix(nameOrIP, ".")) ||
			d.IP == nameOrIP
		if ok {
			mu.Lock()
			if match == nil {
				match = d
			}
			mu.Unlock()
		}
		return ok
	}

	if _, err := s.scan(ctx, nil, matches); err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	if match == nil {
		return nil, fmt.Errorf("adapter %s not found within %v", nameOrIP, s.Timeout)
	}
	return match, nil
}

// parseServiceEntry converts a zeroconf service entry to a Device
// Returns nil if the entry is not a CAN adapter
func (s *Scanner) parseServiceEntry(entry *zeroconf.ServiceEntry) *Device {
	metadata := parseTXT(entry.Text)
	if metadata[DeviceTXTKey] != DeviceTXTValue {
		return nil
	}

	// Get IP address (prefer IPv4)
	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}

	// Fallback to IPv6 if no IPv4
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}

	if ip == "" {
		return nil
	}

	// Get port (default to 80 if not specified)
	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	d := &Device{
		Name:         entry.Instance,
		Type:         "adapter",
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Sources:      []Source{SourceMDNS},
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
	if bus := metadata["bus"]; bus != "" {
		d.Buses = strings.Split(bus, ",")
	}
	return d
}

// parseTXT splits "key=value" TXT records; keys without a value map to "".
func parseTXT(records []string) map[string]string {
	metadata := make(map[string]string, len(records))
	for _, txt := range records {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}
	return metadata
}

// Advertisement is a running mDNS registration.
type Advertisement struct {
	server *zeroconf.Server
}

// Advertise registers an adapter's web UI over mDNS with the TXT record
// scanners look for. Extra TXT entries are appended as given.
func Advertise(instance string, port int, buses []string, extra ...string) (*Advertisement, error) {
	txt := []string{DeviceTXTKey + "=" + DeviceTXTValue, "path=/"}
	if len(buses) > 0 {
		txt = append(txt, "bus="+strings.Join(buses, ","))
	}
	txt = append(txt, extra...)

	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}
	logging.Info("mDNS service registered",
		zap.String("instance", instance),
		zap.Int("port", port),
	)
	return &Advertisement{server: server}, nil
}

// Shutdown withdraws the advertisement.
func (a *Advertisement) Shutdown() {
	if a != nil && a.server != nil {
		a.server.Shutdown()
	}
}

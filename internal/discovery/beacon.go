package discovery

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/canbridge/internal/logging"
)

const (
	// BeaconPort is the UDP port adapters broadcast their CANBeacon on
	BeaconPort = 42000

	// BeaconInterval is how often the firmware sends a beacon
	BeaconInterval = 2 * time.Second

	// SocketcandPort is the TCP port of the socketcand service
	SocketcandPort = 9999

	maxBeaconSize = 2048
)

// Beacon is the XML document adapters broadcast over UDP:
//
//	<CANBeacon name='ESP32-socketcand' type='adapter' description='...'>
//	  <URL>can://192.168.2.163:9999</URL>
//	  <Bus name='can0'/>
//	</CANBeacon>
type Beacon struct {
	XMLName     xml.Name    `xml:"CANBeacon"`
	Name        string      `xml:"name,attr"`
	Type        string      `xml:"type,attr"`
	Description string      `xml:"description,attr"`
	URLs        []string    `xml:"URL"`
	Buses       []BeaconBus `xml:"Bus"`
}

// BeaconBus names one CAN bus exposed by the adapter.
type BeaconBus struct {
	Name string `xml:"name,attr"`
}

// NewBeacon builds the beacon an adapter with the given addresses sends.
// One socketcand URL is added per address.
func NewBeacon(name, description string, ips []string, buses ...string) *Beacon {
	b := &Beacon{
		Name:        name,
		Type:        "adapter",
		Description: description,
	}
	for _, ip := range ips {
		b.URLs = append(b.URLs, fmt.Sprintf("can://%s:%d", ip, SocketcandPort))
	}
	for _, bus := range buses {
		b.Buses = append(b.Buses, BeaconBus{Name: bus})
	}
	return b
}

// ParseBeacon decodes a CANBeacon datagram.
func ParseBeacon(data []byte) (*Beacon, error) {
	var b Beacon
	if err := xml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("invalid CANBeacon: %w", err)
	}
	return &b, nil
}

// Encode renders the beacon as sent on the wire.
func (b *Beacon) Encode() ([]byte, error) {
	out, err := xml.Marshal(b)
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// Device converts the beacon into a Device. The IP comes from the first
// socketcand URL, falling back to the sender address.
func (b *Beacon) Device(from net.Addr) *Device {
	d := &Device{
		Name:         b.Name,
		Type:         b.Type,
		Description:  b.Description,
		Port:         DefaultPort,
		CANURLs:      append([]string(nil), b.URLs...),
		Sources:      []Source{SourceBeacon},
		DiscoveredAt: time.Now(),
	}
	for _, bus := range b.Buses {
		d.Buses = append(d.Buses, bus.Name)
	}

	for _, raw := range b.URLs {
		u, err := url.Parse(raw)
		if err == nil && u.Hostname() != "" {
			d.IP = u.Hostname()
			break
		}
	}
	if d.IP == "" && from != nil {
		if ua, ok := from.(*net.UDPAddr); ok {
			d.IP = ua.IP.String()
		} else if host, _, err := net.SplitHostPort(from.String()); err == nil {
			d.IP = host
		}
	}
	return d
}

// ListenBeacons reads datagrams from conn until ctx is done, calling found
// for every valid beacon. Malformed datagrams are skipped.
func ListenBeacons(ctx context.Context, conn net.PacketConn, found func(*Device)) error {
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	buf := make([]byte, maxBeaconSize)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("failed to read beacon: %w", err)
		}

		b, err := ParseBeacon(buf[:n])
		if err != nil {
			logging.Debug("Ignoring datagram", zap.Stringer("from", addr), zap.Error(err))
			continue
		}

		d := b.Device(addr)
		if d.IP == "" {
			continue
		}
		logging.Debug("Beacon received", zap.String("name", d.Name), zap.String("ip", d.IP))
		found(d)
	}
}

// Broadcaster periodically sends a beacon, the way adapter firmware does.
type Broadcaster struct {
	// Beacon is the document to send
	Beacon *Beacon

	// Target is the destination address (default "255.255.255.255:42000")
	Target string

	// Interval between sends (default 2s)
	Interval time.Duration
}

// Run sends the beacon every Interval until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) error {
	target := b.Target
	if target == "" {
		target = fmt.Sprintf("255.255.255.255:%d", BeaconPort)
	}
	interval := b.Interval
	if interval <= 0 {
		interval = BeaconInterval
	}

	dst, err := net.ResolveUDPAddr("udp4", target)
	if err != nil {
		return fmt.Errorf("invalid beacon target %q: %w", target, err)
	}

	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return fmt.Errorf("failed to open beacon socket: %w", err)
	}
	defer conn.Close()

	msg, err := b.Beacon.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode beacon: %w", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := conn.WriteTo(msg, dst); err != nil {
			logging.Warn("Couldn't send beacon", zap.String("target", target), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

package emulator

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Counters are the traffic statistics reported under "Application status"
// and "OpenCyphal Node status". The emulator has no CAN bus, so only the
// heartbeat counter moves.
type Counters struct {
	SocketcandFramesReceived atomic.Int64
	InvalidSocketcandFrames  atomic.Int64
	CANFramesSent            atomic.Int64
	CANFrameSendTimeouts     atomic.Int64
	CANFramesReceived        atomic.Int64
	CANFramesDropped         atomic.Int64
	SocketcandFramesSent     atomic.Int64
	HeartbeatsSent           atomic.Int64
	HeartbeatsReceived       atomic.Int64
}

type statusReport struct {
	Uptime      int64             `json:"Uptime (seconds)"`
	Ethernet    any               `json:"Ethernet status"`
	WiFi        any               `json:"Wi-Fi status"`
	CAN         canStatus         `json:"CAN Driver status"`
	Application applicationStatus `json:"Application status"`
	Cyphal      cyphalStatus      `json:"OpenCyphal Node status"`
	Host        *hostStatus       `json:"Emulator host,omitempty"`
}

type netifStatus struct {
	IsUp       bool   `json:"Is up?"`
	MAC        string `json:"MAC Address"`
	DHCPStatus string `json:"DHCP Status"`
	IP         string `json:"IP"`
	Netmask    string `json:"Network Mask"`
	Gateway    string `json:"Gateway"`
	Type       string `json:"Type"`
}

type canStatus struct {
	State           string `json:"State"`
	Bitrate         int    `json:"Bitrate (kbit/s)"`
	TxQueued        int64  `json:"Total number of messages queued for transmission"`
	RxQueued        int64  `json:"Total number of messages waiting in receive queue"`
	TxErrorCounter  int64  `json:"Transmit error counter"`
	RxErrorCounter  int64  `json:"Receive error counter"`
	TxFailed        int64  `json:"Total number of failed message transmissions"`
	RxMissed        int64  `json:"Total number of failed message receptions"`
	RxOverrun       int64  `json:"Total number of incoming messages lost due to FIFO overrun"`
	ArbitrationLost int64  `json:"Total number of lost arbitrations"`
	BusErrors       int64  `json:"Total number of bus errors"`
}

type applicationStatus struct {
	SocketcandReceived int64 `json:"Total socketcand frames received over TCP"`
	SocketcandInvalid  int64 `json:"Total invalid socketcand frames received over TCP"`
	CANSent            int64 `json:"Total frames from socketcand transmitted to CAN bus"`
	CANSendTimeouts    int64 `json:"Total frames from socketcand that timed out while being transmitted to CAN bus"`
	CANReceived        int64 `json:"Total frames received from CAN bus"`
	CANDropped         int64 `json:"Total received CAN frames dropped"`
	SocketcandSent     int64 `json:"Total socketcand frames sent over TCP"`
}

type cyphalStatus struct {
	HeartbeatsSent     int64 `json:"Total OpenCyphal heartbeats sent"`
	HeartbeatsReceived int64 `json:"Total OpenCyphal heartbeats received"`
}

type hostStatus struct {
	Hostname      string  `json:"Hostname"`
	Platform      string  `json:"Platform"`
	Kernel        string  `json:"Kernel"`
	UptimeSeconds uint64  `json:"Uptime (seconds)"`
	MemoryUsedPct float64 `json:"Memory used (%)"`
}

// Reporter builds the GET /status document.
type Reporter struct {
	started  atomic.Int64 // unix nanoseconds
	counters *Counters

	// IncludeHost adds a section describing the machine running the emulator.
	IncludeHost bool
}

// NewReporter returns a reporter whose uptime starts now.
func NewReporter(counters *Counters) *Reporter {
	r := &Reporter{counters: counters, IncludeHost: true}
	r.Restarted()
	return r
}

// Restarted resets the uptime, as a reboot would.
func (r *Reporter) Restarted() {
	r.started.Store(time.Now().UnixNano())
}

func dhcpStatus(useDHCP bool) string {
	if useDHCP {
		return "started"
	}
	return "stopped"
}

// Report assembles the status for the given settings.
func (r *Reporter) Report(ctx context.Context, s Settings) any {
	c := r.counters
	report := statusReport{
		Uptime: int64(time.Since(time.Unix(0, r.started.Load())) / time.Second),
		Ethernet: netifStatus{
			IsUp:       true,
			MAC:        "02:00:00:00:00:01",
			DHCPStatus: dhcpStatus(s.EthUseDHCP),
			IP:         s.EthIP,
			Netmask:    s.EthNetmask,
			Gateway:    s.EthGateway,
			Type:       "ethernet",
		},
		WiFi: "Disabled",
		CAN: canStatus{
			State:   "running",
			Bitrate: s.CANBitrate,
		},
		Application: applicationStatus{
			SocketcandReceived: c.SocketcandFramesReceived.Load(),
			SocketcandInvalid:  c.InvalidSocketcandFrames.Load(),
			CANSent:            c.CANFramesSent.Load(),
			CANSendTimeouts:    c.CANFrameSendTimeouts.Load(),
			CANReceived:        c.CANFramesReceived.Load(),
			CANDropped:         c.CANFramesDropped.Load(),
			SocketcandSent:     c.SocketcandFramesSent.Load(),
		},
		Cyphal: cyphalStatus{
			HeartbeatsSent:     c.HeartbeatsSent.Load(),
			HeartbeatsReceived: c.HeartbeatsReceived.Load(),
		},
	}

	if s.WiFiEnabled {
		report.WiFi = netifStatus{
			IsUp:       s.WiFiSSID != "",
			MAC:        "02:00:00:00:00:02",
			DHCPStatus: dhcpStatus(s.WiFiUseDHCP),
			IP:         s.WiFiIP,
			Netmask:    s.WiFiNetmask,
			Gateway:    s.WiFiGateway,
			Type:       "wifi",
		}
	}

	if r.IncludeHost {
		report.Host = hostReport(ctx)
	}
	return report
}

// hostReport returns nil if gopsutil can't read the host information.
func hostReport(ctx context.Context) *hostStatus {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil
	}
	hs := &hostStatus{
		Hostname:      info.Hostname,
		Platform:      info.Platform,
		Kernel:        info.KernelVersion,
		UptimeSeconds: info.Uptime,
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		hs.MemoryUsedPct = vm.UsedPercent
	}
	return hs
}

// Package discovery locates CAN adapters on the local network.
//
// Two mechanisms run side by side:
//   - CANBeacon: adapters broadcast a small XML document to UDP port 42000
//     every two seconds, listing their socketcand URLs and CAN buses.
//   - mDNS: adapters that run an mDNS responder advertise their web UI as an
//     "_http._tcp" service with the TXT record "device=socketcand".
//
// Results from both are merged by IP address, so an adapter answering on
// both shows up once with both sources listed.
//
// # Usage Example
//
//	scanner := discovery.NewScanner()
//	scanner.Timeout = 5 * time.Second
//
//	devices, err := scanner.ScanForDevicesWithContext(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, d := range devices {
//	    fmt.Printf("%s  %s  [%s]\n", d.Name, d.BaseURL(), d.SourceLabel())
//	}
//
// # Advertising
//
// The same package provides the sending side, used by the emulator:
// Broadcaster sends CANBeacons and Advertise registers the mDNS service.
//
// # Network Requirements
//
// Beacons are IPv4 broadcasts and do not cross routers. mDNS uses multicast
// on 224.0.0.251:5353. Both need the host firewall to accept inbound UDP.
package discovery

package netutil

import (
	"net"
	"strings"
)

// CGNAT range used by carrier NAT, Cloudflare WARP and Tailscale.
var cgnat = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

var tunnelNames = []string{"tun", "tap", "wg", "ppp", "warp", "utun"}

// ShouldForceRelay reports whether an active interface looks like a VPN
// tunnel or sits behind CGNAT, where only TURN tends to connect.
func ShouldForceRelay() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			addrs = nil
		}
		if restrictive(iface.Name, addrs) {
			return true
		}
	}
	return false
}

func restrictive(name string, addrs []net.Addr) bool {
	name = strings.ToLower(name)
	for _, t := range tunnelNames {
		if strings.Contains(name, t) {
			return true
		}
	}
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip != nil && cgnat.Contains(ip) {
			return true
		}
	}
	return false
}

// Package privacy reduces personal data before it reaches logs and events.
package privacy

import (
	"net/netip"
)

// AnonymizeIP truncates an address to its /24 (IPv4) or /64 (IPv6) network.
// Unparseable input is returned as "invalid" so raw values never leak.
func AnonymizeIP(ip string) string {
	if ip == "" {
		return ""
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "invalid"
	}
	addr = addr.Unmap()
	bits := 64
	if addr.Is4() {
		bits = 24
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "invalid"
	}
	return prefix.String()
}

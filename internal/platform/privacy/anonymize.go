// Package privacy keeps personal data out of logs: client IPs are truncated to
// a network prefix and sensitive request fields are masked before logging.
package privacy

import "net/netip"

// AnonymizeIP truncates an IP address to its network prefix: /24 for IPv4
// (including IPv4-mapped IPv6) and /48 for IPv6.
//
//	"192.168.1.47"                 -> "192.168.1.0"
//	"2001:db8:85a3::8a2e:370:7334" -> "2001:db8:85a3::"
//
// Returns "invalid" for unparseable IP addresses, and "unknown" for empty strings.
func AnonymizeIP(ip string) string {
	if ip == "" || ip == "unknown" {
		return "unknown"
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "invalid"
	}
	addr = addr.WithZone("").Unmap()

	bits := 48
	if addr.Is4() {
		bits = 24
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "invalid"
	}
	return prefix.Addr().String()
}

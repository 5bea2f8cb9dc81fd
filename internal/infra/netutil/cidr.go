package netutil

import "net"

// MustParseCIDRs parses CIDR strings; invalid entries are skipped.
func MustParseCIDRs(cidrs []string) (out []*net.IPNet) {
	for _, s := range cidrs {
		if _, n, err := net.ParseCIDR(s); err == nil {
			out = append(out, n)
		}
	}
	return out
}

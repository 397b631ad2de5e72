package ipreputation

import (
	"fmt"
	"net/netip"
	"strings"
)

// Blocklist is an immutable set of blocked networks.
type Blocklist struct {
	prefixes []netip.Prefix
}

// ParseBlocklist accepts single addresses and CIDR prefixes.
func ParseBlocklist(entries []string) (*Blocklist, error) {
	b := &Blocklist{}
	for _, raw := range entries {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid blocklist prefix %q: %w", raw, err)
			}
			b.prefixes = append(b.prefixes, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid blocklist address %q: %w", raw, err)
		}
		a = a.Unmap()
		b.prefixes = append(b.prefixes, netip.PrefixFrom(a, a.BitLen()))
	}
	return b, nil
}

func (b *Blocklist) Contains(addr netip.Addr) bool {
	if b == nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range b.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func (b *Blocklist) Len() int {
	if b == nil {
		return 0
	}
	return len(b.prefixes)
}

package ipreputation

import (
	"context"
	"net/netip"
	"time"
)

// Reputation is a source's classification of one address.
type Reputation struct {
	Proxy      bool      `json:"proxy"`
	VPN        bool      `json:"vpn"`
	Tor        bool      `json:"tor"`
	Datacenter bool      `json:"datacenter"`
	AbuseScore int       `json:"abuse_score"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// Source looks up an address in an external reputation service.
type Source interface {
	Lookup(ctx context.Context, addr netip.Addr) (*Reputation, error)
}

// Cache stores reputations keyed by address. Get reports a miss with ok=false.
type Cache interface {
	Get(ctx context.Context, addr netip.Addr) (rep *Reputation, ok bool, err error)
	Set(ctx context.Context, addr netip.Addr, rep *Reputation, ttl time.Duration) error
}

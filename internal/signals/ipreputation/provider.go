// Package ipreputation scores the client address from a local blocklist and a
// cached external reputation source.
package ipreputation

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"riskgate/internal/risk/models"
	"riskgate/internal/signals"
)

const (
	DefaultCacheTTL = 30 * time.Minute
	MaxCacheTTL     = time.Hour
)

const (
	scoreBlocklisted = 100
	scoreTor         = 80
	scoreProxy       = 60
	scoreVPN         = 45
	scoreDatacenter  = 40
	scoreUnparseable = 30
	extraPerFlag     = 10
)

type Provider struct {
	source    Source
	cache     Cache
	blocklist *Blocklist
	cacheTTL  time.Duration
	logger    *slog.Logger
}

type Option func(*Provider)

func WithCache(c Cache) Option {
	return func(p *Provider) { p.cache = c }
}

func WithBlocklist(b *Blocklist) Option {
	return func(p *Provider) { p.blocklist = b }
}

// WithCacheTTL sets the cache lifetime, capped at MaxCacheTTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(p *Provider) {
		if ttl > 0 {
			p.cacheTTL = min(ttl, MaxCacheTTL)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) { p.logger = logger }
}

// New builds the provider. A nil source limits scoring to the blocklist.
func New(source Source, opts ...Option) *Provider {
	p := &Provider{
		source:   source,
		cache:    NewMemoryCache(),
		cacheTTL: DefaultCacheTTL,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Category() models.Category { return models.CategoryIP }

func (p *Provider) Evaluate(ctx context.Context, in models.SignalInput) (models.SignalResult, error) {
	res := models.SignalResult{Category: models.CategoryIP}

	addr, err := netip.ParseAddr(in.IP)
	if err != nil {
		res.Score = scoreUnparseable
		res.Reasons = []string{"client address unknown"}
		return res, nil
	}
	addr = addr.Unmap()

	if p.blocklist.Contains(addr) {
		res.Score = scoreBlocklisted
		res.Reasons = []string{"address on local blocklist"}
		return res, nil
	}
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() {
		return res, nil
	}
	if p.source == nil {
		return res, nil
	}

	rep, err := p.lookup(ctx, addr)
	if err != nil {
		return res, fmt.Errorf("%w: %v", signals.ErrUpstreamUnavailable, err)
	}
	res.Score, res.Reasons = Score(rep)
	return res, nil
}

func (p *Provider) lookup(ctx context.Context, addr netip.Addr) (*Reputation, error) {
	if p.cache != nil {
		rep, ok, err := p.cache.Get(ctx, addr)
		if err != nil {
			p.logger.WarnContext(ctx, "reputation cache read failed", "error", err)
		} else if ok {
			return rep, nil
		}
	}

	rep, err := p.source.Lookup(ctx, addr)
	if err != nil {
		return nil, err
	}
	if p.cache != nil {
		if err := p.cache.Set(ctx, addr, rep, p.cacheTTL); err != nil {
			p.logger.WarnContext(ctx, "reputation cache write failed", "error", err)
		}
	}
	return rep, nil
}

// Score maps a reputation to a sub-score: the strongest classification wins
// and each further classification adds a little.
func Score(rep *Reputation) (int, []string) {
	if rep == nil {
		return 0, nil
	}
	var (
		best    int
		flags   int
		reasons []string
	)
	mark := func(on bool, score int, reason string) {
		if !on {
			return
		}
		flags++
		best = max(best, score)
		reasons = append(reasons, reason)
	}
	mark(rep.Tor, scoreTor, "tor exit node")
	mark(rep.Proxy, scoreProxy, "open proxy")
	mark(rep.VPN, scoreVPN, "vpn endpoint")
	mark(rep.Datacenter, scoreDatacenter, "datacenter network")

	score := best
	if flags > 1 {
		score += extraPerFlag * (flags - 1)
	}
	if rep.AbuseScore > score {
		score = rep.AbuseScore
		reasons = append(reasons, "reported for abuse")
	}
	return min(100, score), reasons
}

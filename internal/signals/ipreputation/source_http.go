package ipreputation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"riskgate/pkg/platform/circuit"
)

const defaultLookupTimeout = 2 * time.Second

// HTTPSource queries a JSON reputation API at {baseURL}/v1/ip/{addr}.
type HTTPSource struct {
	baseURL string
	apiKey  string
	client  *http.Client
	breaker *circuit.Breaker
	now     func() time.Time
}

type HTTPOption func(*HTTPSource)

func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPSource) { s.client = c }
}

func WithAPIKey(key string) HTTPOption {
	return func(s *HTTPSource) { s.apiKey = key }
}

func WithBreaker(b *circuit.Breaker) HTTPOption {
	return func(s *HTTPSource) { s.breaker = b }
}

func NewHTTPSource(baseURL string, opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultLookupTimeout},
		breaker: circuit.New("ip-reputation", circuit.WithProbeInterval(10*time.Second)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HTTPSource) Lookup(ctx context.Context, addr netip.Addr) (*Reputation, error) {
	if !s.breaker.Allow() {
		return nil, fmt.Errorf("reputation source circuit open")
	}
	rep, err := s.fetch(ctx, addr)
	if err != nil {
		s.breaker.RecordFailure()
		return nil, err
	}
	s.breaker.RecordSuccess()
	return rep, nil
}

func (s *HTTPSource) fetch(ctx context.Context, addr netip.Addr) (*Reputation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/ip/"+url.PathEscape(addr.String()), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reputation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reputation API returned status %d", resp.StatusCode)
	}

	var body struct {
		Proxy      bool `json:"is_proxy"`
		VPN        bool `json:"is_vpn"`
		Tor        bool `json:"is_tor"`
		Datacenter bool `json:"is_datacenter"`
		AbuseScore int  `json:"abuse_score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode reputation response: %w", err)
	}
	return &Reputation{
		Proxy:      body.Proxy,
		VPN:        body.VPN,
		Tor:        body.Tor,
		Datacenter: body.Datacenter,
		AbuseScore: min(100, max(0, body.AbuseScore)),
		FetchedAt:  s.now(),
	}, nil
}

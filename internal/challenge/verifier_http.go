package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"riskgate/pkg/platform/circuit"
)

// HTTPVerifier posts tokens to a siteverify-style endpoint.
type HTTPVerifier struct {
	endpoint string
	secret   string
	client   *http.Client
	breaker  *circuit.Breaker
}

type HTTPOption func(*HTTPVerifier)

func WithHTTPClient(c *http.Client) HTTPOption {
	return func(v *HTTPVerifier) { v.client = c }
}

func WithBreaker(b *circuit.Breaker) HTTPOption {
	return func(v *HTTPVerifier) { v.breaker = b }
}

func NewHTTPVerifier(endpoint, secret string, opts ...HTTPOption) *HTTPVerifier {
	v := &HTTPVerifier{
		endpoint: endpoint,
		secret:   secret,
		client:   &http.Client{Timeout: defaultVerifyTimeout},
		breaker:  circuit.New("challenge-provider", circuit.WithProbeInterval(5*time.Second)),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

var errProviderCircuitOpen = errors.New("challenge provider circuit open")

func (v *HTTPVerifier) Verify(ctx context.Context, req ProviderRequest) (*ProviderResponse, error) {
	if !v.breaker.Allow() {
		return nil, errProviderCircuitOpen
	}
	resp, err := v.post(ctx, req)
	if err != nil {
		v.breaker.RecordFailure()
		return nil, err
	}
	v.breaker.RecordSuccess()
	return resp, nil
}

func (v *HTTPVerifier) post(ctx context.Context, req ProviderRequest) (*ProviderResponse, error) {
	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", req.Token)
	if req.RemoteIP != "" {
		form.Set("remoteip", req.RemoteIP)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call challenge provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("challenge provider returned status %d", resp.StatusCode)
	}

	var body struct {
		Success    bool     `json:"success"`
		ErrorCodes []string `json:"error-codes"`
		Hostname   string   `json:"hostname"`
		Action     string   `json:"action"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode challenge provider response: %w", err)
	}
	return &ProviderResponse{
		Success:    body.Success,
		ErrorCodes: body.ErrorCodes,
		Hostname:   body.Hostname,
		Action:     body.Action,
	}, nil
}

package challenge

import "context"

// Store keeps challenges by handle.
type Store interface {
	Create(ctx context.Context, c *Challenge) error
	// Get returns sentinel.ErrNotFound for unknown or purged handles.
	Get(ctx context.Context, handle string) (*Challenge, error)
	// CompareAndSwap writes c only if the stored state is still from,
	// returning sentinel.ErrConflict otherwise.
	CompareAndSwap(ctx context.Context, from State, c *Challenge) error
}

// Verifier delegates token verification to the external provider.
type Verifier interface {
	Verify(ctx context.Context, req ProviderRequest) (*ProviderResponse, error)
}

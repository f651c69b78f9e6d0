package embedding

import (
	"context"
	"io"
	"time"
)

// DefaultTimeout bounds an embedding call when no timeout is configured.
const DefaultTimeout = 120 * time.Second

// timeoutProvider wraps a Provider so every Embed call carries an explicit
// deadline. A stalled provider fails the call with TIMEOUT instead of hanging
// the turn.
type timeoutProvider struct {
	inner   Provider
	timeout time.Duration
}

// WithTimeout bounds every Embed call on p. timeout <= 0 means
// DefaultTimeout.
func WithTimeout(p Provider, timeout time.Duration) Provider {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &timeoutProvider{inner: p, timeout: timeout}
}

func (t *timeoutProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Embed(ctx, texts)
}

func (t *timeoutProvider) Dimension() int {
	return t.inner.Dimension()
}

func (t *timeoutProvider) Fingerprint() string {
	return t.inner.Fingerprint()
}

// Close releases the wrapped provider when it holds resources.
func (t *timeoutProvider) Close() error {
	if closer, ok := t.inner.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Package shutdown coordinates graceful teardown across components.
//
// Handlers register with a phase; lower phases stop first, handlers in the
// same phase stop concurrently. The server registers its HTTP listener in an
// earlier phase than the vector store so no request can arrive at a closed
// store.
package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrTimeout indicates shutdown did not complete within the deadline.
	ErrTimeout = errors.New("shutdown timeout exceeded")

	// ErrHandlerFailed indicates at least one handler returned an error.
	ErrHandlerFailed = errors.New("one or more shutdown handlers failed")
)

// DefaultTimeout bounds a signal-triggered shutdown.
const DefaultTimeout = 30 * time.Second

// Func is a shutdown handler. The context is cancelled when the deadline is
// reached; handlers should stop accepting work and release resources.
type Func func(ctx context.Context) error

type registration struct {
	name  string
	phase int
	fn    Func
}

// Coordinator runs registered handlers in phase order, once.
type Coordinator struct {
	log     *zap.Logger
	timeout time.Duration

	mu       sync.Mutex
	handlers []registration
	once     sync.Once
	err      error
	done     chan struct{}
}

// NewCoordinator creates a coordinator. timeout bounds signal-triggered
// shutdowns; zero means DefaultTimeout.
func NewCoordinator(log *zap.Logger, timeout time.Duration) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Coordinator{
		log:     log,
		timeout: timeout,
		done:    make(chan struct{}),
	}
}

// Register adds a named handler to the given phase.
func (c *Coordinator) Register(name string, phase int, fn Func) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, registration{name: name, phase: phase, fn: fn})
}

// Shutdown runs every handler, phase by phase. Subsequent calls return the
// first run's result.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.once.Do(func() {
		c.err = c.run(ctx)
		close(c.done)
	})
	<-c.done
	return c.err
}

// ShutdownWithTimeout runs Shutdown under the configured timeout.
func (c *Coordinator) ShutdownWithTimeout() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.Shutdown(ctx)
}

// HandleSignals triggers shutdown on SIGTERM or SIGINT.
func (c *Coordinator) HandleSignals() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-ch
		c.log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		_ = c.ShutdownWithTimeout()
	}()
}

// Done is closed once shutdown has completed.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Err returns the shutdown result; nil before Done is closed.
func (c *Coordinator) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

func (c *Coordinator) run(ctx context.Context) error {
	c.mu.Lock()
	handlers := make([]registration, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	sort.SliceStable(handlers, func(i, j int) bool {
		return handlers[i].phase < handlers[j].phase
	})

	var failed bool
	for start := 0; start < len(handlers); {
		end := start
		for end < len(handlers) && handlers[end].phase == handlers[start].phase {
			end++
		}

		select {
		case <-ctx.Done():
			return ErrTimeout
		default:
		}

		if c.runPhase(ctx, handlers[start:end]) {
			failed = true
		}
		start = end
	}

	if failed {
		return ErrHandlerFailed
	}
	return nil
}

// runPhase runs one phase's handlers concurrently and reports whether any
// failed.
func (c *Coordinator) runPhase(ctx context.Context, handlers []registration) bool {
	var wg sync.WaitGroup
	errs := make([]error, len(handlers))

	for i, reg := range handlers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			errs[i] = reg.fn(ctx)
			if errs[i] != nil {
				c.log.Warn("shutdown handler failed",
					zap.String("handler", reg.name),
					zap.Duration("took", time.Since(start)),
					zap.Error(errs[i]))
				return
			}
			c.log.Debug("shutdown handler done",
				zap.String("handler", reg.name),
				zap.Duration("took", time.Since(start)))
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return true
		}
	}
	return false
}

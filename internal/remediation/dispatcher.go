// Package remediation carries the "claude-not-found" signal from the status
// indicator to whoever can fix the installation. The dispatcher knows nothing
// about its listeners; a host decides what remediation means.
package remediation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/musher-dev/claudewatch/internal/observability"
)

// SignalName is the name of the remediation signal.
const SignalName = "claude-not-found"

// Listener handles one remediation signal. The signal carries no payload.
type Listener func(ctx context.Context) error

type entry struct {
	id int
	fn Listener
}

// Dispatcher fans the remediation signal out to zero or more listeners.
// The zero value is ready to use.
type Dispatcher struct {
	mu        sync.Mutex
	listeners []entry
	nextID    int
}

// New returns an empty dispatcher.
func New() *Dispatcher {
	return &Dispatcher{}
}

// Subscribe adds fn and returns a func that removes it again.
func (d *Dispatcher) Subscribe(fn Listener) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	d.listeners = append(d.listeners, entry{id: id, fn: fn})

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()

		for i, e := range d.listeners {
			if e.id == id {
				d.listeners = append(d.listeners[:i:i], d.listeners[i+1:]...)
				return
			}
		}
	}
}

// HasListeners reports whether anyone is subscribed. Hosts only offer the
// remediation action when this is true.
func (d *Dispatcher) HasListeners() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.listeners) > 0
}

// Emit delivers the signal to every listener in subscription order on the
// calling goroutine. A failing or panicking listener does not stop the
// others; their errors are logged and returned joined.
func (d *Dispatcher) Emit(ctx context.Context) error {
	d.mu.Lock()
	listeners := make([]Listener, len(d.listeners))
	for i, e := range d.listeners {
		listeners[i] = e.fn
	}
	d.mu.Unlock()

	logger := observability.FromContext(ctx).With(slog.String("signal", SignalName))
	logger.Debug("emitting remediation signal", slog.Int("listeners", len(listeners)))

	var errs []error

	for i, fn := range listeners {
		if err := invoke(ctx, fn); err != nil {
			logger.Warn("remediation listener failed", slog.Int("listener", i), slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func invoke(ctx context.Context, fn Listener) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("remediation listener panicked: %v", r)
		}
	}()

	return fn(ctx)
}

// Notify adapts ch as a listener. Sends never block: a signal arriving while
// the previous one is still unread is dropped.
func Notify(ch chan<- struct{}) Listener {
	return func(context.Context) error {
		select {
		case ch <- struct{}{}:
		default:
		}

		return nil
	}
}

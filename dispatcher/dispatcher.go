package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"mashetes/domain"
)

// ErrClosed is returned by Trigger once the dispatcher is closed.
var ErrClosed = errors.New("dispatcher closed")

// Handler reacts to a dispatched action.
type Handler func(ctx context.Context, action domain.Action) error

// Listener is the registration handle returned by On. Pass it to Off to unregister.
type Listener struct {
	name string
	fn   Handler
}

// Dispatcher is an in-process event bus shared by one widget tree.
type Dispatcher struct {
	logger *log.Logger

	mu        sync.Mutex
	listeners map[string][]*Listener
	closed    bool
}

// New creates an empty dispatcher.
func New(logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Dispatcher{logger: logger, listeners: make(map[string][]*Listener)}
}

// On registers fn for the named action. Handlers run in registration order.
func (d *Dispatcher) On(name string, fn Handler) *Listener {
	l := &Listener{name: name, fn: fn}
	d.mu.Lock()
	d.listeners[name] = append(d.listeners[name], l)
	d.mu.Unlock()
	return l
}

// Off removes a listener previously returned by On. Unknown listeners are ignored.
func (d *Dispatcher) Off(name string, l *Listener) {
	if l == nil || l.name != name {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	subs := d.listeners[name]
	for i, cur := range subs {
		if cur == l {
			next := make([]*Listener, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			if len(next) == 0 {
				delete(d.listeners, name)
			} else {
				d.listeners[name] = next
			}
			return
		}
	}
}

// Trigger synchronously invokes the handlers registered for name when the call
// starts. The first failing handler stops the fan-out and its error is returned.
func (d *Dispatcher) Trigger(ctx context.Context, name string, payload any) error {
	d.mu.Lock()
	subs, closed := d.listeners[name], d.closed
	d.mu.Unlock()
	if closed {
		return fmt.Errorf("dispatch %s: %w", name, ErrClosed)
	}

	action := domain.Action{Type: name, Payload: payload}
	for i, l := range subs {
		if err := invoke(ctx, l.fn, action); err != nil {
			d.logger.WithFields(log.Fields{
				"action":  name,
				"handler": i,
				"skipped": len(subs) - i - 1,
			}).WithError(err).Warn("dispatch aborted")
			return fmt.Errorf("dispatch %s: %w", name, err)
		}
	}
	return nil
}

func invoke(ctx context.Context, fn Handler, action domain.Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return fn(ctx, action)
}

// Len returns the number of listeners registered for name.
func (d *Dispatcher) Len(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners[name])
}

// Close drops every listener. Later triggers fail with ErrClosed.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.listeners = make(map[string][]*Listener)
	d.closed = true
	d.mu.Unlock()
}

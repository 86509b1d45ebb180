// Package dispatch fans decoded gateway events out to registered listeners
// and runs command handlers on a worker pool, so a slow handler never blocks
// the connection's read loop.
package dispatch

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/diskordpkg/engine/event"
	"github.com/diskordpkg/engine/json"
)

// Listener consumes one event payload. A returned error is reported, never
// propagated to the gateway.
type Listener func(evt event.Type, data json.RawMessage) error

// ErrorReporter receives listener failures, including recovered panics.
type ErrorReporter func(evt event.Type, err error)

type registration struct {
	id int
	fn Listener
}

// Handle identifies a registered listener so it can be removed again.
type Handle struct {
	evt event.Type
	id  int
}

type Dispatcher struct {
	mu        sync.RWMutex
	listeners map[event.Type][]registration
	nextID    int

	reporter ErrorReporter
	log      zerolog.Logger
}

func NewDispatcher(log zerolog.Logger, reporter ErrorReporter) *Dispatcher {
	return &Dispatcher{
		listeners: make(map[event.Type][]registration),
		reporter:  reporter,
		log:       log,
	}
}

// On registers a listener for the given event name. Listeners run in
// registration order.
func (d *Dispatcher) On(evt event.Type, fn Listener) Handle {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	d.listeners[evt] = append(d.listeners[evt], registration{id: d.nextID, fn: fn})
	return Handle{evt: evt, id: d.nextID}
}

// Off removes a previously registered listener. Removing twice is a no-op.
func (d *Dispatcher) Off(h Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()

	regs := d.listeners[h.evt]
	for i := range regs {
		if regs[i].id == h.id {
			d.listeners[h.evt] = append(regs[:i:i], regs[i+1:]...)
			return
		}
	}
}

// Dispatch invokes every listener registered for the event, in registration
// order. Each invocation is isolated: a failing or panicking listener is
// reported and the remaining listeners still run. Events without listeners
// are ignored.
func (d *Dispatcher) Dispatch(evt event.Type, data json.RawMessage) {
	d.mu.RLock()
	regs := make([]registration, len(d.listeners[evt]))
	copy(regs, d.listeners[evt])
	d.mu.RUnlock()

	for i := range regs {
		d.invoke(evt, data, regs[i].fn)
	}
}

func (d *Dispatcher) invoke(evt event.Type, data json.RawMessage, fn Listener) {
	defer func() {
		if r := recover(); r != nil {
			d.report(evt, fmt.Errorf("listener panic: %v", r))
		}
	}()

	if err := fn(evt, data); err != nil {
		d.report(evt, err)
	}
}

func (d *Dispatcher) report(evt event.Type, err error) {
	d.log.Error().Err(err).Str("event", string(evt)).Msg("listener failed")
	if d.reporter != nil {
		d.reporter(evt, err)
	}
}

package dispatch

import (
	"log/slog"
	"sync"

	"github.com/hubenschmidt/vishing-trainer/internal/metrics"
	"github.com/hubenschmidt/vishing-trainer/internal/wire"
)

// Handler consumes one decoded frame.
type Handler func(wire.Frame)

// Subscription identifies a registered handler. Subscribing the same
// function twice yields two distinct subscriptions.
type Subscription struct {
	id      uint64
	name    string
	handler Handler
}

// Name is the label used in logs.
func (s *Subscription) Name() string { return s.name }

// Dispatcher fans frames out to subscribers in registration order.
type Dispatcher struct {
	mu     sync.Mutex
	nextID uint64
	subs   []*Subscription
}

func New() *Dispatcher {
	return &Dispatcher{}
}

// Subscribe registers h under name.
func (d *Dispatcher) Subscribe(name string, h Handler) *Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	s := &Subscription{id: d.nextID, name: name, handler: h}
	d.subs = append(d.subs, s)
	return s
}

// Unsubscribe removes s. A dispatch already in progress still delivers to it;
// the removal applies from the next Dispatch.
func (d *Dispatcher) Unsubscribe(s *Subscription) {
	if s == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, cur := range d.subs {
		if cur.id == s.id {
			d.subs = append(d.subs[:i:i], d.subs[i+1:]...)
			return
		}
	}
}

// Clear removes every subscriber.
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	d.subs = nil
	d.mu.Unlock()
}

// Len returns the number of subscribers.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs)
}

// Dispatch delivers f to a snapshot of the current subscribers. A handler
// that panics is logged and skipped; the rest still receive the frame.
func (d *Dispatcher) Dispatch(f wire.Frame) {
	d.mu.Lock()
	snapshot := d.subs
	d.mu.Unlock()

	metrics.FramesIn.WithLabelValues(f.Kind.String()).Inc()
	for _, s := range snapshot {
		deliver(s, f)
	}
}

func deliver(s *Subscription, f wire.Frame) {
	defer func() {
		if recovered := recover(); recovered != nil {
			metrics.SubscriberPanics.Inc()
			slog.Error("frame handler panic", "subscriber", s.name, "kind", f.Kind.String(), "panic", recovered)
		}
	}()
	s.handler(f)
}

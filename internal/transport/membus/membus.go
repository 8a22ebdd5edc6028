// Package membus is an in-process realization of the transport
// abstraction. One Hub connects any number of participants in the
// same process; tests and single-process clusters use it in place of
// a networked bus.
//
// Delivery properties match the contract: per-subscription ordered
// delivery, retained-sample replay on transient-local topics, and no
// loopback - a participant never receives its own publications.
package membus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Ning0612/dirshare/internal/domain"
	"github.com/Ning0612/dirshare/internal/transport"
)

// queueDepth bounds undelivered samples per subscription. Publishers
// block when a subscriber falls this far behind (reliable
// backpressure rather than sample loss).
const queueDepth = 4096

// Hub connects participants and retains samples per topic QoS
type Hub struct {
	mu      sync.Mutex
	topics  map[string]*topicState
	parties map[*Participant]struct{}
	closed  bool
}

type topicState struct {
	topic    transport.Topic
	retained [][]byte
	subs     []*subscription
}

type subscription struct {
	owner   *Participant
	handler transport.Handler
	queue   chan transport.Sample
	done    chan struct{}
	once    sync.Once
}

func (s *subscription) stop() {
	s.once.Do(func() { close(s.done) })
}

// run delivers queued samples in order until stopped
func (s *subscription) run() {
	for {
		select {
		case sample := <-s.queue:
			s.handler.HandleSample(sample)
		case <-s.done:
			return
		}
	}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		topics:  make(map[string]*topicState),
		parties: make(map[*Participant]struct{}),
	}
}

func (h *Hub) topicState(topic transport.Topic) *topicState {
	ts, ok := h.topics[topic.Name]
	if !ok {
		ts = &topicState{topic: topic}
		h.topics[topic.Name] = ts
	}
	return ts
}

// Join registers a new participant on the hub
func (h *Hub) Join() *Participant {
	h.mu.Lock()
	defer h.mu.Unlock()

	p := &Participant{hub: h}
	h.parties[p] = struct{}{}
	return p
}

// participants returns the current participant count
func (h *Hub) participants() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.parties)
}

// publish retains the payload per QoS and fans it out to every
// subscription except the origin's
func (h *Hub) publish(topic transport.Topic, payload []byte, origin *Participant) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return domain.ErrTransportClosed
	}

	ts := h.topicState(topic)

	if topic.QoS.Durability == transport.TransientLocal {
		ts.retained = append(ts.retained, payload)
		if depth := topic.QoS.HistoryDepth; depth > 0 && len(ts.retained) > depth {
			ts.retained = ts.retained[len(ts.retained)-depth:]
		}
	}

	targets := make([]*subscription, 0, len(ts.subs))
	for _, sub := range ts.subs {
		if sub.owner != origin {
			targets = append(targets, sub)
		}
	}
	h.mu.Unlock()

	sample := transport.Sample{Data: payload, Valid: true}
	for _, sub := range targets {
		select {
		case sub.queue <- sample:
		case <-sub.done:
		}
	}

	return nil
}

// Participant is one bus handle on the hub
type Participant struct {
	hub  *Hub
	mu   sync.Mutex
	subs []*subscription
}

// CreateWriter implements transport.Bus
func (p *Participant) CreateWriter(topic transport.Topic) (transport.Writer, error) {
	return &writer{hub: p.hub, topic: topic, origin: p}, nil
}

// Subscribe implements transport.Bus. Retained samples are replayed
// into the new subscription before live traffic.
func (p *Participant) Subscribe(topic transport.Topic, handler transport.Handler) error {
	sub := &subscription{
		owner:   p,
		handler: handler,
		queue:   make(chan transport.Sample, queueDepth),
		done:    make(chan struct{}),
	}

	p.hub.mu.Lock()
	if p.hub.closed {
		p.hub.mu.Unlock()
		return domain.ErrTransportClosed
	}
	ts := p.hub.topicState(topic)
	for _, retained := range ts.retained {
		sub.queue <- transport.Sample{Data: retained, Valid: true}
	}
	ts.subs = append(ts.subs, sub)
	p.hub.mu.Unlock()

	p.mu.Lock()
	p.subs = append(p.subs, sub)
	p.mu.Unlock()

	go sub.run()
	return nil
}

// WaitForPeer implements transport.Bus by polling the hub membership
func (p *Participant) WaitForPeer(ctx context.Context, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if p.hub.participants() > 1 {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// Close implements transport.Bus
func (p *Participant) Close() error {
	p.hub.mu.Lock()
	delete(p.hub.parties, p)
	for _, ts := range p.hub.topics {
		kept := ts.subs[:0]
		for _, sub := range ts.subs {
			if sub.owner != p {
				kept = append(kept, sub)
			}
		}
		ts.subs = kept
	}
	p.hub.mu.Unlock()

	p.mu.Lock()
	subs := p.subs
	p.subs = nil
	p.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
	return nil
}

type writer struct {
	hub    *Hub
	topic  transport.Topic
	origin *Participant
}

// Write implements transport.Writer
func (w *writer) Write(payload []byte) error {
	if err := w.hub.publish(w.topic, payload, w.origin); err != nil {
		return fmt.Errorf("publish %s: %w", w.topic.Name, err)
	}
	return nil
}

// Package wsbus realizes the transport abstraction over websockets.
// A Hub relays JSON envelopes between connected participants,
// retaining samples on transient-local topics so late joiners catch
// up; a Client is one participant's bus handle.
package wsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/Ning0612/dirshare/internal/logger"
	"github.com/Ning0612/dirshare/internal/transport"
)

// envelope is the wire frame between hub and clients
type envelope struct {
	// Kind discriminates sample traffic from hub signaling
	Kind string `json:"kind"` // "sample" or "peers"

	// Topic of a sample envelope
	Topic string `json:"topic,omitempty"`

	// Data is the serialized payload of a sample envelope
	Data []byte `json:"data,omitempty"`

	// Count is the participant count of a peers envelope
	Count int `json:"count,omitempty"`
}

const (
	kindSample = "sample"
	kindPeers  = "peers"
)

// sendQueueDepth bounds per-client outbound envelopes at the hub.
// A client this far behind is disconnected rather than blocking the
// rest of the cluster.
const sendQueueDepth = 4096

// Hub relays envelopes between participants
type Hub struct {
	addr     string
	listener net.Listener
	server   *http.Server

	mu       sync.Mutex
	clients  map[*hubClient]struct{}
	retained map[string][][]byte
	depth    map[string]int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type hubClient struct {
	conn *websocket.Conn
	send chan envelope
	once sync.Once
}

func (c *hubClient) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub creates a hub that will listen on addr (host:port)
func NewHub(addr string) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		addr:     addr,
		clients:  make(map[*hubClient]struct{}),
		retained: make(map[string][][]byte),
		depth:    make(map[string]int),
		ctx:      ctx,
		cancel:   cancel,
	}

	for _, topic := range transport.AllTopics() {
		if topic.QoS.Durability == transport.TransientLocal {
			h.depth[topic.Name] = topic.QoS.HistoryDepth
		}
	}

	return h
}

// Start begins listening and serving; it returns once the listener
// is bound
func (h *Hub) Start() error {
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("hub listen on %s: %w", h.addr, err)
	}
	h.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/bus", h.handleBus)

	h.server = &http.Server{Handler: mux}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := h.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Get().Error("hub serve failed", "error", err)
		}
	}()

	logger.Get().Info("hub listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound listen address
func (h *Hub) Addr() string {
	if h.listener == nil {
		return h.addr
	}
	return h.listener.Addr().String()
}

// handleBus upgrades one participant connection and pumps envelopes
func (h *Hub) handleBus(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		logger.Get().Warn("websocket accept failed", "error", err)
		return
	}
	// Chunk envelopes carry ~1MiB of base64 payload
	conn.SetReadLimit(4 * 1024 * 1024)

	client := &hubClient{
		conn: conn,
		send: make(chan envelope, sendQueueDepth),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	count := len(h.clients)
	// Replay retained samples to the late joiner before live traffic
	for topicName, samples := range h.retained {
		for _, data := range samples {
			client.send <- envelope{Kind: kindSample, Topic: topicName, Data: data}
		}
	}
	h.mu.Unlock()

	logger.Get().Info("participant connected", "count", count)
	h.broadcastPeers()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.writeLoop(client)
	}()

	h.readLoop(client)

	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
	client.close()
	conn.Close(websocket.StatusNormalClosure, "")

	logger.Get().Info("participant disconnected")
	h.broadcastPeers()
}

// readLoop takes envelopes from one client and relays them
func (h *Hub) readLoop(client *hubClient) {
	for {
		_, data, err := client.conn.Read(h.ctx)
		if err != nil {
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			logger.Get().Warn("dropping malformed envelope", "error", err)
			continue
		}
		if env.Kind != kindSample {
			continue
		}

		h.relay(env, client)
	}
}

// relay retains a sample per topic durability and fans it out to
// every client but the origin
func (h *Hub) relay(env envelope, origin *hubClient) {
	h.mu.Lock()
	if depth, ok := h.depth[env.Topic]; ok {
		retained := append(h.retained[env.Topic], env.Data)
		if depth > 0 && len(retained) > depth {
			retained = retained[len(retained)-depth:]
		}
		h.retained[env.Topic] = retained
	}

	targets := make([]*hubClient, 0, len(h.clients))
	for c := range h.clients {
		if c != origin {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	for _, c := range targets {
		select {
		case c.send <- env:
		default:
			// Slow consumer: drop the connection, not the cluster
			logger.Get().Warn("disconnecting slow participant")
			c.conn.Close(websocket.StatusPolicyViolation, "send queue overflow")
		}
	}
}

// writeLoop serializes outbound envelopes onto one connection
func (h *Hub) writeLoop(client *hubClient) {
	for env := range client.send {
		data, err := json.Marshal(env)
		if err != nil {
			continue
		}
		if err := client.conn.Write(h.ctx, websocket.MessageText, data); err != nil {
			return
		}
	}
}

// broadcastPeers tells every client the current participant count
func (h *Hub) broadcastPeers() {
	h.mu.Lock()
	count := len(h.clients)
	targets := make([]*hubClient, 0, count)
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	env := envelope{Kind: kindPeers, Count: count}
	for _, c := range targets {
		select {
		case c.send <- env:
		default:
		}
	}
}

// Close stops the hub and disconnects every participant
func (h *Hub) Close() error {
	h.cancel()

	var err error
	if h.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err = h.server.Shutdown(ctx)
	}

	h.mu.Lock()
	for c := range h.clients {
		c.conn.Close(websocket.StatusGoingAway, "hub shutting down")
	}
	h.mu.Unlock()

	h.wg.Wait()
	return err
}

package wsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/Ning0612/dirshare/internal/domain"
	"github.com/Ning0612/dirshare/internal/logger"
	"github.com/Ning0612/dirshare/internal/transport"
)

// Client is one participant's connection to a Hub. It implements
// transport.Bus.
type Client struct {
	conn *websocket.Conn

	// writeMu serializes outbound frames on the shared connection
	writeMu sync.Mutex

	mu sync.Mutex
	// subs holds the per-topic delivery queues
	subs map[string][]*subscription
	// pending buffers samples that arrive before a local handler is
	// registered for their topic (retained replay races Subscribe)
	pending map[string][]transport.Sample
	peers   int
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type subscription struct {
	handler transport.Handler
	queue   chan transport.Sample
	done    chan struct{}
	once    sync.Once
}

func (s *subscription) stop() {
	s.once.Do(func() { close(s.done) })
}

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

// Dial connects to a hub at addr (host:port)
func Dial(ctx context.Context, addr string) (*Client, error) {
	url := fmt.Sprintf("ws://%s/bus", addr)

	dialCtx, cancelDial := context.WithTimeout(ctx, 10*time.Second)
	defer cancelDial()

	conn, _, err := websocket.Dial(dialCtx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial hub %s: %w", addr, err)
	}
	conn.SetReadLimit(4 * 1024 * 1024)

	clientCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		conn:    conn,
		subs:    make(map[string][]*subscription),
		pending: make(map[string][]transport.Sample),
		ctx:     clientCtx,
		cancel:  cancel,
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.readLoop()
	}()

	return c, nil
}

// readLoop dispatches inbound envelopes to topic queues
func (c *Client) readLoop() {
	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil {
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			logger.Get().Warn("dropping malformed envelope", "error", err)
			continue
		}

		switch env.Kind {
		case kindPeers:
			c.mu.Lock()
			c.peers = env.Count
			c.mu.Unlock()

		case kindSample:
			sample := transport.Sample{Data: env.Data, Valid: true}
			c.mu.Lock()
			subs := c.subs[env.Topic]
			if len(subs) == 0 {
				c.pending[env.Topic] = append(c.pending[env.Topic], sample)
				c.mu.Unlock()
				continue
			}
			c.mu.Unlock()

			for _, sub := range subs {
				select {
				case sub.queue <- sample:
				case <-sub.done:
				}
			}
		}
	}
}

// CreateWriter implements transport.Bus
func (c *Client) CreateWriter(topic transport.Topic) (transport.Writer, error) {
	return &clientWriter{client: c, topic: topic}, nil
}

// Subscribe implements transport.Bus. Samples buffered before the
// subscription are flushed into it first.
func (c *Client) Subscribe(topic transport.Topic, handler transport.Handler) error {
	sub := &subscription{
		handler: handler,
		queue:   make(chan transport.Sample, sendQueueDepth),
		done:    make(chan struct{}),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrTransportClosed
	}
	for _, sample := range c.pending[topic.Name] {
		sub.queue <- sample
	}
	delete(c.pending, topic.Name)
	c.subs[topic.Name] = append(c.subs[topic.Name], sub)
	c.mu.Unlock()

	go sub.run()
	return nil
}

// WaitForPeer implements transport.Bus using the hub's participant
// count signaling
func (c *Client) WaitForPeer(ctx context.Context, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		c.mu.Lock()
		peers := c.peers
		c.mu.Unlock()
		if peers > 1 {
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
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	var subs []*subscription
	for _, list := range c.subs {
		subs = append(subs, list...)
	}
	c.subs = make(map[string][]*subscription)
	c.mu.Unlock()

	c.cancel()
	err := c.conn.Close(websocket.StatusNormalClosure, "")
	for _, sub := range subs {
		sub.stop()
	}
	c.wg.Wait()
	return err
}

type clientWriter struct {
	client *Client
	topic  transport.Topic
}

// Write implements transport.Writer
func (w *clientWriter) Write(payload []byte) error {
	env := envelope{Kind: kindSample, Topic: w.topic.Name, Data: payload}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	w.client.writeMu.Lock()
	defer w.client.writeMu.Unlock()

	if err := w.client.conn.Write(w.client.ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("publish %s: %w", w.topic.Name, err)
	}
	return nil
}

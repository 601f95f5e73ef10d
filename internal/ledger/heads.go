package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Head is a new block announced by the node.
type Head struct {
	Number    uint64
	Hash      string
	Timestamp time.Time
}

// HeadSubscriberConfig configures websocket behavior.
type HeadSubscriberConfig struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	// SubscribeTimeout bounds the wait for the subscription id.
	SubscribeTimeout time.Duration
	// Buffer is the head channel capacity; heads are dropped when full.
	Buffer int
}

// DefaultHeadSubscriberConfig returns default websocket configuration.
func DefaultHeadSubscriberConfig() HeadSubscriberConfig {
	return HeadSubscriberConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		SubscribeTimeout: 30 * time.Second,
		Buffer:           256,
	}
}

// HeadSubscriber streams eth_subscribe("newHeads") notifications over a websocket.
type HeadSubscriber struct {
	config HeadSubscriberConfig

	conn      *websocket.Conn
	writeMu   sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	subReqID    atomic.Uint64
	subID       atomic.Value // string
	confirm     chan string
	confirmOnce sync.Once
	heads   chan Head
	dropped atomic.Uint64

	done chan struct{}
	wg   sync.WaitGroup
}

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// wsMessage covers both call responses and subscription notifications.
type wsMessage struct {
	ID     *uint64         `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
	Method string          `json:"method,omitempty"`
	Params *struct {
		Subscription string          `json:"subscription"`
		Result       json.RawMessage `json:"result"`
	} `json:"params,omitempty"`
}

type headPayload struct {
	Number    string `json:"number"`
	Hash      string `json:"hash"`
	Timestamp string `json:"timestamp"`
}

// SubscribeHeads dials endpoint and subscribes to new heads.
func SubscribeHeads(ctx context.Context, endpoint string, config *HeadSubscriberConfig) (*HeadSubscriber, error) {
	cfg := DefaultHeadSubscriberConfig()
	if config != nil {
		cfg = *config
	}

	dialer := websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	s := &HeadSubscriber{
		config:  cfg,
		conn:    conn,
		confirm: make(chan string, 1),
		heads:   make(chan Head, cfg.Buffer),
		done:    make(chan struct{}),
	}

	s.wg.Add(1)
	go s.readLoop()

	if err := s.subscribe(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *HeadSubscriber) subscribe(ctx context.Context) error {
	id := s.requestID.Add(1)
	s.subReqID.Store(id)
	if err := s.write(wsRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "eth_subscribe",
		Params:  []interface{}{"newHeads"},
	}); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}

	select {
	case id, ok := <-s.confirm:
		if !ok {
			return fmt.Errorf("subscription rejected")
		}
		s.subID.Store(id)
		return nil
	case <-time.After(s.config.SubscribeTimeout):
		return fmt.Errorf("subscription timeout after %s", s.config.SubscribeTimeout)
	case <-s.done:
		return fmt.Errorf("subscriber closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Heads returns the notification channel. It is closed on Close or read failure.
func (s *HeadSubscriber) Heads() <-chan Head {
	return s.heads
}

// Dropped reports how many heads were discarded because the channel was full.
func (s *HeadSubscriber) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *HeadSubscriber) write(req wsRequest) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	return s.conn.WriteJSON(req)
}

// Close sends eth_unsubscribe when a subscription is active, ignoring write
// errors, and closes the connection.
func (s *HeadSubscriber) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.done)

	if id, _ := s.subID.Load().(string); id != "" {
		s.write(wsRequest{
			JSONRPC: "2.0",
			ID:      s.requestID.Add(1),
			Method:  "eth_unsubscribe",
			Params:  []interface{}{id},
		})
	}

	s.writeMu.Lock()
	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := s.conn.Close()
	s.writeMu.Unlock()

	s.wg.Wait()
	return err
}

func (s *HeadSubscriber) readLoop() {
	defer s.wg.Done()
	defer close(s.heads)

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		s.handleMessage(message)
	}
}

func (s *HeadSubscriber) handleMessage(message []byte) {
	var msg wsMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}

	// Subscription confirmation; other call replies are ignored.
	if msg.ID != nil {
		if *msg.ID != s.subReqID.Load() {
			return
		}
		if msg.Error != nil {
			s.confirmOnce.Do(func() { close(s.confirm) })
			return
		}
		var id string
		if err := json.Unmarshal(msg.Result, &id); err == nil {
			s.confirmOnce.Do(func() { s.confirm <- id })
		}
		return
	}

	if msg.Method != "eth_subscription" || msg.Params == nil {
		return
	}
	if id, _ := s.subID.Load().(string); id != "" && msg.Params.Subscription != id {
		return
	}

	head, err := decodeHead(msg.Params.Result)
	if err != nil {
		return
	}
	select {
	case s.heads <- head:
	default:
		s.dropped.Add(1)
	}
}

func decodeHead(raw json.RawMessage) (Head, error) {
	var p headPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Head{}, err
	}
	number, err := parseQuantity(p.Number)
	if err != nil {
		return Head{}, fmt.Errorf("parse number: %w", err)
	}
	ts, err := parseQuantity(p.Timestamp)
	if err != nil {
		return Head{}, fmt.Errorf("parse timestamp: %w", err)
	}
	return Head{Number: number, Hash: p.Hash, Timestamp: time.Unix(int64(ts), 0)}, nil
}

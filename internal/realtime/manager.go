package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"dealstream/pkg/model"
)

// State is the connection state of the manager's socket.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateJoined
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateStreaming:
		return "streaming"
	default:
		return "disconnected"
	}
}

// Handler receives decoded change events for one subscription, in the
// order the socket received them.
type Handler func(ChangeEvent)

// Config carries the change-stream connection settings. APIKey and
// Token come from the query channel factory's credentials for the tier
// the stream runs under.
type Config struct {
	URL               string
	APIKey            string
	Token             string
	HeartbeatInterval time.Duration
	ConnectTimeout    time.Duration
	ReconnectBase     time.Duration
	ReconnectMax      time.Duration
	MaxAttempts       int
}

// ApplyDefaults fills in missing values with defaults.
func (c *Config) ApplyDefaults() {
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 25 * time.Second
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.ReconnectBase == 0 {
		c.ReconnectBase = time.Second
	}
	if c.ReconnectMax == 0 {
		c.ReconnectMax = 30 * time.Second
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 10
	}
}

// Manager owns one persistent socket to the change-event channel and
// multiplexes logical topics over it. Subscriptions survive reconnects:
// joined topics are re-joined, and only when the retry budget is spent
// does each subscription learn of the loss through Lost().
type Manager struct {
	cfg     Config
	dialer  *websocket.Dialer
	limiter *rate.Limiter

	mu      sync.Mutex
	subs    map[string]*Subscription
	conn    *websocket.Conn
	running bool
	closed  bool

	writeMu sync.Mutex
	state   atomic.Int32
	refSeq  atomic.Int64
}

// NewManager creates a manager; no connection is opened until the first
// subscription arrives.
func NewManager(cfg Config) *Manager {
	cfg.ApplyDefaults()
	return &Manager{
		cfg:     cfg,
		dialer:  &websocket.Dialer{HandshakeTimeout: cfg.ConnectTimeout},
		limiter: rate.NewLimiter(rate.Every(cfg.ReconnectBase), 1),
		subs:    make(map[string]*Subscription),
	}
}

// State reports the socket's current connection state.
func (m *Manager) State() State { return State(m.state.Load()) }

func (m *Manager) setState(s State) { m.state.Store(int32(s)) }

// Subscription is one registered topic callback. Unsubscribe detaches
// it without touching other callbacks on the same socket.
type Subscription struct {
	ref     string
	topic   Topic
	handler Handler
	program cel.Program
	queue   *eventQueue
	lost    chan error
	once    sync.Once
	mgr     *Manager
}

// Topic returns the subscribed topic.
func (s *Subscription) Topic() Topic { return s.topic }

// Lost yields the terminal error when the manager exhausts its retry
// budget; the channel closes without a value on clean unsubscribe.
func (s *Subscription) Lost() <-chan error { return s.lost }

// Unsubscribe deregisters the callback. When the last subscription on
// the socket goes away the socket is closed.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.mgr.remove(s)
		s.queue.close()
		close(s.lost)
	})
}

func (s *Subscription) dispatchLoop() {
	for {
		ev, ok := s.queue.pop()
		if !ok {
			return
		}
		s.handler(ev)
	}
}

// Subscribe registers a callback for a topic, establishing or reusing
// the socket connection and sending a join frame for the topic.
func (m *Manager) Subscribe(ctx context.Context, topic Topic, handler Handler) (*Subscription, error) {
	if topic.Table == "" {
		return nil, model.Validationf("subscription topic requires a table name")
	}
	if handler == nil {
		return nil, model.Validationf("subscription requires a callback")
	}
	program, err := compileRowFilter(topic.Filter)
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		ref:     uuid.New().String(),
		topic:   topic,
		handler: handler,
		program: program,
		queue:   newEventQueue(),
		lost:    make(chan error, 1),
		mgr:     m,
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, model.Transportf(nil, "subscription manager is closed")
	}
	m.subs[sub.ref] = sub
	connected := m.conn != nil
	started := m.running
	if !started {
		m.running = true
	}
	m.mu.Unlock()

	go sub.dispatchLoop()

	if connected {
		if err := m.sendJoins(topic.channel()); err != nil {
			slog.Warn("join frame failed, will rejoin on reconnect",
				"table", topic.Table, "error", err)
		}
	} else if !started {
		go m.run()
	}

	slog.Info("subscribed to change stream",
		"table", topic.Table, "filter", topic.Filter, "ref", sub.ref)
	return sub, nil
}

func (m *Manager) remove(sub *Subscription) {
	m.mu.Lock()
	delete(m.subs, sub.ref)
	conn := m.conn
	var leaveChannel string
	if conn != nil && !m.channelInUseLocked(sub.topic.channel()) {
		leaveChannel = sub.topic.channel()
	}
	last := len(m.subs) == 0
	m.mu.Unlock()

	if leaveChannel != "" {
		_ = m.sendFrame(newLeaveFrame(leaveChannel, m.nextRef()))
	}
	if last && conn != nil {
		// Read loop exits on the closed connection and the run loop
		// stops once it sees the empty registry.
		conn.Close()
	}
}

func (m *Manager) channelInUseLocked(channel string) bool {
	for _, s := range m.subs {
		if s.topic.channel() == channel {
			return true
		}
	}
	return false
}

// Close tears down the socket and fails any remaining subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	conn := m.conn
	m.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (m *Manager) endpoint() string {
	base := strings.TrimSuffix(m.cfg.URL, "/")
	base = strings.Replace(base, "http://", "ws://", 1)
	base = strings.Replace(base, "https://", "wss://", 1)
	return fmt.Sprintf("%s/realtime/v1/websocket?apikey=%s&vsn=1.0.0", base, m.cfg.APIKey)
}

func (m *Manager) run() {
	attempts := 0
	for {
		m.mu.Lock()
		if m.closed || len(m.subs) == 0 {
			m.running = false
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()

		m.setState(StateConnecting)
		if err := m.limiter.Wait(context.Background()); err != nil {
			return
		}

		conn, err := m.dial()
		if err != nil {
			attempts++
			slog.Warn("change stream connect failed",
				"attempt", attempts, "max_attempts", m.cfg.MaxAttempts, "error", err)
			if attempts >= m.cfg.MaxAttempts {
				m.failAll(model.Transportf(err, "change stream reconnect attempts exhausted"))
				return
			}
			time.Sleep(m.backoff(attempts))
			continue
		}
		attempts = 0

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			conn.Close()
			return
		}
		m.conn = conn
		m.mu.Unlock()

		m.setState(StateJoined)
		if err := m.sendJoins(""); err != nil {
			slog.Warn("joining topics failed", "error", err)
		}
		m.setState(StateStreaming)

		stopHeartbeat := make(chan struct{})
		go m.heartbeatLoop(conn, stopHeartbeat)

		m.readLoop(conn)
		close(stopHeartbeat)
		conn.Close()

		m.mu.Lock()
		m.conn = nil
		m.mu.Unlock()
		m.setState(StateDisconnected)
	}
}

func (m *Manager) dial() (*websocket.Conn, error) {
	header := http.Header{}
	if m.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+m.cfg.Token)
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ConnectTimeout)
	defer cancel()
	conn, _, err := m.dialer.DialContext(ctx, m.endpoint(), header)
	if err != nil {
		return nil, model.Transportf(err, "dial change stream")
	}
	return conn, nil
}

// sendJoins sends the join frames for one channel, or for every channel
// with live subscriptions when channel is empty. Subscriptions sharing
// a table are merged into a single join config.
func (m *Manager) sendJoins(channel string) error {
	m.mu.Lock()
	changes := make(map[string][]postgresChange)
	for _, sub := range m.subs {
		ch := sub.topic.channel()
		if channel != "" && ch != channel {
			continue
		}
		changes[ch] = append(changes[ch], sub.topic.change())
	}
	m.mu.Unlock()

	for ch, chChanges := range changes {
		frame, err := newJoinFrame(ch, chChanges, m.nextRef())
		if err != nil {
			return err
		}
		if err := m.sendFrame(frame); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) sendFrame(frame Frame) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return model.Transportf(nil, "change stream not connected")
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(frame); err != nil {
		return model.Transportf(err, "write frame")
	}
	return nil
}

func (m *Manager) heartbeatLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := m.sendFrame(newHeartbeatFrame(m.nextRef())); err != nil {
				return
			}
		}
	}
}

func (m *Manager) readLoop(conn *websocket.Conn) {
	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("change stream closed", "error", err)
			} else {
				slog.Info("change stream disconnected")
			}
			return
		}

		switch frame.Event {
		case eventPostgresChanges:
			ev, err := decodeChangeEvent(frame)
			if err != nil {
				slog.Warn("dropping undecodable change frame", "topic", frame.Topic, "error", err)
				continue
			}
			m.dispatch(ev)
		case eventReply, eventSystem:
			slog.Debug("change stream control frame", "event", frame.Event, "topic", frame.Topic)
		case eventClose, eventError:
			slog.Warn("change stream channel terminated", "event", frame.Event, "topic", frame.Topic)
			return
		}
	}
}

// dispatch fans one decoded event out to every matching subscription,
// in receipt order, with no cross-topic leakage.
func (m *Manager) dispatch(ev *ChangeEvent) {
	m.mu.Lock()
	matched := make([]*Subscription, 0, 2)
	for _, sub := range m.subs {
		if sub.topic.channel() != ev.Topic {
			continue
		}
		if !kindMatches(sub.topic.Event, ev) {
			continue
		}
		if !filterMatches(sub.program, ev.Record) {
			continue
		}
		matched = append(matched, sub)
	}
	m.mu.Unlock()

	for _, sub := range matched {
		sub.queue.push(*ev)
	}
}

// failAll surfaces a terminal transport failure to every registered
// subscription; callbacks are never silently dropped.
func (m *Manager) failAll(err error) {
	m.mu.Lock()
	subs := make([]*Subscription, 0, len(m.subs))
	for _, sub := range m.subs {
		subs = append(subs, sub)
	}
	m.subs = make(map[string]*Subscription)
	m.running = false
	m.mu.Unlock()

	m.setState(StateDisconnected)
	for _, sub := range subs {
		sub.once.Do(func() {
			sub.lost <- err
			close(sub.lost)
			sub.queue.close()
		})
	}
	slog.Error("change stream subscriptions lost", "count", len(subs), "error", err)
}

// backoff returns the wait before reconnect attempt n, doubling from
// the base up to the configured cap.
func (m *Manager) backoff(attempt int) time.Duration {
	d := m.cfg.ReconnectBase
	for i := 1; i < attempt && d < m.cfg.ReconnectMax; i++ {
		d *= 2
	}
	if d > m.cfg.ReconnectMax {
		d = m.cfg.ReconnectMax
	}
	return d
}

func (m *Manager) nextRef() string {
	return fmt.Sprintf("%d", m.refSeq.Add(1))
}

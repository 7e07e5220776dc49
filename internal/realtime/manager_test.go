package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealstream/pkg/model"
)

// streamServer is a minimal change-stream endpoint: it accepts the
// socket, acknowledges joins and lets tests push change frames.
type streamServer struct {
	t        *testing.T
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conn   *websocket.Conn
	joins  chan Frame
	closed chan struct{}
}

func newStreamServer(t *testing.T) *streamServer {
	t.Helper()
	s := &streamServer{
		t:      t,
		joins:  make(chan Frame, 16),
		closed: make(chan struct{}, 4),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/realtime/v1/websocket", s.handle)
	s.server = httptest.NewServer(mux)
	t.Cleanup(s.server.Close)
	return s
}

func (s *streamServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			s.closed <- struct{}{}
			return
		}
		switch frame.Event {
		case eventJoin:
			s.joins <- frame
			reply := Frame{Topic: frame.Topic, Event: eventReply, Ref: frame.Ref,
				Payload: json.RawMessage(`{"status":"ok"}`)}
			s.writeFrame(reply)
		case eventHeartbeat, eventLeave:
			s.writeFrame(Frame{Topic: frame.Topic, Event: eventReply, Ref: frame.Ref,
				Payload: json.RawMessage(`{"status":"ok"}`)})
		}
	}
}

func (s *streamServer) writeFrame(frame Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		_ = s.conn.WriteJSON(frame)
	}
}

// sendChange pushes one change event for a table.
func (s *streamServer) sendChange(table, kind string, record map[string]any) {
	payload, err := json.Marshal(map[string]any{
		"data": map[string]any{
			"type":   kind,
			"table":  table,
			"record": record,
		},
	})
	require.NoError(s.t, err)
	s.writeFrame(Frame{Topic: topicPrefix + table, Event: eventPostgresChanges, Payload: payload})
}

func (s *streamServer) waitJoin(t *testing.T) Frame {
	t.Helper()
	select {
	case frame := <-s.joins:
		return frame
	case <-time.After(3 * time.Second):
		t.Fatal("no join frame received")
		return Frame{}
	}
}

func newTestManager(url string) *Manager {
	return NewManager(Config{
		URL:               url,
		APIKey:            "anon-key",
		HeartbeatInterval: time.Minute,
		ConnectTimeout:    time.Second,
		ReconnectBase:     10 * time.Millisecond,
		ReconnectMax:      50 * time.Millisecond,
		MaxAttempts:       3,
	})
}

func TestSubscribeSendsJoinFrame(t *testing.T) {
	server := newStreamServer(t)
	mgr := newTestManager(server.server.URL)
	defer mgr.Close()

	sub, err := mgr.Subscribe(context.Background(), Topic{
		Table:  "discount_info",
		Event:  "INSERT",
		Filter: "product_id=eq.7",
	}, func(ChangeEvent) {})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	frame := server.waitJoin(t)
	assert.Equal(t, "realtime:discount_info", frame.Topic)
	assert.Equal(t, eventJoin, frame.Event)

	var payload joinPayload
	require.NoError(t, json.Unmarshal(frame.Payload, &payload))
	require.Len(t, payload.Config.PostgresChanges, 1)
	assert.Equal(t, "discount_info", payload.Config.PostgresChanges[0].Table)
	assert.Equal(t, "INSERT", payload.Config.PostgresChanges[0].Event)
	assert.Equal(t, "product_id=eq.7", payload.Config.PostgresChanges[0].Filter)
}

func TestSubscribeValidation(t *testing.T) {
	mgr := newTestManager("http://127.0.0.1:1")
	defer mgr.Close()

	_, err := mgr.Subscribe(context.Background(), Topic{}, func(ChangeEvent) {})
	assert.True(t, model.IsValidation(err))

	_, err = mgr.Subscribe(context.Background(), Topic{Table: "shops"}, nil)
	assert.True(t, model.IsValidation(err))

	_, err = mgr.Subscribe(context.Background(), Topic{Table: "shops", Filter: "broken"}, func(ChangeEvent) {})
	assert.True(t, model.IsValidation(err))
}

// Three topics on one socket: every subscriber sees exactly its own
// events, in receipt order.
func TestDispatchOrderingAndIsolation(t *testing.T) {
	server := newStreamServer(t)
	mgr := newTestManager(server.server.URL)
	defer mgr.Close()

	tables := []string{"shops", "products", "discount_info"}
	const perTopic = 20

	var mu sync.Mutex
	received := make(map[string][]int)
	done := make(chan struct{}, len(tables)*perTopic)

	for _, table := range tables {
		table := table
		sub, err := mgr.Subscribe(context.Background(), Topic{Table: table}, func(ev ChangeEvent) {
			mu.Lock()
			received[table] = append(received[table], int(ev.Record["seq"].(float64)))
			mu.Unlock()
			done <- struct{}{}
		})
		require.NoError(t, err)
		defer sub.Unsubscribe()
		server.waitJoin(t)
	}

	// Interleave events across topics.
	for seq := 0; seq < perTopic; seq++ {
		for _, table := range tables {
			server.sendChange(table, "INSERT", map[string]any{"seq": seq, "table": table})
		}
	}

	for i := 0; i < len(tables)*perTopic; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out after %d deliveries", i)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for _, table := range tables {
		require.Len(t, received[table], perTopic, "table %s", table)
		for i, seq := range received[table] {
			assert.Equal(t, i, seq, "table %s out of order", table)
		}
	}
}

func TestDispatchFiltersKindAndRow(t *testing.T) {
	server := newStreamServer(t)
	mgr := newTestManager(server.server.URL)
	defer mgr.Close()

	events := make(chan ChangeEvent, 8)
	sub, err := mgr.Subscribe(context.Background(), Topic{
		Table:  "notifications",
		Event:  "INSERT",
		Filter: "user_id=eq.u1",
	}, func(ev ChangeEvent) { events <- ev })
	require.NoError(t, err)
	defer sub.Unsubscribe()
	server.waitJoin(t)

	server.sendChange("notifications", "UPDATE", map[string]any{"user_id": "u1", "id": 1})
	server.sendChange("notifications", "INSERT", map[string]any{"user_id": "u2", "id": 2})
	server.sendChange("other_table", "INSERT", map[string]any{"user_id": "u1", "id": 3})
	server.sendChange("notifications", "INSERT", map[string]any{"user_id": "u1", "id": 4})

	select {
	case ev := <-events:
		assert.Equal(t, float64(4), ev.Record["id"])
	case <-time.After(3 * time.Second):
		t.Fatal("matching event not delivered")
	}

	select {
	case ev := <-events:
		t.Fatalf("unexpected extra delivery: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSlowSubscriberDoesNotStallOthers(t *testing.T) {
	server := newStreamServer(t)
	mgr := newTestManager(server.server.URL)
	defer mgr.Close()

	slow, err := mgr.Subscribe(context.Background(), Topic{Table: "shops"}, func(ChangeEvent) {
		time.Sleep(200 * time.Millisecond)
	})
	require.NoError(t, err)
	defer slow.Unsubscribe()
	server.waitJoin(t)

	const n = 10
	fastDone := make(chan struct{}, n)
	fast, err := mgr.Subscribe(context.Background(), Topic{Table: "products"}, func(ChangeEvent) {
		fastDone <- struct{}{}
	})
	require.NoError(t, err)
	defer fast.Unsubscribe()
	server.waitJoin(t)

	for i := 0; i < n; i++ {
		server.sendChange("shops", "INSERT", map[string]any{"seq": i})
		server.sendChange("products", "INSERT", map[string]any{"seq": i})
	}

	// All fast deliveries must land while the slow callback is still
	// working through its own backlog.
	deadline := time.After(time.Second)
	for i := 0; i < n; i++ {
		select {
		case <-fastDone:
		case <-deadline:
			t.Fatalf("fast subscriber stalled after %d events", i)
		}
	}
}

func TestLostAfterRetriesExhausted(t *testing.T) {
	mgr := newTestManager("http://127.0.0.1:1")
	defer mgr.Close()

	sub, err := mgr.Subscribe(context.Background(), Topic{Table: "shops"}, func(ChangeEvent) {})
	require.NoError(t, err)

	select {
	case lostErr := <-sub.Lost():
		require.Error(t, lostErr)
		assert.True(t, model.IsTransport(lostErr))
	case <-time.After(5 * time.Second):
		t.Fatal("subscription was never declared lost")
	}
	assert.Equal(t, StateDisconnected, mgr.State())
}

func TestUnsubscribeClosesLostChannel(t *testing.T) {
	server := newStreamServer(t)
	mgr := newTestManager(server.server.URL)
	defer mgr.Close()

	sub, err := mgr.Subscribe(context.Background(), Topic{Table: "shops"}, func(ChangeEvent) {})
	require.NoError(t, err)
	server.waitJoin(t)

	sub.Unsubscribe()

	select {
	case _, ok := <-sub.Lost():
		assert.False(t, ok, "clean unsubscribe closes Lost without a value")
	case <-time.After(time.Second):
		t.Fatal("Lost channel not closed")
	}
}

func TestEndpointConversion(t *testing.T) {
	mgr := NewManager(Config{URL: "https://db.example.com/", APIKey: "key"})
	assert.Equal(t,
		fmt.Sprintf("wss://db.example.com/realtime/v1/websocket?apikey=%s&vsn=1.0.0", "key"),
		mgr.endpoint())
}

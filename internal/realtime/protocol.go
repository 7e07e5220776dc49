// Package realtime maintains persistent socket connections to the data
// service's change-event channel, multiplexes logical subscription
// topics over them, decodes inbound change envelopes and fans typed
// events out to registered subscriber callbacks.
package realtime

import (
	"encoding/json"
	"strings"

	"dealstream/pkg/model"
)

// Phoenix-protocol event names used on the change-stream socket.
const (
	eventJoin            = "phx_join"
	eventLeave           = "phx_leave"
	eventReply           = "phx_reply"
	eventClose           = "phx_close"
	eventError           = "phx_error"
	eventHeartbeat       = "heartbeat"
	eventSystem          = "system"
	eventPostgresChanges = "postgres_changes"
)

const topicPrefix = "realtime:"

// Frame is the envelope for all messages on the socket.
type Frame struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Ref     string          `json:"ref,omitempty"`
}

type postgresChange struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Filter string `json:"filter,omitempty"`
}

type joinConfig struct {
	PostgresChanges []postgresChange `json:"postgres_changes"`
}

type joinPayload struct {
	Config joinConfig `json:"config"`
}

// Topic is a logical subscription unit: one table, an optional event
// kind restriction and an optional row filter like "user_id=eq.42".
type Topic struct {
	Table  string
	Event  string // INSERT, UPDATE, DELETE or "*" (default)
	Filter string
}

func (t Topic) channel() string { return topicPrefix + t.Table }

func (t Topic) change() postgresChange {
	event := t.Event
	if event == "" {
		event = "*"
	}
	return postgresChange{Event: event, Schema: "public", Table: t.Table, Filter: t.Filter}
}

func newJoinFrame(channel string, changes []postgresChange, ref string) (Frame, error) {
	payload, err := json.Marshal(joinPayload{Config: joinConfig{PostgresChanges: changes}})
	if err != nil {
		return Frame{}, model.Internalf("marshal join payload: %v", err)
	}
	return Frame{Topic: channel, Event: eventJoin, Payload: payload, Ref: ref}, nil
}

func newLeaveFrame(channel, ref string) Frame {
	return Frame{Topic: channel, Event: eventLeave, Payload: json.RawMessage("{}"), Ref: ref}
}

func newHeartbeatFrame(ref string) Frame {
	return Frame{Topic: "phoenix", Event: eventHeartbeat, Payload: json.RawMessage("{}"), Ref: ref}
}

// EventKind tags the decoded change kinds. Anything the decoder does
// not recognize is carried as EventOther with the raw name preserved.
type EventKind string

const (
	EventInsert EventKind = "INSERT"
	EventUpdate EventKind = "UPDATE"
	EventDelete EventKind = "DELETE"
	EventOther  EventKind = "OTHER"
)

func parseEventKind(s string) (EventKind, string) {
	switch EventKind(s) {
	case EventInsert, EventUpdate, EventDelete:
		return EventKind(s), ""
	default:
		return EventOther, s
	}
}

// ChangeEvent is a decoded change notification for a watched table.
type ChangeEvent struct {
	Kind      EventKind
	RawKind   string // original event name when Kind == EventOther
	Table     string
	Topic     string
	Record    map[string]any
	OldRecord map[string]any
}

// changePayload covers both envelope shapes the service emits: the
// nested data object and the older flat record layout.
type changePayload struct {
	Data struct {
		Type      string         `json:"type"`
		Table     string         `json:"table"`
		Record    map[string]any `json:"record"`
		OldRecord map[string]any `json:"old_record"`
	} `json:"data"`
	Type      string         `json:"type"`
	EventType string         `json:"eventType"`
	Table     string         `json:"table"`
	Record    map[string]any `json:"record"`
	OldRecord map[string]any `json:"old_record"`
}

// decodeChangeEvent turns a postgres_changes frame into a typed event.
// Decoding happens here, at the socket boundary; business logic never
// sees raw frames.
func decodeChangeEvent(f Frame) (*ChangeEvent, error) {
	var payload changePayload
	if err := json.Unmarshal(f.Payload, &payload); err != nil {
		return nil, model.Internalf("malformed change payload on topic %q: %v", f.Topic, err)
	}

	rawKind := payload.Data.Type
	record := payload.Data.Record
	oldRecord := payload.Data.OldRecord
	table := payload.Data.Table
	if rawKind == "" && record == nil {
		rawKind = payload.EventType
		if rawKind == "" {
			rawKind = payload.Type
		}
		record = payload.Record
		oldRecord = payload.OldRecord
		table = payload.Table
	}
	if table == "" {
		table = strings.TrimPrefix(f.Topic, topicPrefix)
	}

	kind, raw := parseEventKind(rawKind)
	return &ChangeEvent{
		Kind:      kind,
		RawKind:   raw,
		Table:     table,
		Topic:     f.Topic,
		Record:    record,
		OldRecord: oldRecord,
	}, nil
}

func kindMatches(want string, ev *ChangeEvent) bool {
	if want == "" || want == "*" {
		return true
	}
	if ev.Kind == EventOther {
		return ev.RawKind == want
	}
	return string(ev.Kind) == want
}

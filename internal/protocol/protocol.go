// Package protocol defines the assistant stream wire contract: the
// outbound message sanitizer and the inbound event envelope parser.
//
// The inbound side is intentionally loose beyond the mandatory envelope
// fields; everything past event_type is carried as raw JSON for the
// dispatch layer to decode per event class.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// Wire limits. Outbound frames violating these are never transmitted;
// inbound frames violating them are rejected before interpretation.
const (
	MaxInboundFrameSize   = 1_000_000
	MaxEventTypeLength    = 100
	MaxTextLength         = 10_000
	MaxActionLength       = 100
	MaxSelectedDocuments  = 100
	MaxDocumentNameLength = 500
)

var (
	// ErrFrameTooLarge is returned for inbound frames over MaxInboundFrameSize.
	ErrFrameTooLarge = errors.New("frame exceeds size limit")

	// ErrNotObject is returned when an inbound frame is not a JSON object.
	ErrNotObject = errors.New("frame is not a JSON object")

	// ErrMissingEventType is returned when event_type is absent or not a string.
	ErrMissingEventType = errors.New("missing event_type")

	// ErrEventTypeTooLong is returned when event_type exceeds MaxEventTypeLength.
	ErrEventTypeTooLong = errors.New("event_type exceeds length limit")

	// ErrTextTooLong is returned for outbound text over MaxTextLength.
	ErrTextTooLong = errors.New("text exceeds length limit")

	// ErrActionTooLong is returned for outbound actions over MaxActionLength.
	ErrActionTooLong = errors.New("action exceeds length limit")

	// ErrTooManySelections is returned for selection lists over MaxSelectedDocuments.
	ErrTooManySelections = errors.New("too many selected documents")

	// ErrSelectionNameTooLong is returned when a selected document name is over limit.
	ErrSelectionNameTooLong = errors.New("selected document name exceeds length limit")

	// ErrEmptyMessage is returned when an outbound message carries no fields.
	ErrEmptyMessage = errors.New("message has no content")
)

// ClientMessage is the only outbound frame shape. At most three optional
// fields; anything else is not part of the contract.
type ClientMessage struct {
	Text              string   `json:"text,omitempty"`
	Action            string   `json:"action,omitempty"`
	SelectedDocuments []string `json:"selected_documents,omitempty"`
}

// Validate checks the message against the fixed shape and size limits.
// Limits are in characters (runes), matching the backend contract.
func (m *ClientMessage) Validate() error {
	if m.Text == "" && m.Action == "" && len(m.SelectedDocuments) == 0 {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(m.Text) > MaxTextLength {
		return ErrTextTooLong
	}
	if utf8.RuneCountInString(m.Action) > MaxActionLength {
		return ErrActionTooLong
	}
	if len(m.SelectedDocuments) > MaxSelectedDocuments {
		return ErrTooManySelections
	}
	for _, name := range m.SelectedDocuments {
		if utf8.RuneCountInString(name) > MaxDocumentNameLength {
			return ErrSelectionNameTooLong
		}
	}
	return nil
}

// Encode validates and serializes the message. A message that fails
// validation is never serialized.
func (m *ClientMessage) Encode() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return data, nil
}

// ServerEvent is the inbound envelope. Only EventType is mandatory;
// the rest is optional and event-class specific. Fields holds every
// top-level member for lookups beyond the named ones.
type ServerEvent struct {
	EventType string
	SessionID string
	Timestamp string
	Text      string
	Payload   json.RawMessage
	Data      json.RawMessage
	Fields    map[string]json.RawMessage
	Raw       []byte
}

// ParseServerEvent applies the strict envelope checks to an inbound
// frame: size bound, plain-object shape, and a string event_type within
// its length limit. Everything else passes through untyped.
func ParseServerEvent(frame []byte) (*ServerEvent, error) {
	if len(frame) > MaxInboundFrameSize {
		return nil, ErrFrameTooLarge
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(frame, &fields); err != nil {
		return nil, ErrNotObject
	}
	if fields == nil {
		return nil, ErrNotObject
	}

	rawType, ok := fields["event_type"]
	if !ok {
		return nil, ErrMissingEventType
	}
	var eventType string
	if err := json.Unmarshal(rawType, &eventType); err != nil {
		return nil, ErrMissingEventType
	}
	if eventType == "" {
		return nil, ErrMissingEventType
	}
	if utf8.RuneCountInString(eventType) > MaxEventTypeLength {
		return nil, ErrEventTypeTooLong
	}

	evt := &ServerEvent{
		EventType: eventType,
		Fields:    fields,
		Raw:       frame,
	}
	evt.SessionID = stringField(fields, "session_id")
	evt.Timestamp = stringField(fields, "timestamp")
	evt.Text = stringField(fields, "text")
	if raw, ok := fields["payload"]; ok {
		evt.Payload = raw
	}
	if raw, ok := fields["data"]; ok {
		evt.Data = raw
	}
	return evt, nil
}

// DecodeBody unmarshals the event body into v. Event payloads arrive
// either under payload, under data, or inline at the top level; the
// first non-empty source wins.
func (e *ServerEvent) DecodeBody(v any) error {
	switch {
	case isObject(e.Payload):
		return json.Unmarshal(e.Payload, v)
	case isObject(e.Data):
		return json.Unmarshal(e.Data, v)
	default:
		return json.Unmarshal(e.Raw, v)
	}
}

// StringField returns a top-level string member, or "" when absent or
// not a string.
func (e *ServerEvent) StringField(key string) string {
	return stringField(e.Fields, key)
}

func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func isObject(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}

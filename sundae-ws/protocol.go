package sundaews

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Route keys configured on the WebSocket API.
const (
	RouteConnect     = "$connect"
	RouteDisconnect  = "$disconnect"
	RouteDefault     = "$default"
	RouteSendMessage = "sendmessage"
	RoutePing        = "ping"
)

var (
	ErrInvalidMessage      = errors.New("invalid message")
	ErrMissingData         = errors.New("missing data field")
	ErrMissingConnectionID = errors.New("missing connection id")
)

// Message is an inbound client frame, e.g. {"action":"sendmessage","data":"hello"}.
type Message struct {
	Action string          `json:"action,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// ParseMessage decodes an inbound frame. It does not require data; see Payload.
func ParseMessage(body string) (*Message, error) {
	var msg Message
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return &msg, nil
}

// Payload returns the bytes to broadcast for the data field. A JSON string is
// sent as its text, any other value as its JSON encoding. An absent or null
// data field is ErrMissingData.
func (m *Message) Payload() ([]byte, error) {
	return EncodePayload(m.Data)
}

func EncodePayload(raw json.RawMessage) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, ErrMissingData
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
		return []byte(s), nil
	}
	return trimmed, nil
}

// PongMessage is the fixed heartbeat acknowledgement.
func PongMessage() []byte {
	return []byte(`{"type":"pong"}`)
}

// Recipients renders a recipient count, e.g. "1 connection" or "0 connections".
func Recipients(n int) string {
	if n == 1 {
		return "1 connection"
	}
	return fmt.Sprintf("%d connections", n)
}

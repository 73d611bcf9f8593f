package signaling

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dotnet-simformsolutions/webrtcapp/internal/room"
)

type MessageType string

// Client-invoked operations.
const (
	MessageTypeCreateRoom  MessageType = "createRoom"
	MessageTypeJoin        MessageType = "join"
	MessageTypeMessage     MessageType = "message"
	MessageTypeLeave       MessageType = "leave"
	MessageTypeGetRoomInfo MessageType = "getRoomInfo"
)

// Server-pushed events.
const (
	MessageTypeCreated    MessageType = "created"
	MessageTypeJoined     MessageType = "joined"
	MessageTypeReady      MessageType = "ready"
	MessageTypeBye        MessageType = "bye"
	MessageTypeError      MessageType = "error"
	MessageTypeUpdateRoom MessageType = "updateRoom"
)

// ClientMessage is a frame received from a browser client.
type ClientMessage struct {
	Type   MessageType `json:"type"`
	Name   string      `json:"name,omitempty"`
	RoomID string      `json:"roomId,omitempty"`

	// Payload is the opaque signaling content (offer/answer/candidate). The
	// server relays it verbatim and never interprets it.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage is a frame pushed to a browser client.
type ServerMessage struct {
	Type    MessageType     `json:"type"`
	RoomID  string          `json:"roomId,omitempty"`
	Rooms   []RoomInfo      `json:"rooms,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
}

// RoomInfo is one entry of the room-list broadcast. The field casing and the
// Button affordance string match what the original web UI renders verbatim.
type RoomInfo struct {
	RoomID string `json:"RoomId"`
	Name   string `json:"Name"`
	Button string `json:"Button"`
}

// JoinButtonHTML is the fixed UI affordance included with every listed room.
// It is a display hint only; clients that render their own controls ignore it.
const JoinButtonHTML = "<button class='btn btn-outline-secondary'>Join a room</button>"

func roomInfoList(rooms []room.Room) []RoomInfo {
	out := make([]RoomInfo, 0, len(rooms))
	for _, rm := range rooms {
		out = append(out, RoomInfo{
			RoomID: rm.RoomID,
			Name:   rm.Name,
			Button: JoinButtonHTML,
		})
	}
	return out
}

// ParseClientMessage strictly decodes a client frame: unknown fields,
// trailing data, and per-type field mismatches are all rejected. A malformed
// frame costs its sender the connection, never anyone else's.
func ParseClientMessage(data []byte) (ClientMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var msg ClientMessage
	if err := dec.Decode(&msg); err != nil {
		return ClientMessage{}, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return ClientMessage{}, fmt.Errorf("unexpected trailing data")
	}
	if err := msg.validate(); err != nil {
		return ClientMessage{}, err
	}
	return msg, nil
}

func (m ClientMessage) validate() error {
	switch m.Type {
	case MessageTypeCreateRoom:
		if strings.TrimSpace(m.Name) == "" {
			return fmt.Errorf("createRoom message missing name")
		}
		if m.RoomID != "" || m.Payload != nil {
			return fmt.Errorf("createRoom message has unexpected fields")
		}
	case MessageTypeJoin:
		if m.RoomID == "" {
			return fmt.Errorf("join message missing roomId")
		}
		if m.Name != "" || m.Payload != nil {
			return fmt.Errorf("join message has unexpected fields")
		}
	case MessageTypeMessage:
		if m.RoomID == "" {
			return fmt.Errorf("message frame missing roomId")
		}
		if len(m.Payload) == 0 {
			return fmt.Errorf("message frame missing payload")
		}
		if m.Name != "" {
			return fmt.Errorf("message frame has unexpected fields")
		}
	case MessageTypeLeave:
		if m.RoomID == "" {
			return fmt.Errorf("leave message missing roomId")
		}
		if m.Name != "" || m.Payload != nil {
			return fmt.Errorf("leave message has unexpected fields")
		}
	case MessageTypeGetRoomInfo:
		if m.Name != "" || m.RoomID != "" || m.Payload != nil {
			return fmt.Errorf("getRoomInfo message has unexpected fields")
		}
	default:
		return fmt.Errorf("unsupported message type %q", m.Type)
	}
	return nil
}

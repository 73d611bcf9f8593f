package signaling

import (
	"encoding/json"
	"testing"

	"github.com/dotnet-simformsolutions/webrtcapp/internal/room"
)

func TestParseClientMessage(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    ClientMessage
		wantErr bool
	}{
		{
			name: "createRoom",
			data: `{"type":"createRoom","name":"standup"}`,
			want: ClientMessage{Type: MessageTypeCreateRoom, Name: "standup"},
		},
		{
			name: "join",
			data: `{"type":"join","roomId":"7"}`,
			want: ClientMessage{Type: MessageTypeJoin, RoomID: "7"},
		},
		{
			name: "message with payload",
			data: `{"type":"message","roomId":"7","payload":{"sdp":"v=0"}}`,
			want: ClientMessage{Type: MessageTypeMessage, RoomID: "7", Payload: json.RawMessage(`{"sdp":"v=0"}`)},
		},
		{
			name: "leave",
			data: `{"type":"leave","roomId":"7"}`,
			want: ClientMessage{Type: MessageTypeLeave, RoomID: "7"},
		},
		{
			name: "getRoomInfo",
			data: `{"type":"getRoomInfo"}`,
			want: ClientMessage{Type: MessageTypeGetRoomInfo},
		},
		{
			name:    "unknown type",
			data:    `{"type":"subscribe"}`,
			wantErr: true,
		},
		{
			name:    "unknown field",
			data:    `{"type":"getRoomInfo","extra":true}`,
			wantErr: true,
		},
		{
			name:    "trailing data",
			data:    `{"type":"getRoomInfo"}{"type":"getRoomInfo"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			data:    `hello`,
			wantErr: true,
		},
		{
			name:    "createRoom with blank name",
			data:    `{"type":"createRoom","name":"   "}`,
			wantErr: true,
		},
		{
			name:    "createRoom with roomId",
			data:    `{"type":"createRoom","name":"x","roomId":"1"}`,
			wantErr: true,
		},
		{
			name:    "join without roomId",
			data:    `{"type":"join"}`,
			wantErr: true,
		},
		{
			name:    "message without payload",
			data:    `{"type":"message","roomId":"7"}`,
			wantErr: true,
		},
		{
			name:    "leave with payload",
			data:    `{"type":"leave","roomId":"7","payload":{}}`,
			wantErr: true,
		},
		{
			name:    "getRoomInfo with roomId",
			data:    `{"type":"getRoomInfo","roomId":"7"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseClientMessage([]byte(tt.data))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseClientMessage(%q): expected error, got %+v", tt.data, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseClientMessage(%q): %v", tt.data, err)
			}
			if got.Type != tt.want.Type || got.Name != tt.want.Name || got.RoomID != tt.want.RoomID {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
			if string(got.Payload) != string(tt.want.Payload) {
				t.Fatalf("payload=%s, want %s", got.Payload, tt.want.Payload)
			}
		})
	}
}

func TestRoomInfoListJSONShape(t *testing.T) {
	rooms := []room.Room{{RoomID: "3", Name: "standup", HostConnectionID: "conn-1"}}

	data, err := json.Marshal(roomInfoList(rooms))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded []map[string]string
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded) != 1 {
		t.Fatalf("entries=%d", len(decoded))
	}
	entry := decoded[0]
	if entry["RoomId"] != "3" || entry["Name"] != "standup" {
		t.Fatalf("entry=%v", entry)
	}
	if entry["Button"] != "<button class='btn btn-outline-secondary'>Join a room</button>" {
		t.Fatalf("button=%q", entry["Button"])
	}
	// The host's connection ID must never leak to clients.
	if len(entry) != 3 {
		t.Fatalf("unexpected fields in room entry: %v", entry)
	}
}

func TestRoomInfoListEmpty(t *testing.T) {
	if got := roomInfoList(nil); len(got) != 0 {
		t.Fatalf("got %v, want empty", got)
	}
}

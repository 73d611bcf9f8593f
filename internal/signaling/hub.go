package signaling

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/dotnet-simformsolutions/webrtcapp/internal/metrics"
	"github.com/dotnet-simformsolutions/webrtcapp/internal/room"
)

// maxGroupSize caps a membership group at the two parties of a WebRTC call.
const maxGroupSize = 2

// peer is a hub's view of one connected client. send must be safe for
// concurrent use; the hub fans out to many peers from one goroutine but the
// keepalive and handler goroutines write too.
type peer interface {
	ID() string
	send(ServerMessage) error
	close()
}

// hub owns all connection-level state: the broadcast set, the membership
// groups, and which group each connection belongs to. It layers on top of the
// room registry, which only tracks rooms still waiting for a second member.
//
// Locking discipline: hub.mu protects the three maps and nothing else. Sends
// happen outside the lock, against a snapshot of targets, so one slow client
// cannot stall the hub.
type hub struct {
	log      *slog.Logger
	registry *room.Registry
	metrics  *metrics.Metrics

	mu sync.Mutex
	// sessions is every connected client, joined or not. updateRoom
	// broadcasts go to all of them.
	sessions map[string]peer
	// groups maps room ID to its (at most two) members.
	groups map[string]map[string]peer
	// memberships maps connection ID to the room ID it joined. A connection
	// belongs to at most one group.
	memberships map[string]string
}

func newHub(logger *slog.Logger, registry *room.Registry, m *metrics.Metrics) *hub {
	return &hub{
		log:         logger,
		registry:    registry,
		metrics:     m,
		sessions:    make(map[string]peer),
		groups:      make(map[string]map[string]peer),
		memberships: make(map[string]string),
	}
}

func (h *hub) register(p peer) {
	h.mu.Lock()
	h.sessions[p.ID()] = p
	h.mu.Unlock()

	h.metrics.ConnectionsOpened.Inc()
	h.metrics.ActiveConnections.Inc()
}

// disconnect tears down all state for a departing connection.
//
// Group co-members get no bye: an abrupt disconnect is indistinguishable from
// a network fault, and the peers' own connection monitoring handles it. Only
// the room list is re-broadcast, and only if this connection was hosting an
// open room.
func (h *hub) disconnect(p peer) {
	id := p.ID()

	h.mu.Lock()
	if _, ok := h.sessions[id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, id)
	h.removeFromGroupLocked(id)
	h.mu.Unlock()

	h.metrics.ConnectionsClosed.Inc()
	h.metrics.ActiveConnections.Dec()

	if h.registry.DeleteByHost(id) {
		h.metrics.RoomsDeleted.Inc()
		h.metrics.OpenRooms.Set(float64(h.registry.Len()))
		h.broadcastRoomList()
	}
}

// removeFromGroupLocked drops the connection from its membership group, if
// any, deleting the group once empty. Callers hold h.mu.
func (h *hub) removeFromGroupLocked(connID string) {
	roomID, ok := h.memberships[connID]
	if !ok {
		return
	}
	delete(h.memberships, connID)

	group := h.groups[roomID]
	delete(group, connID)
	if len(group) == 0 {
		delete(h.groups, roomID)
	}
}

// createRoom registers a new open room hosted by p and places p in the
// room's membership group. All connected clients learn about the new room via
// an updateRoom broadcast. A connection that already belongs to a group (as
// host or joiner) may not create another room; one connection, one room.
func (h *hub) createRoom(p peer, name string) {
	h.mu.Lock()
	if _, ok := h.memberships[p.ID()]; ok {
		h.mu.Unlock()
		h.sendError(p, "already_in_room", "connection already belongs to a room")
		return
	}
	h.mu.Unlock()

	rm, err := h.registry.Create(p.ID(), name)
	if err != nil {
		code := "create_failed"
		if errors.Is(err, room.ErrRegistryFull) {
			code = "registry_full"
			h.metrics.Drops.WithLabelValues(metrics.DropReasonRoomFull).Inc()
		}
		h.sendError(p, code, "could not create room")
		return
	}

	h.mu.Lock()
	// Registry IDs are never reused, so a group already keyed by this fresh
	// ID can only hold squatters who joined the ID before it was allocated.
	// Evict them; the room starts with its host alone.
	for squatter := range h.groups[rm.RoomID] {
		delete(h.memberships, squatter)
	}
	h.groups[rm.RoomID] = map[string]peer{p.ID(): p}
	h.memberships[p.ID()] = rm.RoomID
	h.mu.Unlock()

	h.metrics.RoomsCreated.Inc()
	h.metrics.OpenRooms.Set(float64(h.registry.Len()))

	h.sendTo(p, ServerMessage{Type: MessageTypeCreated, RoomID: rm.RoomID})
	h.broadcastRoomList()
}

// join adds p to the room's membership group as its second member.
//
// The group fills at the transport level first; only then is the room retired
// from the registry so it stops being advertised. Joining an ID with no group
// creates one: the joiner simply waits alone, which is harmless and matches
// how membership groups have always behaved.
func (h *hub) join(p peer, roomID string) {
	h.mu.Lock()
	if _, ok := h.memberships[p.ID()]; ok {
		h.mu.Unlock()
		h.sendError(p, "already_in_room", "connection already belongs to a room")
		return
	}
	group := h.groups[roomID]
	if len(group) >= maxGroupSize {
		h.mu.Unlock()
		h.metrics.Drops.WithLabelValues(metrics.DropReasonRoomFull).Inc()
		h.sendError(p, "room_full", "room already has two members")
		return
	}
	if group == nil {
		group = make(map[string]peer)
		h.groups[roomID] = group
	}
	group[p.ID()] = p
	h.memberships[p.ID()] = roomID

	members := make([]peer, 0, len(group))
	for _, member := range group {
		members = append(members, member)
	}
	h.mu.Unlock()

	h.metrics.Joins.Inc()

	// Every join signals ready to the whole group, lone joiners included;
	// clients gate their offer on membership, not on this event alone.
	h.sendTo(p, ServerMessage{Type: MessageTypeJoined, RoomID: roomID})
	for _, member := range members {
		h.sendTo(member, ServerMessage{Type: MessageTypeReady, RoomID: roomID})
	}

	if h.registry.Delete(roomID) {
		h.metrics.RoomsDeleted.Inc()
		h.metrics.OpenRooms.Set(float64(h.registry.Len()))
		h.broadcastRoomList()
	}
}

// relay forwards an opaque payload to the other member of p's group. With no
// group or no co-member the payload is dropped without comment: signaling is
// inherently racy around joins and leaves, and the peers retry at the
// application level.
func (h *hub) relay(p peer, roomID string, payload json.RawMessage) {
	targets := h.othersInGroup(p.ID(), roomID)
	for _, target := range targets {
		if h.sendTo(target, ServerMessage{
			Type:    MessageTypeMessage,
			RoomID:  roomID,
			Payload: payload,
		}) {
			h.metrics.MessagesRelayed.Inc()
		}
	}
}

// leave announces departure to the group and removes p from it. Unlike a
// disconnect, an explicit leave is a deliberate hang-up, so the co-member
// gets a bye.
func (h *hub) leave(p peer, roomID string) {
	targets := h.othersInGroup(p.ID(), roomID)
	for _, target := range targets {
		h.sendTo(target, ServerMessage{Type: MessageTypeBye, RoomID: roomID})
	}

	h.mu.Lock()
	if h.memberships[p.ID()] == roomID {
		h.removeFromGroupLocked(p.ID())
	}
	h.mu.Unlock()
}

// roomInfo sends the current open-room list to the requesting client only.
func (h *hub) roomInfo(p peer) {
	h.sendTo(p, ServerMessage{
		Type:  MessageTypeUpdateRoom,
		Rooms: roomInfoList(h.registry.Rooms()),
	})
}

// othersInGroup snapshots the members of roomID other than connID. Returns
// nil unless connID is actually present in that group; a stale memberships
// entry alone must not grant access.
func (h *hub) othersInGroup(connID, roomID string) []peer {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.memberships[connID] != roomID {
		return nil
	}
	group := h.groups[roomID]
	if _, ok := group[connID]; !ok {
		return nil
	}
	others := make([]peer, 0, len(group))
	for id, member := range group {
		if id != connID {
			others = append(others, member)
		}
	}
	return others
}

// broadcastRoomList pushes the open-room list to every connected client.
// Fire and forget: a failed send is counted and logged, never retried.
func (h *hub) broadcastRoomList() {
	msg := ServerMessage{
		Type:  MessageTypeUpdateRoom,
		Rooms: roomInfoList(h.registry.Rooms()),
	}

	h.mu.Lock()
	targets := make([]peer, 0, len(h.sessions))
	for _, p := range h.sessions {
		targets = append(targets, p)
	}
	h.mu.Unlock()

	for _, p := range targets {
		h.sendTo(p, msg)
	}
}

func (h *hub) sendError(p peer, code, message string) {
	h.sendTo(p, ServerMessage{Type: MessageTypeError, Code: code, Message: message})
}

func (h *hub) sendTo(p peer, msg ServerMessage) bool {
	if err := p.send(msg); err != nil {
		h.metrics.BroadcastSendErrors.Inc()
		h.log.Debug("send to client failed", "conn_id", p.ID(), "type", string(msg.Type), "err", err)
		return false
	}
	return true
}

// closeAll force-closes every connection. Used on server shutdown; the
// per-connection read loops then run the normal disconnect path.
func (h *hub) closeAll() {
	h.mu.Lock()
	targets := make([]peer, 0, len(h.sessions))
	for _, p := range h.sessions {
		targets = append(targets, p)
	}
	h.mu.Unlock()

	for _, p := range targets {
		p.close()
	}
}

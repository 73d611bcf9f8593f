// Package room holds the process-wide registry of open rooms.
//
// A room is "open" while it has exactly one member (the host waiting for a
// peer). The instant a second participant joins, the room is removed from the
// registry and lives on only as a transport-level membership group.
package room

import (
	"errors"
	"strconv"
	"strings"
	"sync"
)

// Room is a two-party session slot awaiting its second participant.
//
// Rooms are never updated in place; they are inserted once and removed once.
type Room struct {
	RoomID           string
	Name             string
	HostConnectionID string
}

var (
	ErrRegistryFull = errors.New("room: registry full")
	ErrRoomExists   = errors.New("room: id already in use")
	ErrEmptyName    = errors.New("room: name must not be empty")
)

// Registry is the single source of truth for open rooms.
//
// All methods are safe for unsynchronized concurrent use from independent
// connection goroutines. Construct one per process and inject it; there is no
// package-level instance.
type Registry struct {
	// maxRooms caps the number of simultaneously open rooms. <= 0 means
	// unlimited.
	maxRooms int

	mu     sync.Mutex
	rooms  map[string]Room
	nextID uint64
}

func NewRegistry(maxRooms int) *Registry {
	return &Registry{
		maxRooms: maxRooms,
		rooms:    make(map[string]Room),
		nextID:   1,
	}
}

// Create allocates the next room ID and inserts a new room atomically.
//
// The ID counter advances on every allocation attempt, including failed ones,
// so an ID is never handed out twice: a slot lost to a race must not be
// resurrected later with stale metadata. Callers surface a failure to the
// client; they must not retry here.
func (r *Registry) Create(hostConnectionID, name string) (Room, error) {
	if strings.TrimSpace(name) == "" {
		// The UI validates this, but the registry cannot trust its callers.
		return Room{}, ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxRooms > 0 && len(r.rooms) >= r.maxRooms {
		return Room{}, ErrRegistryFull
	}

	id := strconv.FormatUint(r.nextID, 10)
	r.nextID++

	if _, ok := r.rooms[id]; ok {
		return Room{}, ErrRoomExists
	}

	rm := Room{
		RoomID:           id,
		Name:             name,
		HostConnectionID: hostConnectionID,
	}
	r.rooms[id] = rm
	return rm, nil
}

// Delete removes a room by ID. Removing an absent room is a no-op.
//
// It reports whether a room was actually removed so callers can keep gauges
// accurate.
func (r *Registry) Delete(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[roomID]; !ok {
		return false
	}
	delete(r.rooms, roomID)
	return true
}

// DeleteByHost removes the room hosted by the given connection, if any.
//
// Each connection hosts at most one open room, so at most one entry can
// match. This is the disconnect-cleanup path and must tolerate hosts that
// never created a room.
func (r *Registry) DeleteByHost(connectionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, rm := range r.rooms {
		if rm.HostConnectionID == connectionID {
			delete(r.rooms, id)
			return true
		}
	}
	return false
}

// Rooms returns an unordered snapshot of the open rooms.
//
// The snapshot is taken under the lock but callers iterate their own copy, so
// a concurrent create/delete is simply absent from (or present in) the slice.
// Room-list broadcasts are best effort; that is fine.
func (r *Registry) Rooms() []Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		out = append(out, rm)
	}
	return out
}

// Len returns the number of currently open rooms.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

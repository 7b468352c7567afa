package relay

import (
	"sort"
	"sync"

	"github.com/revempire/revchat/internal/metrics"
)

// Room is a named chat channel with its own history and membership.
// The hub goroutine is the only writer; the HTTP introspection surface
// reads through the lock.
type Room struct {
	name string

	mu       sync.RWMutex
	messages []Message
	members  map[*Client]struct{}
}

func newRoom(name string) *Room {
	return &Room{
		name:    name,
		members: make(map[*Client]struct{}),
	}
}

// Name returns the room's sanitized name.
func (r *Room) Name() string {
	return r.name
}

// append adds a message to the room history, evicting the oldest
// entries once the history exceeds limit.
func (r *Room) append(msg Message, limit int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages = append(r.messages, msg)
	if limit > 0 && len(r.messages) > limit {
		evicted := len(r.messages) - limit
		r.messages = append(r.messages[:0], r.messages[evicted:]...)
		metrics.HistoryEvictions.Add(float64(evicted))
	}
}

// history returns a snapshot copy of the room's messages, oldest first.
func (r *Room) history() []Message {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make([]Message, len(r.messages))
	copy(snapshot, r.messages)
	return snapshot
}

// MessageCount returns the number of retained history messages.
func (r *Room) MessageCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.messages)
}

func (r *Room) addMember(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[c] = struct{}{}
}

func (r *Room) removeMember(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, c)
}

func (r *Room) hasMember(c *Client) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[c]
	return ok
}

// MemberCount returns the number of currently joined sessions.
func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// memberList returns a snapshot of the current members so the hub can
// fan out without holding the room lock during sends.
func (r *Room) memberList() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]*Client, 0, len(r.members))
	for c := range r.members {
		members = append(members, c)
	}
	return members
}

// RoomInfo is the introspection view of a room.
type RoomInfo struct {
	Name         string `json:"name"`
	MessageCount int    `json:"messageCount"`
	MemberCount  int    `json:"memberCount"`
}

// Registry maps room names to rooms. Rooms are created lazily on first
// reference and persist for the lifetime of the process.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewRegistry creates an empty room registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// GetOrCreate returns the room with the given name, creating it on
// first reference. Idempotent.
func (reg *Registry) GetOrCreate(name string) *Room {
	reg.mu.RLock()
	room, ok := reg.rooms[name]
	reg.mu.RUnlock()
	if ok {
		return room
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if room, ok := reg.rooms[name]; ok {
		return room
	}
	room = newRoom(name)
	reg.rooms[name] = room
	metrics.RoomsCreated.Inc()
	return room
}

// Lookup returns the room with the given name, or nil when it has never
// been referenced.
func (reg *Registry) Lookup(name string) *Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.rooms[name]
}

// List returns introspection info for every known room, sorted by name
// for stable output.
func (reg *Registry) List() []RoomInfo {
	reg.mu.RLock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		rooms = append(rooms, room)
	}
	reg.mu.RUnlock()

	infos := make([]RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		infos = append(infos, RoomInfo{
			Name:         room.Name(),
			MessageCount: room.MessageCount(),
			MemberCount:  room.MemberCount(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

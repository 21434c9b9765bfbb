package relay

// PresenceTracker keeps the per-session roster of joined connections.
// A roster is either absent or non-empty: the entry is deleted on the last
// leave so sets never linger with zero members.
//
// The tracker is owned by the hub goroutine and is not safe for concurrent
// use on its own.
type PresenceTracker struct {
	rooms map[string]map[string]struct{}
}

// NewPresenceTracker creates an empty tracker.
func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{rooms: make(map[string]map[string]struct{})}
}

// Join adds the connection to the session's roster, creating it if absent,
// and returns the new roster size.
func (p *PresenceTracker) Join(sessionID, connID string) int {
	room, ok := p.rooms[sessionID]
	if !ok {
		room = make(map[string]struct{})
		p.rooms[sessionID] = room
	}
	room[connID] = struct{}{}
	return len(room)
}

// Leave removes the connection from the session's roster and returns the
// remaining size. The roster entry is deleted when it becomes empty.
// Leaving an unknown session or room is a no-op.
func (p *PresenceTracker) Leave(sessionID, connID string) int {
	room, ok := p.rooms[sessionID]
	if !ok {
		return 0
	}
	delete(room, connID)
	if len(room) == 0 {
		delete(p.rooms, sessionID)
		return 0
	}
	return len(room)
}

// Size returns the roster size, 0 for unknown sessions.
func (p *PresenceTracker) Size(sessionID string) int {
	return len(p.rooms[sessionID])
}

// Contains reports whether the connection is joined to the session.
func (p *PresenceTracker) Contains(sessionID, connID string) bool {
	_, ok := p.rooms[sessionID][connID]
	return ok
}

// Each calls fn for every connection joined to the session.
func (p *PresenceTracker) Each(sessionID string, fn func(connID string)) {
	for id := range p.rooms[sessionID] {
		fn(id)
	}
}

// Rooms returns the number of live rosters.
func (p *PresenceTracker) Rooms() int {
	return len(p.rooms)
}

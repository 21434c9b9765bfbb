package relay

// Registry is the authoritative map from connection ID to its session
// affiliations and admin flag. It owns the presence tracker and the admin
// broadcast set so that a single Unregister call cleans everything up.
//
// All mutation happens on the hub goroutine; the registry itself takes no
// locks.
type Registry struct {
	conns    map[string]*connState
	presence *PresenceTracker
	admins   *AdminSet
}

type connState struct {
	// eligible is fixed at registration from the authenticated transport
	// route; admin tracks broadcast-set membership, toggled by the
	// connection itself.
	eligible    bool
	admin       bool
	displayName string
	rooms       map[string]struct{}
}

// Departure describes one room a connection was removed from on unregister,
// so the caller can emit a leave notification.
type Departure struct {
	SessionID   string
	DisplayName string
	Remaining   int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:    make(map[string]*connState),
		presence: NewPresenceTracker(),
		admins:   NewAdminSet(),
	}
}

// Register records a new connection together with its admin eligibility.
// Eligibility comes from the authenticated transport route and cannot be
// changed afterwards. Registering an already-known ID is a no-op.
func (r *Registry) Register(connID string, eligible bool) {
	if _, ok := r.conns[connID]; ok {
		return
	}
	r.conns[connID] = &connState{eligible: eligible, rooms: make(map[string]struct{})}
}

// Known reports whether the connection is registered.
func (r *Registry) Known(connID string) bool {
	_, ok := r.conns[connID]
	return ok
}

// JoinSession associates the connection with a session room and returns the
// room's occupancy. Idempotent: re-joining reports the current occupancy.
// Joining on an unknown connection is a no-op and reports ok=false.
func (r *Registry) JoinSession(connID, sessionID, displayName string) (occupancy int, ok bool) {
	c, found := r.conns[connID]
	if !found {
		return 0, false
	}
	if displayName != "" {
		c.displayName = displayName
	}
	c.rooms[sessionID] = struct{}{}
	return r.presence.Join(sessionID, connID), true
}

// LeaveSession removes the connection from a session room and returns the
// remaining occupancy.
func (r *Registry) LeaveSession(connID, sessionID string) (remaining int, ok bool) {
	c, found := r.conns[connID]
	if !found {
		return 0, false
	}
	delete(c.rooms, sessionID)
	return r.presence.Leave(sessionID, connID), true
}

// MarkAdmin flags the connection as an admin observer and adds it to the
// broadcast set. Unknown and non-eligible connections are ignored.
func (r *Registry) MarkAdmin(connID string) {
	c, found := r.conns[connID]
	if !found || !c.eligible {
		return
	}
	c.admin = true
	r.admins.Add(connID)
}

// AdminEligible reports whether the connection arrived over the
// authenticated admin route.
func (r *Registry) AdminEligible(connID string) bool {
	c, found := r.conns[connID]
	return found && c.eligible
}

// UnmarkAdmin clears the admin flag and removes the connection from the
// broadcast set.
func (r *Registry) UnmarkAdmin(connID string) {
	if c, found := r.conns[connID]; found {
		c.admin = false
	}
	r.admins.Remove(connID)
}

// IsAdmin reports whether the connection is an admin observer.
func (r *Registry) IsAdmin(connID string) bool {
	return r.admins.Contains(connID)
}

// InRoom reports whether the connection is joined to the session's room.
func (r *Registry) InRoom(connID, sessionID string) bool {
	return r.presence.Contains(sessionID, connID)
}

// DisplayName returns the name recorded on join, empty when unknown.
func (r *Registry) DisplayName(connID string) string {
	if c, found := r.conns[connID]; found {
		return c.displayName
	}
	return ""
}

// Unregister removes the connection from every room and from the admin set,
// returning one Departure per room it was joined to. Calling it twice, or
// for an unknown ID, is safe and returns nil.
func (r *Registry) Unregister(connID string) []Departure {
	c, found := r.conns[connID]
	if !found {
		return nil
	}

	var departures []Departure
	for sessionID := range c.rooms {
		remaining := r.presence.Leave(sessionID, connID)
		departures = append(departures, Departure{
			SessionID:   sessionID,
			DisplayName: c.displayName,
			Remaining:   remaining,
		})
	}

	r.admins.Remove(connID)
	delete(r.conns, connID)
	return departures
}

// Presence exposes the per-session roster tracker.
func (r *Registry) Presence() *PresenceTracker {
	return r.presence
}

// Admins exposes the admin broadcast set.
func (r *Registry) Admins() *AdminSet {
	return r.admins
}

package relay

// AdminSet is the set of connections belonging to admin dashboards.
// Membership is independent of any session room: admins in this set receive
// summary notifications for every session. Owned by the hub goroutine.
type AdminSet struct {
	members map[string]struct{}
}

// NewAdminSet creates an empty set.
func NewAdminSet() *AdminSet {
	return &AdminSet{members: make(map[string]struct{})}
}

// Add marks the connection as an admin observer.
func (a *AdminSet) Add(connID string) {
	a.members[connID] = struct{}{}
}

// Remove drops the connection; removing a non-member is a no-op.
func (a *AdminSet) Remove(connID string) {
	delete(a.members, connID)
}

// Contains reports membership.
func (a *AdminSet) Contains(connID string) bool {
	_, ok := a.members[connID]
	return ok
}

// Each calls fn for every admin observer connection.
func (a *AdminSet) Each(fn func(connID string)) {
	for id := range a.members {
		fn(id)
	}
}

// Len returns the number of admin observers.
func (a *AdminSet) Len() int {
	return len(a.members)
}

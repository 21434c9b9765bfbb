package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_RegisterJoinLeave(t *testing.T) {
	r := NewRegistry()

	r.Register("c1", true)
	assert.True(t, r.Known("c1"))
	// re-register keeps existing state
	occ, ok := r.JoinSession("c1", "s1", "Ada")
	assert.True(t, ok)
	assert.Equal(t, 1, occ)
	r.Register("c1", true)
	assert.True(t, r.InRoom("c1", "s1"))

	assert.Equal(t, "Ada", r.DisplayName("c1"))

	// joining on an unknown connection is a no-op
	_, ok = r.JoinSession("ghost", "s1", "x")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Presence().Size("s1"))

	remaining, ok := r.LeaveSession("c1", "s1")
	assert.True(t, ok)
	assert.Equal(t, 0, remaining)
	assert.False(t, r.InRoom("c1", "s1"))
}

func TestRegistry_AdminFlag(t *testing.T) {
	r := NewRegistry()
	r.Register("a1", true)

	r.MarkAdmin("a1")
	assert.True(t, r.IsAdmin("a1"))
	assert.Equal(t, 1, r.Admins().Len())

	r.UnmarkAdmin("a1")
	assert.False(t, r.IsAdmin("a1"))

	// unknown connections never enter the admin set
	r.MarkAdmin("ghost")
	assert.False(t, r.IsAdmin("ghost"))

	// neither do connections that came in over the visitor route
	r.Register("v1", false)
	assert.False(t, r.AdminEligible("v1"))
	r.MarkAdmin("v1")
	assert.False(t, r.IsAdmin("v1"))
	assert.True(t, r.AdminEligible("a1"))
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", true)
	r.Register("c2", false)
	r.JoinSession("c1", "s1", "Ada")
	r.JoinSession("c2", "s1", "Bob")
	r.JoinSession("c1", "s2", "")
	r.MarkAdmin("c1")

	deps := r.Unregister("c1")
	assert.Len(t, deps, 2)
	for _, d := range deps {
		assert.Equal(t, "Ada", d.DisplayName)
		switch d.SessionID {
		case "s1":
			assert.Equal(t, 1, d.Remaining)
		case "s2":
			assert.Equal(t, 0, d.Remaining)
		default:
			t.Fatalf("unexpected departure: %s", d.SessionID)
		}
	}

	assert.False(t, r.Known("c1"))
	assert.False(t, r.IsAdmin("c1"))
	// the single-member room was deleted with the departure
	assert.Equal(t, 1, r.Presence().Rooms())

	// unregistering twice is safe
	assert.Nil(t, r.Unregister("c1"))
}

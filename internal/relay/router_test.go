package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parleyhq/parley/internal/common/cnst"
)

// recorder captures every delivery per connection so tests can assert on the
// exact fan-out.
type recorder struct {
	sent map[string][]*Envelope
}

func newRecorder() *recorder {
	return &recorder{sent: make(map[string][]*Envelope)}
}

func (r *recorder) deliver(connID string, env *Envelope) {
	r.sent[connID] = append(r.sent[connID], env)
}

func (r *recorder) events(connID string) []string {
	var names []string
	for _, env := range r.sent[connID] {
		names = append(names, env.Event)
	}
	return names
}

func (r *recorder) reset() {
	r.sent = make(map[string][]*Envelope)
}

func newTestRouter() (*Registry, *recorder, *Router) {
	reg := NewRegistry()
	rec := newRecorder()
	return reg, rec, NewRouter(reg, rec.deliver, zap.NewNop(), nil)
}

func TestRouter_JoinSession(t *testing.T) {
	reg, rec, router := newTestRouter()
	reg.Register("c1", false)
	reg.Register("c2", false)
	reg.Register("a1", true)
	reg.MarkAdmin("a1")

	router.Route(&Event{Kind: KindJoinSession, ConnID: "c1", SessionID: "s1", DisplayName: "Ada"})

	// first joiner sees itself as the only active user
	require.Len(t, rec.sent["c1"], 1)
	assert.Equal(t, EventSessionJoined, rec.sent["c1"][0].Event)
	assert.Equal(t, SessionJoinedData{SessionID: "s1", ActiveUsers: 1}, rec.sent["c1"][0].Data)

	// every admin hears about the new conversation
	assert.Equal(t, []string{EventNewSessionStarted}, rec.events("a1"))
	// bystanders not in the room hear nothing
	assert.Empty(t, rec.sent["c2"])

	rec.reset()
	router.Route(&Event{Kind: KindJoinSession, ConnID: "c2", SessionID: "s1", DisplayName: "Bob"})

	// the second joiner is acknowledged and announced to the room
	assert.Equal(t, SessionJoinedData{SessionID: "s1", ActiveUsers: 2}, rec.sent["c2"][0].Data)
	require.Len(t, rec.sent["c1"], 1)
	assert.Equal(t, EventUserJoined, rec.sent["c1"][0].Event)
	assert.Equal(t, RoomMemberData{SessionID: "s1", DisplayName: "Bob", ActiveUsers: 2}, rec.sent["c1"][0].Data)

	// joining on an unregistered connection routes nothing
	rec.reset()
	router.Route(&Event{Kind: KindJoinSession, ConnID: "ghost", SessionID: "s1"})
	assert.Empty(t, rec.sent)
}

func TestRouter_MessageEchoAndRoom(t *testing.T) {
	reg, rec, router := newTestRouter()
	reg.Register("c1", false)
	reg.Register("c2", false)
	reg.JoinSession("c1", "s1", "Ada")
	reg.JoinSession("c2", "s1", "Bob")

	router.Route(&Event{Kind: KindSendMessage, ConnID: "c1", SessionID: "s1", Body: "hi", Sender: cnst.RoleUser})

	// the sender gets its own message back as the delivery confirmation
	assert.Equal(t, []string{EventNewMessage}, rec.events("c1"))
	assert.Equal(t, []string{EventNewMessage}, rec.events("c2"))

	data := rec.sent["c2"][0].Data.(MessageData)
	assert.Equal(t, "hi", data.Message)
	assert.Equal(t, cnst.RoleUser, data.Sender)
	assert.False(t, data.Timestamp.IsZero())
}

func TestRouter_MessageAdminDeliveryDisjoint(t *testing.T) {
	reg, rec, router := newTestRouter()
	reg.Register("c1", false)
	reg.Register("inRoom", true)
	reg.Register("outside", true)
	reg.JoinSession("c1", "s1", "Ada")
	reg.JoinSession("inRoom", "s1", "")
	reg.MarkAdmin("inRoom")
	reg.MarkAdmin("outside")

	router.Route(&Event{Kind: KindSendMessage, ConnID: "c1", SessionID: "s1", Body: "hi", Sender: cnst.RoleUser})

	// the admin inside the room already got the message through the room
	// fan-out, so it only gets the summary ping on top
	assert.ElementsMatch(t, []string{EventNewMessage, EventAdminNewMessage}, rec.events("inRoom"))
	// the admin outside gets the ping plus the full payload, exactly once
	assert.ElementsMatch(t, []string{EventAdminNewMessage, EventNewMessage}, rec.events("outside"))

	// admin replies do not ping the admin list
	rec.reset()
	router.Route(&Event{Kind: KindAdminMessage, ConnID: "inRoom", SessionID: "s1", Body: "hello"})
	assert.Equal(t, []string{EventNewMessage}, rec.events("c1"))
	assert.Empty(t, rec.events("outside"))
}

func TestRouter_Typing(t *testing.T) {
	reg, rec, router := newTestRouter()
	reg.Register("c1", false)
	reg.Register("c2", false)
	reg.Register("a1", true)
	reg.JoinSession("c1", "s1", "Ada")
	reg.JoinSession("c2", "s1", "Bob")
	reg.MarkAdmin("a1")

	yes, no := true, false

	router.Route(&Event{Kind: KindTyping, ConnID: "c1", SessionID: "s1", Sender: cnst.RoleUser, IsTyping: &yes})

	// the room hears it, the sender does not
	assert.Empty(t, rec.events("c1"))
	assert.Equal(t, []string{EventTyping}, rec.events("c2"))
	// an active user typing signal reaches the admin list
	assert.Equal(t, []string{EventUserTyping}, rec.events("a1"))

	rec.reset()
	router.Route(&Event{Kind: KindTyping, ConnID: "c1", SessionID: "s1", Sender: cnst.RoleUser, IsTyping: &no})

	// "stopped typing" stays inside the room
	assert.Equal(t, []string{EventTyping}, rec.events("c2"))
	assert.False(t, rec.sent["c2"][0].Data.(TypingData).IsTyping)
	assert.Empty(t, rec.events("a1"))
}

func TestRouter_MarkRead(t *testing.T) {
	reg, rec, router := newTestRouter()
	reg.Register("c1", false)
	reg.Register("c2", false)
	reg.JoinSession("c1", "s1", "Ada")
	reg.JoinSession("c2", "s1", "Bob")

	router.Route(&Event{Kind: KindMarkRead, ConnID: "c1", SessionID: "s1", Sender: cnst.RoleUser})

	assert.Empty(t, rec.events("c1"))
	require.Equal(t, []string{EventMessagesRead}, rec.events("c2"))
	assert.Equal(t, ReadData{SessionID: "s1", Sender: cnst.RoleUser}, rec.sent["c2"][0].Data)
}

func TestRouter_AdminSessionPresence(t *testing.T) {
	reg, rec, router := newTestRouter()
	reg.Register("c1", false)
	reg.Register("a1", true)
	reg.JoinSession("c1", "s1", "Ada")
	reg.MarkAdmin("a1")

	router.Route(&Event{Kind: KindAdminJoinSession, ConnID: "a1", SessionID: "s1"})
	require.Equal(t, []string{EventAdminStatus}, rec.events("c1"))
	assert.Equal(t, AdminStatusData{SessionID: "s1", Online: true}, rec.sent["c1"][0].Data)

	rec.reset()
	router.Route(&Event{Kind: KindAdminLeaveSess, ConnID: "a1", SessionID: "s1"})
	require.Equal(t, []string{EventAdminStatus}, rec.events("c1"))
	assert.Equal(t, AdminStatusData{SessionID: "s1", Online: false}, rec.sent["c1"][0].Data)
}

func TestRouter_ModerationBroadcasts(t *testing.T) {
	reg, rec, router := newTestRouter()
	reg.Register("c1", false)
	reg.Register("a1", true)
	reg.JoinSession("c1", "s1", "Ada")
	reg.JoinSession("a1", "s1", "")
	reg.MarkAdmin("a1")

	router.Route(&Event{Kind: KindSessionDeleted, SessionID: "s1"})

	// everyone in the room hears the kill notification exactly once
	assert.Equal(t, []string{EventSessionDeleted}, rec.events("c1"))
	assert.Equal(t, []string{EventSessionDeleted}, rec.events("a1"))

	rec.reset()
	router.Route(&Event{Kind: KindUserBlocked, SessionID: "s1"})
	assert.Equal(t, []string{EventUserBlocked}, rec.events("c1"))
	assert.Equal(t, []string{EventUserBlocked}, rec.events("a1"))
}

func TestRouter_AdminKindsRequireEligibleConnection(t *testing.T) {
	reg, rec, router := newTestRouter()
	reg.Register("visitor", false)
	reg.Register("victim", false)
	reg.JoinSession("victim", "s1", "Ada")

	// a visitor socket claiming admin-join never enters the broadcast set
	router.Route(&Event{Kind: KindAdminJoin, ConnID: "visitor"})
	assert.False(t, reg.IsAdmin("visitor"))

	router.Route(&Event{Kind: KindSendMessage, ConnID: "victim", SessionID: "s1", Body: "secret", Sender: cnst.RoleUser})
	assert.Empty(t, rec.events("visitor"))

	// spoofed moderation and admin kinds from the visitor are dropped
	rec.reset()
	router.Route(&Event{Kind: KindSessionDeleted, ConnID: "visitor", SessionID: "s1"})
	router.Route(&Event{Kind: KindUserBlocked, ConnID: "visitor", SessionID: "s1"})
	router.Route(&Event{Kind: KindAdminMessage, ConnID: "visitor", SessionID: "s1", Body: "hi"})
	router.Route(&Event{Kind: KindAdminJoinSession, ConnID: "visitor", SessionID: "s1"})
	assert.Empty(t, rec.sent)

	// moderation events without a local connection still broadcast: REST
	// handlers post them after their own auth check
	router.Route(&Event{Kind: KindSessionDeleted, SessionID: "s1"})
	assert.Equal(t, []string{EventSessionDeleted}, rec.events("victim"))
}

func TestRouter_DisconnectingAdminAnnouncesOffline(t *testing.T) {
	reg, rec, router := newTestRouter()
	reg.Register("c1", false)
	reg.Register("a1", true)
	reg.JoinSession("c1", "s1", "Ada")
	reg.MarkAdmin("a1")
	reg.JoinSession("a1", "s1", "")

	router.Disconnect("a1")

	// the room hears the admin go offline, never a phantom user-left
	require.Equal(t, []string{EventAdminStatus}, rec.events("c1"))
	assert.Equal(t, AdminStatusData{SessionID: "s1", Online: false}, rec.sent["c1"][0].Data)
	assert.False(t, reg.IsAdmin("a1"))
}

func TestRouter_Disconnect(t *testing.T) {
	reg, rec, router := newTestRouter()
	reg.Register("c1", false)
	reg.Register("c2", false)
	reg.JoinSession("c1", "s1", "Ada")
	reg.JoinSession("c2", "s1", "Bob")

	router.Disconnect("c1")

	require.Equal(t, []string{EventUserLeft}, rec.events("c2"))
	assert.Equal(t, RoomMemberData{SessionID: "s1", DisplayName: "Ada", ActiveUsers: 1}, rec.sent["c2"][0].Data)
	assert.False(t, reg.Known("c1"))

	// the last departure deletes the roster entirely
	rec.reset()
	router.Disconnect("c2")
	assert.Equal(t, 0, reg.Presence().Rooms())

	// disconnecting an unknown connection routes nothing
	rec.reset()
	router.Disconnect("ghost")
	assert.Empty(t, rec.sent)
}

package relay

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parleyhq/parley/internal/common/config"
)

func TestNewBridge_ConnectFailure(t *testing.T) {
	_, err := NewBridge(context.Background(), zap.NewNop(), config.BridgeConfig{
		Addr: "127.0.0.1:1",
	})
	assert.Error(t, err)
}

func TestBridge_PublishAndReceive(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.BridgeConfig{Addr: mr.Addr()}

	sender, err := NewBridge(context.Background(), zap.NewNop(), cfg)
	require.NoError(t, err)
	defer sender.Close()
	assert.Equal(t, "parley:relay", sender.topic)

	receiver, err := NewBridge(context.Background(), zap.NewNop(), cfg)
	require.NoError(t, err)
	defer receiver.Close()

	hub := newTestHub()
	go receiver.Run(hub)

	// a frame from the hub's own instance must be skipped
	sender.Publish(&Event{Kind: KindSendMessage, SessionID: "s1", Body: "own"}, hub.InstanceID())
	// a frame from another instance is injected with its origin stamped
	sender.Publish(&Event{Kind: KindSendMessage, SessionID: "s1", Body: "remote"}, "other-instance")

	select {
	case op := <-hub.ops:
		require.NotNil(t, op.event)
		assert.Equal(t, KindSendMessage, op.event.Kind)
		assert.Equal(t, "remote", op.event.Body)
		assert.Equal(t, "other-instance", op.event.Origin)
	case <-time.After(2 * time.Second):
		t.Fatal("no remote event arrived")
	}

	// nothing else queued: the own-origin frame never reached the hub
	select {
	case op := <-hub.ops:
		t.Fatalf("unexpected extra event: %+v", op.event)
	case <-time.After(100 * time.Millisecond):
	}
}

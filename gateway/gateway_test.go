package gateway

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/swarmchat/core/orchestrator"
)

type recordingSink struct {
	mu     sync.Mutex
	events []orchestrator.OutboundEvent
}

func (r *recordingSink) HandleEvent(ev orchestrator.OutboundEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSink) received() []orchestrator.OutboundEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]orchestrator.OutboundEvent(nil), r.events...)
}

type panickingSink struct{}

func (panickingSink) HandleEvent(orchestrator.OutboundEvent) {
	panic("boom")
}

func TestFanoutDispatchesToAllSinks(t *testing.T) {
	f := NewFanout()
	a := &recordingSink{}
	b := &recordingSink{}
	f.Register(a)
	f.Register(b)

	ev := orchestrator.OutboundEvent{Type: orchestrator.EventAIResponse, RoomID: "room-1"}
	f.Dispatch(ev)

	require.Len(t, a.received(), 1)
	require.Len(t, b.received(), 1)
	assert.Equal(t, ev, a.received()[0])
}

func TestFanoutIsolatesPanickingSink(t *testing.T) {
	f := NewFanout()
	f.Register(panickingSink{})
	good := &recordingSink{}
	f.Register(good)

	assert.NotPanics(t, func() {
		f.Dispatch(orchestrator.OutboundEvent{Type: orchestrator.EventAISleeping, RoomID: "room-1"})
	})
	require.Len(t, good.received(), 1)
}

func TestFanoutWithNoSinksIsANoop(t *testing.T) {
	f := NewFanout()
	assert.NotPanics(t, func() {
		f.Dispatch(orchestrator.OutboundEvent{Type: orchestrator.EventAIAwakened})
	})
}

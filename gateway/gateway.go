// Package gateway defines the contract between the orchestration core and
// external chat surfaces: inbound actions a channel can invoke on the
// Orchestrator, and outbound events the Orchestrator fans out to every
// registered channel.
package gateway

import (
	"log/slog"
	"sync"

	"github.com/hrygo/swarmchat/core/chatmodel"
	"github.com/hrygo/swarmchat/core/orchestrator"
)

// Orchestrator is the inbound surface a gateway channel drives. It is a
// narrow view of *orchestrator.Orchestrator, declared locally so gateway
// adapters can be unit tested against a fake without touching the real
// scheduler.
type Orchestrator interface {
	AddMessage(m chatmodel.Message)
	ChangeTopic(newTopic, by, roomID string)
	SetRoomAllowedAIs(roomID string, aiIDs []string)
	ClearRoomAllowedAIs(roomID string)
	Wake()
	Sleep()
}

// EventSink receives outbound orchestrator events. A channel adapter
// (e.g. gateway/telegram) implements this to turn ai-response events into
// platform sends.
type EventSink interface {
	HandleEvent(ev orchestrator.OutboundEvent)
}

// Fanout distributes one orchestrator.OutboundEvent to every registered
// EventSink. Its Dispatch method is the EventCallback passed to
// orchestrator.New — this is the seam that lets cmd/swarmchat wire
// multiple channels (Telegram, a future platform, the admin surface) onto
// a single Orchestrator without the orchestrator knowing about any of
// them, mirroring the teacher's ChannelRouter pattern
// (plugin/chat_apps/channels/base.go) one layer further out.
type Fanout struct {
	mu    sync.RWMutex
	sinks []EventSink
}

// NewFanout creates an empty Fanout.
func NewFanout() *Fanout {
	return &Fanout{}
}

// Register adds a sink. Safe to call concurrently with Dispatch.
func (f *Fanout) Register(sink EventSink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinks = append(f.sinks, sink)
}

// Dispatch fans ev out to every registered sink, recovering a panicking
// sink so one misbehaving channel cannot take down delivery to the
// others — the same fault-isolation stance the broker and the
// orchestrator's own event dispatcher take.
func (f *Fanout) Dispatch(ev orchestrator.OutboundEvent) {
	f.mu.RLock()
	sinks := make([]EventSink, len(f.sinks))
	copy(sinks, f.sinks)
	f.mu.RUnlock()

	for _, sink := range sinks {
		f.safeHandle(sink, ev)
	}
}

func (f *Fanout) safeHandle(sink EventSink, ev orchestrator.OutboundEvent) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("gateway: event sink panicked, continuing", "panic", r, "event_type", ev.Type)
		}
	}()
	sink.HandleEvent(ev)
}

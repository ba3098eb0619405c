package orchestrator

import (
	"log/slog"

	"github.com/hrygo/swarmchat/core/chatmodel"
)

// EventType enumerates the outbound events a gateway can subscribe to.
type EventType string

const (
	EventAIGeneratingStart EventType = "ai-generating-start"
	EventAIGeneratingStop  EventType = "ai-generating-stop"
	EventAIResponse        EventType = "ai-response"
	EventAIError           EventType = "ai-error"
	EventAISleeping        EventType = "ais-sleeping"
	EventAIAwakened        EventType = "ais-awakened"
	EventTopicChanged      EventType = "topic-changed"
	EventTopicSuggested    EventType = "topic-suggested"
)

// OutboundEvent is one notification delivered to gateway subscribers.
type OutboundEvent struct {
	Type    EventType
	RoomID  string
	AIID    string
	Message chatmodel.Message
	Err     error
}

// EventCallback receives outbound events. It must not block for long —
// the dispatcher calls it from a single dedicated goroutine and a slow
// callback delays every subsequent event.
type EventCallback func(OutboundEvent)

// eventBufferSize bounds the dispatcher's channel; beyond this, new events
// are dropped with a logged warning rather than blocking the orchestrator.
const eventBufferSize = 256

// eventDispatcher is a single-consumer, buffered-channel event fan-out,
// grounded on the teacher's ai/agents/orchestrator/event_dispatcher.go: one
// goroutine drains the channel and invokes the callback sequentially, a
// panicking callback is recovered and logged rather than taking down the
// dispatcher, and a full buffer drops the newest event instead of blocking
// the publisher.
type eventDispatcher struct {
	ch       chan OutboundEvent
	callback EventCallback
	done     chan struct{}
}

func newEventDispatcher(callback EventCallback) *eventDispatcher {
	d := &eventDispatcher{
		ch:       make(chan OutboundEvent, eventBufferSize),
		callback: callback,
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *eventDispatcher) run() {
	for ev := range d.ch {
		d.deliver(ev)
	}
	close(d.done)
}

func (d *eventDispatcher) deliver(ev OutboundEvent) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("orchestrator: event callback panicked, continuing",
				"panic", r, "event_type", ev.Type)
		}
	}()
	if d.callback != nil {
		d.callback(ev)
	}
}

func (d *eventDispatcher) publish(ev OutboundEvent) {
	select {
	case d.ch <- ev:
	default:
		slog.Warn("orchestrator: event dispatcher buffer full, dropping event",
			"event_type", ev.Type, "room_id", ev.RoomID)
	}
}

func (d *eventDispatcher) stop() {
	close(d.ch)
	<-d.done
}

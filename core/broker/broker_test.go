package broker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/swarmchat/core/chatmodel"
)

func collect(b *Broker, n int) (<-chan []Event, func()) {
	out := make(chan []Event, 1)
	var mu sync.Mutex
	var got []Event
	done := make(chan struct{})
	var once sync.Once

	b.Subscribe(func(e Event) {
		mu.Lock()
		got = append(got, e)
		count := len(got)
		mu.Unlock()
		if count >= n {
			once.Do(func() { close(done) })
		}
	})

	go func() {
		<-done
		mu.Lock()
		defer mu.Unlock()
		out <- append([]Event(nil), got...)
	}()

	return out, func() {}
}

func TestEnqueuePriorityOrder(t *testing.T) {
	b := New(WithProcessingQuantum(0))
	out, _ := collect(b, 3)

	b.Enqueue(chatmodel.Message{SenderType: chatmodel.SenderAI, Content: "ai"}, nil)
	b.Enqueue(chatmodel.Message{SenderType: chatmodel.SenderUser, Content: "user"}, nil)
	b.Enqueue(chatmodel.Message{SenderType: chatmodel.SenderSystem, Content: "sys"}, nil)

	select {
	case events := <-out:
		require.Len(t, events, 3)
		assert.Equal(t, "user", events[0].Message.Content)
		assert.Equal(t, "sys", events[1].Message.Content)
		assert.Equal(t, "ai", events[2].Message.Content)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for events")
	}
}

func TestEnqueueFIFOTieBreak(t *testing.T) {
	b := New(WithProcessingQuantum(0))
	out, _ := collect(b, 2)

	b.Enqueue(chatmodel.Message{SenderType: chatmodel.SenderUser, Content: "first"}, nil)
	b.Enqueue(chatmodel.Message{SenderType: chatmodel.SenderUser, Content: "second"}, nil)

	select {
	case events := <-out:
		require.Len(t, events, 2)
		assert.Equal(t, "first", events[0].Message.Content)
		assert.Equal(t, "second", events[1].Message.Content)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for events")
	}
}

func TestOverflowEmitsError(t *testing.T) {
	b := New(WithProcessingQuantum(time.Hour))
	b.Pause()

	var errEvents int
	var mu sync.Mutex
	b.Subscribe(func(e Event) {
		if e.Type == EventError {
			mu.Lock()
			errEvents++
			mu.Unlock()
		}
	})

	for i := 0; i < MaxQueue+5; i++ {
		b.Enqueue(chatmodel.Message{SenderType: chatmodel.SenderUser}, nil)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 5, errEvents)
	assert.Equal(t, MaxQueue, b.Len())
}

func TestSubscriberPanicRecovered(t *testing.T) {
	b := New(WithProcessingQuantum(0))

	var faultSeen bool
	var mu sync.Mutex
	done := make(chan struct{})

	b.Subscribe(func(e Event) {
		if e.Type == EventMessageReady {
			panic("boom")
		}
	})
	b.Subscribe(func(e Event) {
		if e.Type == EventMessageError {
			mu.Lock()
			faultSeen = true
			mu.Unlock()
			close(done)
		}
	})

	b.Enqueue(chatmodel.Message{SenderType: chatmodel.SenderUser}, nil)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message-error")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, faultSeen)
}

func TestClearDropsPending(t *testing.T) {
	b := New(WithProcessingQuantum(time.Hour))
	b.Pause()
	b.Enqueue(chatmodel.Message{SenderType: chatmodel.SenderUser}, nil)
	b.Enqueue(chatmodel.Message{SenderType: chatmodel.SenderUser}, nil)
	require.Equal(t, 2, b.Len())

	b.Clear()
	assert.Equal(t, 0, b.Len())
}

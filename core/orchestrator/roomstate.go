package orchestrator

import (
	"sync"
	"time"

	"github.com/hrygo/swarmchat/core/contextstore"
)

// roomState is the Orchestrator's per-room mutable bookkeeping: the
// context log, the awake/sleep counters, and the room's own background
// ticker. One roomState is created the first time a room is seen and
// lives for the orchestrator's lifetime (spec's Open Question resolution:
// background scheduling is per-room, not a single hard-coded "default").
type roomState struct {
	id string

	ctx *contextstore.Store

	mu              sync.Mutex
	aiMessageCount  int
	lastAIMessageTime int64 // monotonic ms
	sleeping        bool

	bgTimer *time.Timer
}

func newRoomState(id string, maxMessages int) *roomState {
	return &roomState{
		id:  id,
		ctx: contextstore.New(maxMessages),
	}
}

func (r *roomState) isSleeping() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sleeping
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

package orchestrator

import (
	"time"

	"github.com/hrygo/swarmchat/core/respqueue"
)

// armBackgroundTick schedules rs's next background tick after delay. It is
// called once when a room is first seen, and again by backgroundTick to re-arm
// itself — the per-room background loop described in spec §4.6, applied
// per room rather than to one hard-coded "default" room.
func (o *Orchestrator) armBackgroundTick(rs *roomState, delay time.Duration) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.bgTimer != nil {
		rs.bgTimer.Stop()
	}
	rs.bgTimer = time.AfterFunc(delay, func() { o.backgroundTick(rs) })
}

// backgroundTick fires at the room's scheduled time. It clears justResponded
// for AIs eligible to speak *in this room* (Open Question resolution:
// justResponded clears on the next background tick for that AI's room —
// justResponded is a single per-AI flag, not per-(AI,room), so only a room's
// own tick may clear it for the AIs actually allow-listed there; otherwise an
// AI active in several rooms would have its suppression cleared by whichever
// room's ticker happened to fire first), then either schedules a background
// round or — on rooms that have gone silent past SILENCE_TIMEOUT — skips,
// occasionally emitting a topic-suggested nudge instead.
func (o *Orchestrator) backgroundTick(rs *roomState) {
	o.roomsMu.Lock()
	stopped := o.stopped
	o.roomsMu.Unlock()
	if stopped {
		return
	}

	rs.mu.Lock()
	sleeping := rs.sleeping
	lastAI := rs.lastAIMessageTime
	rs.mu.Unlock()

	activeCount := 0
	for _, ai := range o.registry.Active() {
		if o.allowList.Allowed(rs.id, ai.ID) {
			activeCount++
			ai.SetJustResponded(false)
		}
	}

	if sleeping || activeCount == 0 {
		o.armBackgroundTick(rs, SleepRetry)
		return
	}

	nextDelay := uniformDuration(o.rnd.Int63n, respqueue.MinBG, respqueue.MaxBG)
	o.armBackgroundTick(rs, nextDelay)

	if lastAI == 0 || nowMillis()-lastAI <= SilenceTimeout.Milliseconds() {
		o.schedule(rs.id, false)
		return
	}

	if o.rnd.Float64() < TopicChangeChance {
		o.events.publish(OutboundEvent{Type: EventTopicSuggested, RoomID: rs.id})
	}
}

// uniformDuration mirrors respqueue's unexported helper of the same shape;
// duplicated here since the background loop's own re-arm delay is computed
// outside respqueue.Delay (which scopes to per-responder scheduling, not the
// tick interval itself).
func uniformDuration(int63n func(int64) int64, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	span := max - min
	return min + time.Duration(int63n(int64(span)))
}

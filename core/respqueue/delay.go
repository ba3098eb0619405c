package respqueue

import (
	"math/rand"
	"time"
)

// Defaults from the configuration enumeration (spec §6).
const (
	MinUser    = 4000 * time.Millisecond
	MaxUser    = 22000 * time.Millisecond
	MinBG      = 30000 * time.Millisecond
	MaxBG      = 90000 * time.Millisecond
	MinBetween = 6000 * time.Millisecond
	MaxBetween = 18000 * time.Millisecond

	MinFirst = 2500 * time.Millisecond
	MaxFirst = 4500 * time.Millisecond

	MinMentioned          = 400 * time.Millisecond
	MentionedMultiplier    = 0.35
	TypingAwarenessDelay   = 2500 * time.Millisecond
	TypingAwarenessMaxMult = 3.0
)

// DelayParams bundles the inputs to Delay for one scheduled responder.
type DelayParams struct {
	// K is the 0-indexed position of this responder within the current
	// scheduling batch.
	K int
	IsUserResponse bool
	Mentioned      bool
	TypingAICount  int
}

// Delay computes the scheduling delay for the k-th responder in a batch, per
// spec §4.5. rnd must be supplied by the caller for reproducibility under a
// seeded source.
func Delay(rnd *rand.Rand, p DelayParams) time.Duration {
	var base time.Duration
	if p.IsUserResponse {
		base = uniformDuration(rnd, MinUser, MaxUser)
	} else {
		base = uniformDuration(rnd, MinBG, MaxBG)
	}

	if p.K == 0 {
		floor := uniformDuration(rnd, MinFirst, MaxFirst)
		if floor > base {
			base = floor
		}
	} else {
		for i := 0; i < p.K; i++ {
			base += uniformDuration(rnd, MinBetween, MaxBetween)
		}
	}

	if p.Mentioned {
		base = time.Duration(float64(base) * MentionedMultiplier)
		if base < MinMentioned {
			base = MinMentioned
		}
	}

	if p.TypingAICount > 0 {
		mult := 1 + float64(p.TypingAICount)*(float64(TypingAwarenessDelay)/float64(base))
		if mult > TypingAwarenessMaxMult {
			mult = TypingAwarenessMaxMult
		}
		base = time.Duration(float64(base) * mult)
		base += time.Duration(p.TypingAICount) * TypingAwarenessDelay
	}

	if base < 0 {
		base = 0
	}
	maxClamp := 2 * MaxUser
	if base > maxClamp {
		base = maxClamp
	}
	return base
}

func uniformDuration(rnd *rand.Rand, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	span := max - min
	return min + time.Duration(rnd.Int63n(int64(span)))
}

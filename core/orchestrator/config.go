package orchestrator

import "time"

// Configuration constants from the enumeration in spec §6, grouped here so
// every magic number used by the orchestration core traces back to one
// place.
const (
	AIContext               = 50
	RecentForPrompt         = 5
	MaxSentences            = 15
	MaxStreamedLength       = 1000
	MaxAIMessages           = 10
	SilenceTimeout          = 120 * time.Second
	SleepRetry              = 30 * time.Second
	TopicChangeChance       = 0.10
	DefaultRoomID           = "default"
)

// Flags are the boolean feature toggles named in spec §6.
type Flags struct {
	EnablePersonas        bool
	SkipHealthcheck       bool
	VerboseContextLogging bool
}

// Config bundles the Orchestrator's tunables. Zero-value Config is usable:
// every field either has a sane default applied in New, or a zero value
// that matches the spec's default behavior (flags off).
type Config struct {
	Flags Flags

	// MaxMessages bounds each room's ContextStore (I1). Defaults to
	// contextstore.DefaultMaxMessages when zero.
	MaxMessages int

	// RandSeed seeds the orchestrator's random source, for reproducible
	// strategy/delay/mention decisions in tests. Zero uses a time-seeded
	// source.
	RandSeed int64
	// UseSeed is set by tests that want RandSeed honored even when it is 0.
	UseSeed bool
}

// Package registry implements the AIRegistry: alias resolution over a set
// of registered AI capabilities, with bounded-parallelism initialization
// (spec §4.3).
package registry

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/hrygo/swarmchat/core/chatmodel"
)

// MaxParallelInit bounds concurrent capability initializations (I-cap §5).
const MaxParallelInit = 8

// Config describes one AI participant to register.
type Config struct {
	ID           string
	ProviderKey  string
	ProviderName string
	ModelKey     string
	ModelName    string
	DisplayName  string // overrides "<providerName> <modelName>" when set
	Alias        string // without leading '@'; defaults to ID
	Emoji        string
	Persona      string
	Capability   chatmodel.Capability
	SkipHealthcheck bool
}

// InitFailure records one config that failed to register.
type InitFailure struct {
	ID  string
	Err error
}

// Registry maps AI id to AIRecord and answers alias lookups (I4).
type Registry struct {
	mu      sync.RWMutex
	byID    map[string]*chatmodel.AIRecord
	byAlias map[string]*chatmodel.AIRecord // keyed by normalized alias
	order   []string                       // registration order, for deterministic iteration
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		byID:    make(map[string]*chatmodel.AIRecord),
		byAlias: make(map[string]*chatmodel.AIRecord),
	}
}

// Initialize runs up to MaxParallelInit concurrent capability
// initializations. Failures are collected and logged, never fatal: a
// config that fails is simply excluded from the registry. Successful
// registrations only become observable once Initialize returns.
func (r *Registry) Initialize(ctx context.Context, configs []Config) []InitFailure {
	type built struct {
		cfg    Config
		record *chatmodel.AIRecord
	}

	results := make([]*built, len(configs))
	failures := make([]InitFailure, 0)
	var failuresMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxParallelInit)

	for i, cfg := range configs {
		i, cfg := i, cfg
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return nil
			}
			if err := cfg.Capability.Initialize(!cfg.SkipHealthcheck); err != nil {
				failuresMu.Lock()
				failures = append(failures, InitFailure{ID: cfg.ID, Err: err})
				failuresMu.Unlock()
				slog.Warn("registry: ai initialization failed, excluding from registry",
					"ai_id", cfg.ID, "error", err)
				return nil
			}

			displayName := cfg.DisplayName
			if displayName == "" {
				displayName = cfg.ProviderName + " " + cfg.ModelName
			}
			emoji := cfg.Emoji
			if emoji == "" {
				emoji = "🤖"
			}
			alias := cfg.Alias
			if alias == "" {
				alias = cfg.ID
			}

			record := &chatmodel.AIRecord{
				ID:              cfg.ID,
				ProviderKey:     cfg.ProviderKey,
				ModelKey:        cfg.ModelKey,
				DisplayName:     displayName,
				DisplayAlias:    alias,
				Alias:           "@" + strings.TrimPrefix(alias, "@"),
				NormalizedAlias: Normalize(alias),
				Emoji:           emoji,
				Persona:         cfg.Persona,
				IsActive:        true,
				Capability:      cfg.Capability,
			}
			results[i] = &built{cfg: cfg, record: record}
			return nil
		})
	}
	_ = g.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range results {
		if b == nil {
			continue
		}
		r.byID[b.record.ID] = b.record
		r.byAlias[b.record.NormalizedAlias] = b.record
		r.order = append(r.order, b.record.ID)
	}

	return failures
}

// Normalize lowercases, strips a leading '@', drops non-alphanumerics, and
// collapses whitespace — the canonical alias form used for lookups (I4, I5).
func Normalize(token string) string {
	token = strings.TrimPrefix(strings.TrimSpace(token), "@")
	var b strings.Builder
	lastWasSpace := false
	for _, r := range token {
		switch {
		case unicode.IsSpace(r):
			lastWasSpace = true
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if lastWasSpace && b.Len() > 0 {
				// Whitespace between alphanumerics collapses to nothing —
				// alias normalization has no internal separators.
			}
			lastWasSpace = false
			b.WriteRune(unicode.ToLower(r))
		default:
			// drop punctuation entirely
		}
	}
	return b.String()
}

// FindByNormalizedAlias returns the record for an exact normalized-alias match.
func (r *Registry) FindByNormalizedAlias(normalized string) (*chatmodel.AIRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byAlias[normalized]
	return rec, ok
}

// FindByID returns the record registered under id.
func (r *Registry) FindByID(id string) (*chatmodel.AIRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byID[id]
	return rec, ok
}

// FindFromContextMessage resolves the AIRecord that produced m, preferring
// m.AIID, then m.NormalizedAlias, then normalize(m.Alias) or normalize(m.Sender).
func (r *Registry) FindFromContextMessage(m chatmodel.Message) (*chatmodel.AIRecord, bool) {
	if m.AIID != "" {
		if rec, ok := r.FindByID(m.AIID); ok {
			return rec, true
		}
	}
	if m.NormalizedAlias != "" {
		if rec, ok := r.FindByNormalizedAlias(m.NormalizedAlias); ok {
			return rec, true
		}
	}
	if m.Alias != "" {
		if rec, ok := r.FindByNormalizedAlias(Normalize(m.Alias)); ok {
			return rec, true
		}
	}
	return r.FindByNormalizedAlias(Normalize(m.Sender))
}

// GetDisplayName returns the AI's display name.
func GetDisplayName(ai *chatmodel.AIRecord) string { return ai.DisplayName }

// Active returns all active AIRecords, in registration order.
func (r *Registry) Active() []*chatmodel.AIRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*chatmodel.AIRecord, 0, len(r.order))
	for _, id := range r.order {
		if rec := r.byID[id]; rec != nil && rec.IsActive {
			out = append(out, rec)
		}
	}
	return out
}

// All returns every registered AIRecord, in registration order.
func (r *Registry) All() []*chatmodel.AIRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*chatmodel.AIRecord, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// SetActive toggles an AI's administrative enable/disable flag.
func (r *Registry) SetActive(id string, active bool) bool {
	r.mu.RLock()
	rec, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	rec.IsActive = active
	return true
}

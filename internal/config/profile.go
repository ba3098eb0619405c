// Package config loads the orchestration core's runtime Profile from
// environment variables, in the shape of the teacher's internal/profile
// package: a flat struct populated by FromEnv, checked by Validate.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// Profile is the configuration needed to start a swarmchat instance: one
// or more AI participants, the optional persistence/Telegram adapters,
// and the feature flags the orchestrator's Config.Flags accepts. The
// scheduling/delay constants from spec.md §6 (MAX_AI_MESSAGES,
// MIN_USER/MAX_USER, SILENCE_TIMEOUT, ...) are not exposed here: they are
// compiled-in constants in core/orchestrator and core/respqueue, not
// per-deployment knobs, so a Profile field for them would be unwired.
type Profile struct {
	Mode string // "dev", "demo", or "prod"
	Addr string
	Port int

	// AIs is the set of AI participants to register. At least one is
	// required for Validate to succeed.
	AIs []AIProfile

	// Persistence, optional: empty Driver means memory-only, no failure.
	PersistenceDriver string // "" or "sqlite"
	PersistenceDSN    string

	// Telegram gateway, optional: empty BotToken disables the channel.
	TelegramBotToken  string
	TelegramParseMode string

	// AdminAddr is the listen address for the admin HTTP surface.
	AdminAddr string

	// MaxMessages bounds each room's ContextStore (I1); 0 keeps the
	// orchestrator's own default.
	MaxMessages int

	EnablePersonas        bool
	SkipHealthcheck       bool
	VerboseContextLogging bool
}

// AIProfile describes one registered AI participant, loaded from an
// indexed family of SWARMCHAT_AI_<N>_* environment variables.
type AIProfile struct {
	ID          string
	Provider    string // zai, deepseek, openai, siliconflow, openrouter, ollama
	APIKey      string
	BaseURL     string
	Model       string
	DisplayName string
	Alias       string
	Emoji       string
	Persona     string
	TimeoutSec  int
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvOrDefaultBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables. Mode, Addr,
// Port, AdminAddr, PersistenceDriver and PersistenceDSN are filled in only
// when the caller left them at their zero value; every other field is
// always overwritten from the environment. This mirrors the teacher's
// profile.FromEnv: cmd/swarmchat populates those six fields from viper
// (which binds --flags and SWARMCHAT_* env vars) before calling FromEnv,
// so those viper-sourced values win; FromEnv supplies defaults for them
// when called directly, e.g. from tests — the same as viper's except Mode,
// which defaults to "dev" here and "demo" in cmd/swarmchat. The AI participant family is an
// indexed, dynamically-sized set viper has no native support for, so it
// is always scanned directly off the environment.
func (p *Profile) FromEnv() {
	if p.Mode == "" {
		p.Mode = getEnvOrDefault("SWARMCHAT_MODE", "dev")
	}
	if p.Addr == "" {
		p.Addr = getEnvOrDefault("SWARMCHAT_ADDR", "")
	}
	if p.Port == 0 {
		p.Port = getEnvOrDefaultInt("SWARMCHAT_PORT", 28081)
	}

	p.MaxMessages = getEnvOrDefaultInt("SWARMCHAT_MAX_MESSAGES", 100)

	p.EnablePersonas = getEnvOrDefaultBool("SWARMCHAT_ENABLE_PERSONAS", false)
	p.SkipHealthcheck = getEnvOrDefaultBool("SWARMCHAT_SKIP_HEALTHCHECK", false)
	p.VerboseContextLogging = getEnvOrDefaultBool("SWARMCHAT_VERBOSE_CONTEXT_LOGGING", false)

	if p.PersistenceDriver == "" {
		p.PersistenceDriver = getEnvOrDefault("SWARMCHAT_PERSISTENCE_DRIVER", "")
	}
	if p.PersistenceDSN == "" {
		p.PersistenceDSN = getEnvOrDefault("SWARMCHAT_PERSISTENCE_DSN", "")
	}

	p.TelegramBotToken = getEnvOrDefault("SWARMCHAT_TELEGRAM_BOT_TOKEN", "")
	p.TelegramParseMode = getEnvOrDefault("SWARMCHAT_TELEGRAM_PARSE_MODE", "Markdown")

	if p.AdminAddr == "" {
		p.AdminAddr = getEnvOrDefault("SWARMCHAT_ADMIN_ADDR", ":28082")
	}

	p.AIs = loadAIsFromEnv()
}

// aiProviderDefaults mirrors the teacher's llmProviderDefaults table:
// base URL and model applied when not explicitly set per AI.
var aiProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"zai": {
		BaseURL: "https://open.bigmodel.cn/api/paas/v4",
		Model:   "glm-4.7",
	},
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-5.2",
	},
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "Qwen/Qwen2.5-72B-Instruct",
	},
	"openrouter": {
		BaseURL: "https://openrouter.ai/api/v1",
		Model:   "deepseek/deepseek-chat",
	},
	"ollama": {
		BaseURL: "http://localhost:11434",
		Model:   "llama3.1",
	},
}

// loadAIsFromEnv scans SWARMCHAT_AI_<N>_* for N = 1, 2, ... until it hits
// an index with neither PROVIDER nor API_KEY set. A bare, unsuffixed
// SWARMCHAT_AI_* family (index "") is also accepted so a single-AI
// deployment needs no numbering.
func loadAIsFromEnv() []AIProfile {
	var ais []AIProfile

	if ai, ok := loadOneAI("", "ai-1"); ok {
		ais = append(ais, ai)
	}

	for i := 1; ; i++ {
		suffix := fmt.Sprintf("_%d", i)
		ai, ok := loadOneAI(suffix, "ai"+suffix)
		if !ok {
			break
		}
		ais = append(ais, ai)
	}

	return ais
}

func loadOneAI(suffix, defaultID string) (AIProfile, bool) {
	prefix := "SWARMCHAT_AI" + suffix + "_"
	provider := os.Getenv(prefix + "PROVIDER")
	apiKey := os.Getenv(prefix + "API_KEY")
	if provider == "" && apiKey == "" {
		return AIProfile{}, false
	}
	if provider == "" {
		provider = "zai"
	}
	if _, ok := aiProviderDefaults[provider]; !ok {
		slog.Warn("config: unknown AI provider, using default zai", "provider", provider, "suffix", suffix)
		provider = "zai"
	}

	defaults := aiProviderDefaults[provider]
	id := getEnvOrDefault(prefix+"ID", defaultID)

	return AIProfile{
		ID:          id,
		Provider:    provider,
		APIKey:      apiKey,
		BaseURL:     getEnvOrDefault(prefix+"BASE_URL", defaults.BaseURL),
		Model:       getEnvOrDefault(prefix+"MODEL", defaults.Model),
		DisplayName: getEnvOrDefault(prefix+"DISPLAY_NAME", ""),
		Alias:       getEnvOrDefault(prefix+"ALIAS", id),
		Emoji:       getEnvOrDefault(prefix+"EMOJI", ""),
		Persona:     getEnvOrDefault(prefix+"PERSONA", ""),
		TimeoutSec:  getEnvOrDefaultInt(prefix+"TIMEOUT_SECONDS", 120),
	}, true
}

// Validate checks that the profile is internally consistent enough to
// start an instance. Unlike the teacher's Validate (which prepares a
// data directory for its database), this orchestration core has no
// mandatory on-disk state, so validation concerns the mode, the AI
// participants, and the optional persistence driver (defaulting its DSN).
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if len(p.AIs) == 0 {
		return errors.New("at least one AI participant must be configured (SWARMCHAT_AI_PROVIDER/SWARMCHAT_AI_API_KEY)")
	}
	for _, ai := range p.AIs {
		if ai.APIKey == "" {
			return errors.Errorf("AI %q has no API key configured", ai.ID)
		}
	}

	if p.PersistenceDriver != "" && p.PersistenceDriver != "sqlite" {
		return errors.Errorf("unsupported persistence driver %q", p.PersistenceDriver)
	}
	if p.PersistenceDriver == "sqlite" && p.PersistenceDSN == "" {
		p.PersistenceDSN = fmt.Sprintf("swarmchat_%s.db", p.Mode)
	}

	return nil
}

// IsDev reports whether the instance is running outside "prod" mode.
func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

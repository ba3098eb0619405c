package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/swarmchat/core/chatmodel"
)

type fakeCapability struct {
	initErr error
	name    string
}

func (f *fakeCapability) Initialize(bool) error { return f.initErr }
func (f *fakeCapability) Generate(_ []chatmodel.ContextMessage) (chatmodel.GenerateResult, error) {
	return chatmodel.GenerateResult{Content: "ok"}, nil
}
func (f *fakeCapability) Name() string       { return f.name }
func (f *fakeCapability) Model() string      { return "test-model" }
func (f *fakeCapability) IsConfigured() bool { return true }

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"@Claude":      "claude",
		"  GPT-4  ":    "gpt4",
		"@gemini_pro":  "geminipro",
		"":             "",
		"Mixed Case 1": "mixedcase1",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "input=%q", in)
	}
}

func TestInitializeExcludesFailures(t *testing.T) {
	r := New()
	configs := []Config{
		{ID: "a", Alias: "a", ProviderName: "P", ModelName: "M", Capability: &fakeCapability{name: "a"}},
		{ID: "b", Alias: "b", ProviderName: "P", ModelName: "M", Capability: &fakeCapability{name: "b", initErr: errors.New("boom")}},
	}

	failures := r.Initialize(context.Background(), configs)
	require.Len(t, failures, 1)
	assert.Equal(t, "b", failures[0].ID)

	_, ok := r.FindByID("b")
	assert.False(t, ok)

	rec, ok := r.FindByID("a")
	require.True(t, ok)
	assert.True(t, rec.IsActive)
}

func TestFindByNormalizedAlias(t *testing.T) {
	r := New()
	r.Initialize(context.Background(), []Config{
		{ID: "claude-1", Alias: "Claude", ProviderName: "Anthropic", ModelName: "Opus", Capability: &fakeCapability{name: "claude"}},
	})

	rec, ok := r.FindByNormalizedAlias("claude")
	require.True(t, ok)
	assert.Equal(t, "claude-1", rec.ID)
	assert.Equal(t, "@Claude", rec.Alias)
}

func TestFindFromContextMessageFallbackChain(t *testing.T) {
	r := New()
	r.Initialize(context.Background(), []Config{
		{ID: "gpt", Alias: "gpt", ProviderName: "OpenAI", ModelName: "4o", Capability: &fakeCapability{name: "gpt"}},
	})

	rec, ok := r.FindFromContextMessage(chatmodel.Message{AIID: "gpt"})
	require.True(t, ok)
	assert.Equal(t, "gpt", rec.ID)

	rec, ok = r.FindFromContextMessage(chatmodel.Message{Sender: "@GPT"})
	require.True(t, ok)
	assert.Equal(t, "gpt", rec.ID)

	_, ok = r.FindFromContextMessage(chatmodel.Message{Sender: "nobody"})
	assert.False(t, ok)
}

func TestActiveExcludesDisabled(t *testing.T) {
	r := New()
	r.Initialize(context.Background(), []Config{
		{ID: "a", Alias: "a", ProviderName: "P", ModelName: "M", Capability: &fakeCapability{name: "a"}},
		{ID: "b", Alias: "b", ProviderName: "P", ModelName: "M", Capability: &fakeCapability{name: "b"}},
	})

	require.True(t, r.SetActive("b", false))
	active := r.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "a", active[0].ID)

	assert.Len(t, r.All(), 2)
	assert.False(t, r.SetActive("missing", true))
}

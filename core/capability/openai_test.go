package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/swarmchat/core/chatmodel"
)

func TestNewOpenAICapabilityAppliesProviderDefaults(t *testing.T) {
	c := NewOpenAICapability(Config{Provider: "deepseek", APIKey: "key"})
	assert.Equal(t, "deepseek-chat", c.Model())
	assert.Equal(t, "deepseek", c.Name())
	assert.True(t, c.IsConfigured())
}

func TestNewOpenAICapabilityExplicitOverridesDefault(t *testing.T) {
	c := NewOpenAICapability(Config{Provider: "deepseek", Model: "custom-model", APIKey: "key"})
	assert.Equal(t, "custom-model", c.Model())
}

func TestIsConfiguredRequiresAPIKey(t *testing.T) {
	c := NewOpenAICapability(Config{Provider: "ollama"})
	assert.False(t, c.IsConfigured())
}

func TestInitializeSkipsWarmupWhenNotValidating(t *testing.T) {
	c := NewOpenAICapability(Config{Provider: "openai"})
	require.NoError(t, c.Initialize(false))
}

func TestInitializeFailsFastWithoutAPIKey(t *testing.T) {
	c := NewOpenAICapability(Config{Provider: "openai"})
	err := c.Initialize(true)
	assert.Error(t, err)
}

func TestConvertMessagesMapsRoles(t *testing.T) {
	msgs := []chatmodel.ContextMessage{
		{Message: chatmodel.Message{SenderType: chatmodel.SenderSystem, Content: "sys"}},
		{Message: chatmodel.Message{SenderType: chatmodel.SenderAI, Content: "assistant reply"}},
		{Message: chatmodel.Message{SenderType: chatmodel.SenderUser, Content: "hi"}},
	}
	out := convertMessages(msgs)
	require.Len(t, out, 3)
	assert.Equal(t, "system", out[0].Role)
	assert.Equal(t, "assistant", out[1].Role)
	assert.Equal(t, "user", out[2].Role)
}

package strategy

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractMentionsDedupAndOrder(t *testing.T) {
	content := "hey @Claude what do you think, @gpt? also @Claude again"
	mentions := ExtractMentions(content)
	// Tokens are the raw regex matches, so trailing punctuation stays attached.
	assert.Equal(t, []string{"@Claude", "@gpt?"}, mentions)
}

func TestMentionsNormalized(t *testing.T) {
	norm := MentionsNormalized([]string{"@Claude", "@GPT-4"})
	_, ok := norm["claude"]
	assert.True(t, ok)
	_, ok = norm["gpt4"]
	assert.True(t, ok)
}

func TestAddMentionIdentityWhenAlreadyPresent(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	response := "Totally agree @claude, good point."
	out := AddMention(rnd, response, "@claude")
	assert.Equal(t, response, out)
}

func TestAddMentionInsertsToken(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	out := AddMention(rnd, "That's an interesting take.", "@gemini")
	// Some formats put punctuation right after the token ("@gemini,"), so
	// compare by normalized alias.
	mentions := MentionsNormalized(ExtractMentions(out))
	require := assert.New(t)
	require.Contains(mentions, "gemini")
}

func TestLimitMentionsStripsSurplus(t *testing.T) {
	content := "cc @a @b @c @d @e"
	out := LimitMentions(content, 3)
	assert.Equal(t, "cc @a @b @c d e", out)
}

func TestLimitMentionsIdempotent(t *testing.T) {
	content := "cc @a @b @c @d @e"
	once := LimitMentions(content, 3)
	twice := LimitMentions(once, 3)
	assert.Equal(t, once, twice)
}

func TestLimitMentionsKeepsDuplicatesOfSameToken(t *testing.T) {
	content := "@a said it, @a again, and @b chimed in"
	out := LimitMentions(content, 1)
	assert.Equal(t, "@a said it, @a again, and b chimed in", out)
}

package orchestrator

import (
	"fmt"
	"strings"

	"github.com/hrygo/swarmchat/core/chatmodel"
)

// guidelines is the canonical guideline block appended to every system
// prompt, reproduced identically regardless of strategy or participant so
// every AI in the room operates under the same ground rules.
const guidelines = `You are one voice in a multi-participant group chat alongside a human
user and other AI participants. Keep replies conversational and brief:
a few sentences at most, not a report. Never repeat your own name or
announce who you are. Do not speak for other participants or the user.
React to what was actually said rather than restating the whole
conversation.`

// introUserResponse and introBackground are the two fixed introduction
// strings spec §4.6 requires ("fixed string A if user response, else fixed
// string B"): a user-response generation is framed as replying, a
// background-round generation is framed as continuing the conversation on
// its own.
const introUserResponse = "You are %s, replying in a live group chat."
const introBackground = "You are %s, continuing a live group chat conversation that has kept going without new input from the user."

// closingLine is appended after the roster/persona block, distinct from the
// per-turn strategy instruction (which is appended separately as its own
// isInternal ContextMessage — see dispatchGeneration's generate, which
// builds `instruction` before `systemMsg`).
const closingLine = "Stay in character as yourself and keep the conversation moving naturally."

// buildSystemPrompt assembles the system prompt handed to a capability for
// one generation: an opening framing line (§4.6's string A/B, chosen by
// isUserResponse), the canonical guideline block, the roster of other
// active AIs in the room, an optional persona block (gated by
// ENABLE_PERSONAS), and a closing line. The per-turn strategy instruction is
// not repeated here; dispatchGeneration appends it as its own ContextMessage.
func buildSystemPrompt(ai *chatmodel.AIRecord, others []*chatmodel.AIRecord, isUserResponse bool, enablePersonas bool) string {
	var b strings.Builder

	if isUserResponse {
		fmt.Fprintf(&b, introUserResponse, ai.DisplayName)
	} else {
		fmt.Fprintf(&b, introBackground, ai.DisplayName)
	}
	b.WriteString("\n\n")
	b.WriteString(guidelines)
	b.WriteString("\n\n")

	if len(others) > 0 {
		names := make([]string, 0, len(others))
		for _, o := range others {
			names = append(names, o.DisplayName+" ("+o.MentionToken()+")")
		}
		b.WriteString("Other AI participants in this room: ")
		b.WriteString(strings.Join(names, ", "))
		b.WriteString(".\n\n")
	}

	if enablePersonas && ai.Persona != "" {
		b.WriteString("Your persona: ")
		b.WriteString(ai.Persona)
		b.WriteString("\n\n")
	}

	b.WriteString(closingLine)
	return b.String()
}

// truncateResponse enforces MAX_SENTENCES and MAX_STREAMED_LENGTH on a raw
// generation, in that order: sentence truncation first (so the result still
// reads naturally), then a hard character cap with a trailing ellipsis if
// the sentence-truncated text still overflows.
func truncateResponse(content string) string {
	content = strings.TrimSpace(content)
	content = truncateSentences(content, MaxSentences)
	if len(content) > MaxStreamedLength {
		content = strings.TrimSpace(content[:MaxStreamedLength]) + "..."
	}
	return content
}

// truncateSentences keeps at most max sentences, splitting on '.', '!', '?'
// followed by whitespace or end of string. Abbreviation-unaware by design —
// generated chat replies rarely carry mid-sentence abbreviations, and a
// stricter NLP-grade splitter is out of scope here.
func truncateSentences(content string, max int) string {
	if max <= 0 {
		return content
	}

	var sentences []string
	start := 0
	for i, r := range content {
		if r == '.' || r == '!' || r == '?' {
			end := i + 1
			if end >= len(content) || content[end] == ' ' || content[end] == '\n' {
				sentences = append(sentences, content[start:end])
				start = end
			}
		}
	}
	if start < len(content) {
		sentences = append(sentences, content[start:])
	}

	if len(sentences) <= max {
		return content
	}
	return strings.TrimSpace(strings.Join(sentences[:max], ""))
}

package schemadiff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ParsaBazrpash/MirrorAPI/internal/models"
)

func TestFormatPrompt(t *testing.T) {
	contexts := []models.Chunk{
		{ID: "a#0", Text: "REMOVED_FIELD \"zip\""},
		{ID: "a#1", Text: strings.Repeat("y", 500)},
	}
	got := FormatPrompt(contexts, "what changed?")

	want := PromptInstruction + "\n\nContext:\n- REMOVED_FIELD \"zip\"\n- " + strings.Repeat("y", MaxContextLength) +
		"\n\nUser Question: what changed?\n\nAssistant Response:"
	assert.Equal(t, want, got)
}

func TestFormatPrompt_NoContexts(t *testing.T) {
	got := FormatPrompt(nil, "q")
	assert.Contains(t, got, "\n\nContext:\n\n\nUser Question: q")
}

func TestParsePrompt_RoundTrip(t *testing.T) {
	contexts := []models.Chunk{{Text: "first"}, {Text: "second"}}
	p := ParsePrompt(FormatPrompt(contexts, "is it breaking?"))
	assert.Equal(t, []string{"first", "second"}, p.Contexts)
	assert.Equal(t, "is it breaking?", p.Question)
}

func TestChatPrompt_UserMessage(t *testing.T) {
	p := ChatPrompt{Contexts: []string{"a removed", "b added"}, Question: "why?"}
	assert.Equal(t, "API Changes Summary:\na removed\nb added\n\n\nQuestion: why?", p.UserMessage())

	empty := ChatPrompt{}
	assert.True(t, strings.HasSuffix(empty.UserMessage(), "Question: "+DefaultChatQuestion))
}

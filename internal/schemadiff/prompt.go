package schemadiff

import (
	"strings"

	"github.com/ParsaBazrpash/MirrorAPI/internal/models"
	"github.com/ParsaBazrpash/MirrorAPI/pkg/utils"
)

// MaxContextLength is how many characters of each retrieved chunk go into a chat prompt.
const MaxContextLength = 400

// PromptInstruction opens every chat prompt.
const PromptInstruction = "You are a helpful API migration assistant. Explain API schema changes clearly and concisely. " +
	"Focus on what changed and what developers need to know. Keep explanations simple and actionable."

// ChatSystemPrompt is the system message sent with chat questions.
const ChatSystemPrompt = "You are an API migration assistant. Explain API schema changes in simple, clear terms. " +
	"Focus on:\n" +
	"- What fields changed (name them)\n" +
	"- What the impact is (breaking vs safe)\n" +
	"- What developers need to do\n" +
	"Keep it short (2-3 sentences per change). Use plain language, avoid technical jargon."

// DefaultChatQuestion stands in when a prompt carries no question.
const DefaultChatQuestion = "Explain these API changes in simple terms"

// ChatPrompt is a retrieval prompt: the context snippets and the user's question.
type ChatPrompt struct {
	Contexts []string
	Question string
}

// NewChatPrompt keeps the first MaxContextLength characters of each chunk.
func NewChatPrompt(contexts []models.Chunk, question string) ChatPrompt {
	p := ChatPrompt{Question: question, Contexts: make([]string, len(contexts))}
	for i, c := range contexts {
		p.Contexts[i] = utils.Prefix(c.Text, MaxContextLength)
	}
	return p
}

// FormatPrompt renders the retrieval prompt for contexts and question.
func FormatPrompt(contexts []models.Chunk, question string) string {
	return NewChatPrompt(contexts, question).String()
}

// String renders the instruction, a "Context:" block with one "- " line per snippet, the
// question, and the response cue.
func (p ChatPrompt) String() string {
	lines := make([]string, len(p.Contexts))
	for i, c := range p.Contexts {
		lines[i] = "- " + c
	}
	var b strings.Builder
	b.WriteString(PromptInstruction)
	b.WriteString("\n\nContext:\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\nUser Question: ")
	b.WriteString(p.Question)
	b.WriteString("\n\nAssistant Response:")
	return b.String()
}

// UserMessage is the user turn sent to a chat model.
func (p ChatPrompt) UserMessage() string {
	var ctx strings.Builder
	for _, c := range p.Contexts {
		ctx.WriteString(strings.TrimSpace(c))
		ctx.WriteString("\n")
	}
	q := strings.TrimSpace(p.Question)
	if q == "" {
		q = DefaultChatQuestion
	}
	return "API Changes Summary:\n" + ctx.String() + "\n\nQuestion: " + q
}

// ParsePrompt recovers the bullet lines under "Context:" and the question from a rendered
// prompt. Context lines that do not start with "-" are ignored.
func ParsePrompt(prompt string) ChatPrompt {
	var p ChatPrompt
	inContext := false
	for _, line := range strings.Split(prompt, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "Context:"):
			inContext = true
		case strings.HasPrefix(trimmed, "User Question:"), strings.HasPrefix(trimmed, "User:"):
			inContext = false
			if _, q, ok := strings.Cut(line, ":"); ok {
				p.Question = strings.TrimSpace(q)
			}
		case inContext && strings.HasPrefix(trimmed, "-"):
			p.Contexts = append(p.Contexts, strings.TrimSpace(trimmed[1:]))
		}
	}
	return p
}

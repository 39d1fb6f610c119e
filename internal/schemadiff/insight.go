package schemadiff

import (
	"fmt"
	"strings"

	"github.com/ParsaBazrpash/MirrorAPI/internal/models"
)

// MaxInsightChanges is how many changes an insight request describes.
const MaxInsightChanges = 10

// InsightSystemPrompt frames the model as a migration analyst.
const InsightSystemPrompt = "You are an API migration analyst with deep expertise in API design and evolution. " +
	"Your task is to analyze API schema changes and provide insights on WHY changes were made, " +
	"not just WHAT changed. Consider:\n" +
	"- Data modeling improvements (better structure, normalization, denormalization)\n" +
	"- Business logic changes (new requirements, feature additions)\n" +
	"- Technical improvements (performance, scalability, maintainability)\n" +
	"- Backward compatibility concerns\n" +
	"- Industry best practices and patterns\n\n" +
	"Use the actual field names, types, and values to infer the reasoning behind changes. " +
	"Be specific and provide actionable insights. Keep explanations clear and concise."

// DefaultInsightQuestion is asked when the request has no query.
const DefaultInsightQuestion = "Analyze these API changes and explain WHY the API was changed from v1 to v2. " +
	"Focus on the business logic, data modeling improvements, or technical reasons behind each change. " +
	"Use the field names, types, and actual values to provide insights. " +
	"Explain what problems the changes might solve or what improvements they bring."

const insightChecklist = `Please provide insights on why these changes were made, focusing on:
1. What problems or limitations in v1 these changes address
2. What improvements or benefits v2 provides
3. The likely reasoning behind specific field changes based on their values and types
4. Any patterns or trends in the changes that suggest architectural improvements
`

// BuildInsightMessage renders the user message for a schema-change explanation: the change list,
// the affected old and new values, the question, and the analysis checklist.
func BuildInsightMessage(req models.GenerateRequest) string {
	changes := req.Changes
	if len(changes) > MaxInsightChanges {
		changes = changes[:MaxInsightChanges]
	}

	var parts []string
	if len(changes) > 0 {
		parts = append(parts, "=== API CHANGES DETECTED ===\n")
		for i, c := range changes {
			if line := describeChange(c); line != "" {
				parts = append(parts, fmt.Sprintf("%d. %s", i+1, line))
			}
		}
	}
	if len(req.OldSchema) > 0 && len(changes) > 0 {
		parts = append(parts, "\n=== OLD API (v1) VALUES ===\n")
		parts = append(parts, valueLines(req.OldSchema, changes, false)...)
	}
	if len(req.NewSchema) > 0 && len(changes) > 0 {
		parts = append(parts, "\n=== NEW API (v2) VALUES ===\n")
		parts = append(parts, valueLines(req.NewSchema, changes, true)...)
	}

	changesContext := "No changes provided."
	if len(parts) > 0 {
		changesContext = strings.Join(parts, "\n")
	}
	question := strings.TrimSpace(req.Query)
	if question == "" {
		question = DefaultInsightQuestion
	}
	return fmt.Sprintf("API Schema Migration Analysis Request:\n\n%s\n\nQuestion: %s\n\n%s", changesContext, question, insightChecklist)
}

func describeChange(c models.Change) string {
	path := orUnknown(c.Path)
	switch c.Kind {
	case models.ChangeRemoved:
		return fmt.Sprintf("REMOVED: Field '%s' (was %s)", path, orUnknown(c.OldType))
	case models.ChangeAdded:
		return fmt.Sprintf("ADDED: Field '%s' (now %s)", path, orUnknown(c.NewType))
	case models.ChangeTypeChanged:
		return fmt.Sprintf("TYPE CHANGED: Field '%s' changed from %s to %s", path, orUnknown(c.OldType), orUnknown(c.NewType))
	}
	return ""
}

func valueLines(doc map[string]any, changes []models.Change, skipRemoved bool) []string {
	var lines []string
	for _, c := range changes {
		if c.Path == "" || (skipRemoved && c.Kind == models.ChangeRemoved) {
			continue
		}
		v := ValueAtPath(doc, c.Path)
		if v == nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("  %s: %s", c.Path, FormatValue(v)))
	}
	return lines
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

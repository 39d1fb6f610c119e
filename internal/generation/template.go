package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/ParsaBazrpash/MirrorAPI/internal/schemadiff"
	"github.com/ParsaBazrpash/MirrorAPI/pkg/utils"
)

// TemplateModel names the offline generator in responses.
const TemplateModel = "template"

const (
	maxTemplateBullets = 5
	noChangesAnswer    = "No API changes detected in the provided context."
	templateTip        = "💡 Tip: Test your integration after updating to the new API version."
)

// TemplateGenerator summarizes change descriptions found in the context without calling a model.
// Each context line mentioning a removal, addition, or type change with a quoted field name
// becomes a bullet.
type TemplateGenerator struct{}

// NewTemplateGenerator returns the offline generator.
func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{}
}

// Generate never fails. Context falls back to the bullet lines parsed out of Prompt. Output is
// cut to MaxTokens characters when MaxTokens is set.
func (g *TemplateGenerator) Generate(_ context.Context, req Request) (Response, error) {
	lines := req.Context
	if len(lines) == 0 {
		lines = schemadiff.ParsePrompt(req.Prompt).Contexts
	}
	return Response{Text: summarize(lines, req.MaxTokens), Model: TemplateModel}, nil
}

func summarize(lines []string, maxChars int) string {
	if len(lines) == 0 {
		return noChangesAnswer
	}
	var bullets []string
	for _, line := range lines {
		if b := bulletFor(line); b != "" {
			bullets = append(bullets, b)
		}
	}
	var out string
	if len(bullets) > 0 {
		if len(bullets) > maxTemplateBullets {
			bullets = bullets[:maxTemplateBullets]
		}
		out = "API Changes Summary:\n\n" + strings.Join(bullets, "\n\n") + "\n\n" + templateTip
	} else {
		shown := lines
		if len(shown) > maxTemplateBullets {
			shown = shown[:maxTemplateBullets]
		}
		items := make([]string, len(shown))
		for i, l := range shown {
			items[i] = "• " + utils.Prefix(l, 100)
		}
		out = "API Schema Changes Detected:\n\n" + strings.Join(items, "\n")
	}
	if maxChars > 0 {
		out = utils.Prefix(out, maxChars)
	}
	return out
}

func bulletFor(line string) string {
	field, quoted := quotedField(line)
	switch {
	case strings.Contains(line, "REMOVED") || strings.Contains(line, "removed"):
		if quoted {
			return fmt.Sprintf("• Removed: %s - This field no longer exists. Update your code to stop using it.", field)
		}
	case strings.Contains(line, "ADDED") || strings.Contains(line, "added"):
		if quoted {
			return fmt.Sprintf("• Added: %s - New field available. Optional to use.", field)
		}
	case strings.Contains(line, "TYPE CHANGED") || strings.Contains(line, "changed from"):
		if quoted {
			oldType, newType := typeTransition(line)
			return fmt.Sprintf("• Changed: %s - Type changed from %s to %s. Update your code to handle the new type.", field, oldType, newType)
		}
	}
	return ""
}

// quotedField returns the text between the first pair of double quotes.
func quotedField(line string) (string, bool) {
	_, rest, ok := strings.Cut(line, `"`)
	if !ok {
		return "", false
	}
	field, _, _ := strings.Cut(rest, `"`)
	return field, true
}

// typeTransition reads "from X to Y" out of a change description.
func typeTransition(line string) (string, string) {
	oldType, newType := "old type", "new type"
	_, afterFrom, ok := strings.Cut(line, "from ")
	if !ok {
		return oldType, newType
	}
	before, after, ok := strings.Cut(afterFrom, " to ")
	if !ok {
		return strings.TrimSpace(afterFrom), newType
	}
	oldType = strings.TrimSpace(before)
	after = strings.TrimSpace(after)
	if dot := strings.IndexByte(after, '.'); dot >= 0 {
		after = after[:dot]
	}
	if after != "" {
		newType = after
	}
	return oldType, newType
}

package prompt

import "strings"

// Message is one chat message in a rendered prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat message roles.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Format renders an assembled context plus the current question into chat
// messages: one system message per non-empty section, then the question as
// the final user message. Empty sections are omitted entirely, headers
// included.
func Format(c *Context, question string) []Message {
	var messages []Message

	if c.SystemPreamble != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: c.SystemPreamble})
	}

	if c.Preferences != "" {
		messages = append(messages, Message{
			Role:    RoleSystem,
			Content: "## User preferences\n" + c.Preferences,
		})
	}

	if len(c.RecentLines) > 0 {
		messages = append(messages, Message{
			Role:    RoleSystem,
			Content: "## Recent conversation\n" + strings.Join(c.RecentLines, "\n"),
		})
	}

	if len(c.SemanticLines) > 0 {
		messages = append(messages, Message{
			Role:    RoleSystem,
			Content: "## Related memories\n" + strings.Join(c.SemanticLines, "\n"),
		})
	}

	messages = append(messages, Message{
		Role:    RoleUser,
		Content: "## Current question\n" + question,
	})

	return messages
}

// FormatText renders the same sections as Format into one flat string, for
// callers feeding a completion-style API rather than a chat API.
func FormatText(c *Context, question string) string {
	var sb strings.Builder

	if c.SystemPreamble != "" {
		sb.WriteString(c.SystemPreamble)
		sb.WriteString("\n\n")
	}

	if c.Preferences != "" {
		sb.WriteString("## User preferences\n")
		sb.WriteString(c.Preferences)
		sb.WriteString("\n\n")
	}

	if len(c.RecentLines) > 0 {
		sb.WriteString("## Recent conversation\n")
		sb.WriteString(strings.Join(c.RecentLines, "\n"))
		sb.WriteString("\n\n")
	}

	if len(c.SemanticLines) > 0 {
		sb.WriteString("## Related memories\n")
		sb.WriteString(strings.Join(c.SemanticLines, "\n"))
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Current question\n")
	sb.WriteString(question)

	return sb.String()
}

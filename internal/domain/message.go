package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MessageContent is the content of a conversation message. Chat SDKs have
// shipped two representations over time: a plain string, and a list of
// typed parts. Both are modeled explicitly instead of duck-typing on
// field presence.
type MessageContent interface {
	isMessageContent()

	// Text returns the textual content, joining text parts in order.
	Text() string
}

// TextContent is the plain-string message representation.
type TextContent string

func (TextContent) isMessageContent() {}

func (c TextContent) Text() string { return string(c) }

// Part is a single typed segment of a parted message.
type Part struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// PartsContent is the structured-parts message representation. Non-text
// parts are preserved but contribute nothing to Text.
type PartsContent []Part

func (PartsContent) isMessageContent() {}

func (c PartsContent) Text() string {
	var sb strings.Builder
	for _, p := range c {
		if p.Type == "text" {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// Message is one role-tagged entry of a conversation history.
type Message struct {
	Role    string
	Content MessageContent
}

// NewUserMessage builds a plain-text user message.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Content: TextContent(text)}
}

// Text returns the message's textual content, or "" for nil content.
func (m Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return m.Content.Text()
}

// LatestUserText returns the trimmed text of the last user message in the
// history, or false when the history holds no user message.
func LatestUserText(history []Message) (string, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleUser {
			return strings.TrimSpace(history[i].Text()), true
		}
	}
	return "", false
}

type messageJSON struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// UnmarshalJSON accepts both wire shapes: {"content": "..."} and
// {"content": [{"type":"text","text":"..."}]}.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw messageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Role = raw.Role
	m.Content = nil
	if len(raw.Content) == 0 {
		return nil
	}

	var text string
	if err := json.Unmarshal(raw.Content, &text); err == nil {
		m.Content = TextContent(text)
		return nil
	}

	var parts []Part
	if err := json.Unmarshal(raw.Content, &parts); err == nil {
		m.Content = PartsContent(parts)
		return nil
	}

	return fmt.Errorf("unsupported message content shape: %s", string(raw.Content))
}

// MarshalJSON always emits the plain-string shape, which every
// OpenAI-compatible endpoint accepts.
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}{Role: m.Role, Content: m.Text()})
}

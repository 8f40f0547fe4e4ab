package domain

import (
	"regexp"
	"strings"
	"time"
)

// DefaultHistoryLimit is the sliding window size of persisted chat history.
const DefaultHistoryLimit = 12

// MessageRole is the author of a chat message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ChatMessage is one turn in a user's conversation. Timestamp is unix milliseconds.
type ChatMessage struct {
	Role      MessageRole `json:"role"`
	Text      string      `json:"text"`
	Timestamp int64       `json:"timestamp"`
}

// NewChatMessage creates a message stamped with t.
func NewChatMessage(role MessageRole, text string, t time.Time) ChatMessage {
	return ChatMessage{Role: role, Text: text, Timestamp: t.UnixMilli()}
}

// TruncateHistory keeps the last limit messages in insertion order.
func TruncateHistory(history []ChatMessage, limit int) []ChatMessage {
	if limit <= 0 || len(history) <= limit {
		return history
	}
	out := make([]ChatMessage, limit)
	copy(out, history[len(history)-limit:])
	return out
}

// =============================================================================
// Conversation Meta
// =============================================================================

// ConversationMeta is the per-user derived state. It is rewritten as a whole on every
// turn; there is no per-field merge.
type ConversationMeta struct {
	LastSignals   *SignalBundle `json:"last_signals,omitempty"`
	LeadTier      LeadTier      `json:"lead_tier,omitempty"`
	LeadScore     int           `json:"lead_score,omitempty"`
	LastTemplate  TemplateID    `json:"last_template,omitempty"`
	LastRule      string        `json:"last_rule,omitempty"`
	LastHandoff   bool          `json:"last_handoff,omitempty"`
	TurnCount     int           `json:"turn_count,omitempty"`
	LastInboundAt int64         `json:"last_inbound_at,omitempty"`
	HandoffCount  int           `json:"handoff_count,omitempty"`
	LastHandoffAt int64         `json:"last_handoff_at,omitempty"`
}

// =============================================================================
// User Identity
// =============================================================================

var nonPhoneChars = regexp.MustCompile(`[^0-9+]`)

// NormalizeIdentity turns a transport address ("whatsapp:+62 812-3456") into the stable
// user key ("+628123456"). Returns "" when nothing usable remains.
func NormalizeIdentity(raw string) string {
	s := strings.TrimSpace(strings.ToLower(raw))
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[i+1:]
	}
	s = nonPhoneChars.ReplaceAllString(s, "")
	if strings.Count(s, "+") > 1 || (strings.Contains(s, "+") && !strings.HasPrefix(s, "+")) {
		s = "+" + strings.ReplaceAll(s, "+", "")
	}
	if s == "+" {
		return ""
	}
	return s
}

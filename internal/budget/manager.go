// Package budget assembles token-bounded conversation contexts. Assembly is
// deterministic and never fails: under pressure it drops the oldest history
// first, keeps system messages whole, and truncates (never drops) the latest
// user turn.
package budget

import (
	"github.com/codemend/codemend/internal/llm"
)

// Tokenizer counts and truncates text in model token units. Counts must be
// deterministic for identical input and must never undercount in a way that
// would silently breach the ceiling.
type Tokenizer interface {
	Count(text string) int
	Truncate(text string, maxTokens int) (string, int)
}

const (
	// perMessageOverhead models the framing cost of one message boundary.
	perMessageOverhead = 4
	// replyPrimerOverhead models the implicit assistant-turn primer.
	replyPrimerOverhead = 3
	// truncationSlack is reserved when the mandatory messages alone overflow.
	truncationSlack = 100
	// minTruncatedTokens is the floor for a truncated latest message.
	minTruncatedTokens = 100

	truncationMarker = "\n... [truncated]"
)

// Manager bounds conversation contexts to a token ceiling.
type Manager struct {
	tok Tokenizer
}

// NewManager builds a manager over the given tokenizer.
func NewManager(tok Tokenizer) *Manager {
	return &Manager{tok: tok}
}

// CountTokens counts tokens in raw text.
func (m *Manager) CountTokens(text string) int {
	return m.tok.Count(text)
}

// CountContextTokens counts the full cost of a context: per-message content
// plus framing overhead, plus the assistant-turn primer.
func (m *Manager) CountContextTokens(messages []llm.Message) int {
	total := replyPrimerOverhead
	for _, msg := range messages {
		total += m.messageCost(msg)
	}
	return total
}

// LimitContext returns a context that fits maxTokens. System messages are
// always kept whole and the most recent non-system message is always present
// (truncated if the mandatory tiers alone overflow). Fill messages are kept
// greedily newest-first; the walk stops at the first message that would
// overflow, so no newer message is ever dropped while an older one is kept.
func (m *Manager) LimitContext(messages []llm.Message, maxTokens int) []llm.Message {
	systemMessages := make([]llm.Message, 0, len(messages))
	others := make([]llm.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == llm.RoleSystem {
			systemMessages = append(systemMessages, msg)
		} else {
			others = append(others, msg)
		}
	}

	if len(others) == 0 {
		return systemMessages
	}

	lastMessage := others[len(others)-1]
	others = others[:len(others)-1]

	used := replyPrimerOverhead + m.messageCost(lastMessage)
	for _, msg := range systemMessages {
		used += m.messageCost(msg)
	}
	available := maxTokens - used

	if available < 0 {
		return append(systemMessages, m.truncateLast(systemMessages, lastMessage, maxTokens))
	}

	// Walk newest to oldest; the first overflow ends the walk.
	keepFrom := len(others)
	running := 0
	for i := len(others) - 1; i >= 0; i-- {
		cost := m.messageCost(others[i])
		if running+cost > available {
			break
		}
		running += cost
		keepFrom = i
	}

	out := make([]llm.Message, 0, len(systemMessages)+len(others)-keepFrom+1)
	out = append(out, systemMessages...)
	out = append(out, others[keepFrom:]...)
	out = append(out, lastMessage)
	return out
}

func (m *Manager) messageCost(msg llm.Message) int {
	return m.tok.Count(msg.Content) + perMessageOverhead
}

// truncateLast cuts the mandatory latest message down so that system
// messages plus the remainder fit, reserving slack for framing and the
// truncation marker. The message is never dropped outright.
func (m *Manager) truncateLast(systemMessages []llm.Message, last llm.Message, maxTokens int) llm.Message {
	systemTokens := 0
	for _, msg := range systemMessages {
		systemTokens += m.messageCost(msg)
	}

	limit := maxTokens - systemTokens - truncationSlack
	if limit < minTruncatedTokens {
		limit = minTruncatedTokens
	}

	content, _ := m.tok.Truncate(last.Content, limit)
	last.Content = content + truncationMarker
	return last
}

package agent

import "time"

// Conversation is the ordered turn history of one agent. It is not safe for concurrent
// use; the Agent serializes access.
type Conversation struct {
	turns []AgentMessage
	now   func() time.Time
}

// NewConversation seeds a conversation with earlier turns, e.g. from a saved session.
func NewConversation(history ...AgentMessage) *Conversation {
	turns := make([]AgentMessage, len(history))
	copy(turns, history)
	return &Conversation{turns: turns, now: time.Now}
}

// AppendUser records a user turn.
func (c *Conversation) AppendUser(text string) {
	c.append(AgentMessage{Role: RoleUser, Content: text})
}

// AppendAssistant records the model's raw reply.
func (c *Conversation) AppendAssistant(text string) {
	c.append(AgentMessage{Role: RoleAssistant, Content: text})
}

// AppendToolResult records a tool's output as a user turn labeled with the tool name.
func (c *Conversation) AppendToolResult(tool, output string) {
	c.append(AgentMessage{Role: RoleUser, Content: FormatToolResult(tool, output), Tool: tool})
}

func (c *Conversation) append(m AgentMessage) {
	if m.Timestamp.IsZero() {
		m.Timestamp = c.now()
	}
	c.turns = append(c.turns, m)
}

// PendingUser returns the text of a trailing user turn that never got a reply, which
// happens when the previous Chat failed before the model answered.
func (c *Conversation) PendingUser() (string, bool) {
	if len(c.turns) == 0 {
		return "", false
	}
	last := c.turns[len(c.turns)-1]
	if last.Role != RoleUser || last.IsToolResult() {
		return "", false
	}
	return last.Content, true
}

// Turns returns a copy of the history.
func (c *Conversation) Turns() []AgentMessage {
	out := make([]AgentMessage, len(c.turns))
	copy(out, c.turns)
	return out
}

// Since returns a copy of the turns appended after the first n.
func (c *Conversation) Since(n int) []AgentMessage {
	if n < 0 {
		n = 0
	}
	if n >= len(c.turns) {
		return nil
	}
	out := make([]AgentMessage, len(c.turns)-n)
	copy(out, c.turns[n:])
	return out
}

// Len returns the number of turns.
func (c *Conversation) Len() int {
	return len(c.turns)
}

// Reset drops every turn.
func (c *Conversation) Reset() {
	c.turns = nil
}

package llm

// Role identifies who authored a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SplitSystem separates the first system message from the rest of the
// conversation. Additional system messages are dropped.
func SplitSystem(msgs []Message) (system string, rest []Message) {
	found := false
	rest = make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == RoleSystem {
			if !found {
				system = m.Content
				found = true
			}
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}

// Package draft composes customer-support reply prompts from a query and a
// knowledge base, and drives them through a streaming completion client.
package draft

import (
	"context"
	"errors"
	"strings"

	"github.com/efebarandurmaz/replyforge/internal/knowledge"
	"github.com/efebarandurmaz/replyforge/internal/llm"
)

// DefaultInstructions is used when no instructions are configured.
const DefaultInstructions = "You are a professional customer support agent. Draft a helpful, clear response to the customer query below."

const replyOnly = `IMPORTANT: Respond with ONLY the reply text. No greetings like "Here is a response". Just the actual response the support agent should send to the customer.`

// Knowledge-base section labels.
const (
	LabelRetrieved = "Relevant Knowledge Base (retrieved)"
	LabelFull      = "Knowledge Base"
)

// Bounds on how many non-system messages a refinement carries.
const (
	DefaultContextMessages = 10
	MinContextMessages     = 2
	MaxContextMessages     = 25
)

var (
	ErrEmptyQuery       = errors.New("customer query is empty")
	ErrEmptyInstruction = errors.New("refinement instruction is empty")
	ErrNoHistory        = errors.New("no draft to refine")
)

// BuildSystemPrompt assembles the system message. kb may be nil, in which
// case the knowledge-base section is left out.
func BuildSystemPrompt(instructions string, kb *knowledge.Resolved) string {
	var sb strings.Builder
	if strings.TrimSpace(instructions) == "" {
		instructions = DefaultInstructions
	}
	sb.WriteString(instructions)
	if kb != nil && kb.Text != "" {
		label := LabelFull
		if kb.Filtered {
			label = LabelRetrieved
		}
		sb.WriteString("\n\n")
		sb.WriteString(label)
		sb.WriteString(":\n")
		sb.WriteString(kb.Text)
	}
	sb.WriteString("\n\n")
	sb.WriteString(replyOnly)
	return sb.String()
}

// QueryMessage wraps a customer query as the first user turn.
func QueryMessage(query string) llm.Message {
	return llm.Message{Role: llm.RoleUser, Content: "Customer query:\n" + query}
}

// Composer builds the message lists for drafts and refinements.
type Composer struct {
	Instructions    string
	ContextMessages int
	Resolver        *knowledge.Resolver
}

// NewComposer returns a Composer with default instructions, context window
// and resolver.
func NewComposer() *Composer {
	return &Composer{
		Instructions:    DefaultInstructions,
		ContextMessages: DefaultContextMessages,
		Resolver:        knowledge.NewResolver(),
	}
}

// Draft returns [system, user] for a fresh draft, resolving memory against
// query. instructions overrides the composer's when non-empty.
func (c *Composer) Draft(ctx context.Context, query, memory, instructions string) ([]llm.Message, knowledge.Resolved, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, knowledge.Resolved{}, ErrEmptyQuery
	}
	if strings.TrimSpace(instructions) == "" {
		instructions = c.Instructions
	}

	resolver := c.Resolver
	if resolver == nil {
		resolver = knowledge.NewResolver()
	}

	var kb *knowledge.Resolved
	res, ok := resolver.Resolve(ctx, memory, query)
	if ok {
		kb = &res
	}

	return []llm.Message{
		{Role: llm.RoleSystem, Content: BuildSystemPrompt(instructions, kb)},
		QueryMessage(query),
	}, res, nil
}

// Refine appends instruction to history and trims the result to the
// configured number of non-system messages. The leading system message,
// if any, is always kept.
func (c *Composer) Refine(history []llm.Message, instruction string) ([]llm.Message, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return nil, ErrEmptyInstruction
	}
	if len(history) == 0 {
		return nil, ErrNoHistory
	}

	msgs := make([]llm.Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: instruction})
	return trimHistory(msgs, c.contextMessages()), nil
}

func (c *Composer) contextMessages() int {
	return ClampContextMessages(c.ContextMessages)
}

// ClampContextMessages bounds n to [MinContextMessages, MaxContextMessages];
// zero or negative means the default.
func ClampContextMessages(n int) int {
	switch {
	case n <= 0:
		return DefaultContextMessages
	case n < MinContextMessages:
		return MinContextMessages
	case n > MaxContextMessages:
		return MaxContextMessages
	default:
		return n
	}
}

func trimHistory(msgs []llm.Message, keep int) []llm.Message {
	system, rest := llm.SplitSystem(msgs)
	if len(rest) > keep {
		rest = rest[len(rest)-keep:]
	}
	out := make([]llm.Message, 0, len(rest)+1)
	if system != "" {
		out = append(out, llm.Message{Role: llm.RoleSystem, Content: system})
	}
	return append(out, rest...)
}

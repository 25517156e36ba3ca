package capabilities

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/teddyam/collaborator-agent/internal/ai"
	"github.com/teddyam/collaborator-agent/internal/reqctx"
	"github.com/teddyam/collaborator-agent/internal/search"
	"github.com/teddyam/collaborator-agent/internal/storage"
)

// maxSummaryCitations bounds how many source messages a summary cites.
const maxSummaryCitations = 5

// Summarizer condenses a window of conversation history into a short
// summary, citing the most recent citable messages in the window.
type Summarizer struct {
	store  *storage.Store
	llm    ai.Completer
	linker *search.Linker
}

// NewSummarizer creates a Summarizer.
func NewSummarizer(store *storage.Store, llm ai.Completer, linker *search.Linker) *Summarizer {
	return &Summarizer{store: store, llm: llm, linker: linker}
}

// Kind identifies this capability.
func (s *Summarizer) Kind() Kind { return KindSummarize }

// Definition returns the function schema exposed to the model.
func (s *Summarizer) Definition() ai.ToolDef {
	return ai.ToolDef{
		Name: KindSummarize.String(),
		Description: "Summarize what happened in this conversation during a time period. " +
			"Use when the user asks to recap, catch up, or summarize. " +
			"Resolve any time expression with calculate_time_range first; " +
			"omit from/to to summarize the last 24 hours.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": rangeProperties(),
		},
	}
}

type summarizeArgs struct {
	windowArgs
}

// Execute summarizes the messages in the requested window.
func (s *Summarizer) Execute(ctx context.Context, rc *reqctx.RequestContext, rawArgs json.RawMessage) (*Output, error) {
	var args summarizeArgs
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return nil, fmt.Errorf("summarize: bad arguments: %w", err)
		}
	}

	window := args.window(rc.Now())
	msgs := s.store.MessagesInRange(rc.ConversationKey, window.From, window.To)
	if len(msgs) == 0 {
		return &Output{
			Text: fmt.Sprintf("There are no messages in this conversation for %s.", window.Description),
		}, nil
	}

	instructions := fmt.Sprintf(
		"You summarize group-chat conversations. Write a concise summary of the "+
			"conversation below, covering %s. Lead with the key decisions and outcomes, "+
			"then open threads. Mention participants by name. Keep it under 200 words.",
		window.Description,
	)

	summary, err := s.llm.Chat(ctx, instructions, transcript(msgs))
	if err != nil {
		return nil, fmt.Errorf("summarize: completion: %w", err)
	}

	// Cite the most recent citable messages in the window.
	citable := msgs
	if len(citable) > maxSummaryCitations {
		citable = citable[len(citable)-maxSummaryCitations:]
	}

	return &Output{
		Text:      summary,
		Citations: s.linker.Citations(rc.ConversationKey, citable),
	}, nil
}

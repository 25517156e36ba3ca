package capabilities

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/teddyam/collaborator-agent/internal/ai"
	"github.com/teddyam/collaborator-agent/internal/reqctx"
	"github.com/teddyam/collaborator-agent/internal/search"
)

// Searcher answers "who said what when" questions by querying the search
// provider and reporting which search path actually ran.
type Searcher struct {
	provider search.Provider
}

// NewSearcher creates the search capability over the given provider.
func NewSearcher(provider search.Provider) *Searcher {
	return &Searcher{provider: provider}
}

// Kind identifies this capability.
func (s *Searcher) Kind() Kind { return KindSearch }

// Definition returns the function schema exposed to the model.
func (s *Searcher) Definition() ai.ToolDef {
	props := rangeProperties()
	props["keywords"] = map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string"},
		"description": "Terms to look for in message content",
	}
	props["participants"] = map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string"},
		"description": "Restrict to messages sent by these people",
	}
	props["max_results"] = map[string]any{
		"type":        "integer",
		"description": "Result cap, default 10",
	}

	return ai.ToolDef{
		Name: KindSearch.String(),
		Description: "Search this conversation's history for specific messages by keyword, " +
			"sender, and time period. Use when the user asks what someone said or wants " +
			"to find a past discussion. Resolve time expressions with calculate_time_range first.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": props,
		},
	}
}

type searchArgs struct {
	windowArgs
	Keywords     []string `json:"keywords,omitempty"`
	Participants []string `json:"participants,omitempty"`
	MaxResults   int      `json:"max_results,omitempty"`
}

// Execute runs the search and formats the hits, disclosing when the
// semantic index degraded to the keyword path.
func (s *Searcher) Execute(ctx context.Context, rc *reqctx.RequestContext, rawArgs json.RawMessage) (*Output, error) {
	var args searchArgs
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return nil, fmt.Errorf("search: bad arguments: %w", err)
		}
	}

	result, err := s.provider.SearchMessages(ctx, rc.ConversationKey, search.Query{
		Keywords:     args.Keywords,
		Participants: args.Participants,
		From:         args.From,
		To:           args.To,
		MaxResults:   args.MaxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	if len(result.Messages) == 0 {
		return &Output{Text: "I couldn't find any matching messages."}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d matching message(s)", result.TotalFound)
	if result.TotalFound > len(result.Messages) {
		fmt.Fprintf(&b, ", showing the %d most relevant", len(result.Messages))
	}
	b.WriteString(":\n\n")
	for _, m := range result.Messages {
		name := m.Name
		if name == "" {
			name = m.Role
		}
		fmt.Fprintf(&b, "- [%s] %s: %s\n", m.Timestamp, name, m.Content)
	}
	if result.Method == search.MethodKeywordFallback {
		b.WriteString("\n(Semantic search was unavailable, so these results come from keyword matching.)")
	}

	return &Output{Text: b.String(), Citations: result.Citations}, nil
}

// Package capabilities implements the specialized request handlers the
// router delegates to: conversation summarization, action-item tracking,
// and historical search.
//
// Each capability follows the same pattern as the MCP debug tools:
// dependencies injected via constructor, Definition() returning the
// function schema exposed to the language model, and Execute() doing the
// work. A capability returns its text and citations as a single Output
// value — there is no shared citation buffer.
package capabilities

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/teddyam/collaborator-agent/internal/ai"
	"github.com/teddyam/collaborator-agent/internal/reqctx"
	"github.com/teddyam/collaborator-agent/internal/search"
	"github.com/teddyam/collaborator-agent/internal/storage"
	"github.com/teddyam/collaborator-agent/internal/timerange"
)

// Kind enumerates the capabilities. The router dispatches with an
// exhaustive switch over Kind, so a new capability that isn't wired into
// delegation fails to compile rather than silently falling through.
type Kind int

const (
	KindSummarize Kind = iota
	KindActionItems
	KindSearch
)

// String returns the capability's wire name, which doubles as its
// function name in the delegation protocol.
func (k Kind) String() string {
	switch k {
	case KindSummarize:
		return "summarize_conversation"
	case KindActionItems:
		return "manage_action_items"
	case KindSearch:
		return "search_history"
	}
	return "unknown"
}

// Output is a capability's complete result: response text plus any
// citations substantiating it.
type Output struct {
	Text      string
	Citations []search.Citation
}

// Capability is a stateless handler invoked by the router with the
// request context and its raw function-call arguments.
type Capability interface {
	Kind() Kind
	Definition() ai.ToolDef
	Execute(ctx context.Context, rc *reqctx.RequestContext, rawArgs json.RawMessage) (*Output, error)
}

// windowArgs are the time-range fields shared by every capability's
// function schema. The router resolves time phrases through
// calculate_time_range; the model passes the resolved bounds here.
type windowArgs struct {
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
	Description string `json:"description,omitempty"`
}

// window returns the requested range, falling back to the last 24 hours
// when none was supplied. Callers never guess at unparsed phrases — the
// resolver already reported those as an error payload upstream.
func (w windowArgs) window(now time.Time) *timerange.Range {
	if w.From == "" && w.To == "" {
		return timerange.LastDay(now)
	}
	desc := w.Description
	if desc == "" {
		desc = "the requested period"
	}
	return &timerange.Range{From: w.From, To: w.To, Description: desc}
}

// rangeProperties is the JSON schema fragment for windowArgs, merged into
// each capability's parameter schema.
func rangeProperties() map[string]any {
	return map[string]any{
		"from": map[string]any{
			"type":        "string",
			"description": "Range start, ISO-8601 UTC, from calculate_time_range",
		},
		"to": map[string]any{
			"type":        "string",
			"description": "Range end, ISO-8601 UTC, from calculate_time_range",
		},
		"description": map[string]any{
			"type":        "string",
			"description": "Human-readable range description",
		},
	}
}

// transcript renders messages as a plain-text conversation for prompting.
func transcript(msgs []storage.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		name := m.Name
		if name == "" {
			name = m.Role
		}
		b.WriteString("[" + m.Timestamp + "] " + name + ": " + m.Content + "\n")
	}
	return b.String()
}

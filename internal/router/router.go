// Package router routes inbound requests to capabilities through a
// function-calling conversation with the language model.
//
// The model sees one tool per capability plus calculate_time_range, and
// decides which (if any) to call. Per-request state lives in a local
// accumulator threaded through the tool callbacks, so concurrent requests
// never share mutable routing state.
package router

import (
	"context"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/teddyam/collaborator-agent/internal/ai"
	"github.com/teddyam/collaborator-agent/internal/capabilities"
	"github.com/teddyam/collaborator-agent/internal/reqctx"
	"github.com/teddyam/collaborator-agent/internal/search"
	"github.com/teddyam/collaborator-agent/internal/timerange"
)

// timeRangeTool is the shared time-resolution function every delegation
// may call before a capability.
const timeRangeTool = "calculate_time_range"

// DelegationResult is the outcome of one routed request.
type DelegationResult struct {
	ResponseText string
	// Capability is the last capability that ran, nil when the model
	// answered directly.
	Capability *capabilities.Kind
	Citations  []search.Citation
}

// Router resolves request tokens to contexts and drives delegation.
type Router struct {
	registry *reqctx.Registry
	llm      ai.Completer
	caps     []capabilities.Capability
}

// New creates a Router over the given capability set.
func New(registry *reqctx.Registry, llm ai.Completer, caps ...capabilities.Capability) *Router {
	return &Router{registry: registry, llm: llm, caps: caps}
}

// accumulator collects what the tool callbacks produce during one
// delegation. One per ProcessRequest call.
type accumulator struct {
	capability *capabilities.Kind
	citations  []search.Citation
}

// ProcessRequest resolves the token's context and routes the request. A
// token with no registered context fails the whole request; nothing is
// delegated on a guessed default.
func (r *Router) ProcessRequest(ctx context.Context, token string) (*DelegationResult, error) {
	rc, err := r.registry.Get(token)
	if err != nil {
		return nil, fmt.Errorf("router: resolve token %q: %w", token, err)
	}

	acc := &accumulator{}

	tools := make([]ai.ToolDef, 0, len(r.caps)+1)
	tools = append(tools, timeRangeDef())
	for _, c := range r.caps {
		tools = append(tools, c.Definition())
	}

	text, err := r.llm.RunTools(ctx, r.instructions(rc), rc.Text, tools, func(call ai.ToolCall) (string, error) {
		return r.invoke(ctx, rc, acc, call)
	})
	if err != nil {
		return nil, fmt.Errorf("router: delegation: %w", err)
	}

	return &DelegationResult{
		ResponseText: text,
		Capability:   acc.capability,
		Citations:    acc.citations,
	}, nil
}

// instructions is the routing system prompt, anchored to the request's
// own reference time and chat mode rather than server state.
func (r *Router) instructions(rc *reqctx.RequestContext) string {
	mode := "a group conversation"
	if rc.IsPersonalChat {
		mode = "a personal (one-on-one) chat"
	}
	return fmt.Sprintf(
		"You are a collaborator assistant in %s. The requesting user is %s. "+
			"The current date and time is %s. "+
			"Decide whether the request needs one of your functions: summarizing the "+
			"conversation, managing action items, or searching history. When the user's "+
			"request mentions a time period, call %s first and pass its from/to/description "+
			"to the capability. For anything conversational that needs no function, answer "+
			"directly and briefly.",
		mode, rc.UserName, rc.Now().Format("Monday, January 2, 2006 at 3:04 PM MST"), timeRangeTool,
	)
}

// invoke executes one tool call on behalf of the model.
func (r *Router) invoke(ctx context.Context, rc *reqctx.RequestContext, acc *accumulator, call ai.ToolCall) (string, error) {
	if call.Name == timeRangeTool {
		return resolveTimeRange(rc, call.Arguments)
	}

	kind, ok := kindForName(call.Name)
	if !ok {
		return "", fmt.Errorf("router: unknown tool %q", call.Name)
	}

	out, err := r.execute(ctx, rc, kind, json.RawMessage(call.Arguments))
	if err != nil {
		return "", err
	}

	acc.capability = &kind
	acc.citations = append(acc.citations, out.Citations...)
	return out.Text, nil
}

// execute dispatches to the capability for kind. The switch is exhaustive
// over Kind so an unwired capability is a compile-time hole, and a
// panicking capability fails only its own request.
func (r *Router) execute(ctx context.Context, rc *reqctx.RequestContext, kind capabilities.Kind, args json.RawMessage) (out *capabilities.Output, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.WithField("capability", kind.String()).WithField("panic", rec).
				Error("router: capability panicked")
			out, err = nil, fmt.Errorf("router: capability %s failed", kind)
		}
	}()

	c := r.capability(kind)
	if c == nil {
		return nil, fmt.Errorf("router: capability %s not configured", kind)
	}

	switch kind {
	case capabilities.KindSummarize, capabilities.KindActionItems, capabilities.KindSearch:
		return c.Execute(ctx, rc, args)
	}
	return nil, fmt.Errorf("router: no dispatch for capability %s", kind)
}

func (r *Router) capability(kind capabilities.Kind) capabilities.Capability {
	for _, c := range r.caps {
		if c.Kind() == kind {
			return c
		}
	}
	return nil
}

// kindForName maps a tool name back to its capability kind.
func kindForName(name string) (capabilities.Kind, bool) {
	for _, k := range []capabilities.Kind{
		capabilities.KindSummarize,
		capabilities.KindActionItems,
		capabilities.KindSearch,
	} {
		if k.String() == name {
			return k, true
		}
	}
	return 0, false
}

// ─── Time resolution ───

type timeRangeArgs struct {
	Phrase string `json:"phrase"`
}

func timeRangeDef() ai.ToolDef {
	return ai.ToolDef{
		Name: timeRangeTool,
		Description: "Resolve a natural-language time expression like 'yesterday', " +
			"'last week', or 'last Thursday' into concrete from/to bounds. Call this " +
			"before any capability that takes a time range.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"phrase": map[string]any{
					"type":        "string",
					"description": "The time expression to resolve",
				},
			},
			"required": []string{"phrase"},
		},
	}
}

// resolveTimeRange resolves the phrase against the request's reference
// time. An unparseable phrase produces an error payload for the model,
// never a silently substituted window.
func resolveTimeRange(rc *reqctx.RequestContext, rawArgs string) (string, error) {
	var args timeRangeArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return "", fmt.Errorf("router: bad time range arguments: %w", err)
	}

	rng := timerange.Resolve(args.Phrase, rc.Now())
	if rng == nil {
		return "", fmt.Errorf("could not interpret the time expression %q; ask the user to rephrase it", args.Phrase)
	}

	payload, err := json.Marshal(map[string]string{
		"from":        rng.From,
		"to":          rng.To,
		"description": rng.Description,
	})
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

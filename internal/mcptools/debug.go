// Package mcptools exposes the store's operational surface as MCP tools.
//
// Each tool handler follows the same pattern:
// - A struct with dependencies (storage.Store, search.Provider) injected
//   via constructor
// - Definition() returns the mcp.Tool schema
// - Handle() processes the request and returns a result
//
// These are operator tools for inspecting and maintaining a deployment;
// the chat-facing capabilities live in internal/capabilities.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teddyam/collaborator-agent/internal/storage"
)

// DebugDumpTool handles the debug_dump MCP tool.
type DebugDumpTool struct {
	store *storage.Store
}

// NewDebugDumpTool creates a DebugDumpTool.
func NewDebugDumpTool(store *storage.Store) *DebugDumpTool {
	return &DebugDumpTool{store: store}
}

// Definition returns the MCP tool definition for debug_dump.
func (t *DebugDumpTool) Definition() mcp.Tool {
	return mcp.NewTool("debug_dump",
		mcp.WithDescription(
			"Dump everything stored for a conversation: messages, the snapshot blob, "+
				"and action items, as JSON. For inspecting a deployment, not for chat.",
		),
		mcp.WithString("conversation_id",
			mcp.Required(),
			mcp.Description("The conversation key to dump"),
		),
	)
}

// Handle processes the debug_dump tool call.
func (t *DebugDumpTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conversationID := req.GetString("conversation_id", "")
	if conversationID == "" {
		return mcp.NewToolResultError("'conversation_id' is required"), nil
	}

	snap := t.store.DebugDump(conversationID)
	out, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode dump: %v", err)), nil
	}

	return mcp.NewToolResultText(string(out)), nil
}

// ClearConversationTool handles the clear_conversation MCP tool.
type ClearConversationTool struct {
	store *storage.Store
}

// NewClearConversationTool creates a ClearConversationTool.
func NewClearConversationTool(store *storage.Store) *ClearConversationTool {
	return &ClearConversationTool{store: store}
}

// Definition returns the MCP tool definition for clear_conversation.
func (t *ClearConversationTool) Definition() mcp.Tool {
	return mcp.NewTool("clear_conversation",
		mcp.WithDescription(
			"Delete a conversation's stored messages and snapshot, and optionally its "+
				"action items. Idempotent: clearing an unknown conversation succeeds.",
		),
		mcp.WithString("conversation_id",
			mcp.Required(),
			mcp.Description("The conversation key to clear"),
		),
		mcp.WithBoolean("include_action_items",
			mcp.Description("Also delete the conversation's action items (default: false)"),
		),
	)
}

// Handle processes the clear_conversation tool call.
func (t *ClearConversationTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conversationID := req.GetString("conversation_id", "")
	if conversationID == "" {
		return mcp.NewToolResultError("'conversation_id' is required"), nil
	}

	t.store.ClearConversation(conversationID)

	text := fmt.Sprintf("Cleared conversation %s.", conversationID)
	if boolArg(req, "include_action_items", false) {
		deleted := t.store.ClearActionItems(conversationID)
		text = fmt.Sprintf("Cleared conversation %s and %d action item(s).", conversationID, deleted)
	}

	return mcp.NewToolResultText(text), nil
}

// ActionItemsSummaryTool handles the action_items_summary MCP tool.
type ActionItemsSummaryTool struct {
	store *storage.Store
}

// NewActionItemsSummaryTool creates an ActionItemsSummaryTool.
func NewActionItemsSummaryTool(store *storage.Store) *ActionItemsSummaryTool {
	return &ActionItemsSummaryTool{store: store}
}

// Definition returns the MCP tool definition for action_items_summary.
func (t *ActionItemsSummaryTool) Definition() mcp.Tool {
	return mcp.NewTool("action_items_summary",
		mcp.WithDescription(
			"Report action item counts across all conversations, broken down by "+
				"status and priority.",
		),
	)
}

// Handle processes the action_items_summary tool call.
func (t *ActionItemsSummaryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summary := t.store.ActionItemsSummary()

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode summary: %v", err)), nil
	}

	return mcp.NewToolResultText(string(out)), nil
}

package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teddyam/collaborator-agent/internal/search"
)

// SearchMessagesTool handles the search_messages MCP tool.
type SearchMessagesTool struct {
	provider search.Provider
}

// NewSearchMessagesTool creates a SearchMessagesTool.
func NewSearchMessagesTool(provider search.Provider) *SearchMessagesTool {
	return &SearchMessagesTool{provider: provider}
}

// Definition returns the MCP tool definition for search_messages.
func (t *SearchMessagesTool) Definition() mcp.Tool {
	return mcp.NewTool("search_messages",
		mcp.WithDescription(
			"Search one conversation's stored messages by keyword and time range. "+
				"Runs the same search path the chat capability uses, including the "+
				"semantic-to-keyword fallback.",
		),
		mcp.WithString("conversation_id",
			mcp.Required(),
			mcp.Description("The conversation key to search"),
		),
		mcp.WithString("keywords",
			mcp.Description("Space-separated terms to match in message content"),
		),
		mcp.WithString("from",
			mcp.Description("Range start, ISO-8601 UTC"),
		),
		mcp.WithString("to",
			mcp.Description("Range end, ISO-8601 UTC"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 10)"),
		),
	)
}

// Handle processes the search_messages tool call.
func (t *SearchMessagesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conversationID := req.GetString("conversation_id", "")
	if conversationID == "" {
		return mcp.NewToolResultError("'conversation_id' is required"), nil
	}

	result, err := t.provider.SearchMessages(ctx, conversationID, search.Query{
		Keywords:   strings.Fields(req.GetString("keywords", "")),
		From:       req.GetString("from", ""),
		To:         req.GetString("to", ""),
		MaxResults: intArg(req, "limit", 10),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	if len(result.Messages) == 0 {
		return mcp.NewToolResultText("No messages found matching your query."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d message(s) via %s:\n\n", result.TotalFound, result.Method)
	for i, m := range result.Messages {
		name := m.Name
		if name == "" {
			name = m.Role
		}
		fmt.Fprintf(&b, "[%d] #%d %s (%s)\n    %s\n\n", i+1, m.ID, name, m.Timestamp, m.Content)
	}

	return mcp.NewToolResultText(b.String()), nil
}

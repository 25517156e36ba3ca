package mcptools

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teddyam/collaborator-agent/internal/search"
	"github.com/teddyam/collaborator-agent/internal/storage"
)

// ─── Test helpers ────────────────────────────────────────────────────────────

// newTestStore creates a storage.Store in a temp directory for testing.
func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.New(storage.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestProvider(store *storage.Store) search.Provider {
	return search.NewKeywordProvider(store, search.NewLinker("https://chat.example/l/message"))
}

// makeReq builds a mcp.CallToolRequest with the given arguments.
func makeReq(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// resultText extracts the text content from a tool result.
func resultText(r *mcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func mustNotError(t *testing.T, r *mcp.CallToolResult, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if r != nil && r.IsError {
		t.Fatalf("tool error: %s", resultText(r))
	}
}

func seedConversation(t *testing.T, store *storage.Store) {
	t.Helper()
	for _, turn := range []struct{ content, ts string }{
		{"The deploy is scheduled for Friday", "2025-06-02T09:00:00Z"},
		{"Budget review happens Tuesday", "2025-06-02T09:05:00Z"},
	} {
		if m := store.AppendMessage(storage.AppendMessageParams{
			ConversationID: "conv-1",
			Role:           storage.RoleUser,
			Name:           "Alex",
			Content:        turn.content,
			Timestamp:      turn.ts,
		}); m == nil {
			t.Fatal("seed append failed")
		}
	}
}

// ─── DebugDumpTool ───────────────────────────────────────────────────────────

func TestDebugDumpTool_RequiresConversationID(t *testing.T) {
	tool := NewDebugDumpTool(newTestStore(t))

	result, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected a tool error without conversation_id")
	}
}

func TestDebugDumpTool_DumpsState(t *testing.T) {
	store := newTestStore(t)
	seedConversation(t, store)
	tool := NewDebugDumpTool(store)

	result, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"conversation_id": "conv-1",
	}))
	mustNotError(t, result, err)

	text := resultText(result)
	if !strings.Contains(text, `"message_count": 2`) {
		t.Errorf("dump missing message count: %s", text)
	}
	if !strings.Contains(text, "deploy is scheduled") {
		t.Error("dump missing message content")
	}
}

// ─── ClearConversationTool ───────────────────────────────────────────────────

func TestClearConversationTool_ClearsMessages(t *testing.T) {
	store := newTestStore(t)
	seedConversation(t, store)
	tool := NewClearConversationTool(store)

	result, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"conversation_id": "conv-1",
	}))
	mustNotError(t, result, err)

	if got := len(store.RecentMessages("conv-1", 10)); got != 0 {
		t.Errorf("%d messages survived the clear", got)
	}
}

func TestClearConversationTool_IncludeActionItems(t *testing.T) {
	store := newTestStore(t)
	seedConversation(t, store)
	if _, err := store.CreateActionItem(storage.CreateActionItemParams{
		ConversationID: "conv-1", Title: "Ship docs",
	}); err != nil {
		t.Fatal(err)
	}
	tool := NewClearConversationTool(store)

	result, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"conversation_id":      "conv-1",
		"include_action_items": true,
	}))
	mustNotError(t, result, err)

	if !strings.Contains(resultText(result), "1 action item(s)") {
		t.Errorf("result = %q", resultText(result))
	}
	if got := len(store.ActionItemsByConversation("conv-1")); got != 0 {
		t.Errorf("%d action items survived the clear", got)
	}
}

// ─── ActionItemsSummaryTool ──────────────────────────────────────────────────

func TestActionItemsSummaryTool(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.CreateActionItem(storage.CreateActionItemParams{
		ConversationID: "conv-1", Title: "A", Priority: storage.PriorityHigh,
	}); err != nil {
		t.Fatal(err)
	}
	tool := NewActionItemsSummaryTool(store)

	result, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{}))
	mustNotError(t, result, err)

	text := resultText(result)
	if !strings.Contains(text, `"total": 1`) {
		t.Errorf("summary = %s", text)
	}
	if !strings.Contains(text, `"high": 1`) {
		t.Errorf("summary missing priority breakdown: %s", text)
	}
}

// ─── SearchMessagesTool ──────────────────────────────────────────────────────

func TestSearchMessagesTool_FindsByKeyword(t *testing.T) {
	store := newTestStore(t)
	seedConversation(t, store)
	tool := NewSearchMessagesTool(newTestProvider(store))

	result, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"conversation_id": "conv-1",
		"keywords":        "budget",
	}))
	mustNotError(t, result, err)

	text := resultText(result)
	if !strings.Contains(text, "Budget review") {
		t.Errorf("result = %q", text)
	}
	if !strings.Contains(text, "via keyword") {
		t.Errorf("result should name the search method: %q", text)
	}
}

func TestSearchMessagesTool_NoMatches(t *testing.T) {
	store := newTestStore(t)
	seedConversation(t, store)
	tool := NewSearchMessagesTool(newTestProvider(store))

	result, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"conversation_id": "conv-1",
		"keywords":        "unicorns",
	}))
	mustNotError(t, result, err)

	if !strings.Contains(resultText(result), "No messages found") {
		t.Errorf("result = %q", resultText(result))
	}
}

package capabilities

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/teddyam/collaborator-agent/internal/ai"
	"github.com/teddyam/collaborator-agent/internal/reqctx"
	"github.com/teddyam/collaborator-agent/internal/storage"
)

// ActionItems extracts, lists, and transitions action items. In a
// personal chat it operates on the requesting user's items across
// conversations; in a group chat it operates on the conversation's items.
type ActionItems struct {
	store *storage.Store
	llm   ai.Completer
}

// NewActionItems creates the action-item capability.
func NewActionItems(store *storage.Store, llm ai.Completer) *ActionItems {
	return &ActionItems{store: store, llm: llm}
}

// Kind identifies this capability.
func (a *ActionItems) Kind() Kind { return KindActionItems }

// Definition returns the function schema exposed to the model.
func (a *ActionItems) Definition() ai.ToolDef {
	props := rangeProperties()
	props["action"] = map[string]any{
		"type":        "string",
		"enum":        []string{"generate", "list", "update"},
		"description": "generate: extract new action items from recent messages; list: show tracked items; update: change one item's status",
	}
	props["status"] = map[string]any{
		"type":        "string",
		"enum":        []string{storage.StatusPending, storage.StatusInProgress, storage.StatusCompleted, storage.StatusCancelled},
		"description": "Status filter for list, or the target status for update",
	}
	props["item_id"] = map[string]any{
		"type":        "integer",
		"description": "Action item id, required for update",
	}

	return ai.ToolDef{
		Name: KindActionItems.String(),
		Description: "Track action items in this conversation: extract new ones from " +
			"a window of messages, list tracked items, or mark an item's progress.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": props,
			"required":   []string{"action"},
		},
	}
}

type actionItemsArgs struct {
	windowArgs
	Action string `json:"action"`
	Status string `json:"status,omitempty"`
	ItemID int64  `json:"item_id,omitempty"`
}

// extractedItem is the shape the model returns during generation.
type extractedItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Assignee    string `json:"assignee"`
	Priority    string `json:"priority"`
	DueDate     string `json:"due_date"`
}

// Execute dispatches on the requested action.
func (a *ActionItems) Execute(ctx context.Context, rc *reqctx.RequestContext, rawArgs json.RawMessage) (*Output, error) {
	var args actionItemsArgs
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return nil, fmt.Errorf("action items: bad arguments: %w", err)
		}
	}

	switch args.Action {
	case "generate", "":
		return a.generate(ctx, rc, args)
	case "list":
		return a.list(rc, args.Status)
	case "update":
		return a.update(args.ItemID, args.Status)
	default:
		return nil, fmt.Errorf("action items: unknown action %q", args.Action)
	}
}

// generate analyzes the message window and persists the action items the
// model extracts from it.
func (a *ActionItems) generate(ctx context.Context, rc *reqctx.RequestContext, args actionItemsArgs) (*Output, error) {
	window := args.window(rc.Now())
	msgs := a.store.MessagesInRange(rc.ConversationKey, window.From, window.To)
	if len(msgs) == 0 {
		return &Output{
			Text: fmt.Sprintf("No messages found for %s, so there is nothing to extract action items from.", window.Description),
		}, nil
	}

	instructions := "You extract action items from group-chat transcripts. " +
		"Return ONLY a JSON array, no prose. Each element: " +
		`{"title": string, "description": string, "assignee": string, ` +
		`"priority": "low"|"medium"|"high"|"urgent", "due_date": "YYYY-MM-DD" or ""}. ` +
		"Only include real commitments and requests; return [] when there are none."

	raw, err := a.llm.Chat(ctx, instructions, transcript(msgs))
	if err != nil {
		return nil, fmt.Errorf("action items: extraction: %w", err)
	}

	extracted, err := parseExtracted(raw)
	if err != nil {
		return nil, fmt.Errorf("action items: parse extraction: %w", err)
	}
	if len(extracted) == 0 {
		return &Output{
			Text: fmt.Sprintf("I didn't find any action items in the messages from %s.", window.Description),
		}, nil
	}

	sourceIDs := messageIDs(msgs)

	var created []storage.ActionItem
	var rejected int
	for _, e := range extracted {
		name, id := a.resolveAssignee(rc, e.Assignee)
		item, err := a.store.CreateActionItem(storage.CreateActionItemParams{
			ConversationID:   rc.ConversationKey,
			Title:            e.Title,
			Description:      e.Description,
			AssignedToName:   name,
			AssignedToID:     id,
			AssignedByName:   rc.UserName,
			AssignedByID:     rc.UserID,
			Priority:         e.Priority,
			DueDate:          e.DueDate,
			SourceMessageIDs: sourceIDs,
		})
		if err != nil {
			log.WithError(err).WithField("title", e.Title).Warn("action items: rejected extracted item")
			rejected++
			continue
		}
		created = append(created, *item)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Tracked %d action item(s) from %s:\n\n", len(created), window.Description)
	for _, item := range created {
		b.WriteString(formatItem(item))
	}
	if rejected > 0 {
		fmt.Fprintf(&b, "\n%d extracted item(s) were invalid and skipped.", rejected)
	}

	return &Output{Text: b.String()}, nil
}

// resolveAssignee applies the assignment resolution order: personal mode
// assigns to the requester; otherwise the name is matched
// case-insensitively against the conversation roster and the first
// match's id is taken; with no match the item keeps the name only.
func (a *ActionItems) resolveAssignee(rc *reqctx.RequestContext, assignee string) (name, id string) {
	if rc.IsPersonalChat {
		return rc.UserName, rc.UserID
	}
	for _, p := range rc.Participants {
		if strings.EqualFold(p.Name, assignee) {
			return p.Name, p.ID
		}
	}
	return assignee, ""
}

// list shows tracked items: the requester's own (by id) in a personal
// chat, the conversation's otherwise.
func (a *ActionItems) list(rc *reqctx.RequestContext, status string) (*Output, error) {
	if status != "" && !storage.ValidStatus(status) {
		return nil, fmt.Errorf("action items: unknown status %q", status)
	}

	var items []storage.ActionItem
	var scope string
	if rc.IsPersonalChat {
		items = a.store.ActionItemsByAssigneeID(rc.UserID, status)
		scope = "assigned to you"
	} else {
		items = a.store.ActionItemsByConversation(rc.ConversationKey)
		if status != "" {
			filtered := items[:0]
			for _, item := range items {
				if item.Status == status {
					filtered = append(filtered, item)
				}
			}
			items = filtered
		}
		scope = "in this conversation"
	}

	if len(items) == 0 {
		return &Output{Text: fmt.Sprintf("There are no action items %s.", scope)}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d action item(s) %s:\n\n", len(items), scope)
	for _, item := range items {
		b.WriteString(formatItem(item))
	}
	return &Output{Text: b.String()}, nil
}

// update transitions one item. A false return from the store means an
// unknown id, an invalid status, or a terminal-state transition — all are
// reported, never raised.
func (a *ActionItems) update(itemID int64, status string) (*Output, error) {
	if itemID == 0 || status == "" {
		return nil, fmt.Errorf("action items: update needs item_id and status")
	}

	if !a.store.UpdateActionItemStatus(itemID, status) {
		return &Output{
			Text: fmt.Sprintf("I couldn't move action item #%d to %q — it may not exist, or it's already completed or cancelled.", itemID, status),
		}, nil
	}

	return &Output{Text: fmt.Sprintf("Action item #%d is now %s.", itemID, status)}, nil
}

// parseExtracted decodes the model's JSON array, tolerating a markdown
// code fence around it.
func parseExtracted(raw string) ([]extractedItem, error) {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
		cleaned = strings.TrimSpace(cleaned)
	}

	var items []extractedItem
	if err := json.Unmarshal([]byte(cleaned), &items); err != nil {
		return nil, err
	}
	return items, nil
}

func messageIDs(msgs []storage.Message) string {
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, fmt.Sprintf("%d", m.ID))
	}
	return strings.Join(ids, ",")
}

func formatItem(item storage.ActionItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- #%d [%s/%s] %s", item.ID, item.Status, item.Priority, item.Title)
	if item.AssignedToName != "" {
		fmt.Fprintf(&b, " — %s", item.AssignedToName)
	}
	if item.DueDate != "" {
		fmt.Fprintf(&b, " (due %s)", item.DueDate)
	}
	b.WriteString("\n")
	return b.String()
}

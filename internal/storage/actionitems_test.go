package storage

import "testing"

func createTestItem(t *testing.T, store *Store, p CreateActionItemParams) *ActionItem {
	t.Helper()
	if p.Title == "" {
		p.Title = "Ship docs"
	}
	if p.ConversationID == "" {
		p.ConversationID = "conv-1"
	}
	item, err := store.CreateActionItem(p)
	if err != nil {
		t.Fatalf("create action item: %v", err)
	}
	return item
}

// ─── Creation ────────────────────────────────────────────────────────────────

func TestCreateActionItem_Defaults(t *testing.T) {
	store := newTestStore(t)

	item := createTestItem(t, store, CreateActionItemParams{
		Title:          "Ship docs",
		AssignedToName: "Jordan",
	})

	if item.Status != StatusPending {
		t.Errorf("status = %q, want %q", item.Status, StatusPending)
	}
	if item.Priority != PriorityMedium {
		t.Errorf("priority = %q, want %q", item.Priority, PriorityMedium)
	}
	if item.CreatedAt == "" || item.UpdatedAt == "" {
		t.Error("expected created_at and updated_at to be set")
	}
}

func TestCreateActionItem_RejectsInvalidPriority(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreateActionItem(CreateActionItemParams{
		ConversationID: "conv-1",
		Title:          "Ship docs",
		Priority:       "critical",
	})
	if err == nil {
		t.Fatal("expected an error for out-of-enum priority")
	}
}

func TestCreateActionItem_RequiresTitle(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.CreateActionItem(CreateActionItemParams{ConversationID: "conv-1"}); err == nil {
		t.Fatal("expected an error for empty title")
	}
}

// ─── Status transitions ──────────────────────────────────────────────────────

func TestUpdateActionItemStatus_Lifecycle(t *testing.T) {
	store := newTestStore(t)
	item := createTestItem(t, store, CreateActionItemParams{})

	if !store.UpdateActionItemStatus(item.ID, StatusInProgress) {
		t.Fatal("pending -> in_progress should succeed")
	}
	if !store.UpdateActionItemStatus(item.ID, StatusCompleted) {
		t.Fatal("in_progress -> completed should succeed")
	}

	// completed is terminal: nothing moves out of it.
	if store.UpdateActionItemStatus(item.ID, StatusPending) {
		t.Error("completed -> pending should be rejected")
	}
	if store.UpdateActionItemStatus(item.ID, StatusCancelled) {
		t.Error("completed -> cancelled should be rejected")
	}

	got := store.GetActionItem(item.ID)
	if got.Status != StatusCompleted {
		t.Errorf("status = %q, want %q", got.Status, StatusCompleted)
	}
}

func TestUpdateActionItemStatus_CancelFromInProgress(t *testing.T) {
	store := newTestStore(t)
	item := createTestItem(t, store, CreateActionItemParams{})

	store.UpdateActionItemStatus(item.ID, StatusInProgress)
	if !store.UpdateActionItemStatus(item.ID, StatusCancelled) {
		t.Fatal("in_progress -> cancelled should succeed")
	}
	if store.UpdateActionItemStatus(item.ID, StatusInProgress) {
		t.Error("cancelled -> in_progress should be rejected")
	}
}

func TestUpdateActionItemStatus_Rejections(t *testing.T) {
	store := newTestStore(t)
	item := createTestItem(t, store, CreateActionItemParams{})

	if store.UpdateActionItemStatus(999, StatusCompleted) {
		t.Error("unknown id should return false")
	}
	if store.UpdateActionItemStatus(item.ID, "done") {
		t.Error("out-of-enum status should return false")
	}

	got := store.GetActionItem(item.ID)
	if got.Status != StatusPending {
		t.Errorf("status = %q after rejected updates, want pending", got.Status)
	}
}

// ─── Queries ─────────────────────────────────────────────────────────────────

func TestActionItemsByAssigneeID(t *testing.T) {
	store := newTestStore(t)
	createTestItem(t, store, CreateActionItemParams{Title: "A", AssignedToName: "Jordan", AssignedToID: "u-1"})
	createTestItem(t, store, CreateActionItemParams{Title: "B", AssignedToName: "Jordan", AssignedToID: "u-1", ConversationID: "conv-2"})
	createTestItem(t, store, CreateActionItemParams{Title: "C", AssignedToName: "Jordan"}) // no resolved id

	items := store.ActionItemsByAssigneeID("u-1", "")
	if len(items) != 2 {
		t.Fatalf("got %d items for u-1, want 2 (name-only items excluded)", len(items))
	}

	store.UpdateActionItemStatus(items[0].ID, StatusCompleted)
	pending := store.ActionItemsByAssigneeID("u-1", StatusPending)
	if len(pending) != 1 {
		t.Errorf("got %d pending items, want 1", len(pending))
	}
}

func TestActionItemsByAssigneeName_CaseInsensitive(t *testing.T) {
	store := newTestStore(t)
	createTestItem(t, store, CreateActionItemParams{Title: "A", AssignedToName: "Jordan"})

	if got := len(store.ActionItemsByAssigneeName("jordan", "")); got != 1 {
		t.Errorf("got %d items for lowercase name, want 1", got)
	}
}

func TestActionItemsByConversation_NewestFirst(t *testing.T) {
	store := newTestStore(t)
	first := createTestItem(t, store, CreateActionItemParams{Title: "first"})
	second := createTestItem(t, store, CreateActionItemParams{Title: "second"})

	items := store.ActionItemsByConversation("conv-1")
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].ID != second.ID || items[1].ID != first.ID {
		t.Errorf("order = [%d, %d], want [%d, %d]", items[0].ID, items[1].ID, second.ID, first.ID)
	}
}

func TestClearActionItems(t *testing.T) {
	store := newTestStore(t)
	createTestItem(t, store, CreateActionItemParams{Title: "A"})
	createTestItem(t, store, CreateActionItemParams{Title: "B"})
	createTestItem(t, store, CreateActionItemParams{Title: "C", ConversationID: "conv-2"})

	if n := store.ClearActionItems("conv-1"); n != 2 {
		t.Errorf("cleared %d items, want 2", n)
	}
	if n := store.ClearActionItems("conv-1"); n != 0 {
		t.Errorf("second clear removed %d items, want 0", n)
	}
	if got := len(store.ActionItemsByConversation("conv-2")); got != 1 {
		t.Errorf("conv-2 has %d items after clearing conv-1, want 1", got)
	}
}

func TestActionItemsSummary(t *testing.T) {
	store := newTestStore(t)
	createTestItem(t, store, CreateActionItemParams{Title: "A", Priority: PriorityHigh})
	createTestItem(t, store, CreateActionItemParams{Title: "B"})
	item := createTestItem(t, store, CreateActionItemParams{Title: "C"})
	store.UpdateActionItemStatus(item.ID, StatusCompleted)

	summary := store.ActionItemsSummary()
	if summary.Total != 3 {
		t.Errorf("total = %d, want 3", summary.Total)
	}
	if summary.ByStatus[StatusPending] != 2 {
		t.Errorf("pending = %d, want 2", summary.ByStatus[StatusPending])
	}
	if summary.ByStatus[StatusCompleted] != 1 {
		t.Errorf("completed = %d, want 1", summary.ByStatus[StatusCompleted])
	}
	if summary.ByPriority[PriorityHigh] != 1 {
		t.Errorf("high = %d, want 1", summary.ByPriority[PriorityHigh])
	}
}

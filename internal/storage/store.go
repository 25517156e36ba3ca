// Package storage implements the persistent conversation store for the
// collaborator agent.
//
// It uses an embedded SQLite database to record every chat turn, an
// optional per-conversation snapshot blob, and the action items extracted
// from conversations. Messages are immutable once written; within a
// conversation the monotonic id order is authoritative for recency
// (timestamps can collide under rapid writes).
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// timeNow is a package-level var for testability.
var timeNow = time.Now

// ─── Types ───────────────────────────────────────────────────────────────────

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat turn. Immutable once written.
type Message struct {
	ID               int64  `json:"id"`
	ConversationID   string `json:"conversation_id"`
	Role             string `json:"role"`
	Name             string `json:"name"`
	Content          string `json:"content"`
	Timestamp        string `json:"timestamp"`
	SourceActivityID string `json:"source_activity_id,omitempty"`
}

// AppendMessageParams holds the input for recording a chat turn.
type AppendMessageParams struct {
	ConversationID   string
	Role             string
	Name             string
	Content          string
	Timestamp        string // ISO-8601 UTC; empty = now
	SourceActivityID string
}

// DebugSnapshot is the structured dump of a conversation's stored state.
type DebugSnapshot struct {
	ConversationID string       `json:"conversation_id"`
	Messages       []Message    `json:"messages"`
	MessageCount   int          `json:"message_count"`
	SnapshotBlob   string       `json:"snapshot_blob,omitempty"`
	ActionItems    []ActionItem `json:"action_items"`
}

// Config holds store configuration.
type Config struct {
	DataDir string
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{DataDir: filepath.Join(home, ".collab")}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the persistent conversation engine backed by SQLite.
//
// Failure semantics: query and update errors are caught here, logged, and
// converted into empty results or false returns. Only the initial schema
// bootstrap in New is fatal.
type Store struct {
	db  *sql.DB
	cfg Config
}

// New creates a Store with the given configuration. It creates the data
// directory if needed, opens SQLite with WAL mode, and runs migrations.
func New(cfg Config) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("storage: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "collab.db")
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}

	// SQLite performance pragmas
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("storage: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, cfg: cfg}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("storage: migration: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			key        TEXT PRIMARY KEY,
			value_blob TEXT,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE IF NOT EXISTS messages (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL,
			role            TEXT NOT NULL,
			content         TEXT NOT NULL,
			timestamp       TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_msg_conversation ON messages(conversation_id);
		CREATE INDEX IF NOT EXISTS idx_msg_timestamp    ON messages(timestamp);

		CREATE TABLE IF NOT EXISTS action_items (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL,
			title           TEXT NOT NULL,
			description     TEXT NOT NULL DEFAULT '',
			assigned_to     TEXT NOT NULL DEFAULT '',
			assigned_to_id  TEXT,
			assigned_by     TEXT NOT NULL DEFAULT '',
			assigned_by_id  TEXT,
			status          TEXT NOT NULL DEFAULT 'pending',
			priority        TEXT NOT NULL DEFAULT 'medium',
			due_date        TEXT,
			created_at      TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at      TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_items_conversation ON action_items(conversation_id);
		CREATE INDEX IF NOT EXISTS idx_items_assignee     ON action_items(assigned_to);
		CREATE INDEX IF NOT EXISTS idx_items_assignee_id  ON action_items(assigned_to_id);
		CREATE INDEX IF NOT EXISTS idx_items_status       ON action_items(status);
		CREATE INDEX IF NOT EXISTS idx_items_due          ON action_items(due_date);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Schema evolution is additive-only: later releases gain nullable
	// columns via ALTER TABLE. Re-adding an existing column is swallowed
	// so upgraded databases keep working.
	addColumn(s.db, "messages", "name", "TEXT NOT NULL DEFAULT ''")
	addColumn(s.db, "messages", "source_activity_id", "TEXT")
	addColumn(s.db, "action_items", "source_message_ids", "TEXT")

	return nil
}

// addColumn issues an additive ALTER TABLE and swallows the duplicate-column
// error raised when the column already exists. Any other failure is logged;
// this is the store's only intentional retry path.
func addColumn(db *sql.DB, table, column, definition string) {
	_, err := db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition))
	if err != nil && !strings.Contains(err.Error(), "duplicate column name") {
		log.WithError(err).WithFields(log.Fields{
			"table":  table,
			"column": column,
		}).Warn("storage: add column failed")
	}
}

// ─── Messages ────────────────────────────────────────────────────────────────

// AppendMessage durably records one chat turn and returns the stored row.
// Appending the exact same turn twice (same conversation, role, content,
// timestamp) returns the existing row instead of writing a duplicate.
// Returns nil on storage failure (logged).
func (s *Store) AppendMessage(p AppendMessageParams) *Message {
	ts := p.Timestamp
	if ts == "" {
		ts = Now()
	}

	// Exact-content duplicate guard. Known limitation: whitespace or
	// formatting differences defeat string equality.
	var existingID int64
	err := s.db.QueryRow(
		`SELECT id FROM messages
		 WHERE conversation_id = ? AND role = ? AND content = ? AND timestamp = ?
		 ORDER BY id DESC LIMIT 1`,
		p.ConversationID, p.Role, p.Content, ts,
	).Scan(&existingID)
	if err == nil {
		return s.getMessage(existingID)
	}
	if err != sql.ErrNoRows {
		log.WithError(err).Error("storage: duplicate check failed")
		return nil
	}

	res, err := s.db.Exec(
		`INSERT INTO messages (conversation_id, role, name, content, timestamp, source_activity_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.ConversationID, p.Role, p.Name, p.Content, ts, nullableString(p.SourceActivityID),
	)
	if err != nil {
		log.WithError(err).WithField("conversation", p.ConversationID).Error("storage: append message failed")
		return nil
	}

	id, _ := res.LastInsertId()
	return &Message{
		ID:               id,
		ConversationID:   p.ConversationID,
		Role:             p.Role,
		Name:             p.Name,
		Content:          p.Content,
		Timestamp:        ts,
		SourceActivityID: p.SourceActivityID,
	}
}

// RecentMessages returns the last limit messages of a conversation in
// insertion order (oldest first within the window). Selection is by
// descending id, then reversed: id order, not timestamp order, is
// authoritative for recency.
func (s *Store) RecentMessages(conversationID string, limit int) []Message {
	if limit <= 0 {
		limit = 50
	}

	msgs := s.queryMessages(
		`SELECT id, conversation_id, role, name, content, timestamp, ifnull(source_activity_id, '')
		 FROM messages
		 WHERE conversation_id = ?
		 ORDER BY id DESC LIMIT ?`,
		conversationID, limit,
	)

	// Reverse to chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs
}

// MessagesInRange returns messages with from <= timestamp <= to in ascending
// timestamp order. Either bound may be empty; both empty returns the full
// history. An empty window yields an empty result, never an error.
func (s *Store) MessagesInRange(conversationID, from, to string) []Message {
	query := `
		SELECT id, conversation_id, role, name, content, timestamp, ifnull(source_activity_id, '')
		FROM messages
		WHERE conversation_id = ?
	`
	args := []any{conversationID}

	if from != "" {
		query += " AND datetime(timestamp) >= datetime(?)"
		args = append(args, from)
	}
	if to != "" {
		query += " AND datetime(timestamp) <= datetime(?)"
		args = append(args, to)
	}

	query += " ORDER BY datetime(timestamp) ASC, id ASC"

	return s.queryMessages(query, args...)
}

// ClearConversation deletes all messages and the snapshot blob for a
// conversation. Idempotent; clearing an unknown conversation only logs.
func (s *Store) ClearConversation(conversationID string) {
	res, err := s.db.Exec(`DELETE FROM messages WHERE conversation_id = ?`, conversationID)
	if err != nil {
		log.WithError(err).WithField("conversation", conversationID).Error("storage: clear messages failed")
		return
	}
	deleted, _ := res.RowsAffected()

	if _, err := s.db.Exec(`DELETE FROM conversations WHERE key = ?`, conversationID); err != nil {
		log.WithError(err).WithField("conversation", conversationID).Error("storage: clear snapshot failed")
	}

	if deleted == 0 {
		log.WithField("conversation", conversationID).Info("storage: nothing to clear")
	} else {
		log.WithFields(log.Fields{
			"conversation": conversationID,
			"deleted":      deleted,
		}).Info("storage: conversation cleared")
	}
}

func (s *Store) getMessage(id int64) *Message {
	row := s.db.QueryRow(
		`SELECT id, conversation_id, role, name, content, timestamp, ifnull(source_activity_id, '')
		 FROM messages WHERE id = ?`, id,
	)
	var m Message
	if err := row.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Name, &m.Content, &m.Timestamp, &m.SourceActivityID); err != nil {
		log.WithError(err).WithField("id", id).Error("storage: get message failed")
		return nil
	}
	return &m
}

func (s *Store) queryMessages(query string, args ...any) []Message {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		log.WithError(err).Error("storage: message query failed")
		return nil
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Name, &m.Content, &m.Timestamp, &m.SourceActivityID); err != nil {
			log.WithError(err).Error("storage: message scan failed")
			return msgs
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		log.WithError(err).Error("storage: message rows failed")
	}
	return msgs
}

// ─── Conversation Snapshots ──────────────────────────────────────────────────

// SaveConversationSnapshot upserts the aggregate snapshot blob for a
// conversation, bumping updated_at.
func (s *Store) SaveConversationSnapshot(conversationID, blob string) error {
	_, err := s.db.Exec(
		`INSERT INTO conversations (key, value_blob, updated_at)
		 VALUES (?, ?, datetime('now'))
		 ON CONFLICT(key) DO UPDATE SET value_blob = excluded.value_blob, updated_at = datetime('now')`,
		conversationID, blob,
	)
	if err != nil {
		return fmt.Errorf("storage: save snapshot: %w", err)
	}
	return nil
}

// LoadConversationSnapshot returns the snapshot blob for a conversation and
// whether one exists.
func (s *Store) LoadConversationSnapshot(conversationID string) (string, bool) {
	var blob sql.NullString
	err := s.db.QueryRow(
		`SELECT value_blob FROM conversations WHERE key = ?`, conversationID,
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return "", false
	}
	if err != nil {
		log.WithError(err).WithField("conversation", conversationID).Error("storage: load snapshot failed")
		return "", false
	}
	return blob.String, true
}

// ─── Debug surface ───────────────────────────────────────────────────────────

// DebugDump returns a structured snapshot of everything stored for a
// conversation: messages, counts, the snapshot blob, and action items.
func (s *Store) DebugDump(conversationID string) *DebugSnapshot {
	snap := &DebugSnapshot{ConversationID: conversationID}
	snap.Messages = s.MessagesInRange(conversationID, "", "")
	snap.MessageCount = len(snap.Messages)
	snap.SnapshotBlob, _ = s.LoadConversationSnapshot(conversationID)
	snap.ActionItems = s.ActionItemsByConversation(conversationID)
	return snap
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// Now returns the current instant as an ISO-8601 UTC string, the format
// used for every timestamp in the store.
func Now() string {
	return timeNow().UTC().Format(time.RFC3339)
}

// nullableString converts "" to a SQL NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

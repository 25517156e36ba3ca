// Package search implements conversation history search.
//
// Two providers exist: a local keyword provider that every deployment has,
// and an optional remote semantic provider. The semantic provider degrades
// transparently to the keyword provider on any failure — the Method field
// of the result tells callers which path actually ran so degraded behavior
// can be disclosed.
package search

import (
	"context"
	"net/url"

	"github.com/teddyam/collaborator-agent/internal/storage"
)

// Search methods reported in Result.Method.
const (
	MethodKeyword         = "keyword"
	MethodSemantic        = "semantic"
	MethodKeywordFallback = "keyword_fallback"
)

// Query holds the filters for a history search.
type Query struct {
	Keywords     []string
	Participants []string
	From         string // ISO-8601 UTC, inclusive; empty = unbounded
	To           string
	MaxResults   int
}

// Citation is a structured reference to a source message carrying a deep
// link. Only messages with a source activity id are citable.
type Citation struct {
	MessageID  int64  `json:"message_id"`
	ActivityID string `json:"activity_id"`
	Snippet    string `json:"snippet"`
	DeepLink   string `json:"deep_link"`
}

// Result is the ranked output of one search.
type Result struct {
	Messages   []storage.Message
	TotalFound int
	Method     string
	Citations  []Citation
}

// Provider produces ranked messages and citation metadata for a query.
type Provider interface {
	SearchMessages(ctx context.Context, conversationID string, q Query) (*Result, error)
}

// MessageSource is the slice of the store the keyword provider reads.
type MessageSource interface {
	MessagesInRange(conversationID, from, to string) []storage.Message
}

// Linker builds deep links into the chat platform from a conversation key
// and a source activity id.
type Linker struct {
	baseURL string
}

// NewLinker creates a Linker with the platform's message deep-link prefix.
func NewLinker(baseURL string) *Linker {
	return &Linker{baseURL: baseURL}
}

// DeepLink returns the link for one message.
func (l *Linker) DeepLink(conversationKey, activityID string) string {
	return l.baseURL + "/" + url.PathEscape(conversationKey) + "/" + url.PathEscape(activityID)
}

// Citations derives citations for the messages that carry a source
// activity id. Messages without one are silently skipped — they still
// appear in summary text but are not eligible for a deep link.
func (l *Linker) Citations(conversationKey string, msgs []storage.Message) []Citation {
	var cites []Citation
	for _, m := range msgs {
		if m.SourceActivityID == "" {
			continue
		}
		cites = append(cites, Citation{
			MessageID:  m.ID,
			ActivityID: m.SourceActivityID,
			Snippet:    snippet(m.Content, 120),
			DeepLink:   l.DeepLink(conversationKey, m.SourceActivityID),
		})
	}
	return cites
}

func snippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

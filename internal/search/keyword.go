package search

import (
	"context"
	"sort"
	"strings"

	"github.com/teddyam/collaborator-agent/internal/storage"
)

// defaultMaxResults caps a search when the query doesn't say otherwise.
const defaultMaxResults = 10

// KeywordProvider is the guaranteed local search path: case-insensitive
// substring matching over the store's messages. It never fails as long as
// the store is reachable, which makes it the fallback for the semantic
// provider.
type KeywordProvider struct {
	store  MessageSource
	linker *Linker
}

// NewKeywordProvider creates a KeywordProvider over the given store.
func NewKeywordProvider(store MessageSource, linker *Linker) *KeywordProvider {
	return &KeywordProvider{store: store, linker: linker}
}

var _ Provider = (*KeywordProvider)(nil)

// SearchMessages filters the conversation's messages in the query's time
// bounds by keyword and participant, newest first, truncated to
// MaxResults.
func (p *KeywordProvider) SearchMessages(_ context.Context, conversationID string, q Query) (*Result, error) {
	msgs := p.store.MessagesInRange(conversationID, q.From, q.To)

	var matched []storage.Message
	for _, m := range msgs {
		if !matchKeywords(m.Content, q.Keywords) {
			continue
		}
		if !matchParticipant(m.Name, q.Participants) {
			continue
		}
		matched = append(matched, m)
	}

	// Newest first: id order is authoritative for recency.
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := len(matched)
	limit := q.MaxResults
	if limit <= 0 {
		limit = defaultMaxResults
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}

	return &Result{
		Messages:   matched,
		TotalFound: total,
		Method:     MethodKeyword,
		Citations:  p.linker.Citations(conversationID, matched),
	}, nil
}

// matchKeywords reports whether content contains any keyword,
// case-insensitively. An empty keyword list matches everything.
func matchKeywords(content string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	lower := strings.ToLower(content)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// matchParticipant reports whether the sender name contains any of the
// requested participant names, case-insensitively.
func matchParticipant(name string, participants []string) bool {
	if len(participants) == 0 {
		return true
	}
	lower := strings.ToLower(name)
	for _, p := range participants {
		if p == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

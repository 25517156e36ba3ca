package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/teddyam/collaborator-agent/internal/storage"
)

// SemanticProvider queries a remote ranked index scoped to one
// conversation. Any failure — network, auth, malformed response — is
// caught and the query transparently re-executes on the local keyword
// provider, with Method set to keyword_fallback.
type SemanticProvider struct {
	endpoint string
	apiKey   string
	client   *http.Client
	linker   *Linker
	fallback Provider
}

// NewSemanticProvider creates a SemanticProvider with the given fallback.
// The fallback must not be nil: the provider's contract is that a search
// always returns a non-error result when the store is healthy.
func NewSemanticProvider(endpoint, apiKey string, linker *Linker, fallback Provider) *SemanticProvider {
	return &SemanticProvider{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 15 * time.Second},
		linker:   linker,
		fallback: fallback,
	}
}

var _ Provider = (*SemanticProvider)(nil)

// semanticRequest is the remote index's query contract.
type semanticRequest struct {
	Query          string   `json:"query"`
	ConversationID string   `json:"conversation_id"`
	Participants   []string `json:"participants,omitempty"`
	From           string   `json:"from,omitempty"`
	To             string   `json:"to,omitempty"`
	Top            int      `json:"top"`
}

type semanticHit struct {
	MessageID  int64   `json:"message_id"`
	Role       string  `json:"role"`
	Name       string  `json:"name"`
	Content    string  `json:"content"`
	Timestamp  string  `json:"timestamp"`
	ActivityID string  `json:"activity_id"`
	Score      float64 `json:"score"`
}

type semanticResponse struct {
	Hits  []semanticHit `json:"hits"`
	Total int           `json:"total"`
}

// SearchMessages runs the remote ranked query, falling back to the local
// provider on any failure.
func (p *SemanticProvider) SearchMessages(ctx context.Context, conversationID string, q Query) (*Result, error) {
	result, err := p.remoteSearch(ctx, conversationID, q)
	if err != nil {
		log.WithError(err).WithField("conversation", conversationID).
			Warn("search: semantic provider failed, falling back to keyword")
		fallback, ferr := p.fallback.SearchMessages(ctx, conversationID, q)
		if ferr != nil {
			return nil, ferr
		}
		fallback.Method = MethodKeywordFallback
		return fallback, nil
	}
	return result, nil
}

func (p *SemanticProvider) remoteSearch(ctx context.Context, conversationID string, q Query) (*Result, error) {
	top := q.MaxResults
	if top <= 0 {
		top = defaultMaxResults
	}

	body, err := json.Marshal(semanticRequest{
		Query:          joinKeywords(q.Keywords),
		ConversationID: conversationID,
		Participants:   q.Participants,
		From:           q.From,
		To:             q.To,
		Top:            top,
	})
	if err != nil {
		return nil, fmt.Errorf("search: encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("search: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: semantic query: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search: semantic index returned %d", resp.StatusCode)
	}

	var decoded semanticResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("search: decode response: %w", err)
	}

	// Rank primarily by relevance, then by recency.
	sort.SliceStable(decoded.Hits, func(i, j int) bool {
		if decoded.Hits[i].Score != decoded.Hits[j].Score {
			return decoded.Hits[i].Score > decoded.Hits[j].Score
		}
		return decoded.Hits[i].Timestamp > decoded.Hits[j].Timestamp
	})
	if len(decoded.Hits) > top {
		decoded.Hits = decoded.Hits[:top]
	}

	msgs := make([]storage.Message, 0, len(decoded.Hits))
	for _, h := range decoded.Hits {
		msgs = append(msgs, storage.Message{
			ID:               h.MessageID,
			ConversationID:   conversationID,
			Role:             h.Role,
			Name:             h.Name,
			Content:          h.Content,
			Timestamp:        h.Timestamp,
			SourceActivityID: h.ActivityID,
		})
	}

	total := decoded.Total
	if total == 0 {
		total = len(msgs)
	}

	return &Result{
		Messages:   msgs,
		TotalFound: total,
		Method:     MethodSemantic,
		Citations:  p.linker.Citations(conversationID, msgs),
	}, nil
}

func joinKeywords(keywords []string) string {
	out := ""
	for i, kw := range keywords {
		if i > 0 {
			out += " "
		}
		out += kw
	}
	return out
}

// Package reqctx holds the per-request context registry.
//
// The delegation protocol between the router and the language model can
// only pass serializable scalar arguments, so the rich per-request context
// travels as an opaque token — the triggering activity's id — and is
// resolved back through this registry. A missing context for a token is a
// hard error for that request, never a default.
package reqctx

import (
	"errors"
	"time"

	"github.com/patrickmn/go-cache"
)

// ErrNotFound is returned by Get when no context is registered for a token.
var ErrNotFound = errors.New("reqctx: no context for token")

// Participant identifies one member of the conversation, as supplied by
// the chat platform's roster.
type Participant struct {
	ID   string
	Name string
}

// RequestContext is the per-request bundle of identity, conversation, and
// time information threaded through a delegation. It is created once per
// inbound request, read during that request, and discarded (or left to
// expire) afterwards. Never reuse one across requests.
type RequestContext struct {
	Text            string
	ConversationKey string
	UserID          string
	UserName        string
	IsPersonalChat  bool
	CurrentDateTime time.Time
	TimeZone        *time.Location
	Participants    []Participant
}

// Now returns the request's reference instant in the user's time zone.
// Time phrases are interpreted relative to this, not to server time.
func (rc *RequestContext) Now() time.Time {
	if rc.TimeZone != nil {
		return rc.CurrentDateTime.In(rc.TimeZone)
	}
	return rc.CurrentDateTime.UTC()
}

// Registry is a process-wide, concurrency-safe table mapping request
// tokens to contexts. Tokens come from unique platform-assigned activity
// ids, so collisions should not occur; a late duplicate Put for the same
// token wins.
type Registry struct {
	entries *cache.Cache
}

// NewRegistry creates a Registry whose entries expire after ttl as a
// backstop for requests that never complete.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Registry{
		entries: cache.New(ttl, 2*ttl),
	}
}

// Put registers the context for a token. Last write wins.
func (r *Registry) Put(token string, ctx *RequestContext) {
	r.entries.Set(token, ctx, cache.DefaultExpiration)
}

// Get resolves a token back to its context. Callers must treat ErrNotFound
// as fatal for the request.
func (r *Registry) Get(token string) (*RequestContext, error) {
	v, ok := r.entries.Get(token)
	if !ok {
		return nil, ErrNotFound
	}
	return v.(*RequestContext), nil
}

// Remove discards the context for a token. Removing an unknown token is a
// no-op.
func (r *Registry) Remove(token string) {
	r.entries.Delete(token)
}

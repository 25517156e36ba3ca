package reqctx

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func newTestContext(text string) *RequestContext {
	return &RequestContext{
		Text:            text,
		ConversationKey: "conv-1",
		UserID:          "u-1",
		UserName:        "Alex",
		CurrentDateTime: time.Date(2025, 6, 2, 15, 30, 0, 0, time.UTC),
	}
}

func TestRegistry_PutAndGet(t *testing.T) {
	reg := NewRegistry(time.Minute)
	rc := newTestContext("summarize yesterday")

	reg.Put("act-1", rc)

	got, err := reg.Get("act-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != rc {
		t.Error("expected the same context back")
	}
}

func TestRegistry_MissIsHardError(t *testing.T) {
	reg := NewRegistry(time.Minute)

	_, err := reg.Get("a1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("get unknown token: err = %v, want ErrNotFound", err)
	}
}

func TestRegistry_LastWriteWins(t *testing.T) {
	reg := NewRegistry(time.Minute)
	reg.Put("act-1", newTestContext("first"))
	reg.Put("act-1", newTestContext("second"))

	got, err := reg.Get("act-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Text != "second" {
		t.Errorf("text = %q, want %q", got.Text, "second")
	}
}

func TestRegistry_Remove(t *testing.T) {
	reg := NewRegistry(time.Minute)
	reg.Put("act-1", newTestContext("hello"))
	reg.Remove("act-1")

	if _, err := reg.Get("act-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("get after remove: err = %v, want ErrNotFound", err)
	}

	// Removing an unknown token is a no-op.
	reg.Remove("never-registered")
}

func TestRegistry_Expiry(t *testing.T) {
	reg := NewRegistry(20 * time.Millisecond)
	reg.Put("act-1", newTestContext("hello"))

	time.Sleep(50 * time.Millisecond)

	if _, err := reg.Get("act-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("get after expiry: err = %v, want ErrNotFound", err)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := NewRegistry(time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token := fmt.Sprintf("act-%d", i)
			reg.Put(token, newTestContext(token))
			if _, err := reg.Get(token); err != nil {
				t.Errorf("get %s: %v", token, err)
			}
		}(i)
	}
	wg.Wait()
}

func TestRequestContext_Now(t *testing.T) {
	rc := newTestContext("hello")

	if got := rc.Now(); !got.Equal(rc.CurrentDateTime) {
		t.Errorf("now = %v, want %v", got, rc.CurrentDateTime)
	}

	zone := time.FixedZone("UTC+2", 2*3600)
	rc.TimeZone = zone
	if got := rc.Now(); got.Location() != zone {
		t.Errorf("location = %v, want %v", got.Location(), zone)
	}
}

package bus

import (
	"encoding/json"
	"testing"
	"time"
)

var sampleData = json.RawMessage(`{"n":1}`)

// TestOnReceivesEmit tests that a persistent subscriber fires on Emit.
func TestOnReceivesEmit(t *testing.T) {
	t.Parallel()

	b := New()
	received := make(chan string, 1)
	b.On("hi", func(data json.RawMessage, from string) {
		received <- from
	})

	b.Emit("hi", sampleData, "alice")

	select {
	case from := <-received:
		if from != "alice" {
			t.Errorf("from = %v, want alice", from)
		}
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}
}

// TestOncePersistentOrdering asserts persistent handlers run before one-shot
// handlers.
func TestOncePersistentOrdering(t *testing.T) {
	t.Parallel()

	b := New()
	var order []string
	done := make(chan struct{})

	b.On("e", func(json.RawMessage, string) { order = append(order, "persistent") })
	b.Once("e", func(json.RawMessage, string) {
		order = append(order, "once")
		close(done)
	})

	b.Emit("e", sampleData, "x")
	<-done

	if len(order) != 2 || order[0] != "persistent" || order[1] != "once" {
		t.Errorf("order = %v, want [persistent once]", order)
	}
}

// TestOnceFiresOnlyOnce: a once subscription fires on the first matching
// event and never again, even if the handler re-subscribes during dispatch.
func TestOnceFiresOnlyOnce(t *testing.T) {
	t.Parallel()

	b := New()
	count := 0
	var register func()
	register = func() {
		b.Once("e", func(json.RawMessage, string) {
			count++
			register() // re-subscribe during dispatch
		})
	}
	register()

	b.Emit("e", sampleData, "x")
	b.Emit("e", sampleData, "x")

	if count != 2 {
		t.Errorf("count = %d, want 2 (one fire per Emit, not a runaway chain)", count)
	}
}

// TestOffRemovesAllForName tests Off(name, nil) removing every subscriber.
func TestOffRemovesAllForName(t *testing.T) {
	t.Parallel()

	b := New()
	fired := false
	b.On("e", func(json.RawMessage, string) { fired = true })
	b.Once("e", func(json.RawMessage, string) { fired = true })

	b.Off("e", nil)
	b.Emit("e", sampleData, "x")

	if fired {
		t.Error("handler fired after Off(name, nil)")
	}
}

// TestOffRemovesSpecificHandler tests that Off only removes the matching
// handler, leaving others intact.
func TestOffRemovesSpecificHandler(t *testing.T) {
	t.Parallel()

	b := New()
	var calls []string

	h1 := func(json.RawMessage, string) { calls = append(calls, "h1") }
	h2 := func(json.RawMessage, string) { calls = append(calls, "h2") }

	b.On("e", h1)
	b.On("e", h2)
	b.Off("e", h1)
	b.Emit("e", sampleData, "x")

	if len(calls) != 1 || calls[0] != "h2" {
		t.Errorf("calls = %v, want [h2]", calls)
	}
}

// TestRemoveAllListeners tests clearing by name and clearing everything.
func TestRemoveAllListeners(t *testing.T) {
	t.Parallel()

	b := New()
	b.On("a", func(json.RawMessage, string) {})
	b.On("b", func(json.RawMessage, string) {})

	b.RemoveAllListeners("a")
	if b.HasListeners("a") {
		t.Error("HasListeners(a) = true after RemoveAllListeners(a)")
	}
	if !b.HasListeners("b") {
		t.Error("HasListeners(b) = false, want true")
	}

	b.RemoveAllListeners()
	if b.HasListeners("b") {
		t.Error("HasListeners(b) = true after RemoveAllListeners()")
	}
}

// TestCountAndEventNames exercises the introspection surface.
func TestCountAndEventNames(t *testing.T) {
	t.Parallel()

	b := New()
	b.On("a", func(json.RawMessage, string) {})
	b.On("a", func(json.RawMessage, string) {})
	b.Once("b", func(json.RawMessage, string) {})

	if got := b.Count("a"); got != 2 {
		t.Errorf("Count(a) = %d, want 2", got)
	}
	if got := b.Count("b"); got != 1 {
		t.Errorf("Count(b) = %d, want 1", got)
	}

	names := b.EventNames()
	if len(names) != 2 {
		t.Errorf("EventNames() = %v, want 2 entries", names)
	}
}

// TestPrependInsertsFirst verifies the prepend operation.
func TestPrependInsertsFirst(t *testing.T) {
	t.Parallel()

	b := New()
	var order []string
	b.On("e", func(json.RawMessage, string) { order = append(order, "second") })
	b.Prepend("e", func(json.RawMessage, string) { order = append(order, "first") })

	b.Emit("e", sampleData, "x")

	if len(order) != 2 || order[0] != "first" {
		t.Errorf("order = %v, want [first second]", order)
	}
}

// TestHandlerPanicIsContainedAndReported verifies a panicking handler does
// not prevent other handlers from running and is reported on the
// meta-channel.
func TestHandlerPanicIsContainedAndReported(t *testing.T) {
	t.Parallel()

	b := New()
	var reportedEvent string
	b.OnHandlerError(func(eventName string, err error) {
		reportedEvent = eventName
	})

	ranSecond := false
	b.On("e", func(json.RawMessage, string) { panic("boom") })
	b.On("e", func(json.RawMessage, string) { ranSecond = true })

	b.Emit("e", sampleData, "x")

	if !ranSecond {
		t.Error("second handler did not run after first panicked")
	}
	if reportedEvent != "e" {
		t.Errorf("reportedEvent = %v, want e", reportedEvent)
	}
}

// TestSetMaxListenersWarnsWithoutBlocking ensures exceeding the soft limit
// only warns and still registers the subscriber.
func TestSetMaxListenersWarnsWithoutBlocking(t *testing.T) {
	t.Parallel()

	b := New()
	b.SetMaxListeners(1)

	var warnings int
	b.OnHandlerError(func(string, error) { warnings++ })

	b.On("e", func(json.RawMessage, string) {})
	b.On("e", func(json.RawMessage, string) {})

	if warnings == 0 {
		t.Error("expected a warning when exceeding SetMaxListeners, got none")
	}
	if b.Count("e") != 2 {
		t.Errorf("Count(e) = %d, want 2 (limit is soft, never blocks)", b.Count("e"))
	}
}

package client

import "testing"

func TestHandlerTableSetGetRemove(t *testing.T) {
	t.Parallel()

	tbl := newHandlerTable()

	if _, ok := tbl.get("ping"); ok {
		t.Fatal("get() on empty table ok = true, want false")
	}

	tbl.set("ping", func(data []byte) (any, error) { return "pong", nil })
	fn, ok := tbl.get("ping")
	if !ok {
		t.Fatal("get() after set ok = false, want true")
	}
	result, err := fn(nil)
	if err != nil || result != "pong" {
		t.Errorf("fn() = (%v, %v), want (pong, nil)", result, err)
	}

	tbl.remove("ping")
	if _, ok := tbl.get("ping"); ok {
		t.Error("get() after remove ok = true, want false")
	}
}

func TestHandlerTableSetReplaces(t *testing.T) {
	t.Parallel()

	tbl := newHandlerTable()
	tbl.set("f", func(data []byte) (any, error) { return 1, nil })
	tbl.set("f", func(data []byte) (any, error) { return 2, nil })

	fn, ok := tbl.get("f")
	if !ok {
		t.Fatal("get() ok = false")
	}
	result, _ := fn(nil)
	if result != 2 {
		t.Errorf("result = %v, want 2 (last writer wins)", result)
	}
}

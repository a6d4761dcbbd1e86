package client

import (
	"testing"
	"time"
)

func TestPendingTableResolveDelivers(t *testing.T) {
	t.Parallel()

	tbl := newPendingTable()
	id := tbl.nextRequestID()
	p := tbl.register(id, time.Second, "add")

	tbl.resolve(id, []byte(`{"ok":true}`), nil)

	select {
	case res := <-p.resultCh:
		if res.err != nil {
			t.Fatalf("resultCh err = %v, want nil", res.err)
		}
		if string(res.data) != `{"ok":true}` {
			t.Errorf("resultCh data = %s, want {\"ok\":true}", res.data)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for resolve")
	}
}

func TestPendingTableTimeout(t *testing.T) {
	t.Parallel()

	tbl := newPendingTable()
	id := tbl.nextRequestID()
	p := tbl.register(id, 10*time.Millisecond, "slow")

	select {
	case res := <-p.resultCh:
		if res.err == nil {
			t.Fatal("resultCh err = nil, want timeout error")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for timeout resolution")
	}

	// A late resolve for the same id must be a silent no-op: the entry was
	// already removed by the timeout.
	tbl.resolve(id, []byte("late"), nil)
}

func TestPendingTableResolveUnknownIDIsNoop(t *testing.T) {
	t.Parallel()

	tbl := newPendingTable()
	tbl.resolve("does-not-exist", []byte("x"), nil)
}

func TestPendingTableRejectAll(t *testing.T) {
	t.Parallel()

	tbl := newPendingTable()
	id1 := tbl.nextRequestID()
	id2 := tbl.nextRequestID()
	p1 := tbl.register(id1, time.Minute, "f1")
	p2 := tbl.register(id2, time.Minute, "f2")

	wantErr := testErr("connection closed")
	tbl.rejectAll(wantErr)

	for _, p := range []*pendingRequest{p1, p2} {
		select {
		case res := <-p.resultCh:
			if res.err != wantErr {
				t.Errorf("err = %v, want %v", res.err, wantErr)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for rejectAll")
		}
	}
}

func TestPendingTableNextRequestIDMonotonic(t *testing.T) {
	t.Parallel()

	tbl := newPendingTable()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := tbl.nextRequestID()
		if seen[id] {
			t.Fatalf("duplicate id %q at iteration %d", id, i)
		}
		seen[id] = true
	}
}

type testErr string

func (e testErr) Error() string { return string(e) }

package client

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/doggyhole/doggyhole-go"
)

// pendingRequest is one in-flight request/response correlation, resolved
// exactly once by whichever of the response frame or the timeout fires
// first.
type pendingRequest struct {
	resultCh chan pendingResult
	timer    *time.Timer
	once     sync.Once
}

type pendingResult struct {
	data []byte
	err  error
}

func (p *pendingRequest) resolve(data []byte, err error) {
	p.once.Do(func() {
		if p.timer != nil {
			p.timer.Stop()
		}
		p.resultCh <- pendingResult{data: data, err: err}
	})
}

// pendingTable tracks outstanding Request/RequestClient calls awaiting a
// response frame, grounded on the Java reference client's
// pendingRequests map plus per-request scheduled timeout.
type pendingTable struct {
	nextID  atomic.Int64
	entries sync.Map // id string -> *pendingRequest
}

func newPendingTable() *pendingTable {
	return &pendingTable{}
}

// nextRequestID mints the next correlation id.
func (t *pendingTable) nextRequestID() string {
	n := t.nextID.Add(1)
	return strconv.FormatInt(n, 10)
}

// register records a pending request and arms its timeout, which resolves
// the request with a TimeoutError if no response arrives in time.
func (t *pendingTable) register(id string, timeout time.Duration, functionName string) *pendingRequest {
	p := &pendingRequest{resultCh: make(chan pendingResult, 1)}
	p.timer = time.AfterFunc(timeout, func() {
		t.entries.Delete(id)
		p.resolve(nil, doggyhole.NewTimeoutError("request timed out: "+functionName))
	})
	t.entries.Store(id, p)
	return p
}

// resolve looks up id and completes it with data or err, removing it from
// the table. A miss (already timed out, or unknown id) is a silent no-op.
func (t *pendingTable) resolve(id string, data []byte, err error) {
	v, ok := t.entries.LoadAndDelete(id)
	if !ok {
		return
	}
	v.(*pendingRequest).resolve(data, err)
}

// rejectAll fails every outstanding request with err, used on disconnect.
func (t *pendingTable) rejectAll(err error) {
	t.entries.Range(func(key, value any) bool {
		t.entries.Delete(key)
		value.(*pendingRequest).resolve(nil, err)
		return true
	})
}

package client

import (
	"sync"

	"github.com/doggyhole/doggyhole-go"
)

// handlerTable is the client's local function table consulted when an
// inbound client_request names functionName.
type handlerTable struct {
	mu       sync.RWMutex
	handlers map[string]doggyhole.LocalHandlerFunc
}

func newHandlerTable() *handlerTable {
	return &handlerTable{handlers: make(map[string]doggyhole.LocalHandlerFunc)}
}

func (t *handlerTable) set(functionName string, fn doggyhole.LocalHandlerFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[functionName] = fn
}

func (t *handlerTable) remove(functionName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.handlers, functionName)
}

func (t *handlerTable) get(functionName string) (doggyhole.LocalHandlerFunc, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn, ok := t.handlers[functionName]
	return fn, ok
}

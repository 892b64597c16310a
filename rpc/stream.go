package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"treasuryvault/native/treasury"
)

const writeTimeout = 5 * time.Second

// EventStream fans out committed engine events to connected websocket
// subscribers. It implements treasury.Emitter directly so the engine can
// be wired straight to it (spec.md §4.10's "ordered-after-commit emission"
// is preserved: the engine calls Emit only once the state mutation and
// persistence have already succeeded).
type EventStream struct {
	mu          sync.Mutex
	subscribers map[chan treasury.Event]struct{}
}

// NewEventStream constructs an empty fan-out hub.
func NewEventStream() *EventStream {
	return &EventStream{subscribers: make(map[chan treasury.Event]struct{})}
}

// Emit satisfies treasury.Emitter, broadcasting to every connected
// subscriber without blocking on a slow reader.
func (s *EventStream) Emit(ev treasury.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			// Drop the event for this slow subscriber rather than stalling
			// every other connection or the engine's own call stack.
		}
	}
}

func (s *EventStream) subscribe() chan treasury.Event {
	ch := make(chan treasury.Event, 64)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

func (s *EventStream) unsubscribe(ch chan treasury.Event) {
	s.mu.Lock()
	delete(s.subscribers, ch)
	s.mu.Unlock()
	close(ch)
}

// ServeHTTP upgrades the connection and streams events as JSON text
// frames until the client disconnects.
func (s *EventStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "rpc: stream closed")

	ch := s.subscribe()
	defer s.unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev, ok := <-ch:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = conn.Write(writeCtx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2026 The verto-go-sdk authors
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package calling

import "sync"

// Call event keys emitted through the call's EventEmitter.
const (
	EventStateChange = "statechange"
	EventAnswer      = "answer"
	EventMedia       = "media"
	EventDisplay     = "display"
	EventInfo        = "info"
	EventDestroy     = "destroy"
)

// StateChangeEvent is the payload of an EventStateChange emission.
type StateChangeEvent struct {
	Previous  CallState
	Current   CallState
	CauseCode int
}

// DisplayEvent is the payload of an EventDisplay emission.
type DisplayEvent struct {
	Name   string
	Number string
}

// EventHandler is a callback function for call events
type EventHandler func(data interface{})

// EventEmitter provides a simple event pub/sub system
type EventEmitter struct {
	mu       sync.RWMutex
	handlers map[string][]EventHandler
}

// NewEventEmitter creates a new EventEmitter
func NewEventEmitter() *EventEmitter {
	return &EventEmitter{
		handlers: make(map[string][]EventHandler),
	}
}

// On registers an event handler for the given event
func (e *EventEmitter) On(event string, handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[event] = append(e.handlers[event], handler)
}

// Off removes all handlers for the given event
func (e *EventEmitter) Off(event string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.handlers, event)
}

// Emit calls all handlers registered for the given event
func (e *EventEmitter) Emit(event string, data interface{}) {
	e.mu.RLock()
	handlers := make([]EventHandler, len(e.handlers[event]))
	copy(handlers, e.handlers[event])
	e.mu.RUnlock()

	for _, handler := range handlers {
		handler(data)
	}
}

/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2026 The verto-go-sdk authors
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

// Package conference maintains the client-side view of a conference: the
// ordered member roster replicated through live-array events, and the
// moderation, chat and info channels bound at join time.
package conference

import (
	"encoding/json"
	"strconv"
	"sync"

	"github.com/vertocommunity/verto-go-sdk/vertosdk"
)

// Session is the slice of the transport client the conference layer
// needs. Satisfied by *vertosdk.Client; tests substitute a fake.
type Session interface {
	Publish(method string, params map[string]interface{}, onSuccess vertosdk.ResponseFunc, onError vertosdk.ErrorFunc)
	Subscribe(eventChannel string, handler vertosdk.SubscriptionHandler, userData interface{}) *vertosdk.Subscription
	Unsubscribe(eventChannel string)
	Broadcast(eventChannel string, data interface{})
	Logger() vertosdk.Logger
}

// Live-array action tags.
const (
	actionBoot   = "boot"
	actionAdd    = "add"
	actionModify = "modify"
	actionDelete = "delete"
)

// maxSerialErrors bounds re-bootstrap attempts. After this many serial
// gaps the roster stops resyncing and silently drops out-of-order events.
const maxSerialErrors = 3

// RemovedMember reports a roster removal: the member id and the position
// it held. The wire-reported index wins when it is valid, otherwise the
// locally observed one.
type RemovedMember struct {
	ID    string
	Index int
}

// LiveArrayCallbacks receive roster changes. Values are the raw member
// rows as published by the server.
type LiveArrayCallbacks struct {
	OnBootstrappedMembers func(rows []MemberRow)
	OnAddedMember         func(value json.RawMessage)
	OnModifiedMember      func(value json.RawMessage)
	OnRemovedMember       func(member RemovedMember)
}

// MemberRow is one bootstrap entry: the member id and its row value.
type MemberRow struct {
	ID    string
	Value json.RawMessage
}

// liveArrayEvent is the wire shape of one live-array change.
type liveArrayEvent struct {
	WireSerno int64           `json:"wireSerno"`
	ArrIndex  *int            `json:"arrIndex,omitempty"`
	Name      string          `json:"name"`
	Data      json.RawMessage `json:"data"`
	HashKey   string          `json:"hashKey"`
	Action    string          `json:"action"`
}

// LiveArray replicates the ordered conference roster. Every change
// carries a serial number; a gap triggers a re-bootstrap until the error
// bound is reached, after which the roster gives up resyncing.
type LiveArray struct {
	mu sync.Mutex

	values map[string]json.RawMessage
	order  []string

	lastSerial   int64
	serialErrors int

	session   Session
	channel   string
	name      string
	callbacks LiveArrayCallbacks
	destroyed bool
}

// NewLiveArray subscribes to the live-array channel and requests a
// bootstrap of the current roster.
func NewLiveArray(session Session, channel, conferenceName string, callbacks LiveArrayCallbacks) *LiveArray {
	la := &LiveArray{
		values:    make(map[string]json.RawMessage),
		order:     []string{},
		session:   session,
		channel:   channel,
		name:      conferenceName,
		callbacks: callbacks,
	}
	session.Subscribe(channel, la.handleEvent, la)
	la.bootstrap()
	return la
}

// Destroy unsubscribes the roster channel and marks the array inert.
func (la *LiveArray) Destroy() {
	la.mu.Lock()
	la.destroyed = true
	la.mu.Unlock()
	la.session.Unsubscribe(la.channel)
}

// Members returns the roster in order.
func (la *LiveArray) Members() []MemberRow {
	la.mu.Lock()
	defer la.mu.Unlock()
	rows := make([]MemberRow, 0, len(la.order))
	for _, id := range la.order {
		rows = append(rows, MemberRow{ID: id, Value: la.values[id]})
	}
	return rows
}

func (la *LiveArray) bootstrap() {
	la.session.Broadcast(la.channel, map[string]interface{}{
		"liveArray": map[string]interface{}{
			"command": "bootstrap",
			"context": la.channel,
			"name":    la.name,
		},
	})
}

// insertValue adds an id at the given position. An existing id is left
// exactly as it is; a missing or out-of-range position appends.
// Caller holds la.mu.
func (la *LiveArray) insertValue(id string, value json.RawMessage, insertAt *int) {
	if _, exists := la.values[id]; exists {
		return
	}
	la.values[id] = value
	if insertAt == nil || *insertAt < 0 || *insertAt >= len(la.order) {
		la.order = append(la.order, id)
		return
	}
	at := *insertAt
	la.order = append(la.order, "")
	copy(la.order[at+1:], la.order[at:])
	la.order[at] = id
}

// deleteValue removes an id, reporting whether it was present.
// Caller holds la.mu.
func (la *LiveArray) deleteValue(id string) bool {
	if _, exists := la.values[id]; !exists {
		return false
	}
	delete(la.values, id)
	for i, existing := range la.order {
		if existing == id {
			la.order = append(la.order[:i], la.order[i+1:]...)
			break
		}
	}
	return true
}

// checkSerialNumber verifies the change follows the last applied one. A
// gap rejects the change and re-bootstraps while under the error bound.
// Caller holds la.mu.
func (la *LiveArray) checkSerialNumber(serial int64) bool {
	if la.lastSerial > 0 && serial != la.lastSerial+1 {
		la.serialErrors++
		if la.serialErrors < maxSerialErrors {
			la.bootstrap()
		}
		return false
	}
	if serial > 0 {
		la.lastSerial = serial
	}
	return true
}

// memberID picks the roster key: the hash key when present, otherwise the
// serial number as a synthetic id.
func memberID(hashKey string, serial int64) string {
	if hashKey != "" {
		return hashKey
	}
	return strconv.FormatInt(serial, 10)
}

func (la *LiveArray) handleEvent(params vertosdk.EventParams, _ interface{}) {
	if params.Data == nil {
		return
	}
	var ev liveArrayEvent
	if err := json.Unmarshal(params.Data, &ev); err != nil {
		la.session.Logger().Printf("conference: undecodable live array event: %v", err)
		return
	}
	if ev.Name != la.name {
		return
	}

	switch ev.Action {
	case actionBoot:
		la.handleBoot(&ev)
	case actionAdd:
		la.handleAdd(&ev)
	case actionModify:
		if la.hasTarget(&ev) {
			la.handleModify(&ev)
		}
	case actionDelete:
		if la.hasTarget(&ev) {
			la.handleDelete(&ev)
		}
	default:
		la.session.Logger().Printf("conference: ignoring live array action %q", ev.Action)
	}
}

// hasTarget reports whether a modify or delete names a member, either by
// hash key or by a positive index.
func (la *LiveArray) hasTarget(ev *liveArrayEvent) bool {
	return ev.HashKey != "" || (ev.ArrIndex != nil && *ev.ArrIndex != 0)
}

func (la *LiveArray) handleBoot(ev *liveArrayEvent) {
	la.mu.Lock()
	if !la.checkSerialNumber(ev.WireSerno) {
		la.mu.Unlock()
		return
	}
	var pairs [][]json.RawMessage
	if err := json.Unmarshal(ev.Data, &pairs); err != nil {
		la.mu.Unlock()
		la.session.Logger().Printf("conference: undecodable bootstrap payload: %v", err)
		return
	}
	rows := make([]MemberRow, 0, len(pairs))
	for _, pair := range pairs {
		if len(pair) < 2 {
			continue
		}
		var id string
		if err := json.Unmarshal(pair[0], &id); err != nil {
			continue
		}
		la.insertValue(id, pair[1], nil)
		rows = append(rows, MemberRow{ID: id, Value: pair[1]})
	}
	la.mu.Unlock()

	if la.callbacks.OnBootstrappedMembers != nil {
		la.callbacks.OnBootstrappedMembers(rows)
	}
}

func (la *LiveArray) handleAdd(ev *liveArrayEvent) {
	la.mu.Lock()
	if !la.checkSerialNumber(ev.WireSerno) {
		la.mu.Unlock()
		return
	}
	la.insertValue(memberID(ev.HashKey, ev.WireSerno), ev.Data, ev.ArrIndex)
	la.mu.Unlock()

	if la.callbacks.OnAddedMember != nil {
		la.callbacks.OnAddedMember(ev.Data)
	}
}

func (la *LiveArray) handleModify(ev *liveArrayEvent) {
	la.mu.Lock()
	if !la.checkSerialNumber(ev.WireSerno) {
		la.mu.Unlock()
		return
	}
	la.insertValue(memberID(ev.HashKey, ev.WireSerno), ev.Data, ev.ArrIndex)
	la.mu.Unlock()

	if la.callbacks.OnModifiedMember != nil {
		la.callbacks.OnModifiedMember(ev.Data)
	}
}

func (la *LiveArray) handleDelete(ev *liveArrayEvent) {
	la.mu.Lock()
	if !la.checkSerialNumber(ev.WireSerno) {
		la.mu.Unlock()
		return
	}
	id := memberID(ev.HashKey, ev.WireSerno)
	indexIsInvalid := ev.ArrIndex == nil || *ev.ArrIndex < 0
	localIndex := -1
	for i, existing := range la.order {
		if existing == id {
			localIndex = i
			break
		}
	}
	changed := la.deleteValue(id)
	la.mu.Unlock()

	if !changed {
		return
	}
	index := localIndex
	if !indexIsInvalid {
		index = *ev.ArrIndex
	}
	if la.callbacks.OnRemovedMember != nil {
		la.callbacks.OnRemovedMember(RemovedMember{ID: ev.HashKey, Index: index})
	}
}

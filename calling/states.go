/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2026 The verto-go-sdk authors
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package calling

// CallState is a call lifecycle state. The ordinal order matters: hangup
// decisions compare states by position in the lifecycle.
type CallState int

const (
	StateNew CallState = iota
	StateRequesting
	StateTrying
	StateRecovering
	StateRinging
	StateAnswering
	StateEarly
	StateActive
	StateHeld
	StateHangup
	StateDestroy
	StatePurge
)

var stateNames = [...]string{
	"new",
	"requesting",
	"trying",
	"recovering",
	"ringing",
	"answering",
	"early",
	"active",
	"held",
	"hangup",
	"destroy",
	"purge",
}

// String returns the wire-level state name.
func (s CallState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Direction distinguishes who initiated the call.
type Direction int

const (
	DirectionInbound Direction = iota
	DirectionOutbound
)

// String returns the direction name.
func (d Direction) String() string {
	if d == DirectionOutbound {
		return "outbound"
	}
	return "inbound"
}

// legalTransitions is the call lifecycle adjacency table.
var legalTransitions = map[CallState]map[CallState]bool{
	StateNew: {
		StateRequesting: true,
		StateRecovering: true,
		StateRinging:    true,
		StateDestroy:    true,
		StateAnswering:  true,
		StateHangup:     true,
	},
	StateRequesting: {
		StateTrying: true,
		StateHangup: true,
		StateActive: true,
	},
	StateRecovering: {
		StateAnswering: true,
		StateHangup:    true,
	},
	StateTrying: {
		StateActive: true,
		StateEarly:  true,
		StateHangup: true,
	},
	StateRinging: {
		StateAnswering: true,
		StateHangup:    true,
	},
	StateAnswering: {
		StateActive: true,
		StateHangup: true,
	},
	StateActive: {
		StateAnswering:  true,
		StateRequesting: true,
		StateHangup:     true,
		StateHeld:       true,
	},
	StateHeld: {
		StateHangup: true,
		StateActive: true,
	},
	StateEarly: {
		StateHangup: true,
		StateActive: true,
	},
	StateHangup: {
		StateDestroy: true,
	},
	StateDestroy: {},
	StatePurge: {
		StateDestroy: true,
	},
}

// CanTransition reports whether the lifecycle permits moving from one
// state to another. Entering purge is always permitted.
func CanTransition(from, to CallState) bool {
	if to == StatePurge {
		return true
	}
	return legalTransitions[from][to]
}

/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2026 The verto-go-sdk authors
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package vertosdk

import "encoding/json"

// EventParams is the parameter object of a server-initiated request. Only
// the fields the client routes on are decoded; Raw preserves the complete
// object for consumers that need more.
type EventParams struct {
	EventType        string          `json:"eventType,omitempty"`
	EventChannel     string          `json:"eventChannel,omitempty"`
	CallID           string          `json:"callID,omitempty"`
	SDP              string          `json:"sdp,omitempty"`
	CallerIDName     string          `json:"caller_id_name,omitempty"`
	CallerIDNumber   string          `json:"caller_id_number,omitempty"`
	CalleeIDName     string          `json:"callee_id_name,omitempty"`
	CalleeIDNumber   string          `json:"callee_id_number,omitempty"`
	DisplayName      string          `json:"display_name,omitempty"`
	DisplayNumber    string          `json:"display_number,omitempty"`
	DisplayDirection string          `json:"display_direction,omitempty"`
	Cause            string          `json:"cause,omitempty"`
	CauseCode        int             `json:"causeCode,omitempty"`
	PvtData          *PvtData        `json:"pvtData,omitempty"`
	Data             json.RawMessage `json:"data,omitempty"`

	// Raw is the undecoded params object of the frame this event arrived
	// in. Populated by the client, never sent.
	Raw json.RawMessage `json:"-"`
}

// Private-data actions announced on a session's own channel.
const (
	ActionConferenceJoin = "conference-liveArray-join"
	ActionConferencePart = "conference-liveArray-part"
)

// PvtData is the payload of a channelPvtData event, announcing conference
// membership changes for this session.
type PvtData struct {
	Action             string `json:"action"`
	CallID             string `json:"callID,omitempty"`
	ConferenceMemberID string `json:"conferenceMemberID,omitempty"`
	Role               string `json:"role,omitempty"`
	LaChannel          string `json:"laChannel,omitempty"`
	LaName             string `json:"laName,omitempty"`
	ChatChannel        string `json:"chatChannel,omitempty"`
	InfoChannel        string `json:"infoChannel,omitempty"`
	ModChannel         string `json:"modChannel,omitempty"`
}

// SubscriptionHandler consumes events published on a subscribed channel.
type SubscriptionHandler func(params EventParams, userData interface{})

// Subscription tracks one channel subscription. Ready flips to true when
// the server acknowledges the channel; events arriving before that are
// dropped.
type Subscription struct {
	EventChannel string
	Handler      SubscriptionHandler
	UserData     interface{}
	Ready        bool
}

// StateChange describes one call state transition as reported through
// Callbacks.OnCallStateChange.
type StateChange struct {
	Previous  string
	Current   string
	CauseCode int
}

// CallHandle is the client's view of a call registered in its call table.
// The calling package provides the concrete implementation.
type CallHandle interface {
	ID() string
	HandleBye(params EventParams)
	HandleAnswer(sdp string)
	HandleMedia(sdp string)
	HandleDisplay(name, number string)
	HandleInfo(params EventParams)
	HangupWithCause(cause string, causeCode int)
	Purge()
}

// IncomingCallFactory builds an inbound call for an invite or attach that
// names an unknown call id. The factory registers the call with the client
// as a construction side effect; a nil return means the call could not be
// created and the event is dropped.
type IncomingCallFactory func(method string, params EventParams) CallHandle

// PrivateDataHandler consumes channelPvtData events.
type PrivateDataHandler func(params EventParams)

// EventMessage is a server-initiated request handed to a MessageHandler.
type EventMessage struct {
	ID     int64
	Method string
	Params EventParams
}

// MessageHandler routes one server-initiated request. A non-nil return
// value is echoed back to the server as the result of the request when the
// request carried an id.
type MessageHandler func(msg *EventMessage) interface{}

// Callbacks collects the application-level hooks of a session. Every field
// is optional; unset handlers are harmless.
type Callbacks struct {
	// OnClientReady fires when the server reports verto.clientReady.
	OnClientReady func(params EventParams)
	// OnClientClose fires when the socket closes for any reason.
	OnClientClose func()
	// OnError receives transport and protocol level failures.
	OnError func(err error)
	// OnInfo receives verto.info events not addressed to a call.
	OnInfo func(params EventParams)
	// OnDisplay fires when a call's remote display identity changes.
	OnDisplay func(callID, name, number string)
	// OnCallStateChange fires on every call state transition.
	OnCallStateChange func(change StateChange, callID string)
	// OnPrivateEvent receives events for this session's own channel or a
	// call channel that has no explicit subscription.
	OnPrivateEvent func(params EventParams)
	// OnEvent is the fallback for subscribed channels without a handler.
	OnEvent func(params EventParams, userData interface{})
	// OnNewCall announces an inbound call.
	OnNewCall func(call CallHandle)
	// OnWebSocketLoginSuccess fires after a credentialed re-login succeeds.
	OnWebSocketLoginSuccess func()
	// OnWebSocketLoginError receives the original auth error when the
	// credentialed re-login also fails.
	OnWebSocketLoginError func(err *RPCError)
	// OnPeerStreaming receives the remote media stream of a call.
	OnPeerStreaming func(stream interface{})
	// OnPeerStreamingError receives media setup failures.
	OnPeerStreamingError func(err error)
}

// normalize returns a copy with no-op defaults filled in for the handlers
// the client invokes unconditionally. OnError and OnEvent stay nil when
// unset; their absence changes routing.
func (cb *Callbacks) normalize() *Callbacks {
	out := &Callbacks{}
	if cb != nil {
		*out = *cb
	}
	if out.OnClientReady == nil {
		out.OnClientReady = func(EventParams) {}
	}
	if out.OnClientClose == nil {
		out.OnClientClose = func() {}
	}
	if out.OnInfo == nil {
		out.OnInfo = func(EventParams) {}
	}
	if out.OnDisplay == nil {
		out.OnDisplay = func(string, string, string) {}
	}
	if out.OnCallStateChange == nil {
		out.OnCallStateChange = func(StateChange, string) {}
	}
	if out.OnPrivateEvent == nil {
		out.OnPrivateEvent = func(EventParams) {}
	}
	if out.OnNewCall == nil {
		out.OnNewCall = func(CallHandle) {}
	}
	if out.OnWebSocketLoginSuccess == nil {
		out.OnWebSocketLoginSuccess = func() {}
	}
	if out.OnWebSocketLoginError == nil {
		out.OnWebSocketLoginError = func(*RPCError) {}
	}
	if out.OnPeerStreaming == nil {
		out.OnPeerStreaming = func(interface{}) {}
	}
	if out.OnPeerStreamingError == nil {
		out.OnPeerStreamingError = func(error) {}
	}
	return out
}

/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2026 The verto-go-sdk authors
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

// Package calling implements the per-call state machine layered on a
// Verto session: lifecycle transitions with their signaling side effects,
// negotiation plumbing into an RTC engine, and in-call commands.
package calling

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/vertocommunity/verto-go-sdk/vertosdk"
)

// Session is the slice of the transport client a call needs. Satisfied by
// *vertosdk.Client; tests substitute a fake.
type Session interface {
	Publish(method string, params map[string]interface{}, onSuccess vertosdk.ResponseFunc, onError vertosdk.ErrorFunc)
	RegisterCall(call vertosdk.CallHandle)
	UnregisterCall(callID string)
	Callbacks() *vertosdk.Callbacks
	Config() *vertosdk.Config
	Logger() vertosdk.Logger
}

// CallParams is the dialog parameter bag of one call. It is sent, minus a
// few suppressed keys, as dialogParams with every call-scoped request.
type CallParams struct {
	CallID               string               `json:"callID"`
	DestinationNumber    string               `json:"destination_number,omitempty"`
	CallerIDName         string               `json:"caller_id_name,omitempty"`
	CallerIDNumber       string               `json:"caller_id_number,omitempty"`
	CalleeIDName         string               `json:"callee_id_name,omitempty"`
	CalleeIDNumber       string               `json:"callee_id_number,omitempty"`
	RemoteCallerIDName   string               `json:"remote_caller_id_name,omitempty"`
	RemoteCallerIDNumber string               `json:"remote_caller_id_number,omitempty"`
	DisplayDirection     string               `json:"display_direction,omitempty"`
	Login                string               `json:"login,omitempty"`
	SDP                  string               `json:"sdp,omitempty"`
	UseVideo             bool                 `json:"useVideo,omitempty"`
	UseStereo            bool                 `json:"useStereo,omitempty"`
	ScreenShare          bool                 `json:"screenShare,omitempty"`
	Attach               bool                 `json:"attach,omitempty"`
	UseCamera            string               `json:"useCamera,omitempty"`
	UseMic               string               `json:"useMic,omitempty"`
	UseSpeak             string               `json:"useSpeak,omitempty"`
	VideoParams          *vertosdk.VideoParams `json:"videoParams,omitempty"`
}

// ParamsFromEvent builds the parameter bag of an inbound call from an
// invite or attach event. Video and stereo are detected from the offer.
func ParamsFromEvent(params vertosdk.EventParams) *CallParams {
	return &CallParams{
		CallID:           params.CallID,
		CallerIDName:     params.CallerIDName,
		CallerIDNumber:   params.CallerIDNumber,
		CalleeIDName:     params.CalleeIDName,
		CalleeIDNumber:   params.CalleeIDNumber,
		DisplayDirection: params.DisplayDirection,
		SDP:              params.SDP,
		UseVideo:         strings.Contains(params.SDP, "m=video"),
		UseStereo:        strings.Contains(params.SDP, "stereo=1"),
	}
}

// HangupParams names the clearing cause of a hangup.
type HangupParams struct {
	Cause     string
	CauseCode int
}

// Call is one dialog: its parameter bag, previous and current lifecycle
// state, and the RTC engine negotiating its media.
type Call struct {
	mu sync.Mutex

	session   Session
	direction Direction
	params    *CallParams

	state     CallState
	lastState CallState

	cause     string
	causeCode int

	rtc RTCEngine

	answered  bool
	gotEarly  bool
	gotAnswer bool

	// Emitter fans call events out to local listeners; state changes are
	// also delivered through the session callbacks.
	Emitter *EventEmitter
}

// NewCall builds a call, registers it in the session call table and wires
// its RTC engine. An inbound attach recovers the dialog: it enters the
// recovering state and answers on its own.
func NewCall(session Session, direction Direction, params *CallParams, factory EngineFactory) (*Call, error) {
	if session == nil {
		return nil, fmt.Errorf("session cannot be nil")
	}
	if params == nil {
		params = &CallParams{}
	}
	if factory == nil {
		return nil, fmt.Errorf("engine factory cannot be nil")
	}
	cfg := session.Config()
	if params.CallID == "" {
		params.CallID = uuid.New().String()
	}
	if params.Login == "" {
		params.Login = cfg.Login
	}
	if params.UseMic == "" {
		params.UseMic = cfg.UseMic
	}
	if params.UseSpeak == "" {
		params.UseSpeak = cfg.UseSpeak
	}
	if params.UseCamera == "" && !params.ScreenShare {
		params.UseCamera = cfg.UseCamera
	}
	if params.VideoParams == nil {
		params.VideoParams = cfg.VideoParams
	}

	if direction == DirectionInbound {
		if params.DisplayDirection == "outbound" {
			params.RemoteCallerIDName = orDefault(params.CallerIDName, "NOBODY")
			params.RemoteCallerIDNumber = orDefault(params.CallerIDNumber, "UNKNOWN")
		} else {
			params.RemoteCallerIDName = orDefault(params.CalleeIDName, "NOBODY")
			params.RemoteCallerIDNumber = orDefault(params.CalleeIDNumber, "UNKNOWN")
		}
	} else {
		params.RemoteCallerIDName = "OUTBOUND CALL"
		params.RemoteCallerIDNumber = params.DestinationNumber
	}

	c := &Call{
		session:   session,
		direction: direction,
		params:    params,
		state:     StateNew,
		lastState: StateNew,
		Emitter:   NewEventEmitter(),
	}

	engine, err := factory(RTCOptions{
		UseVideo:    params.UseVideo,
		UseStereo:   params.UseStereo,
		ScreenShare: params.ScreenShare,
		UseCamera:   params.UseCamera,
		UseMic:      params.UseMic,
		UseSpeak:    params.UseSpeak,
		VideoParams: params.VideoParams,
		AudioParams: cfg.AudioParams,
		ICEServers:  cfg.ICEServers,
	}, RTCCallbacks{
		OnICESDP: c.onICESDP,
		OnPeerStreaming: func(stream interface{}) {
			if cb := session.Callbacks(); cb != nil && cb.OnPeerStreaming != nil {
				cb.OnPeerStreaming(stream)
			}
		},
		OnPeerStreamingError: func(err error) {
			if cb := session.Callbacks(); cb != nil && cb.OnPeerStreamingError != nil {
				cb.OnPeerStreamingError(err)
			}
			c.Hangup(&HangupParams{Cause: "Device or Permission Error", CauseCode: 604})
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create rtc engine: %w", err)
	}
	c.rtc = engine

	session.RegisterCall(c)

	if direction == DirectionInbound && params.Attach {
		c.SetState(StateRecovering)
		c.Answer()
	}
	return c, nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// ID returns the call id.
func (c *Call) ID() string { return c.params.CallID }

// Direction returns who initiated the call.
func (c *Call) Direction() Direction { return c.direction }

// State returns the current lifecycle state.
func (c *Call) State() CallState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RTC returns the call's media engine.
func (c *Call) RTC() RTCEngine { return c.rtc }

// RemoteCallerIDName returns the derived remote display name.
func (c *Call) RemoteCallerIDName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params.RemoteCallerIDName
}

// RemoteCallerIDNumber returns the derived remote display number.
func (c *Call) RemoteCallerIDNumber() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params.RemoteCallerIDNumber
}

// String returns a diagnostic form of the call.
func (c *Call) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("call %s (%s, %s, %s -> %s)",
		c.params.CallID, c.direction, c.state,
		c.params.CallerIDNumber, c.params.DestinationNumber)
}

// SetState drives the lifecycle. An illegal or same-state transition is
// logged and forces a hangup; entering purge is always permitted. Entry
// effects run after the transition is published: hangup signals the
// remote side when the dialog got past requesting, then both hangup and
// purge fall through to destroy, which unregisters the call and stops
// the engine.
func (c *Call) SetState(state CallState) bool {
	c.mu.Lock()
	if c.state == state || !CanTransition(c.state, state) {
		current := c.state
		c.mu.Unlock()
		c.session.Logger().Printf("calling: invalid state change from %s to %s on %s", current, state, c.ID())
		c.Hangup(nil)
		return false
	}
	c.lastState = c.state
	c.state = state
	previous := c.lastState
	causeCode := c.causeCode
	cause := c.cause
	screenShare := c.params.ScreenShare
	c.mu.Unlock()

	if cb := c.session.Callbacks(); cb != nil && cb.OnCallStateChange != nil {
		cb.OnCallStateChange(vertosdk.StateChange{
			Previous:  previous.String(),
			Current:   state.String(),
			CauseCode: causeCode,
		}, c.ID())
	}
	c.Emitter.Emit(EventStateChange, StateChangeEvent{Previous: previous, Current: state, CauseCode: causeCode})

	switch state {
	case StatePurge:
		c.SetState(StateDestroy)
	case StateHangup:
		if previous > StateRequesting && previous < StateHangup {
			c.broadcastMethod(vertosdk.MethodBye, broadcastOptions{params: map[string]interface{}{
				"cause":     cause,
				"causeCode": causeCode,
			}})
		}
		c.SetState(StateDestroy)
	case StateDestroy:
		c.session.UnregisterCall(c.ID())
		if screenShare {
			c.rtc.StopPeer()
		} else {
			c.rtc.Stop()
		}
		c.Emitter.Emit(EventDestroy, nil)
	}
	return true
}

type broadcastOptions struct {
	params         map[string]interface{}
	noDialogParams bool
}

// broadcastMethod publishes a call-scoped request: the method params plus
// the dialog bag. The local SDP only travels with invite and attach; the
// call id is dropped when suppressed.
func (c *Call) broadcastMethod(method string, options broadcastOptions) {
	c.mu.Lock()
	encoded, err := json.Marshal(c.params)
	c.mu.Unlock()
	if err != nil {
		c.session.Logger().Printf("calling: encode dialog params for %s: %v", method, err)
		return
	}
	var dialogParams map[string]interface{}
	if err := json.Unmarshal(encoded, &dialogParams); err != nil {
		c.session.Logger().Printf("calling: decode dialog params for %s: %v", method, err)
		return
	}
	if method != vertosdk.MethodInvite && method != vertosdk.MethodAttach {
		delete(dialogParams, "sdp")
	}
	if options.noDialogParams {
		delete(dialogParams, "callID")
	}

	params := map[string]interface{}{}
	for k, v := range options.params {
		params[k] = v
	}
	params["dialogParams"] = dialogParams

	c.session.Publish(method, params,
		func(result json.RawMessage) { c.handleMethodResponse(method, true, result) },
		func(rpcErr *RPCError) { c.handleMethodResponse(method, false, rpcErr.Data) })
}

// RPCError aliases the session error type for broadcast continuations.
type RPCError = vertosdk.RPCError

// handleMethodResponse applies the server's verdict on a call-scoped
// request to the lifecycle.
func (c *Call) handleMethodResponse(method string, success bool, response json.RawMessage) {
	switch method {
	case vertosdk.MethodAnswer, vertosdk.MethodAttach:
		if success {
			c.SetState(StateActive)
		} else {
			c.Hangup(nil)
		}
	case vertosdk.MethodInvite:
		if success {
			c.SetState(StateTrying)
		} else {
			c.SetState(StateDestroy)
		}
	case vertosdk.MethodBye:
		c.Hangup(nil)
	case vertosdk.MethodModify:
		if !success {
			return
		}
		var reply struct {
			HoldState string `json:"holdState"`
		}
		if err := json.Unmarshal(response, &reply); err != nil {
			return
		}
		c.mu.Lock()
		state := c.state
		c.mu.Unlock()
		switch {
		case reply.HoldState == "held" && state != StateHeld:
			c.SetState(StateHeld)
		case reply.HoldState == "active" && state != StateActive:
			c.SetState(StateActive)
		}
	}
}

// onICESDP fires when the engine's local description is complete. The
// request it triggers depends on who is offering: an outbound call
// invites, or re-attaches when it was already active; the answering side
// sends answer, or attach when recovering a dialog.
func (c *Call) onICESDP(sdp string) {
	c.mu.Lock()
	state := c.state
	if state == StateRequesting || state == StateAnswering || state == StateActive {
		c.mu.Unlock()
		c.session.Logger().Printf("calling: ignoring negotiated description in state %s on %s", state, c.ID())
		return
	}
	c.params.SDP = sdp
	attach := c.params.Attach
	c.mu.Unlock()

	if c.direction == DirectionOutbound {
		if state == StateActive {
			c.SetState(StateRequesting)
			c.broadcastMethod(vertosdk.MethodAttach, broadcastOptions{})
		} else {
			c.SetState(StateRequesting)
			c.broadcastMethod(vertosdk.MethodInvite, broadcastOptions{})
		}
		return
	}
	c.SetState(StateAnswering)
	if attach {
		c.broadcastMethod(vertosdk.MethodAttach, broadcastOptions{})
	} else {
		c.broadcastMethod(vertosdk.MethodAnswer, broadcastOptions{})
	}
}

// Invite starts the outbound offer path.
func (c *Call) Invite() error {
	return c.rtc.InvitePeer()
}

// Answer accepts the call. Answering twice is harmless.
func (c *Call) Answer() {
	c.mu.Lock()
	if c.answered {
		c.mu.Unlock()
		return
	}
	c.answered = true
	remoteSDP := c.params.SDP
	c.mu.Unlock()

	if err := c.rtc.CreateAnswer(remoteSDP); err != nil {
		if cb := c.session.Callbacks(); cb != nil && cb.OnPeerStreamingError != nil {
			cb.OnPeerStreamingError(err)
		}
		c.Hangup(&HangupParams{Cause: "Device or Permission Error", CauseCode: 604})
	}
}

// HandleAnswer processes the remote answer. An answer after early media
// has already primed the engine only moves the state on.
func (c *Call) HandleAnswer(sdp string) {
	c.mu.Lock()
	c.gotAnswer = true
	state := c.state
	gotEarly := c.gotEarly
	c.mu.Unlock()

	c.Emitter.Emit(EventAnswer, sdp)

	if state >= StateActive {
		return
	}
	if state >= StateEarly {
		c.SetState(StateActive)
		return
	}
	if gotEarly {
		return
	}
	c.rtc.Answer(sdp,
		func() { c.SetState(StateActive) },
		func(err error) {
			c.session.Logger().Printf("calling: apply answer on %s: %v", c.ID(), err)
			c.Hangup(&HangupParams{Cause: "Device or Permission Error", CauseCode: 604})
		})
}

// HandleMedia processes an early-media description arriving before the
// answer.
func (c *Call) HandleMedia(sdp string) {
	c.mu.Lock()
	if c.state >= StateEarly {
		c.mu.Unlock()
		return
	}
	c.gotEarly = true
	c.mu.Unlock()

	c.Emitter.Emit(EventMedia, sdp)

	c.rtc.Answer(sdp,
		func() {
			c.SetState(StateEarly)
			c.mu.Lock()
			gotAnswer := c.gotAnswer
			c.mu.Unlock()
			if gotAnswer {
				c.SetState(StateActive)
			}
		},
		func(err error) {
			c.session.Logger().Printf("calling: apply early media on %s: %v", c.ID(), err)
			c.Hangup(&HangupParams{Cause: "Device or Permission Error", CauseCode: 604})
		})
}

// HandleBye processes the remote hangup.
func (c *Call) HandleBye(params vertosdk.EventParams) {
	c.Hangup(&HangupParams{Cause: params.Cause, CauseCode: params.CauseCode})
}

// HandleDisplay updates the remote identity from a display event.
func (c *Call) HandleDisplay(name, number string) {
	c.mu.Lock()
	if name != "" {
		c.params.RemoteCallerIDName = name
	}
	if number != "" {
		c.params.RemoteCallerIDNumber = number
	}
	c.mu.Unlock()
	if cb := c.session.Callbacks(); cb != nil && cb.OnDisplay != nil {
		cb.OnDisplay(c.ID(), name, number)
	}
	c.Emitter.Emit(EventDisplay, DisplayEvent{Name: name, Number: number})
}

// HandleInfo forwards a call-addressed info event.
func (c *Call) HandleInfo(params vertosdk.EventParams) {
	if cb := c.session.Callbacks(); cb != nil && cb.OnInfo != nil {
		cb.OnInfo(params)
	}
	c.Emitter.Emit(EventInfo, params)
}

// Hangup ends the call. A nil params keeps the current cause, falling
// back to normal clearing when none was recorded.
func (c *Call) Hangup(params *HangupParams) {
	c.mu.Lock()
	if params != nil {
		if params.Cause != "" {
			c.cause = params.Cause
		}
		if params.CauseCode != 0 {
			c.causeCode = params.CauseCode
		}
	}
	if c.cause == "" && c.causeCode == 0 {
		c.cause = "NORMAL_CLEARING"
		c.causeCode = 16
	}
	state := c.state
	c.mu.Unlock()

	if state >= StateNew && state < StateHangup {
		c.SetState(StateHangup)
	}
}

// HangupWithCause ends the call with an explicit clearing cause. Zero
// values keep the defaults.
func (c *Call) HangupWithCause(cause string, causeCode int) {
	if cause == "" && causeCode == 0 {
		c.Hangup(nil)
		return
	}
	c.Hangup(&HangupParams{Cause: cause, CauseCode: causeCode})
}

// Purge force-drops the call without remote signaling.
func (c *Call) Purge() {
	c.SetState(StatePurge)
}

// SendDigit sends one DTMF digit.
func (c *Call) SendDigit(digit string) {
	c.broadcastMethod(vertosdk.MethodInfo, broadcastOptions{params: map[string]interface{}{"dtmf": digit}})
}

// SendRealTimeText streams a real-time text fragment. The dialog bag
// travels without the call id.
func (c *Call) SendRealTimeText(code, chars string) {
	c.broadcastMethod(vertosdk.MethodInfo, broadcastOptions{
		params: map[string]interface{}{
			"txt": map[string]interface{}{"code": code, "chars": chars},
		},
		noDialogParams: true,
	})
}

// SendMessageTo delivers a message to another endpoint over the dialog.
func (c *Call) SendMessageTo(to, body string) {
	c.mu.Lock()
	from := c.params.Login
	c.mu.Unlock()
	c.broadcastMethod(vertosdk.MethodInfo, broadcastOptions{params: map[string]interface{}{
		"msg": map[string]interface{}{"from": from, "to": to, "body": body},
	}})
}

// TransferTo transfers the call to another destination.
func (c *Call) TransferTo(destination string) {
	c.broadcastMethod(vertosdk.MethodModify, broadcastOptions{params: map[string]interface{}{
		"action":      "transfer",
		"destination": destination,
	}})
}

// Hold parks the call; the held state follows the server's reply.
func (c *Call) Hold() {
	c.broadcastMethod(vertosdk.MethodModify, broadcastOptions{params: map[string]interface{}{"action": "hold"}})
}

// Unhold resumes the call.
func (c *Call) Unhold() {
	c.broadcastMethod(vertosdk.MethodModify, broadcastOptions{params: map[string]interface{}{"action": "unhold"}})
}

// ToggleHold flips the hold state.
func (c *Call) ToggleHold() {
	c.broadcastMethod(vertosdk.MethodModify, broadcastOptions{params: map[string]interface{}{"action": "toggleHold"}})
}

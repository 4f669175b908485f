/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2026 The verto-go-sdk authors
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

// Package verto is the top-level entry point of the SDK. It wires the
// transport client, the call state machine, the conference layer and the
// default media engine into one client.
package verto

import (
	"sync"

	"github.com/vertocommunity/verto-go-sdk/calling"
	"github.com/vertocommunity/verto-go-sdk/conference"
	"github.com/vertocommunity/verto-go-sdk/media"
	"github.com/vertocommunity/verto-go-sdk/vertosdk"
)

// defaultCallerName is used when an outbound call names no caller.
const defaultCallerName = "Verto"

// VertoClient is the assembled SDK client.
type VertoClient struct {
	core *vertosdk.Client

	mu            sync.Mutex
	conf          *conference.Conference
	confCallbacks *conference.Callbacks
	engineFactory calling.EngineFactory
}

// NewClient builds a client from the session configuration. Conference
// callbacks may be nil when conferences are not used. Connect starts the
// session.
func NewClient(config *vertosdk.Config, callbacks *vertosdk.Callbacks, confCallbacks *conference.Callbacks) (*VertoClient, error) {
	core, err := vertosdk.New(config, callbacks)
	if err != nil {
		return nil, err
	}
	if confCallbacks == nil {
		confCallbacks = &conference.Callbacks{}
	}
	v := &VertoClient{
		core:          core,
		confCallbacks: confCallbacks,
		engineFactory: media.NewEngine,
	}
	core.SetIncomingCallFactory(v.buildIncomingCall)
	core.SetPrivateDataHandler(v.handlePrivateData)
	return v, nil
}

// SetEngineFactory replaces the media engine used for new calls. Must be
// called before any call exists.
func (v *VertoClient) SetEngineFactory(factory calling.EngineFactory) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if factory != nil {
		v.engineFactory = factory
	}
}

// Core returns the underlying session client.
func (v *VertoClient) Core() *vertosdk.Client { return v.core }

// Connect dials the session socket.
func (v *VertoClient) Connect() error {
	return v.core.Connect()
}

// buildIncomingCall materializes an inbound invite or attach. An attach
// recovers a dialog that outlived a previous session.
func (v *VertoClient) buildIncomingCall(method string, params vertosdk.EventParams) vertosdk.CallHandle {
	v.mu.Lock()
	factory := v.engineFactory
	v.mu.Unlock()

	callParams := calling.ParamsFromEvent(params)
	callParams.Attach = method == vertosdk.MethodAttach
	call, err := calling.NewCall(v.core, calling.DirectionInbound, callParams, factory)
	if err != nil {
		v.core.Logger().Printf("verto: could not build inbound call %s: %v", params.CallID, err)
		return nil
	}
	return call
}

// handlePrivateData routes conference membership announcements. A join
// while already joined is ignored, as is a part without a conference.
func (v *VertoClient) handlePrivateData(params vertosdk.EventParams) {
	pvt := params.PvtData
	if pvt == nil {
		v.core.Logger().Printf("verto: private data event without pvtData")
		return
	}
	switch pvt.Action {
	case vertosdk.ActionConferenceJoin:
		v.mu.Lock()
		if v.conf != nil {
			v.mu.Unlock()
			v.core.Logger().Printf("verto: ignoring doubled conference join for %s", pvt.LaName)
			return
		}
		v.mu.Unlock()
		conf, err := conference.Join(v.core, pvt, v.confCallbacks)
		if err != nil {
			v.core.Logger().Printf("verto: could not join conference: %v", err)
			return
		}
		v.mu.Lock()
		v.conf = conf
		v.mu.Unlock()
		if v.confCallbacks.OnReady != nil {
			v.confCallbacks.OnReady(conf)
		}
	case vertosdk.ActionConferencePart:
		v.mu.Lock()
		conf := v.conf
		v.conf = nil
		v.mu.Unlock()
		if conf == nil {
			v.core.Logger().Printf("verto: ignoring conference part without a conference")
			return
		}
		conf.Destroy()
		if v.confCallbacks.OnDestroyed != nil {
			v.confCallbacks.OnDestroyed(conf)
		}
	default:
		v.core.Logger().Printf("verto: ignoring private data action %q", pvt.Action)
	}
}

// Conference returns the joined conference, or nil.
func (v *VertoClient) Conference() *conference.Conference {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.conf
}

// CallOptions name the endpoints of an outbound call.
type CallOptions struct {
	To         string
	From       string
	CallerName string
	UseVideo   bool
	UseStereo  bool
}

// MakeCall places an outbound call. Both endpoints must be set and the
// socket must be ready; any precondition failure is logged and returns
// nil, never a panic.
func (v *VertoClient) MakeCall(opts *CallOptions) *calling.Call {
	if opts == nil || opts.To == "" || opts.From == "" {
		v.core.Logger().Printf("verto: tried to call without destination or caller")
		return nil
	}
	if !v.core.SocketReady() {
		v.core.Logger().Printf("verto: tried to call over a not ready socket")
		return nil
	}
	callerName := opts.CallerName
	if callerName == "" {
		callerName = defaultCallerName
	}
	v.mu.Lock()
	factory := v.engineFactory
	v.mu.Unlock()

	call, err := calling.NewCall(v.core, calling.DirectionOutbound, &calling.CallParams{
		DestinationNumber: opts.To,
		CallerIDNumber:    opts.From,
		CallerIDName:      callerName,
		UseVideo:          opts.UseVideo,
		UseStereo:         opts.UseStereo,
	}, factory)
	if err != nil {
		v.core.Logger().Printf("verto: could not build outbound call to %s: %v", opts.To, err)
		return nil
	}
	if err := call.Invite(); err != nil {
		v.core.Logger().Printf("verto: could not start outbound call to %s: %v", opts.To, err)
		call.Hangup(&calling.HangupParams{Cause: "Device or Permission Error", CauseCode: 604})
		return nil
	}
	return call
}

// MakeVideoCall places an outbound video call.
func (v *VertoClient) MakeVideoCall(opts *CallOptions) *calling.Call {
	if opts == nil {
		v.core.Logger().Printf("verto: tried to video call without options")
		return nil
	}
	opts.UseVideo = true
	return v.MakeCall(opts)
}

// Hangup ends the named call, or every live call when callID is empty.
func (v *VertoClient) Hangup(callID string, causeCode int) {
	v.core.Hangup(callID, causeCode)
}

// SwitchCamera switches the capture device of a live call.
func (v *VertoClient) SwitchCamera(callID string) error {
	call := v.core.GetCall(callID)
	if call == nil {
		v.core.Logger().Printf("verto: tried to switch camera on unknown call %s", callID)
		return nil
	}
	if c, ok := call.(*calling.Call); ok {
		return c.RTC().SwitchCamera()
	}
	return nil
}

// Destroy tears the whole session down.
func (v *VertoClient) Destroy() {
	v.mu.Lock()
	conf := v.conf
	v.conf = nil
	v.mu.Unlock()
	if conf != nil {
		conf.Destroy()
	}
	v.core.Destroy()
}

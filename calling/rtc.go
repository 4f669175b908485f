/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2026 The verto-go-sdk authors
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package calling

import "github.com/vertocommunity/verto-go-sdk/vertosdk"

// RTCOptions configures an engine for one call.
type RTCOptions struct {
	UseVideo    bool
	UseStereo   bool
	ScreenShare bool
	UseCamera   string
	UseMic      string
	UseSpeak    string
	VideoParams *vertosdk.VideoParams
	AudioParams map[string]interface{}
	ICEServers  bool
}

// RTCCallbacks is how an engine reports back into its call. OnICESDP
// delivers the fully negotiated local description once ICE gathering is
// complete; the call does not see intermediate candidates except through
// OnICE.
type RTCCallbacks struct {
	OnICESDP             func(sdp string)
	OnICE                func(candidate string)
	OnPeerStreaming      func(stream interface{})
	OnPeerStreamingError func(err error)
}

// RTCEngine is the media peer owned by a call. The signaling layer only
// drives negotiation through this interface; the media package provides
// the default implementation.
type RTCEngine interface {
	// InvitePeer starts the outbound offer path. OnICESDP fires when the
	// local description is ready to send.
	InvitePeer() error
	// CreateAnswer starts the answer path for a received remote offer.
	CreateAnswer(remoteSDP string) error
	// Answer injects the remote answer or early-media SDP.
	Answer(sdp string, onSuccess func(), onError func(error))
	// Stop tears the peer down along with local media.
	Stop()
	// StopPeer tears the peer down but leaves local capture alone. Used
	// for screen-share calls.
	StopPeer()
	// SwitchCamera switches the local capture device, when the engine
	// owns one.
	SwitchCamera() error
}

// EngineFactory builds the RTC engine for a new call.
type EngineFactory func(opts RTCOptions, callbacks RTCCallbacks) (RTCEngine, error)

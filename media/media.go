/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2026 The verto-go-sdk authors
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

// Package media provides the default RTC engine: a pion/webrtc peer
// driving SDP negotiation for a call. It stops at SDP and ICE plumbing;
// capture devices are the application's concern.
package media

import (
	"fmt"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"

	"github.com/vertocommunity/verto-go-sdk/calling"
)

// defaultICEServers is used when the session enables ICE servers.
var defaultICEServers = []webrtc.ICEServer{
	{URLs: []string{"stun:stun.l.google.com:19302"}},
}

// Engine is a pion-backed calling.RTCEngine.
type Engine struct {
	mu        sync.Mutex
	pc        *webrtc.PeerConnection
	callbacks calling.RTCCallbacks
	opts      calling.RTCOptions
	closed    bool
}

// NewEngine builds the peer connection for one call. It satisfies
// calling.EngineFactory.
func NewEngine(opts calling.RTCOptions, callbacks calling.RTCCallbacks) (calling.RTCEngine, error) {
	m := &webrtc.MediaEngine{}
	if opts.UseVideo {
		if err := m.RegisterDefaultCodecs(); err != nil {
			return nil, fmt.Errorf("failed to register default codecs: %w", err)
		}
	} else {
		if err := m.RegisterCodec(webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypePCMU, ClockRate: 8000},
			PayloadType:        0,
		}, webrtc.RTPCodecTypeAudio); err != nil {
			return nil, fmt.Errorf("failed to register PCMU codec: %w", err)
		}
		if err := m.RegisterCodec(webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypePCMA, ClockRate: 8000},
			PayloadType:        8,
		}, webrtc.RTPCodecTypeAudio); err != nil {
			return nil, fmt.Errorf("failed to register PCMA codec: %w", err)
		}
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, registry); err != nil {
		return nil, fmt.Errorf("failed to register interceptors: %w", err)
	}

	settings := webrtc.SettingEngine{}
	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithSettingEngine(settings),
		webrtc.WithInterceptorRegistry(registry),
	)

	pcConfig := webrtc.Configuration{}
	if opts.ICEServers {
		pcConfig.ICEServers = defaultICEServers
	}
	pc, err := api.NewPeerConnection(pcConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	e := &Engine{pc: pc, callbacks: callbacks, opts: opts}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		if callbacks.OnICE != nil {
			callbacks.OnICE(c.ToJSON().Candidate)
		}
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		if callbacks.OnPeerStreaming != nil {
			callbacks.OnPeerStreaming(track)
		}
	})

	return e, nil
}

// addTransceivers declares the media the call sends and receives.
func (e *Engine) addTransceivers() error {
	if _, err := e.pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionSendrecv,
	}); err != nil {
		return fmt.Errorf("failed to add audio transceiver: %w", err)
	}
	if e.opts.UseVideo {
		if _, err := e.pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionSendrecv,
		}); err != nil {
			return fmt.Errorf("failed to add video transceiver: %w", err)
		}
	}
	return nil
}

// InvitePeer starts the outbound offer path. The negotiated description
// is delivered through OnICESDP once ICE gathering completes.
func (e *Engine) InvitePeer() error {
	if err := e.addTransceivers(); err != nil {
		return err
	}
	offer, err := e.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("failed to create offer: %w", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(e.pc)
	if err := e.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("failed to set local description: %w", err)
	}
	go e.deliverLocalDescription(gatherComplete)
	return nil
}

// CreateAnswer starts the answer path for a received remote offer.
func (e *Engine) CreateAnswer(remoteSDP string) error {
	if err := e.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  remoteSDP,
	}); err != nil {
		return fmt.Errorf("failed to set remote offer: %w", err)
	}
	answer, err := e.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("failed to create answer: %w", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(e.pc)
	if err := e.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("failed to set local description: %w", err)
	}
	go e.deliverLocalDescription(gatherComplete)
	return nil
}

func (e *Engine) deliverLocalDescription(gatherComplete <-chan struct{}) {
	<-gatherComplete
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return
	}
	desc := e.pc.LocalDescription()
	if desc == nil {
		if e.callbacks.OnPeerStreamingError != nil {
			e.callbacks.OnPeerStreamingError(fmt.Errorf("gathering finished without a local description"))
		}
		return
	}
	if e.callbacks.OnICESDP != nil {
		e.callbacks.OnICESDP(desc.SDP)
	}
}

// Answer injects the remote answer or early-media SDP. A peer already in
// the stable state has the description applied and is left alone.
func (e *Engine) Answer(sdp string, onSuccess func(), onError func(error)) {
	if e.pc.SignalingState() == webrtc.SignalingStateStable {
		if onSuccess != nil {
			onSuccess()
		}
		return
	}
	err := e.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  sdp,
	})
	if err != nil {
		if onError != nil {
			onError(fmt.Errorf("failed to set remote answer: %w", err))
		}
		return
	}
	if onSuccess != nil {
		onSuccess()
	}
}

// Stop tears the peer connection down.
func (e *Engine) Stop() {
	e.close()
}

// StopPeer tears the peer connection down without touching local capture.
// This engine owns no capture, so it matches Stop.
func (e *Engine) StopPeer() {
	e.close()
}

func (e *Engine) close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()
	e.pc.Close()
}

// SwitchCamera is unavailable: capture devices live outside this engine.
func (e *Engine) SwitchCamera() error {
	return fmt.Errorf("no switchable capture device: media capture is external to this engine")
}

// PeerConnection exposes the underlying pion peer connection.
func (e *Engine) PeerConnection() *webrtc.PeerConnection {
	return e.pc
}

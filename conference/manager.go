/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2026 The verto-go-sdk authors
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package conference

import (
	"strconv"
	"sync"

	"github.com/vertocommunity/verto-go-sdk/vertosdk"
)

// ChannelBinding pairs an event channel with the handler consuming it.
type ChannelBinding struct {
	Channel string
	Handler vertosdk.SubscriptionHandler
}

// Channels are the conference side channels announced at join time. Nil
// bindings are simply not wired.
type Channels struct {
	Info *ChannelBinding
	Chat *ChannelBinding
	Mod  *ChannelBinding
}

// Manager drives a conference's side channels: chat, info, and moderation
// commands broadcast outward on the mod channel. It keeps no conference
// state beyond its bindings.
type Manager struct {
	mu        sync.Mutex
	session   Session
	channels  Channels
	destroyed bool
}

// NewManager subscribes the bound channels and returns the manager.
func NewManager(session Session, channels Channels) *Manager {
	m := &Manager{session: session, channels: channels}
	for _, binding := range []*ChannelBinding{channels.Info, channels.Chat, channels.Mod} {
		if binding != nil && binding.Channel != "" && binding.Handler != nil {
			session.Subscribe(binding.Channel, binding.Handler, nil)
		}
	}
	return m
}

// Destroy unsubscribes every bound channel and turns all commands into
// logged no-ops.
func (m *Manager) Destroy() {
	m.mu.Lock()
	m.destroyed = true
	m.mu.Unlock()
	for _, binding := range []*ChannelBinding{m.channels.Info, m.channels.Chat, m.channels.Mod} {
		if binding != nil && binding.Channel != "" {
			m.session.Unsubscribe(binding.Channel)
		}
	}
}

func (m *Manager) broadcast(eventChannel string, data interface{}) {
	m.mu.Lock()
	destroyed := m.destroyed
	m.mu.Unlock()
	if destroyed {
		m.session.Logger().Printf("conference: tried to broadcast from destroyed manager")
		return
	}
	if eventChannel == "" {
		return
	}
	m.session.Publish(vertosdk.MethodBroadcast, map[string]interface{}{
		"eventChannel": eventChannel,
		"data":         data,
	}, nil, nil)
}

// ModeratorCommand broadcasts a conf-control command on the moderation
// channel. An empty memberID addresses the whole room; otherwise the id
// must be the numeric conference member id.
func (m *Manager) ModeratorCommand(command, memberID string, value ...interface{}) {
	var channel string
	if m.channels.Mod != nil {
		channel = m.channels.Mod.Channel
	}
	data := map[string]interface{}{
		"command":     command,
		"value":       value,
		"application": "conf-control",
	}
	if memberID != "" {
		id, err := strconv.Atoi(memberID)
		if err != nil {
			m.session.Logger().Printf("conference: non-numeric member id %q for %s", memberID, command)
			return
		}
		data["id"] = id
	} else {
		data["id"] = nil
	}
	m.broadcast(channel, data)
}

// RoomCommand broadcasts a conf-control command addressed to the room.
func (m *Manager) RoomCommand(command string, value ...interface{}) {
	m.ModeratorCommand(command, "", value...)
}

// SendChatMessage posts a message on the conference chat channel.
func (m *Manager) SendChatMessage(text string) {
	var channel string
	if m.channels.Chat != nil {
		channel = m.channels.Chat.Channel
	}
	m.broadcast(channel, map[string]interface{}{
		"message": text,
		"action":  "send",
		"type":    "message",
	})
}

// AskVideoLayouts requests the list of available video layouts.
func (m *Manager) AskVideoLayouts() {
	m.RoomCommand("list-videoLayouts")
}

// PlayMediaFile plays a file from the server into the conference.
func (m *Manager) PlayMediaFile(filename string) {
	m.RoomCommand("play", filename)
}

// StopMediaFiles stops all server playback.
func (m *Manager) StopMediaFiles() {
	m.RoomCommand("stop", "all")
}

// StartRecording starts a server-side recording.
func (m *Manager) StartRecording(filename string) {
	m.RoomCommand("recording", "start", filename)
}

// StopRecordings stops all server-side recordings.
func (m *Manager) StopRecordings() {
	m.RoomCommand("recording", "stop", "all")
}

// SaveSnapshot writes a png snapshot of the conference video.
func (m *Manager) SaveSnapshot(filename string) {
	m.RoomCommand("vid-write-png", filename)
}

// ChangeVideoLayout switches the video layout, optionally on a specific
// canvas.
func (m *Manager) ChangeVideoLayout(layout, canvas string) {
	if canvas != "" {
		m.RoomCommand("vid-layout", []string{layout, canvas})
		return
	}
	m.RoomCommand("vid-layout", layout)
}

// Moderation returns the per-member moderation command set.
func (m *Manager) Moderation(memberID string) Moderation {
	return Moderation{manager: m, memberID: memberID}
}

// Moderation is the set of conf-control actions addressing one member.
type Moderation struct {
	manager  *Manager
	memberID string
}

// ToggleMicrophone flips the member's audio mute.
func (mod Moderation) ToggleMicrophone() {
	mod.manager.ModeratorCommand("tmute", mod.memberID)
}

// ToggleCamera flips the member's video mute.
func (mod Moderation) ToggleCamera() {
	mod.manager.ModeratorCommand("tvmute", mod.memberID)
}

// Deafen stops conference audio towards the member.
func (mod Moderation) Deafen() {
	mod.manager.ModeratorCommand("deaf", mod.memberID)
}

// Undeafen restores conference audio towards the member.
func (mod Moderation) Undeafen() {
	mod.manager.ModeratorCommand("undeaf", mod.memberID)
}

// Kick removes the member from the conference.
func (mod Moderation) Kick() {
	mod.manager.ModeratorCommand("kick", mod.memberID)
}

// MakePresenter moves the member into the presenter reservation.
func (mod Moderation) MakePresenter() {
	mod.manager.ModeratorCommand("vid-res-id", mod.memberID, "presenter")
}

// GrabVideoFloor forces the video floor to the member.
func (mod Moderation) GrabVideoFloor() {
	mod.manager.ModeratorCommand("vid-floor", mod.memberID, "force")
}

// SetVideoBanner sets the member's video banner text. The banner is reset
// first; a literal "reset" text gets a newline appended so it survives
// the server's reset parsing.
func (mod Moderation) SetVideoBanner(text string) {
	mod.manager.ModeratorCommand("vid-banner", mod.memberID, "reset")
	if text == "reset" {
		mod.manager.ModeratorCommand("vid-banner", mod.memberID, text+"\n")
		return
	}
	mod.manager.ModeratorCommand("vid-banner", mod.memberID, text)
}

// ClearVideoBanner removes the member's video banner.
func (mod Moderation) ClearVideoBanner() {
	mod.manager.ModeratorCommand("vid-banner", mod.memberID, "reset")
}

// IncreaseVolumeOutput raises the member's output volume.
func (mod Moderation) IncreaseVolumeOutput() {
	mod.manager.ModeratorCommand("volume_out", mod.memberID, "up")
}

// DecreaseVolumeOutput lowers the member's output volume.
func (mod Moderation) DecreaseVolumeOutput() {
	mod.manager.ModeratorCommand("volume_out", mod.memberID, "down")
}

// IncreaseVolumeInput raises the member's input volume.
func (mod Moderation) IncreaseVolumeInput() {
	mod.manager.ModeratorCommand("volume_in", mod.memberID, "up")
}

// DecreaseVolumeInput lowers the member's input volume.
func (mod Moderation) DecreaseVolumeInput() {
	mod.manager.ModeratorCommand("volume_in", mod.memberID, "down")
}

// TransferTo transfers the member to another extension.
func (mod Moderation) TransferTo(destination string) {
	mod.manager.ModeratorCommand("transfer", mod.memberID, destination)
}

/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2026 The verto-go-sdk authors
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package conference

import (
	"fmt"

	"github.com/vertocommunity/verto-go-sdk/vertosdk"
)

// Callbacks receive conference lifecycle and channel traffic.
type Callbacks struct {
	OnReady     func(conf *Conference)
	OnDestroyed func(conf *Conference)

	LiveArray LiveArrayCallbacks

	OnChatMessage vertosdk.SubscriptionHandler
	OnInfo        vertosdk.SubscriptionHandler
	OnModeration  vertosdk.SubscriptionHandler
}

// Conference is one joined conference: the member identity granted at
// join time, the replicated roster and the side-channel manager.
type Conference struct {
	CallID   string
	MemberID string
	Role     string
	Name     string

	Manager   *Manager
	LiveArray *LiveArray
}

// Join binds a conference from the join announcement's private data:
// subscribes the announced channels and bootstraps the roster.
func Join(session Session, pvt *vertosdk.PvtData, callbacks *Callbacks) (*Conference, error) {
	if pvt == nil {
		return nil, fmt.Errorf("join announcement carries no private data")
	}
	if pvt.LaChannel == "" || pvt.LaName == "" {
		return nil, fmt.Errorf("join announcement for %s names no live array", pvt.CallID)
	}
	if callbacks == nil {
		callbacks = &Callbacks{}
	}

	channels := Channels{}
	if pvt.InfoChannel != "" && callbacks.OnInfo != nil {
		channels.Info = &ChannelBinding{Channel: pvt.InfoChannel, Handler: callbacks.OnInfo}
	}
	if pvt.ChatChannel != "" && callbacks.OnChatMessage != nil {
		channels.Chat = &ChannelBinding{Channel: pvt.ChatChannel, Handler: callbacks.OnChatMessage}
	}
	if pvt.ModChannel != "" {
		channels.Mod = &ChannelBinding{Channel: pvt.ModChannel, Handler: callbacks.OnModeration}
	}

	conf := &Conference{
		CallID:   pvt.CallID,
		MemberID: pvt.ConferenceMemberID,
		Role:     pvt.Role,
		Name:     pvt.LaName,
	}
	conf.Manager = NewManager(session, channels)
	conf.LiveArray = NewLiveArray(session, pvt.LaChannel, pvt.LaName, callbacks.LiveArray)
	return conf, nil
}

// Destroy tears the conference bindings down.
func (c *Conference) Destroy() {
	if c.LiveArray != nil {
		c.LiveArray.Destroy()
	}
	if c.Manager != nil {
		c.Manager.Destroy()
	}
}

/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2026 The verto-go-sdk authors
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

// Package vertosdk implements the session layer of the Verto signaling
// protocol: one WebSocket carrying JSON-RPC 2.0 both ways, with request
// correlation, session recovery, channel subscriptions and per-call event
// routing layered on top.
package vertosdk

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Logger is the interface for logging within the SDK.
// It is satisfied by the standard library's log package.
type Logger interface {
	Printf(format string, v ...interface{})
}

// VideoParams bounds the dimensions requested for video media.
type VideoParams struct {
	MinWidth  int `json:"minWidth,omitempty"`
	MinHeight int `json:"minHeight,omitempty"`
	MaxWidth  int `json:"maxWidth,omitempty"`
	MaxHeight int `json:"maxHeight,omitempty"`
}

// Config holds the session configuration.
type Config struct {
	// URL is the websocket endpoint, e.g. wss://switch.example.com:8082.
	URL string

	// Login and Password authenticate the session when the server asks.
	Login    string
	Password string

	// LoginParams and UserVariables are forwarded verbatim on login.
	LoginParams   map[string]interface{}
	UserVariables map[string]interface{}

	// Sessid pins the session id. When empty the id is recovered from
	// the SessionStore or freshly generated.
	Sessid string

	// BlockSessionRecovery forces a fresh session id on every connect.
	BlockSessionRecovery bool

	// ReconnectDelay is the pause before a reconnect attempt after the
	// socket drops. Defaults to 10 seconds.
	ReconnectDelay time.Duration

	// HandshakeTimeout bounds the websocket dial. Defaults to 10 seconds.
	HandshakeTimeout time.Duration

	// Device selection forwarded to the RTC engine. Mic and speaker
	// default to "any".
	UseMic    string
	UseSpeak  string
	UseCamera string

	// UseVideo and UseStereo set the default media shape of new calls.
	UseVideo  bool
	UseStereo bool

	// VideoParams bounds video dimensions for new calls.
	VideoParams *VideoParams

	// AudioParams is forwarded to the RTC engine untouched.
	AudioParams map[string]interface{}

	// ICEServers enables the default STUN set in the RTC engine.
	ICEServers bool

	// RingSleep is the pause before auto-answering flows ring the app.
	// Defaults to 6 seconds.
	RingSleep time.Duration

	// Logger receives diagnostics. Defaults to log.Default().
	Logger Logger

	// SessionStore persists the session id across clients. Defaults to
	// the process-wide in-memory store.
	SessionStore SessionStore
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		ReconnectDelay:   10 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		UseMic:           "any",
		UseSpeak:         "any",
		RingSleep:        6 * time.Second,
	}
}

// applyDefaults fills the zero-valued fields of c in place.
func (c *Config) applyDefaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 10 * time.Second
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.UseMic == "" {
		c.UseMic = "any"
	}
	if c.UseSpeak == "" {
		c.UseSpeak = "any"
	}
	if c.RingSleep == 0 {
		c.RingSleep = 6 * time.Second
	}
	if c.VideoParams == nil {
		c.VideoParams = &VideoParams{}
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
	if c.SessionStore == nil {
		c.SessionStore = DefaultSessionStore()
	}
}

// socket is the minimal connection surface the client needs. Satisfied by
// *websocket.Conn; tests substitute a fake.
type socket interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Client is a Verto session: one socket, one session id, a pending-request
// table, channel subscriptions and the table of live calls.
type Client struct {
	mu sync.Mutex

	config    *Config
	callbacks *Callbacks
	logger    Logger

	conn      socket
	sessid    string
	requestID int64
	pending   map[int64]*pendingRequest

	subscriptions map[string]*Subscription
	calls         map[string]CallHandle

	authing    bool
	destroyed  bool
	retryTimer *time.Timer

	callFactory    IncomingCallFactory
	pvtHandler     PrivateDataHandler
	messageHandler MessageHandler
}

// New creates a Client. Connect must be called before any traffic flows.
func New(config *Config, callbacks *Callbacks) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.URL == "" {
		return nil, fmt.Errorf("websocket URL cannot be empty")
	}
	config.applyDefaults()

	c := &Client{
		config:        config,
		callbacks:     callbacks.normalize(),
		logger:        config.Logger,
		pending:       make(map[int64]*pendingRequest),
		subscriptions: make(map[string]*Subscription),
		calls:         make(map[string]CallHandle),
	}
	c.messageHandler = c.routeEvent
	return c, nil
}

// SetIncomingCallFactory installs the hook that builds inbound calls.
func (c *Client) SetIncomingCallFactory(factory IncomingCallFactory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callFactory = factory
}

// SetPrivateDataHandler installs the hook for channelPvtData events.
func (c *Client) SetPrivateDataHandler(handler PrivateDataHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pvtHandler = handler
}

// SetMessageHandler overrides the default routing of server-initiated
// requests.
func (c *Client) SetMessageHandler(handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if handler == nil {
		handler = c.routeEvent
	}
	c.messageHandler = handler
}

// Config returns the session configuration.
func (c *Client) Config() *Config { return c.config }

// Logger returns the session logger.
func (c *Client) Logger() Logger { return c.logger }

// Callbacks returns the normalized application callbacks.
func (c *Client) Callbacks() *Callbacks { return c.callbacks }

// Sessid returns the current session id.
func (c *Client) Sessid() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessid
}

// SocketReady reports whether the socket is connected.
func (c *Client) SocketReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Connect establishes the session id, resets the session tables and dials
// the socket. A bare login probe is sent on open; the server's auth
// challenge then drives the credentialed login.
func (c *Client) Connect() error {
	c.mu.Lock()
	c.destroyed = false
	c.sessid = c.establishSessionLocked()
	c.pending = make(map[int64]*pendingRequest)
	c.subscriptions = make(map[string]*Subscription)
	c.calls = make(map[string]CallHandle)
	c.mu.Unlock()
	return c.connectSocket()
}

// establishSessionLocked picks the session id: a pinned id wins, then the
// stored one, then a fresh UUID. The chosen id is written back to the
// store unless recovery is blocked.
func (c *Client) establishSessionLocked() string {
	if c.config.BlockSessionRecovery {
		return uuid.New().String()
	}
	sessid := c.config.Sessid
	if sessid == "" {
		sessid = c.config.SessionStore.Load()
	}
	if sessid == "" {
		sessid = uuid.New().String()
	}
	c.config.SessionStore.Save(sessid)
	return sessid
}

func (c *Client) connectSocket() error {
	c.mu.Lock()
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	if c.conn != nil {
		c.mu.Unlock()
		c.logger.Printf("verto: tried to connect an already connected socket")
		return nil
	}
	c.authing = false
	url := c.config.URL
	timeout := c.config.HandshakeTimeout
	c.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		c.reportError(fmt.Errorf("websocket dial %s: %w", url, err))
		c.scheduleReconnect()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop(conn)

	// Bare probe; the -32000 challenge it provokes triggers the
	// credentialed login.
	c.Publish(MethodLogin, nil, func(json.RawMessage) {}, nil)
	return nil
}

func (c *Client) readLoop(conn socket) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(conn, err)
			return
		}
		c.handleFrame(data)
	}
}

func (c *Client) handleClose(conn socket, err error) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	destroyed := c.destroyed
	c.mu.Unlock()

	c.callbacks.OnClientClose()
	if destroyed {
		return
	}
	c.logger.Printf("verto: socket closed: %v, reconnecting in %s", err, c.config.ReconnectDelay)
	c.scheduleReconnect()
}

// scheduleReconnect arms a single reconnect attempt, replacing any timer
// already pending.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return
	}
	if c.retryTimer != nil {
		c.retryTimer.Stop()
	}
	c.retryTimer = time.AfterFunc(c.config.ReconnectDelay, func() {
		c.connectSocket()
	})
}

// handleFrame parses one inbound frame and routes it to the response or
// the event path.
func (c *Client) handleFrame(data []byte) {
	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Printf("verto: dropping undecodable frame: %v", err)
		return
	}

	c.mu.Lock()
	_, isResponse := c.pending[msg.ID]
	c.mu.Unlock()
	if msg.Jsonrpc == JSONRPCVersion && isResponse {
		c.handleResponse(&msg, data)
		return
	}

	c.mu.Lock()
	handler := c.messageHandler
	conn := c.conn
	c.mu.Unlock()

	if msg.Method == "" {
		c.logger.Printf("verto: dropping frame with no method and no matching request id")
		return
	}
	var params EventParams
	if msg.Params != nil {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			c.logger.Printf("verto: dropping %s event with undecodable params: %v", msg.Method, err)
			return
		}
		params.Raw = msg.Params
	}

	reply := handler(&EventMessage{ID: msg.ID, Method: msg.Method, Params: params})
	if reply == nil || msg.ID == 0 || conn == nil {
		return
	}
	frame, err := json.Marshal(struct {
		Jsonrpc string      `json:"jsonrpc"`
		ID      int64       `json:"id"`
		Result  interface{} `json:"result"`
	}{JSONRPCVersion, msg.ID, reply})
	if err != nil {
		c.reportError(fmt.Errorf("encode reply for %s: %w", msg.Method, err))
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.reportError(fmt.Errorf("write reply for %s: %w", msg.Method, err))
	}
}

// handleResponse settles the pending request msg answers. An auth-required
// error triggers exactly one credentialed re-login for the whole session;
// responses failing while that login is in flight keep their pending
// entries untouched.
func (c *Client) handleResponse(msg *wireMessage, raw []byte) {
	c.mu.Lock()
	pr := c.pending[msg.ID]

	if msg.Result != nil {
		delete(c.pending, msg.ID)
		onSuccess := pr.onSuccess
		c.mu.Unlock()
		if onSuccess != nil {
			onSuccess(msg.Result)
		}
		return
	}

	if msg.Error == nil {
		c.mu.Unlock()
		c.reportError(fmt.Errorf("malformed response for request %d: %s", msg.ID, raw))
		return
	}

	if msg.Error.Code == CodeAuthRequired && !c.authing {
		c.authing = true
		c.mu.Unlock()
		c.relogin(msg.ID, msg.Error)
		return
	}

	delete(c.pending, msg.ID)
	onError := pr.onError
	c.mu.Unlock()
	if onError != nil {
		onError(msg.Error)
		return
	}
	c.reportError(wrapRPCError(msg.Error))
}

// relogin sends the credentialed login provoked by an auth challenge.
// origID is the request the challenge rejected; it is consumed once the
// login settles, and origErr is what the login-failure hook reports.
func (c *Client) relogin(origID int64, origErr *RPCError) {
	params := map[string]interface{}{
		"login":  c.config.Login,
		"passwd": c.config.Password,
	}
	if c.config.LoginParams != nil {
		params["loginParams"] = c.config.LoginParams
	}
	if c.config.UserVariables != nil {
		params["userVariables"] = c.config.UserVariables
	}
	c.Publish(MethodLogin, params,
		func(json.RawMessage) {
			c.mu.Lock()
			c.authing = false
			delete(c.pending, origID)
			c.mu.Unlock()
			c.callbacks.OnWebSocketLoginSuccess()
		},
		func(*RPCError) {
			c.mu.Lock()
			delete(c.pending, origID)
			c.mu.Unlock()
			c.callbacks.OnWebSocketLoginError(origErr)
		})
}

// Publish sends a request. The session id is merged into params; explicit
// params win. When onSuccess is nil no pending entry is kept and the
// response, if any, is discarded.
func (c *Client) Publish(method string, params map[string]interface{}, onSuccess ResponseFunc, onError ErrorFunc) {
	merged := map[string]interface{}{}
	c.mu.Lock()
	merged["sessid"] = c.sessid
	for k, v := range params {
		merged[k] = v
	}
	c.requestID++
	id := c.requestID
	req := &Request{Jsonrpc: JSONRPCVersion, Method: method, Params: merged, ID: id}
	raw, err := json.Marshal(req)
	if err != nil {
		c.mu.Unlock()
		c.reportError(fmt.Errorf("encode %s request: %w", method, err))
		return
	}
	if onSuccess != nil {
		c.pending[id] = &pendingRequest{request: req, raw: raw, onSuccess: onSuccess, onError: onError}
	}
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		c.logger.Printf("verto: tried to publish %s on a not ready socket", method)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		c.reportError(fmt.Errorf("write %s request: %w", method, err))
	}
}

// routeEvent is the default MessageHandler: private data first, then
// call-addressed events, then client-level methods.
func (c *Client) routeEvent(msg *EventMessage) interface{} {
	switch {
	case msg.Params.EventType == "channelPvtData":
		c.handlePrivateData(msg.Params)
	case msg.Params.CallID != "":
		c.handleMessageForCall(msg.Method, msg.Params)
	default:
		c.handleMessageForClient(msg.Method, msg.Params)
	}
	return nil
}

func (c *Client) handlePrivateData(params EventParams) {
	c.mu.Lock()
	handler := c.pvtHandler
	c.mu.Unlock()
	if handler == nil {
		c.logger.Printf("verto: ignoring private data event without a handler")
		return
	}
	handler(params)
}

func (c *Client) handleMessageForCall(method string, params EventParams) {
	c.mu.Lock()
	call := c.calls[params.CallID]
	factory := c.callFactory
	c.mu.Unlock()

	if call != nil {
		switch method {
		case MethodBye:
			call.HandleBye(params)
		case MethodAnswer:
			call.HandleAnswer(params.SDP)
		case MethodMedia:
			call.HandleMedia(params.SDP)
		case MethodDisplay:
			call.HandleDisplay(params.DisplayName, params.DisplayNumber)
		case MethodInfo:
			call.HandleInfo(params)
		default:
			c.logger.Printf("verto: ignoring %s for existing call %s", method, params.CallID)
		}
		return
	}

	if method != MethodInvite && method != MethodAttach {
		c.logger.Printf("verto: ignoring %s for unknown call %s", method, params.CallID)
		return
	}
	if factory == nil {
		c.logger.Printf("verto: ignoring inbound %s, no incoming call factory", method)
		return
	}
	newCall := factory(method, params)
	if newCall == nil {
		return
	}
	c.callbacks.OnNewCall(newCall)
}

func (c *Client) handleMessageForClient(method string, params EventParams) {
	c.mu.Lock()
	var sub *Subscription
	if params.EventChannel != "" {
		sub = c.subscriptions[params.EventChannel]
	}
	isSessionChannel := params.EventChannel == c.sessid
	_, isCallChannel := c.calls[params.EventChannel]
	c.mu.Unlock()

	switch method {
	case MethodPunt:
		c.Destroy()
	case MethodEvent:
		switch {
		case sub == nil && isSessionChannel:
			c.callbacks.OnPrivateEvent(params)
		case sub == nil && isCallChannel:
			c.callbacks.OnPrivateEvent(params)
		case sub == nil:
			c.logger.Printf("verto: ignoring event for unsubscribed channel %s", params.EventChannel)
		case !sub.Ready:
			c.logger.Printf("verto: ignoring event for not ready channel %s", params.EventChannel)
		case sub.Handler != nil:
			sub.Handler(params, sub.UserData)
		case c.callbacks.OnEvent != nil:
			c.callbacks.OnEvent(params, sub.UserData)
		default:
			c.logger.Printf("verto: ignoring event without handler on channel %s", params.EventChannel)
		}
	case MethodInfo:
		c.callbacks.OnInfo(params)
	case MethodClientReady:
		c.callbacks.OnClientReady(params)
	default:
		c.logger.Printf("verto: ignoring event %s with no call id", method)
	}
}

// Subscribe registers a channel handler and announces the subscription.
// Events are dropped until the server acknowledges the channel.
func (c *Client) Subscribe(eventChannel string, handler SubscriptionHandler, userData interface{}) *Subscription {
	sub := &Subscription{EventChannel: eventChannel, Handler: handler, UserData: userData}
	c.mu.Lock()
	if _, exists := c.subscriptions[eventChannel]; exists {
		c.logger.Printf("verto: overwriting subscription for channel %s", eventChannel)
	}
	c.subscriptions[eventChannel] = sub
	c.mu.Unlock()
	c.BroadcastMethod(MethodSubscribe, map[string]interface{}{"eventChannel": eventChannel})
	return sub
}

// Unsubscribe drops a channel subscription locally and on the server.
func (c *Client) Unsubscribe(eventChannel string) {
	c.mu.Lock()
	delete(c.subscriptions, eventChannel)
	c.mu.Unlock()
	c.BroadcastMethod(MethodUnsubscribe, map[string]interface{}{"eventChannel": eventChannel})
}

// Broadcast publishes data on a channel.
func (c *Client) Broadcast(eventChannel string, data interface{}) {
	c.BroadcastMethod(MethodBroadcast, map[string]interface{}{
		"eventChannel": eventChannel,
		"data":         data,
	})
}

// BroadcastMethod publishes a channel-management request and feeds the
// reply through the subscription ack processing.
func (c *Client) BroadcastMethod(method string, params map[string]interface{}) {
	c.Publish(method, params,
		func(result json.RawMessage) { c.processReply(method, result) },
		func(err *RPCError) { c.processReply(method, err.Data) })
}

// processReply applies a subscribe acknowledgment: confirmed channels
// become ready, unauthorized ones are dropped.
func (c *Client) processReply(method string, payload json.RawMessage) {
	if method != MethodSubscribe || payload == nil {
		return
	}
	var ack struct {
		Subscribed   []string `json:"subscribedChannels"`
		Unauthorized []string `json:"unauthorizedChannels"`
	}
	if err := json.Unmarshal(payload, &ack); err != nil {
		c.logger.Printf("verto: undecodable subscribe reply: %v", err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, channel := range ack.Subscribed {
		if sub := c.subscriptions[channel]; sub != nil {
			sub.Ready = true
		}
	}
	for _, channel := range ack.Unauthorized {
		c.logger.Printf("verto: unauthorized channel %s", channel)
		delete(c.subscriptions, channel)
	}
}

// RegisterCall adds a call to the call table.
func (c *Client) RegisterCall(call CallHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[call.ID()] = call
}

// UnregisterCall removes a call from the call table.
func (c *Client) UnregisterCall(callID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.calls, callID)
}

// GetCall looks up a live call by id.
func (c *Client) GetCall(callID string) CallHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[callID]
}

// Hangup ends the named call, or every live call when callID is empty.
func (c *Client) Hangup(callID string, causeCode int) {
	if callID != "" {
		call := c.GetCall(callID)
		if call == nil {
			c.logger.Printf("verto: tried to hang up unknown call %s", callID)
			return
		}
		call.HangupWithCause("", causeCode)
		return
	}
	c.mu.Lock()
	snapshot := make([]CallHandle, 0, len(c.calls))
	for _, call := range c.calls {
		snapshot = append(snapshot, call)
	}
	c.mu.Unlock()
	for _, call := range snapshot {
		call.HangupWithCause("", 0)
	}
}

// Destroy tears the session down: the socket is closed, every live call is
// purged and all subscriptions are dropped. No reconnect follows.
func (c *Client) Destroy() {
	c.mu.Lock()
	c.destroyed = true
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	conn := c.conn
	c.conn = nil
	snapshot := make([]CallHandle, 0, len(c.calls))
	for _, call := range c.calls {
		snapshot = append(snapshot, call)
	}
	c.subscriptions = make(map[string]*Subscription)
	c.mu.Unlock()

	if conn == nil {
		c.logger.Printf("verto: tried to close a not ready socket while destroying")
		return
	}
	conn.Close()
	for _, call := range snapshot {
		call.Purge()
	}
}

func (c *Client) reportError(err error) {
	if c.callbacks.OnError != nil {
		c.callbacks.OnError(err)
		return
	}
	c.logger.Printf("verto: %v", err)
}

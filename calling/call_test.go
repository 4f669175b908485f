/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2026 The verto-go-sdk authors
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package calling

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"

	"github.com/vertocommunity/verto-go-sdk/vertosdk"
)

type publishedRequest struct {
	method    string
	params    map[string]interface{}
	onSuccess vertosdk.ResponseFunc
	onError   vertosdk.ErrorFunc
}

// dialogParams decodes the dialog bag of the request.
func (r *publishedRequest) dialogParams(t *testing.T) map[string]interface{} {
	t.Helper()
	dialog, ok := r.params["dialogParams"].(map[string]interface{})
	if !ok {
		t.Fatalf("%s request carries no dialogParams: %v", r.method, r.params)
	}
	return dialog
}

type fakeSession struct {
	mu         sync.Mutex
	published  []*publishedRequest
	registered map[string]vertosdk.CallHandle
	callbacks  *vertosdk.Callbacks
	config     *vertosdk.Config
	logger     vertosdk.Logger
}

func newFakeSession() *fakeSession {
	config := vertosdk.DefaultConfig()
	config.Login = "1000@switch.test"
	return &fakeSession{
		registered: make(map[string]vertosdk.CallHandle),
		callbacks:  &vertosdk.Callbacks{},
		config:     config,
		logger:     log.New(io.Discard, "", 0),
	}
}

func (s *fakeSession) Publish(method string, params map[string]interface{}, onSuccess vertosdk.ResponseFunc, onError vertosdk.ErrorFunc) {
	// Round-trip through JSON so assertions see the wire shape.
	encoded, err := json.Marshal(params)
	if err != nil {
		panic(err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, &publishedRequest{
		method:    method,
		params:    decoded,
		onSuccess: onSuccess,
		onError:   onError,
	})
}

func (s *fakeSession) RegisterCall(call vertosdk.CallHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registered[call.ID()] = call
}

func (s *fakeSession) UnregisterCall(callID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.registered, callID)
}

func (s *fakeSession) Callbacks() *vertosdk.Callbacks { return s.callbacks }
func (s *fakeSession) Config() *vertosdk.Config       { return s.config }
func (s *fakeSession) Logger() vertosdk.Logger        { return s.logger }

func (s *fakeSession) requests(method string) []*publishedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*publishedRequest
	for _, req := range s.published {
		if req.method == method {
			out = append(out, req)
		}
	}
	return out
}

func (s *fakeSession) lastRequest(t *testing.T, method string) *publishedRequest {
	t.Helper()
	reqs := s.requests(method)
	if len(reqs) == 0 {
		t.Fatalf("no %s request published", method)
	}
	return reqs[len(reqs)-1]
}

func (s *fakeSession) isRegistered(callID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.registered[callID]
	return ok
}

type fakeEngine struct {
	mu            sync.Mutex
	invites       int
	createAnswers int
	stops         int
	stopPeers     int
	remoteSDP     string
	answered      []string
	answerErr     error
	callbacks     RTCCallbacks
	opts          RTCOptions
}

func (f *fakeEngine) factory() EngineFactory {
	return func(opts RTCOptions, callbacks RTCCallbacks) (RTCEngine, error) {
		f.opts = opts
		f.callbacks = callbacks
		return f, nil
	}
}

func (f *fakeEngine) InvitePeer() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invites++
	return nil
}

func (f *fakeEngine) CreateAnswer(remoteSDP string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createAnswers++
	f.remoteSDP = remoteSDP
	return nil
}

func (f *fakeEngine) Answer(sdp string, onSuccess func(), onError func(error)) {
	f.mu.Lock()
	f.answered = append(f.answered, sdp)
	err := f.answerErr
	f.mu.Unlock()
	if err != nil {
		onError(err)
		return
	}
	onSuccess()
}

func (f *fakeEngine) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeEngine) StopPeer() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopPeers++
}

func (f *fakeEngine) SwitchCamera() error { return nil }

type transition struct {
	previous  string
	current   string
	causeCode int
}

// recordTransitions wires the session state-change callback into a slice.
func recordTransitions(session *fakeSession) *[]transition {
	var transitions []transition
	var mu sync.Mutex
	session.callbacks.OnCallStateChange = func(change vertosdk.StateChange, callID string) {
		mu.Lock()
		defer mu.Unlock()
		transitions = append(transitions, transition{change.Previous, change.Current, change.CauseCode})
	}
	return &transitions
}

func newOutboundCall(t *testing.T, session *fakeSession, engine *fakeEngine) *Call {
	t.Helper()
	call, err := NewCall(session, DirectionOutbound, &CallParams{
		DestinationNumber: "CH1SN0S1",
		CallerIDNumber:    "1000",
		CallerIDName:      "Tester",
	}, engine.factory())
	if err != nil {
		t.Fatalf("NewCall: %v", err)
	}
	return call
}

func TestOutboundCallFlow(t *testing.T) {
	session := newFakeSession()
	engine := &fakeEngine{}
	transitions := recordTransitions(session)

	call := newOutboundCall(t, session, engine)
	if !session.isRegistered(call.ID()) {
		t.Fatal("outbound call must register itself")
	}
	if call.State() != StateNew {
		t.Fatalf("fresh call must be new, got %s", call.State())
	}

	if err := call.Invite(); err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if engine.invites != 1 {
		t.Fatalf("expected one engine invite, got %d", engine.invites)
	}

	// Negotiation completes: the call requests the dialog.
	engine.callbacks.OnICESDP("v=0 local offer")
	if call.State() != StateRequesting {
		t.Fatalf("expected requesting, got %s", call.State())
	}
	invite := session.lastRequest(t, vertosdk.MethodInvite)
	dialog := invite.dialogParams(t)
	if dialog["sdp"] != "v=0 local offer" {
		t.Errorf("invite must carry the negotiated sdp, got %v", dialog["sdp"])
	}
	if dialog["destination_number"] != "CH1SN0S1" || dialog["caller_id_number"] != "1000" {
		t.Errorf("unexpected dialog endpoints: %v", dialog)
	}

	invite.onSuccess(json.RawMessage(`{"message":"CALL CREATED"}`))
	if call.State() != StateTrying {
		t.Fatalf("expected trying after invite ack, got %s", call.State())
	}

	call.HandleAnswer("v=0 remote answer")
	if call.State() != StateActive {
		t.Fatalf("expected active after answer, got %s", call.State())
	}
	if len(engine.answered) != 1 || engine.answered[0] != "v=0 remote answer" {
		t.Errorf("engine must receive the remote answer, got %v", engine.answered)
	}

	want := []transition{
		{"new", "requesting", 0},
		{"requesting", "trying", 0},
		{"trying", "active", 0},
	}
	if len(*transitions) != len(want) {
		t.Fatalf("expected %d transitions, got %v", len(want), *transitions)
	}
	for i, tr := range want {
		if (*transitions)[i] != tr {
			t.Errorf("transition %d: got %v, want %v", i, (*transitions)[i], tr)
		}
	}
}

func TestInviteRejectionDestroysCall(t *testing.T) {
	session := newFakeSession()
	engine := &fakeEngine{}
	call := newOutboundCall(t, session, engine)

	call.Invite()
	engine.callbacks.OnICESDP("v=0")
	invite := session.lastRequest(t, vertosdk.MethodInvite)
	invite.onError(&vertosdk.RPCError{Code: -32602, Message: "no such destination"})

	if call.State() != StateDestroy {
		t.Fatalf("expected destroy after rejected invite, got %s", call.State())
	}
	if session.isRegistered(call.ID()) {
		t.Error("destroyed call must leave the call table")
	}
	if engine.stops != 1 {
		t.Errorf("destroy must stop the engine, got %d stops", engine.stops)
	}
	if len(session.requests(vertosdk.MethodBye)) != 0 {
		t.Error("a call that never got past requesting must not send bye")
	}
}

func TestHangupSignalsAfterRequesting(t *testing.T) {
	session := newFakeSession()
	engine := &fakeEngine{}
	call := newOutboundCall(t, session, engine)

	call.Invite()
	engine.callbacks.OnICESDP("v=0")
	session.lastRequest(t, vertosdk.MethodInvite).onSuccess(json.RawMessage(`{}`))

	call.Hangup(nil)

	bye := session.lastRequest(t, vertosdk.MethodBye)
	if bye.params["cause"] != "NORMAL_CLEARING" {
		t.Errorf("expected NORMAL_CLEARING, got %v", bye.params["cause"])
	}
	if bye.params["causeCode"].(float64) != 16 {
		t.Errorf("expected cause code 16, got %v", bye.params["causeCode"])
	}
	if call.State() != StateDestroy {
		t.Fatalf("expected destroy, got %s", call.State())
	}
	if session.isRegistered(call.ID()) {
		t.Error("hung up call must leave the call table")
	}
}

func TestHangupBeforeTryingStaysSilent(t *testing.T) {
	session := newFakeSession()
	engine := &fakeEngine{}
	call := newOutboundCall(t, session, engine)

	call.Hangup(nil)

	if call.State() != StateDestroy {
		t.Fatalf("expected destroy, got %s", call.State())
	}
	if len(session.requests(vertosdk.MethodBye)) != 0 {
		t.Error("a new call must hang up without signaling")
	}
}

func TestIllegalTransitionForcesHangup(t *testing.T) {
	session := newFakeSession()
	engine := &fakeEngine{}
	call := newOutboundCall(t, session, engine)

	if call.SetState(StateHeld) {
		t.Error("new -> held must be rejected")
	}
	if call.State() != StateDestroy {
		t.Fatalf("a rejected transition must force the call down, got %s", call.State())
	}
}

func TestSameStateTransitionRejected(t *testing.T) {
	session := newFakeSession()
	engine := &fakeEngine{}
	call := newOutboundCall(t, session, engine)

	if call.SetState(StateNew) {
		t.Error("same-state transitions must be rejected")
	}
	if call.State() != StateDestroy {
		t.Fatalf("expected destroy, got %s", call.State())
	}
}

func TestPurge(t *testing.T) {
	session := newFakeSession()
	engine := &fakeEngine{}
	call := newOutboundCall(t, session, engine)

	call.Invite()
	engine.callbacks.OnICESDP("v=0")
	session.lastRequest(t, vertosdk.MethodInvite).onSuccess(json.RawMessage(`{}`))

	call.Purge()

	if call.State() != StateDestroy {
		t.Fatalf("purge must fall through to destroy, got %s", call.State())
	}
	if len(session.requests(vertosdk.MethodBye)) != 0 {
		t.Error("purge must not signal the remote side")
	}
	if engine.stops != 1 {
		t.Errorf("purge must stop the engine, got %d stops", engine.stops)
	}
}

func TestScreenShareStopsPeerOnly(t *testing.T) {
	session := newFakeSession()
	engine := &fakeEngine{}
	call, err := NewCall(session, DirectionOutbound, &CallParams{
		DestinationNumber: "CH1SN0S1",
		CallerIDNumber:    "1000",
		ScreenShare:       true,
	}, engine.factory())
	if err != nil {
		t.Fatalf("NewCall: %v", err)
	}
	call.Purge()
	if engine.stopPeers != 1 || engine.stops != 0 {
		t.Errorf("screen share teardown must use StopPeer, got stops=%d stopPeers=%d", engine.stops, engine.stopPeers)
	}
}

func TestAnswerIsIdempotent(t *testing.T) {
	session := newFakeSession()
	engine := &fakeEngine{}
	call, err := NewCall(session, DirectionInbound, &CallParams{
		CallID: "inbound-1",
		SDP:    "v=0 remote offer",
	}, engine.factory())
	if err != nil {
		t.Fatalf("NewCall: %v", err)
	}

	call.Answer()
	call.Answer()

	if engine.createAnswers != 1 {
		t.Fatalf("expected one engine answer, got %d", engine.createAnswers)
	}
	if engine.remoteSDP != "v=0 remote offer" {
		t.Errorf("engine must see the remote offer, got %q", engine.remoteSDP)
	}
}

func TestInboundAttachRecoversAndAnswers(t *testing.T) {
	session := newFakeSession()
	engine := &fakeEngine{}
	call, err := NewCall(session, DirectionInbound, &CallParams{
		CallID: "recovered-1",
		SDP:    "v=0 remote offer",
		Attach: true,
	}, engine.factory())
	if err != nil {
		t.Fatalf("NewCall: %v", err)
	}

	if call.State() != StateRecovering {
		t.Fatalf("attach must enter recovering, got %s", call.State())
	}
	if engine.createAnswers != 1 {
		t.Fatalf("attach must auto-answer, got %d answers", engine.createAnswers)
	}

	engine.callbacks.OnICESDP("v=0 local answer")
	if call.State() != StateAnswering {
		t.Fatalf("expected answering, got %s", call.State())
	}
	attach := session.lastRequest(t, vertosdk.MethodAttach)
	if attach.dialogParams(t)["sdp"] != "v=0 local answer" {
		t.Errorf("attach must carry the local answer")
	}

	attach.onSuccess(json.RawMessage(`{}`))
	if call.State() != StateActive {
		t.Fatalf("expected active, got %s", call.State())
	}
}

func TestInboundAnswerFlow(t *testing.T) {
	session := newFakeSession()
	engine := &fakeEngine{}
	call, err := NewCall(session, DirectionInbound, &CallParams{
		CallID: "inbound-2",
		SDP:    "v=0 remote offer",
	}, engine.factory())
	if err != nil {
		t.Fatalf("NewCall: %v", err)
	}

	call.SetState(StateRinging)
	call.Answer()
	engine.callbacks.OnICESDP("v=0 local answer")

	if call.State() != StateAnswering {
		t.Fatalf("expected answering, got %s", call.State())
	}
	answer := session.lastRequest(t, vertosdk.MethodAnswer)
	answer.onSuccess(json.RawMessage(`{}`))
	if call.State() != StateActive {
		t.Fatalf("expected active, got %s", call.State())
	}
}

func TestEarlyMediaRace(t *testing.T) {
	t.Run("media before answer", func(t *testing.T) {
		session := newFakeSession()
		engine := &fakeEngine{}
		call := newOutboundCall(t, session, engine)
		call.Invite()
		engine.callbacks.OnICESDP("v=0")
		session.lastRequest(t, vertosdk.MethodInvite).onSuccess(json.RawMessage(`{}`))

		call.HandleMedia("v=0 early media")
		if call.State() != StateEarly {
			t.Fatalf("expected early, got %s", call.State())
		}

		call.HandleAnswer("v=0 remote answer")
		if call.State() != StateActive {
			t.Fatalf("expected active, got %s", call.State())
		}
		// The engine was primed by the early media; the answer only
		// advances the state.
		if len(engine.answered) != 1 {
			t.Errorf("expected one engine answer, got %v", engine.answered)
		}
	})

	t.Run("answer before media", func(t *testing.T) {
		session := newFakeSession()
		engine := &fakeEngine{}
		call := newOutboundCall(t, session, engine)
		call.Invite()
		engine.callbacks.OnICESDP("v=0")
		session.lastRequest(t, vertosdk.MethodInvite).onSuccess(json.RawMessage(`{}`))

		call.HandleAnswer("v=0 remote answer")
		if call.State() != StateActive {
			t.Fatalf("expected active, got %s", call.State())
		}

		call.HandleMedia("v=0 late early media")
		if call.State() != StateActive {
			t.Fatalf("late media must not move the state, got %s", call.State())
		}
		if len(engine.answered) != 1 {
			t.Errorf("late media must not reach the engine, got %v", engine.answered)
		}
	})
}

func TestMediaFailureClearsWithCause604(t *testing.T) {
	session := newFakeSession()
	engine := &fakeEngine{answerErr: fmt.Errorf("no compatible codec")}
	transitions := recordTransitions(session)
	call := newOutboundCall(t, session, engine)

	call.Invite()
	engine.callbacks.OnICESDP("v=0")
	session.lastRequest(t, vertosdk.MethodInvite).onSuccess(json.RawMessage(`{}`))

	call.HandleAnswer("v=0 broken answer")

	if call.State() != StateDestroy {
		t.Fatalf("expected destroy, got %s", call.State())
	}
	bye := session.lastRequest(t, vertosdk.MethodBye)
	if bye.params["causeCode"].(float64) != 604 {
		t.Errorf("expected cause code 604, got %v", bye.params["causeCode"])
	}
	if bye.params["cause"] != "Device or Permission Error" {
		t.Errorf("unexpected cause %v", bye.params["cause"])
	}
	last := (*transitions)[len(*transitions)-1]
	if last.causeCode != 604 {
		t.Errorf("state change must report cause code 604, got %d", last.causeCode)
	}
}

func TestRemoteByeTearsDown(t *testing.T) {
	session := newFakeSession()
	engine := &fakeEngine{}
	call := newOutboundCall(t, session, engine)
	call.Invite()
	engine.callbacks.OnICESDP("v=0")
	session.lastRequest(t, vertosdk.MethodInvite).onSuccess(json.RawMessage(`{}`))

	call.HandleBye(vertosdk.EventParams{Cause: "CALL_REJECTED", CauseCode: 21})

	if call.State() != StateDestroy {
		t.Fatalf("expected destroy, got %s", call.State())
	}
	bye := session.lastRequest(t, vertosdk.MethodBye)
	if bye.params["causeCode"].(float64) != 21 {
		t.Errorf("expected the remote cause code echoed, got %v", bye.params["causeCode"])
	}
}

func TestHoldFollowsServerVerdict(t *testing.T) {
	session := newFakeSession()
	engine := &fakeEngine{}
	call := newOutboundCall(t, session, engine)
	call.Invite()
	engine.callbacks.OnICESDP("v=0")
	session.lastRequest(t, vertosdk.MethodInvite).onSuccess(json.RawMessage(`{}`))
	call.HandleAnswer("v=0 answer")

	call.Hold()
	hold := session.lastRequest(t, vertosdk.MethodModify)
	if hold.params["action"] != "hold" {
		t.Fatalf("expected hold action, got %v", hold.params["action"])
	}
	hold.onSuccess(json.RawMessage(`{"holdState":"held"}`))
	if call.State() != StateHeld {
		t.Fatalf("expected held, got %s", call.State())
	}

	call.Unhold()
	unhold := session.lastRequest(t, vertosdk.MethodModify)
	unhold.onSuccess(json.RawMessage(`{"holdState":"active"}`))
	if call.State() != StateActive {
		t.Fatalf("expected active, got %s", call.State())
	}
}

func TestModifyReplyForCurrentHoldStateIsNoOp(t *testing.T) {
	session := newFakeSession()
	engine := &fakeEngine{}
	call := newOutboundCall(t, session, engine)
	call.Invite()
	engine.callbacks.OnICESDP("v=0")
	session.lastRequest(t, vertosdk.MethodInvite).onSuccess(json.RawMessage(`{}`))
	call.HandleAnswer("v=0 answer")

	call.Unhold()
	session.lastRequest(t, vertosdk.MethodModify).onSuccess(json.RawMessage(`{"holdState":"active"}`))
	if call.State() != StateActive {
		t.Fatalf("unhold acked while active must not move the call, got %s", call.State())
	}
	if len(session.requests(vertosdk.MethodBye)) != 0 {
		t.Fatal("unhold acked while active must not tear the call down")
	}

	call.Hold()
	session.lastRequest(t, vertosdk.MethodModify).onSuccess(json.RawMessage(`{"holdState":"held"}`))
	if call.State() != StateHeld {
		t.Fatalf("expected held, got %s", call.State())
	}

	call.Hold()
	reqs := session.requests(vertosdk.MethodModify)
	reqs[len(reqs)-1].onSuccess(json.RawMessage(`{"holdState":"held"}`))
	if call.State() != StateHeld {
		t.Fatalf("doubled hold must stay held, got %s", call.State())
	}
	if engine.stops != 0 {
		t.Error("the engine must stay up after redundant hold replies")
	}
}

func TestCallCommands(t *testing.T) {
	session := newFakeSession()
	engine := &fakeEngine{}
	call := newOutboundCall(t, session, engine)

	t.Run("dtmf", func(t *testing.T) {
		call.SendDigit("5")
		req := session.lastRequest(t, vertosdk.MethodInfo)
		if req.params["dtmf"] != "5" {
			t.Errorf("expected dtmf 5, got %v", req.params)
		}
		if _, hasSDP := req.dialogParams(t)["sdp"]; hasSDP {
			t.Error("dialog params must not leak sdp outside invite and attach")
		}
	})

	t.Run("real time text", func(t *testing.T) {
		call.SendRealTimeText("10", "hi")
		req := session.lastRequest(t, vertosdk.MethodInfo)
		txt := req.params["txt"].(map[string]interface{})
		if txt["code"] != "10" || txt["chars"] != "hi" {
			t.Errorf("unexpected txt payload %v", txt)
		}
		if _, hasCallID := req.dialogParams(t)["callID"]; hasCallID {
			t.Error("real-time text dialog params must not carry the callID")
		}
	})

	t.Run("message", func(t *testing.T) {
		call.SendMessageTo("1007", "hello")
		req := session.lastRequest(t, vertosdk.MethodInfo)
		msg := req.params["msg"].(map[string]interface{})
		if msg["to"] != "1007" || msg["body"] != "hello" {
			t.Errorf("unexpected msg payload %v", msg)
		}
		if msg["from"] != "1000@switch.test" {
			t.Errorf("message must name the sending login, got %v", msg["from"])
		}
	})

	t.Run("transfer", func(t *testing.T) {
		call.TransferTo("3500")
		req := session.lastRequest(t, vertosdk.MethodModify)
		if req.params["action"] != "transfer" || req.params["destination"] != "3500" {
			t.Errorf("unexpected transfer payload %v", req.params)
		}
	})
}

func TestRemoteDescriptionsEmitCallEvents(t *testing.T) {
	session := newFakeSession()
	engine := &fakeEngine{}
	call := newOutboundCall(t, session, engine)
	call.Invite()
	engine.callbacks.OnICESDP("v=0")
	session.lastRequest(t, vertosdk.MethodInvite).onSuccess(json.RawMessage(`{}`))

	var media, answer []string
	call.Emitter.On(EventMedia, func(data interface{}) { media = append(media, data.(string)) })
	call.Emitter.On(EventAnswer, func(data interface{}) { answer = append(answer, data.(string)) })

	call.HandleMedia("v=0 early")
	call.HandleAnswer("v=0 answer")

	if len(media) != 1 || media[0] != "v=0 early" {
		t.Errorf("expected one media emission with the early sdp, got %v", media)
	}
	if len(answer) != 1 || answer[0] != "v=0 answer" {
		t.Errorf("expected one answer emission with the answer sdp, got %v", answer)
	}
	if call.State() != StateActive {
		t.Errorf("expected active, got %s", call.State())
	}
}

func TestDisplayIdentityDerivation(t *testing.T) {
	engine := &fakeEngine{}

	t.Run("inbound outbound-leg display", func(t *testing.T) {
		call, err := NewCall(newFakeSession(), DirectionInbound, &CallParams{
			CallID:           "d1",
			DisplayDirection: "outbound",
			CallerIDName:     "Alice",
			CallerIDNumber:   "1001",
		}, engine.factory())
		if err != nil {
			t.Fatalf("NewCall: %v", err)
		}
		if call.RemoteCallerIDName() != "Alice" || call.RemoteCallerIDNumber() != "1001" {
			t.Errorf("got %s/%s", call.RemoteCallerIDName(), call.RemoteCallerIDNumber())
		}
	})

	t.Run("inbound inbound-leg display", func(t *testing.T) {
		call, err := NewCall(newFakeSession(), DirectionInbound, &CallParams{
			CallID:         "d2",
			CalleeIDName:   "Bob",
			CalleeIDNumber: "1002",
		}, engine.factory())
		if err != nil {
			t.Fatalf("NewCall: %v", err)
		}
		if call.RemoteCallerIDName() != "Bob" || call.RemoteCallerIDNumber() != "1002" {
			t.Errorf("got %s/%s", call.RemoteCallerIDName(), call.RemoteCallerIDNumber())
		}
	})

	t.Run("inbound defaults", func(t *testing.T) {
		call, err := NewCall(newFakeSession(), DirectionInbound, &CallParams{CallID: "d3"}, engine.factory())
		if err != nil {
			t.Fatalf("NewCall: %v", err)
		}
		if call.RemoteCallerIDName() != "NOBODY" || call.RemoteCallerIDNumber() != "UNKNOWN" {
			t.Errorf("got %s/%s", call.RemoteCallerIDName(), call.RemoteCallerIDNumber())
		}
	})

	t.Run("outbound display", func(t *testing.T) {
		call, err := NewCall(newFakeSession(), DirectionOutbound, &CallParams{
			CallID:            "d4",
			DestinationNumber: "3500",
		}, engine.factory())
		if err != nil {
			t.Fatalf("NewCall: %v", err)
		}
		if call.RemoteCallerIDName() != "OUTBOUND CALL" || call.RemoteCallerIDNumber() != "3500" {
			t.Errorf("got %s/%s", call.RemoteCallerIDName(), call.RemoteCallerIDNumber())
		}
	})
}

func TestHandleDisplayUpdatesIdentity(t *testing.T) {
	session := newFakeSession()
	var displayed []string
	session.callbacks.OnDisplay = func(callID, name, number string) {
		displayed = append(displayed, name+"/"+number)
	}
	engine := &fakeEngine{}
	call := newOutboundCall(t, session, engine)

	call.HandleDisplay("Carol", "1003")
	if call.RemoteCallerIDName() != "Carol" || call.RemoteCallerIDNumber() != "1003" {
		t.Errorf("display must update the remote identity, got %s/%s",
			call.RemoteCallerIDName(), call.RemoteCallerIDNumber())
	}
	if len(displayed) != 1 || displayed[0] != "Carol/1003" {
		t.Errorf("unexpected display callback %v", displayed)
	}
}

func TestPeerStreamingErrorHangsUp(t *testing.T) {
	session := newFakeSession()
	var reported error
	session.callbacks.OnPeerStreamingError = func(err error) { reported = err }
	engine := &fakeEngine{}
	call := newOutboundCall(t, session, engine)
	call.Invite()
	engine.callbacks.OnICESDP("v=0")
	session.lastRequest(t, vertosdk.MethodInvite).onSuccess(json.RawMessage(`{}`))

	engine.callbacks.OnPeerStreamingError(fmt.Errorf("device busy"))

	if reported == nil {
		t.Error("streaming errors must reach the session callback")
	}
	if call.State() != StateDestroy {
		t.Fatalf("expected destroy, got %s", call.State())
	}
	bye := session.lastRequest(t, vertosdk.MethodBye)
	if bye.params["causeCode"].(float64) != 604 {
		t.Errorf("expected cause code 604, got %v", bye.params["causeCode"])
	}
}

func TestParamsFromEvent(t *testing.T) {
	params := ParamsFromEvent(vertosdk.EventParams{
		CallID:         "ev-1",
		CallerIDName:   "Alice",
		CallerIDNumber: "1001",
		SDP:            "v=0\r\nm=audio 9 RTP\r\nm=video 9 RTP\r\na=fmtp:111 stereo=1\r\n",
	})
	if !params.UseVideo {
		t.Error("video must be detected from the offer")
	}
	if !params.UseStereo {
		t.Error("stereo must be detected from the offer")
	}
	if params.CallID != "ev-1" || params.CallerIDName != "Alice" {
		t.Errorf("unexpected params %+v", params)
	}

	audioOnly := ParamsFromEvent(vertosdk.EventParams{SDP: "v=0\r\nm=audio 9 RTP\r\n"})
	if audioOnly.UseVideo || audioOnly.UseStereo {
		t.Error("audio-only offers must not enable video or stereo")
	}
}

/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2026 The verto-go-sdk authors
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package vertosdk

import (
	"encoding/json"
	"errors"
	"fmt"
)

// JSONRPCVersion is the protocol version carried in every envelope.
const JSONRPCVersion = "2.0"

// Wire method names understood by a Verto endpoint.
const (
	MethodLogin       = "login"
	MethodInvite      = "verto.invite"
	MethodAttach      = "verto.attach"
	MethodAnswer      = "verto.answer"
	MethodBye         = "verto.bye"
	MethodModify      = "verto.modify"
	MethodInfo        = "verto.info"
	MethodClientReady = "verto.clientReady"
	MethodEvent       = "verto.event"
	MethodPunt        = "verto.punt"
	MethodMedia       = "verto.media"
	MethodDisplay     = "verto.display"
	MethodSubscribe   = "verto.subscribe"
	MethodUnsubscribe = "verto.unsubscribe"
	MethodBroadcast   = "verto.broadcast"
)

// CodeAuthRequired is the JSON-RPC error code the server answers with when
// a request arrives on a session that has not authenticated yet.
const CodeAuthRequired = -32000

// Request is an outbound JSON-RPC 2.0 request envelope.
type Request struct {
	Jsonrpc string                 `json:"jsonrpc"`
	Method  string                 `json:"method"`
	Params  map[string]interface{} `json:"params"`
	ID      int64                  `json:"id"`
}

// wireMessage is the inbound frame shape. A frame is either a response to
// one of our requests (ID matches a pending entry) or a server-initiated
// request (Method set).
type wireMessage struct {
	Jsonrpc string          `json:"jsonrpc,omitempty"`
	ID      int64           `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// AuthRequiredError wraps an RPCError carrying CodeAuthRequired.
type AuthRequiredError struct {
	*RPCError
}

// Unwrap returns the underlying RPCError for errors.As traversal.
func (e *AuthRequiredError) Unwrap() error { return e.RPCError }

// wrapRPCError returns err as the matching typed error.
func wrapRPCError(err *RPCError) error {
	if err == nil {
		return nil
	}
	if err.Code == CodeAuthRequired {
		return &AuthRequiredError{RPCError: err}
	}
	return err
}

// IsAuthRequired reports whether err represents the server's
// authentication-required error.
func IsAuthRequired(err error) bool {
	var e *AuthRequiredError
	if errors.As(err, &e) {
		return true
	}
	var r *RPCError
	return errors.As(err, &r) && r.Code == CodeAuthRequired
}

// ResponseFunc consumes the result of a successful request.
type ResponseFunc func(result json.RawMessage)

// ErrorFunc consumes the error object of a failed request.
type ErrorFunc func(err *RPCError)

// pendingRequest is a request awaiting its response. The serialized frame
// is retained so diagnostics can show exactly what was sent.
type pendingRequest struct {
	request   *Request
	raw       []byte
	onSuccess ResponseFunc
	onError   ErrorFunc
}

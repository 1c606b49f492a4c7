package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"memepod/core"
	podErrors "memepod/core/errors"
	"memepod/crypto"
	"memepod/native/pod"
	"memepod/native/token"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeNotFound       = -32004
	codeReplay         = -32010
	codeRateLimited    = -32020
	codeOverflow       = -32030
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// paramsError marks a malformed or missing parameter.
type paramsError struct {
	msg string
}

func (e *paramsError) Error() string { return e.msg }

func invalidParams(format string, args ...interface{}) error {
	return &paramsError{msg: fmt.Sprintf(format, args...)}
}

// classify maps a handler error onto an HTTP status and JSON-RPC error. Each
// domain kind keeps its numbered code so clients can match on it.
func classify(err error) (int, *RPCError) {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case codeUnauthorized:
			return http.StatusUnauthorized, rpcErr
		case codeReplay:
			return http.StatusConflict, rpcErr
		case codeRateLimited:
			return http.StatusTooManyRequests, rpcErr
		}
		return http.StatusBadRequest, rpcErr
	}
	var pErr *paramsError
	if errors.As(err, &pErr) {
		return http.StatusBadRequest, &RPCError{Code: codeInvalidParams, Message: pErr.msg}
	}
	switch {
	case errors.Is(err, token.ErrOwnerMismatch), errors.Is(err, token.ErrInvalidAuthority):
		err = fmt.Errorf("%w: %v", podErrors.ErrUnauthorised, err)
	case errors.Is(err, token.ErrInsufficientFunds):
		err = fmt.Errorf("%w: %v", podErrors.ErrInsufficientFund, err)
	}
	if name, code, ok := podErrors.Kind(err); ok {
		return http.StatusBadRequest, &RPCError{Code: code, Message: name, Data: err.Error()}
	}
	switch {
	case errors.Is(err, podErrors.ErrArithmeticOverflow), errors.Is(err, token.ErrOverflow):
		return http.StatusUnprocessableEntity, &RPCError{Code: codeOverflow, Message: "ArithmeticOverflow", Data: err.Error()}
	case errors.Is(err, pod.ErrPodNotFound), errors.Is(err, token.ErrMintNotFound), errors.Is(err, token.ErrAccountNotFound):
		return http.StatusNotFound, &RPCError{Code: codeNotFound, Message: "not found", Data: err.Error()}
	case errors.Is(err, token.ErrMintExists), errors.Is(err, token.ErrZeroAddress):
		return http.StatusBadRequest, &RPCError{Code: codeInvalidParams, Message: err.Error()}
	case errors.Is(err, crypto.ErrInvalidSignature):
		return http.StatusUnauthorized, &RPCError{Code: codeUnauthorized, Message: err.Error()}
	case errors.Is(err, core.ErrIndexerUnavailable):
		return http.StatusServiceUnavailable, &RPCError{Code: codeServerError, Message: err.Error()}
	default:
		return http.StatusInternalServerError, &RPCError{Code: codeServerError, Message: "internal error", Data: err.Error()}
	}
}

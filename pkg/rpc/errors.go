package rpc

import "fmt"

// ErrorKind classifies a transport failure by stage, mirroring pkg/abi's
// error kinds: callers switch on Kind, not on a specific Go error value.
type ErrorKind string

const (
	ErrRpc       ErrorKind = "rpc"
	ErrTransport ErrorKind = "transport"
	ErrProtocol  ErrorKind = "protocol"
)

// Error is the error type returned through a pending request's result slot
// and by every blocking pkg/rpc call. RPCCode and RPCData are only set for
// Kind == ErrRpc, carrying the JSON-RPC error object's code/data verbatim.
type Error struct {
	Kind    ErrorKind
	Method  string
	Message string
	RPCCode int
	RPCData []byte
	Cause   error
}

func (e *Error) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Method, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func rpcErr(method string, code int, message string, data []byte) *Error {
	return &Error{Kind: ErrRpc, Method: method, Message: message, RPCCode: code, RPCData: data}
}

func transportErr(method, format string, args ...any) *Error {
	return &Error{Kind: ErrTransport, Method: method, Message: fmt.Sprintf(format, args...)}
}

func transportErrWrap(method string, cause error, format string, args ...any) *Error {
	return &Error{Kind: ErrTransport, Method: method, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func protocolErr(format string, args ...any) *Error {
	return &Error{Kind: ErrProtocol, Message: fmt.Sprintf(format, args...)}
}

// Package ipc carries out-of-band control requests (status, stop) between a
// running suzerain and later invocations over a unix socket.
package ipc

// Commands understood by a running instance.
const (
	CommandStatus = "status"
	CommandStop   = "stop"
)

// Request is one newline-delimited JSON request.
type Request struct {
	Command string `json:"command"`
}

// Response is one newline-delimited JSON response.
type Response struct {
	OK        bool   `json:"ok"`
	State     string `json:"state,omitempty"`
	Phrase    string `json:"phrase,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Failure builds an error response.
func Failure(msg string) Response { return Response{OK: false, Error: msg} }

// Package errs holds the error taxonomy shared by the realtime components.
package errs

import (
	"errors"
	"fmt"
)

// Kind represents different categories of errors that can occur
type Kind string

const (
	KindConnection         Kind = "connection"
	KindReconnectExhausted Kind = "reconnect_exhausted"
	KindSend               Kind = "send"
	KindNotificationSync   Kind = "notification_sync"
	KindListenerFault      Kind = "listener_fault"
	KindServer             Kind = "server"
)

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrConnection         = errors.New("connection error")
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
	ErrSendFailure        = errors.New("message send failed")
	ErrNotificationSync   = errors.New("notification sync failed")
	ErrListenerFault      = errors.New("listener fault")
	ErrServer             = errors.New("server error")
)

var sentinels = map[Kind]error{
	KindConnection:         ErrConnection,
	KindReconnectExhausted: ErrReconnectExhausted,
	KindSend:               ErrSendFailure,
	KindNotificationSync:   ErrNotificationSync,
	KindListenerFault:      ErrListenerFault,
	KindServer:             ErrServer,
}

// Error is a categorized failure. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// New creates an *Error of the given kind wrapping err.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, sentinels[e.Kind])
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, sentinels[e.Kind], e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

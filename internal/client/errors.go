package client

import (
	"errors"
	"fmt"

	"voxelfarm.ai/internal/protocol"
)

var (
	// ErrDisconnected fails every pending action when the connection drops.
	ErrDisconnected = errors.New("client: disconnected")
	// ErrNotConnected is returned for actions issued with no live connection.
	ErrNotConnected = errors.New("client: not connected")
	// ErrCanceled fails actions abandoned by CancelPending.
	ErrCanceled = errors.New("client: canceled")
)

// ActionError is a failure reported by the world for one action.
type ActionError struct {
	Code    string
	Message string
}

func (e *ActionError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// newActionError builds the error for a world-reported failure. A missing or
// unrecognized code becomes E_INTERNAL; an unrecognized one is kept in the
// message.
func newActionError(code, msg string) *ActionError {
	switch {
	case code == "":
		code = protocol.ErrInternal
	case !protocol.IsKnownCode(code):
		if msg == "" {
			msg = "unrecognized code " + code
		} else {
			msg = fmt.Sprintf("unrecognized code %s: %s", code, msg)
		}
		code = protocol.ErrInternal
	}
	return &ActionError{Code: code, Message: msg}
}

// HasCode reports whether err is an ActionError carrying code.
func HasCode(err error, code string) bool {
	var ae *ActionError
	return errors.As(err, &ae) && ae.Code == code
}

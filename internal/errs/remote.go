package errs

import (
	"errors"
	"net/http"
	"strings"
)

// Fallback user-visible messages.
const (
	MsgServerError   = "Server error"
	MsgCannotConnect = "Cannot connect to server"
)

// RemoteError is a normalized error payload returned by the server.
// Message is shown to the user verbatim.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return MsgServerError
	}
	return e.Message
}

// Is maps the remote status onto the taxonomy so callers can branch with errors.Is.
func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrRemoteRejection:
		return true
	case ErrSessionExpired:
		return e.Status == http.StatusGone || strings.Contains(strings.ToLower(e.Message), "expired")
	case ErrUnauthenticated:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrSlotTaken:
		return e.Status == http.StatusConflict
	}
	return false
}

// TransportError wraps a failure where no usable response was received.
type TransportError struct{ Err error }

func (e *TransportError) Error() string { return MsgCannotConnect }
func (e *TransportError) Unwrap() error { return e.Err }

// Is reports the transport root for every transport failure.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// Message renders the user-visible text for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Error()
	}
	if errors.Is(err, ErrTransport) {
		return MsgCannotConnect
	}
	return err.Error()
}

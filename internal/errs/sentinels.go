// Package errs contains the error taxonomy shared by the transport, store and controller layers.
package errs

import "errors"

// Taxonomy roots. Every error returned by a controller matches at least one of them
// via errors.Is. A RemoteError signalling expiry matches both ErrRemoteRejection
// and ErrSessionExpired; callers test ErrSessionExpired first.
var (
	// ErrValidation indicates a client-side check failed; no network call was made.
	ErrValidation = errors.New("validation")

	// ErrChallenge indicates an unloaded, expired or rejected CAPTCHA challenge.
	ErrChallenge = errors.New("challenge")

	// ErrSessionExpired indicates a stale or missing correlation identifier.
	ErrSessionExpired = errors.New("session expired")

	// ErrRemoteRejection indicates the server explicitly returned an error payload.
	ErrRemoteRejection = errors.New("remote rejection")

	// ErrTransport indicates no usable response: timeout, refused connection, unreadable body.
	ErrTransport = errors.New("transport failure")
)

// Refinements of the roots above.
var (
	// ErrChallengeNotReady indicates credentials were submitted before a challenge was loaded.
	ErrChallengeNotReady = wrap(ErrChallenge, "challenge not ready")

	// ErrCatalogUnavailable indicates the knowledge-question catalog could not be fetched.
	ErrCatalogUnavailable = wrap(ErrRemoteRejection, "question catalog unavailable")

	// ErrLoginRejected is the single generic message for any stage-1 login rejection.
	ErrLoginRejected = wrap(ErrRemoteRejection, "invalid credentials or captcha")

	// ErrUnauthenticated indicates no usable session token (missing, expired or refused).
	ErrUnauthenticated = wrap(ErrRemoteRejection, "not signed in")

	// ErrSlotTaken indicates the server refused a reservation because the day is no longer free.
	ErrSlotTaken = wrap(ErrRemoteRejection, "slot already taken")

	// ErrReservationPending indicates a reservation for the same day is already in flight.
	ErrReservationPending = wrap(ErrValidation, "reservation already in progress")

	// ErrNotFound indicates a missing key in a session store.
	ErrNotFound = errors.New("not found")
)

type refined struct {
	parent error
	msg    string
}

func wrap(parent error, msg string) error { return &refined{parent: parent, msg: msg} }

func (e *refined) Error() string { return e.msg }
func (e *refined) Unwrap() error { return e.parent }

// Invalid returns a validation failure carrying a user-visible reason.
func Invalid(reason string) error { return wrap(ErrValidation, reason) }

// Package api is the boundary to the remote service. Controllers depend on these
// interfaces only; internal/api/httpapi is the production implementation.
//
// Every method returns either a domain value or an error matching one of
// errs.ErrRemoteRejection (server error payload, *errs.RemoteError) or
// errs.ErrTransport (no usable response).
package api

import (
	"context"

	"github.com/and161185/slotguard/internal/model"
)

// ChallengeIssuer hands out single-use CAPTCHA challenges.
type ChallengeIssuer interface {
	Challenge(ctx context.Context) (model.Challenge, error)
}

// RegistrationAPI covers the two registration stages and the question catalog.
type RegistrationAPI interface {
	// RegisterStage1 submits identity and credentials and returns the registration correlation id.
	RegisterStage1(ctx context.Context, p model.Profile) (string, error)
	// Questions returns the knowledge-question catalog.
	Questions(ctx context.Context) ([]string, error)
	// RegisterStage2 enrolls the selected questions for the correlation.
	RegisterStage2(ctx context.Context, correlationID string, sel []model.QuestionAnswer) error
}

// LoginAPI covers the two login stages.
type LoginAPI interface {
	ChallengeIssuer
	// LoginStage1 checks credentials and challenge and returns the stored questions.
	LoginStage1(ctx context.Context, c model.Credentials) (model.LoginChallenge, error)
	// LoginStage2 checks positional answers and issues the session.
	LoginStage2(ctx context.Context, correlationID string, answers []string) (model.Identity, error)
}

// CalendarAPI covers the reservation board.
type CalendarAPI interface {
	// Calendar returns the full authoritative view.
	Calendar(ctx context.Context, token string) (model.CalendarView, error)
	// Reserve claims a day for the token's user.
	Reserve(ctx context.Context, token string, id model.DayID) error
}

// Client is the whole remote surface.
type Client interface {
	RegistrationAPI
	LoginAPI
	CalendarAPI
}

// Package model defines domain entities used by the controllers, the transport and the stores.
package model

import "time"

// Challenge is a single-use CAPTCHA issued by the server.
type Challenge struct {
	ID       string // server-side identifier, sent back with the answer
	Artifact string // opaque displayable payload (SVG markup in practice)
}

// Loaded reports whether the challenge can be submitted.
func (c Challenge) Loaded() bool { return c.ID != "" }

// Profile is the registration stage-1 input.
type Profile struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

// Credentials is the login stage-1 input.
type Credentials struct {
	Username        string
	Password        string
	ChallengeID     string
	ChallengeAnswer string
}

// QuestionAnswer pairs a catalog question with the user's answer during enrollment.
type QuestionAnswer struct {
	Question string
	Answer   string
}

// LoginChallenge is the login stage-1 result.
type LoginChallenge struct {
	CorrelationID string
	Questions     []string
}

// User is the identity record returned on login. Name is always present.
type User struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Identity is the authenticated session issued by login stage 2.
type Identity struct {
	Token     string
	User      User
	ExpiresAt time.Time // derived client-side; zero means unknown
}

// Valid reports whether the identity can be used at time now.
func (i Identity) Valid(now time.Time) bool {
	if i.Token == "" {
		return false
	}
	return i.ExpiresAt.IsZero() || now.Before(i.ExpiresAt)
}

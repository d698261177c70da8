// Package convert maps the JSON wire payloads of the remote service to domain types and back.
package convert

import (
	"encoding/json"

	"github.com/and161185/slotguard/internal/model"
)

// ErrorBody is the failure envelope every endpoint may return.
type ErrorBody struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// --- challenge ---

type ChallengeResponse struct {
	SVG       string `json:"svg"`
	CaptchaID string `json:"captchaId"`
}

// --- registration ---

type RegisterStage1Request struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type RegisterStage1Response struct {
	RegistrationID string `json:"registrationId"`
}

type QuestionsResponse struct {
	Questions []string `json:"questions"`
}

type AnswerPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type RegisterStage2Request struct {
	RegistrationID string       `json:"registrationId"`
	Answers        []AnswerPair `json:"answers"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

// --- login ---

type LoginStage1Request struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	CaptchaID     string `json:"captchaId"`
	CaptchaAnswer string `json:"captchaAnswer"`
}

type LoginStage1Response struct {
	LoginID   string   `json:"loginId"`
	Questions []string `json:"questions"`
}

type LoginStage2Request struct {
	LoginID string   `json:"loginId"`
	Answers []string `json:"answers"`
}

type LoginStage2Response struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// --- calendar ---

type DayDTO struct {
	ID     model.DayID     `json:"id"`
	Date   string          `json:"date"`
	Status string          `json:"status"`
	Holder json.RawMessage `json:"holder,omitempty"` // string, number, object or null
}

type MonthDTO struct {
	Label string   `json:"label"`
	Days  []DayDTO `json:"days"`
}

type CalendarResponse struct {
	Months []MonthDTO `json:"months"`
}

type ReserveRequest struct {
	Token  string      `json:"token"`
	DateID model.DayID `json:"dateId"`
}

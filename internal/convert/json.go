package convert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/and161185/slotguard/internal/model"
)

// --- requests (client -> server) ---

// ToRegisterStage1 copies a profile into the stage-1 payload.
func ToRegisterStage1(p model.Profile) RegisterStage1Request {
	return RegisterStage1Request{
		Name:            p.Name,
		Email:           p.Email,
		Password:        p.Password,
		ConfirmPassword: p.ConfirmPassword,
	}
}

// ToRegisterStage2 builds the enrollment payload preserving selection order.
func ToRegisterStage2(correlationID string, sel []model.QuestionAnswer) RegisterStage2Request {
	out := RegisterStage2Request{RegistrationID: correlationID, Answers: make([]AnswerPair, 0, len(sel))}
	for _, s := range sel {
		out.Answers = append(out.Answers, AnswerPair{Question: s.Question, Answer: s.Answer})
	}
	return out
}

// ToLoginStage1 copies credentials into the stage-1 payload.
func ToLoginStage1(c model.Credentials) LoginStage1Request {
	return LoginStage1Request{
		Username:      c.Username,
		Password:      c.Password,
		CaptchaID:     c.ChallengeID,
		CaptchaAnswer: c.ChallengeAnswer,
	}
}

// --- responses (server -> client) ---

// FromChallenge validates and converts a challenge payload.
func FromChallenge(in ChallengeResponse) (model.Challenge, error) {
	if in.CaptchaID == "" || in.SVG == "" {
		return model.Challenge{}, fmt.Errorf("challenge: missing svg or captchaId")
	}
	return model.Challenge{ID: in.CaptchaID, Artifact: in.SVG}, nil
}

// FromLoginStage1 validates the correlation and question set.
func FromLoginStage1(in LoginStage1Response) (model.LoginChallenge, error) {
	if in.LoginID == "" || len(in.Questions) == 0 {
		return model.LoginChallenge{}, fmt.Errorf("login stage1: missing loginId or questions")
	}
	return model.LoginChallenge{CorrelationID: in.LoginID, Questions: append([]string(nil), in.Questions...)}, nil
}

// FromLoginStage2 validates the token and user record.
func FromLoginStage2(in LoginStage2Response) (model.Identity, error) {
	if in.Token == "" || in.User == nil {
		return model.Identity{}, fmt.Errorf("login stage2: missing token or user")
	}
	return model.Identity{Token: in.Token, User: *in.User}, nil
}

// FromStatus parses a day status; unknown values are treated as unavailable.
func FromStatus(s string) model.Status {
	switch model.Status(strings.ToLower(strings.TrimSpace(s))) {
	case model.StatusAvailable:
		return model.StatusAvailable
	case model.StatusReserved:
		return model.StatusReserved
	default:
		return model.StatusUnavailable
	}
}

// FromCalendar converts and validates a calendar payload.
func FromCalendar(in CalendarResponse) (model.CalendarView, error) {
	v := model.CalendarView{Months: make([]model.Month, 0, len(in.Months))}
	for _, m := range in.Months {
		days := make([]model.Day, 0, len(m.Days))
		for _, d := range m.Days {
			days = append(days, model.Day{
				ID:     d.ID,
				Date:   d.Date,
				Status: FromStatus(d.Status),
				Holder: holder(d.Holder),
			})
		}
		v.Months = append(v.Months, model.Month{Label: m.Label, Days: days})
	}
	if err := v.Validate(); err != nil {
		return model.CalendarView{}, fmt.Errorf("calendar: %w", err)
	}
	return v, nil
}

func holder(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}

// Package httpapi implements api.Client over the service's HTTP/JSON endpoints.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/slotguard/internal/api"
	"github.com/and161185/slotguard/internal/convert"
	"github.com/and161185/slotguard/internal/errs"
	"github.com/and161185/slotguard/internal/model"
)

// Endpoint paths.
const (
	PathChallenge      = "/api/captcha"
	PathRegisterStage1 = "/api/register-stage1"
	PathQuestions      = "/api/questions"
	PathRegisterStage2 = "/api/register-stage2"
	PathLoginStage1    = "/api/login-step1"
	PathLoginStage2    = "/api/login-step2"
	PathCalendar       = "/api/calendar"
	PathReserve        = "/api/calendar/reserve"
)

// DefaultTimeout is the hard upper bound of a single exchange.
const DefaultTimeout = 30 * time.Second

const maxBody = 1 << 20

// Messages for success payloads that lack required fields.
const (
	msgChallenge    = "Failed to load CAPTCHA. Please refresh."
	msgRegistration = "Registration failed. Please try again."
	msgLoginStage1  = "Login failed. Please try again."
	msgLoginStage2  = "Login verification failed"
)

var _ api.Client = (*Client)(nil)

// Client talks to one base URL. It never retries.
type Client struct {
	base string
	hc   *http.Client
	log  *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client (its Timeout is kept as is).
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.hc = hc } }

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

// New constructs a client for base (e.g. "http://localhost:3030"). timeout <= 0 means DefaultTimeout.
func New(base string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: timeout},
		log:  zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ---- endpoints ----

// Challenge fetches a fresh CAPTCHA.
func (c *Client) Challenge(ctx context.Context) (model.Challenge, error) {
	var out convert.ChallengeResponse
	if err := c.do(ctx, http.MethodGet, PathChallenge, "", nil, &out); err != nil {
		return model.Challenge{}, err
	}
	ch, err := convert.FromChallenge(out)
	if err != nil {
		return model.Challenge{}, c.malformed(PathChallenge, err, msgChallenge)
	}
	return ch, nil
}

// RegisterStage1 submits the profile and returns the registration id.
func (c *Client) RegisterStage1(ctx context.Context, p model.Profile) (string, error) {
	var out convert.RegisterStage1Response
	if err := c.do(ctx, http.MethodPost, PathRegisterStage1, "", convert.ToRegisterStage1(p), &out); err != nil {
		return "", err
	}
	if out.RegistrationID == "" {
		return "", c.malformed(PathRegisterStage1, fmt.Errorf("missing registrationId"), msgRegistration)
	}
	return out.RegistrationID, nil
}

// Questions fetches the knowledge-question catalog.
func (c *Client) Questions(ctx context.Context) ([]string, error) {
	var out convert.QuestionsResponse
	if err := c.do(ctx, http.MethodGet, PathQuestions, "", nil, &out); err != nil {
		return nil, err
	}
	return out.Questions, nil
}

// RegisterStage2 submits the enrolled questions.
func (c *Client) RegisterStage2(ctx context.Context, correlationID string, sel []model.QuestionAnswer) error {
	return c.do(ctx, http.MethodPost, PathRegisterStage2, "", convert.ToRegisterStage2(correlationID, sel), nil)
}

// LoginStage1 submits credentials with the challenge answer.
func (c *Client) LoginStage1(ctx context.Context, cr model.Credentials) (model.LoginChallenge, error) {
	var out convert.LoginStage1Response
	if err := c.do(ctx, http.MethodPost, PathLoginStage1, "", convert.ToLoginStage1(cr), &out); err != nil {
		return model.LoginChallenge{}, err
	}
	lc, err := convert.FromLoginStage1(out)
	if err != nil {
		return model.LoginChallenge{}, c.malformed(PathLoginStage1, err, msgLoginStage1)
	}
	return lc, nil
}

// LoginStage2 submits positional answers and returns the issued identity.
func (c *Client) LoginStage2(ctx context.Context, correlationID string, answers []string) (model.Identity, error) {
	var out convert.LoginStage2Response
	req := convert.LoginStage2Request{LoginID: correlationID, Answers: answers}
	if err := c.do(ctx, http.MethodPost, PathLoginStage2, "", req, &out); err != nil {
		return model.Identity{}, err
	}
	id, err := convert.FromLoginStage2(out)
	if err != nil {
		return model.Identity{}, c.malformed(PathLoginStage2, err, msgLoginStage2)
	}
	return id, nil
}

// Calendar fetches the full calendar view.
func (c *Client) Calendar(ctx context.Context, token string) (model.CalendarView, error) {
	var out convert.CalendarResponse
	if err := c.do(ctx, http.MethodGet, PathCalendar, token, nil, &out); err != nil {
		return model.CalendarView{}, err
	}
	v, err := convert.FromCalendar(out)
	if err != nil {
		return model.CalendarView{}, c.malformed(PathCalendar, err, errs.MsgServerError)
	}
	return v, nil
}

// Reserve claims a day. The token travels both in the body and as a bearer header.
func (c *Client) Reserve(ctx context.Context, token string, id model.DayID) error {
	return c.do(ctx, http.MethodPost, PathReserve, token, convert.ReserveRequest{Token: token, DateID: id}, nil)
}

// ---- plumbing ----

func (c *Client) malformed(path string, cause error, msg string) error {
	c.log.Warn("malformed response", zap.String("path", path), zap.Error(cause))
	return &errs.RemoteError{Status: http.StatusOK, Message: msg}
}

// do performs one exchange and normalizes every failure into RemoteError or TransportError.
func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return &errs.TransportError{Err: err}
	}
	reqID, _ := uuid.NewV4()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID.String())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		c.log.Info("http",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", reqID.String()),
			zap.Duration("dur", time.Since(start)),
			zap.Error(err),
		)
		return &errs.TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	// only metadata, never payloads
	c.log.Info("http",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", reqID.String()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("dur", time.Since(start)),
	)
	if err != nil {
		return &errs.TransportError{Err: err}
	}

	var eb convert.ErrorBody
	_ = json.Unmarshal(raw, &eb)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := eb.Error
		if msg == "" {
			msg = eb.Message
		}
		return &errs.RemoteError{Status: resp.StatusCode, Message: msg}
	}
	if eb.Error != "" {
		return &errs.RemoteError{Status: resp.StatusCode, Message: eb.Error}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &errs.TransportError{Err: fmt.Errorf("decode %s: %w", path, err)}
	}
	return nil
}

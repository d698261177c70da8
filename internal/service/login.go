package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/and161185/slotguard/internal/api"
	"github.com/and161185/slotguard/internal/errs"
	"github.com/and161185/slotguard/internal/logging"
	"github.com/and161185/slotguard/internal/model"
	"github.com/and161185/slotguard/internal/session"
)

// LoginStage is the observable stage of a login attempt.
type LoginStage int

const (
	LoginAwaitingChallenge LoginStage = iota
	LoginAwaitingCredentials
	LoginAwaitingKnowledgeAnswers
	LoginAuthenticated
	LoginFailed
)

func (s LoginStage) String() string {
	switch s {
	case LoginAwaitingChallenge:
		return "awaiting_challenge"
	case LoginAwaitingCredentials:
		return "awaiting_credentials"
	case LoginAwaitingKnowledgeAnswers:
		return "awaiting_knowledge_answers"
	case LoginAuthenticated:
		return "authenticated"
	case LoginFailed:
		return "failed"
	}
	return fmt.Sprintf("login_stage(%d)", int(s))
}

type loginState interface{ stage() LoginStage }

type loginAwaitingChallenge struct{}

type loginAwaitingCredentials struct{ challenge model.Challenge }

type loginAwaitingAnswers struct {
	correlationID string
	questions     []string
}

type loginAuthenticated struct{ identity model.Identity }

type loginFailed struct{ err error }

func (loginAwaitingChallenge) stage() LoginStage   { return LoginAwaitingChallenge }
func (loginAwaitingCredentials) stage() LoginStage { return LoginAwaitingCredentials }
func (loginAwaitingAnswers) stage() LoginStage     { return LoginAwaitingKnowledgeAnswers }
func (loginAuthenticated) stage() LoginStage       { return LoginAuthenticated }
func (loginFailed) stage() LoginStage              { return LoginFailed }

// Login drives the two-stage login flow. A challenge is single-use: it is
// consumed before credentials are sent and replaced after every rejection.
type Login struct {
	api  api.LoginAPI
	sess *session.Manager
	log  *zap.Logger

	sf singleflight.Group

	mu    sync.RWMutex
	state loginState
}

// NewLogin constructs the controller in LoginAwaitingChallenge. Call Start to fetch the first challenge.
func NewLogin(a api.LoginAPI, sess *session.Manager, log *zap.Logger) *Login {
	log = logging.OrNop(log)
	return &Login{api: a, sess: sess, log: log.Named("login"), state: loginAwaitingChallenge{}}
}

func (l *Login) set(s loginState) {
	l.mu.Lock()
	prev := l.state.stage()
	l.state = s
	l.mu.Unlock()
	if prev != s.stage() {
		l.log.Debug("stage", zap.Stringer("from", prev), zap.Stringer("to", s.stage()))
	}
}

func (l *Login) get() loginState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Stage returns the current stage.
func (l *Login) Stage() LoginStage { return l.get().stage() }

// Challenge returns the loaded challenge, if any.
func (l *Login) Challenge() (model.Challenge, bool) {
	if s, ok := l.get().(loginAwaitingCredentials); ok {
		return s.challenge, true
	}
	return model.Challenge{}, false
}

// Questions returns the knowledge questions issued by stage 1.
func (l *Login) Questions() []string {
	if s, ok := l.get().(loginAwaitingAnswers); ok {
		return append([]string(nil), s.questions...)
	}
	return nil
}

// Identity returns the issued identity once authenticated.
func (l *Login) Identity() (model.Identity, bool) {
	if s, ok := l.get().(loginAuthenticated); ok {
		return s.identity, true
	}
	return model.Identity{}, false
}

// Err returns the failure that moved the controller to LoginFailed.
func (l *Login) Err() error {
	if s, ok := l.get().(loginFailed); ok {
		return s.err
	}
	return nil
}

// Start resets the flow and fetches a fresh challenge.
func (l *Login) Start(ctx context.Context) error {
	l.set(loginAwaitingChallenge{})
	return l.fetchChallenge(ctx)
}

// RefreshChallenge replaces the current challenge. Concurrent calls share one request.
func (l *Login) RefreshChallenge(ctx context.Context) error {
	switch l.get().(type) {
	case loginAwaitingChallenge, loginAwaitingCredentials:
	default:
		return errs.Invalid("no challenge is needed at this stage")
	}
	return l.fetchChallenge(ctx)
}

func (l *Login) fetchChallenge(ctx context.Context) error {
	v, err, shared := l.sf.Do("challenge", func() (any, error) {
		return l.api.Challenge(ctx)
	})
	if err != nil {
		l.log.Info("challenge fetch failed", zap.Error(err))
		l.mu.Lock()
		if _, ok := l.state.(loginAwaitingCredentials); ok {
			l.state = loginAwaitingChallenge{}
		}
		l.mu.Unlock()
		return err
	}
	ch := v.(model.Challenge)
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.state.(type) {
	case loginAwaitingChallenge, loginAwaitingCredentials:
		l.state = loginAwaitingCredentials{challenge: ch}
	default:
		// the flow moved on while the request was in flight
		l.log.Debug("challenge discarded", zap.Bool("shared", shared))
	}
	return nil
}

// SubmitCredentials runs login stage 1 with the loaded challenge.
func (l *Login) SubmitCredentials(ctx context.Context, username, password, challengeAnswer string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return errs.Invalid("username and password are required")
	}
	if strings.TrimSpace(challengeAnswer) == "" {
		return errs.Invalid("captcha answer is required")
	}

	l.mu.Lock()
	st, ok := l.state.(loginAwaitingCredentials)
	if !ok || !st.challenge.Loaded() {
		l.mu.Unlock()
		return errs.ErrChallengeNotReady
	}
	// consumed regardless of outcome
	l.state = loginAwaitingChallenge{}
	l.mu.Unlock()

	lc, err := l.api.LoginStage1(ctx, model.Credentials{
		Username:        username,
		Password:        password,
		ChallengeID:     st.challenge.ID,
		ChallengeAnswer: challengeAnswer,
	})
	if err != nil {
		l.log.Info("stage 1 rejected", zap.String("reason", errs.Message(err)))
		if ferr := l.fetchChallenge(ctx); ferr != nil {
			l.log.Warn("challenge refetch after rejection", zap.Error(ferr))
		}
		if errors.Is(err, errs.ErrTransport) {
			return err
		}
		return errs.ErrLoginRejected
	}
	l.set(loginAwaitingAnswers{correlationID: lc.CorrelationID, questions: lc.Questions})
	return nil
}

// SubmitAnswers runs login stage 2. answers correspond positionally to Questions().
func (l *Login) SubmitAnswers(ctx context.Context, answers []string) error {
	st, ok := l.get().(loginAwaitingAnswers)
	if !ok || st.correlationID == "" {
		l.restart(ctx)
		return errs.ErrSessionExpired
	}
	if len(answers) != len(st.questions) {
		return errs.Invalid(fmt.Sprintf("expected %d answers, got %d", len(st.questions), len(answers)))
	}
	for _, a := range answers {
		if strings.TrimSpace(a) == "" {
			return errs.Invalid("every question needs an answer")
		}
	}

	id, err := l.api.LoginStage2(ctx, st.correlationID, answers)
	if err != nil {
		l.log.Info("stage 2 rejected", zap.Error(err))
		if errors.Is(err, errs.ErrSessionExpired) {
			l.restart(ctx)
		}
		return err
	}
	id, err = l.sess.SaveIdentity(ctx, id)
	if err != nil {
		l.log.Error("persist identity", zap.Error(err))
		l.set(loginFailed{err: err})
		return fmt.Errorf("persist identity: %w", err)
	}
	l.set(loginAuthenticated{identity: id})
	return nil
}

// Back abandons stage 2: the correlation and answers are dropped and a brand-new challenge is fetched.
func (l *Login) Back(ctx context.Context) error {
	l.set(loginAwaitingChallenge{})
	return l.fetchChallenge(ctx)
}

func (l *Login) restart(ctx context.Context) {
	l.set(loginAwaitingChallenge{})
	if err := l.fetchChallenge(ctx); err != nil {
		l.log.Warn("challenge fetch on restart", zap.Error(err))
	}
}

// Package service contains the verification controllers (registration, login)
// and the reservation board with its countdown.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/slotguard/internal/api"
	"github.com/and161185/slotguard/internal/errs"
	"github.com/and161185/slotguard/internal/logging"
	"github.com/and161185/slotguard/internal/model"
	"github.com/and161185/slotguard/internal/session"
)

// MinPasswordLen is the shortest password accepted at registration.
const MinPasswordLen = 6

// RequiredQuestions is how many catalog questions a user enrolls.
const RequiredQuestions = 3

// RegistrationCompleteMessage is shown once stage 2 succeeds.
const RegistrationCompleteMessage = "Registration complete — you can now login."

// RegistrationStage is the observable stage of a registration attempt.
type RegistrationStage int

const (
	RegistrationAwaitingStage1 RegistrationStage = iota
	RegistrationAwaitingStage2
	RegistrationComplete
	RegistrationFailed
)

func (s RegistrationStage) String() string {
	switch s {
	case RegistrationAwaitingStage1:
		return "awaiting_stage1"
	case RegistrationAwaitingStage2:
		return "awaiting_stage2"
	case RegistrationComplete:
		return "complete"
	case RegistrationFailed:
		return "failed"
	}
	return fmt.Sprintf("registration_stage(%d)", int(s))
}

// registration states; each carries only what is valid at that stage.
type regState interface{ stage() RegistrationStage }

// regStage1 may still hold a correlation when stage 1 succeeded but the catalog did not load.
type regStage1 struct{ correlationID string }

type regStage2 struct {
	correlationID string
	catalog       []string
}

type regComplete struct{}

type regFailed struct{ err error }

func (regStage1) stage() RegistrationStage   { return RegistrationAwaitingStage1 }
func (regStage2) stage() RegistrationStage   { return RegistrationAwaitingStage2 }
func (regComplete) stage() RegistrationStage { return RegistrationComplete }
func (regFailed) stage() RegistrationStage   { return RegistrationFailed }

// Registration drives the two-stage registration flow. It never retries.
type Registration struct {
	api  api.RegistrationAPI
	sess *session.Manager
	log  *zap.Logger

	mu    sync.RWMutex
	state regState
}

// NewRegistration constructs the controller at stage 1.
func NewRegistration(a api.RegistrationAPI, sess *session.Manager, log *zap.Logger) *Registration {
	log = logging.OrNop(log)
	return &Registration{api: a, sess: sess, log: log.Named("registration"), state: regStage1{}}
}

func (r *Registration) set(s regState) {
	r.mu.Lock()
	prev := r.state.stage()
	r.state = s
	r.mu.Unlock()
	if prev != s.stage() {
		r.log.Debug("stage", zap.Stringer("from", prev), zap.Stringer("to", s.stage()))
	}
}

func (r *Registration) get() regState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Stage returns the current stage.
func (r *Registration) Stage() RegistrationStage { return r.get().stage() }

// CorrelationID returns the in-memory correlation, "" when none is held.
func (r *Registration) CorrelationID() string {
	switch s := r.get().(type) {
	case regStage1:
		return s.correlationID
	case regStage2:
		return s.correlationID
	}
	return ""
}

// Catalog returns the question catalog loaded for stage 2.
func (r *Registration) Catalog() []string {
	if s, ok := r.get().(regStage2); ok {
		return append([]string(nil), s.catalog...)
	}
	return nil
}

// Err returns the failure that moved the controller to RegistrationFailed.
func (r *Registration) Err() error {
	if s, ok := r.get().(regFailed); ok {
		return s.err
	}
	return nil
}

func validateProfile(p model.Profile) error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return errs.Invalid("name is required")
	case strings.TrimSpace(p.Email) == "":
		return errs.Invalid("email is required")
	case p.Password != p.ConfirmPassword:
		return errs.Invalid("passwords do not match")
	case len(p.Password) < MinPasswordLen:
		return errs.Invalid(fmt.Sprintf("password must be at least %d characters", MinPasswordLen))
	}
	return nil
}

// Begin runs stage 1: local checks, the stage-1 call, persisting the
// correlation and loading the question catalog.
func (r *Registration) Begin(ctx context.Context, p model.Profile) error {
	if err := validateProfile(p); err != nil {
		return err
	}
	id, err := r.api.RegisterStage1(ctx, p)
	if err != nil {
		r.log.Info("stage 1 rejected", zap.Error(err))
		return err
	}
	if err := r.sess.SaveRegistrationID(ctx, id); err != nil {
		r.log.Error("persist registration id", zap.Error(err))
		r.set(regFailed{err: err})
		return fmt.Errorf("persist registration: %w", err)
	}
	r.set(regStage1{correlationID: id})
	return r.loadCatalog(ctx, id)
}

// loadCatalog moves to stage 2 when the catalog loads; otherwise stays in stage 1.
func (r *Registration) loadCatalog(ctx context.Context, id string) error {
	catalog, err := r.api.Questions(ctx)
	if err == nil && len(catalog) < RequiredQuestions {
		err = fmt.Errorf("catalog has %d questions", len(catalog))
	}
	if err != nil {
		r.log.Warn("question catalog", zap.Error(err))
		if errors.Is(err, errs.ErrSessionExpired) {
			r.discard(ctx)
			return err
		}
		r.set(regStage1{correlationID: id})
		return fmt.Errorf("%w: %s", errs.ErrCatalogUnavailable, errs.Message(err))
	}
	r.set(regStage2{correlationID: id, catalog: append([]string(nil), catalog...)})
	return nil
}

func validateSelections(sel []model.QuestionAnswer, catalog []string) error {
	if len(sel) != RequiredQuestions {
		return errs.Invalid(fmt.Sprintf("select exactly %d questions", RequiredQuestions))
	}
	known := make(map[string]struct{}, len(catalog))
	for _, q := range catalog {
		known[q] = struct{}{}
	}
	seen := make(map[string]struct{}, len(sel))
	for _, s := range sel {
		if strings.TrimSpace(s.Question) == "" {
			return errs.Invalid("every question must be selected")
		}
		if _, ok := known[s.Question]; !ok {
			return errs.Invalid(fmt.Sprintf("unknown question %q", s.Question))
		}
		if _, dup := seen[s.Question]; dup {
			return errs.Invalid("questions must be distinct")
		}
		seen[s.Question] = struct{}{}
		if strings.TrimSpace(s.Answer) == "" {
			return errs.Invalid("every question needs an answer")
		}
	}
	return nil
}

// Complete runs stage 2 for correlationID, which must be the one issued by
// Begin or Resume. A stale id or a server-side expiry sends the flow back to
// stage 1 with the stored correlation discarded.
func (r *Registration) Complete(ctx context.Context, correlationID string, sel []model.QuestionAnswer) error {
	if correlationID == "" {
		r.discard(ctx)
		return errs.ErrSessionExpired
	}
	st, ok := r.get().(regStage2)
	if !ok {
		return errs.Invalid("question catalog not loaded")
	}
	if correlationID != st.correlationID {
		r.log.Info("stale registration id")
		r.discard(ctx)
		return errs.ErrSessionExpired
	}
	if err := validateSelections(sel, st.catalog); err != nil {
		return err
	}
	if err := r.api.RegisterStage2(ctx, correlationID, sel); err != nil {
		r.log.Info("stage 2 rejected", zap.Error(err))
		if errors.Is(err, errs.ErrSessionExpired) {
			r.discard(ctx)
		}
		return err
	}
	if err := r.sess.ClearRegistrationID(ctx); err != nil {
		r.log.Warn("clear registration id", zap.Error(err))
	}
	r.set(regComplete{})
	return nil
}

// Resume restores a persisted correlation after a restart. The catalog is
// always refetched; when that fails the flow restarts at stage 1.
func (r *Registration) Resume(ctx context.Context) error {
	id, err := r.sess.LoadRegistrationID(ctx)
	if err != nil {
		r.log.Error("load registration id", zap.Error(err))
		r.set(regFailed{err: err})
		return fmt.Errorf("load registration: %w", err)
	}
	if id == "" {
		r.set(regStage1{})
		return nil
	}
	return r.loadCatalog(ctx, id)
}

// Back abandons stage 2 and returns to stage 1.
func (r *Registration) Back(ctx context.Context) error { return r.Restart(ctx) }

// Restart discards any correlation and returns to stage 1. It also recovers from RegistrationFailed.
func (r *Registration) Restart(ctx context.Context) error {
	err := r.sess.ClearRegistrationID(ctx)
	r.set(regStage1{})
	if err != nil {
		r.log.Warn("clear registration id", zap.Error(err))
		return fmt.Errorf("clear registration: %w", err)
	}
	return nil
}

func (r *Registration) discard(ctx context.Context) {
	if err := r.sess.ClearRegistrationID(ctx); err != nil {
		r.log.Warn("clear registration id", zap.Error(err))
	}
	r.set(regStage1{})
}

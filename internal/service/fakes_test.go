package service

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/and161185/slotguard/internal/api"
	"github.com/and161185/slotguard/internal/model"
	"github.com/and161185/slotguard/internal/repository/memory"
	"github.com/and161185/slotguard/internal/session"
)

// ---- registration api ----

type fakeRegistrationAPI struct {
	mu sync.Mutex

	stage1ID   string
	stage1Err  error
	catalog    []string
	catalogErr error
	stage2Err  error

	stage1Calls  int
	catalogCalls int
	stage2Calls  int
	lastSel      []model.QuestionAnswer
	lastCorr     string
}

var _ api.RegistrationAPI = (*fakeRegistrationAPI)(nil)

func (f *fakeRegistrationAPI) RegisterStage1(_ context.Context, _ model.Profile) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stage1Calls++
	return f.stage1ID, f.stage1Err
}

func (f *fakeRegistrationAPI) Questions(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.catalogCalls++
	if f.catalogErr != nil {
		return nil, f.catalogErr
	}
	return append([]string(nil), f.catalog...), nil
}

func (f *fakeRegistrationAPI) RegisterStage2(_ context.Context, corr string, sel []model.QuestionAnswer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stage2Calls++
	f.lastCorr = corr
	f.lastSel = append([]model.QuestionAnswer(nil), sel...)
	return f.stage2Err
}

// ---- login api ----

type fakeLoginAPI struct {
	mu sync.Mutex

	challengeErr error
	challengeN   int
	// gate, when set, blocks Challenge until closed
	gate chan struct{}

	stage1      model.LoginChallenge
	stage1Err   error
	stage2      model.Identity
	stage2Err   error
	usedIDs     []string
	lastAnswer  []string
	stage1Calls int
	stage2Calls int
}

var _ api.LoginAPI = (*fakeLoginAPI)(nil)

func (f *fakeLoginAPI) Challenge(context.Context) (model.Challenge, error) {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.challengeN++
	if f.challengeErr != nil {
		return model.Challenge{}, f.challengeErr
	}
	return model.Challenge{ID: "c" + strconv.Itoa(f.challengeN), Artifact: "<svg/>"}, nil
}

func (f *fakeLoginAPI) LoginStage1(_ context.Context, c model.Credentials) (model.LoginChallenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stage1Calls++
	f.usedIDs = append(f.usedIDs, c.ChallengeID)
	return f.stage1, f.stage1Err
}

func (f *fakeLoginAPI) LoginStage2(_ context.Context, _ string, answers []string) (model.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stage2Calls++
	f.lastAnswer = append([]string(nil), answers...)
	return f.stage2, f.stage2Err
}

func (f *fakeLoginAPI) challenges() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.challengeN
}

// ---- calendar api ----

type fakeCalendarAPI struct {
	mu sync.Mutex

	view       model.CalendarView
	calErr     error
	reserveErr error
	// afterReserve, when set, replaces the view served after a successful reservation
	afterReserve *model.CalendarView
	// reserveGate, when set, blocks Reserve until closed
	reserveGate chan struct{}
	// onReserve runs at the start of Reserve, before the gate
	onReserve func()

	calendarCalls int
	reserved      []model.DayID
	tokens        []string
}

var _ api.CalendarAPI = (*fakeCalendarAPI)(nil)

func (f *fakeCalendarAPI) Calendar(_ context.Context, token string) (model.CalendarView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calendarCalls++
	f.tokens = append(f.tokens, token)
	if f.calErr != nil {
		return model.CalendarView{}, f.calErr
	}
	return f.view.Clone(), nil
}

func (f *fakeCalendarAPI) Reserve(_ context.Context, token string, id model.DayID) error {
	f.mu.Lock()
	hook, gate := f.onReserve, f.reserveGate
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	if f.reserveErr != nil {
		return f.reserveErr
	}
	f.reserved = append(f.reserved, id)
	if f.afterReserve != nil {
		f.view = *f.afterReserve
	}
	return nil
}

func (f *fakeCalendarAPI) setView(v model.CalendarView) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.view = v
}

// ---- ticker ----

// manualTicker delivers ticks only when the test calls fire.
type manualTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
}

func (m *manualTicker) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

type tickerFactory struct {
	mu      sync.Mutex
	tickers []*manualTicker
}

func (f *tickerFactory) New(time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &manualTicker{ch: make(chan time.Time)}
	f.tickers = append(f.tickers, t)
	return t
}

func (f *tickerFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tickers)
}

func (f *tickerFactory) last() *manualTicker {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.tickers) == 0 {
		return nil
	}
	return f.tickers[len(f.tickers)-1]
}

// fire delivers one tick to t and reports whether anybody received it.
func fire(t *manualTicker) bool {
	select {
	case t.ch <- time.Now():
		return true
	case <-time.After(100 * time.Millisecond):
		return false
	}
}

// ---- helpers ----

func newSession(t *testing.T) *session.Manager {
	t.Helper()
	return session.NewManager(memory.New(), time.Hour)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/slotguard/internal/api"
	"github.com/and161185/slotguard/internal/errs"
	"github.com/and161185/slotguard/internal/logging"
	"github.com/and161185/slotguard/internal/model"
	"github.com/and161185/slotguard/internal/session"
)

// Snapshot is a consistent copy of the board handed to observers.
type Snapshot struct {
	View      model.CalendarView
	Loaded    bool
	Countdown int
	Armed     bool
	Pending   []model.DayID
}

// BoardOption customizes a Board.
type BoardOption func(*Board)

// WithTicker replaces the ticker factory (tests drive ticks by hand).
func WithTicker(f TickerFunc) BoardOption { return func(b *Board) { b.newTicker = f } }

// WithTick sets the tick interval.
func WithTick(d time.Duration) BoardOption { return func(b *Board) { b.tick = d } }

// WithInitialCountdown sets the value the countdown arms at.
func WithInitialCountdown(n int) BoardOption { return func(b *Board) { b.initial = n } }

// WithOnChange registers an observer called after every state change, outside the board lock.
func WithOnChange(fn func(Snapshot)) BoardOption { return func(b *Board) { b.onChange = fn } }

// WithLogger sets the board logger.
func WithLogger(l *zap.Logger) BoardOption { return func(b *Board) { b.log = l } }

// Board owns the calendar view, the pending reservations and the single global countdown.
type Board struct {
	api       api.CalendarAPI
	sess      *session.Manager
	log       *zap.Logger
	initial   int
	tick      time.Duration
	newTicker TickerFunc
	onChange  func(Snapshot)

	mu      sync.Mutex
	view    model.CalendarView
	loaded  bool
	pending map[model.DayID]struct{}
	cd      *countdown // nil when unarmed
	gen     uint64
}

// NewBoard constructs an empty, unarmed board.
func NewBoard(a api.CalendarAPI, sess *session.Manager, opts ...BoardOption) *Board {
	b := &Board{
		api:       a,
		sess:      sess,
		log:       zap.NewNop(),
		initial:   InitialCountdown,
		tick:      time.Second,
		newTicker: NewTicker,
		pending:   map[model.DayID]struct{}{},
	}
	for _, o := range opts {
		o(b)
	}
	b.log = logging.OrNop(b.log).Named("board")
	return b
}

// LoadView replaces the view from the server and, in the same critical
// section, arms the countdown when a day is available and no reservation is
// pending, or disarms it otherwise. On failure the previous view and countdown
// are left untouched.
func (b *Board) LoadView(ctx context.Context) error {
	id, err := b.sess.LoadIdentity(ctx)
	if err != nil {
		return err
	}
	v, err := b.api.Calendar(ctx, id.Token)
	if err != nil {
		b.log.Info("calendar fetch failed", zap.Error(err))
		b.dropRefusedSession(ctx, err)
		return err
	}
	if err := v.Validate(); err != nil {
		b.log.Warn("invalid calendar", zap.Error(err))
		return fmt.Errorf("%w: %s", errs.ErrRemoteRejection, errs.MsgServerError)
	}

	b.mu.Lock()
	b.view = v
	b.loaded = true
	// an in-flight reservation keeps the countdown disarmed until it settles
	if v.HasAvailable() && len(b.pending) == 0 {
		b.armLocked()
	} else {
		b.disarmLocked()
	}
	snap := b.snapshotLocked()
	b.mu.Unlock()

	b.notify(snap)
	return nil
}

// Arm (re)starts the countdown at its initial value. It is a no-op while a
// reservation is pending.
func (b *Board) Arm() {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.armLocked()
	}
	snap := b.snapshotLocked()
	b.mu.Unlock()
	b.notify(snap)
}

// Reserve claims dayID. The countdown is disarmed before anything else,
// including validation, so a tick can never expire a day being claimed.
func (b *Board) Reserve(ctx context.Context, dayID model.DayID) error {
	b.mu.Lock()
	b.disarmLocked()
	if _, busy := b.pending[dayID]; busy {
		snap := b.snapshotLocked()
		b.mu.Unlock()
		b.notify(snap)
		return errs.ErrReservationPending
	}
	d, ok := b.view.Day(dayID)
	if !ok || d.Status != model.StatusAvailable {
		snap := b.snapshotLocked()
		b.mu.Unlock()
		b.notify(snap)
		if !ok {
			return errs.Invalid(fmt.Sprintf("unknown day %q", dayID))
		}
		return errs.Invalid(fmt.Sprintf("day %q is %s", dayID, d.Status))
	}
	b.pending[dayID] = struct{}{}
	snap := b.snapshotLocked()
	b.mu.Unlock()
	b.notify(snap)

	err := b.reserve(ctx, dayID)

	b.mu.Lock()
	delete(b.pending, dayID)
	snap = b.snapshotLocked()
	b.mu.Unlock()
	b.notify(snap)

	if err != nil {
		b.log.Info("reservation rejected", zap.String("day", string(dayID)), zap.Error(err))
		return err
	}
	// the day is held server-side; a failed reload only leaves the view stale
	if err := b.LoadView(ctx); err != nil {
		b.log.Warn("reload after reservation", zap.String("day", string(dayID)), zap.Error(err))
	}
	return nil
}

func (b *Board) reserve(ctx context.Context, dayID model.DayID) error {
	id, err := b.sess.LoadIdentity(ctx)
	if err != nil {
		return err
	}
	err = b.api.Reserve(ctx, id.Token, dayID)
	b.dropRefusedSession(ctx, err)
	return err
}

// dropRefusedSession clears the stored identity once the server refused its token.
func (b *Board) dropRefusedSession(ctx context.Context, err error) {
	if err == nil || !errors.Is(err, errs.ErrUnauthenticated) {
		return
	}
	if cerr := b.sess.Clear(ctx); cerr != nil {
		b.log.Warn("clear refused session", zap.Error(cerr))
	}
}

// Countdown returns the remaining ticks and whether the countdown is armed.
func (b *Board) Countdown() (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cd == nil {
		return 0, false
	}
	return b.cd.remaining, true
}

// View returns a copy of the current view and whether one was loaded.
func (b *Board) View() (model.CalendarView, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.view.Clone(), b.loaded
}

// Pending reports whether a reservation for dayID is in flight.
func (b *Board) Pending(dayID model.DayID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.pending[dayID]
	return ok
}

// Snapshot returns the current board state.
func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

// Close stops the countdown. The board stays readable.
func (b *Board) Close() {
	b.mu.Lock()
	b.disarmLocked()
	b.mu.Unlock()
}

// Logout stops the countdown, forgets the view and clears the stored identity.
func (b *Board) Logout(ctx context.Context) error {
	b.mu.Lock()
	b.disarmLocked()
	b.view = model.CalendarView{}
	b.loaded = false
	snap := b.snapshotLocked()
	b.mu.Unlock()
	b.notify(snap)
	return b.sess.Clear(ctx)
}

// armLocked disarms any existing countdown before starting a new one.
func (b *Board) armLocked() {
	b.disarmLocked()
	b.gen++
	c := &countdown{
		gen:       b.gen,
		remaining: b.initial,
		ticker:    b.newTicker(b.tick),
		stop:      make(chan struct{}),
	}
	b.cd = c
	b.log.Debug("countdown armed", zap.Uint64("gen", c.gen), zap.Int("remaining", c.remaining))
	go b.run(c)
}

func (b *Board) disarmLocked() {
	if b.cd == nil {
		return
	}
	b.log.Debug("countdown disarmed", zap.Uint64("gen", b.cd.gen), zap.Int("remaining", b.cd.remaining))
	b.cd.cancel()
	b.cd = nil
}

func (b *Board) run(c *countdown) {
	for {
		select {
		case <-c.stop:
			return
		case <-c.ticker.C():
			if !b.onTick(c) {
				return
			}
		}
	}
}

// onTick applies one decrement if c is still the armed countdown and reports whether c keeps running.
func (b *Board) onTick(c *countdown) bool {
	b.mu.Lock()
	if b.cd == nil || b.cd.gen != c.gen {
		b.mu.Unlock()
		return false
	}
	c.remaining--
	running := true
	if c.remaining <= 0 {
		b.disarmLocked()
		n := b.view.ExpireAvailable()
		b.log.Info("countdown expired", zap.Int("locked", n))
		running = false
	}
	snap := b.snapshotLocked()
	b.mu.Unlock()

	b.notify(snap)
	return running
}

func (b *Board) snapshotLocked() Snapshot {
	s := Snapshot{View: b.view.Clone(), Loaded: b.loaded}
	if b.cd != nil {
		s.Countdown, s.Armed = b.cd.remaining, true
	}
	for id := range b.pending {
		s.Pending = append(s.Pending, id)
	}
	sort.Slice(s.Pending, func(i, j int) bool { return s.Pending[i] < s.Pending[j] })
	return s
}

func (b *Board) notify(s Snapshot) {
	if b.onChange != nil {
		b.onChange(s)
	}
}

package service

import (
	"fmt"
	"time"
)

// InitialCountdown is the value the countdown arms at, in ticks.
const InitialCountdown = 10

// Ticker is the subset of *time.Ticker the countdown needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

// NewTicker wraps time.NewTicker.
func NewTicker(d time.Duration) Ticker { return stdTicker{t: time.NewTicker(d)} }

// countdown is the single armed timer handle owned by a Board.
// gen identifies the arming; a tick from an older arming is ignored.
type countdown struct {
	gen       uint64
	remaining int
	ticker    Ticker
	stop      chan struct{}
}

func (c *countdown) cancel() {
	c.ticker.Stop()
	close(c.stop)
}

// CountdownBanner is the warning shown while the countdown runs.
func CountdownBanner(n int) string {
	return fmt.Sprintf("All slots will be locked in %ds if no action is taken", n)
}

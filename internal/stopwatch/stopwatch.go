package stopwatch

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"stopwatch-widget/backend/internal/clock"
)

// DefaultTickInterval is the nominal refresh period while running.
const DefaultTickInterval = 10 * time.Millisecond

// Controller is the stopwatch state machine. It has two states,
// stopped and running, and serializes every operation (including
// ticks) under a single mutex so each runs to completion before the
// next starts.
type Controller struct {
	mu   sync.Mutex
	clk  clock.Clock
	sink DisplaySink

	id           string
	tickInterval time.Duration

	running   bool
	closed    bool
	startedAt time.Time
	elapsed   time.Duration
	laps      []LapRecord

	// gen guards against ticks that were already scheduled when the
	// run they belong to was cancelled.
	gen  uint64
	stop chan struct{}
}

// New constructs a stopped controller with zero elapsed time. The
// clock and sink are required; a non-positive tick interval falls back
// to DefaultTickInterval.
func New(clk clock.Clock, sink DisplaySink, tickInterval time.Duration) (*Controller, error) {
	if clk == nil {
		return nil, errors.New("stopwatch: clock is required")
	}
	if sink == nil {
		return nil, errors.New("stopwatch: display sink is required")
	}
	if tickInterval <= 0 {
		tickInterval = DefaultTickInterval
	}
	c := &Controller{
		clk:          clk,
		sink:         sink,
		id:           uuid.NewString(),
		tickInterval: tickInterval,
	}
	c.mu.Lock()
	c.pushLocked()
	c.mu.Unlock()
	return c, nil
}

// ID returns the controller's session identity.
func (c *Controller) ID() string {
	return c.id
}

// Start transitions the controller to running and begins the periodic
// tick. Calling it while already running is a no-op.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.running {
		return
	}
	c.startedAt = c.clk.Now().Add(-c.elapsed)
	c.running = true
	c.gen++
	c.stop = make(chan struct{})
	go c.runTicks(c.gen, c.stop)
	c.pushLocked()
}

// Pause freezes elapsed time at its current computed value and cancels
// the tick. Calling it while stopped is a no-op.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.running {
		return
	}
	c.elapsed = c.clk.Now().Sub(c.startedAt)
	c.stopTickLocked()
	c.pushLocked()
}

// Reset returns the controller to its initial state from either state:
// elapsed zeroed, laps cleared, sequence numbering restarted.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.running {
		c.stopTickLocked()
	}
	c.elapsed = 0
	c.laps = nil
	c.pushLocked()
}

// Lap appends a lap record at the current elapsed time. It is a silent
// no-op while stopped.
func (c *Controller) Lap() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.running {
		return
	}
	elapsed := c.elapsedLocked()
	record := LapRecord{
		Sequence:      len(c.laps) + 1,
		Elapsed:       elapsed,
		ElapsedMs:     float64(elapsed.Milliseconds()),
		FormattedTime: FormatDuration(elapsed),
		WallClock:     c.clk.Now().UTC().Format(time.RFC3339Nano),
	}
	c.laps = append(c.laps, record)
	c.pushLocked()
}

// State returns a read-only snapshot of the controller.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	elapsed := c.elapsedLocked()
	laps := make([]LapView, 0, len(c.laps))
	for _, lap := range c.laps {
		laps = append(laps, LapView{Sequence: lap.Sequence, FormattedTime: lap.FormattedTime})
	}
	return State{
		SessionID:     c.id,
		Running:       c.running,
		ElapsedMs:     float64(elapsed.Milliseconds()),
		FormattedTime: FormatDuration(elapsed),
		LapCount:      len(c.laps),
		Laps:          laps,
	}
}

// Close stops the tick and detaches the controller. Operations on a
// closed controller are no-ops.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.running {
		c.elapsed = c.clk.Now().Sub(c.startedAt)
		c.stopTickLocked()
	}
	c.closed = true
}

// elapsedLocked computes the live elapsed time. While running it is
// always recomputed from the start timestamp rather than accumulated,
// which keeps the tick drift-free.
func (c *Controller) elapsedLocked() time.Duration {
	if c.running {
		return c.clk.Now().Sub(c.startedAt)
	}
	return c.elapsed
}

// stopTickLocked cancels the periodic tick. Bumping the generation
// makes any already-fired tick drop itself when it acquires the lock.
func (c *Controller) stopTickLocked() {
	c.running = false
	c.gen++
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

func (c *Controller) runTicks(gen uint64, stop <-chan struct{}) {
	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.onTick(gen)
		}
	}
}

func (c *Controller) onTick(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.running || gen != c.gen {
		return
	}
	c.pushLocked()
}

// pushLocked builds the full display snapshot and hands it to the
// sink. Push failures never surface to the operation that caused them.
func (c *Controller) pushLocked() {
	elapsed := c.elapsedLocked()
	laps := make([]LapRecord, 0, len(c.laps))
	for i := len(c.laps) - 1; i >= 0; i-- {
		laps = append(laps, c.laps[i])
	}
	snapshot := DisplaySnapshot{
		SessionID:     c.id,
		FormattedTime: FormatDuration(elapsed),
		Running:       c.running,
		Controls: ControlStates{
			Start: !c.running,
			Pause: c.running,
			Lap:   c.running,
			Reset: true,
		},
		Laps: laps,
	}
	if err := c.sink.Push(snapshot); err != nil {
		logrus.WithError(err).WithField("session", c.id).Warn("push display snapshot")
	}
}

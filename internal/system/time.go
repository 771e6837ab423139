package system

import (
	"fmt"
	"math"
	"time"

	"github.com/stellardominion/engine/internal/core/event"
	"github.com/stellardominion/engine/internal/core/simerr"
	coresys "github.com/stellardominion/engine/internal/core/system"
	"github.com/stellardominion/engine/internal/world"
)

const (
	// TickDuration is the simulated time covered by one tick.
	TickDuration = 100 * time.Millisecond
	// MaxSpeed is the highest accepted speed multiplier.
	MaxSpeed = 10
	// MaxSafeTick is the last tick the clock will advance past.
	MaxSafeTick = math.MaxUint64 - 1000
)

// Seconds converts a float delta in seconds to a Duration rounded to the
// microsecond, so 0.05 and 0.05 add up to exactly one tick.
func Seconds(s float32) (time.Duration, error) {
	f := float64(s)
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, fmt.Errorf("delta %v seconds: %w", s, simerr.ErrValidation)
	}
	us := math.Round(f * 1e6)
	if us > float64(math.MaxInt64/int64(time.Microsecond)) {
		return 0, fmt.Errorf("delta %v seconds: %w", s, simerr.ErrOverflow)
	}
	return time.Duration(us) * time.Microsecond, nil
}

// TimeManager owns the simulation clock. It turns frame deltas into discrete
// ticks and announces each one with TickCompleted. Phase 6 (Time).
type TimeManager struct {
	paused bool
	speed  float32
	acc    time.Duration
	tick   uint64
}

func NewTimeManager() *TimeManager {
	return &TimeManager{speed: 1}
}

func (t *TimeManager) ID() event.SystemID   { return event.SystemTime }
func (t *TimeManager) Phase() coresys.Phase { return coresys.PhaseTime }

// Update accumulates dt scaled by the speed multiplier and emits one
// TickCompleted per whole TickDuration. A paused clock discards dt.
func (t *TimeManager) Update(_ *world.State, dt time.Duration, bus *event.Bus) error {
	if dt < 0 {
		return fmt.Errorf("negative frame delta %v: %w", dt, simerr.ErrValidation)
	}
	if t.paused || t.speed == 0 || dt == 0 {
		return nil
	}
	scaled := math.Round(float64(dt) * float64(t.speed))
	if scaled > float64(math.MaxInt64-t.acc) {
		return fmt.Errorf("frame delta %v at speed %v: %w", dt, t.speed, simerr.ErrOverflow)
	}
	t.acc += time.Duration(scaled)
	for t.acc >= TickDuration {
		if t.tick >= MaxSafeTick {
			return fmt.Errorf("tick %d: %w", t.tick, simerr.ErrOverflow)
		}
		t.tick++
		t.acc -= TickDuration
		bus.Queue(event.TickCompleted{Tick: t.tick})
	}
	return nil
}

// HandleEvent applies pause and speed commands. A rejected speed leaves the
// multiplier unchanged.
func (t *TimeManager) HandleEvent(_ *world.State, ev event.Event) error {
	switch cmd := ev.(type) {
	case event.PauseGame:
		t.paused = cmd.Paused
	case event.SetGameSpeed:
		return t.SetSpeed(cmd.Multiplier)
	}
	return nil
}

// SetSpeed sets the multiplier. Zero halts tick emission without pausing.
func (t *TimeManager) SetSpeed(m float32) error {
	if err := CheckSpeed(m); err != nil {
		return err
	}
	t.speed = m
	return nil
}

// CheckSpeed rejects multipliers outside [0, MaxSpeed].
func CheckSpeed(m float32) error {
	f := float64(m)
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > MaxSpeed {
		return fmt.Errorf("game speed %v outside [0, %d]: %w", m, MaxSpeed, simerr.ErrValidation)
	}
	return nil
}

func (t *TimeManager) SetPaused(p bool) { t.paused = p }

// SetTick moves the clock to tick (after a load) and drops any partial tick.
func (t *TimeManager) SetTick(tick uint64) error {
	if tick > MaxSafeTick {
		return fmt.Errorf("tick %d: %w", tick, simerr.ErrOverflow)
	}
	t.tick = tick
	t.acc = 0
	return nil
}

func (t *TimeManager) CurrentTick() uint64        { return t.tick }
func (t *TimeManager) SpeedMultiplier() float32   { return t.speed }
func (t *TimeManager) IsPaused() bool             { return t.paused }
func (t *TimeManager) Accumulated() time.Duration { return t.acc }

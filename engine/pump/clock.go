package pump

import "time"

// Clock is the time source of a Pump.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// FrameClock is the animation time fed to the kernel. T advances by Step every tick and is pulled back
// by Period whenever it exceeds UpperBound, so it stays in (UpperBound-Period, UpperBound].
type FrameClock struct {
	T          float32
	Step       float32
	UpperBound float32
	Period     float32
}

// DefaultFrameClock returns a clock at t=0 stepping 0.0002 per tick and wrapping above 2 by 1.
func DefaultFrameClock() FrameClock {
	return FrameClock{Step: 0.0002, UpperBound: 2.0, Period: 1.0}
}

// Advance moves T one step forward and wraps it.
func (c *FrameClock) Advance() {
	c.T += c.Step
	if c.T > c.UpperBound {
		c.T -= c.Period
	}
}

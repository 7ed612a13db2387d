// Package control holds the update-rate throttle used by peripheral
// observers (sensors, state publishers) to run slower than the physics
// step.
package control

// Throttle gates an update to a fixed rate against simulation time.
// A rate of zero means "every step".
type Throttle struct {
	period float64
	last   float64
}

// NewThrottle builds a throttle for the given update rate in Hz.
func NewThrottle(rate float64) *Throttle {
	t := &Throttle{}
	t.SetRate(rate)
	return t
}

// SetRate changes the update rate in Hz.
func (t *Throttle) SetRate(rate float64) {
	if rate <= 0 {
		t.period = 0
		return
	}
	t.period = 1.0 / rate
}

// Period returns the update period in seconds.
func (t *Throttle) Period() float64 { return t.period }

// Ready reports whether an update is due at simTime. The comparison is
// rounded to the physics step so a period that is not a step multiple
// still fires.
func (t *Throttle) Ready(simTime, dt float64) bool {
	if t.period == 0 {
		t.last = simTime
		return true
	}
	if dt <= 0 {
		return false
	}
	if (simTime-t.last-t.period)/dt >= 0 {
		t.last = simTime
		return true
	}
	return false
}

// Reset rewinds the throttle to fire on the next Ready call.
func (t *Throttle) Reset() { t.last = -t.period }

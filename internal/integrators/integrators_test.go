package integrators

import (
	"math"
	"testing"
)

// dy/dt = -y has solution y(t) = exp(-t)
func decay(t float64, y []float64) []float64 {
	return []float64{-y[0]}
}

func integrate(integ Integrator, dt float64, steps int) float64 {
	y := []float64{1.0}
	t := 0.0
	for i := 0; i < steps; i++ {
		y = integ.Step(decay, y, t, dt)
		t += dt
	}
	return y[0]
}

func TestEulerDecay(t *testing.T) {
	got := integrate(&Euler{}, 0.001, 1000)
	want := math.Exp(-1)
	if math.Abs(got-want) > 1e-3 {
		t.Errorf("expected %f, got %f", want, got)
	}
}

func TestRK4Decay(t *testing.T) {
	got := integrate(&RK4{}, 0.01, 100)
	want := math.Exp(-1)
	if math.Abs(got-want) > 1e-8 {
		t.Errorf("expected %f, got %f", want, got)
	}
}

func TestRK4Oscillator(t *testing.T) {
	// y'' = -y as a first-order system; y(2*pi) returns to start
	osc := func(t float64, y []float64) []float64 {
		return []float64{y[1], -y[0]}
	}
	integ := &RK4{}
	y := []float64{1, 0}
	dt := 0.001
	steps := int(2 * math.Pi / dt)
	tm := 0.0
	for i := 0; i < steps; i++ {
		y = integ.Step(osc, y, tm, dt)
		tm += dt
	}
	if math.Abs(y[0]-1) > 1e-2 {
		t.Errorf("expected position near 1 after one period, got %f", y[0])
	}
}

func TestNew(t *testing.T) {
	cases := []struct {
		name string
		ok   bool
	}{
		{"euler", true},
		{"rk4", true},
		{"", true},
		{"verlet", false},
	}
	for _, c := range cases {
		_, err := New(c.name)
		if c.ok && err != nil {
			t.Errorf("%q: unexpected error %v", c.name, err)
		}
		if !c.ok && err == nil {
			t.Errorf("%q: expected error", c.name)
		}
	}
}

func TestStepDoesNotMutateInput(t *testing.T) {
	integ := &RK4{}
	y := []float64{1.0}
	integ.Step(decay, y, 0, 0.1)
	if y[0] != 1.0 {
		t.Errorf("input state mutated: %f", y[0])
	}
}

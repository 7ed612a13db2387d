// Package integrators provides fixed-step ODE integrators over flat
// state vectors. The solver adapter owns the vectors; integrators only
// see a derivative callback.
package integrators

import "fmt"

// Derivative evaluates dy/dt at time t for state y.
type Derivative func(t float64, y []float64) []float64

// Integrator advances y by one step of size dt.
type Integrator interface {
	Step(d Derivative, y []float64, t, dt float64) []float64
}

// New returns the named integrator.
func New(name string) (Integrator, error) {
	switch name {
	case "euler":
		return NewEuler(), nil
	case "rk4", "":
		return NewRK4(), nil
	default:
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
}

type Euler struct{}

func NewEuler() *Euler { return &Euler{} }

func (e *Euler) Step(d Derivative, y []float64, t, dt float64) []float64 {
	dy := d(t, y)
	out := make([]float64, len(y))
	for i := range y {
		out[i] = y[i] + dt*dy[i]
	}
	return out
}

type RK4 struct {
	scratch []float64
}

func NewRK4() *RK4 { return &RK4{} }

func (r *RK4) ensureScratch(n int) {
	if len(r.scratch) != n {
		r.scratch = make([]float64, n)
	}
}

func (r *RK4) Step(d Derivative, y []float64, t, dt float64) []float64 {
	n := len(y)
	r.ensureScratch(n)

	k1 := d(t, y)

	for i := 0; i < n; i++ {
		r.scratch[i] = y[i] + dt*0.5*k1[i]
	}
	k2 := d(t+dt*0.5, r.scratch)

	for i := 0; i < n; i++ {
		r.scratch[i] = y[i] + dt*0.5*k2[i]
	}
	k3 := d(t+dt*0.5, r.scratch)

	for i := 0; i < n; i++ {
		r.scratch[i] = y[i] + dt*k3[i]
	}
	k4 := d(t+dt, r.scratch)

	out := make([]float64, n)
	dt6 := dt / 6.0
	for i := 0; i < n; i++ {
		out[i] = y[i] + dt6*(k1[i]+2*k2[i]+2*k3[i]+k4[i])
	}
	return out
}

// Package metrics provides step observers over the generalized state.
package metrics

import (
	"math"
	"time"
)

// Metric accumulates one scalar over a run.
type Metric interface {
	Name() string
	Observe(q, u []float64, t float64)
	Value() float64
	Reset()
}

// KineticEnergy accumulates the mean kinetic energy, weighting each
// velocity slot with the effective inertia it was built with.
type KineticEnergy struct {
	inertia []float64
	total   float64
	samples int
}

// NewKineticEnergy builds the metric around per-slot inertias. A nil or
// short slice falls back to unit inertia.
func NewKineticEnergy(inertia []float64) *KineticEnergy {
	return &KineticEnergy{inertia: inertia}
}

func (k *KineticEnergy) Name() string { return "kinetic_energy" }

func (k *KineticEnergy) Observe(q, u []float64, t float64) {
	var ke float64
	for i, ui := range u {
		in := 1.0
		if i < len(k.inertia) && k.inertia[i] > 0 {
			in = k.inertia[i]
		}
		ke += 0.5 * in * ui * ui
	}
	k.total += ke
	k.samples++
}

func (k *KineticEnergy) Value() float64 {
	if k.samples == 0 {
		return 0
	}
	return k.total / float64(k.samples)
}

func (k *KineticEnergy) Reset() {
	k.total = 0
	k.samples = 0
}

// PeakVelocity tracks the largest absolute generalized velocity seen.
type PeakVelocity struct {
	peak float64
}

func NewPeakVelocity() *PeakVelocity { return &PeakVelocity{} }

func (p *PeakVelocity) Name() string { return "peak_velocity" }

func (p *PeakVelocity) Observe(q, u []float64, t float64) {
	for _, ui := range u {
		p.peak = math.Max(p.peak, math.Abs(ui))
	}
}

func (p *PeakVelocity) Value() float64 { return p.peak }

func (p *PeakVelocity) Reset() { p.peak = 0 }

// StepRate measures wall-clock steps per second.
type StepRate struct {
	start time.Time
	steps int
}

func NewStepRate() *StepRate { return &StepRate{} }

func (s *StepRate) Name() string { return "step_rate" }

func (s *StepRate) Observe(q, u []float64, t float64) {
	if s.steps == 0 {
		s.start = time.Now()
	}
	s.steps++
}

func (s *StepRate) Value() float64 {
	if s.steps < 2 {
		return 0
	}
	elapsed := time.Since(s.start).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(s.steps-1) / elapsed
}

func (s *StepRate) Reset() { s.steps = 0 }

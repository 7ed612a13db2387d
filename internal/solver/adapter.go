// Package solver owns the multibody solver state and the mapping from
// entities to solver-native indices. Joints and links never touch the
// generalized state vectors directly; everything goes through the
// Adapter's accessor surface, so the integrator's buffers cannot be
// aliased from outside a step.
package solver

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/rigsim/rigsim/internal/integrators"
	"github.com/rigsim/rigsim/internal/spatial"
)

var (
	// ErrNotBuilt indicates live-state access before the multibody tree
	// was constructed.
	ErrNotBuilt = errors.New("solver: multibody tree not built")

	// ErrIndexRange indicates a generalized coordinate or velocity index
	// outside a mobilizer's degree-of-freedom count.
	ErrIndexRange = errors.New("solver: index out of range")

	// ErrEmptyHandle indicates an unbound mobilizer handle.
	ErrEmptyHandle = errors.New("solver: empty mobilizer handle")
)

// Mobilizer is an opaque handle to one body's block of generalized state.
// The zero value is not a valid handle; EmptyMobilizer marks an unbound
// one.
type Mobilizer int

// EmptyMobilizer is the handle value held by joints before activation.
const EmptyMobilizer Mobilizer = -1

// MobilizerSpec declares one body's mobility when the tree is built.
type MobilizerSpec struct {
	NumQ     int
	NumU     int
	Inertia  float64 // effective diagonal inertia per DOF
	Damping  float64
	Axis     mgl64.Vec3   // mobility axis in the base frame
	BasePose spatial.Pose // body pose at q = 0
	Slide    bool         // translational mobility instead of rotational
}

type mobilizer struct {
	spec   MobilizerSpec
	qStart int
	uStart int
}

// Adapter binds entities to solver indices and gates all live-state
// access behind two readiness flags: Built (tree constructed) and
// Stepped (at least one step executed).
type Adapter struct {
	log   *slog.Logger
	integ integrators.Integrator

	mobs    []mobilizer
	q       []float64
	u       []float64
	force   []float64 // discrete mobility forces, cleared each step
	built   bool
	stepped bool
	time    float64
}

// New creates an adapter around the given integrator.
func New(integ integrators.Integrator, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{log: log, integ: integ}
}

// AddMobilizer registers one body's mobility and returns its handle.
// It must be called before Build.
func (a *Adapter) AddMobilizer(spec MobilizerSpec) (Mobilizer, error) {
	if a.built {
		return EmptyMobilizer, fmt.Errorf("add mobilizer: tree already built")
	}
	if spec.NumQ < 0 || spec.NumU < 0 {
		return EmptyMobilizer, fmt.Errorf("add mobilizer: negative slot count")
	}
	if spec.Inertia <= 0 {
		spec.Inertia = 1.0
	}
	m := mobilizer{spec: spec, qStart: len(a.q), uStart: len(a.u)}
	a.mobs = append(a.mobs, m)
	a.q = append(a.q, make([]float64, spec.NumQ)...)
	a.u = append(a.u, make([]float64, spec.NumU)...)
	return Mobilizer(len(a.mobs) - 1), nil
}

// Build finalizes the multibody tree. Local coordinate access is live
// from this point on; world-frame queries stay on the fallback path
// until the first step.
func (a *Adapter) Build() error {
	if a.built {
		return fmt.Errorf("build: tree already built")
	}
	a.force = make([]float64, len(a.u))
	a.built = true
	a.log.Debug("multibody tree built",
		"mobilizers", len(a.mobs), "nq", len(a.q), "nu", len(a.u))
	return nil
}

// Built reports whether the multibody tree has been constructed.
func (a *Adapter) Built() bool { return a.built }

// Stepped reports whether the solver has executed at least one step.
func (a *Adapter) Stepped() bool { return a.stepped }

// Time returns the accumulated simulation time.
func (a *Adapter) Time() float64 { return a.time }

func (a *Adapter) mob(m Mobilizer) (*mobilizer, error) {
	if m == EmptyMobilizer {
		return nil, ErrEmptyHandle
	}
	if int(m) < 0 || int(m) >= len(a.mobs) {
		return nil, fmt.Errorf("%w: mobilizer %d", ErrIndexRange, m)
	}
	return &a.mobs[m], nil
}

// NumQ returns the coordinate slot count of a mobilizer.
func (a *Adapter) NumQ(m Mobilizer) int {
	mob, err := a.mob(m)
	if err != nil {
		return 0
	}
	return mob.spec.NumQ
}

// NumU returns the velocity slot count of a mobilizer.
func (a *Adapter) NumU(m Mobilizer) int {
	mob, err := a.mob(m)
	if err != nil {
		return 0
	}
	return mob.spec.NumU
}

// Coordinate returns one generalized coordinate.
func (a *Adapter) Coordinate(m Mobilizer, i int) (float64, error) {
	if !a.built {
		return 0, ErrNotBuilt
	}
	mob, err := a.mob(m)
	if err != nil {
		return 0, err
	}
	if i < 0 || i >= mob.spec.NumQ {
		return 0, fmt.Errorf("%w: q index %d of %d", ErrIndexRange, i, mob.spec.NumQ)
	}
	return a.q[mob.qStart+i], nil
}

// SetCoordinate writes one generalized coordinate.
func (a *Adapter) SetCoordinate(m Mobilizer, i int, v float64) error {
	if !a.built {
		return ErrNotBuilt
	}
	mob, err := a.mob(m)
	if err != nil {
		return err
	}
	if i < 0 || i >= mob.spec.NumQ {
		return fmt.Errorf("%w: q index %d of %d", ErrIndexRange, i, mob.spec.NumQ)
	}
	a.q[mob.qStart+i] = v
	return nil
}

// Velocity returns one generalized velocity.
func (a *Adapter) Velocity(m Mobilizer, i int) (float64, error) {
	if !a.built {
		return 0, ErrNotBuilt
	}
	mob, err := a.mob(m)
	if err != nil {
		return 0, err
	}
	if i < 0 || i >= mob.spec.NumU {
		return 0, fmt.Errorf("%w: u index %d of %d", ErrIndexRange, i, mob.spec.NumU)
	}
	return a.u[mob.uStart+i], nil
}

// SetVelocity writes one generalized velocity.
func (a *Adapter) SetVelocity(m Mobilizer, i int, v float64) error {
	if !a.built {
		return ErrNotBuilt
	}
	mob, err := a.mob(m)
	if err != nil {
		return err
	}
	if i < 0 || i >= mob.spec.NumU {
		return fmt.Errorf("%w: u index %d of %d", ErrIndexRange, i, mob.spec.NumU)
	}
	a.u[mob.uStart+i] = v
	return nil
}

// ApplyMobilityForce adds one scalar generalized force for the next
// step. Forces are discrete: the accumulator is cleared after each step.
func (a *Adapter) ApplyMobilityForce(m Mobilizer, i int, f float64) error {
	if !a.built {
		return ErrNotBuilt
	}
	mob, err := a.mob(m)
	if err != nil {
		return err
	}
	if i < 0 || i >= mob.spec.NumU {
		return fmt.Errorf("%w: u index %d of %d", ErrIndexRange, i, mob.spec.NumU)
	}
	a.force[mob.uStart+i] += f
	return nil
}

// BodyTransform returns the current world pose of a mobilized body,
// composing the base pose with the mobility displacement of the first
// coordinate.
func (a *Adapter) BodyTransform(m Mobilizer) (spatial.Pose, error) {
	if !a.built {
		return spatial.Identity(), ErrNotBuilt
	}
	mob, err := a.mob(m)
	if err != nil {
		return spatial.Identity(), err
	}
	pose := mob.spec.BasePose
	if mob.spec.NumQ == 0 {
		return pose, nil
	}
	q0 := a.q[mob.qStart]
	if mob.spec.Slide {
		return pose.Compose(spatial.Pose{
			Pos: mob.spec.Axis.Mul(q0),
			Rot: mgl64.QuatIdent(),
		}), nil
	}
	return pose.Compose(spatial.Pose{
		Rot: mgl64.QuatRotate(q0, mob.spec.Axis),
	}), nil
}

// Step advances the whole generalized state by dt and clears the
// discrete force accumulator. Not safe for concurrent use; the stepping
// thread owns the adapter.
func (a *Adapter) Step(dt float64) error {
	if !a.built {
		return ErrNotBuilt
	}
	nq, nu := len(a.q), len(a.u)
	y := make([]float64, nq+nu)
	copy(y, a.q)
	copy(y[nq:], a.u)

	deriv := func(t float64, y []float64) []float64 {
		dy := make([]float64, len(y))
		// qdot = u, assuming one velocity slot per coordinate slot
		for _, mob := range a.mobs {
			n := mob.spec.NumQ
			if mob.spec.NumU < n {
				n = mob.spec.NumU
			}
			for i := 0; i < n; i++ {
				dy[mob.qStart+i] = y[nq+mob.uStart+i]
			}
			for i := 0; i < mob.spec.NumU; i++ {
				ui := y[nq+mob.uStart+i]
				f := a.force[mob.uStart+i]
				dy[nq+mob.uStart+i] = (f - mob.spec.Damping*ui) / mob.spec.Inertia
			}
		}
		return dy
	}

	y = a.integ.Step(deriv, y, a.time, dt)
	copy(a.q, y[:nq])
	copy(a.u, y[nq:])
	for i := range a.force {
		a.force[i] = 0
	}
	a.time += dt
	a.stepped = true
	return nil
}

// Reset tears the solver state down. Mobilizers must be re-registered
// and Build called again before the next step; callers are expected to
// snapshot joint state around the teardown.
func (a *Adapter) Reset() {
	a.mobs = nil
	a.q = nil
	a.u = nil
	a.force = nil
	a.built = false
	a.stepped = false
	a.time = 0
	a.log.Debug("solver state torn down")
}

// CopyState returns copies of the full coordinate and velocity vectors,
// for observers that must not alias the integrator's buffers.
func (a *Adapter) CopyState() (q, u []float64) {
	q = make([]float64, len(a.q))
	u = make([]float64, len(a.u))
	copy(q, a.q)
	copy(u, a.u)
	return q, u
}

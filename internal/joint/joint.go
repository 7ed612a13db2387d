// Package joint implements the uniform joint abstraction over the
// solver adapter. A joint exposes generalized angles, velocities, and
// forces regardless of which solver backs it; before activation every
// accessor degrades to a documented fallback instead of failing.
package joint

import (
	"log/slog"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/rigsim/rigsim/internal/solver"
	"github.com/rigsim/rigsim/internal/spatial"
)

// BindState tracks a joint's activation. The transition Unbound->Bound
// is one-way; a solver rebuild passes through Unbind/Bind with the
// snapshot intact, never dropping it.
type BindState int

const (
	Unbound BindState = iota
	Bound
)

func (s BindState) String() string {
	if s == Bound {
		return "bound"
	}
	return "unbound"
}

// Joint is one mechanical constraint between two links. It references
// its links by id only; the scene graph owns both the joint and the
// links.
type Joint struct {
	Name string
	ID   uint32

	parentLink uint32
	childLink  uint32

	typ       Type
	localAxis []mgl64.Vec3
	axisFrame mgl64.Quat // statically configured frame for the fallback axis path
	damping   float64

	state   BindState
	adapter *solver.Adapter
	mob     solver.Mobilizer

	// captured generalized state, replayed across solver rebuilds
	q []float64
	u []float64

	log *slog.Logger
}

// New constructs an unbound joint of the given type. Slot counts are
// fixed by the type and never change afterwards.
func New(name string, id uint32, typ Type, log *slog.Logger) *Joint {
	if log == nil {
		log = slog.Default()
	}
	dof := typ.DOF()
	axes := make([]mgl64.Vec3, dof)
	for i := range axes {
		axes[i] = mgl64.Vec3{0, 0, 1}
	}
	return &Joint{
		Name:      name,
		ID:        id,
		typ:       typ,
		localAxis: axes,
		axisFrame: mgl64.QuatIdent(),
		state:     Unbound,
		mob:       solver.EmptyMobilizer,
		q:         make([]float64, dof),
		u:         make([]float64, dof),
		log:       log,
	}
}

// Type returns the joint's variant tag.
func (j *Joint) Type() Type { return j.typ }

// Mobilizer returns the solver handle, or EmptyMobilizer while unbound.
func (j *Joint) Mobilizer() solver.Mobilizer { return j.mob }

// DOF returns the generalized coordinate count.
func (j *Joint) DOF() int { return j.typ.DOF() }

// State returns the current bind state.
func (j *Joint) State() BindState { return j.state }

// SetLinks records the parent and child link ids. Non-owning.
func (j *Joint) SetLinks(parent, child uint32) {
	j.parentLink = parent
	j.childLink = child
}

// ParentLink returns the parent link id.
func (j *Joint) ParentLink() uint32 { return j.parentLink }

// ChildLink returns the child link id.
func (j *Joint) ChildLink() uint32 { return j.childLink }

// Damping returns the per-DOF viscous damping coefficient.
func (j *Joint) Damping() float64 { return j.damping }

// SetDamping sets the per-DOF viscous damping coefficient.
func (j *Joint) SetDamping(d float64) { j.damping = d }

// LocalAxis returns the configured axis for coordinate i, or the NaN
// vector when i is out of range.
func (j *Joint) LocalAxis(i int) mgl64.Vec3 {
	if i < 0 || i >= len(j.localAxis) {
		return spatial.NaNVec3()
	}
	return j.localAxis[i]
}

// SetLocalAxis sets the construction-time axis for coordinate i.
func (j *Joint) SetLocalAxis(i int, axis mgl64.Vec3) {
	if i < 0 || i >= len(j.localAxis) {
		j.log.Error("local axis index out of range",
			"joint", j.Name, "index", i, "dof", j.DOF())
		return
	}
	if axis.Len() > 0 {
		axis = axis.Normalize()
	}
	j.localAxis[i] = axis
}

// SetAxisFrame records the statically configured frame used to compute
// the global axis before the solver has stepped.
func (j *Joint) SetAxisFrame(rot mgl64.Quat) { j.axisFrame = rot }

// Bind activates the joint against the adapter. Rebinding after a
// solver rebuild is allowed and keeps the snapshot.
func (j *Joint) Bind(a *solver.Adapter, m solver.Mobilizer) {
	j.adapter = a
	j.mob = m
	j.state = Bound
	j.log.Debug("joint bound", "joint", j.Name, "mobilizer", int(m))
}

// Unbind detaches the joint from its solver handle ahead of a teardown.
// The captured snapshot is kept so RestoreState can replay it after the
// rebuild.
func (j *Joint) Unbind() {
	j.mob = solver.EmptyMobilizer
	j.adapter = nil
	j.state = Unbound
}

func (j *Joint) live() bool {
	return j.state == Bound && j.adapter != nil && j.adapter.Built()
}

// Angle returns generalized coordinate i. Out-of-range indices report an
// error and return NaN so a single bad query cannot halt the step loop;
// before activation the conventional value is zero.
func (j *Joint) Angle(i int) float64 {
	if i < 0 || i >= j.DOF() {
		j.log.Error("angle index out of range, returning NaN",
			"joint", j.Name, "index", i, "dof", j.DOF())
		return math.NaN()
	}
	if !j.live() {
		j.log.Debug("angle queried before solver activation, returning zero",
			"joint", j.Name, "index", i)
		return 0
	}
	v, err := j.adapter.Coordinate(j.mob, i)
	if err != nil {
		j.log.Error("coordinate read failed, returning zero",
			"joint", j.Name, "index", i, "err", err)
		return 0
	}
	return v
}

// Velocity returns generalized velocity i with the same fallback policy
// as Angle.
func (j *Joint) Velocity(i int) float64 {
	if i < 0 || i >= j.DOF() {
		j.log.Error("velocity index out of range, returning NaN",
			"joint", j.Name, "index", i, "dof", j.DOF())
		return math.NaN()
	}
	if !j.live() {
		j.log.Debug("velocity queried before solver activation, returning zero",
			"joint", j.Name, "index", i)
		return 0
	}
	v, err := j.adapter.Velocity(j.mob, i)
	if err != nil {
		j.log.Error("velocity read failed, returning zero",
			"joint", j.Name, "index", i, "err", err)
		return 0
	}
	return v
}

// SetVelocity writes generalized velocity i directly into solver state.
// Writes before activation are lost, not queued.
func (j *Joint) SetVelocity(i int, v float64) {
	if i < 0 || i >= j.DOF() {
		j.log.Error("set velocity index out of range",
			"joint", j.Name, "index", i, "dof", j.DOF())
		return
	}
	if !j.live() {
		j.log.Debug("set velocity before solver activation, dropped",
			"joint", j.Name, "index", i, "value", v)
		return
	}
	if err := j.adapter.SetVelocity(j.mob, i, v); err != nil {
		j.log.Error("set velocity failed",
			"joint", j.Name, "index", i, "err", err)
	}
}

// SetForce injects one scalar generalized force for the next step.
// Applies only when bound and i is valid; otherwise the force is
// silently dropped — there is no queued-force buffer.
func (j *Joint) SetForce(i int, f float64) {
	if j.typ.Capabilities()&CapForce == 0 {
		return
	}
	if i < 0 || i >= j.DOF() || !j.live() {
		return
	}
	if err := j.adapter.ApplyMobilityForce(j.mob, i, f); err != nil {
		j.log.Error("apply force failed",
			"joint", j.Name, "index", i, "err", err)
	}
}

// GlobalAxis returns axis i expressed in the world frame. Once the
// solver has stepped, the axis is rotated through the mobilized body's
// live transform; before that it is composed from the statically
// configured frame, avoiding a query against an uninitialized solver
// transform.
func (j *Joint) GlobalAxis(i int) mgl64.Vec3 {
	if j.typ.Capabilities()&CapAxis == 0 {
		j.log.Error("joint type has no axis, returning NaN",
			"joint", j.Name, "type", j.typ.String())
		return spatial.NaNVec3()
	}
	if i < 0 || i >= j.DOF() {
		j.log.Error("global axis index out of range, returning NaN",
			"joint", j.Name, "index", i, "dof", j.DOF())
		return spatial.NaNVec3()
	}
	if j.live() && j.adapter.Stepped() {
		pose, err := j.adapter.BodyTransform(j.mob)
		if err == nil {
			return pose.Rot.Rotate(j.localAxis[i])
		}
		j.log.Error("body transform query failed, using configured frame",
			"joint", j.Name, "err", err)
	} else {
		j.log.Debug("solver not stepped, composing global axis from configured frame",
			"joint", j.Name, "index", i)
	}
	return j.axisFrame.Rotate(j.localAxis[i])
}

// SetAxis is deferred for solvers that fix axes at tree construction;
// post-construction axis changes do not take effect.
func (j *Joint) SetAxis(i int, axis mgl64.Vec3) {
	if j.typ.Capabilities()&CapAxis == 0 {
		j.log.Error("joint type has no axis",
			"joint", j.Name, "type", j.typ.String())
		return
	}
	j.log.Debug("set axis ignored, axes are fixed at tree construction",
		"joint", j.Name, "index", i)
}

// SaveState captures every coordinate and velocity slot from the live
// solver into the snapshot. Silent no-op while the handle is empty.
func (j *Joint) SaveState() {
	if !j.live() {
		return
	}
	for i := 0; i < j.DOF(); i++ {
		if v, err := j.adapter.Coordinate(j.mob, i); err == nil {
			j.q[i] = v
		}
		if v, err := j.adapter.Velocity(j.mob, i); err == nil {
			j.u[i] = v
		}
	}
}

// RestoreState writes the captured snapshot back into the live solver.
// Silent no-op while the handle is empty.
func (j *Joint) RestoreState() {
	if !j.live() {
		return
	}
	for i := 0; i < j.DOF(); i++ {
		if err := j.adapter.SetCoordinate(j.mob, i, j.q[i]); err != nil {
			j.log.Error("restore coordinate failed",
				"joint", j.Name, "index", i, "err", err)
		}
		if err := j.adapter.SetVelocity(j.mob, i, j.u[i]); err != nil {
			j.log.Error("restore velocity failed",
				"joint", j.Name, "index", i, "err", err)
		}
	}
}

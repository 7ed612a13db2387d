package entity

import (
	"fmt"

	"github.com/rigsim/rigsim/internal/config"
	"github.com/rigsim/rigsim/internal/msgs"
	"github.com/rigsim/rigsim/internal/spatial"
)

// Inertial holds the mass properties of one rigid body. Mass zero is
// only legal for static or kinematic-only links.
type Inertial struct {
	mass                         float64
	ixx, ixy, ixz, iyy, iyz, izz float64
	pose                         spatial.Pose
	linearDamping                float64
	angularDamping               float64
	loaded                       bool
}

// NewInertial returns an empty descriptor.
func NewInertial() *Inertial {
	return &Inertial{pose: spatial.Identity()}
}

// Load fills the descriptor from its declaration.
func (in *Inertial) Load(cfg *config.Inertial) error {
	if cfg.Mass < 0 {
		return fmt.Errorf("inertial: mass must be >= 0, got %f", cfg.Mass)
	}
	in.mass = cfg.Mass
	in.ixx, in.ixy, in.ixz = cfg.IXX, cfg.IXY, cfg.IXZ
	in.iyy, in.iyz, in.izz = cfg.IYY, cfg.IYZ, cfg.IZZ
	in.linearDamping = cfg.LinearDamping
	in.angularDamping = cfg.AngularDamping
	if len(cfg.Pose) == 6 {
		in.pose = spatial.NewPose(cfg.Pose[0], cfg.Pose[1], cfg.Pose[2],
			cfg.Pose[3], cfg.Pose[4], cfg.Pose[5])
	}
	in.loaded = true
	return nil
}

// Loaded reports whether Load has populated the descriptor.
func (in *Inertial) Loaded() bool { return in.loaded }

func (in *Inertial) Mass() float64           { return in.mass }
func (in *Inertial) LinearDamping() float64  { return in.linearDamping }
func (in *Inertial) AngularDamping() float64 { return in.angularDamping }
func (in *Inertial) Pose() spatial.Pose      { return in.pose }

// PrincipalMoments returns the diagonal inertia components.
func (in *Inertial) PrincipalMoments() (ixx, iyy, izz float64) {
	return in.ixx, in.iyy, in.izz
}

// FillMsg writes the full inertial block into a message.
func (in *Inertial) FillMsg(m *msgs.Inertial) {
	m.Mass = msgs.Float(in.mass)
	m.IXX = msgs.Float(in.ixx)
	m.IXY = msgs.Float(in.ixy)
	m.IXZ = msgs.Float(in.ixz)
	m.IYY = msgs.Float(in.iyy)
	m.IYZ = msgs.Float(in.iyz)
	m.IZZ = msgs.Float(in.izz)
	m.LinearDamping = msgs.Float(in.linearDamping)
	m.AngularDamping = msgs.Float(in.angularDamping)
	m.Pose = spatial.ToMsg(in.pose)
}

// ApplyMsg merges the fields present in an inbound inertial block.
func (in *Inertial) ApplyMsg(m *msgs.Inertial) {
	if m.Mass != nil {
		in.mass = *m.Mass
	}
	if m.IXX != nil {
		in.ixx = *m.IXX
	}
	if m.IXY != nil {
		in.ixy = *m.IXY
	}
	if m.IXZ != nil {
		in.ixz = *m.IXZ
	}
	if m.IYY != nil {
		in.iyy = *m.IYY
	}
	if m.IYZ != nil {
		in.iyz = *m.IYZ
	}
	if m.IZZ != nil {
		in.izz = *m.IZZ
	}
	if m.LinearDamping != nil {
		in.linearDamping = *m.LinearDamping
	}
	if m.AngularDamping != nil {
		in.angularDamping = *m.AngularDamping
	}
	if m.Pose != nil {
		in.pose = spatial.FromMsg(m.Pose)
	}
}

package spatial

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/rigsim/rigsim/internal/msgs"
)

// Pose is a rigid transform: a position and an orientation in a fixed
// world frame.
type Pose struct {
	Pos mgl64.Vec3
	Rot mgl64.Quat
}

// Identity returns the zero-offset pose.
func Identity() Pose {
	return Pose{Rot: mgl64.QuatIdent()}
}

// NewPose builds a pose from a position and roll/pitch/yaw angles.
func NewPose(x, y, z, roll, pitch, yaw float64) Pose {
	return Pose{
		Pos: mgl64.Vec3{x, y, z},
		Rot: mgl64.AnglesToQuat(roll, pitch, yaw, mgl64.XYZ),
	}
}

// Compose applies p, then other, returning the combined transform.
func (p Pose) Compose(other Pose) Pose {
	return Pose{
		Pos: p.Pos.Add(p.Rot.Rotate(other.Pos)),
		Rot: p.Rot.Mul(other.Rot).Normalize(),
	}
}

// RotateVector expresses a vector given in the pose's local frame in the
// world frame.
func (p Pose) RotateVector(v mgl64.Vec3) mgl64.Vec3 {
	return p.Rot.Rotate(v)
}

// RotateVectorReverse expresses a world-frame vector in the pose's local
// frame.
func (p Pose) RotateVectorReverse(v mgl64.Vec3) mgl64.Vec3 {
	return p.Rot.Inverse().Rotate(v)
}

// IsValid reports whether the pose contains no NaN or Inf components.
func (p Pose) IsValid() bool {
	vals := []float64{
		p.Pos.X(), p.Pos.Y(), p.Pos.Z(),
		p.Rot.W, p.Rot.V.X(), p.Rot.V.Y(), p.Rot.V.Z(),
	}
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// NaNVec3 is the sentinel vector returned by accessors that were queried
// with an out-of-range index.
func NaNVec3() mgl64.Vec3 {
	return mgl64.Vec3{math.NaN(), math.NaN(), math.NaN()}
}

// ToMsg converts a pose to its wire representation.
func ToMsg(p Pose) *msgs.Pose {
	return &msgs.Pose{
		X: p.Pos.X(), Y: p.Pos.Y(), Z: p.Pos.Z(),
		QW: p.Rot.W, QX: p.Rot.V.X(), QY: p.Rot.V.Y(), QZ: p.Rot.V.Z(),
	}
}

// FromMsg converts a wire pose back to a Pose.
func FromMsg(m *msgs.Pose) Pose {
	return Pose{
		Pos: mgl64.Vec3{m.X, m.Y, m.Z},
		Rot: mgl64.Quat{W: m.QW, V: mgl64.Vec3{m.QX, m.QY, m.QZ}},
	}
}

package joint

import "fmt"

// Type is the tagged variant of a joint. The degree-of-freedom count and
// the capability set are fixed by the tag.
type Type int

const (
	Fixed Type = iota
	Hinge
	Slider
	Universal
	Ball
)

// Capability describes which operations a joint type supports.
type Capability uint8

const (
	CapAngle Capability = 1 << iota
	CapVelocity
	CapForce
	CapAxis
)

// DOF returns the generalized coordinate and velocity slot count.
func (t Type) DOF() int {
	switch t {
	case Hinge, Slider:
		return 1
	case Universal:
		return 2
	case Ball:
		return 3
	default:
		return 0
	}
}

// Capabilities returns the operation set the type supports.
func (t Type) Capabilities() Capability {
	switch t {
	case Hinge, Slider, Universal:
		return CapAngle | CapVelocity | CapForce | CapAxis
	case Ball:
		return CapAngle | CapVelocity | CapForce
	default:
		return 0
	}
}

// Translational reports whether the first coordinate is a translation
// rather than a rotation.
func (t Type) Translational() bool { return t == Slider }

func (t Type) String() string {
	switch t {
	case Fixed:
		return "fixed"
	case Hinge:
		return "hinge"
	case Slider:
		return "slider"
	case Universal:
		return "universal"
	case Ball:
		return "ball"
	default:
		return fmt.Sprintf("joint.Type(%d)", int(t))
	}
}

// ParseType maps a config type name to its tag.
func ParseType(s string) (Type, error) {
	switch s {
	case "fixed":
		return Fixed, nil
	case "hinge", "revolute":
		return Hinge, nil
	case "slider", "prismatic":
		return Slider, nil
	case "universal":
		return Universal, nil
	case "ball":
		return Ball, nil
	default:
		return Fixed, fmt.Errorf("unknown joint type: %s", s)
	}
}

package joint

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/rigsim/rigsim/internal/integrators"
	"github.com/rigsim/rigsim/internal/solver"
	"github.com/rigsim/rigsim/internal/spatial"
)

func newBoundHinge(t *testing.T) (*Joint, *solver.Adapter) {
	t.Helper()
	integ, err := integrators.New("rk4")
	if err != nil {
		t.Fatalf("integrator: %v", err)
	}
	a := solver.New(integ, nil)

	j := New("pivot", 1, Hinge, nil)
	m, err := a.AddMobilizer(solver.MobilizerSpec{
		NumQ:     1,
		NumU:     1,
		Inertia:  1.0,
		Axis:     j.LocalAxis(0),
		BasePose: spatial.Identity(),
	})
	if err != nil {
		t.Fatalf("add mobilizer: %v", err)
	}
	if err := a.Build(); err != nil {
		t.Fatalf("build: %v", err)
	}
	j.Bind(a, m)
	return j, a
}

func TestTypeDOF(t *testing.T) {
	cases := []struct {
		typ  Type
		want int
	}{
		{Fixed, 0},
		{Hinge, 1},
		{Slider, 1},
		{Universal, 2},
		{Ball, 3},
	}
	for _, c := range cases {
		if got := c.typ.DOF(); got != c.want {
			t.Errorf("%s: expected %d dof, got %d", c.typ, c.want, got)
		}
	}
}

func TestParseType(t *testing.T) {
	cases := []struct {
		in   string
		want Type
	}{
		{"hinge", Hinge},
		{"revolute", Hinge},
		{"slider", Slider},
		{"prismatic", Slider},
		{"ball", Ball},
	}
	for _, c := range cases {
		got, err := ParseType(c.in)
		if err != nil {
			t.Errorf("%s: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("%s: expected %v, got %v", c.in, c.want, got)
		}
	}
	if _, err := ParseType("hydraulic"); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestUnboundFallbacks(t *testing.T) {
	j := New("pivot", 1, Hinge, nil)

	if j.State() != Unbound {
		t.Fatalf("expected unbound, got %v", j.State())
	}
	if got := j.Angle(0); got != 0 {
		t.Errorf("expected zero angle before activation, got %f", got)
	}
	if got := j.Velocity(0); got != 0 {
		t.Errorf("expected zero velocity before activation, got %f", got)
	}
}

func TestSetVelocityBeforeActivationDropped(t *testing.T) {
	j := New("pivot", 1, Hinge, nil)

	j.SetVelocity(0, 5.0)
	if got := j.Velocity(0); got != 0 {
		t.Errorf("pre-activation write must be dropped, got velocity %f", got)
	}

	// activating afterwards must not replay the dropped write
	integ, _ := integrators.New("rk4")
	a := solver.New(integ, nil)
	m, _ := a.AddMobilizer(solver.MobilizerSpec{NumQ: 1, NumU: 1, Inertia: 1})
	if err := a.Build(); err != nil {
		t.Fatalf("build: %v", err)
	}
	j.Bind(a, m)
	if got := j.Velocity(0); got != 0 {
		t.Errorf("dropped write resurfaced after bind: %f", got)
	}
}

func TestOutOfRangeReturnsNaN(t *testing.T) {
	j, _ := newBoundHinge(t)

	if got := j.Angle(3); !math.IsNaN(got) {
		t.Errorf("expected NaN for out-of-range angle, got %f", got)
	}
	if got := j.Velocity(-1); !math.IsNaN(got) {
		t.Errorf("expected NaN for out-of-range velocity, got %f", got)
	}
	axis := j.GlobalAxis(2)
	if !math.IsNaN(axis.X()) {
		t.Errorf("expected NaN axis for out-of-range index, got %v", axis)
	}
}

func TestBoundReadWrite(t *testing.T) {
	j, a := newBoundHinge(t)

	j.SetVelocity(0, 1.5)
	if got := j.Velocity(0); math.Abs(got-1.5) > 1e-12 {
		t.Errorf("expected velocity 1.5, got %f", got)
	}

	if err := a.Step(0.1); err != nil {
		t.Fatalf("step: %v", err)
	}
	if got := j.Angle(0); math.Abs(got-0.15) > 1e-9 {
		t.Errorf("expected angle 0.15 after step, got %f", got)
	}
}

func TestSetForcePreActivationNoOp(t *testing.T) {
	j := New("pivot", 1, Hinge, nil)
	j.SetForce(0, 5.0) // must not panic or queue

	integ, _ := integrators.New("rk4")
	a := solver.New(integ, nil)
	m, _ := a.AddMobilizer(solver.MobilizerSpec{NumQ: 1, NumU: 1, Inertia: 1})
	a.Build()
	j.Bind(a, m)
	a.Step(0.1)

	if got := j.Velocity(0); got != 0 {
		t.Errorf("pre-activation force leaked into solver: velocity %f", got)
	}
}

func TestSetForceBound(t *testing.T) {
	j, a := newBoundHinge(t)

	j.SetForce(0, 2.0)
	if err := a.Step(0.1); err != nil {
		t.Fatalf("step: %v", err)
	}
	if got := j.Velocity(0); math.Abs(got-0.2) > 1e-9 {
		t.Errorf("expected velocity 0.2 from impulse, got %f", got)
	}
}

func TestGlobalAxisFallbackBeforeStep(t *testing.T) {
	j, a := newBoundHinge(t)
	j.SetLocalAxis(0, mgl64.Vec3{1, 0, 0})
	frame := mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1})
	j.SetAxisFrame(frame)

	// not stepped: composed from the configured frame
	axis := j.GlobalAxis(0)
	if math.Abs(axis.Y()-1) > 1e-9 {
		t.Errorf("expected configured-frame axis {0 1 0}, got %v", axis)
	}

	if err := a.Step(0.01); err != nil {
		t.Fatalf("step: %v", err)
	}
	// stepped with identity base pose and ~zero rotation: live axis is
	// the local axis
	axis = j.GlobalAxis(0)
	if math.Abs(axis.X()-1) > 1e-3 {
		t.Errorf("expected live axis near {1 0 0}, got %v", axis)
	}
}

func TestSaveRestoreAcrossRebuild(t *testing.T) {
	j, a := newBoundHinge(t)

	j.SetVelocity(0, 3.0)
	a.Step(0.2)
	wantQ := j.Angle(0)
	wantU := j.Velocity(0)

	j.SaveState()
	j.Unbind()
	a.Reset()

	// rebuild the tree and rebind
	m, err := a.AddMobilizer(solver.MobilizerSpec{NumQ: 1, NumU: 1, Inertia: 1})
	if err != nil {
		t.Fatalf("add mobilizer: %v", err)
	}
	if err := a.Build(); err != nil {
		t.Fatalf("build: %v", err)
	}
	j.Bind(a, m)
	j.RestoreState()

	if got := j.Angle(0); math.Abs(got-wantQ) > 1e-12 {
		t.Errorf("angle not restored: want %f, got %f", wantQ, got)
	}
	if got := j.Velocity(0); math.Abs(got-wantU) > 1e-12 {
		t.Errorf("velocity not restored: want %f, got %f", wantU, got)
	}

	// restore is idempotent
	j.RestoreState()
	if got := j.Angle(0); math.Abs(got-wantQ) > 1e-12 {
		t.Errorf("second restore changed angle: want %f, got %f", wantQ, got)
	}
}

func TestSaveRestoreUnboundNoOp(t *testing.T) {
	j := New("pivot", 1, Hinge, nil)
	j.SaveState()    // must not panic
	j.RestoreState() // must not panic
}

func TestCapabilities(t *testing.T) {
	cases := []struct {
		typ  Type
		want Capability
	}{
		{Fixed, 0},
		{Hinge, CapAngle | CapVelocity | CapForce | CapAxis},
		{Slider, CapAngle | CapVelocity | CapForce | CapAxis},
		{Universal, CapAngle | CapVelocity | CapForce | CapAxis},
		{Ball, CapAngle | CapVelocity | CapForce},
	}
	for _, c := range cases {
		if got := c.typ.Capabilities(); got != c.want {
			t.Errorf("%s: expected capabilities %b, got %b", c.typ, c.want, got)
		}
	}
}

func TestBallJointHasNoAxis(t *testing.T) {
	j := New("shoulder", 2, Ball, nil)

	axis := j.GlobalAxis(0)
	if !math.IsNaN(axis.X()) {
		t.Errorf("expected NaN axis for an axis-less joint, got %v", axis)
	}
	j.SetAxis(0, mgl64.Vec3{1, 0, 0}) // must not panic
}

func TestBallJointSlots(t *testing.T) {
	j := New("shoulder", 2, Ball, nil)
	if j.DOF() != 3 {
		t.Fatalf("expected 3 dof, got %d", j.DOF())
	}
	if got := j.Angle(2); got != 0 {
		t.Errorf("expected zero for slot 2 before activation, got %f", got)
	}
	if got := j.Angle(3); !math.IsNaN(got) {
		t.Errorf("expected NaN for slot 3, got %f", got)
	}
}

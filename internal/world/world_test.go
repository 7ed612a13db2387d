package world

import (
	"context"
	"math"
	"testing"

	"github.com/rigsim/rigsim/internal/config"
	"github.com/rigsim/rigsim/internal/joint"
	"github.com/rigsim/rigsim/internal/msgs"
	"github.com/rigsim/rigsim/internal/transport"
)

func pendulumConfig() *config.World {
	cfg := config.DefaultWorld()
	cfg.Name = "test"
	cfg.PublishRate = 0 // publish every step
	cfg.Links = []config.Link{
		{
			Name:   "base",
			Static: true,
			Pose:   []float64{0, 0, 1, 0, 0, 0},
			Collisions: []config.Collision{
				{Name: "c", Geometry: config.Geometry{Type: "box", Size: []float64{0.1, 0.1, 0.1}}},
			},
		},
		{
			Name:    "bob",
			Gravity: true,
			Pose:    []float64{0, 0, 0.5, 0, 0, 0},
			Inertial: &config.Inertial{
				Mass: 1.0, IXX: 0.05, IYY: 0.05, IZZ: 0.05,
			},
			Visuals: []config.Visual{{Name: "ball", Geometry: "sphere"}},
			Collisions: []config.Collision{
				{Name: "c", Geometry: config.Geometry{Type: "sphere", Radius: 0.05}},
			},
		},
	}
	cfg.Joints = []config.Joint{
		{Name: "pivot", Type: "hinge", Parent: "base", Child: "bob",
			Axis: []float64{0, 1, 0}, Damping: 0.1},
	}
	return cfg
}

func newTestWorld(t *testing.T) *World {
	t.Helper()
	w, err := New(pendulumConfig(), nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := w.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := w.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	return w
}

func TestLoadBuildsGraph(t *testing.T) {
	w := newTestWorld(t)

	if len(w.Links()) != 2 || len(w.Joints()) != 1 {
		t.Fatalf("expected 2 links and 1 joint, got %d and %d",
			len(w.Links()), len(w.Joints()))
	}
	j := w.Joint("pivot")
	if j == nil {
		t.Fatal("pivot joint not found")
	}
	if j.ParentLink() != w.Link("base").ID || j.ChildLink() != w.Link("bob").ID {
		t.Error("joint link ids not wired")
	}
	if len(w.Link("bob").ParentJoints()) != 1 {
		t.Error("child link missing parent joint registration")
	}
	if len(w.Link("base").ChildJoints()) != 1 {
		t.Error("parent link missing child joint registration")
	}
}

func TestInitBindsJoints(t *testing.T) {
	w := newTestWorld(t)
	if w.Joint("pivot").State() != joint.Bound {
		t.Error("expected joint bound after init")
	}
	if !w.Adapter().Built() {
		t.Error("expected solver built after init")
	}
}

func TestStepBeforeInit(t *testing.T) {
	w, err := New(pendulumConfig(), nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := w.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := w.Step(); err == nil {
		t.Error("expected error stepping before init")
	}
}

func TestStepAdvancesJoint(t *testing.T) {
	w := newTestWorld(t)
	j := w.Joint("pivot")

	j.SetVelocity(0, 1.0)
	for i := 0; i < 100; i++ {
		if err := w.Step(); err != nil {
			t.Fatalf("step: %v", err)
		}
	}

	if got := j.Angle(0); got <= 0 {
		t.Errorf("expected positive angle after spinning, got %f", got)
	}
	if w.Time() <= 0 {
		t.Errorf("expected sim time advanced, got %f", w.Time())
	}
}

func TestStepRefreshesChildPose(t *testing.T) {
	w := newTestWorld(t)
	j := w.Joint("pivot")
	bob := w.Link("bob")
	before := bob.WorldPose()

	j.SetVelocity(0, 2.0)
	for i := 0; i < 200; i++ {
		w.Step()
	}
	after := bob.WorldPose()

	// hinge about y: the rotation must have moved away from the initial
	// orientation
	v0 := before.RotateVector([3]float64{1, 0, 0})
	v1 := after.RotateVector([3]float64{1, 0, 0})
	if math.Abs(v0.X()-v1.X()) < 1e-6 {
		t.Error("child pose not refreshed from solver")
	}
}

func TestPublishState(t *testing.T) {
	hub := transport.NewHub(nil)
	w, err := New(pendulumConfig(), hub, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	sub := hub.Topic(StateTopic).Subscribe(16)
	statsSub := hub.Topic(StatsTopic).Subscribe(16)
	if err := w.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := w.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	if err := w.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}

	states := 0
	for drained := false; !drained; {
		select {
		case m := <-sub.C:
			if _, ok := m.Data.(msgs.LinkState); ok {
				states++
			}
		default:
			drained = true
		}
	}
	if states != 2 {
		t.Errorf("expected one state message per link, got %d", states)
	}

	select {
	case m := <-statsSub.C:
		s, ok := m.Data.(msgs.WorldStats)
		if !ok {
			t.Fatalf("expected WorldStats, got %T", m.Data)
		}
		if s.Steps != 1 || s.LinkCount != 2 {
			t.Errorf("unexpected stats: %+v", s)
		}
	default:
		t.Error("no stats message published")
	}
}

func TestRebuildPreservesJointState(t *testing.T) {
	w := newTestWorld(t)
	j := w.Joint("pivot")

	// the canonical activation workflow: forces before activation are
	// dropped, forces after it shape state that survives a rebuild
	j.SetVelocity(0, 2.0)
	for i := 0; i < 50; i++ {
		w.Step()
	}
	wantQ := j.Angle(0)
	wantU := j.Velocity(0)

	if err := w.Rebuild(); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	if j.State() != joint.Bound {
		t.Fatal("expected joint rebound after rebuild")
	}
	if got := j.Angle(0); math.Abs(got-wantQ) > 1e-12 {
		t.Errorf("angle lost across rebuild: want %f, got %f", wantQ, got)
	}
	if got := j.Velocity(0); math.Abs(got-wantU) > 1e-12 {
		t.Errorf("velocity lost across rebuild: want %f, got %f", wantU, got)
	}

	// the rebuilt tree keeps stepping from the restored state
	if err := w.Step(); err != nil {
		t.Fatalf("step after rebuild: %v", err)
	}
}

func TestResetRewindsScene(t *testing.T) {
	w := newTestWorld(t)
	j := w.Joint("pivot")
	bob := w.Link("bob")
	initial := bob.InitialPose()

	j.SetVelocity(0, 5.0)
	for i := 0; i < 100; i++ {
		w.Step()
	}
	if err := w.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}

	if got := j.Angle(0); got != 0 {
		t.Errorf("expected zero angle after reset, got %f", got)
	}
	if bob.WorldPose().Pos != initial.Pos {
		t.Error("link pose not rewound to initial")
	}
	if w.Time() != 0 {
		t.Errorf("expected time rewound, got %f", w.Time())
	}
}

func TestResetClearsStepCount(t *testing.T) {
	hub := transport.NewHub(nil)
	w, err := New(pendulumConfig(), hub, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	statsSub := hub.Topic(StatsTopic).Subscribe(16)
	if err := w.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := w.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	for i := 0; i < 5; i++ {
		w.Step()
	}
	if err := w.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := w.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}

	var last msgs.WorldStats
	for drained := false; !drained; {
		select {
		case m := <-statsSub.C:
			if s, ok := m.Data.(msgs.WorldStats); ok {
				last = s
			}
		default:
			drained = true
		}
	}
	if last.Steps != 1 {
		t.Errorf("expected step count rewound to 1 after reset, got %d", last.Steps)
	}
}

func TestFiniUnloadsSensors(t *testing.T) {
	cfg := pendulumConfig()
	cfg.Links[1].Sensors = []config.Sensor{
		{Name: "imu", Type: "imu", UpdateRate: 100},
	}
	w, err := New(cfg, nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := w.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := w.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	if got := w.Sensors().Count(); got != 1 {
		t.Fatalf("expected 1 registered sensor, got %d", got)
	}
	if err := w.Fini(context.Background()); err != nil {
		t.Fatalf("fini: %v", err)
	}
	if got := w.Sensors().Count(); got != 0 {
		t.Errorf("expected sensors unloaded on fini, got %d", got)
	}
}

func TestFiniPublishesDeletes(t *testing.T) {
	hub := transport.NewHub(nil)
	w, err := New(pendulumConfig(), hub, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	sub := hub.Topic("~/request").Subscribe(16)
	if err := w.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := w.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	if err := w.Fini(context.Background()); err != nil {
		t.Fatalf("fini: %v", err)
	}

	deletes := 0
	for drained := false; !drained; {
		select {
		case m := <-sub.C:
			if req, ok := m.Data.(msgs.Request); ok && req.Request == "entity_delete" {
				deletes++
			}
		default:
			drained = true
		}
	}
	// one visual in the scene
	if deletes != 1 {
		t.Errorf("expected 1 delete request, got %d", deletes)
	}

	if w.Joint("pivot").State() != joint.Unbound {
		t.Error("expected joints unbound after fini")
	}
}

func TestObserverSeesState(t *testing.T) {
	w := newTestWorld(t)

	var samples int
	var lastT float64
	w.AddObserver(observerFunc(func(q, u []float64, t float64) {
		samples++
		lastT = t
	}))

	for i := 0; i < 10; i++ {
		w.Step()
	}
	if samples != 10 {
		t.Errorf("expected 10 observations, got %d", samples)
	}
	if math.Abs(lastT-10*w.Dt()) > 1e-12 {
		t.Errorf("expected last observation at t = %f, got %f", 10*w.Dt(), lastT)
	}
}

type observerFunc func(q, u []float64, t float64)

func (f observerFunc) Observe(q, u []float64, t float64) { f(q, u, t) }

func TestLoadErrors(t *testing.T) {
	dup := pendulumConfig()
	dup.Links = append(dup.Links, dup.Links[0])
	w, _ := New(dup, nil, nil)
	if err := w.Load(); err == nil {
		t.Error("expected error for duplicate link name")
	}

	badType := pendulumConfig()
	badType.Joints[0].Type = "hydraulic"
	w, _ = New(badType, nil, nil)
	if err := w.Load(); err == nil {
		t.Error("expected error for unknown joint type")
	}

	badParent := pendulumConfig()
	badParent.Joints[0].Parent = "ghost"
	w, _ = New(badParent, nil, nil)
	if err := w.Load(); err == nil {
		t.Error("expected error for unknown parent link")
	}
}

func TestRunDuration(t *testing.T) {
	w := newTestWorld(t)
	if err := w.Run(context.Background(), 0.05); err != nil {
		t.Fatalf("run: %v", err)
	}
	if w.Time() < 0.05 {
		t.Errorf("expected at least 0.05s simulated, got %f", w.Time())
	}
}

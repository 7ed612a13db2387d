// Package world wires links, joints, and the solver adapter into one
// steppable scene. The world owns the rebuild protocol: whenever the
// multibody tree must be reconstructed, joint state is snapshotted,
// every joint is unbound, the solver is torn down and rebuilt, and the
// snapshots are replayed.
package world

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/rigsim/rigsim/internal/config"
	"github.com/rigsim/rigsim/internal/control"
	"github.com/rigsim/rigsim/internal/entity"
	"github.com/rigsim/rigsim/internal/integrators"
	"github.com/rigsim/rigsim/internal/joint"
	"github.com/rigsim/rigsim/internal/msgs"
	"github.com/rigsim/rigsim/internal/sensors"
	"github.com/rigsim/rigsim/internal/solver"
	"github.com/rigsim/rigsim/internal/transport"
)

// Topics the world publishes on at the configured rate.
const (
	// StateTopic carries one msgs.LinkState per link.
	StateTopic = "~/pose/info"
	// StatsTopic carries one msgs.WorldStats summary.
	StatsTopic = "~/world_stats"
)

// Observer receives the full generalized state after each step.
type Observer interface {
	Observe(q, u []float64, t float64)
}

// World is the scene container and stepping loop.
type World struct {
	Name string

	cfg     *config.World
	hub     *transport.Hub
	log     *slog.Logger
	adapter *solver.Adapter
	sensors *sensors.Manager
	geoms   *entity.Registry

	links     []*entity.Link
	linkByID  map[uint32]*entity.Link
	linkName  map[string]*entity.Link
	joints    []*joint.Joint
	jointByID map[uint32]*joint.Joint
	jointName map[string]*joint.Joint

	throttle  *control.Throttle
	statePub  *transport.Topic
	statsPub  *transport.Topic
	observers []Observer

	steps       uint64
	nextJointID uint32
	initialized bool
}

// New builds an empty world around a scene description.
func New(cfg *config.World, hub *transport.Hub, log *slog.Logger) (*World, error) {
	if log == nil {
		log = slog.Default()
	}
	if hub == nil {
		hub = transport.NewHub(log)
	}
	integ, err := integrators.New(cfg.Integrator)
	if err != nil {
		return nil, fmt.Errorf("world %q: %w", cfg.Name, err)
	}
	return &World{
		Name:      cfg.Name,
		cfg:       cfg,
		hub:       hub,
		log:       log,
		adapter:   solver.New(integ, log),
		sensors:   sensors.NewManager(log),
		geoms:     entity.NewRegistry(),
		linkByID:  make(map[uint32]*entity.Link),
		linkName:  make(map[string]*entity.Link),
		jointByID: make(map[uint32]*joint.Joint),
		jointName: make(map[string]*joint.Joint),
		throttle:  control.NewThrottle(cfg.PublishRate),
		statePub:  hub.Topic(StateTopic),
		statsPub:  hub.Topic(StatsTopic),
	}, nil
}

// Load instantiates every link and joint from the description. Joints
// come out of Load unbound; activation happens in Init.
func (w *World) Load() error {
	for i := range w.cfg.Links {
		lc := w.cfg.Links[i]
		if _, ok := w.linkName[lc.Name]; ok {
			return fmt.Errorf("world %q: duplicate link name %q", w.Name, lc.Name)
		}
		l := entity.NewLink(lc.Name, w.Name, w.hub, w.log)
		if err := l.Load(lc, w.geoms, w.sensors); err != nil {
			return err
		}
		w.links = append(w.links, l)
		w.linkByID[l.ID] = l
		w.linkName[lc.Name] = l
	}

	for i := range w.cfg.Joints {
		jc := w.cfg.Joints[i]
		if _, ok := w.jointName[jc.Name]; ok {
			return fmt.Errorf("world %q: duplicate joint name %q", w.Name, jc.Name)
		}
		typ, err := joint.ParseType(jc.Type)
		if err != nil {
			return fmt.Errorf("world %q joint %q: %w", w.Name, jc.Name, err)
		}
		parent, ok := w.linkName[jc.Parent]
		if !ok {
			return fmt.Errorf("world %q joint %q: unknown parent link %q",
				w.Name, jc.Name, jc.Parent)
		}
		child, ok := w.linkName[jc.Child]
		if !ok {
			return fmt.Errorf("world %q joint %q: unknown child link %q",
				w.Name, jc.Name, jc.Child)
		}

		w.nextJointID++
		j := joint.New(jc.Name, w.nextJointID, typ, w.log)
		j.SetLinks(parent.ID, child.ID)
		j.SetDamping(jc.Damping)
		if len(jc.Axis) == 3 {
			j.SetLocalAxis(0, mgl64.Vec3{jc.Axis[0], jc.Axis[1], jc.Axis[2]})
		}
		child.AddParentJoint(j.ID)
		parent.AddChildJoint(j.ID)

		w.joints = append(w.joints, j)
		w.jointByID[j.ID] = j
		w.jointName[jc.Name] = j
	}

	w.log.Info("world loaded",
		"world", w.Name, "links", len(w.links), "joints", len(w.joints))
	return nil
}

// Init prepares every entity for stepping and performs the first solver
// build. After Init every joint is bound and live-state access works.
func (w *World) Init() error {
	for _, l := range w.links {
		l.Init()
	}
	for _, j := range w.joints {
		child := w.linkByID[j.ChildLink()]
		if child != nil {
			j.SetAxisFrame(child.WorldPose().Rot)
		}
	}
	if err := w.buildSolver(); err != nil {
		return err
	}
	w.throttle.SetRate(w.cfg.PublishRate)
	w.initialized = true
	return nil
}

// buildSolver registers one mobilizer per joint, finalizes the tree,
// and binds every joint to its handle.
func (w *World) buildSolver() error {
	handles := make([]solver.Mobilizer, len(w.joints))
	for i, j := range w.joints {
		child := w.linkByID[j.ChildLink()]
		if child == nil {
			return fmt.Errorf("world %q joint %q: child link %d not found",
				w.Name, j.Name, j.ChildLink())
		}
		spec := solver.MobilizerSpec{
			NumQ:     j.DOF(),
			NumU:     j.DOF(),
			Inertia:  w.effectiveInertia(j, child),
			Damping:  j.Damping(),
			Axis:     j.LocalAxis(0),
			BasePose: child.WorldPose(),
			Slide:    j.Type().Translational(),
		}
		m, err := w.adapter.AddMobilizer(spec)
		if err != nil {
			return fmt.Errorf("world %q joint %q: %w", w.Name, j.Name, err)
		}
		handles[i] = m
	}
	if err := w.adapter.Build(); err != nil {
		return fmt.Errorf("world %q: %w", w.Name, err)
	}
	for i, j := range w.joints {
		j.Bind(w.adapter, handles[i])
	}
	return nil
}

// effectiveInertia projects the child link's principal moments onto the
// joint axis, or uses the mass for translational mobility.
func (w *World) effectiveInertia(j *joint.Joint, child *entity.Link) float64 {
	in := child.Inertial()
	if j.Type().Translational() {
		return in.Mass()
	}
	axis := j.LocalAxis(0)
	ixx, iyy, izz := in.PrincipalMoments()
	return ixx*axis.X()*axis.X() + iyy*axis.Y()*axis.Y() + izz*axis.Z()*axis.Z()
}

// Step advances the scene by one physics step, refreshes link poses
// from the solver, and publishes state at the configured rate.
func (w *World) Step() error {
	if !w.initialized {
		return fmt.Errorf("world %q: step before init", w.Name)
	}
	w.applyGravity()
	if err := w.adapter.Step(w.cfg.Dt); err != nil {
		return fmt.Errorf("world %q: %w", w.Name, err)
	}
	w.steps++

	for _, j := range w.joints {
		child := w.linkByID[j.ChildLink()]
		if child == nil {
			continue
		}
		pose, err := w.adapter.BodyTransform(j.Mobilizer())
		if err != nil {
			w.log.Error("body transform refresh failed",
				"joint", j.Name, "err", err)
			continue
		}
		child.SetWorldPose(pose)
	}

	t := w.adapter.Time()
	if len(w.observers) > 0 {
		q, u := w.adapter.CopyState()
		for _, o := range w.observers {
			o.Observe(q, u, t)
		}
	}
	if w.throttle.Ready(t, w.cfg.Dt) {
		w.publishState()
	}
	return nil
}

// applyGravity injects generalized gravity forces for joints whose
// child links keep gravity enabled. For a rotational joint the torque
// is the lever from the parent body to the child's rest position,
// rotated by the current displacement, crossed with the weight.
func (w *World) applyGravity() {
	g := mgl64.Vec3{w.cfg.Gravity[0], w.cfg.Gravity[1], w.cfg.Gravity[2]}
	if g.Len() == 0 {
		return
	}
	for _, j := range w.joints {
		child := w.linkByID[j.ChildLink()]
		if child == nil || !child.GravityMode() {
			continue
		}
		m := child.Inertial().Mass()
		if m <= 0 {
			continue
		}
		if j.Type().Translational() {
			j.SetForce(0, m*g.Dot(j.LocalAxis(0)))
			continue
		}
		parent := w.linkByID[j.ParentLink()]
		if parent == nil {
			continue
		}
		lever := child.InitialPose().Pos.Sub(parent.WorldPose().Pos)
		if lever.Len() == 0 {
			continue
		}
		axis := j.LocalAxis(0)
		arm := mgl64.QuatRotate(j.Angle(0), axis).Rotate(lever)
		j.SetForce(0, arm.Cross(g.Mul(m)).Dot(axis))
	}
}

// Run steps until the context is cancelled or simTime seconds have
// elapsed; simTime <= 0 means run until cancelled.
func (w *World) Run(ctx context.Context, simTime float64) error {
	for simTime <= 0 || w.adapter.Time() < simTime {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := w.Step(); err != nil {
			return err
		}
	}
	return nil
}

func (w *World) publishState() {
	for _, l := range w.links {
		var m msgs.LinkState
		l.FillStateMessage(&m)
		w.statePub.Publish(m)
	}
	w.statsPub.Publish(msgs.WorldStats{
		SimTime:   w.adapter.Time(),
		Steps:     w.steps,
		LinkCount: len(w.links),
	})
}

// Rebuild tears the solver down and reconstructs it with joint state
// carried across: snapshot, unbind, reset, re-register, rebind, replay.
func (w *World) Rebuild() error {
	if !w.initialized {
		return fmt.Errorf("world %q: rebuild before init", w.Name)
	}
	for _, j := range w.joints {
		j.SaveState()
	}
	for _, j := range w.joints {
		j.Unbind()
	}
	w.adapter.Reset()
	if err := w.buildSolver(); err != nil {
		return err
	}
	for _, j := range w.joints {
		j.RestoreState()
	}
	w.log.Info("solver rebuilt", "world", w.Name, "joints", len(w.joints))
	return nil
}

// Reset rewinds the scene to its post-Init configuration: link poses
// back to initial, solver state zeroed, joints rebound.
func (w *World) Reset() error {
	if !w.initialized {
		return fmt.Errorf("world %q: reset before init", w.Name)
	}
	for _, l := range w.links {
		l.SetWorldPose(l.InitialPose())
		l.SetWorldVelocity(mgl64.Vec3{}, mgl64.Vec3{})
		l.SetWorldWrench(mgl64.Vec3{}, mgl64.Vec3{})
	}
	for _, j := range w.joints {
		j.Unbind()
	}
	w.adapter.Reset()
	w.throttle.Reset()
	w.steps = 0
	if err := w.buildSolver(); err != nil {
		return err
	}
	return nil
}

// Fini shuts the scene down, draining every link's deletion requests
// through the acknowledged channel before releasing it.
func (w *World) Fini(ctx context.Context) error {
	for _, j := range w.joints {
		j.Unbind()
	}
	for _, l := range w.links {
		for i := 0; i < l.SensorCount(); i++ {
			w.sensors.Unload(l.SensorName(i))
		}
		if err := l.Fini(ctx); err != nil {
			return err
		}
	}
	w.adapter.Reset()
	w.initialized = false
	return nil
}

// AddObserver attaches a state observer invoked after each step.
func (w *World) AddObserver(o Observer) {
	w.observers = append(w.observers, o)
}

// Link returns a link by unscoped name.
func (w *World) Link(name string) *entity.Link { return w.linkName[name] }

// LinkByID returns a link by entity id.
func (w *World) LinkByID(id uint32) *entity.Link { return w.linkByID[id] }

// Links returns all links in declaration order.
func (w *World) Links() []*entity.Link { return w.links }

// Joint returns a joint by name.
func (w *World) Joint(name string) *joint.Joint { return w.jointName[name] }

// Joints returns all joints in declaration order.
func (w *World) Joints() []*joint.Joint { return w.joints }

// Sensors returns the sensor manager.
func (w *World) Sensors() *sensors.Manager { return w.sensors }

// Time returns the accumulated simulation time.
func (w *World) Time() float64 { return w.adapter.Time() }

// Dt returns the physics step size.
func (w *World) Dt() float64 { return w.cfg.Dt }

// Adapter exposes the solver adapter for diagnostics.
func (w *World) Adapter() *solver.Adapter { return w.adapter }

package entity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/rigsim/rigsim/internal/config"
	"github.com/rigsim/rigsim/internal/msgs"
	"github.com/rigsim/rigsim/internal/spatial"
	"github.com/rigsim/rigsim/internal/transport"
)

// Topic names the link publishes on.
const (
	VisualTopic  = "~/visual"
	RequestTopic = "~/request"
)

// SensorRegistrar is the external sensor manager a link registers its
// sensor declarations with. The manager owns the sensors; the link only
// keeps their scoped names.
type SensorRegistrar interface {
	Load(cfg config.Sensor, parentScope string) string
}

// Link is one rigid body entity. It owns its inertial descriptor and
// collision children, references sensors by name, and keeps non-owning
// back-references to the joints attached to it.
type Link struct {
	Name       string
	ScopedName string
	ID         uint32

	cfg      config.Link
	inertial *Inertial

	collisions []*Collision
	sensors    []string
	visuals    []string
	cgVisuals  []string

	// non-owning joint id registrations; append-only
	parentJoints []uint32
	childJoints  []uint32

	static      bool
	kinematic   bool
	selfCollide bool
	gravityMode bool
	enabled     bool

	worldPose   spatial.Pose
	initialPose spatial.Pose

	worldLinearVel  mgl64.Vec3
	worldAngularVel mgl64.Vec3
	worldForce      mgl64.Vec3
	worldTorque     mgl64.Vec3
	linearAccel     mgl64.Vec3
	angularAccel    mgl64.Vec3

	linearDamping  float64
	angularDamping float64

	visPub *transport.Topic
	reqPub *transport.Topic
	log    *slog.Logger
}

// NewLink constructs an empty link inside the given scope, wired to the
// hub's visual and request topics.
func NewLink(name, scope string, hub *transport.Hub, log *slog.Logger) *Link {
	if log == nil {
		log = slog.Default()
	}
	scoped := name
	if scope != "" {
		scoped = scope + "::" + name
	}
	return &Link{
		Name:        name,
		ScopedName:  scoped,
		ID:          NewEntityID(),
		inertial:    NewInertial(),
		worldPose:   spatial.Identity(),
		initialPose: spatial.Identity(),
		visPub:      hub.Topic(VisualTopic),
		reqPub:      hub.Topic(RequestTopic),
		log:         log,
	}
}

// Load builds the link's sub-entities from its declaration. A missing
// inertial on a non-static link is reported but does not fail the load;
// an unresolvable collision geometry does.
func (l *Link) Load(cfg config.Link, geoms *Registry, sensors SensorRegistrar) error {
	l.cfg = cfg
	l.static = cfg.Static
	l.selfCollide = cfg.SelfCollide

	if !l.static {
		if cfg.Inertial != nil {
			if err := l.inertial.Load(cfg.Inertial); err != nil {
				return fmt.Errorf("link %q: %w", l.ScopedName, err)
			}
		} else {
			l.log.Error("non-static link has no inertial element",
				"link", l.ScopedName)
		}
	}

	for _, v := range cfg.Visuals {
		msg := msgs.Visual{
			Name:       l.ScopedName + "::" + v.Name,
			ParentName: l.ScopedName,
			Geometry:   v.Geometry,
			Material:   v.Material,
			IsStatic:   l.static,
		}
		l.visPub.Publish(msg)
		l.visuals = append(l.visuals, msg.Name)
	}

	for _, c := range cfg.Collisions {
		geom, err := geoms.New(c.Geometry)
		if err != nil {
			return fmt.Errorf("link %q collision %q: %w", l.ScopedName, c.Name, err)
		}
		col := NewCollision(l.ScopedName+"::"+c.Name, geom, c)
		l.collisions = append(l.collisions, col)
	}

	if sensors != nil {
		for _, s := range cfg.Sensors {
			l.sensors = append(l.sensors, sensors.Load(s, l.ScopedName))
		}
	}

	return nil
}

// Init prepares the link for stepping. A link without collision children
// never keeps gravity enabled, whatever its configuration asked for. The
// initial pose is applied last so earlier defaulting cannot overwrite it.
func (l *Link) Init() {
	for _, c := range l.collisions {
		c.Init()
	}

	l.kinematic = l.cfg.Kinematic

	if len(l.collisions) == 0 || !l.cfg.Gravity {
		l.gravityMode = false
	} else {
		l.gravityMode = true
	}

	if l.inertial.Loaded() {
		l.linearDamping = l.inertial.LinearDamping()
		l.angularDamping = l.inertial.AngularDamping()
	}

	l.linearAccel = mgl64.Vec3{}
	l.angularAccel = mgl64.Vec3{}

	l.enabled = true

	// DO THIS LAST
	pose := spatial.Identity()
	if len(l.cfg.Pose) == 6 {
		pose = spatial.NewPose(l.cfg.Pose[0], l.cfg.Pose[1], l.cfg.Pose[2],
			l.cfg.Pose[3], l.cfg.Pose[4], l.cfg.Pose[5])
	}
	l.worldPose = pose
	l.initialPose = pose
}

// UpdateParameters re-applies a changed declaration to a loaded link.
// Mass properties are reloaded, visuals are republished, and collision
// parameters are forwarded to the owned children by name. Collisions
// absent from the link are ignored; shapes cannot be added after Load.
func (l *Link) UpdateParameters(cfg config.Link) error {
	if !l.static && cfg.Inertial != nil {
		if err := l.inertial.Load(cfg.Inertial); err != nil {
			return fmt.Errorf("link %q: %w", l.ScopedName, err)
		}
		l.linearDamping = l.inertial.LinearDamping()
		l.angularDamping = l.inertial.AngularDamping()
	}

	for _, v := range cfg.Visuals {
		msg := msgs.Visual{
			Name:       l.ScopedName + "::" + v.Name,
			ParentName: l.ScopedName,
			Geometry:   v.Geometry,
			Material:   v.Material,
			IsStatic:   l.static,
		}
		l.visPub.Publish(msg)
		known := false
		for _, name := range l.visuals {
			if name == msg.Name {
				known = true
				break
			}
		}
		if !known {
			l.visuals = append(l.visuals, msg.Name)
		}
	}

	for _, c := range cfg.Collisions {
		if col := l.Collision(l.ScopedName + "::" + c.Name); col != nil {
			col.UpdateParameters(c)
		}
	}

	l.cfg = cfg
	return nil
}

// Fini publishes one deletion request per published visual through the
// acknowledged channel before releasing sub-entity state, so observers
// see the cleanup before the link disappears.
func (l *Link) Fini(ctx context.Context) error {
	for _, name := range l.visuals {
		req := msgs.NewRequest(l.ID, "entity_delete", name)
		if err := l.reqPub.PublishAck(ctx, req); err != nil {
			return fmt.Errorf("link %q fini: %w", l.ScopedName, err)
		}
	}
	for _, name := range l.cgVisuals {
		req := msgs.NewRequest(l.ID, "entity_delete", name)
		if err := l.reqPub.PublishAck(ctx, req); err != nil {
			return fmt.Errorf("link %q fini: %w", l.ScopedName, err)
		}
	}
	l.visuals = nil
	l.cgVisuals = nil
	l.sensors = nil
	return nil
}

// SetCollideMode maps a symbolic mode onto the collision bitmask of
// every collision child. Unknown modes mutate nothing.
func (l *Link) SetCollideMode(mode string) error {
	var bits uint32
	switch mode {
	case "all":
		bits = CollideAll
	case "none":
		bits = CollideNone
	case "sensors":
		bits = CollideSensor
	case "ghost":
		bits = CollideGhost
	default:
		return fmt.Errorf("link %q: unknown collide mode %q", l.ScopedName, mode)
	}
	for _, c := range l.collisions {
		c.SetCategoryBits(bits)
		c.SetCollideBits(bits)
	}
	return nil
}

// SetLaserRetro sets the laser reflectiveness on every collision child.
func (l *Link) SetLaserRetro(retro float64) {
	for _, c := range l.collisions {
		c.SetLaserRetro(retro)
	}
}

// AddParentJoint registers a joint whose child is this link. Append-only
// and non-owning: the scene graph owns the joint.
func (l *Link) AddParentJoint(jointID uint32) {
	l.parentJoints = append(l.parentJoints, jointID)
}

// AddChildJoint registers a joint whose parent is this link.
func (l *Link) AddChildJoint(jointID uint32) {
	l.childJoints = append(l.childJoints, jointID)
}

// ParentJoints returns the registered parent joint ids.
func (l *Link) ParentJoints() []uint32 { return l.parentJoints }

// ChildJoints returns the registered child joint ids.
func (l *Link) ChildJoints() []uint32 { return l.childJoints }

// Collisions returns the owned collision children in declaration order.
func (l *Link) Collisions() []*Collision { return l.collisions }

// Collision returns an owned collision child by scoped name.
func (l *Link) Collision(name string) *Collision {
	for _, c := range l.collisions {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// CollisionByID returns an owned collision child by id.
func (l *Link) CollisionByID(id uint32) *Collision {
	for _, c := range l.collisions {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// BoundingRadius returns a conservative bounding sphere radius around
// the link origin, aggregated over the collision children. A link
// without collisions has no extent.
func (l *Link) BoundingRadius() float64 {
	var r float64
	for _, c := range l.collisions {
		cr := c.Pose().Pos.Len() + c.Geometry().BoundingRadius()
		if cr > r {
			r = cr
		}
	}
	return r
}

// Inertial returns the owned inertial descriptor.
func (l *Link) Inertial() *Inertial { return l.inertial }

// SensorCount returns the number of referenced sensors.
func (l *Link) SensorCount() int { return len(l.sensors) }

// SensorName returns the i-th referenced sensor's scoped name.
func (l *Link) SensorName(i int) string {
	if i < 0 || i >= len(l.sensors) {
		return ""
	}
	return l.sensors[i]
}

// VisualNames returns the published visual names.
func (l *Link) VisualNames() []string { return l.visuals }

func (l *Link) IsStatic() bool          { return l.static }
func (l *Link) IsKinematic() bool       { return l.kinematic }
func (l *Link) SelfCollide() bool       { return l.selfCollide }
func (l *Link) GravityMode() bool       { return l.gravityMode }
func (l *Link) Enabled() bool           { return l.enabled }
func (l *Link) LinearDamping() float64  { return l.linearDamping }
func (l *Link) AngularDamping() float64 { return l.angularDamping }

func (l *Link) SetKinematic(k bool)   { l.kinematic = k }
func (l *Link) SetSelfCollide(s bool) { l.selfCollide = s }
func (l *Link) SetGravityMode(g bool) { l.gravityMode = g }
func (l *Link) SetEnabled(e bool)     { l.enabled = e }

// WorldPose returns the stored world pose.
func (l *Link) WorldPose() spatial.Pose { return l.worldPose }

// SetWorldPose stores the current world pose.
func (l *Link) SetWorldPose(p spatial.Pose) { l.worldPose = p }

// InitialPose returns the pose applied at the end of Init.
func (l *Link) InitialPose() spatial.Pose { return l.initialPose }

// SetWorldVelocity stores the current world-frame velocities.
func (l *Link) SetWorldVelocity(linear, angular mgl64.Vec3) {
	l.worldLinearVel = linear
	l.worldAngularVel = angular
}

// SetWorldWrench stores the world-frame force and torque acting on the
// link.
func (l *Link) SetWorldWrench(force, torque mgl64.Vec3) {
	l.worldForce = force
	l.worldTorque = torque
}

// SetLinearAccel stores a commanded linear acceleration.
func (l *Link) SetLinearAccel(accel mgl64.Vec3) { l.linearAccel = accel }

// SetAngularAccel stores a commanded angular acceleration scaled by
// mass.
func (l *Link) SetAngularAccel(accel mgl64.Vec3) {
	l.angularAccel = accel.Mul(l.inertial.Mass())
}

// The derived accessors below are pure functions of the stored world
// pose, world wrench, world velocities, and mass. Nothing is cached, so
// they cannot drift out of sync with pose updates.

func (l *Link) WorldLinearVel() mgl64.Vec3  { return l.worldLinearVel }
func (l *Link) WorldAngularVel() mgl64.Vec3 { return l.worldAngularVel }
func (l *Link) WorldForce() mgl64.Vec3      { return l.worldForce }
func (l *Link) WorldTorque() mgl64.Vec3     { return l.worldTorque }

// RelativeLinearVel expresses the world linear velocity in the link
// frame.
func (l *Link) RelativeLinearVel() mgl64.Vec3 {
	return l.worldPose.RotateVectorReverse(l.worldLinearVel)
}

// RelativeAngularVel expresses the world angular velocity in the link
// frame.
func (l *Link) RelativeAngularVel() mgl64.Vec3 {
	return l.worldPose.RotateVectorReverse(l.worldAngularVel)
}

// RelativeForce expresses the world force in the link frame.
func (l *Link) RelativeForce() mgl64.Vec3 {
	return l.worldPose.RotateVectorReverse(l.worldForce)
}

// RelativeTorque expresses the world torque in the link frame.
func (l *Link) RelativeTorque() mgl64.Vec3 {
	return l.worldPose.RotateVectorReverse(l.worldTorque)
}

// WorldLinearAccel derives acceleration from the stored world force and
// mass.
func (l *Link) WorldLinearAccel() mgl64.Vec3 {
	m := l.inertial.Mass()
	if m <= 0 {
		return mgl64.Vec3{}
	}
	return l.worldForce.Mul(1 / m)
}

// RelativeLinearAccel derives acceleration from the relative force and
// mass.
func (l *Link) RelativeLinearAccel() mgl64.Vec3 {
	m := l.inertial.Mass()
	if m <= 0 {
		return mgl64.Vec3{}
	}
	return l.RelativeForce().Mul(1 / m)
}

// WorldAngularAccel derives angular acceleration from the stored world
// torque and mass.
func (l *Link) WorldAngularAccel() mgl64.Vec3 {
	m := l.inertial.Mass()
	if m <= 0 {
		return mgl64.Vec3{}
	}
	return l.worldTorque.Mul(1 / m)
}

// RelativeAngularAccel derives angular acceleration from the relative
// torque and mass.
func (l *Link) RelativeAngularAccel() mgl64.Vec3 {
	m := l.inertial.Mass()
	if m <= 0 {
		return mgl64.Vec3{}
	}
	return l.RelativeTorque().Mul(1 / m)
}

// FillStateMessage serializes the link into its canonical external
// representation.
func (l *Link) FillStateMessage(m *msgs.LinkState) {
	m.ID = l.ID
	m.Name = l.ScopedName
	m.Pose = spatial.ToMsg(l.worldPose)
	m.SelfCollide = msgs.Bool(l.selfCollide)
	m.Gravity = msgs.Bool(l.gravityMode)
	m.Kinematic = msgs.Bool(l.kinematic)

	inertial := &msgs.Inertial{}
	l.inertial.FillMsg(inertial)
	m.Inertial = inertial

	m.Collisions = m.Collisions[:0]
	for _, c := range l.collisions {
		var cs msgs.CollisionState
		c.FillStateMessage(&cs)
		m.Collisions = append(m.Collisions, cs)
	}
}

// ApplyStateMessage merges an inbound state message. A message whose id
// does not match the link's id is rejected with no mutation; otherwise
// only the fields present in the message are applied, and nested blocks
// are forwarded to the owned sub-entities by id.
func (l *Link) ApplyStateMessage(m *msgs.LinkState) error {
	if m.ID != l.ID {
		return fmt.Errorf("link %q: state message id %d does not match %d",
			l.ScopedName, m.ID, l.ID)
	}
	if m.Name != "" {
		l.Name = m.Name
	}
	if m.Pose != nil {
		if p := spatial.FromMsg(m.Pose); p.IsValid() {
			l.worldPose = p
		} else {
			l.log.Error("ignoring invalid pose in state message",
				"link", l.ScopedName)
		}
	}
	if m.SelfCollide != nil {
		l.selfCollide = *m.SelfCollide
	}
	if m.Gravity != nil {
		l.gravityMode = *m.Gravity
	}
	if m.Kinematic != nil {
		l.kinematic = *m.Kinematic
	}
	if m.Inertial != nil {
		l.inertial.ApplyMsg(m.Inertial)
	}
	for i := range m.Collisions {
		if c := l.CollisionByID(m.Collisions[i].ID); c != nil {
			c.ApplyStateMessage(&m.Collisions[i])
		}
	}
	return nil
}

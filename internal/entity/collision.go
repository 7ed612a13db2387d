package entity

import (
	"sync/atomic"

	"github.com/rigsim/rigsim/internal/config"
	"github.com/rigsim/rigsim/internal/msgs"
	"github.com/rigsim/rigsim/internal/spatial"
)

// Collision bitmasks applied through SetCollideMode.
const (
	CollideNone   uint32 = 0x00000000
	CollideAll    uint32 = 0x0FFFFFFF
	CollideSensor uint32 = 0x10000000
	CollideGhost  uint32 = 0x20000000
)

var nextEntityID atomic.Uint32

// NewEntityID hands out dense ids shared by links and collisions.
func NewEntityID() uint32 {
	return nextEntityID.Add(1)
}

// Collision is one collision descriptor owned by a link. It owns no
// children of its own.
type Collision struct {
	Name string
	ID   uint32

	geom         Geometry
	pose         spatial.Pose
	categoryBits uint32
	collideBits  uint32
	laserRetro   float64
	initialized  bool
}

// NewCollision builds a descriptor around a resolved geometry.
func NewCollision(name string, geom Geometry, cfg config.Collision) *Collision {
	c := &Collision{
		Name:         name,
		ID:           NewEntityID(),
		geom:         geom,
		pose:         spatial.Identity(),
		categoryBits: CollideAll,
		collideBits:  CollideAll,
		laserRetro:   cfg.LaserRetro,
	}
	if len(cfg.Pose) == 6 {
		c.pose = spatial.NewPose(cfg.Pose[0], cfg.Pose[1], cfg.Pose[2],
			cfg.Pose[3], cfg.Pose[4], cfg.Pose[5])
	}
	return c
}

// UpdateParameters re-applies a changed declaration to the descriptor.
// The resolved geometry is kept; only the offset pose and laser
// reflectiveness follow the new declaration.
func (c *Collision) UpdateParameters(cfg config.Collision) {
	c.laserRetro = cfg.LaserRetro
	if len(cfg.Pose) == 6 {
		c.pose = spatial.NewPose(cfg.Pose[0], cfg.Pose[1], cfg.Pose[2],
			cfg.Pose[3], cfg.Pose[4], cfg.Pose[5])
	}
}

// Init marks the descriptor ready for stepping.
func (c *Collision) Init() {
	c.initialized = true
}

// Initialized reports whether Init has run.
func (c *Collision) Initialized() bool { return c.initialized }

// Geometry returns the resolved shape.
func (c *Collision) Geometry() Geometry { return c.geom }

// Pose returns the descriptor's offset from its link.
func (c *Collision) Pose() spatial.Pose { return c.pose }

// SetCategoryBits sets the collision category mask.
func (c *Collision) SetCategoryBits(bits uint32) { c.categoryBits = bits }

// SetCollideBits sets the mask of categories this shape collides with.
func (c *Collision) SetCollideBits(bits uint32) { c.collideBits = bits }

// CategoryBits returns the current category mask.
func (c *Collision) CategoryBits() uint32 { return c.categoryBits }

// CollideBits returns the current collide mask.
func (c *Collision) CollideBits() uint32 { return c.collideBits }

// SetLaserRetro sets the laser reflectiveness of the shape.
func (c *Collision) SetLaserRetro(retro float64) { c.laserRetro = retro }

// LaserRetro returns the laser reflectiveness of the shape.
func (c *Collision) LaserRetro() float64 { return c.laserRetro }

// FillStateMessage writes the descriptor into a collision block.
func (c *Collision) FillStateMessage(m *msgs.CollisionState) {
	m.ID = c.ID
	m.Name = c.Name
	m.Geometry = c.geom.Type()
	m.Pose = spatial.ToMsg(c.pose)
	m.Retro = msgs.Float(c.laserRetro)
}

// ApplyStateMessage merges the fields present in an inbound block.
func (c *Collision) ApplyStateMessage(m *msgs.CollisionState) {
	if m.Pose != nil {
		if p := spatial.FromMsg(m.Pose); p.IsValid() {
			c.pose = p
		}
	}
	if m.Retro != nil {
		c.laserRetro = *m.Retro
	}
}

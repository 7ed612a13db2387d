package entity

import (
	"fmt"

	"github.com/rigsim/rigsim/internal/config"
)

// Geometry is one resolved collision shape.
type Geometry interface {
	Type() string
	BoundingRadius() float64
}

// GeometryFactory builds a shape from its declaration.
type GeometryFactory func(cfg config.Geometry) (Geometry, error)

// Registry resolves geometry type names to factories, in the same spirit
// as a model registry: unknown names are an error at load time.
type Registry struct {
	factories map[string]GeometryFactory
}

// NewRegistry returns a registry with the builtin shapes registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]GeometryFactory)}
	r.factories["box"] = newBox
	r.factories["sphere"] = newSphere
	r.factories["cylinder"] = newCylinder
	r.factories["plane"] = newPlane
	return r
}

// Register adds a custom geometry factory.
func (r *Registry) Register(name string, f GeometryFactory) {
	r.factories[name] = f
}

// New resolves a geometry declaration. Unknown types are fatal to the
// load that requested them.
func (r *Registry) New(cfg config.Geometry) (Geometry, error) {
	f, ok := r.factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown geometry type: %q", cfg.Type)
	}
	return f(cfg)
}

type box struct {
	sx, sy, sz float64
}

func newBox(cfg config.Geometry) (Geometry, error) {
	if len(cfg.Size) != 3 {
		return nil, fmt.Errorf("box geometry needs size [x y z], got %d values", len(cfg.Size))
	}
	return &box{sx: cfg.Size[0], sy: cfg.Size[1], sz: cfg.Size[2]}, nil
}

func (b *box) Type() string { return "box" }

func (b *box) BoundingRadius() float64 {
	return 0.5 * maxf(b.sx, maxf(b.sy, b.sz))
}

type sphere struct {
	radius float64
}

func newSphere(cfg config.Geometry) (Geometry, error) {
	if cfg.Radius <= 0 {
		return nil, fmt.Errorf("sphere geometry needs positive radius, got %f", cfg.Radius)
	}
	return &sphere{radius: cfg.Radius}, nil
}

func (s *sphere) Type() string            { return "sphere" }
func (s *sphere) BoundingRadius() float64 { return s.radius }

type cylinder struct {
	radius, length float64
}

func newCylinder(cfg config.Geometry) (Geometry, error) {
	if cfg.Radius <= 0 || cfg.Length <= 0 {
		return nil, fmt.Errorf("cylinder geometry needs positive radius and length")
	}
	return &cylinder{radius: cfg.Radius, length: cfg.Length}, nil
}

func (c *cylinder) Type() string { return "cylinder" }

func (c *cylinder) BoundingRadius() float64 {
	return maxf(c.radius, 0.5*c.length)
}

type plane struct{}

func newPlane(cfg config.Geometry) (Geometry, error) { return &plane{}, nil }

func (p *plane) Type() string            { return "plane" }
func (p *plane) BoundingRadius() float64 { return 0 }

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

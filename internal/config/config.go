package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultDt          = 0.001
	DefaultPublishRate = 60.0
	DefaultGravityZ    = -9.81
)

// World is the root of the declarative scene description.
type World struct {
	Name        string     `yaml:"name"`
	Dt          float64    `yaml:"dt"`
	PublishRate float64    `yaml:"publish_rate"`
	Gravity     [3]float64 `yaml:"gravity"`
	Integrator  string     `yaml:"integrator"`
	Links       []Link     `yaml:"links"`
	Joints      []Joint    `yaml:"joints"`
}

// Link declares one rigid body and its owned sub-entities.
type Link struct {
	Name        string      `yaml:"name"`
	Static      bool        `yaml:"static"`
	SelfCollide bool        `yaml:"self_collide"`
	Gravity     bool        `yaml:"gravity"`
	Kinematic   bool        `yaml:"kinematic"`
	Pose        []float64   `yaml:"pose"` // x y z roll pitch yaw
	Inertial    *Inertial   `yaml:"inertial"`
	Visuals     []Visual    `yaml:"visuals"`
	Collisions  []Collision `yaml:"collisions"`
	Sensors     []Sensor    `yaml:"sensors"`
}

// Inertial declares the mass properties of a link.
type Inertial struct {
	Mass           float64   `yaml:"mass"`
	IXX            float64   `yaml:"ixx"`
	IXY            float64   `yaml:"ixy"`
	IXZ            float64   `yaml:"ixz"`
	IYY            float64   `yaml:"iyy"`
	IYZ            float64   `yaml:"iyz"`
	IZZ            float64   `yaml:"izz"`
	LinearDamping  float64   `yaml:"linear_damping"`
	AngularDamping float64   `yaml:"angular_damping"`
	Pose           []float64 `yaml:"pose"`
}

// Visual declares one renderable attached to a link.
type Visual struct {
	Name     string `yaml:"name"`
	Geometry string `yaml:"geometry"`
	Material string `yaml:"material"`
}

// Geometry declares a collision shape by type name plus dimensions.
type Geometry struct {
	Type   string    `yaml:"type"`
	Size   []float64 `yaml:"size"`
	Radius float64   `yaml:"radius"`
	Length float64   `yaml:"length"`
}

// Collision declares one collision descriptor of a link.
type Collision struct {
	Name       string    `yaml:"name"`
	Geometry   Geometry  `yaml:"geometry"`
	Pose       []float64 `yaml:"pose"`
	LaserRetro float64   `yaml:"laser_retro"`
}

// Sensor declares one sensor attached to a link, owned by the sensor
// manager rather than the link itself.
type Sensor struct {
	Name       string  `yaml:"name"`
	Type       string  `yaml:"type"`
	UpdateRate float64 `yaml:"update_rate"`
}

// Joint declares one constraint between two links.
type Joint struct {
	Name    string    `yaml:"name"`
	Type    string    `yaml:"type"`
	Parent  string    `yaml:"parent"`
	Child   string    `yaml:"child"`
	Axis    []float64 `yaml:"axis"`
	Damping float64   `yaml:"damping"`
}

// DefaultWorld returns a world with the stock step settings.
func DefaultWorld() *World {
	return &World{
		Name:        "default",
		Dt:          DefaultDt,
		PublishRate: DefaultPublishRate,
		Gravity:     [3]float64{0, 0, DefaultGravityZ},
		Integrator:  "rk4",
	}
}

// Load reads a world file, applying defaults for absent fields.
func Load(path string) (*World, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultWorld()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse world %s: %w", path, err)
	}
	if cfg.Dt <= 0 {
		return nil, fmt.Errorf("world %s: dt must be positive, got %f", path, cfg.Dt)
	}
	return cfg, nil
}

// Save writes the world description back to disk.
func Save(path string, cfg *World) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

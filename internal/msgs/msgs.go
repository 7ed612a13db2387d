// Package msgs holds the immutable message types exchanged between the
// physics entities and their observers. Optional fields are pointers so a
// received message can be merged partially: only fields that are present
// mutate the target entity.
package msgs

// Pose is a position plus an orientation quaternion in the world frame.
type Pose struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	Z  float64 `json:"z"`
	QW float64 `json:"qw"`
	QX float64 `json:"qx"`
	QY float64 `json:"qy"`
	QZ float64 `json:"qz"`
}

// Visual describes one renderable attached to a link. A Visual with
// DeleteMe set instructs observers to drop the named visual.
type Visual struct {
	Name       string `json:"name"`
	ParentName string `json:"parent_name"`
	Geometry   string `json:"geometry,omitempty"`
	Material   string `json:"material,omitempty"`
	IsStatic   bool   `json:"is_static"`
	Pose       *Pose  `json:"pose,omitempty"`
	DeleteMe   bool   `json:"delete_me,omitempty"`
}

// Request is a control message addressed to the entity manager, such as
// an entity_delete issued during teardown.
type Request struct {
	ID      uint32 `json:"id"`
	Request string `json:"request"`
	Data    string `json:"data"`
}

// NewRequest builds a request message of the given kind.
func NewRequest(id uint32, request, data string) Request {
	return Request{ID: id, Request: request, Data: data}
}

// Inertial carries the mass properties of one link.
type Inertial struct {
	Mass           *float64 `json:"mass,omitempty"`
	IXX            *float64 `json:"ixx,omitempty"`
	IXY            *float64 `json:"ixy,omitempty"`
	IXZ            *float64 `json:"ixz,omitempty"`
	IYY            *float64 `json:"iyy,omitempty"`
	IYZ            *float64 `json:"iyz,omitempty"`
	IZZ            *float64 `json:"izz,omitempty"`
	LinearDamping  *float64 `json:"linear_damping,omitempty"`
	AngularDamping *float64 `json:"angular_damping,omitempty"`
	Pose           *Pose    `json:"pose,omitempty"`
}

// CollisionState mirrors one collision descriptor of a link.
type CollisionState struct {
	ID       uint32   `json:"id"`
	Name     string   `json:"name"`
	Geometry string   `json:"geometry,omitempty"`
	Pose     *Pose    `json:"pose,omitempty"`
	Retro    *float64 `json:"laser_retro,omitempty"`
}

// LinkState is the canonical external representation of a link. Inbound
// messages are applied with partial-merge semantics keyed by ID.
type LinkState struct {
	ID          uint32           `json:"id"`
	Name        string           `json:"name"`
	Pose        *Pose            `json:"pose,omitempty"`
	SelfCollide *bool            `json:"self_collide,omitempty"`
	Gravity     *bool            `json:"gravity,omitempty"`
	Kinematic   *bool            `json:"kinematic,omitempty"`
	Inertial    *Inertial        `json:"inertial,omitempty"`
	Collisions  []CollisionState `json:"collisions,omitempty"`
}

// WorldStats summarizes the stepping loop for observers, published at
// the same rate as link state.
type WorldStats struct {
	SimTime   float64 `json:"sim_time"`
	Steps     uint64  `json:"steps"`
	LinkCount int     `json:"link_count"`
	Paused    bool    `json:"paused,omitempty"`
}

// Bool returns a pointer to b, for building partial messages.
func Bool(b bool) *bool { return &b }

// Float returns a pointer to f, for building partial messages.
func Float(f float64) *float64 { return &f }

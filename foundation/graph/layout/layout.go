// Package layout implements a force-directed layout for graph snapshots.
// Positions live in an arena keyed by node id and only Tick moves them.
package layout

import (
	"math"
	"math/rand/v2"

	"github.com/ardanlabs/blockgraph/foundation/graph"
	"gonum.org/v1/gonum/spatial/r2"
)

// Set of default simulation values.
const (
	DefaultLinkDistance   = 100
	DefaultChargeStrength = 50
	DefaultAlphaDecay     = 0.05
	DefaultAlphaMin       = 0.001
	DefaultVelocityDecay  = 0.4
	DefaultInitialRadius  = 10
)

// Config represents the forces and energy schedule of the simulation.
type Config struct {
	LinkDistance   float64
	ChargeStrength float64
	AlphaDecay     float64
	AlphaMin       float64
	VelocityDecay  float64
	InitialRadius  float64
	Center         r2.Vec
	Seed           uint64
}

// DefaultConfig returns the default forces centred on the specified
// canvas size.
func DefaultConfig(width, height float64) Config {
	return Config{
		LinkDistance:   DefaultLinkDistance,
		ChargeStrength: DefaultChargeStrength,
		AlphaDecay:     DefaultAlphaDecay,
		AlphaMin:       DefaultAlphaMin,
		VelocityDecay:  DefaultVelocityDecay,
		InitialRadius:  DefaultInitialRadius,
		Center:         r2.Vec{X: width / 2, Y: height / 2},
		Seed:           1,
	}
}

// body is the simulation state for one node.
type body struct {
	id  string
	pos r2.Vec
	vel r2.Vec
}

// spring connects two bodies in the arena.
type spring struct {
	source   int
	target   int
	strength float64
	bias     float64
}

// Stepper advances the simulation. It is not safe for concurrent use.
type Stepper struct {
	cfg     Config
	alpha   float64
	bodies  []body
	index   map[string]int
	springs []spring
	rnd     *rand.Rand
}

// New constructs a stepper with an empty arena.
func New(cfg Config) *Stepper {
	return &Stepper{
		cfg:   cfg,
		index: make(map[string]int),
		rnd:   rand.New(rand.NewPCG(cfg.Seed, cfg.Seed)),
	}
}

// Reseed rebuilds the arena for a new snapshot and restarts the energy.
// Nodes that already have a position keep it, new nodes are placed on a
// spiral around the centre at their index in the snapshot and nodes missing
// from the snapshot are dropped.
func (s *Stepper) Reseed(snap graph.Snapshot) {
	bodies := make([]body, 0, len(snap.Nodes))
	index := make(map[string]int, len(snap.Nodes))

	for i, n := range snap.Nodes {
		b, exists := s.lookup(n.ID)
		if !exists {
			b = body{id: n.ID, pos: s.spiral(i)}
		}
		index[n.ID] = len(bodies)
		bodies = append(bodies, b)
	}

	s.bodies = bodies
	s.index = index
	s.springs = s.buildSprings(snap.Links)
	s.alpha = 1
}

// Tick advances positions and velocities by one step. It reports false and
// leaves the arena untouched once the energy has decayed below AlphaMin.
func (s *Stepper) Tick() bool {
	if !s.Active() {
		return false
	}

	s.alpha += (0 - s.alpha) * s.cfg.AlphaDecay

	s.applyLinks()
	s.applyCharge()
	s.applyCenter()

	keep := 1 - s.cfg.VelocityDecay
	for i := range s.bodies {
		b := &s.bodies[i]
		b.vel = r2.Scale(keep, b.vel)
		b.pos = r2.Add(b.pos, b.vel)
	}

	return true
}

// Active reports whether the simulation still has energy.
func (s *Stepper) Active() bool {
	return s.alpha >= s.cfg.AlphaMin
}

// Alpha returns the current energy.
func (s *Stepper) Alpha() float64 {
	return s.alpha
}

// SetCenter moves the point the centering force pulls towards. It does not
// restart the energy.
func (s *Stepper) SetCenter(x, y float64) {
	s.cfg.Center = r2.Vec{X: x, Y: y}
}

// Len returns the number of bodies in the arena.
func (s *Stepper) Len() int {
	return len(s.bodies)
}

// Position returns the position of the specified node.
func (s *Stepper) Position(id string) (r2.Vec, bool) {
	i, exists := s.index[id]
	if !exists {
		return r2.Vec{}, false
	}
	return s.bodies[i].pos, true
}

// Positions returns a copy of every position in the arena.
func (s *Stepper) Positions() map[string]r2.Vec {
	m := make(map[string]r2.Vec, len(s.bodies))
	for _, b := range s.bodies {
		m[b.id] = b.pos
	}
	return m
}

// =============================================================================

func (s *Stepper) lookup(id string) (body, bool) {
	i, exists := s.index[id]
	if !exists {
		return body{}, false
	}
	return s.bodies[i], true
}

// spiral returns point i of a phyllotaxis arrangement around the centre.
// The index is the node's place in the live snapshot so the spiral never
// grows beyond the size of the graph.
func (s *Stepper) spiral(index int) r2.Vec {
	angle := math.Pi * (3 - math.Sqrt(5))
	i := float64(index)

	radius := s.cfg.InitialRadius * math.Sqrt(0.5+i)
	return r2.Vec{
		X: s.cfg.Center.X + radius*math.Cos(i*angle),
		Y: s.cfg.Center.Y + radius*math.Sin(i*angle),
	}
}

// jiggle returns a tiny random offset used to separate coincident points.
func (s *Stepper) jiggle() float64 {
	return (s.rnd.Float64() - 0.5) * 1e-6
}

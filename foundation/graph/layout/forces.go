package layout

import (
	"math"

	"github.com/ardanlabs/blockgraph/foundation/graph"
	"gonum.org/v1/gonum/spatial/r2"
)

// buildSprings resolves links against the arena. Springs between busy
// nodes are weaker and the displacement favours the less connected end.
func (s *Stepper) buildSprings(links []graph.Link) []spring {
	degree := make([]int, len(s.bodies))
	springs := make([]spring, 0, len(links))

	for _, l := range links {
		src, ok1 := s.index[l.Source]
		tgt, ok2 := s.index[l.Target]
		if !ok1 || !ok2 {
			continue
		}
		degree[src]++
		degree[tgt]++
		springs = append(springs, spring{source: src, target: tgt})
	}

	for i := range springs {
		sp := &springs[i]
		ds, dt := float64(degree[sp.source]), float64(degree[sp.target])
		sp.strength = 1 / math.Min(ds, dt)
		sp.bias = ds / (ds + dt)
	}

	return springs
}

// applyLinks pulls the ends of every link towards LinkDistance.
func (s *Stepper) applyLinks() {
	for _, sp := range s.springs {
		if sp.source == sp.target {
			continue
		}

		src := &s.bodies[sp.source]
		tgt := &s.bodies[sp.target]

		d := r2.Sub(r2.Add(tgt.pos, tgt.vel), r2.Add(src.pos, src.vel))
		if d.X == 0 {
			d.X = s.jiggle()
		}
		if d.Y == 0 {
			d.Y = s.jiggle()
		}

		l := r2.Norm(d)
		l = (l - s.cfg.LinkDistance) / l * s.alpha * sp.strength
		d = r2.Scale(l, d)

		tgt.vel = r2.Sub(tgt.vel, r2.Scale(sp.bias, d))
		src.vel = r2.Add(src.vel, r2.Scale(1-sp.bias, d))
	}
}

// applyCharge pushes every pair of bodies apart with a force that falls off
// with the inverse of their distance.
func (s *Stepper) applyCharge() {
	const distanceMin2 = 1

	strength := -s.cfg.ChargeStrength
	for i := range s.bodies {
		bi := &s.bodies[i]
		for j := range s.bodies {
			if i == j {
				continue
			}

			d := r2.Sub(s.bodies[j].pos, bi.pos)
			if d.X == 0 {
				d.X = s.jiggle()
			}
			if d.Y == 0 {
				d.Y = s.jiggle()
			}

			l := r2.Norm2(d)
			if l < distanceMin2 {
				l = math.Sqrt(distanceMin2 * l)
			}

			bi.vel = r2.Add(bi.vel, r2.Scale(strength*s.alpha/l, d))
		}
	}
}

// applyCenter translates the arena so its mean sits on the centre.
func (s *Stepper) applyCenter() {
	if len(s.bodies) == 0 {
		return
	}

	var sum r2.Vec
	for _, b := range s.bodies {
		sum = r2.Add(sum, b.pos)
	}

	shift := r2.Sub(r2.Scale(1/float64(len(s.bodies)), sum), s.cfg.Center)
	for i := range s.bodies {
		s.bodies[i].pos = r2.Sub(s.bodies[i].pos, shift)
	}
}

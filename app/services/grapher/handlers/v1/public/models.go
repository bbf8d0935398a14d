package public

import (
	"github.com/ardanlabs/blockgraph/foundation/graph/viewport"
	"gonum.org/v1/gonum/spatial/r2"
)

type point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type layout struct {
	Version   uint64           `json:"version"`
	Alpha     float64          `json:"alpha"`
	Positions map[string]point `json:"positions"`
}

func toPoints(positions map[string]r2.Vec) map[string]point {
	pts := make(map[string]point, len(positions))
	for id, p := range positions {
		pts[id] = point{X: p.X, Y: p.Y}
	}
	return pts
}

type fit struct {
	viewport.Transform
	Canvas viewport.Size `json:"canvas"`
}

type status struct {
	Status string `json:"status"`
	Paused bool   `json:"paused"`
}

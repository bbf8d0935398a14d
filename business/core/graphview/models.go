package graphview

import (
	"github.com/ardanlabs/blockgraph/foundation/graph/present"
	"github.com/ardanlabs/blockgraph/foundation/graph/viewport"
	"github.com/ardanlabs/blockgraph/foundation/stream"
)

// Frame is one scene together with the transform to draw it with.
type Frame struct {
	present.Scene
	Canvas viewport.Size       `json:"canvas"`
	Fit    *viewport.Transform `json:"fit,omitempty"`
	Alpha  float64             `json:"alpha"`
}

// Stats is the stats panel plus the state of the stream.
type Stats struct {
	present.Stats
	Stream stream.Stats `json:"stream"`
	Queued int          `json:"queued"`
	Alpha  float64      `json:"alpha"`
}

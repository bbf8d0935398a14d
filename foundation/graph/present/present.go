// Package present converts snapshots and layout positions into drawable
// primitives, tooltips and the stats panel.
package present

import (
	"fmt"
	"math"

	"github.com/ardanlabs/blockgraph/foundation/graph"
	"gonum.org/v1/gonum/spatial/r2"
)

// Set of colours and sizes of the drawing.
const (
	ColorSender   = "16, 185, 129"
	ColorReceiver = "99, 102, 241"
	ColorBoth     = "168, 85, 247"

	StrokeActive = "#f59e0b"
	StrokeIdle   = "#9ca3af"
	StrokeLink   = "#6b7280"

	MinOpacity  = 0.3
	LinkOpacity = 0.6
	LinkWidth   = 1.5
	HoverFactor = 1.5
	MaxRadius   = 20
)

// Labeler resolves an address to a display name. Unknown addresses are
// returned unchanged.
type Labeler interface {
	Lookup(address string) string
}

// Circle is one drawable node.
type Circle struct {
	ID          string  `json:"id"`
	Label       string  `json:"label"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Radius      float64 `json:"r"`
	HoverRadius float64 `json:"hover_r"`
	Fill        string  `json:"fill"`
	Stroke      string  `json:"stroke"`
	StrokeWidth float64 `json:"stroke_width"`
	Tooltip     string  `json:"tooltip"`
}

// Line is one drawable link.
type Line struct {
	Hash        string  `json:"hash"`
	X1          float64 `json:"x1"`
	Y1          float64 `json:"y1"`
	X2          float64 `json:"x2"`
	Y2          float64 `json:"y2"`
	Value       string  `json:"value"`
	Stroke      string  `json:"stroke"`
	Opacity     float64 `json:"opacity"`
	StrokeWidth float64 `json:"stroke_width"`
}

// Hottest is the busiest node in a snapshot.
type Hottest struct {
	ID      string `json:"id"`
	Short   string `json:"short"`
	TxCount int    `json:"tx_count"`
}

// Stats is the content of the stats panel.
type Stats struct {
	Nodes        int      `json:"nodes"`
	Links        int      `json:"links"`
	TotalTxs     int      `json:"total_txs"`
	CurrentBlock int64    `json:"current_block"`
	ChainBlock   uint64   `json:"chain_block"`
	Hottest      *Hottest `json:"hottest,omitempty"`
}

// LegendEntry names one node colour.
type LegendEntry struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Scene is everything a renderer needs for one frame.
type Scene struct {
	Version uint64        `json:"version"`
	Circles []Circle      `json:"circles"`
	Lines   []Line        `json:"lines"`
	Stats   Stats         `json:"stats"`
	Legend  []LegendEntry `json:"legend"`
}

// Adapter builds scenes using the retention rules of the aggregator.
type Adapter struct {
	cfg    graph.Config
	labels Labeler
}

// New constructs an adapter. The labeler may be nil.
func New(cfg graph.Config, labels Labeler) Adapter {
	return Adapter{
		cfg:    cfg,
		labels: labels,
	}
}

// Scene joins a snapshot with layout positions. Nodes without a position
// are drawn at the origin.
func (a Adapter) Scene(snap graph.Snapshot, positions map[string]r2.Vec) Scene {
	circles := make([]Circle, len(snap.Nodes))
	for i, n := range snap.Nodes {
		p := positions[n.ID]
		r := Radius(n.TxCount)
		stroke, width := a.Stroke(n)

		circles[i] = Circle{
			ID:          n.ID,
			Label:       a.label(n.ID),
			X:           p.X,
			Y:           p.Y,
			Radius:      r,
			HoverRadius: r * HoverFactor,
			Fill:        a.Fill(n, snap.Block),
			Stroke:      stroke,
			StrokeWidth: width,
			Tooltip:     a.Tooltip(n),
		}
	}

	lines := make([]Line, len(snap.Links))
	for i, l := range snap.Links {
		src := positions[l.Source]
		tgt := positions[l.Target]

		lines[i] = Line{
			Hash:        l.Hash,
			X1:          src.X,
			Y1:          src.Y,
			X2:          tgt.X,
			Y2:          tgt.Y,
			Value:       l.Value,
			Stroke:      StrokeLink,
			Opacity:     LinkOpacity,
			StrokeWidth: LinkWidth,
		}
	}

	return Scene{
		Version: snap.Version,
		Circles: circles,
		Lines:   lines,
		Stats:   StatsOf(snap),
		Legend:  Legend(),
	}
}

// Radius grows with the log of the transaction count up to MaxRadius.
func Radius(txCount int) float64 {
	return math.Min(5+math.Log(float64(max(txCount, 1)))*5, MaxRadius)
}

// Opacity fades a node as it approaches the stale threshold.
func (a Adapter) Opacity(n graph.Node, block int64) float64 {
	age := float64(block - n.LastActiveBlock)
	return math.Max(MinOpacity, 1-age/float64(a.cfg.StaleBlockThreshold))
}

// Fill returns the rgba colour for the node's role and age.
func (a Adapter) Fill(n graph.Node, block int64) string {
	color := ColorReceiver
	switch {
	case n.IsSender && n.IsReceiver:
		color = ColorBoth
	case n.IsSender:
		color = ColorSender
	}

	return fmt.Sprintf("rgba(%s, %g)", color, a.Opacity(n, block))
}

// Stroke highlights nodes at or above the activity threshold.
func (a Adapter) Stroke(n graph.Node) (string, float64) {
	if n.TxCount >= a.cfg.ActivityThreshold {
		return StrokeActive, 2
	}
	return StrokeIdle, 1
}

// Tooltip returns the hover text for a node.
func (a Adapter) Tooltip(n graph.Node) string {
	addr := n.ID
	if name := a.label(n.ID); name != n.ID {
		addr = fmt.Sprintf("%s (%s)", n.ID, name)
	}

	return fmt.Sprintf("Address: %s\nTransactions: %d\nLast Active: Block %d", addr, n.TxCount, n.LastActiveBlock)
}

func (a Adapter) label(id string) string {
	if a.labels == nil {
		return id
	}
	return a.labels.Lookup(id)
}

// =============================================================================

// StatsOf summarises a snapshot for the stats panel.
func StatsOf(snap graph.Snapshot) Stats {
	st := Stats{
		Nodes:        len(snap.Nodes),
		Links:        len(snap.Links),
		TotalTxs:     snap.TotalTxs,
		CurrentBlock: snap.Block,
		ChainBlock:   snap.ChainBlock,
	}

	if len(snap.Nodes) == 0 {
		return st
	}

	hot := snap.Nodes[0]
	for _, n := range snap.Nodes[1:] {
		if n.TxCount > hot.TxCount {
			hot = n
		}
	}

	st.Hottest = &Hottest{
		ID:      hot.ID,
		Short:   Truncate(hot.ID),
		TxCount: hot.TxCount,
	}

	return st
}

// Truncate shortens an address to its first six and last four characters.
func Truncate(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}

// Legend returns the colour key for node roles.
func Legend() []LegendEntry {
	return []LegendEntry{
		{Name: "Sender", Color: fmt.Sprintf("rgb(%s)", ColorSender)},
		{Name: "Receiver", Color: fmt.Sprintf("rgb(%s)", ColorReceiver)},
		{Name: "Both", Color: fmt.Sprintf("rgb(%s)", ColorBoth)},
	}
}

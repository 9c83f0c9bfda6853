// Package generator builds random winding topologies inside the configured
// design space.  Two modes exist: "single" draws a fully random winding
// without rule checks, "iter" grows a winding node by node against a cheap
// partial rule check, with bounded retry budgets so that generation
// terminates even for geometrically infeasible boards.
package generator

import (
	"math/rand"
	"time"

	"github.com/coilforge/coilforge/internal/config"
	"github.com/coilforge/coilforge/internal/domain/geometry"
	"github.com/coilforge/coilforge/internal/infrastructure/monitoring/logging"
	"github.com/coilforge/coilforge/pkg/errors"
	"github.com/coilforge/coilforge/pkg/types/common"
)

// Mode selects the generation strategy.
type Mode string

const (
	// ModeSingle draws a fully random winding, ignoring the design rules.
	ModeSingle Mode = "single"
	// ModeIter grows a winding iteratively against the partial rule check.
	ModeIter Mode = "iter"
)

// CheckFunc is the partial validation callback applied to every committed
// growth step.  It must be cheap: the growth loop calls it once per
// candidate node.
type CheckFunc func(geometry.Winding) bool

// Generator produces random windings.  It is not safe for concurrent use;
// parallel workers own independent Generator instances.
type Generator struct {
	cfg    config.GeneratorConfig
	x      common.Range
	y      common.Range
	width  common.Range
	layers []int
	src    geometry.Terminal
	sink   geometry.Terminal
	check  CheckFunc
	rng    *rand.Rand
	log    logging.Logger

	lastResets int
}

// New builds a Generator from the validated configuration.  A zero seed
// selects a time-based source; check may be nil, in which case every
// candidate passes.
func New(cfg config.GeneratorConfig, enc config.EncodingConfig, board config.BoardConfig, check CheckFunc, log logging.Logger) (*Generator, error) {
	if cfg.NWdg.Min < 2 {
		return nil, errors.New(errors.ErrCodeGenSize, "winding size range starts below 2").
			WithDetailf("n_wdg [%d, %d]", cfg.NWdg.Min, cfg.NWdg.Max)
	}
	if cfg.NWdg.Min > cfg.NWdg.Max || cfg.NInit.Min > cfg.NInit.Max {
		return nil, errors.New(errors.ErrCodeConfigBounds, "generator size range is inverted")
	}
	if check == nil {
		check = func(geometry.Winding) bool { return true }
	}
	if log == nil {
		log = logging.NewNopLogger()
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	src := terminalFromConfig(enc.SrcGeom)
	sink := terminalFromConfig(enc.SinkGeom)
	if src.Size() != enc.NAddSrc || sink.Size() != enc.NAddSink {
		return nil, errors.New(errors.ErrCodeConfigTerminal, "terminal node counts do not match padding")
	}

	return &Generator{
		cfg:    cfg,
		x:      enc.X,
		y:      enc.Y,
		width:  enc.Width,
		layers: append([]int{}, board.LayerList...),
		src:    src,
		sink:   sink,
		check:  check,
		rng:    rand.New(rand.NewSource(seed)),
		log:    log.Named("generator"),
	}, nil
}

func terminalFromConfig(tc config.TerminalConfig) geometry.Terminal {
	nodes := make([]geometry.TerminalNode, len(tc.Nodes))
	for i, n := range tc.Nodes {
		nodes[i] = geometry.TerminalNode{X: n.X, Y: n.Y, Width: n.Width, Layer: n.Layer}
	}
	return geometry.Terminal{Nodes: nodes}
}

// Generate dispatches on the configured mode.
func (g *Generator) Generate(mode Mode) (geometry.Winding, error) {
	switch mode {
	case ModeSingle:
		return g.Single()
	case ModeIter:
		return g.Iter()
	default:
		return geometry.Winding{}, errors.New(errors.ErrCodeGenInvalidMode, "unknown generation mode").
			WithDetailf("mode %q", mode)
	}
}

// Single draws a fully random winding of a random size within the
// configured range, ignoring the design rules.  The caller typically feeds
// the result through the full rule check afterwards.
func (g *Generator) Single() (geometry.Winding, error) {
	nWdg := g.randInt(g.cfg.NWdg)
	return g.buildInit(nWdg, nWdg)
}

// Iter grows a random winding against the partial rule check.  Construction
// keeps an explicit stack of committed partial windings: a failed growth
// step pops the stack (backtrack) instead of unwinding call recursion, so
// stack depth is independent of the target size.  When every retry budget
// is exhausted the generator returns a recoverable exhaustion error.
func (g *Generator) Iter() (geometry.Winding, error) {
	for reset := 0; reset < g.cfg.NIterReset; reset++ {
		nWdg := g.randInt(g.cfg.NWdg)
		nInit := g.randInt(g.cfg.NInit)

		seed, err := g.buildInitChecked(nWdg, nInit)
		if err != nil {
			if errors.IsExhausted(err) {
				continue
			}
			return geometry.Winding{}, err
		}

		w, err := g.growTree(seed, nWdg)
		if err != nil {
			if errors.IsExhausted(err) {
				continue
			}
			return geometry.Winding{}, err
		}
		g.lastResets = reset
		return w, nil
	}

	g.log.Debug("generation exhausted",
		logging.Int("n_iter_reset", g.cfg.NIterReset))
	return geometry.Winding{}, errors.New(errors.ErrCodeGenExhausted, "random generation exhausted the reset budget").
		WithDetailf("n_iter_reset %d", g.cfg.NIterReset)
}

// LastResets reports how many resets the most recent successful Iter run
// consumed before it produced a winding.
func (g *Generator) LastResets() int {
	return g.lastResets
}

// buildInitChecked retries buildInit against the partial rule check within
// the init budget.
func (g *Generator) buildInitChecked(nWdg, nInit int) (geometry.Winding, error) {
	for iter := 0; iter < g.cfg.NIterInit; iter++ {
		w, err := g.buildInit(nWdg, nInit)
		if err != nil {
			return geometry.Winding{}, err
		}
		if g.check(w) {
			return w, nil
		}
	}
	return geometry.Winding{}, errors.New(errors.ErrCodeGenExhausted, "no valid seed winding within the init budget").
		WithDetailf("n_iter_init %d", g.cfg.NIterInit)
}

// buildInit assembles source terminal + random nodes + sink terminal.  The
// random part is capped so the total never exceeds the target size.
func (g *Generator) buildInit(nWdg, nInit int) (geometry.Winding, error) {
	nAdd := nWdg - g.src.Size() - g.sink.Size()
	if nInit < nAdd {
		nAdd = nInit
	}
	if nAdd <= 0 {
		return geometry.Winding{}, errors.New(errors.ErrCodeGenSize, "terminal padding leaves no free nodes").
			WithDetailf("n_wdg %d src %d sink %d", nWdg, g.src.Size(), g.sink.Size())
	}

	src := g.randTerminal(g.src)
	mid := g.randWinding(nAdd, nAdd-1)
	sink := g.randTerminal(g.sink)

	return geometry.Merge(src, mid, sink), nil
}

// growTree grows the seed winding one node at a time toward the target
// size.  dc_vec in the committed stack holds every accepted intermediate
// winding; backtracking pops it.
func (g *Generator) growTree(seed geometry.Winding, nWdg int) (geometry.Winding, error) {
	stack := []geometry.Winding{seed}
	nFail := 0

	for {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if cur.Size() == nWdg {
			return cur, nil
		}

		next, ok := g.tryAdd(cur)
		if ok {
			stack = append(stack, cur, next)
			continue
		}

		nFail++
		if len(stack) == 0 {
			stack = append(stack, cur)
		}
		if nFail >= g.cfg.NIterFail {
			return geometry.Winding{}, errors.New(errors.ErrCodeGenExhausted, "tree growth exhausted the failure budget").
				WithDetailf("n_iter_fail %d size %d target %d", g.cfg.NIterFail, cur.Size(), nWdg)
		}
	}
}

// tryAdd inserts one random node at a random position, re-checking the
// partial rules; it retries within the tree budget.  Re-selecting the
// insertion point on every retry keeps the yield up when a single frontier
// segment is blocked.
func (g *Generator) tryAdd(w geometry.Winding) (geometry.Winding, bool) {
	for iter := 0; iter < g.cfg.NIterTree; iter++ {
		cand := g.insertRandom(w)
		if g.check(cand) {
			return cand, true
		}
	}
	return geometry.Winding{}, false
}

// insertRandom draws one random node and splices it into the winding at a
// random position outside the terminal paddings.  At the boundary to a
// terminal the layer insertion side is forced; in the middle it is drawn at
// random, which decides whether the new segment adopts the layer before or
// after the insertion point.
func (g *Generator) insertRandom(w geometry.Winding) geometry.Winding {
	n := w.Size()
	nSrc := g.src.Size()
	nSink := g.sink.Size()

	width := g.randWidth()
	pt := g.randPoint(width)
	layer := g.layers[g.rng.Intn(len(g.layers))]

	idx := nSrc + g.rng.Intn(n-nSink-nSrc+1)

	var layerIdx int
	switch {
	case idx == nSrc:
		layerIdx = idx
	case idx == n-nSink:
		layerIdx = idx - 1
	case g.rng.Intn(2) == 0:
		layerIdx = idx
	default:
		layerIdx = idx - 1
	}

	return w.InsertNode(idx, layerIdx, pt, width, layer)
}

// randWinding draws nPts fully random nodes and nLayer segment layers.
func (g *Generator) randWinding(nPts, nLayer int) geometry.Winding {
	w := geometry.Winding{
		Coord: make([]geometry.Point, nPts),
		Width: make([]float64, nPts),
		Layer: make([]int, nLayer),
	}
	for i := 0; i < nPts; i++ {
		width := g.randWidth()
		w.Width[i] = width
		w.Coord[i] = g.randPoint(width)
	}
	for i := 0; i < nLayer; i++ {
		w.Layer[i] = g.layers[g.rng.Intn(len(g.layers))]
	}
	return w
}

// randTerminal draws random values for the free components of a terminal
// and keeps every pinned one.
func (g *Generator) randTerminal(t geometry.Terminal) geometry.Winding {
	n := t.Size()
	w := geometry.Winding{
		Coord: make([]geometry.Point, n),
		Width: make([]float64, n),
		Layer: make([]int, n),
	}
	for i, node := range t.Nodes {
		width := g.randWidth()
		if node.Width != nil {
			width = *node.Width
		}
		w.Width[i] = width

		pt := g.randPoint(width)
		if node.X != nil {
			pt.X = *node.X
		}
		if node.Y != nil {
			pt.Y = *node.Y
		}
		w.Coord[i] = pt

		layer := g.layers[g.rng.Intn(len(g.layers))]
		if node.Layer != nil {
			layer = *node.Layer
		}
		w.Layer[i] = layer
	}
	return w
}

// randPoint draws a coordinate such that a node of the given width stays
// inside the coordinate bounds.
func (g *Generator) randPoint(width float64) geometry.Point {
	return geometry.Point{
		X: g.randFloat(g.x.Min+width/2, g.x.Max-width/2),
		Y: g.randFloat(g.y.Min+width/2, g.y.Max-width/2),
	}
}

func (g *Generator) randWidth() float64 {
	return g.randFloat(g.width.Min, g.width.Max)
}

func (g *Generator) randFloat(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + g.rng.Float64()*(hi-lo)
}

// randInt draws uniformly from [r.Min, r.Max], both ends inclusive.
func (g *Generator) randInt(r common.IntRange) int {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + g.rng.Intn(r.Max-r.Min+1)
}

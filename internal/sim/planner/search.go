package planner

import "container/heap"

// Plan is an ordered action sequence satisfying a goal, with its total cost.
// Plans are owned by the requesting agent and discarded whole on
// invalidation; they are never patched.
type Plan struct {
	Goal    string
	Actions []*Action
	Cost    float64
}

func (p *Plan) Names() []string {
	out := make([]string, len(p.Actions))
	for i, a := range p.Actions {
		out[i] = a.Name
	}
	return out
}

// Budget bounds a single search. A search that exhausts either limit
// reports no plan; it never runs unbounded.
type Budget struct {
	MaxNodes int
	MaxDepth int
}

// Request carries one planning call's inputs. Costs, when non-nil, modulates
// an action's base cost by execution context (e.g. travel distance); it must
// be deterministic for identical world states.
type Request struct {
	Start  Projection
	Goal   Goal
	Lib    *Library
	Budget Budget
	Costs  func(*Action) float64
}

type node struct {
	proj  Projection
	g     float64
	h     float64
	seq   []int // action indices, in order
	order int   // FIFO tie-break among otherwise equal nodes
}

type frontier struct {
	nodes []*node
}

func (f *frontier) Len() int { return len(f.nodes) }

func (f *frontier) Less(i, j int) bool {
	a, b := f.nodes[i], f.nodes[j]
	af := a.g + a.h
	bf := b.g + b.h
	if af != bf {
		return af < bf
	}
	if len(a.seq) != len(b.seq) {
		return len(a.seq) < len(b.seq)
	}
	for k := range a.seq {
		if a.seq[k] != b.seq[k] {
			return a.seq[k] < b.seq[k]
		}
	}
	return a.order < b.order
}

func (f *frontier) Swap(i, j int) { f.nodes[i], f.nodes[j] = f.nodes[j], f.nodes[i] }

func (f *frontier) Push(x any) { f.nodes = append(f.nodes, x.(*node)) }

func (f *frontier) Pop() any {
	old := f.nodes
	n := old[len(old)-1]
	old[len(old)-1] = nil
	f.nodes = old[:len(old)-1]
	return n
}

// Search runs a deterministic forward best-first search from the request's
// start projection. It returns nil when no plan exists within budget.
// Identical requests always return identical plans: expansion follows
// library index order, and ties break by shortest sequence then lowest
// action index sequence.
func Search(req Request) *Plan {
	lib := req.Lib
	if lib == nil || len(req.Goal.Desired) == 0 {
		return nil
	}
	cost := req.Costs
	if cost == nil {
		cost = func(a *Action) float64 { return a.Cost }
	}

	start := &node{proj: req.Start, order: 0}
	start.h = heuristic(lib, start.proj, req.Goal.Desired)
	if start.proj.HoldsAll(req.Goal.Desired) {
		return &Plan{Goal: req.Goal.Name}
	}

	open := &frontier{}
	heap.Init(open)
	heap.Push(open, start)

	// best known g per projection key; re-expansion only on strict improvement
	closed := map[string]float64{start.proj.Key(): 0}

	expanded := 0
	orderSeq := 0
	for open.Len() > 0 {
		cur := heap.Pop(open).(*node)
		if cur.proj.HoldsAll(req.Goal.Desired) {
			return finish(req.Goal.Name, lib, cur)
		}
		if expanded >= req.Budget.MaxNodes {
			return nil
		}
		if len(cur.seq) >= req.Budget.MaxDepth {
			// Too deep to extend; shallower frontier nodes may still win.
			continue
		}
		expanded++

		for _, a := range lib.Actions() {
			if !cur.proj.HoldsAll(a.Pre) {
				continue
			}
			if !cur.proj.Changes(a.Effects) {
				continue
			}
			next := cur.proj.With(a.Effects)
			g := cur.g + cost(a)
			key := next.Key()
			if prev, seen := closed[key]; seen && prev <= g {
				continue
			}
			closed[key] = g
			seq := make([]int, len(cur.seq)+1)
			copy(seq, cur.seq)
			seq[len(cur.seq)] = a.Index
			orderSeq++
			heap.Push(open, &node{
				proj:  next,
				g:     g,
				h:     heuristic(lib, next, req.Goal.Desired),
				seq:   seq,
				order: orderSeq,
			})
		}
	}
	return nil
}

func heuristic(lib *Library, p Projection, desired Facts) float64 {
	return float64(p.Mismatches(desired)) * lib.hWeight
}

func finish(goal string, lib *Library, n *node) *Plan {
	plan := &Plan{Goal: goal, Cost: n.g}
	plan.Actions = make([]*Action, len(n.seq))
	for i, idx := range n.seq {
		plan.Actions[i] = lib.Actions()[idx]
	}
	return plan
}

package planner

import "fmt"

// Action is an immutable planning operator. Behavior names the runtime
// handler that executes the action; the search never consults it.
type Action struct {
	Name     string
	Index    int // position in the library, used for deterministic tie-break
	Cost     float64
	Pre      Facts
	Effects  Facts
	Behavior string
}

// Goal is a desired set of facts with a selection priority. Goal selection
// happens outside the planner; the search only sees Desired.
type Goal struct {
	Name     string
	Priority float64
	Desired  Facts
}

// Library is the shared, read-only action catalog. Order is load order and
// is part of the planner's determinism contract.
type Library struct {
	actions []*Action
	byName  map[string]*Action

	// hWeight is the admissible per-fact heuristic weight: the minimum
	// cost/effect-count ratio over the library. Multiplying the mismatch
	// count by this never overestimates remaining cost.
	hWeight float64
}

func NewLibrary(actions []*Action) (*Library, error) {
	l := &Library{byName: make(map[string]*Action, len(actions))}
	for _, a := range actions {
		if a.Name == "" {
			return nil, fmt.Errorf("action with empty name")
		}
		if _, dup := l.byName[a.Name]; dup {
			return nil, fmt.Errorf("duplicate action %q", a.Name)
		}
		if a.Cost < 0 {
			return nil, fmt.Errorf("action %q: negative cost", a.Name)
		}
		cp := *a
		cp.Index = len(l.actions)
		l.actions = append(l.actions, &cp)
		l.byName[cp.Name] = &cp
	}
	l.hWeight = computeHeuristicWeight(l.actions)
	return l, nil
}

func computeHeuristicWeight(actions []*Action) float64 {
	w := 0.0
	first := true
	for _, a := range actions {
		if len(a.Effects) == 0 {
			continue
		}
		r := a.Cost / float64(len(a.Effects))
		if first || r < w {
			w = r
			first = false
		}
	}
	return w
}

func (l *Library) Actions() []*Action { return l.actions }

func (l *Library) Get(name string) (*Action, bool) {
	a, ok := l.byName[name]
	return a, ok
}

func (l *Library) Len() int { return len(l.actions) }

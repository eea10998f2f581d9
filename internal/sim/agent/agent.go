package agent

import (
	"tacsim.ai/internal/sim/planner"
)

// Phase is the controller's execution state.
type Phase uint8

const (
	Idle Phase = iota
	Planning
	Executing
	ActionFailed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Planning:
		return "planning"
	case Executing:
		return "executing"
	default:
		return "action_failed"
	}
}

// Status is an executing action's per-tick outcome, reported by the behavior
// handler the mission supplies.
type Status uint8

const (
	InProgress Status = iota
	Done
	Failed
)

// Event is a controller transition worth reporting outward.
type Event struct {
	Kind   string // "plan_assigned", "action_started", "action_completed", "action_failed"
	Agent  string
	Action string
	Plan   []string
}

// Controller runs one agent's decide/execute loop. Goal selection lives
// outside; the controller is handed a goal, asks for plans when it has none,
// and walks the plan one action at a time. A plan is never patched: any
// invalidation discards it whole and replans.
type Controller struct {
	ID string

	phase    Phase
	goal     planner.Goal
	plan     *planner.Plan
	step     int
	started  bool // current action has emitted action_started
	fallback *planner.Action
}

// New returns an idle controller. fallback, when non-nil, is the safe
// default behavior run while no plan exists.
func New(id string, fallback *planner.Action) *Controller {
	return &Controller{ID: id, fallback: fallback}
}

func (c *Controller) Phase() Phase        { return c.phase }
func (c *Controller) Goal() planner.Goal  { return c.goal }
func (c *Controller) Plan() *planner.Plan { return c.plan }
func (c *Controller) StepIndex() int      { return c.step }

// SetGoal installs a goal. A changed goal invalidates any current plan and
// moves the controller to Planning. Re-asserting the current goal is a
// no-op, except that a raised priority wakes an idle controller so a goal
// that previously had no plan gets retried when it matters more.
func (c *Controller) SetGoal(g planner.Goal) {
	if g.Name == c.goal.Name {
		if c.phase == Idle && g.Priority > c.goal.Priority {
			c.goal = g
			c.discard()
			c.phase = Planning
		}
		return
	}
	c.goal = g
	c.discard()
	c.phase = Planning
}

// NeedsPlan reports whether the controller wants a planner search this tick.
func (c *Controller) NeedsPlan() bool {
	return c.phase == Planning || c.phase == ActionFailed
}

// AssignPlan delivers a search result. A nil plan is a planning failure: the
// controller falls back to its default action and idles until the goal
// changes or is re-asserted.
func (c *Controller) AssignPlan(p *planner.Plan) *Event {
	if c.phase != Planning && c.phase != ActionFailed {
		return nil
	}
	if p == nil || len(p.Actions) == 0 {
		// No plan found, or an empty plan because the goal already holds;
		// either way the fallback behavior takes over.
		c.discard()
		c.phase = Idle
		return nil
	}
	c.plan = p
	c.step = 0
	c.started = false
	c.phase = Executing
	return &Event{Kind: "plan_assigned", Agent: c.ID, Plan: p.Names()}
}

// Current returns the action under execution, or the fallback while idle.
func (c *Controller) Current() *planner.Action {
	if c.phase == Executing && c.plan != nil && c.step < len(c.plan.Actions) {
		return c.plan.Actions[c.step]
	}
	if c.phase == Idle {
		return c.fallback
	}
	return nil
}

// Tick advances execution by one tick. live is the agent's current fact
// projection; exec runs one tick of an action's behavior. Returned events
// are in occurrence order.
func (c *Controller) Tick(live planner.Projection, exec func(*planner.Action) Status) []Event {
	switch c.phase {
	case ActionFailed:
		// Failures always replan, never retry silently.
		c.discard()
		c.phase = Planning
		return nil
	case Idle:
		if c.fallback != nil && exec != nil {
			exec(c.fallback)
		}
		return nil
	case Executing:
	default:
		return nil
	}

	act := c.plan.Actions[c.step]
	if !live.HoldsAll(act.Pre) {
		c.discard()
		c.phase = Planning
		return nil
	}

	var events []Event
	if !c.started {
		c.started = true
		events = append(events, Event{Kind: "action_started", Agent: c.ID, Action: act.Name})
	}
	if exec == nil {
		return events
	}
	switch exec(act) {
	case Done:
		events = append(events, Event{Kind: "action_completed", Agent: c.ID, Action: act.Name})
		c.step++
		c.started = false
		if c.step >= len(c.plan.Actions) {
			// Plan complete; re-evaluate from scratch.
			c.discard()
			c.phase = Planning
		}
	case Failed:
		events = append(events, Event{Kind: "action_failed", Agent: c.ID, Action: act.Name})
		c.phase = ActionFailed
	}
	return events
}

// Cancel is the external interrupt: the current plan is discarded and the
// controller replans on its next tick.
func (c *Controller) Cancel() {
	if c.phase == Executing || c.phase == Idle {
		c.phase = ActionFailed
	}
}

func (c *Controller) discard() {
	c.plan = nil
	c.step = 0
	c.started = false
}

// State is the controller's persisted block. The plan is stored by action
// name and rebuilt against the live library on restore.
type State struct {
	Phase    Phase    `json:"phase"`
	GoalName string   `json:"goal"`
	GoalPrio float64  `json:"goal_priority"`
	Plan     []string `json:"plan,omitempty"`
	Step     int      `json:"step"`
}

func (c *Controller) Export() State {
	st := State{
		Phase:    c.phase,
		GoalName: c.goal.Name,
		GoalPrio: c.goal.Priority,
		Step:     c.step,
	}
	if c.plan != nil {
		st.Plan = c.plan.Names()
	}
	return st
}

// Restore rebuilds controller state from a save. goals supplies the goal by
// name. A restored plan that no longer resolves against the library, or a
// step index out of range, degrades to Planning instead of resuming.
func (c *Controller) Restore(st State, lib *planner.Library, goals map[string]planner.Goal) {
	c.discard()
	c.phase = st.Phase
	if g, ok := goals[st.GoalName]; ok {
		c.goal = g
	} else {
		c.goal = planner.Goal{Name: st.GoalName, Priority: st.GoalPrio}
	}
	if st.Phase != Executing {
		return
	}
	actions := make([]*planner.Action, 0, len(st.Plan))
	for _, name := range st.Plan {
		a, ok := lib.Get(name)
		if !ok {
			c.phase = Planning
			return
		}
		actions = append(actions, a)
	}
	if len(actions) == 0 || st.Step < 0 || st.Step >= len(actions) {
		c.phase = Planning
		return
	}
	c.plan = &planner.Plan{Goal: st.GoalName, Actions: actions}
	c.step = st.Step
}

package agent

import (
	"reflect"
	"testing"

	"tacsim.ai/internal/sim/planner"
)

func testLib(t *testing.T) *planner.Library {
	t.Helper()
	lib, err := planner.NewLibrary([]*planner.Action{
		{Name: "patrol", Cost: 1, Behavior: "patrol"},
		{Name: "move_to_target", Cost: 2,
			Pre:      planner.Facts{"sees_target": planner.Bool(true)},
			Effects:  planner.Facts{"at_target": planner.Bool(true)},
			Behavior: "move"},
		{Name: "engage", Cost: 1,
			Pre:      planner.Facts{"at_target": planner.Bool(true)},
			Effects:  planner.Facts{"has_target": planner.Bool(true)},
			Behavior: "attack"},
	})
	if err != nil {
		t.Fatalf("library: %v", err)
	}
	return lib
}

func mustPlan(t *testing.T, lib *planner.Library, start planner.Facts, goal planner.Goal) *planner.Plan {
	t.Helper()
	p := planner.Search(planner.Request{
		Start:  planner.NewProjection(start),
		Goal:   goal,
		Lib:    lib,
		Budget: planner.Budget{MaxNodes: 128, MaxDepth: 8},
	})
	if p == nil {
		t.Fatalf("no plan for %s", goal.Name)
	}
	return p
}

func eliminate() planner.Goal {
	return planner.Goal{Name: "eliminate", Priority: 5, Desired: planner.Facts{"has_target": planner.Bool(true)}}
}

func TestGoalAssignmentMovesIdleToPlanning(t *testing.T) {
	c := New("guard-1", nil)
	if c.Phase() != Idle {
		t.Fatalf("initial phase %v", c.Phase())
	}
	c.SetGoal(eliminate())
	if c.Phase() != Planning || !c.NeedsPlan() {
		t.Fatalf("after goal: phase %v needsPlan %v", c.Phase(), c.NeedsPlan())
	}
}

func TestNoPlanFallsBackToIdle(t *testing.T) {
	lib := testLib(t)
	fallback, _ := lib.Get("patrol")
	c := New("guard-1", fallback)
	c.SetGoal(eliminate())

	if ev := c.AssignPlan(nil); ev != nil {
		t.Fatalf("nil plan produced event %v", ev)
	}
	if c.Phase() != Idle {
		t.Fatalf("phase %v want idle", c.Phase())
	}
	if cur := c.Current(); cur == nil || cur.Name != "patrol" {
		t.Fatalf("fallback not substituted: %v", cur)
	}

	// The fallback behavior runs while idle.
	ran := ""
	c.Tick(planner.NewProjection(nil), func(a *planner.Action) Status {
		ran = a.Name
		return InProgress
	})
	if ran != "patrol" {
		t.Fatalf("idle tick ran %q", ran)
	}
}

func TestExecuteAdvancesAndCompletes(t *testing.T) {
	lib := testLib(t)
	c := New("guard-1", nil)
	c.SetGoal(eliminate())

	live := planner.Facts{"sees_target": planner.Bool(true)}
	ev := c.AssignPlan(mustPlan(t, lib, live, eliminate()))
	if ev == nil || ev.Kind != "plan_assigned" || !reflect.DeepEqual(ev.Plan, []string{"move_to_target", "engage"}) {
		t.Fatalf("assign event %v", ev)
	}
	if c.Phase() != Executing {
		t.Fatalf("phase %v", c.Phase())
	}

	// First action runs two ticks, then reports done.
	done := false
	exec := func(a *planner.Action) Status {
		if done {
			return Done
		}
		done = true
		return InProgress
	}
	events := c.Tick(planner.NewProjection(live), exec)
	if len(events) != 1 || events[0].Kind != "action_started" || events[0].Action != "move_to_target" {
		t.Fatalf("first tick events %v", events)
	}
	events = c.Tick(planner.NewProjection(live), exec)
	if len(events) != 1 || events[0].Kind != "action_completed" {
		t.Fatalf("second tick events %v", events)
	}
	if c.StepIndex() != 1 {
		t.Fatalf("step %d want 1", c.StepIndex())
	}

	// Second action's precondition holds once movement completed.
	live["at_target"] = planner.Bool(true)
	events = c.Tick(planner.NewProjection(live), func(a *planner.Action) Status { return Done })
	want := []string{"action_started", "action_completed"}
	got := []string{}
	for _, e := range events {
		got = append(got, e.Kind)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("final action events %v", got)
	}
	if c.Phase() != Planning {
		t.Fatalf("completed plan left phase %v", c.Phase())
	}
}

func TestHeadPreconditionViolationInvalidates(t *testing.T) {
	lib := testLib(t)
	c := New("guard-1", nil)
	c.SetGoal(eliminate())
	c.AssignPlan(mustPlan(t, lib, planner.Facts{"sees_target": planner.Bool(true)}, eliminate()))

	// Target slipped away between planning and execution.
	events := c.Tick(planner.NewProjection(planner.Facts{"sees_target": planner.Bool(false)}), nil)
	if len(events) != 0 {
		t.Fatalf("invalidation produced events %v", events)
	}
	if c.Phase() != Planning || c.Plan() != nil {
		t.Fatalf("phase %v plan %v", c.Phase(), c.Plan())
	}
}

func TestFailureAlwaysReplans(t *testing.T) {
	lib := testLib(t)
	c := New("guard-1", nil)
	c.SetGoal(eliminate())
	live := planner.Facts{"sees_target": planner.Bool(true)}
	c.AssignPlan(mustPlan(t, lib, live, eliminate()))

	events := c.Tick(planner.NewProjection(live), func(a *planner.Action) Status { return Failed })
	last := events[len(events)-1]
	if last.Kind != "action_failed" {
		t.Fatalf("events %v", events)
	}
	if c.Phase() != ActionFailed {
		t.Fatalf("phase %v", c.Phase())
	}

	c.Tick(planner.NewProjection(live), nil)
	if c.Phase() != Planning || c.Plan() != nil {
		t.Fatalf("failure did not replan: phase %v", c.Phase())
	}
}

func TestGoalChangeDiscardsPlan(t *testing.T) {
	lib := testLib(t)
	c := New("guard-1", nil)
	c.SetGoal(eliminate())
	c.AssignPlan(mustPlan(t, lib, planner.Facts{"sees_target": planner.Bool(true)}, eliminate()))

	c.SetGoal(planner.Goal{Name: "flee", Priority: 9, Desired: planner.Facts{"at_cover": planner.Bool(true)}})
	if c.Phase() != Planning || c.Plan() != nil {
		t.Fatalf("goal change kept plan: phase %v", c.Phase())
	}
}

func TestCancelInterruptsExecution(t *testing.T) {
	lib := testLib(t)
	c := New("guard-1", nil)
	c.SetGoal(eliminate())
	c.AssignPlan(mustPlan(t, lib, planner.Facts{"sees_target": planner.Bool(true)}, eliminate()))

	c.Cancel()
	if c.Phase() != ActionFailed {
		t.Fatalf("phase %v", c.Phase())
	}
	c.Tick(planner.NewProjection(nil), nil)
	if c.Phase() != Planning {
		t.Fatalf("cancel did not replan: %v", c.Phase())
	}
}

func TestRestoreResumesOrDegrades(t *testing.T) {
	lib := testLib(t)
	goals := map[string]planner.Goal{"eliminate": eliminate()}

	c := New("guard-1", nil)
	c.SetGoal(eliminate())
	c.AssignPlan(mustPlan(t, lib, planner.Facts{"sees_target": planner.Bool(true)}, eliminate()))
	c.Tick(planner.NewProjection(planner.Facts{"sees_target": planner.Bool(true)}),
		func(a *planner.Action) Status { return Done })

	saved := c.Export()

	r := New("guard-1", nil)
	r.Restore(saved, lib, goals)
	if r.Phase() != Executing || r.StepIndex() != 1 {
		t.Fatalf("restore: phase %v step %d", r.Phase(), r.StepIndex())
	}
	if got := r.Plan().Names(); !reflect.DeepEqual(got, []string{"move_to_target", "engage"}) {
		t.Fatalf("restored plan %v", got)
	}

	// An action renamed out of the library degrades the restore to Planning.
	broken := saved
	broken.Plan = []string{"move_to_target", "charge"}
	r2 := New("guard-1", nil)
	r2.Restore(broken, lib, goals)
	if r2.Phase() != Planning || r2.Plan() != nil {
		t.Fatalf("broken restore: phase %v", r2.Phase())
	}

	// A step index past the plan end likewise replans.
	over := saved
	over.Step = 5
	r3 := New("guard-1", nil)
	r3.Restore(over, lib, goals)
	if r3.Phase() != Planning {
		t.Fatalf("out-of-range restore: phase %v", r3.Phase())
	}
}

package snapshot

import (
	"path/filepath"
	"testing"

	"tacsim.ai/internal/sim/agent"
	"tacsim.ai/internal/sim/core"
	"tacsim.ai/internal/sim/escalate"
	"tacsim.ai/internal/sim/mission"
	"tacsim.ai/internal/sim/percept"
	"tacsim.ai/internal/sim/planner"
)

func sampleState() mission.SnapshotState {
	return mission.SnapshotState{
		MissionID: "m1",
		Seed:      7,
		GridCols:  16,
		GridRows:  16,
		CellSize:  10,
		Tick:      123,
		NextAgent: 2,
		Escalation: escalate.State{
			Heat:        42.5,
			ActiveLevel: "Armed",
			Pending: []escalate.PendingSpawn{
				{Level: "Armed", Count: 2, Pos: core.Vec2{X: 80, Y: 20}, DueTick: 150},
			},
		},
		Sounds: []percept.Sound{{Pos: core.Vec2{X: 60, Y: 20}, Intensity: 1, Radius: 90, Tick: 120}},
		Agents: []mission.AgentState{
			{
				ID: "G0001", Kind: "guard",
				Pos: core.Vec2{X: 30, Y: 30}, Facing: core.Vec2{X: 1},
				Speed: 60, Health: 100, Weapon: "pistol", Vision: 150,
				Patrol: []core.Vec2{{X: 30, Y: 30}, {X: 60, Y: 30}},
				Facts: planner.Facts{
					"has_weapon":    planner.Bool(true),
					"weapon_loaded": planner.Bool(false),
				},
				Percept: percept.State{
					Suspicion: 44.25,
					Level:     percept.Investigating,
					LastKnown: &percept.LastKnown{Target: "X0002", Pos: core.Vec2{X: 70, Y: 20}, Tick: 110},
				},
				Ctl: &agent.State{
					Phase:    agent.Executing,
					GoalName: "eliminate_threat",
					GoalPrio: 10,
					Plan:     []string{"reload", "attack"},
					Step:     1,
				},
			},
		},
	}
}

func TestSnapshot_RoundTrip(t *testing.T) {
	st := sampleState()
	path := filepath.Join(t.TempDir(), "snapshots", "123.snap.zst")
	if err := Write(path, st); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.MissionID != "m1" || got.Tick != 123 || got.Seed != 7 {
		t.Fatalf("header fields wrong: %+v", got)
	}
	if got.Escalation.Heat != 42.5 || got.Escalation.ActiveLevel != "Armed" {
		t.Fatalf("escalation not preserved: %+v", got.Escalation)
	}
	if len(got.Agents) != 1 {
		t.Fatalf("agents = %d", len(got.Agents))
	}
	a := got.Agents[0]
	if a.ID != "G0001" || a.Percept.Suspicion != 44.25 || a.Percept.Level != percept.Investigating {
		t.Fatalf("agent perception not preserved: %+v", a)
	}
	if !a.Facts["has_weapon"].B || a.Facts["weapon_loaded"].B {
		t.Fatalf("facts not preserved: %v", a.Facts)
	}
	if a.Ctl == nil || a.Ctl.Step != 1 || len(a.Ctl.Plan) != 2 || a.Ctl.Plan[1] != "attack" {
		t.Fatalf("controller block not preserved: %+v", a.Ctl)
	}
	if len(got.Escalation.Pending) != 1 || got.Escalation.Pending[0].DueTick != 150 {
		t.Fatalf("pending spawns not preserved: %+v", got.Escalation.Pending)
	}
}

func TestSnapshot_ReadHeader(t *testing.T) {
	st := sampleState()
	path := filepath.Join(t.TempDir(), "123.snap.zst")
	if err := Write(path, st); err != nil {
		t.Fatalf("Write: %v", err)
	}
	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.Version != Version || h.MissionID != "m1" || h.Tick != 123 {
		t.Fatalf("header = %+v", h)
	}
}

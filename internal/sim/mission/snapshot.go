package mission

import (
	"fmt"
	"log"

	"tacsim.ai/internal/sim/agent"
	"tacsim.ai/internal/sim/catalogs"
	"tacsim.ai/internal/sim/core"
	"tacsim.ai/internal/sim/escalate"
	"tacsim.ai/internal/sim/percept"
	"tacsim.ai/internal/sim/planner"
	"tacsim.ai/internal/sim/tuning"
)

// SnapshotState is everything needed to resume a mission mid-flight. The
// occluder grid is regenerated from the seed rather than persisted.
type SnapshotState struct {
	MissionID string
	Seed      int64
	GridCols  int
	GridRows  int
	CellSize  float64

	Tick      uint64
	Paused    bool
	NextAgent uint64

	Escalation escalate.State
	Sounds     []percept.Sound
	PlanQueue  []string
	Agents     []AgentState
}

// AgentState is one agent's persisted block, in spawn order.
type AgentState struct {
	ID     string
	Kind   string
	Level  string
	Pos    core.Vec2
	Facing core.Vec2
	Speed  float64
	Health float64
	Weapon string
	Vision float64

	Patrol    []core.Vec2
	PatrolIdx int
	Panicking bool
	Target    string

	Facts   planner.Facts
	Percept percept.State
	Ctl     *agent.State

	LastSoundPos     core.Vec2
	LastSoundTick    uint64
	SoundHandledTick uint64
	CurAction        string
	ActionTicks      int
	TargetLostTicks  int
	ShotsFired       int
}

func (m *Mission) exportState() SnapshotState {
	st := SnapshotState{
		MissionID: m.cfg.ID,
		Seed:      m.cfg.Seed,
		GridCols:  m.cfg.GridCols,
		GridRows:  m.cfg.GridRows,
		CellSize:  m.cfg.CellSize,

		Tick:      m.tick.Load(),
		Paused:    m.paused,
		NextAgent: m.nextAgent,

		Escalation: m.esc.Export(),
		Sounds:     append([]percept.Sound(nil), m.sounds...),
		PlanQueue:  append([]string(nil), m.planQueue...),
	}
	for _, id := range m.order {
		a := m.agents[id]
		if a == nil {
			continue
		}
		as := AgentState{
			ID:     a.ID,
			Kind:   a.Kind,
			Level:  a.Level,
			Pos:    a.Pos,
			Facing: a.Facing,
			Speed:  a.Speed,
			Health: a.Health,
			Weapon: a.Weapon,
			Vision: a.Vision,

			Patrol:    append([]core.Vec2(nil), a.Patrol...),
			PatrolIdx: a.PatrolIdx,
			Panicking: a.Panicking,
			Target:    a.Target,

			Percept: a.Percept,

			LastSoundPos:     a.lastSoundPos,
			LastSoundTick:    a.lastSoundTick,
			SoundHandledTick: a.soundHandledTick,
			CurAction:        a.curAction,
			ActionTicks:      a.actionTicks,
			TargetLostTicks:  a.targetLostTicks,
			ShotsFired:       a.shotsFired,
		}
		if a.Facts != nil {
			as.Facts = make(planner.Facts, len(a.Facts))
			for k, v := range a.Facts {
				as.Facts[k] = v
			}
		}
		if a.Ctl != nil {
			cs := a.Ctl.Export()
			as.Ctl = &cs
		}
		st.Agents = append(st.Agents, as)
	}
	return st
}

// Snapshot asks the running loop for a consistent copy of the state. Safe to
// call from any goroutine while Run is active.
func (m *Mission) Snapshot() SnapshotState {
	resp := make(chan SnapshotState, 1)
	m.snapshotReq <- resp
	return <-resp
}

// Restore rebuilds a mission from a snapshot. Controllers holding a plan that
// no longer resolves against the current action catalog degrade to replanning
// rather than failing the restore.
func Restore(st SnapshotState, tune tuning.Tuning, cats *catalogs.Catalogs, logger *log.Logger) (*Mission, error) {
	if st.MissionID == "" {
		return nil, fmt.Errorf("snapshot has no mission id")
	}
	m := New(Config{
		ID:       st.MissionID,
		Seed:     st.Seed,
		GridCols: st.GridCols,
		GridRows: st.GridRows,
		CellSize: st.CellSize,
	}, tune, cats, logger)

	m.tick.Store(st.Tick)
	m.paused = st.Paused
	m.nextAgent = st.NextAgent
	m.esc.Restore(st.Escalation)
	m.sounds = append(m.sounds, st.Sounds...)
	m.planQueue = append(m.planQueue, st.PlanQueue...)

	for _, as := range st.Agents {
		a := &Agent{
			ID:     as.ID,
			Kind:   as.Kind,
			Level:  as.Level,
			Pos:    as.Pos,
			Facing: as.Facing,
			Speed:  as.Speed,
			Health: as.Health,
			Weapon: as.Weapon,
			Vision: as.Vision,

			Patrol:    append([]core.Vec2(nil), as.Patrol...),
			PatrolIdx: as.PatrolIdx,
			Panicking: as.Panicking,
			Target:    as.Target,

			Percept: as.Percept,

			lastSoundPos:     as.LastSoundPos,
			lastSoundTick:    as.LastSoundTick,
			soundHandledTick: as.SoundHandledTick,
			curAction:        as.CurAction,
			actionTicks:      as.ActionTicks,
			targetLostTicks:  as.TargetLostTicks,
			shotsFired:       as.ShotsFired,
		}
		if as.Facts != nil {
			a.Facts = make(planner.Facts, len(as.Facts))
			for k, v := range as.Facts {
				a.Facts[k] = v
			}
		}
		if a.decides() {
			fallback, _ := cats.Actions.Library.Get("patrol")
			a.Ctl = agent.New(a.ID, fallback)
			if as.Ctl != nil {
				a.Ctl.Restore(*as.Ctl, cats.Actions.Library, cats.Goals.ByName)
			}
		}
		m.agents[a.ID] = a
		m.order = append(m.order, a.ID)
	}
	return m, nil
}

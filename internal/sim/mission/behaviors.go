package mission

import (
	"tacsim.ai/internal/protocol"
	"tacsim.ai/internal/sim/agent"
	"tacsim.ai/internal/sim/core"
	"tacsim.ai/internal/sim/escalate"
	"tacsim.ai/internal/sim/percept"
	"tacsim.ai/internal/sim/planner"
)

const (
	attackRange = 30.0
	arriveTol   = 2.0

	fireEveryTicks = 5
	attackDamage   = 25.0
	magSize        = 6
	gunshotRadius  = 120.0
	reloadSeconds  = 1.5

	shoutIntensity = 0.6
	shoutRadius    = 80.0
)

// execBehavior runs one tick of the current action. An action with derived
// effects completes when the world actually shows them; actions whose effects
// are purely internal (reload) complete on their own timer.
func (m *Mission) execBehavior(a *Agent, act *planner.Action, now uint64, dead map[string]bool, events *[]protocol.Event) agent.Status {
	if a.curAction != act.Name {
		a.curAction = act.Name
		a.actionTicks = 0
		a.targetLostTicks = 0
	}

	live := planner.NewProjection(m.liveFacts(a, now))
	if m.effectsObserved(live, act) {
		m.finishAction(a, act)
		return agent.Done
	}
	a.actionTicks++

	switch act.Behavior {
	case "patrol":
		if len(a.Patrol) == 0 {
			// calm_down shares this behavior; without a route the agent
			// just holds position until its effects are observed.
			if _, wantsPoint := act.Effects["at_patrol_point"]; wantsPoint {
				return agent.Failed
			}
			return agent.InProgress
		}
		m.moveToward(a, a.Patrol[a.PatrolIdx])
		return agent.InProgress

	case "move_to":
		if tgt := m.agents[a.Target]; tgt != nil {
			m.moveToward(a, tgt.Pos)
			return agent.InProgress
		}
		if p, ok := m.investigatePoint(a); ok {
			m.moveToward(a, p)
			return agent.InProgress
		}
		return agent.Failed

	case "investigate":
		// Give up on disturbances that cannot be reached: after the timeout
		// the sound counts as handled and the agent goes back to its route.
		if uint64(a.actionTicks) > m.tune.Ticks(m.tune.Perception.LastKnownTimeout) {
			m.finishAction(a, act)
			return agent.Done
		}
		p, ok := m.investigatePoint(a)
		if !ok {
			return agent.Failed
		}
		m.moveToward(a, p)
		return agent.InProgress

	case "take_cover":
		p, ok := m.nearestCover(a.Pos)
		if !ok {
			return agent.Failed
		}
		m.moveToward(a, p)
		return agent.InProgress

	case "attack":
		return m.execAttack(a, now, dead, events)

	case "reload":
		if uint64(a.actionTicks) >= m.tune.Ticks(reloadSeconds) {
			a.shotsFired = 0
			m.finishAction(a, act)
			return agent.Done
		}
		return agent.InProgress
	}
	m.logger.Printf("mission %s: %s has unknown behavior %q", m.cfg.ID, act.Name, act.Behavior)
	return agent.Failed
}

func (m *Mission) execAttack(a *Agent, now uint64, dead map[string]bool, events *[]protocol.Event) agent.Status {
	tgt := m.agents[a.Target]
	if tgt == nil {
		return agent.Failed
	}

	visible := m.eng.SightStrength(a.Pos, a.Facing, tgt.Pos, a.Vision, m.grid) > 0
	if !visible {
		a.targetLostTicks++
		if uint64(a.targetLostTicks) > m.tune.Ticks(m.tune.Perception.LastKnownTimeout) {
			return agent.Failed
		}
		// Chase the memory of the target.
		if lk := a.Percept.LastKnown; lk != nil && lk.Target == tgt.ID {
			m.moveToward(a, lk.Pos)
		}
		return agent.InProgress
	}
	a.targetLostTicks = 0

	if a.Pos.Dist(tgt.Pos) > attackRange {
		m.moveToward(a, tgt.Pos)
		return agent.InProgress
	}

	a.Facing = tgt.Pos.Sub(a.Pos).Normalize()
	if a.actionTicks%fireEveryTicks != 0 {
		return agent.InProgress
	}

	// Fire. Gunshots are loud: everyone nearby hears them and the heat pool
	// feels them. Effects land next tick so execution order stays fair.
	snd := percept.Sound{Pos: a.Pos, Intensity: 1.0, Radius: gunshotRadius, Tick: now}
	m.sounds = append(m.sounds, snd)
	*events = append(*events, protocol.SoundEmitted(now, vec(snd.Pos), snd.Intensity, snd.Radius))
	inc := escalate.Incident{Type: "Gunshot", Pos: a.Pos, Source: a.ID, Tick: now}
	m.esc.Record(inc)
	*events = append(*events, protocol.IncidentReported(now, inc.Type, vec(inc.Pos), inc.Source))

	a.shotsFired++
	if a.shotsFired >= magSize {
		a.Facts["weapon_loaded"] = planner.Bool(false)
	}

	tgt.Health -= attackDamage
	if tgt.Health <= 0 {
		dead[tgt.ID] = true
	}
	return agent.InProgress
}

// effectsObserved reports whether every world-derived effect of the action
// already holds. Persistent and consequence facts are applied on completion
// instead, so they are skipped here; actions with no other effects never
// complete this way.
func (m *Mission) effectsObserved(live planner.Projection, act *planner.Action) bool {
	n := 0
	for f, v := range act.Effects {
		if persistentFacts[f] || consequenceFacts[f] {
			continue
		}
		n++
		if !live.Holds(f, v) {
			return false
		}
	}
	return n > 0
}

// finishAction applies the persistent slice of the effects and behavior
// bookkeeping that only happens on completion.
func (m *Mission) finishAction(a *Agent, act *planner.Action) {
	for f, v := range act.Effects {
		if persistentFacts[f] {
			a.Facts[f] = v
		}
	}
	switch act.Behavior {
	case "investigate":
		a.soundHandledTick = a.lastSoundTick
	case "patrol":
		if len(a.Patrol) > 0 && a.Pos.Dist(a.Patrol[a.PatrolIdx]) <= arriveTol {
			a.PatrolIdx = (a.PatrolIdx + 1) % len(a.Patrol)
		}
	}
	a.curAction = ""
	a.actionTicks = 0
}

// nearestCover finds a standable point hugging the closest solid cell.
func (m *Mission) nearestCover(pos core.Vec2) (core.Vec2, bool) {
	cs := m.cfg.CellSize
	best := core.Vec2{}
	bestD := -1.0
	for dy := -3; dy <= 3; dy++ {
		for dx := -3; dx <= 3; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			p := core.Vec2{X: pos.X + float64(dx)*cs, Y: pos.Y + float64(dy)*cs}
			if !m.grid.SolidAt(p) {
				continue
			}
			// Stand one cell short of the wall, on the agent's side.
			spot := p.Add(pos.Sub(p).Normalize().Scale(cs))
			if m.grid.SolidAt(spot) {
				continue
			}
			if d := pos.Dist(spot); bestD < 0 || d < bestD {
				best, bestD = spot, d
			}
		}
	}
	return best, bestD >= 0
}

package mission

import (
	"tacsim.ai/internal/sim/core"
	"tacsim.ai/internal/sim/percept"
	"tacsim.ai/internal/sim/planner"
)

// Facts carried on the agent between ticks. Everything else in the planning
// projection is derived fresh from the world each tick, so a plan that claims
// an effect only completes once the world actually shows it.
var persistentFacts = map[planner.Fact]bool{
	"has_weapon":       true,
	"weapon_loaded":    true,
	"is_investigating": true,
}

// Facts that flip as a consequence of an action finishing, not before.
// heard_sound only clears when finishAction advances the handled mark, so
// checking it against the live world would keep the action from ever
// completing.
var consequenceFacts = map[planner.Fact]bool{
	"heard_sound": true,
}

func (m *Mission) liveFacts(a *Agent, now uint64) planner.Facts {
	f := make(planner.Facts, len(a.Facts)+9)
	for k, v := range a.Facts {
		f[k] = v
	}

	tgt := m.agents[a.Target]
	visible, atTarget := false, false
	if tgt != nil {
		visible = m.eng.SightStrength(a.Pos, a.Facing, tgt.Pos, a.Vision, m.grid) > 0
		atTarget = a.Pos.Dist(tgt.Pos) <= attackRange
	}
	f["has_target"] = planner.Bool(tgt != nil)
	f["target_visible"] = planner.Bool(visible)
	f["at_target"] = planner.Bool(atTarget)

	f["is_alert"] = planner.Bool(a.Percept.Level >= percept.Alert)
	f["heard_sound"] = planner.Bool(a.lastSoundTick > a.soundHandledTick)

	atPatrol := false
	if len(a.Patrol) > 0 {
		atPatrol = a.Pos.Dist(a.Patrol[a.PatrolIdx]) <= arriveTol
	}
	f["at_patrol_point"] = planner.Bool(atPatrol)

	atLKP := false
	if p, ok := m.investigatePoint(a); ok {
		atLKP = a.Pos.Dist(p) <= arriveTol
	}
	f["at_last_known_position"] = planner.Bool(atLKP)

	inCover, coverNear := m.coverState(a.Pos)
	f["in_cover"] = planner.Bool(inCover)
	f["cover_available"] = planner.Bool(coverNear)
	return f
}

// investigatePoint is where this agent would go to look into a disturbance:
// the latest unhandled sound, else the remembered target position.
func (m *Mission) investigatePoint(a *Agent) (core.Vec2, bool) {
	if a.lastSoundTick > a.soundHandledTick {
		return a.lastSoundPos, true
	}
	if lk := a.Percept.LastKnown; lk != nil {
		return lk.Pos, true
	}
	return core.Vec2{}, false
}

// coverState scans the nearby grid. in_cover means a solid cell is within one
// cell of the position, cover_available within three.
func (m *Mission) coverState(pos core.Vec2) (inCover, available bool) {
	cs := m.cfg.CellSize
	for dy := -3; dy <= 3; dy++ {
		for dx := -3; dx <= 3; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			p := core.Vec2{X: pos.X + float64(dx)*cs, Y: pos.Y + float64(dy)*cs}
			if !m.grid.SolidAt(p) {
				continue
			}
			available = true
			if dx >= -1 && dx <= 1 && dy >= -1 && dy <= 1 {
				inCover = true
			}
		}
	}
	return inCover, available
}

package mission

import (
	"tacsim.ai/internal/protocol"
	"tacsim.ai/internal/sim/agent"
	"tacsim.ai/internal/sim/core"
	"tacsim.ai/internal/sim/escalate"
	"tacsim.ai/internal/sim/percept"
	"tacsim.ai/internal/sim/planner"
)

// tickView is the immutable start-of-tick snapshot every decision reads.
// Agents processed later in the order never observe an earlier agent's
// same-tick movement or death.
type tickView struct {
	pos   map[string]core.Vec2
	alive map[string]bool
}

func (m *Mission) captureView() tickView {
	v := tickView{
		pos:   make(map[string]core.Vec2, len(m.agents)),
		alive: make(map[string]bool, len(m.agents)),
	}
	for id, a := range m.agents {
		v.pos[id] = a.Pos
		v.alive[id] = true
	}
	return v
}

func (m *Mission) stepInternal(in pendingInputs) {
	now := m.tick.Load()
	var events []protocol.Event

	// Boundary inputs, in arrival order.
	for _, req := range in.spawns {
		a := m.spawnAgent(req.Kind, "", req.Pos, req.Waypoints)
		events = append(events, protocol.AgentSpawned(now, a.ID, a.Kind, a.Level, vec(a.Pos)))
	}
	for _, s := range in.sounds {
		s.Tick = now
		m.sounds = append(m.sounds, s)
		events = append(events, protocol.SoundEmitted(now, vec(s.Pos), s.Intensity, s.Radius))
	}
	for _, inc := range in.incidents {
		inc.Tick = now
		m.esc.Record(inc)
		events = append(events, protocol.IncidentReported(now, inc.Type, vec(inc.Pos), inc.Source))
	}
	for _, ov := range in.overrides {
		events = append(events, m.applyOverride(now, ov)...)
	}
	for _, id := range in.cancels {
		if a := m.agents[id]; a != nil && a.Ctl != nil {
			a.Ctl.Cancel()
		}
	}

	m.expireSounds(now)
	view := m.captureView()
	dead := map[string]bool{}

	// Perception and goal selection against the start-of-tick view. Shouts
	// raised here are buffered and only become audible after the loop, so
	// agents later in the order do not hear them mid-tick.
	panicking := 0
	var shouts []percept.Sound
	for _, id := range m.order {
		a := m.agents[id]
		if a == nil {
			continue
		}
		switch a.Kind {
		case KindCivilian:
			m.stepCivilian(a, view, now)
			if a.Panicking {
				panicking++
			}
			continue
		case KindIntruder:
			m.stepIntruder(a)
			continue
		}

		stimulus, seen, seenPos := m.sense(a, view, now)
		if seen != "" {
			m.eng.MarkSeen(&a.Percept, seen, seenPos, now)
		}
		old, nw := m.eng.Step(&a.Percept, stimulus, now)
		if nw != old {
			events = append(events, protocol.AwarenessChanged(now, a.ID, old.String(), nw.String(), a.Percept.Suspicion))
			// Going weapons-hot is loud: the shout is a sound stimulus, so
			// nearby agents come to investigate without any direct messaging.
			if nw == percept.Combat {
				snd := percept.Sound{Pos: a.Pos, Intensity: shoutIntensity, Radius: shoutRadius, Tick: now}
				shouts = append(shouts, snd)
				events = append(events, protocol.SoundEmitted(now, vec(snd.Pos), snd.Intensity, snd.Radius))
			}
		}
		// Target acquisition is an awareness decision, not a sight one: a
		// merely suspicious guard does not lock on.
		if nw >= percept.Alert && seen != "" {
			a.Target = seen
		}
		a.Ctl.SetGoal(m.selectGoal(a, now))
		if a.Ctl.NeedsPlan() {
			m.enqueuePlan(id)
		}
	}

	m.sounds = append(m.sounds, shouts...)

	// Bounded planning work: at most K searches per tick, FIFO.
	events = append(events, m.runPlanners(now)...)

	// Execution against live facts; deaths are buffered into dead and
	// applied after every agent has acted.
	for _, id := range m.order {
		a := m.agents[id]
		if a == nil || !a.decides() {
			continue
		}
		live := planner.NewProjection(m.liveFacts(a, now))
		ctlEvents := a.Ctl.Tick(live, func(act *planner.Action) agent.Status {
			return m.execBehavior(a, act, now, dead, &events)
		})
		for _, e := range ctlEvents {
			switch e.Kind {
			case "action_started":
				events = append(events, protocol.ActionStarted(now, e.Agent, e.Action))
			case "action_completed":
				events = append(events, protocol.ActionCompleted(now, e.Agent, e.Action))
			case "action_failed":
				events = append(events, protocol.ActionFailed(now, e.Agent, e.Action))
			}
		}
	}

	// Escalation runs after agents so same-tick incidents are already
	// recorded; spawn orders materialize at the end of the tick.
	change, orders := m.esc.Step(now, panicking)
	if change != nil {
		events = append(events, protocol.EscalationChanged(now, change.Old, change.New, change.Heat))
	}
	for _, o := range orders {
		events = append(events, protocol.SpawnRequested(now, o.Level, o.Count, vec(o.Pos), m.tune.Ticks(o.Loadout.ResponseTime)))
		events = append(events, m.spawnResponders(now, o)...)
	}

	// Apply buffered deaths.
	var toRemove []string
	for _, id := range m.order {
		if dead[id] {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		m.removeAgent(id)
		events = append(events, protocol.AgentRemoved(now, id, "killed"))
	}
	m.clearDeadTargets()

	digest := m.stateDigest(now)
	if m.tickSink != nil {
		_ = m.tickSink.WriteTick(TickLogEntry{
			Tick:   now,
			Digest: digest,
			Heat:   m.esc.Heat(),
			Level:  m.esc.ActiveLevel(),
			Events: events,
		})
	}
	m.broadcastTick(now, digest, events)

	if m.snapshotSink != nil && now != 0 && m.cfg.SnapshotEveryTicks > 0 && now%uint64(m.cfg.SnapshotEveryTicks) == 0 {
		select {
		case m.snapshotSink <- m.exportState():
		default:
			// Drop if the sink is backed up.
		}
	}

	m.tick.Add(1)
}

func vec(v core.Vec2) [2]float64 { return [2]float64{v.X, v.Y} }

func (m *Mission) expireSounds(now uint64) {
	expiry := m.tune.Ticks(m.tune.Perception.SoundExpiry)
	kept := m.sounds[:0]
	for _, s := range m.sounds {
		if now <= s.Tick+expiry {
			kept = append(kept, s)
		}
	}
	m.sounds = kept
}

// sense combines the sight and sound channels for one decider. Sight scans
// intruders only; guards do not grow suspicious of each other.
func (m *Mission) sense(a *Agent, view tickView, now uint64) (stimulus float64, seen string, seenPos core.Vec2) {
	best := 0.0
	for _, id := range m.order {
		t := m.agents[id]
		if t == nil || t.Kind != KindIntruder || !view.alive[id] {
			continue
		}
		s := m.eng.SightStrength(view.pos[a.ID], a.Facing, view.pos[id], a.Vision, m.grid)
		if s > best {
			best = s
			seen = id
			seenPos = view.pos[id]
		}
	}
	stimulus = best

	for _, snd := range m.sounds {
		s := m.eng.SoundStrength(snd, view.pos[a.ID], now)
		if s <= 0 {
			continue
		}
		stimulus += s
		if snd.Tick >= a.lastSoundTick {
			a.lastSoundTick = snd.Tick + 1 // +1 so tick 0 sounds register
			a.lastSoundPos = snd.Pos
		}
	}
	return stimulus, seen, seenPos
}

func (m *Mission) selectGoal(a *Agent, now uint64) planner.Goal {
	byName := m.cats.Goals.ByName
	switch {
	case m.agents[a.Target] != nil:
		return byName["eliminate_threat"]
	case a.lastSoundTick > a.soundHandledTick:
		return byName["investigate_disturbance"]
	default:
		return byName["patrol_area"]
	}
}

func (m *Mission) enqueuePlan(id string) {
	for _, q := range m.planQueue {
		if q == id {
			return
		}
	}
	m.planQueue = append(m.planQueue, id)
}

func (m *Mission) runPlanners(now uint64) []protocol.Event {
	var events []protocol.Event
	k := m.tune.Planner.SearchesPerTick
	for i := 0; i < k && len(m.planQueue) > 0; i++ {
		id := m.planQueue[0]
		m.planQueue = m.planQueue[1:]
		a := m.agents[id]
		if a == nil || a.Ctl == nil || !a.Ctl.NeedsPlan() {
			continue
		}
		p := planner.Search(planner.Request{
			Start:  planner.NewProjection(m.liveFacts(a, now)),
			Goal:   a.Ctl.Goal(),
			Lib:    m.cats.Actions.Library,
			Budget: m.budget(),
		})
		if p == nil {
			m.logger.Printf("mission %s: %s found no plan for %s, falling back", m.cfg.ID, id, a.Ctl.Goal().Name)
		}
		if ev := a.Ctl.AssignPlan(p); ev != nil {
			events = append(events, protocol.PlanAssigned(now, id, a.Ctl.Goal().Name, ev.Plan, p.Cost))
		}
	}
	return events
}

func (m *Mission) applyOverride(now uint64, ov AwarenessOverride) []protocol.Event {
	a := m.agents[ov.Agent]
	if a == nil || !a.decides() {
		return nil
	}
	var events []protocol.Event
	old, nw := m.eng.Force(&a.Percept, ov.Level)
	if nw != old {
		events = append(events, protocol.AwarenessChanged(now, a.ID, old.String(), nw.String(), a.Percept.Suspicion))
	}
	if ov.Source != nil {
		tid := ov.Target
		if tid == "" {
			tid = "unknown"
		}
		m.eng.MarkSeen(&a.Percept, tid, *ov.Source, now)
	}
	if ov.Target != "" && m.agents[ov.Target] != nil {
		a.Target = ov.Target
	}
	return events
}

func (m *Mission) stepCivilian(a *Agent, view tickView, now uint64) {
	// Civilians panic while recent loud sounds are close, and calm down a
	// few seconds after the street goes quiet.
	heard := false
	for _, snd := range m.sounds {
		if m.eng.SoundStrength(snd, view.pos[a.ID], now) > 0 {
			heard = true
			a.lastSoundTick = snd.Tick + 1
			a.lastSoundPos = snd.Pos
		}
	}
	if heard {
		a.Panicking = true
	} else if a.Panicking && now > a.lastSoundTick+m.tune.Ticks(5) {
		a.Panicking = false
	}
	if a.Panicking {
		// Run directly away from the noise.
		away := a.Pos.Sub(a.lastSoundPos).Normalize().Scale(1000).Add(a.Pos)
		m.moveToward(a, away)
	}
}

func (m *Mission) stepIntruder(a *Agent) {
	if len(a.Patrol) == 0 {
		return
	}
	if m.moveToward(a, a.Patrol[a.PatrolIdx]) && a.PatrolIdx < len(a.Patrol)-1 {
		a.PatrolIdx++
	}
}

// moveToward advances one tick of travel and reports arrival.
func (m *Mission) moveToward(a *Agent, dest core.Vec2) bool {
	step := a.Speed / float64(m.tune.TickRateHz)
	next, arrived := core.StepToward(a.Pos, dest, step)
	if d := dest.Sub(a.Pos); d.Len() > 1e-9 {
		a.Facing = d.Normalize()
	}
	// Buildings are not walked through; stop at the wall.
	if m.grid != nil && !m.grid.LineClear(a.Pos, next) {
		return false
	}
	a.Pos = next
	return arrived
}

func (m *Mission) removeAgent(id string) {
	delete(m.agents, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// clearDeadTargets drops weak target references to removed agents so no
// controller holds a dangling id across ticks.
func (m *Mission) clearDeadTargets() {
	for _, a := range m.agents {
		if a.Target != "" && m.agents[a.Target] == nil {
			a.Target = ""
		}
	}
}

func (m *Mission) spawnResponders(now uint64, o escalate.SpawnOrder) []protocol.Event {
	var events []protocol.Event
	for i := 0; i < o.Count; i++ {
		// Fan arrivals out around the order location so responders do not
		// stack on one point.
		offset := core.Vec2{X: float64(i%3) * 4, Y: float64(i/3) * 4}
		pos := o.Pos.Add(offset)
		wps := make([]core.Vec2, 0, len(o.Pattern))
		for _, p := range o.Pattern {
			wps = append(wps, core.Vec2{X: pos.X + p[0], Y: pos.Y + p[1]})
		}
		a := m.spawnAgent(KindResponder, o.Level, pos, wps)
		a.Health = o.Loadout.Health
		a.Speed = o.Loadout.Speed
		a.Vision = o.Loadout.Vision
		a.Weapon = o.Loadout.Weapon
		events = append(events, protocol.AgentSpawned(now, a.ID, a.Kind, a.Level, vec(a.Pos)))
	}
	return events
}

func (m *Mission) spawnAgent(kind, level string, pos core.Vec2, waypoints []core.Vec2) *Agent {
	a := &Agent{
		ID:     m.newAgentID(kind),
		Kind:   kind,
		Level:  level,
		Pos:    pos,
		Facing: core.Vec2{X: 1},
		Patrol: waypoints,
	}
	switch kind {
	case KindGuard:
		a.Speed, a.Health, a.Vision, a.Weapon = 60, 100, 150, "pistol"
	case KindResponder:
		a.Speed, a.Health, a.Vision, a.Weapon = 80, 120, 150, "rifle"
	case KindIntruder:
		a.Speed, a.Health, a.Vision = 70, 100, 120
	default:
		a.Speed, a.Health, a.Vision = 40, 50, 80
	}
	if a.decides() {
		a.Facts = planner.Facts{
			"has_weapon":    planner.Bool(true),
			"weapon_loaded": planner.Bool(true),
		}
		fallback, _ := m.cats.Actions.Library.Get("patrol")
		a.Ctl = agent.New(a.ID, fallback)
	}
	m.agents[a.ID] = a
	m.order = append(m.order, a.ID)
	return a
}

package mission

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"tacsim.ai/internal/sim/percept"
	"tacsim.ai/internal/sim/planner"
)

// stateDigest fingerprints the authoritative state after a tick. Two missions
// fed identical inputs must produce identical digests tick for tick, so
// everything here is written in a fixed order with fixed formatting.
func (m *Mission) stateDigest(tick uint64) string {
	h := sha256.New()
	fmt.Fprintf(h, "tick=%d paused=%t next=%d\n", tick, m.paused, m.nextAgent)

	es := m.esc.Export()
	fmt.Fprintf(h, "esc heat=%.6f level=%s change=%d check=%d spawn=%d\n",
		es.Heat, es.ActiveLevel, es.LastChangeTick, es.LastCheckTick, es.LastSpawnTick)
	for _, p := range es.Pending {
		fmt.Fprintf(h, "pending %s %d %.3f,%.3f %d\n", p.Level, p.Count, p.Pos.X, p.Pos.Y, p.DueTick)
	}
	for _, q := range es.Queued {
		fmt.Fprintf(h, "queued %s %.3f,%.3f %d\n", q.Type, q.Pos.X, q.Pos.Y, q.Tick)
	}

	for _, s := range m.sounds {
		fmt.Fprintf(h, "sound %.3f,%.3f %.4f %.3f %d\n", s.Pos.X, s.Pos.Y, s.Intensity, s.Radius, s.Tick)
	}
	fmt.Fprintf(h, "queue %s\n", strings.Join(m.planQueue, ","))

	for _, id := range m.order {
		a := m.agents[id]
		if a == nil {
			continue
		}
		fmt.Fprintf(h, "agent %s %s %.4f,%.4f %.4f,%.4f hp=%.2f panic=%t tgt=%s pi=%d\n",
			a.ID, a.Kind, a.Pos.X, a.Pos.Y, a.Facing.X, a.Facing.Y, a.Health, a.Panicking, a.Target, a.PatrolIdx)
		if !a.decides() {
			continue
		}
		lk := a.Percept.LastKnown
		if lk == nil {
			lk = &percept.LastKnown{}
		}
		fmt.Fprintf(h, "  susp=%.6f lvl=%d lk=%s,%.3f,%.3f,%d\n",
			a.Percept.Suspicion, a.Percept.Level,
			lk.Target, lk.Pos.X, lk.Pos.Y, lk.Tick)
		fmt.Fprintf(h, "  facts=%s\n", planner.NewProjection(a.Facts).Key())
		cs := a.Ctl.Export()
		fmt.Fprintf(h, "  ctl=%s goal=%s step=%d plan=%s\n",
			cs.Phase, cs.GoalName, cs.Step, strings.Join(cs.Plan, ";"))
	}
	return hex.EncodeToString(h.Sum(nil))
}

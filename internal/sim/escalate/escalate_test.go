package escalate

import (
	"io"
	"log"
	"strings"
	"testing"

	"tacsim.ai/internal/sim/core"
	"tacsim.ai/internal/sim/tuning"
)

// testTuning: 10 Hz, check every 1s (10 ticks), cooldown 5s (50 ticks),
// decay 0.1 heat/s. Armed enters at 40, Tactical at 70.
func testTuning() tuning.Tuning {
	return tuning.Tuning{
		TickRateHz:            10,
		HeatDecayRate:         0.1,
		EscalationCheckDelay:  1,
		EscalationCooldown:    5,
		MassHysteriaThreshold: 8,
		IncidentHeatValues: map[string]float64{
			"Gunshot":      2,
			"Explosion":    50,
			"MassHysteria": 10,
		},
		EscalationLevels: map[string]tuning.Level{
			"None":     {},
			"Armed":    {Count: 2, ResponseTime: 2, Weapon: "rifle", HeatThreshold: 40, SpawnInterval: 6},
			"Tactical": {Count: 3, ResponseTime: 1, Weapon: "rifle", HeatThreshold: 70, SpawnInterval: 4},
		},
		PatrolPatterns: map[string][][2]float64{
			"beat": {{0, 0}, {10, 0}},
		},
		LevelPatrolPatterns: map[string]string{
			"Armed":    "beat",
			"Tactical": "missing_pattern",
		},
	}
}

func quiet() *log.Logger { return log.New(io.Discard, "", 0) }

func runTo(m *Manager, from, to uint64) (changes []LevelChange, orders []SpawnOrder) {
	for tick := from; tick <= to; tick++ {
		c, o := m.Step(tick, 0)
		if c != nil {
			changes = append(changes, *c)
		}
		orders = append(orders, o...)
	}
	return changes, orders
}

func TestHeatNeverNegativeAndDecaysToZero(t *testing.T) {
	m := NewManager(testTuning(), quiet())
	m.Record(Incident{Type: "Gunshot", Tick: 1})

	runTo(m, 1, 500)
	if m.Heat() != 0 {
		t.Fatalf("heat did not settle at zero: %v", m.Heat())
	}
	runTo(m, 501, 600)
	if m.Heat() != 0 {
		t.Fatalf("heat left zero without incidents: %v", m.Heat())
	}
}

func TestTierIsHighestThresholdAtOrBelowHeat(t *testing.T) {
	m := NewManager(testTuning(), quiet())
	m.Record(Incident{Type: "Explosion", Pos: core.Vec2{X: 10}, Tick: 1})

	changes, _ := runTo(m, 1, 10)
	if len(changes) != 1 || changes[0].New != "Armed" {
		t.Fatalf("after one explosion: changes %v, level %s", changes, m.ActiveLevel())
	}

	// A second explosion lifts heat past the Tactical threshold, but the
	// change cooldown has not elapsed yet.
	m.Record(Incident{Type: "Explosion", Pos: core.Vec2{X: 20}, Tick: 11})
	changes, _ = runTo(m, 11, 30)
	if len(changes) != 0 || m.ActiveLevel() != "Armed" {
		t.Fatalf("promoted inside cooldown: changes %v, level %s", changes, m.ActiveLevel())
	}

	// Once the cooldown expires the pending promotion commits.
	changes, _ = runTo(m, 31, 70)
	if len(changes) != 1 || changes[0].Old != "Armed" || changes[0].New != "Tactical" {
		t.Fatalf("promotion after cooldown: changes %v, level %s", changes, m.ActiveLevel())
	}
}

func TestLevelChangesRespectCooldown(t *testing.T) {
	m := NewManager(testTuning(), quiet())
	// Keep feeding incidents so the tier wants to move repeatedly.
	var changeTicks []uint64
	for tick := uint64(1); tick <= 600; tick++ {
		if tick%40 == 0 {
			m.Record(Incident{Type: "Explosion", Tick: tick})
		}
		c, _ := m.Step(tick, 0)
		if c != nil {
			changeTicks = append(changeTicks, tick)
		}
	}
	for i := 1; i < len(changeTicks); i++ {
		if gap := changeTicks[i] - changeTicks[i-1]; gap < 50 {
			t.Fatalf("changes %d ticks apart, cooldown is 50: %v", gap, changeTicks)
		}
	}
	if len(changeTicks) == 0 {
		t.Fatalf("no level changes at all")
	}
}

func TestSpawnSchedulingAndRelease(t *testing.T) {
	m := NewManager(testTuning(), quiet())
	m.Record(Incident{Type: "Explosion", Pos: core.Vec2{X: 30, Y: 5}, Tick: 1})

	// First check folds heat and commits Armed; the same check schedules the
	// first spawn, due after the 2s response time.
	_, orders := runTo(m, 1, 9)
	if len(orders) != 0 {
		t.Fatalf("spawn released before response time: %v", orders)
	}
	_, orders = runTo(m, 10, 35)
	if len(orders) != 1 {
		t.Fatalf("want one spawn order, got %v", orders)
	}
	o := orders[0]
	if o.Level != "Armed" || o.Count != 2 || o.Loadout.Weapon != "rifle" {
		t.Fatalf("order loadout: %+v", o)
	}
	if o.Pos != (core.Vec2{X: 30, Y: 5}) {
		t.Fatalf("order at %v, want incident location", o.Pos)
	}
	if len(o.Pattern) == 0 {
		t.Fatalf("order has no patrol pattern")
	}

	// Repeat spawns are gated by the 6s spawn interval: the next schedule
	// happens at the first check past tick 70 and releases 2s later.
	_, orders = runTo(m, 36, 89)
	if len(orders) != 0 {
		t.Fatalf("repeat spawn inside interval: %v", orders)
	}
	_, orders = runTo(m, 90, 100)
	if len(orders) != 1 {
		t.Fatalf("no repeat spawn after interval: got %d", len(orders))
	}
}

func TestSpawnIdempotentAcrossSaveRestore(t *testing.T) {
	m := NewManager(testTuning(), quiet())
	m.Record(Incident{Type: "Explosion", Tick: 1})
	_, orders := runTo(m, 1, 15)
	if len(orders) != 0 {
		t.Fatalf("order released early: %v", orders)
	}

	// Save mid-delay, restore into a fresh manager: exactly one release.
	saved := m.Export()
	if len(saved.Pending) != 1 {
		t.Fatalf("want one pending spawn in save, got %v", saved.Pending)
	}
	m2 := NewManager(testTuning(), quiet())
	m2.Restore(saved)

	_, orders = runTo(m2, 16, 29)
	if len(orders) != 0 {
		t.Fatalf("restored order released before due tick: %v", orders)
	}
	_, orders = runTo(m2, 30, 32)
	if len(orders) != 1 {
		t.Fatalf("restored order releases: got %d want 1", len(orders))
	}
	if got := m2.Export().Pending; len(got) != 0 {
		t.Fatalf("pending survived release: %v", got)
	}
}

func TestMissingPatternFallsBackWithWarning(t *testing.T) {
	var buf strings.Builder
	m := NewManager(testTuning(), log.New(&buf, "", 0))

	// Two explosions put the city straight at Tactical, whose pattern
	// reference is broken in the fixture.
	m.Record(Incident{Type: "Explosion", Tick: 1})
	m.Record(Incident{Type: "Explosion", Tick: 1})
	_, orders := runTo(m, 1, 25)

	var tactical []SpawnOrder
	for _, o := range orders {
		if o.Level == "Tactical" {
			tactical = append(tactical, o)
		}
	}
	if len(tactical) == 0 {
		t.Fatalf("no tactical spawn produced, level %s", m.ActiveLevel())
	}
	if len(tactical[0].Pattern) == 0 {
		t.Fatalf("fallback pattern empty")
	}
	if !strings.Contains(buf.String(), "no usable patrol pattern") {
		t.Fatalf("missing fallback warning, log: %q", buf.String())
	}
}

func TestMassHysteriaContributesHeat(t *testing.T) {
	m := NewManager(testTuning(), quiet())
	for tick := uint64(1); tick <= 10; tick++ {
		m.Step(tick, 9)
	}
	if m.Heat() <= 0 {
		t.Fatalf("mass hysteria added no heat")
	}

	calm := NewManager(testTuning(), quiet())
	for tick := uint64(1); tick <= 10; tick++ {
		calm.Step(tick, 7)
	}
	if calm.Heat() != 0 {
		t.Fatalf("heat below hysteria threshold: %v", calm.Heat())
	}
}

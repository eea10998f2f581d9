package percept

import (
	"math"
	"testing"

	"tacsim.ai/internal/sim/core"
	"tacsim.ai/internal/sim/tuning"
)

func testEngine() *Engine {
	return NewEngine(tuning.Defaults().Perception, 10)
}

func TestSightStrength_ConeAndRange(t *testing.T) {
	e := testEngine()
	pos := core.Vec2{}
	facing := core.Vec2{X: 1}

	if s := e.SightStrength(pos, facing, core.Vec2{X: 50}, 100, nil); s != 0.5 {
		t.Fatalf("straight ahead at half range: got %v want 0.5", s)
	}
	if s := e.SightStrength(pos, facing, core.Vec2{X: -50}, 100, nil); s != 0 {
		t.Fatalf("behind: got %v want 0", s)
	}
	if s := e.SightStrength(pos, facing, core.Vec2{X: 200}, 100, nil); s != 0 {
		t.Fatalf("out of range: got %v want 0", s)
	}
}

func TestSightStrength_ConeBoundary(t *testing.T) {
	// Default half angle is 60 degrees; the cone boundary is closed, so a
	// target a hair inside must read visible and a hair outside must not.
	e := testEngine()
	pos := core.Vec2{}
	facing := core.Vec2{X: 1}

	at := func(deg float64) core.Vec2 {
		rad := deg * math.Pi / 180
		return core.Vec2{X: math.Cos(rad), Y: math.Sin(rad)}.Scale(50)
	}
	if s := e.SightStrength(pos, facing, at(59.99), 100, nil); s <= 0 {
		t.Fatalf("target just inside cone not visible: got %v", s)
	}
	if s := e.SightStrength(pos, facing, at(60.01), 100, nil); s != 0 {
		t.Fatalf("target just outside cone visible: got %v", s)
	}
}

func TestSightStrength_Occluded(t *testing.T) {
	e := testEngine()
	grid := core.NewOccluderGrid(core.Vec2{}, 10, 10, 10)
	grid.SetSolid(5, 0, true) // wall between x=50 and x=60 on the y=0 row

	pos := core.Vec2{X: 5, Y: 5}
	target := core.Vec2{X: 95, Y: 5}
	if s := e.SightStrength(pos, core.Vec2{X: 1}, target, 200, grid); s != 0 {
		t.Fatalf("occluded target visible: got %v", s)
	}
	grid.SetSolid(5, 0, false)
	if s := e.SightStrength(pos, core.Vec2{X: 1}, target, 200, grid); s <= 0 {
		t.Fatalf("clear target not visible: got %v", s)
	}
}

func TestSoundStrength_RadiusDecayAndExpiry(t *testing.T) {
	e := testEngine()
	snd := Sound{Pos: core.Vec2{}, Intensity: 2, Radius: 100, Tick: 100}

	if s := e.SoundStrength(snd, core.Vec2{X: 50}, 100); s != 1 {
		t.Fatalf("half radius: got %v want 1", s)
	}
	if s := e.SoundStrength(snd, core.Vec2{X: 150}, 100); s != 0 {
		t.Fatalf("outside radius: got %v want 0", s)
	}
	// Default expiry is 1.5s at 10 Hz, so 15 ticks.
	if s := e.SoundStrength(snd, core.Vec2{X: 50}, 116); s != 0 {
		t.Fatalf("expired sound heard: got %v", s)
	}
	if s := e.SoundStrength(snd, core.Vec2{X: 50}, 115); s == 0 {
		t.Fatalf("sound at expiry edge silent")
	}
}

func TestStep_DecayMonotonicAndBounded(t *testing.T) {
	e := testEngine()
	st := &State{Suspicion: 50}

	prev := st.Suspicion
	for tick := uint64(1); tick <= 200; tick++ {
		e.Step(st, 0, tick)
		if st.Suspicion > prev {
			t.Fatalf("tick %d: suspicion rose without stimulus: %v > %v", tick, st.Suspicion, prev)
		}
		if st.Suspicion < 0 {
			t.Fatalf("tick %d: suspicion negative: %v", tick, st.Suspicion)
		}
		prev = st.Suspicion
	}
	if st.Suspicion > 2 {
		t.Fatalf("decay too slow: %v after 20s", st.Suspicion)
	}

	st = &State{}
	for tick := uint64(1); tick <= 500; tick++ {
		e.Step(st, 100, tick)
		if st.Suspicion > 100 {
			t.Fatalf("suspicion above max: %v", st.Suspicion)
		}
	}
}

func TestStep_OneLevelPerTick(t *testing.T) {
	e := testEngine()
	st := &State{}

	// A huge stimulus still climbs one level at a time.
	levels := []AwarenessLevel{Suspicious, Investigating, Alert, Combat}
	for i, want := range levels {
		old, now := e.Step(st, 1000, uint64(i+1))
		if now != want {
			t.Fatalf("tick %d: got %v want %v (old %v, suspicion %v)", i+1, now, want, old, st.Suspicion)
		}
	}
}

func TestStep_HysteresisAtThreshold(t *testing.T) {
	e := testEngine()

	// Default Suspicious threshold is 15, closed interval: landing exactly
	// on it enters the level.
	st := &State{Suspicion: 14.9}
	if _, now := e.Step(st, 0.1, 1); st.Suspicion < 15 || now != Suspicious {
		t.Fatalf("at threshold: suspicion %v level %v", st.Suspicion, now)
	}

	// Decay drops the value below 15; the level holds until the hysteresis
	// margin (threshold minus 5) is crossed, so no flicker at the boundary.
	st = &State{Suspicion: 15, Level: Suspicious}
	for tick := uint64(1); tick < 100; tick++ {
		_, now := e.Step(st, 0, tick)
		if st.Suspicion >= 10 && now != Suspicious {
			t.Fatalf("tick %d: flickered down at %v", tick, st.Suspicion)
		}
		if st.Suspicion < 10 {
			if now != Unaware {
				t.Fatalf("tick %d: held below margin at %v", tick, st.Suspicion)
			}
			return
		}
	}
	t.Fatalf("suspicion never crossed the margin: %v", st.Suspicion)
}

func TestStep_LastKnownBlocksDemotion(t *testing.T) {
	e := testEngine()
	st := &State{Suspicion: 90, Level: Combat}
	e.MarkSeen(st, "intruder-1", core.Vec2{X: 5}, 100)

	// Default timeout is 10s = 100 ticks. Suspicion collapses but the level
	// holds while the last-known record is fresh.
	st.Suspicion = 0
	_, now := e.Step(st, 0, 150)
	if now != Combat {
		t.Fatalf("demoted while target position known: %v", now)
	}
	if st.LastKnown == nil {
		t.Fatalf("last-known cleared early")
	}

	_, now = e.Step(st, 0, 201)
	if now != Unaware {
		t.Fatalf("after timeout: got %v want unaware", now)
	}
	if st.LastKnown != nil {
		t.Fatalf("last-known survived timeout")
	}
}

func TestAwarenessLevel_NamesRoundTrip(t *testing.T) {
	// The observer feed carries the capitalized names; ParseLevel must accept
	// exactly what String produces.
	for _, l := range []AwarenessLevel{Unaware, Suspicious, Investigating, Alert, Combat} {
		got, ok := ParseLevel(l.String())
		if !ok || got != l {
			t.Fatalf("round trip %v: got %v ok=%t", l, got, ok)
		}
	}
	if got := Combat.String(); got != "Combat" {
		t.Fatalf("combat name = %q", got)
	}
	if _, ok := ParseLevel("combat"); ok {
		t.Fatalf("lowercase name accepted")
	}
}

func TestForce_RaisesNeverLowers(t *testing.T) {
	e := testEngine()
	st := &State{}

	old, now := e.Force(st, Combat)
	if old != Unaware || now != Combat {
		t.Fatalf("force up: got %v -> %v", old, now)
	}
	if st.Suspicion < 85 {
		t.Fatalf("forced level without matching suspicion: %v", st.Suspicion)
	}

	old, now = e.Force(st, Suspicious)
	if now != Combat {
		t.Fatalf("force lowered awareness: %v -> %v", old, now)
	}
}

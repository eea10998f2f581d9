package mission

import (
	"tacsim.ai/internal/protocol"
	"tacsim.ai/internal/sim/agent"
	"tacsim.ai/internal/sim/core"
	"tacsim.ai/internal/sim/percept"
	"tacsim.ai/internal/sim/planner"
)

// Agent kinds. Guards and responders run the full decide/execute loop;
// intruders and civilians are simulated by the mission itself.
const (
	KindGuard     = "guard"
	KindResponder = "responder"
	KindIntruder  = "intruder"
	KindCivilian  = "civilian"
)

type Config struct {
	ID   string
	Seed int64

	GridCols int
	GridRows int
	CellSize float64

	SnapshotEveryTicks int
}

func (c *Config) applyDefaults() {
	if c.ID == "" {
		c.ID = "MISSION"
	}
	if c.GridCols <= 0 {
		c.GridCols = 64
	}
	if c.GridRows <= 0 {
		c.GridRows = 64
	}
	if c.CellSize <= 0 {
		c.CellSize = 10
	}
	if c.SnapshotEveryTicks < 0 {
		c.SnapshotEveryTicks = 0
	}
}

// Agent is one simulated actor. Decision state (perception, controller) only
// exists for guards and responders.
type Agent struct {
	ID     string
	Kind   string
	Level  string // responder tier name, empty otherwise
	Pos    core.Vec2
	Facing core.Vec2
	Speed  float64 // units per second
	Health float64
	Weapon string
	Vision float64

	Patrol    []core.Vec2
	PatrolIdx int

	Panicking bool // civilians only

	Target string // current target agent id, weak reference
	Facts  planner.Facts

	Percept percept.State
	Ctl     *agent.Controller

	// Most recent heard sound, and the high-water mark of sounds already
	// investigated. heard_sound holds while lastSoundTick is ahead of the
	// handled mark.
	lastSoundPos     core.Vec2
	lastSoundTick    uint64
	soundHandledTick uint64

	// Per-action execution scratch, reset when a new action starts.
	curAction   string
	actionTicks int
	// Ticks since the current attack target was last visible.
	targetLostTicks int
	// Shots since the last reload; the magazine empties at magSize.
	shotsFired int
}

func (a *Agent) decides() bool {
	return a.Kind == KindGuard || a.Kind == KindResponder
}

// SpawnRequest adds an actor at the next tick boundary. Waypoints apply to
// intruders (route) and guards (patrol loop).
type SpawnRequest struct {
	Kind      string
	Pos       core.Vec2
	Waypoints []core.Vec2
}

// AwarenessOverride forces an agent's awareness, e.g. when it takes fire.
type AwarenessOverride struct {
	Agent string
	Level percept.AwarenessLevel
	// Source position becomes the last-known target location when set.
	Source *core.Vec2
	Target string
}

// TickLogEntry is one line of the mission's tick log.
type TickLogEntry struct {
	Tick   uint64           `json:"tick"`
	Digest string           `json:"digest"`
	Heat   float64          `json:"heat"`
	Level  string           `json:"level"`
	Events []protocol.Event `json:"events,omitempty"`
}

// TickSink receives one entry per tick; the JSONL log and the sqlite index
// both implement it.
type TickSink interface {
	WriteTick(TickLogEntry) error
}

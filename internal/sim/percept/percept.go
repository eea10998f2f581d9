package percept

import (
	"math"

	"tacsim.ai/internal/sim/core"
	"tacsim.ai/internal/sim/tuning"
)

// AwarenessLevel is the discrete stage of an agent's suspicion toward a
// threat. It is a pure function of the suspicion value crossing thresholds,
// except for explicit external overrides (being shot forces Combat).
type AwarenessLevel uint8

const (
	Unaware AwarenessLevel = iota
	Suspicious
	Investigating
	Alert
	Combat
)

func (l AwarenessLevel) String() string {
	switch l {
	case Unaware:
		return "Unaware"
	case Suspicious:
		return "Suspicious"
	case Investigating:
		return "Investigating"
	case Alert:
		return "Alert"
	default:
		return "Combat"
	}
}

// ParseLevel maps an awareness name back to its level.
func ParseLevel(s string) (AwarenessLevel, bool) {
	switch s {
	case "Unaware":
		return Unaware, true
	case "Suspicious":
		return Suspicious, true
	case "Investigating":
		return Investigating, true
	case "Alert":
		return Alert, true
	case "Combat":
		return Combat, true
	}
	return Unaware, false
}

// LastKnown records where a target was last perceived. The target is held as
// an identifier, never a reference, so a despawned target cannot dangle.
type LastKnown struct {
	Target string    `json:"target"`
	Pos    core.Vec2 `json:"pos"`
	Tick   uint64    `json:"tick"`
}

// State is one agent's perception state. All fields persist across
// save/restore; nothing here is derived.
type State struct {
	Suspicion float64        `json:"suspicion"`
	Level     AwarenessLevel `json:"level"`
	LastKnown *LastKnown     `json:"last_known,omitempty"`
}

// Sound is an audible stimulus recorded at emission time. Sounds older than
// the configured expiry contribute nothing.
type Sound struct {
	Pos       core.Vec2
	Intensity float64
	Radius    float64
	Tick      uint64
}

// Engine evaluates sight and sound stimuli and advances per-agent suspicion.
// It is stateless apart from configuration; all mutable state lives in the
// per-agent State values the caller owns.
type Engine struct {
	cosHalf        float64
	suspicionMax   float64
	thresholds     [4]float64
	hysteresis     float64
	decayPerTick   float64
	sightGain      float64 // suspicion per tick at strength 1
	soundExpiry    uint64
	lastKnownTicks uint64
}

func NewEngine(cfg tuning.Perception, tickRateHz int) *Engine {
	hz := float64(tickRateHz)
	return &Engine{
		cosHalf:        math.Cos(cfg.ConeHalfAngleDeg * math.Pi / 180),
		suspicionMax:   cfg.SuspicionMax,
		thresholds:     cfg.Thresholds,
		hysteresis:     cfg.Hysteresis,
		decayPerTick:   math.Pow(0.5, 1/(cfg.HalfLife*hz)),
		sightGain:      cfg.SightGain / hz,
		soundExpiry:    uint64(cfg.SoundExpiry * hz),
		lastKnownTicks: uint64(cfg.LastKnownTimeout * hz),
	}
}

// SightStrength returns visibility of target from an observer at pos facing
// the given direction, in [0, 1]. A target exactly on the cone boundary
// counts as visible. Occlusion is a straight-line test against the grid.
func (e *Engine) SightStrength(pos, facing, target core.Vec2, visionRange float64, grid *core.OccluderGrid) float64 {
	d := target.Sub(pos)
	dist := d.Len()
	if dist > visionRange || visionRange <= 0 {
		return 0
	}
	if dist > 1e-9 {
		dir := facing.Normalize()
		if dir.Dot(d.Scale(1/dist)) < e.cosHalf {
			return 0
		}
	}
	if grid != nil && !grid.LineClear(pos, target) {
		return 0
	}
	return 1 - dist/visionRange
}

// SoundStrength returns the contribution of a recorded sound to an agent at
// pos, at the given tick. Zero outside the radius or past expiry.
func (e *Engine) SoundStrength(s Sound, pos core.Vec2, tick uint64) float64 {
	if tick > s.Tick+e.soundExpiry {
		return 0
	}
	if s.Radius <= 0 {
		return 0
	}
	dist := pos.Dist(s.Pos)
	if dist > s.Radius {
		return 0
	}
	return s.Intensity * (1 - dist/s.Radius)
}

// Step advances one agent's suspicion by one tick given the combined
// stimulus strength for that tick (sum of sight and sound channels, each in
// stimulus units). It returns the previous and new awareness levels; callers
// emit a change event when they differ.
//
// The applied delta is capped so no single tick raises awareness more than
// one level, and downward transitions require both the hysteresis margin and
// an expired last-known timer.
func (e *Engine) Step(st *State, stimulus float64, tick uint64) (old, now AwarenessLevel) {
	old = st.Level

	s := st.Suspicion * e.decayPerTick
	if stimulus > 0 {
		s += stimulus * e.sightGain
	}
	if s > e.suspicionMax {
		s = e.suspicionMax
	}
	if s < 0 {
		s = 0
	}

	// One tier per tick: clamp just under the threshold two levels up.
	if lim, ok := e.enterThreshold(old + 2); ok && s >= lim {
		s = math.Nextafter(lim, 0)
	}
	st.Suspicion = s

	level := st.Level
	for level < Combat {
		thr, ok := e.enterThreshold(level + 1)
		if !ok || s < thr {
			break
		}
		level++
	}
	if level == st.Level && e.lastKnownExpired(st, tick) {
		for level > Unaware {
			thr, _ := e.enterThreshold(level)
			if s >= thr-e.hysteresis {
				break
			}
			level--
		}
	}
	st.Level = level

	if st.LastKnown != nil && tick > st.LastKnown.Tick+e.lastKnownTicks {
		st.LastKnown = nil
	}
	return old, level
}

// MarkSeen records a confirmed sighting, refreshing the last-known position.
func (e *Engine) MarkSeen(st *State, target string, pos core.Vec2, tick uint64) {
	st.LastKnown = &LastKnown{Target: target, Pos: pos, Tick: tick}
}

// Force sets awareness directly, for external triggers such as taking fire.
// Suspicion is raised to the entered level's threshold so decay behaves as
// if the level had been reached normally. Force never lowers awareness.
func (e *Engine) Force(st *State, level AwarenessLevel) (old, now AwarenessLevel) {
	old = st.Level
	if level <= st.Level {
		return old, st.Level
	}
	st.Level = level
	if thr, ok := e.enterThreshold(level); ok && st.Suspicion < thr {
		st.Suspicion = thr
	}
	return old, level
}

// enterThreshold returns the suspicion value at which the given level is
// entered from below. Closed interval: a value equal to the threshold is in.
func (e *Engine) enterThreshold(level AwarenessLevel) (float64, bool) {
	if level < Suspicious || level > Combat {
		return 0, false
	}
	return e.thresholds[level-1], true
}

func (e *Engine) lastKnownExpired(st *State, tick uint64) bool {
	return st.LastKnown == nil || tick > st.LastKnown.Tick+e.lastKnownTicks
}

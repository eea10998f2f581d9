package escalate

import (
	"log"

	"tacsim.ai/internal/sim/core"
	"tacsim.ai/internal/sim/tuning"
)

// Incident is a typed hostile event with its heat contribution pending.
// Incidents are immutable and consumed once, at the next escalation check.
type Incident struct {
	Type   string    `json:"type"`
	Pos    core.Vec2 `json:"pos"`
	Source string    `json:"source,omitempty"`
	Tick   uint64    `json:"tick"`
}

// PendingSpawn is a scheduled responder group waiting out its response
// delay. Pending spawns persist across save/restore so a restored mission
// neither drops nor duplicates them.
type PendingSpawn struct {
	Level   string    `json:"level"`
	Count   int       `json:"count"`
	Pos     core.Vec2 `json:"pos"`
	DueTick uint64    `json:"due_tick"`
}

// State is the manager's persisted block: primary values only, nothing
// derived. Queued incidents ride along so a save between checks loses none.
type State struct {
	Heat           float64        `json:"heat"`
	ActiveLevel    string         `json:"active_level"`
	LastChangeTick uint64         `json:"last_change_tick"`
	LastCheckTick  uint64         `json:"last_check_tick"`
	LastSpawnTick  uint64         `json:"last_spawn_tick"`
	LastIncident   core.Vec2      `json:"last_incident"`
	Pending        []PendingSpawn `json:"pending,omitempty"`
	Queued         []Incident     `json:"queued,omitempty"`
}

// LevelChange reports a committed escalation tier transition.
type LevelChange struct {
	Old  string
	New  string
	Heat float64
}

// SpawnOrder is a responder group whose response delay has elapsed. The
// mission materializes the agents; the manager only decides when and what.
type SpawnOrder struct {
	Level   string
	Count   int
	Pos     core.Vec2
	Loadout tuning.Level
	Pattern [][2]float64
}

// Manager aggregates incidents into a single city heat pool and drives the
// response tier. All timing is in ticks; the manager holds no clock of its
// own and is advanced explicitly by the mission loop.
type Manager struct {
	levels   map[string]tuning.Level
	order    []string // ascending heat threshold, "None" first
	heatFor  map[string]float64
	patterns map[string][][2]float64
	patFor   map[string]string

	decayPerTick   float64
	checkInterval  uint64
	cooldown       uint64
	hysteriaMin    int
	hysteriaHeat   float64
	spawnInterval  map[string]uint64
	responseTicks  map[string]uint64
	patternWarned  map[string]bool
	logger         *log.Logger

	st State
}

func NewManager(t tuning.Tuning, logger *log.Logger) *Manager {
	m := &Manager{
		levels:        t.EscalationLevels,
		order:         t.LevelOrder(),
		heatFor:       t.IncidentHeatValues,
		patterns:      t.PatrolPatterns,
		patFor:        t.LevelPatrolPatterns,
		decayPerTick:  t.HeatDecayRate / float64(t.TickRateHz),
		checkInterval: t.Ticks(t.EscalationCheckDelay),
		cooldown:      t.Ticks(t.EscalationCooldown),
		hysteriaMin:   t.MassHysteriaThreshold,
		hysteriaHeat:  t.IncidentHeatValues["MassHysteria"],
		spawnInterval: make(map[string]uint64, len(t.EscalationLevels)),
		responseTicks: make(map[string]uint64, len(t.EscalationLevels)),
		patternWarned: make(map[string]bool),
		logger:        logger,
		st:            State{ActiveLevel: "None"},
	}
	for name, lv := range t.EscalationLevels {
		m.spawnInterval[name] = t.Ticks(lv.SpawnInterval)
		m.responseTicks[name] = t.Ticks(lv.ResponseTime)
	}
	for _, warn := range t.Validate() {
		logger.Printf("config: %s", warn)
	}
	return m
}

// Record queues an incident for the next check. Fold order is arrival order.
func (m *Manager) Record(inc Incident) {
	m.st.Queued = append(m.st.Queued, inc)
}

// Heat returns the current pool value.
func (m *Manager) Heat() float64 { return m.st.Heat }

// ActiveLevel returns the committed response tier name.
func (m *Manager) ActiveLevel() string { return m.st.ActiveLevel }

// Step advances the manager one tick. Decay and due-spawn release run every
// tick; incident folding, tier selection, and spawn scheduling run on the
// check interval. panicking is the current count of fleeing civilians, used
// for the mass hysteria contribution.
func (m *Manager) Step(tick uint64, panicking int) (*LevelChange, []SpawnOrder) {
	m.st.Heat -= m.decayPerTick
	if m.st.Heat < 0 {
		m.st.Heat = 0
	}

	var change *LevelChange
	if tick >= m.st.LastCheckTick+m.checkInterval {
		m.st.LastCheckTick = tick
		m.fold(tick, panicking)
		change = m.selectTier(tick)
		m.scheduleSpawns(tick)
	}
	return change, m.releaseDue(tick)
}

func (m *Manager) fold(tick uint64, panicking int) {
	if m.hysteriaMin > 0 && panicking >= m.hysteriaMin {
		m.st.Queued = append(m.st.Queued, Incident{Type: "MassHysteria", Pos: m.st.LastIncident, Tick: tick})
	}
	for _, inc := range m.st.Queued {
		heat, ok := m.heatFor[inc.Type]
		if !ok {
			m.logger.Printf("escalate: incident %q has no heat value, ignored", inc.Type)
			continue
		}
		m.st.Heat += heat
		if inc.Type != "MassHysteria" {
			m.st.LastIncident = inc.Pos
		}
	}
	m.st.Queued = m.st.Queued[:0]
}

// selectTier picks the highest tier whose threshold is at or below the pool
// and commits the change only when the cooldown since the previous change
// has elapsed. The debounce applies in both directions.
func (m *Manager) selectTier(tick uint64) *LevelChange {
	want := "None"
	for _, name := range m.order[1:] {
		if m.st.Heat >= m.levels[name].HeatThreshold {
			want = name
		}
	}
	if want == m.st.ActiveLevel {
		return nil
	}
	if m.st.LastChangeTick > 0 && tick < m.st.LastChangeTick+m.cooldown {
		return nil
	}
	old := m.st.ActiveLevel
	m.st.ActiveLevel = want
	m.st.LastChangeTick = tick
	m.st.LastSpawnTick = 0
	m.logger.Printf("escalate: %s -> %s (heat %.1f)", old, want, m.st.Heat)
	return &LevelChange{Old: old, New: want, Heat: m.st.Heat}
}

func (m *Manager) scheduleSpawns(tick uint64) {
	name := m.st.ActiveLevel
	if name == "None" {
		return
	}
	lv := m.levels[name]
	if lv.Count <= 0 {
		return
	}
	interval := m.spawnInterval[name]
	if m.st.LastSpawnTick != 0 && tick < m.st.LastSpawnTick+interval {
		return
	}
	m.st.LastSpawnTick = tick
	m.st.Pending = append(m.st.Pending, PendingSpawn{
		Level:   name,
		Count:   lv.Count,
		Pos:     m.st.LastIncident,
		DueTick: tick + m.responseTicks[name],
	})
}

func (m *Manager) releaseDue(tick uint64) []SpawnOrder {
	var orders []SpawnOrder
	kept := m.st.Pending[:0]
	for _, p := range m.st.Pending {
		if tick < p.DueTick {
			kept = append(kept, p)
			continue
		}
		orders = append(orders, SpawnOrder{
			Level:   p.Level,
			Count:   p.Count,
			Pos:     p.Pos,
			Loadout: m.levels[p.Level],
			Pattern: m.patternFor(p.Level),
		})
	}
	m.st.Pending = kept
	return orders
}

// patternFor resolves a level's patrol pattern, falling back to the lowest
// tier's pattern when the reference is missing or broken. Each bad level is
// warned about once.
func (m *Manager) patternFor(level string) [][2]float64 {
	if name, ok := m.patFor[level]; ok {
		if pat, ok := m.patterns[name]; ok {
			return pat
		}
	}
	if !m.patternWarned[level] {
		m.patternWarned[level] = true
		m.logger.Printf("escalate: level %s has no usable patrol pattern, using lowest tier's", level)
	}
	if len(m.order) > 1 {
		if name, ok := m.patFor[m.order[1]]; ok {
			if pat, ok := m.patterns[name]; ok {
				return pat
			}
		}
	}
	return nil
}

// Export returns a copy of the persisted block.
func (m *Manager) Export() State {
	st := m.st
	st.Pending = append([]PendingSpawn(nil), m.st.Pending...)
	st.Queued = append([]Incident(nil), m.st.Queued...)
	return st
}

// Restore replaces the manager's state with a previously exported block.
func (m *Manager) Restore(st State) {
	if st.ActiveLevel == "" {
		st.ActiveLevel = "None"
	}
	if _, ok := m.levels[st.ActiveLevel]; !ok {
		m.logger.Printf("escalate: restored level %q unknown, resetting to None", st.ActiveLevel)
		st.ActiveLevel = "None"
	}
	if st.Heat < 0 {
		st.Heat = 0
	}
	m.st = st
}

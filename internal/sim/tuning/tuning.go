package tuning

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Tuning is the urban response configuration loaded from urban.yaml.
// Times are in seconds; the mission converts them to ticks at startup.
type Tuning struct {
	TickRateHz int `yaml:"tick_rate_hz"`

	HeatDecayRate         float64 `yaml:"heat_decay_rate"`
	EscalationCheckDelay  float64 `yaml:"escalation_check_delay"`
	EscalationCooldown    float64 `yaml:"escalation_cooldown"`
	MassHysteriaThreshold int     `yaml:"mass_hysteria_threshold"`

	IncidentHeatValues map[string]float64 `yaml:"incident_heat_values"`

	EscalationLevels map[string]Level `yaml:"escalation_levels"`

	PatrolPatterns      map[string][][2]float64 `yaml:"patrol_patterns"`
	LevelPatrolPatterns map[string]string       `yaml:"level_patrol_patterns"`

	Perception Perception `yaml:"perception"`
	Planner    Planner    `yaml:"planner"`
}

// Level is one escalation tier's responder loadout and pacing.
type Level struct {
	Count         int        `yaml:"count"`
	ResponseTime  float64    `yaml:"response_time"`
	Health        float64    `yaml:"health"`
	Weapon        string     `yaml:"weapon"`
	Speed         float64    `yaml:"speed"`
	Vision        float64    `yaml:"vision"`
	Color         [4]float64 `yaml:"color"`
	HeatThreshold float64    `yaml:"heat_threshold"`
	SpawnInterval float64    `yaml:"spawn_interval"`
}

type Perception struct {
	ConeHalfAngleDeg float64 `yaml:"cone_half_angle_deg"`
	SuspicionMax     float64 `yaml:"suspicion_max"`
	// Thresholds for Suspicious, Investigating, Alert, Combat in order.
	Thresholds       [4]float64 `yaml:"thresholds"`
	Hysteresis       float64    `yaml:"hysteresis"`
	HalfLife         float64    `yaml:"half_life"`
	LastKnownTimeout float64    `yaml:"last_known_timeout"`
	SoundExpiry      float64    `yaml:"sound_expiry"`
	SightGain        float64    `yaml:"sight_gain"`
}

type Planner struct {
	MaxNodes        int `yaml:"max_nodes"`
	MaxDepth        int `yaml:"max_depth"`
	SearchesPerTick int `yaml:"searches_per_tick"`
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("urban.yaml: %w", err)
	}
	t.applyDefaults()
	return t, nil
}

func Defaults() Tuning {
	var t Tuning
	t.applyDefaults()
	return t
}

func (t *Tuning) applyDefaults() {
	if t.TickRateHz <= 0 {
		t.TickRateHz = 10
	}
	if t.HeatDecayRate <= 0 {
		t.HeatDecayRate = 1.0
	}
	if t.EscalationCheckDelay <= 0 {
		t.EscalationCheckDelay = 5.0
	}
	if t.EscalationCooldown <= 0 {
		t.EscalationCooldown = 10.0
	}
	if t.MassHysteriaThreshold <= 0 {
		t.MassHysteriaThreshold = 8
	}
	if len(t.IncidentHeatValues) == 0 {
		t.IncidentHeatValues = map[string]float64{
			"Gunshot":        2,
			"CivilianKilled": 15,
			"PoliceKilled":   25,
			"Explosion":      20,
			"MassHysteria":   10,
		}
	}
	if len(t.EscalationLevels) == 0 {
		t.EscalationLevels = map[string]Level{
			"None":      {},
			"Patrol":    {Count: 2, ResponseTime: 15, Health: 60, Weapon: "pistol", Speed: 80, Vision: 150, Color: [4]float64{0.3, 0.3, 0.8, 1}, HeatThreshold: 20, SpawnInterval: 12},
			"Armed":     {Count: 2, ResponseTime: 12, Health: 120, Weapon: "rifle", Speed: 100, Vision: 160, Color: [4]float64{0.4, 0.4, 0.9, 1}, HeatThreshold: 40, SpawnInterval: 10},
			"Tactical":  {Count: 3, ResponseTime: 10, Health: 150, Weapon: "rifle", Speed: 120, Vision: 170, Color: [4]float64{0.6, 0.6, 1, 1}, HeatThreshold: 60, SpawnInterval: 9},
			"Military":  {Count: 4, ResponseTime: 8, Health: 180, Weapon: "minigun", Speed: 110, Vision: 180, Color: [4]float64{0.5, 0.8, 0.5, 1}, HeatThreshold: 90, SpawnInterval: 8},
			"Corporate": {Count: 2, ResponseTime: 6, Health: 200, Weapon: "flamethrower", Speed: 130, Vision: 200, Color: [4]float64{0.8, 0.2, 0.8, 1}, HeatThreshold: 120, SpawnInterval: 7},
		}
	}
	if len(t.PatrolPatterns) == 0 {
		t.PatrolPatterns = map[string][][2]float64{
			"beat":  {{0, 0}, {50, 0}, {50, 50}, {0, 50}},
			"sweep": {{0, 0}, {-100, 50}, {-100, -50}, {50, -50}},
		}
	}
	if len(t.LevelPatrolPatterns) == 0 {
		t.LevelPatrolPatterns = map[string]string{
			"Patrol":    "beat",
			"Armed":     "beat",
			"Tactical":  "sweep",
			"Military":  "sweep",
			"Corporate": "sweep",
		}
	}
	t.Perception.applyDefaults()
	t.Planner.applyDefaults()
}

func (p *Perception) applyDefaults() {
	if p.ConeHalfAngleDeg <= 0 {
		p.ConeHalfAngleDeg = 60
	}
	if p.SuspicionMax <= 0 {
		p.SuspicionMax = 100
	}
	if p.Thresholds == ([4]float64{}) {
		p.Thresholds = [4]float64{15, 35, 60, 85}
	}
	if p.Hysteresis <= 0 {
		p.Hysteresis = 5
	}
	if p.HalfLife <= 0 {
		p.HalfLife = 4
	}
	if p.LastKnownTimeout <= 0 {
		p.LastKnownTimeout = 10
	}
	if p.SoundExpiry <= 0 {
		p.SoundExpiry = 1.5
	}
	if p.SightGain <= 0 {
		p.SightGain = 40
	}
}

func (p *Planner) applyDefaults() {
	if p.MaxNodes <= 0 {
		p.MaxNodes = 512
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = 16
	}
	if p.SearchesPerTick <= 0 {
		p.SearchesPerTick = 4
	}
}

// Validate reports non-fatal configuration problems: levels that reference a
// missing patrol pattern, incident names without a heat value. The caller
// logs these as warnings; the sim substitutes fallbacks at runtime.
func (t *Tuning) Validate() []string {
	var warns []string

	names := make([]string, 0, len(t.EscalationLevels))
	for name := range t.EscalationLevels {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if name == "None" {
			continue
		}
		pat, ok := t.LevelPatrolPatterns[name]
		if !ok {
			warns = append(warns, fmt.Sprintf("level %s has no patrol pattern; falling back to lowest tier", name))
			continue
		}
		if _, ok := t.PatrolPatterns[pat]; !ok {
			warns = append(warns, fmt.Sprintf("level %s references unknown pattern %q; falling back to lowest tier", name, pat))
		}
	}
	return warns
}

// LevelOrder returns level names sorted by ascending heat threshold, with
// "None" always first. This is the tier ladder the escalation manager walks.
func (t *Tuning) LevelOrder() []string {
	names := make([]string, 0, len(t.EscalationLevels))
	for name := range t.EscalationLevels {
		if name == "None" {
			continue
		}
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := t.EscalationLevels[names[i]], t.EscalationLevels[names[j]]
		if a.HeatThreshold != b.HeatThreshold {
			return a.HeatThreshold < b.HeatThreshold
		}
		return names[i] < names[j]
	})
	return append([]string{"None"}, names...)
}

// Ticks converts a duration in seconds to whole ticks (minimum 1 for any
// positive duration).
func (t *Tuning) Ticks(seconds float64) uint64 {
	if seconds <= 0 {
		return 0
	}
	n := uint64(seconds * float64(t.TickRateHz))
	if n == 0 {
		n = 1
	}
	return n
}

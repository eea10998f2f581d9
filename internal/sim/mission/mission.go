package mission

import (
	"fmt"
	"log"
	"sync/atomic"

	"tacsim.ai/internal/protocol"
	"tacsim.ai/internal/sim/catalogs"
	"tacsim.ai/internal/sim/core"
	"tacsim.ai/internal/sim/encoding"
	"tacsim.ai/internal/sim/escalate"
	"tacsim.ai/internal/sim/percept"
	"tacsim.ai/internal/sim/planner"
	"tacsim.ai/internal/sim/tuning"
)

// Mission is the authoritative simulation. All state is owned by the single
// Run goroutine; everything external talks to it through channels and is
// applied at tick boundaries.
type Mission struct {
	cfg    Config
	tune   tuning.Tuning
	cats   *catalogs.Catalogs
	logger *log.Logger

	eng  *percept.Engine
	esc  *escalate.Manager
	grid *core.OccluderGrid

	agents map[string]*Agent
	order  []string // spawn order; the deterministic processing order

	sounds    []percept.Sound
	planQueue []string

	tick      atomic.Uint64
	paused    bool
	nextAgent uint64

	stop        chan struct{}
	pauseCh     chan bool
	spawnCh     chan SpawnRequest
	incidentCh  chan escalate.Incident
	soundCh     chan percept.Sound
	overrideCh  chan AwarenessOverride
	cancelCh    chan string
	obsJoin     chan ObserverJoinRequest
	obsLeave    chan string
	snapshotReq chan chan SnapshotState

	observers map[string]*observerSession

	tickSink     TickSink
	snapshotSink chan SnapshotState
}

type ObserverJoinRequest struct {
	SessionID string
	Out       chan []byte
	Kinds     []string
}

type observerSession struct {
	out   chan []byte
	kinds map[string]bool
}

func New(cfg Config, tune tuning.Tuning, cats *catalogs.Catalogs, logger *log.Logger) *Mission {
	cfg.applyDefaults()
	m := &Mission{
		cfg:    cfg,
		tune:   tune,
		cats:   cats,
		logger: logger,

		eng: percept.NewEngine(tune.Perception, tune.TickRateHz),
		esc: escalate.NewManager(tune, logger),

		agents:    map[string]*Agent{},
		observers: map[string]*observerSession{},

		stop:        make(chan struct{}),
		pauseCh:     make(chan bool, 4),
		spawnCh:     make(chan SpawnRequest, 64),
		incidentCh:  make(chan escalate.Incident, 256),
		soundCh:     make(chan percept.Sound, 256),
		overrideCh:  make(chan AwarenessOverride, 64),
		cancelCh:    make(chan string, 64),
		obsJoin:     make(chan ObserverJoinRequest, 8),
		obsLeave:    make(chan string, 8),
		snapshotReq: make(chan chan SnapshotState, 4),
	}
	m.grid = generateCity(cfg.Seed, cfg.GridCols, cfg.GridRows, cfg.CellSize)
	return m
}

func (m *Mission) ID() string               { return m.cfg.ID }
func (m *Mission) TickRateHz() int          { return m.tune.TickRateHz }
func (m *Mission) CurrentTick() uint64      { return m.tick.Load() }
func (m *Mission) Grid() *core.OccluderGrid { return m.grid }

// Heat and Level report escalation state. Only safe from the loop goroutine
// or between StepOnce calls.
func (m *Mission) Heat() float64 { return m.esc.Heat() }
func (m *Mission) Level() string { return m.esc.ActiveLevel() }
func (m *Mission) Agents() int   { return len(m.order) }

// Channel accessors for the transport and scenario layers.
func (m *Mission) Pause() chan<- bool                       { return m.pauseCh }
func (m *Mission) Spawns() chan<- SpawnRequest              { return m.spawnCh }
func (m *Mission) Incidents() chan<- escalate.Incident      { return m.incidentCh }
func (m *Mission) Sounds() chan<- percept.Sound             { return m.soundCh }
func (m *Mission) Overrides() chan<- AwarenessOverride      { return m.overrideCh }
func (m *Mission) Cancels() chan<- string                   { return m.cancelCh }
func (m *Mission) ObserverJoin() chan<- ObserverJoinRequest { return m.obsJoin }
func (m *Mission) ObserverLeave() chan<- string             { return m.obsLeave }

// SetTickSink wires the tick log destination. Call before Run.
func (m *Mission) SetTickSink(s TickSink) { m.tickSink = s }

// SetSnapshotSink wires the periodic snapshot destination. Call before Run.
func (m *Mission) SetSnapshotSink(ch chan SnapshotState) { m.snapshotSink = ch }

// CatalogDigests reports the loaded catalog fingerprints for WELCOME.
func (m *Mission) CatalogDigests() protocol.CatalogDigests {
	return protocol.CatalogDigests{
		ActionsDigest: m.cats.Actions.Digest,
		GoalsDigest:   m.cats.Goals.Digest,
	}
}

// GridRLE encodes the occluder grid for observer bootstrap.
func (m *Mission) GridRLE() string {
	cells := make([]uint16, len(m.grid.Solid))
	for i, s := range m.grid.Solid {
		if s {
			cells[i] = 1
		}
	}
	return encoding.EncodeRLE(cells)
}

func (m *Mission) MissionParams() protocol.MissionParams {
	return protocol.MissionParams{
		TickRateHz: m.tune.TickRateHz,
		Seed:       m.cfg.Seed,
		GridCols:   m.cfg.GridCols,
		GridRows:   m.cfg.GridRows,
		CellSize:   m.cfg.CellSize,
	}
}

func (m *Mission) newAgentID(kind string) string {
	m.nextAgent++
	var p string
	switch kind {
	case KindGuard:
		p = "G"
	case KindResponder:
		p = "R"
	case KindIntruder:
		p = "X"
	default:
		p = "C"
	}
	return fmt.Sprintf("%s%04d", p, m.nextAgent)
}

// budget returns the planner search budget from tuning.
func (m *Mission) budget() planner.Budget {
	return planner.Budget{MaxNodes: m.tune.Planner.MaxNodes, MaxDepth: m.tune.Planner.MaxDepth}
}

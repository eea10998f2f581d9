package mission

import (
	"context"
	"time"

	"tacsim.ai/internal/sim/escalate"
	"tacsim.ai/internal/sim/percept"
)

// Run drives the mission clock until ctx is canceled or Stop is called.
// External requests are buffered as they arrive and applied at the next tick
// boundary, in arrival order. While paused the clock does not advance at
// all: no decay, no timers, no planning.
func (m *Mission) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(m.tune.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pending pendingInputs

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.stop:
			return nil
		case p := <-m.pauseCh:
			m.setPaused(p)
		case req := <-m.spawnCh:
			pending.spawns = append(pending.spawns, req)
		case inc := <-m.incidentCh:
			pending.incidents = append(pending.incidents, inc)
		case s := <-m.soundCh:
			pending.sounds = append(pending.sounds, s)
		case ov := <-m.overrideCh:
			pending.overrides = append(pending.overrides, ov)
		case id := <-m.cancelCh:
			pending.cancels = append(pending.cancels, id)
		case req := <-m.obsJoin:
			m.handleObserverJoin(req)
		case id := <-m.obsLeave:
			m.handleObserverLeave(id)
		case resp := <-m.snapshotReq:
			resp <- m.exportState()
		case <-ticker.C:
			if m.paused {
				continue
			}
			m.stepInternal(pending)
			pending.reset()
		}
	}
}

func (m *Mission) Stop() { close(m.stop) }

type pendingInputs struct {
	spawns    []SpawnRequest
	incidents []escalate.Incident
	sounds    []percept.Sound
	overrides []AwarenessOverride
	cancels   []string
}

func (p *pendingInputs) reset() {
	p.spawns = p.spawns[:0]
	p.incidents = p.incidents[:0]
	p.sounds = p.sounds[:0]
	p.overrides = p.overrides[:0]
	p.cancels = p.cancels[:0]
}

func (m *Mission) setPaused(p bool) {
	if m.paused == p {
		return
	}
	m.paused = p
	tick := m.tick.Load()
	if p {
		m.logger.Printf("mission %s: paused at tick %d", m.cfg.ID, tick)
		m.broadcastControl(pausedEvent(tick))
	} else {
		m.logger.Printf("mission %s: resumed at tick %d", m.cfg.ID, tick)
		m.broadcastControl(resumedEvent(tick))
	}
}

// StepOnce advances exactly one tick with the given boundary inputs and
// returns the tick that ran plus its state digest. Scenario playback and
// the determinism tests drive the mission this way, bypassing the wall
// clock and the channel surface.
func (m *Mission) StepOnce(spawns []SpawnRequest, incidents []escalate.Incident, sounds []percept.Sound, overrides []AwarenessOverride, cancels []string) (tick uint64, digest string) {
	tick = m.tick.Load()
	m.stepInternal(pendingInputs{
		spawns:    spawns,
		incidents: incidents,
		sounds:    sounds,
		overrides: overrides,
		cancels:   cancels,
	})
	return tick, m.stateDigest(tick)
}

package mission

import (
	"encoding/json"

	"tacsim.ai/internal/protocol"
)

func (m *Mission) handleObserverJoin(req ObserverJoinRequest) {
	kinds := make(map[string]bool, len(req.Kinds))
	for _, k := range req.Kinds {
		kinds[k] = true
	}
	m.observers[req.SessionID] = &observerSession{out: req.Out, kinds: kinds}

	payload, err := json.Marshal(protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       req.SessionID,
		MissionID:       m.cfg.ID,
		Tick:            m.tick.Load(),
		MissionParams:   m.MissionParams(),
		Catalogs:        m.CatalogDigests(),
		GridRLE:         m.GridRLE(),
	})
	if err == nil {
		sendLatest(req.Out, payload)
	}
	m.logger.Printf("mission %s: observer %s joined (%d filters)", m.cfg.ID, req.SessionID, len(req.Kinds))
}

func (m *Mission) handleObserverLeave(id string) {
	if s, ok := m.observers[id]; ok {
		delete(m.observers, id)
		close(s.out)
		m.logger.Printf("mission %s: observer %s left", m.cfg.ID, id)
	}
}

func (m *Mission) broadcastTick(tick uint64, digest string, events []protocol.Event) {
	if len(m.observers) == 0 {
		return
	}
	msg := protocol.TickMsg{
		Type:            protocol.TypeTick,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		Digest:          digest,
		Heat:            m.esc.Heat(),
		Level:           m.esc.ActiveLevel(),
	}
	for _, s := range m.observers {
		msg.Events = filterEvents(events, s.kinds)
		payload, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		sendLatest(s.out, payload)
	}
}

// broadcastControl pushes a single out-of-band event (pause, resume) without
// advancing the tick.
func (m *Mission) broadcastControl(ev protocol.Event) {
	msg := protocol.TickMsg{
		Type:            protocol.TypeTick,
		ProtocolVersion: protocol.Version,
		Tick:            m.tick.Load(),
		Heat:            m.esc.Heat(),
		Level:           m.esc.ActiveLevel(),
		Events:          []protocol.Event{ev},
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	for _, s := range m.observers {
		sendLatest(s.out, payload)
	}
}

func pausedEvent(tick uint64) protocol.Event  { return protocol.Paused(tick) }
func resumedEvent(tick uint64) protocol.Event { return protocol.Resumed(tick) }

func filterEvents(events []protocol.Event, kinds map[string]bool) []protocol.Event {
	if len(kinds) == 0 {
		return events
	}
	var out []protocol.Event
	for _, e := range events {
		if t, _ := e["type"].(string); kinds[t] {
			out = append(out, e)
		}
	}
	return out
}

// sendLatest delivers without ever blocking the sim loop: when the observer
// falls behind, its oldest queued frame is dropped to make room.
func sendLatest(ch chan []byte, payload []byte) {
	for {
		select {
		case ch <- payload:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

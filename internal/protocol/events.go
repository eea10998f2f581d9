package protocol

// Event is one simulation occurrence on the observer feed. Every event has
// "t" (tick) and "type"; the rest depends on the type.
type Event map[string]any

// Event type names.
const (
	EvAwarenessChanged  = "AWARENESS_LEVEL_CHANGED"
	EvPlanAssigned      = "PLAN_ASSIGNED"
	EvActionStarted     = "ACTION_STARTED"
	EvActionCompleted   = "ACTION_COMPLETED"
	EvActionFailed      = "ACTION_FAILED"
	EvEscalationChanged = "ESCALATION_LEVEL_CHANGED"
	EvSpawnRequested    = "RESPONDER_SPAWN_REQUESTED"
	EvAgentSpawned      = "AGENT_SPAWNED"
	EvAgentRemoved      = "AGENT_REMOVED"
	EvIncident          = "INCIDENT_REPORTED"
	EvSound             = "SOUND_EMITTED"
	EvPaused            = "MISSION_PAUSED"
	EvResumed           = "MISSION_RESUMED"
)

func AwarenessChanged(tick uint64, agent, old, now string, suspicion float64) Event {
	return Event{"t": tick, "type": EvAwarenessChanged, "agent": agent, "old": old, "new": now, "suspicion": suspicion}
}

func PlanAssigned(tick uint64, agent, goal string, actions []string, cost float64) Event {
	return Event{"t": tick, "type": EvPlanAssigned, "agent": agent, "goal": goal, "actions": actions, "cost": cost}
}

func ActionStarted(tick uint64, agent, action string) Event {
	return Event{"t": tick, "type": EvActionStarted, "agent": agent, "action": action}
}

func ActionCompleted(tick uint64, agent, action string) Event {
	return Event{"t": tick, "type": EvActionCompleted, "agent": agent, "action": action}
}

func ActionFailed(tick uint64, agent, action string) Event {
	return Event{"t": tick, "type": EvActionFailed, "agent": agent, "action": action}
}

func EscalationChanged(tick uint64, old, now string, heat float64) Event {
	return Event{"t": tick, "type": EvEscalationChanged, "old": old, "new": now, "heat": heat}
}

func SpawnRequested(tick uint64, level string, count int, pos [2]float64, delayTicks uint64) Event {
	return Event{"t": tick, "type": EvSpawnRequested, "level": level, "count": count, "pos": pos, "delay_ticks": delayTicks}
}

func AgentSpawned(tick uint64, agent, kind, level string, pos [2]float64) Event {
	return Event{"t": tick, "type": EvAgentSpawned, "agent": agent, "kind": kind, "level": level, "pos": pos}
}

func AgentRemoved(tick uint64, agent, reason string) Event {
	return Event{"t": tick, "type": EvAgentRemoved, "agent": agent, "reason": reason}
}

func IncidentReported(tick uint64, kind string, pos [2]float64, source string) Event {
	return Event{"t": tick, "type": EvIncident, "incident": kind, "pos": pos, "source": source}
}

func SoundEmitted(tick uint64, pos [2]float64, intensity, radius float64) Event {
	return Event{"t": tick, "type": EvSound, "pos": pos, "intensity": intensity, "radius": radius}
}

func Paused(tick uint64) Event  { return Event{"t": tick, "type": EvPaused} }
func Resumed(tick uint64) Event { return Event{"t": tick, "type": EvResumed} }

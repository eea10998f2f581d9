package protocol

import "encoding/json"

const Version = "1.0"

// Message types on the observer feed.
const (
	TypeSubscribe = "SUBSCRIBE"
	TypeWelcome   = "WELCOME"
	TypeTick      = "TICK"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// SUBSCRIBE (observer -> server)
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	// EventKinds filters the feed; empty means everything.
	EventKinds []string `json:"event_kinds,omitempty"`
}

// WELCOME (server -> observer)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	MissionID       string         `json:"mission_id"`
	Tick            uint64         `json:"tick"`
	MissionParams   MissionParams  `json:"mission_params"`
	Catalogs        CatalogDigests `json:"catalogs"`
	// GridRLE is the occluder grid as run-length encoded cell ids
	// (0 open, 1 solid), row-major.
	GridRLE string `json:"grid_rle,omitempty"`
}

type MissionParams struct {
	TickRateHz int     `json:"tick_rate_hz"`
	Seed       int64   `json:"seed"`
	GridCols   int     `json:"grid_cols"`
	GridRows   int     `json:"grid_rows"`
	CellSize   float64 `json:"cell_size"`
}

type CatalogDigests struct {
	ActionsDigest string `json:"actions_digest"`
	GoalsDigest   string `json:"goals_digest"`
	TuningDigest  string `json:"tuning_digest,omitempty"`
}

// TICK (server -> observer): one batch per simulation tick.
type TickMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Tick            uint64  `json:"tick"`
	Digest          string  `json:"digest"`
	Heat            float64 `json:"heat"`
	Level           string  `json:"level"`
	Events          []Event `json:"events,omitempty"`
}

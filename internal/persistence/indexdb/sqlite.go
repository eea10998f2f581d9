package indexdb

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"tacsim.ai/internal/sim/catalogs"
	"tacsim.ai/internal/sim/mission"
	"tacsim.ai/internal/sim/tuning"
)

// SQLiteIndex is a queryable secondary index over the tick log. Writes go
// through a single goroutine with batched transactions so the sim loop never
// blocks on disk; the JSONL logs stay the source of truth.
type SQLiteIndex struct {
	db *sqlx.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqSnapshot
)

type req struct {
	kind reqKind

	tick     mission.TickLogEntry
	snapshot SnapshotRow
}

type SnapshotRow struct {
	Tick   uint64 `db:"tick"`
	Path   string `db:"path"`
	Seed   int64  `db:"seed"`
	Agents int    `db:"agents"`
}

type EventRow struct {
	Tick  uint64 `db:"tick"`
	Seq   int    `db:"seq"`
	Type  string `db:"type"`
	Agent string `db:"agent"`
	Raw   string `db:"raw_json"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Sized for bursty ticks (a firefight emits many events) without
		// stalling the sim.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sqlx.DB) error {
	// WAL is much faster for append-style workloads.
	// NORMAL is a decent durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sqlx.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			digest TEXT NOT NULL,
			heat REAL NOT NULL,
			level TEXT NOT NULL,
			events INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			type TEXT NOT NULL,
			agent TEXT NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_agent_tick ON events(agent, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_events_type_tick ON events(type, tick);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			seed INTEGER NOT NULL,
			agents INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) WriteTick(entry mission.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
	}
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, st mission.SnapshotState) {
	if s == nil || s.closed.Load() {
		return
	}
	r := SnapshotRow{
		Tick:   st.Tick,
		Path:   path,
		Seed:   st.Seed,
		Agents: len(st.Agents),
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
	}
}

// UpsertCatalogs stores the loaded catalog JSON plus the applied tuning so a
// mission's inputs can be reconstructed from the index alone.
func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if configDir != "" {
		if b, err := os.ReadFile(filepath.Join(configDir, "actions.json")); err == nil {
			rows = append(rows, kv{name: "actions", digest: cats.Actions.Digest, json: b})
		}
		if b, err := os.ReadFile(filepath.Join(configDir, "goals.json")); err == nil {
			rows = append(rows, kv{name: "goals", digest: cats.Goals.Digest, json: b})
		}
	}
	{
		// Tuning: store the values we actually apply (canonical JSON).
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.name == "" || r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LatestSnapshot returns the newest indexed snapshot row.
func (s *SQLiteIndex) LatestSnapshot() (SnapshotRow, error) {
	var r SnapshotRow
	err := s.db.Get(&r, `SELECT tick,path,seed,agents FROM snapshots ORDER BY tick DESC LIMIT 1`)
	return r, err
}

// EventsForAgent returns an agent's events over a tick range, oldest first.
func (s *SQLiteIndex) EventsForAgent(agent string, from, to uint64) ([]EventRow, error) {
	var rows []EventRow
	err := s.db.Select(&rows,
		`SELECT tick,seq,type,agent,raw_json FROM events WHERE agent=? AND tick BETWEEN ? AND ? ORDER BY tick,seq`,
		agent, int64(from), int64(to))
	return rows, err
}

// EventsByType returns events of one type over a tick range, oldest first.
func (s *SQLiteIndex) EventsByType(kind string, from, to uint64) ([]EventRow, error) {
	var rows []EventRow
	err := s.db.Select(&rows,
		`SELECT tick,seq,type,agent,raw_json FROM events WHERE type=? AND tick BETWEEN ? AND ? ORDER BY tick,seq`,
		kind, int64(from), int64(to))
	return rows, err
}

func (s *SQLiteIndex) loop() {
	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(tick,digest,heat,level,events,raw_json) VALUES(?,?,?,?,?,?)`)
	insertEvent, _ := s.db.Prepare(`INSERT OR REPLACE INTO events(tick,seq,type,agent,raw_json) VALUES(?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,path,seed,agents) VALUES(?,?,?,?)`)
	defer func() {
		if insertTick != nil {
			_ = insertTick.Close()
		}
		if insertEvent != nil {
			_ = insertEvent.Close()
		}
		if insertSnapshot != nil {
			_ = insertSnapshot.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.DB.Begin()
		if err != nil {
			// If we can't start a tx, we can't do much; sleep a bit.
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			b, _ := json.Marshal(r.tick)
			if insertTick != nil {
				if _, err := tx.Stmt(insertTick).Exec(
					int64(r.tick.Tick),
					r.tick.Digest,
					r.tick.Heat,
					r.tick.Level,
					len(r.tick.Events),
					string(b),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
			for i, ev := range r.tick.Events {
				if insertEvent == nil {
					break
				}
				kind, _ := ev["type"].(string)
				agent, _ := ev["agent"].(string)
				raw, _ := json.Marshal(ev)
				if _, err := tx.Stmt(insertEvent).Exec(int64(r.tick.Tick), i, kind, agent, string(raw)); err != nil {
					rollback()
					break
				}
				opCount++
			}

		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot != nil {
				if _, err := tx.Stmt(insertSnapshot).Exec(
					int64(sn.Tick),
					sn.Path,
					sn.Seed,
					sn.Agents,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}

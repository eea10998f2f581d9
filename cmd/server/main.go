package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"tacsim.ai/internal/persistence/indexdb"
	persistlog "tacsim.ai/internal/persistence/log"
	"tacsim.ai/internal/persistence/snapshot"
	"tacsim.ai/internal/sim/catalogs"
	"tacsim.ai/internal/sim/core"
	"tacsim.ai/internal/sim/escalate"
	"tacsim.ai/internal/sim/mission"
	"tacsim.ai/internal/sim/percept"
	"tacsim.ai/internal/sim/tuning"
	"tacsim.ai/internal/transport/observer"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		missionID  = flag.String("mission", "mission_1", "mission id")
		seed       = flag.Int64("seed", 1337, "city seed (used only when starting a fresh mission)")
		configDir  = flag.String("configs", "./configs", "config directory")
		schemaDir  = flag.String("schemas", "./schemas", "json schema directory (empty to skip validation)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to urban.yaml (default: <configs>/urban.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index")

		snapEvery  = flag.Int("snapshot_every", 3000, "snapshot interval in ticks (0 disables)")
		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir, strings.TrimSpace(*schemaDir))
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	missionDir := filepath.Join(*dataDir, "missions", *missionID)
	_ = os.MkdirAll(missionDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "urban.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", tp)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	// Read-model index; does not affect sim determinism.
	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(missionDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index: upsert catalogs: %v", err)
		}
	}

	// Fresh mission or resume.
	var m *mission.Mission
	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(missionDir)
	}
	if snapshotToLoad != "" {
		st, err := snapshot.Read(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if st.MissionID != *missionID {
			logger.Fatalf("snapshot mission id mismatch: flag=%s snap=%s", *missionID, st.MissionID)
		}
		m, err = mission.Restore(st, tune, cats, logger)
		if err != nil {
			logger.Fatalf("restore: %v", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(snapshotToLoad), m.CurrentTick())
	} else {
		m = mission.New(mission.Config{
			ID:                 *missionID,
			Seed:               *seed,
			SnapshotEveryTicks: *snapEvery,
		}, tune, cats, logger)
	}

	ctx, cancel := signalContext()
	defer cancel()

	tickLog := persistlog.NewTickLogger(missionDir)
	defer tickLog.Close()
	m.SetTickSink(multiTickSink{a: tickLog, b: idx})

	// Snapshot writer.
	snapCh := make(chan mission.SnapshotState, 2)
	m.SetSnapshotSink(snapCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case st := <-snapCh:
				path := filepath.Join(missionDir, "snapshots", fmt.Sprintf("%d.snap.zst", st.Tick))
				if err := snapshot.Write(path, st); err != nil {
					logger.Printf("snapshot write: %v", err)
					continue
				}
				if idx != nil {
					idx.RecordSnapshot(path, st)
				}
			}
		}
	}()

	go func() {
		if err := m.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("mission stopped: %v", err)
		}
	}()

	obs := observer.NewServer(m, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/bootstrap", obs.BootstrapHandler())
	mux.HandleFunc("/v1/observe", obs.WSHandler())
	registerControlHandlers(mux, m)

	logger.Printf("mission %s listening on %s (seed=%d, %d Hz)", *missionID, *addr, *seed, m.TickRateHz())
	srv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("http: %v", err)
	}
}

// multiTickSink fans a tick entry to the JSONL log and the sqlite index.
type multiTickSink struct {
	a *persistlog.TickLogger
	b *indexdb.SQLiteIndex
}

func (s multiTickSink) WriteTick(e mission.TickLogEntry) error {
	err := s.a.WriteTick(e)
	if s.b != nil {
		_ = s.b.WriteTick(e)
	}
	return err
}

// registerControlHandlers exposes the mission's input channels over local
// HTTP for operators and scenario drivers.
func registerControlHandlers(mux *http.ServeMux, m *mission.Mission) {
	post := func(path string, h func(rw http.ResponseWriter, r *http.Request)) {
		mux.HandleFunc(path, func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			h(rw, r)
		})
	}

	post("/v1/pause", func(rw http.ResponseWriter, r *http.Request) {
		var body struct {
			Paused bool `json:"paused"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(rw, err.Error(), http.StatusBadRequest)
			return
		}
		m.Pause() <- body.Paused
		rw.WriteHeader(http.StatusAccepted)
	})

	post("/v1/spawn", func(rw http.ResponseWriter, r *http.Request) {
		var body struct {
			Kind      string       `json:"kind"`
			Pos       [2]float64   `json:"pos"`
			Waypoints [][2]float64 `json:"waypoints,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(rw, err.Error(), http.StatusBadRequest)
			return
		}
		req := mission.SpawnRequest{Kind: body.Kind, Pos: core.Vec2{X: body.Pos[0], Y: body.Pos[1]}}
		for _, w := range body.Waypoints {
			req.Waypoints = append(req.Waypoints, core.Vec2{X: w[0], Y: w[1]})
		}
		m.Spawns() <- req
		rw.WriteHeader(http.StatusAccepted)
	})

	post("/v1/incident", func(rw http.ResponseWriter, r *http.Request) {
		var body struct {
			Type   string     `json:"type"`
			Pos    [2]float64 `json:"pos"`
			Source string     `json:"source,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(rw, err.Error(), http.StatusBadRequest)
			return
		}
		m.Incidents() <- escalate.Incident{Type: body.Type, Pos: core.Vec2{X: body.Pos[0], Y: body.Pos[1]}, Source: body.Source}
		rw.WriteHeader(http.StatusAccepted)
	})

	post("/v1/sound", func(rw http.ResponseWriter, r *http.Request) {
		var body struct {
			Pos       [2]float64 `json:"pos"`
			Intensity float64    `json:"intensity"`
			Radius    float64    `json:"radius"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(rw, err.Error(), http.StatusBadRequest)
			return
		}
		m.Sounds() <- percept.Sound{Pos: core.Vec2{X: body.Pos[0], Y: body.Pos[1]}, Intensity: body.Intensity, Radius: body.Radius}
		rw.WriteHeader(http.StatusAccepted)
	})

	post("/v1/override", func(rw http.ResponseWriter, r *http.Request) {
		var body struct {
			Agent  string      `json:"agent"`
			Level  string      `json:"level"`
			Source *[2]float64 `json:"source,omitempty"`
			Target string      `json:"target,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(rw, err.Error(), http.StatusBadRequest)
			return
		}
		lvl, ok := percept.ParseLevel(body.Level)
		if !ok {
			http.Error(rw, fmt.Sprintf("unknown awareness level %q", body.Level), http.StatusBadRequest)
			return
		}
		ov := mission.AwarenessOverride{Agent: body.Agent, Level: lvl, Target: body.Target}
		if body.Source != nil {
			ov.Source = &core.Vec2{X: body.Source[0], Y: body.Source[1]}
		}
		m.Overrides() <- ov
		rw.WriteHeader(http.StatusAccepted)
	})

	post("/v1/cancel", func(rw http.ResponseWriter, r *http.Request) {
		var body struct {
			Agent string `json:"agent"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(rw, err.Error(), http.StatusBadRequest)
			return
		}
		m.Cancels() <- body.Agent
		rw.WriteHeader(http.StatusAccepted)
	})
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func latestSnapshot(missionDir string) string {
	dir := filepath.Join(missionDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			best = filepath.Join(dir, name)
			bestTick = tick
		}
	}
	return best
}

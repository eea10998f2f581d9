package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"tacsim.ai/internal/sim/catalogs"
	"tacsim.ai/internal/sim/core"
	"tacsim.ai/internal/sim/escalate"
	"tacsim.ai/internal/sim/mission"
	"tacsim.ai/internal/sim/percept"
	"tacsim.ai/internal/sim/tuning"
)

// Scenario is a scripted run: inputs keyed by tick, stepped off the wall
// clock. Two runs of the same scenario with the same seed must print the
// same digests.
type Scenario struct {
	ID    string `yaml:"id"`
	Seed  int64  `yaml:"seed"`
	Ticks uint64 `yaml:"ticks"`

	Spawns []struct {
		Tick      uint64       `yaml:"tick"`
		Kind      string       `yaml:"kind"`
		Pos       [2]float64   `yaml:"pos"`
		Waypoints [][2]float64 `yaml:"waypoints"`
	} `yaml:"spawns"`

	Incidents []struct {
		Tick   uint64     `yaml:"tick"`
		Type   string     `yaml:"type"`
		Pos    [2]float64 `yaml:"pos"`
		Source string     `yaml:"source"`
	} `yaml:"incidents"`

	Sounds []struct {
		Tick      uint64     `yaml:"tick"`
		Pos       [2]float64 `yaml:"pos"`
		Intensity float64    `yaml:"intensity"`
		Radius    float64    `yaml:"radius"`
	} `yaml:"sounds"`
}

func main() {
	var (
		path       = flag.String("scenario", "", "scenario yaml path (required)")
		configDir  = flag.String("configs", "./configs", "config directory")
		schemaDir  = flag.String("schemas", "./schemas", "json schema directory (empty to skip validation)")
		tuningPath = flag.String("tuning", "", "path to urban.yaml (default: <configs>/urban.yaml)")
		every      = flag.Uint64("print_every", 100, "print a digest every N ticks")
	)
	flag.Parse()
	if *path == "" {
		flag.Usage()
		os.Exit(2)
	}

	logger := log.New(os.Stderr, "[scenario] ", log.LstdFlags)

	b, err := os.ReadFile(*path)
	if err != nil {
		logger.Fatalf("read scenario: %v", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(b, &sc); err != nil {
		logger.Fatalf("parse scenario: %v", err)
	}
	if sc.ID == "" {
		sc.ID = strings.TrimSuffix(filepath.Base(*path), filepath.Ext(*path))
	}
	if sc.Ticks == 0 {
		sc.Ticks = 1000
	}

	cats, err := catalogs.Load(*configDir, strings.TrimSpace(*schemaDir))
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "urban.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if os.IsNotExist(err) {
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	m := mission.New(mission.Config{ID: sc.ID, Seed: sc.Seed}, tune, cats, logger)

	for t := uint64(0); t < sc.Ticks; t++ {
		var (
			spawns    []mission.SpawnRequest
			incidents []escalate.Incident
			sounds    []percept.Sound
		)
		for _, s := range sc.Spawns {
			if s.Tick != t {
				continue
			}
			req := mission.SpawnRequest{Kind: s.Kind, Pos: core.Vec2{X: s.Pos[0], Y: s.Pos[1]}}
			for _, w := range s.Waypoints {
				req.Waypoints = append(req.Waypoints, core.Vec2{X: w[0], Y: w[1]})
			}
			spawns = append(spawns, req)
		}
		for _, in := range sc.Incidents {
			if in.Tick == t {
				incidents = append(incidents, escalate.Incident{Type: in.Type, Pos: core.Vec2{X: in.Pos[0], Y: in.Pos[1]}, Source: in.Source})
			}
		}
		for _, s := range sc.Sounds {
			if s.Tick == t {
				sounds = append(sounds, percept.Sound{Pos: core.Vec2{X: s.Pos[0], Y: s.Pos[1]}, Intensity: s.Intensity, Radius: s.Radius})
			}
		}

		tick, digest := m.StepOnce(spawns, incidents, sounds, nil, nil)
		if *every > 0 && tick%*every == 0 {
			fmt.Printf("tick=%d digest=%s heat=%.2f level=%s agents=%d\n", tick, digest, m.Heat(), m.Level(), m.Agents())
		}
		if tick+1 == sc.Ticks {
			fmt.Printf("final tick=%d digest=%s\n", tick, digest)
		}
	}
}

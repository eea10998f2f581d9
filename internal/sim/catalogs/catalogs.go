package catalogs

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"tacsim.ai/internal/sim/planner"
)

type Catalogs struct {
	Actions ActionCatalog
	Goals   GoalCatalog
}

// ActionCatalog is the immutable action library plus its source digest.
// Library order is file order; that order is part of the planner's
// determinism contract, so the file is the single source of truth for it.
type ActionCatalog struct {
	Defs    []ActionDef
	Library *planner.Library
	Digest  string
}

type ActionDef struct {
	Name          string        `json:"name"`
	Cost          float64       `json:"cost"`
	Preconditions planner.Facts `json:"preconditions,omitempty"`
	Effects       planner.Facts `json:"effects,omitempty"`
	Behavior      string        `json:"behavior"`
}

type GoalCatalog struct {
	ByName map[string]planner.Goal
	Order  []string
	Digest string
}

type GoalDef struct {
	Name     string        `json:"name"`
	Priority float64       `json:"priority"`
	Desired  planner.Facts `json:"desired"`
}

// Load reads actions.json and goals.json from configDir. When schemaDir is
// non-empty, each file is validated against its JSON Schema before decoding
// so catalog mistakes fail at startup with a precise path, not mid-mission.
func Load(configDir, schemaDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadActions(filepath.Join(configDir, "actions.json"), schemaDir, &c.Actions); err != nil {
		return nil, err
	}
	if err := loadGoals(filepath.Join(configDir, "goals.json"), schemaDir, &c.Goals); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func validateSchema(raw []byte, schemaDir, name string) error {
	if schemaDir == "" {
		return nil
	}
	s, err := jsonschema.Compile(filepath.Join(schemaDir, name))
	if err != nil {
		return fmt.Errorf("schema %s: %w", name, err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return s.Validate(v)
}

func loadActions(path, schemaDir string, out *ActionCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	if err := validateSchema(raw, schemaDir, "actions.schema.json"); err != nil {
		return fmt.Errorf("actions.json: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out.Defs); err != nil {
		return fmt.Errorf("actions.json: %w", err)
	}

	actions := make([]*planner.Action, 0, len(out.Defs))
	for _, d := range out.Defs {
		if d.Behavior == "" {
			return fmt.Errorf("actions.json: action %q missing behavior", d.Name)
		}
		actions = append(actions, &planner.Action{
			Name:     d.Name,
			Cost:     d.Cost,
			Pre:      d.Preconditions,
			Effects:  d.Effects,
			Behavior: d.Behavior,
		})
	}
	lib, err := planner.NewLibrary(actions)
	if err != nil {
		return fmt.Errorf("actions.json: %w", err)
	}
	out.Library = lib
	return nil
}

func loadGoals(path, schemaDir string, out *GoalCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	if err := validateSchema(raw, schemaDir, "goals.schema.json"); err != nil {
		return fmt.Errorf("goals.json: %w", err)
	}

	var defs []GoalDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("goals.json: %w", err)
	}
	out.ByName = make(map[string]planner.Goal, len(defs))
	for _, d := range defs {
		if d.Name == "" {
			return fmt.Errorf("goals.json: empty name")
		}
		if _, dup := out.ByName[d.Name]; dup {
			return fmt.Errorf("goals.json: duplicate goal %q", d.Name)
		}
		if len(d.Desired) == 0 {
			return fmt.Errorf("goals.json: goal %q has no desired facts", d.Name)
		}
		out.ByName[d.Name] = planner.Goal{Name: d.Name, Priority: d.Priority, Desired: d.Desired}
		out.Order = append(out.Order, d.Name)
	}
	return nil
}

package planner

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Fact is a predicate name in an agent's world model, e.g. "has_target".
type Fact string

// Kind discriminates the value a fact maps to.
type Kind uint8

const (
	KindBool Kind = iota
	KindInt
	KindTag
)

// Value is a fact's value: a boolean, an integer, or an enumerated tag.
// Values are compared by exact equality; there is no coercion between kinds.
type Value struct {
	Kind Kind
	B    bool
	I    int64
	T    string
}

func Bool(b bool) Value  { return Value{Kind: KindBool, B: b} }
func Int(i int64) Value  { return Value{Kind: KindInt, I: i} }
func Tag(t string) Value { return Value{Kind: KindTag, T: t} }

func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		return strconv.FormatBool(v.B)
	case KindInt:
		return strconv.FormatInt(v.I, 10)
	default:
		return v.T
	}
}

// UnmarshalJSON accepts the natural JSON forms: true/false, whole numbers,
// and strings. Anything else is a catalog error.
func (v *Value) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case bool:
		*v = Bool(x)
	case float64:
		if x != float64(int64(x)) {
			return fmt.Errorf("fact value %v: not a whole number", x)
		}
		*v = Int(int64(x))
	case string:
		*v = Tag(x)
	default:
		return fmt.Errorf("fact value %v: unsupported type", raw)
	}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindBool:
		return json.Marshal(v.B)
	case KindInt:
		return json.Marshal(v.I)
	default:
		return json.Marshal(v.T)
	}
}

// Facts is a fact → value mapping used for preconditions, effects and goals.
type Facts map[Fact]Value

// Projection is an immutable view of an agent's facts for the duration of
// one planning call. Successor states produced during search are fresh
// copies; the original is never mutated.
type Projection struct {
	facts Facts
}

func NewProjection(facts Facts) Projection {
	cp := make(Facts, len(facts))
	for k, v := range facts {
		cp[k] = v
	}
	return Projection{facts: cp}
}

func (p Projection) Get(f Fact) (Value, bool) {
	v, ok := p.facts[f]
	return v, ok
}

// Holds reports whether fact f currently has value want. An absent boolean
// fact reads as false, matching how agents seed sparse projections.
func (p Projection) Holds(f Fact, want Value) bool {
	v, ok := p.facts[f]
	if !ok {
		return want.Kind == KindBool && !want.B
	}
	return v == want
}

// HoldsAll reports whether every entry in req holds.
func (p Projection) HoldsAll(req Facts) bool {
	for f, want := range req {
		if !p.Holds(f, want) {
			return false
		}
	}
	return true
}

// Mismatches counts the entries of desired that do not hold.
func (p Projection) Mismatches(desired Facts) int {
	n := 0
	for f, want := range desired {
		if !p.Holds(f, want) {
			n++
		}
	}
	return n
}

// With returns a new projection with effects applied. The receiver is
// unchanged.
func (p Projection) With(effects Facts) Projection {
	cp := make(Facts, len(p.facts)+len(effects))
	for k, v := range p.facts {
		cp[k] = v
	}
	for k, v := range effects {
		cp[k] = v
	}
	return Projection{facts: cp}
}

// Changes reports whether applying effects would alter the projection.
// Actions whose effects are all no-ops are never worth expanding.
func (p Projection) Changes(effects Facts) bool {
	for f, v := range effects {
		if !p.Holds(f, v) {
			return true
		}
	}
	return false
}

// Key returns a canonical string for closed-set deduplication. Facts are
// emitted in sorted order so equal states always produce equal keys.
func (p Projection) Key() string {
	keys := make([]string, 0, len(p.facts))
	for f := range p.facts {
		keys = append(keys, string(f))
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		v := p.facts[Fact(k)]
		// Absent and false booleans are the same state; skip the default.
		if v.Kind == KindBool && !v.B {
			continue
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(v.String())
		sb.WriteByte(';')
	}
	return sb.String()
}

// Package strategy maps an index layout and an offer type to the search
// engine indices that are written to and read from.
package strategy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cultuurnet/offerbench/pkg/offer"
)

// Layout is the index topology.
type Layout int

const (
	// Single stores events and places in one combined index and tags each
	// document with a "type" field.
	Single Layout = iota + 1

	// Multi stores each offer type in its own index.
	Multi
)

// Layouts lists every layout in benchmark order.
var Layouts = []Layout{Single, Multi}

// ErrInvalidLayout is returned when a string does not name a layout.
var ErrInvalidLayout = errors.New("invalid layout")

// TypeField is the field injected into documents under the Single layout.
const TypeField = "type"

// ParseLayout parses "single" or "multi".
func ParseLayout(s string) (Layout, error) {
	switch strings.TrimSpace(s) {
	case "single":
		return Single, nil
	case "multi":
		return Multi, nil
	default:
		return 0, fmt.Errorf("%w: %q (use \"single\" or \"multi\")", ErrInvalidLayout, s)
	}
}

func (l Layout) String() string {
	switch l {
	case Single:
		return "single"
	case Multi:
		return "multi"
	default:
		return fmt.Sprintf("layout(%d)", int(l))
	}
}

// IndexNames are the engine index names used by both layouts.
type IndexNames struct {
	Combined string
	Events   string
	Places   string
}

// DefaultIndexNames returns the index names used by the original tooling.
func DefaultIndexNames() IndexNames {
	return IndexNames{
		Combined: "offers",
		Events:   "events",
		Places:   "places",
	}
}

// Target is one or more index names read as a single logical index.
type Target []string

// String joins the index names the way a multi-index search path does.
func (t Target) String() string {
	return strings.Join(t, ",")
}

// IsUnion reports whether the target spans more than one index.
func (t Target) IsUnion() bool {
	return len(t) > 1
}

// Transform rewrites a document before it is written. It never mutates its
// argument.
type Transform func(doc map[string]any) map[string]any

// Strategy resolves write and read targets. The zero value is not usable; use
// New.
type Strategy struct {
	names IndexNames
}

// New creates a Strategy for the given index names. Empty names fall back to
// the defaults.
func New(names IndexNames) *Strategy {
	def := DefaultIndexNames()
	if names.Combined == "" {
		names.Combined = def.Combined
	}
	if names.Events == "" {
		names.Events = def.Events
	}
	if names.Places == "" {
		names.Places = def.Places
	}
	return &Strategy{names: names}
}

// Names returns the index names in use.
func (s *Strategy) Names() IndexNames {
	return s.names
}

// ResolveWrite returns the index an offer of type t is written to and the
// transform applied to its document first.
func (s *Strategy) ResolveWrite(layout Layout, t offer.Type) (string, Transform, error) {
	if _, err := offer.ParseType(string(t)); err != nil {
		return "", nil, err
	}

	switch layout {
	case Single:
		return s.names.Combined, injectType(t), nil
	case Multi:
		return s.typeIndex(t), identity, nil
	default:
		return "", nil, fmt.Errorf("%w: %s", ErrInvalidLayout, layout)
	}
}

// ResolveRead returns the indices a search reads from. Under Single a type
// filter does not change the target; it becomes a query filter instead.
func (s *Strategy) ResolveRead(layout Layout, filter *offer.Type) (Target, error) {
	switch layout {
	case Single:
		return Target{s.names.Combined}, nil
	case Multi:
		if filter == nil {
			return Target{s.names.Events, s.names.Places}, nil
		}
		if _, err := offer.ParseType(string(*filter)); err != nil {
			return nil, err
		}
		return Target{s.typeIndex(*filter)}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidLayout, layout)
	}
}

// TypeOfIndex reports which offer type a per-type index holds.
func (s *Strategy) TypeOfIndex(index string) (offer.Type, bool) {
	switch index {
	case s.names.Events:
		return offer.Event, true
	case s.names.Places:
		return offer.Place, true
	default:
		return "", false
	}
}

func (s *Strategy) typeIndex(t offer.Type) string {
	if t == offer.Event {
		return s.names.Events
	}
	return s.names.Places
}

func identity(doc map[string]any) map[string]any {
	return doc
}

func injectType(t offer.Type) Transform {
	return func(doc map[string]any) map[string]any {
		out := make(map[string]any, len(doc)+1)
		for k, v := range doc {
			out[k] = v
		}
		out[TypeField] = string(t)
		return out
	}
}

package engine

import (
	"sync/atomic"
	"time"

	"github.com/flightops/ruled/pkg/flight"
	"github.com/flightops/ruled/pkg/rules"
)

// Evaluator applies a compiled rule.Set against one flight at a time
// (spec §4.4 entry point `process(flight, now)`), in rule-declaration
// order, dispatching actions on every match. The active set lives
// behind an atomic pointer so the admin API's reload handler can swap
// it from another goroutine without the driver loop ever taking a lock.
type Evaluator struct {
	set        atomic.Pointer[rules.Set]
	store      *flight.Store
	dispatcher *Dispatcher
	location   *time.Location
}

// NewEvaluator builds an Evaluator. location is the time zone
// min_time/max_time convert stream timestamps into; nil defaults to UTC
// (spec §9 open question: "accept an explicit time-zone configuration,
// default to UTC").
func NewEvaluator(set *rules.Set, store *flight.Store, dispatcher *Dispatcher, location *time.Location) *Evaluator {
	if location == nil {
		location = time.UTC
	}
	e := &Evaluator{store: store, dispatcher: dispatcher, location: location}
	e.set.Store(set)
	return e
}

// Process runs every rule against f in declared order (spec §4.4). Rules
// fire independently: one rule's match has no bearing on whether the
// next rule in the set is evaluated.
func (e *Evaluator) Process(f *flight.Flight, now float64) {
	set := e.set.Load()
	ctx := &rules.EvalContext{
		Flight:   f,
		Store:    e.store,
		Now:      now,
		Location: e.location,
	}

	for _, r := range set.Rules {
		matches := r.Evaluate(ctx)
		for _, m := range matches {
			e.dispatcher.Dispatch(r, f, m.Partner, now)
		}
	}
}

// RuleSet returns the currently active rule set.
func (e *Evaluator) RuleSet() *rules.Set {
	return e.set.Load()
}

// Swap atomically replaces the active rule set. Callers must first
// confirm newSet.NumRules() matches the flight.Store's NumRules(): a
// mismatch would index out of bounds into every tracked flight's
// cooldown vector.
func (e *Evaluator) Swap(newSet *rules.Set) {
	e.set.Store(newSet)
}

package engine

import (
	"bytes"
	"log"
	"testing"

	"github.com/flightops/ruled/pkg/flight"
	"github.com/flightops/ruled/pkg/report"
	"github.com/flightops/ruled/pkg/rules"
)

func TestEvaluatorProcessRunsRulesInDeclarationOrder(t *testing.T) {
	var fired []string
	d := NewDispatcher(nil, log.New(bytes.NewBuffer(nil), "", 0), nil, nil, false)
	d.Register("mark", func(f flight.View, other *flight.View) {})
	d.SetObserver(func(ev Event) { fired = append(fired, ev.RuleName) })

	store := flight.NewStore(testNoRegions{}, 2, 600)
	set := &rules.Set{Rules: []*rules.Rule{
		{Name: "second-declared", Index: 1, Conditions: []rules.Condition{rules.MaxAlt(100000)}},
		{Name: "first-declared", Index: 0, Conditions: []rules.Condition{rules.MaxAlt(100000)}},
	}}
	eval := NewEvaluator(set, store, d, nil)

	f, _ := store.Update(report.Report{Identifier: "abc", Timestamp: 10, Lat: 1, Lon: 1, AltBaro: 500, HasAlt: true})
	eval.Process(f, 10)

	if len(fired) != 2 || fired[0] != "second-declared" || fired[1] != "first-declared" {
		t.Errorf("fired = %v, want rules dispatched in set declaration order", fired)
	}
}

func TestEvaluatorProcessSkipsNonMatchingRule(t *testing.T) {
	var fired []string
	d := NewDispatcher(nil, log.New(bytes.NewBuffer(nil), "", 0), nil, nil, false)
	d.SetObserver(func(ev Event) { fired = append(fired, ev.RuleName) })

	store := flight.NewStore(testNoRegions{}, 1, 600)
	set := &rules.Set{Rules: []*rules.Rule{
		{Name: "too-high", Index: 0, Conditions: []rules.Condition{rules.MaxAlt(100)}},
	}}
	eval := NewEvaluator(set, store, d, nil)

	f, _ := store.Update(report.Report{Identifier: "abc", Timestamp: 10, Lat: 1, Lon: 1, AltBaro: 5000, HasAlt: true})
	eval.Process(f, 10)

	if len(fired) != 0 {
		t.Errorf("fired = %v, want no dispatch for a rule whose condition fails", fired)
	}
}

func TestEvaluatorRuleSetReturnsWhatWasConstructedWith(t *testing.T) {
	set := &rules.Set{Rules: []*rules.Rule{{Name: "only"}}}
	eval := NewEvaluator(set, nil, nil, nil)

	if got := eval.RuleSet(); got != set {
		t.Errorf("RuleSet() = %p, want the original set %p", got, set)
	}
}

func TestEvaluatorSwapReplacesActiveSet(t *testing.T) {
	var fired []string
	d := NewDispatcher(nil, log.New(bytes.NewBuffer(nil), "", 0), nil, nil, false)
	d.SetObserver(func(ev Event) { fired = append(fired, ev.RuleName) })

	store := flight.NewStore(testNoRegions{}, 1, 600)
	original := &rules.Set{Rules: []*rules.Rule{{Name: "original", Index: 0}}}
	eval := NewEvaluator(original, store, d, nil)

	replacement := &rules.Set{Rules: []*rules.Rule{{Name: "replacement", Index: 0}}}
	eval.Swap(replacement)

	if eval.RuleSet() != replacement {
		t.Fatal("Swap should replace the set RuleSet() returns")
	}

	f, _ := store.Update(report.Report{Identifier: "abc", Timestamp: 1, Lat: 1, Lon: 1})
	eval.Process(f, 1)

	if len(fired) != 1 || fired[0] != "replacement" {
		t.Errorf("fired = %v, want the swapped-in rule to be the one evaluated", fired)
	}
}

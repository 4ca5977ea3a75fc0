// Package rules implements the compiled Rule model and evaluation
// semantics of spec §4.4: named, ordered, AND-ed condition sets with
// cooldown gating and a list of actions to run on match.
package rules

import "github.com/flightops/ruled/pkg/flight"

// Action is one compiled action to run when a rule matches (spec §4.6).
// Kind-specific parameters live on the struct the matching field names;
// only the fields relevant to Kind are populated.
type Action struct {
	Kind string // callback, expire_callback, print, note, track, webhook, shell

	CallbackName string // callback, expire_callback
	NoteName     string // note
	NoteValue    *string
	Template     string // webhook: target; shell: command template
	WebhookName  string // webhook: named transport from config
}

// Action kinds (spec §4.6).
const (
	ActionCallback       = "callback"
	ActionExpireCallback = "expire_callback"
	ActionPrint          = "print"
	ActionNote           = "note"
	ActionTrack          = "track"
	ActionWebhook        = "webhook"
	ActionShell          = "shell"
)

// Rule is one compiled rule: a stable Index into every flight's
// RuleCooldowns vector, an AND-ed Conditions list, an optional Proximity
// condition evaluated separately, and the Actions to run per match.
type Rule struct {
	Name  string
	Index int

	Conditions []Condition
	Proximity  *Proximity

	CooldownFlightSeconds float64
	CooldownRuleSeconds   float64

	Actions []Action

	lastRuleFireTS float64
}

// Match is one qualifying (flight[, partner]) pairing produced by
// Evaluate. Partner is nil unless the rule carries a proximity
// condition.
type Match struct {
	Partner *flight.Flight
}

// Evaluate runs the AND-ed condition set and then the cooldown gate
// against ctx.Flight, returning zero or more Matches — one per proximity
// partner, or exactly one with a nil Partner for rules with no proximity
// condition. Each returned Match has already been cooldown-stamped onto
// r and ctx.Flight (spec §4.4 steps 1-2): callers that get a non-empty
// result should go straight to running actions.
func (r *Rule) Evaluate(ctx *EvalContext) []Match {
	for _, c := range r.Conditions {
		if !c.Eval(ctx) {
			return nil
		}
	}

	if r.Proximity == nil {
		if !r.gate(ctx.Flight, ctx.Now) {
			return nil
		}
		r.stamp(ctx.Flight, ctx.Now)
		return []Match{{}}
	}

	partners := r.Proximity.Find(ctx.Store, ctx.Flight, ctx.Now)
	var matches []Match
	for _, partner := range partners {
		if !r.gate(ctx.Flight, ctx.Now) {
			continue
		}
		r.stamp(ctx.Flight, ctx.Now)
		matches = append(matches, Match{Partner: partner})
	}
	return matches
}

// gate implements spec §4.4 step 1: skip if either the rule-wide or the
// per-flight cooldown for this rule has not yet elapsed.
func (r *Rule) gate(f *flight.Flight, now float64) bool {
	if now-r.lastRuleFireTS < r.CooldownRuleSeconds {
		return false
	}
	if last := f.RuleCooldowns[r.Index]; last != 0 && now-last < r.CooldownFlightSeconds {
		return false
	}
	return true
}

func (r *Rule) stamp(f *flight.Flight, now float64) {
	r.lastRuleFireTS = now
	f.RuleCooldowns[r.Index] = now
}

// Set is a compiled, ordered collection of Rules plus the number of
// rules flights must size their cooldown vectors for.
type Set struct {
	Rules []*Rule

	// KMLFiles lists the region files declared under the document's
	// `config.kmls` block, in order. The caller loads each one into a
	// region.Set before building the flight.Store the rules run against.
	KMLFiles []string
}

// NumRules reports the cooldown-vector width every flight.Store built
// against this Set must use.
func (s *Set) NumRules() int {
	return len(s.Rules)
}

// ValidateCallbacks checks that every callback/expire_callback action in
// the set names a handler isRegistered reports as present, accumulating
// every unknown name into a single *ConfigError (spec §7: "unregistered
// callback name" is a startup-time configuration error, not a dispatch
// time log line). Callers should run this once host code has finished
// registering its callbacks and before starting the driver loop.
func (s *Set) ValidateCallbacks(isRegistered func(name string) bool) error {
	cerr := &ConfigError{}
	for _, r := range s.Rules {
		for _, a := range r.Actions {
			if a.Kind != ActionCallback && a.Kind != ActionExpireCallback {
				continue
			}
			if !isRegistered(a.CallbackName) {
				cerr.add("rule %q: %s %q is not registered", r.Name, a.Kind, a.CallbackName)
			}
		}
	}
	if !cerr.ok() {
		return cerr
	}
	return nil
}

package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/flightops/ruled/pkg/aclist"
)

// rawConditions mirrors the `conditions:` block of spec §6's rule schema.
// Every field is a pointer/slice so "absent" is distinguishable from
// "present with a zero value" — required for regions: [] versus an
// absent regions key, and for transition_regions entries that are
// legitimately null.
type rawConditions struct {
	MinAlt                 *float64  `yaml:"min_alt"`
	MaxAlt                 *float64  `yaml:"max_alt"`
	AircraftList           *string   `yaml:"aircraft_list"`
	ExcludeAircraftList    *string   `yaml:"exclude_aircraft_list"`
	ExcludeAircraftSubstrs []string  `yaml:"exclude_aircraft_substrs"`
	Regions                []string  `yaml:"regions"`
	TransitionRegions      []*string `yaml:"transition_regions"`
	ChangedRegions         *bool     `yaml:"changed_regions"`
	LatLongRing            []float64 `yaml:"latlongring"`
	Proximity              []float64 `yaml:"proximity"`
	Cooldown               *float64  `yaml:"cooldown"`
	RuleCooldown           *float64  `yaml:"rule_cooldown"`
	HasAttr                *string   `yaml:"has_attr"`
	MinTime                *int      `yaml:"min_time"`
	MaxTime                *int      `yaml:"max_time"`
}

type rawActions struct {
	Callback       *string  `yaml:"callback"`
	ExpireCallback *string  `yaml:"expire_callback"`
	Print          *bool    `yaml:"print"`
	Note           *string  `yaml:"note"`
	NoteSet        bool     `yaml:"-"`
	Track          *bool    `yaml:"track"`
	Webhook        []string `yaml:"webhook"`
	Shell          *string  `yaml:"shell"`
}

// UnmarshalYAML records whether `note:` was present at all, so an
// explicit `note: null` (the documented clear sentinel) can be told
// apart from the key being absent entirely.
func (a *rawActions) UnmarshalYAML(node *yaml.Node) error {
	type alias rawActions
	var v alias
	if err := node.Decode(&v); err != nil {
		return err
	}
	*a = rawActions(v)
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == "note" {
			a.NoteSet = true
		}
	}
	return nil
}

type rawRule struct {
	Conditions rawConditions `yaml:"conditions"`
	Actions    rawActions    `yaml:"actions"`

	// conditionsNode/actionsNode hold the raw mapping nodes alongside the
	// typed decode above, so compileRule can reject key names the typed
	// structs don't know about instead of silently dropping them.
	conditionsNode yaml.Node
	actionsNode    yaml.Node
}

// UnmarshalYAML decodes the typed Conditions/Actions fields as usual and
// additionally keeps the raw conditions/actions mapping nodes around for
// the unknown-key check in compileRule.
func (r *rawRule) UnmarshalYAML(node *yaml.Node) error {
	type alias rawRule
	var a alias
	if err := node.Decode(&a); err != nil {
		return err
	}
	*r = rawRule(a)
	for i := 0; i+1 < len(node.Content); i += 2 {
		switch node.Content[i].Value {
		case "conditions":
			r.conditionsNode = *node.Content[i+1]
		case "actions":
			r.actionsNode = *node.Content[i+1]
		}
	}
	return nil
}

// knownConditionKeys/knownActionKeys are the only key names
// rawConditions/rawActions understand. Anything else in a rule's
// conditions/actions mapping is a typo or a stale key name, not a
// silent no-op (spec §7/§9: "unknown keys are startup-time
// configuration errors, not silent no-ops").
var knownConditionKeys = map[string]bool{
	"min_alt": true, "max_alt": true, "aircraft_list": true,
	"exclude_aircraft_list": true, "exclude_aircraft_substrs": true,
	"regions": true, "transition_regions": true, "changed_regions": true,
	"latlongring": true, "proximity": true, "cooldown": true,
	"rule_cooldown": true, "has_attr": true, "min_time": true, "max_time": true,
}

var knownActionKeys = map[string]bool{
	"callback": true, "expire_callback": true, "print": true,
	"note": true, "track": true, "webhook": true, "shell": true,
}

func checkUnknownKeys(node yaml.Node, known map[string]bool, ruleName, section string, cerr *ConfigError) {
	if node.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if !known[key] {
			cerr.add("rule %q: unknown %s key %q", ruleName, section, key)
		}
	}
}

type rawConfig struct {
	Config struct {
		KMLs []string `yaml:"kmls"`
	} `yaml:"config"`
	AircraftLists map[string][]string `yaml:"aircraft_lists"`
	Rules         map[string]rawRule  `yaml:"rules"`
	order         []string
}

// UnmarshalYAML captures the declaration order of the rules map — spec
// §3 "RuleSet ... order is observable" — which plain map decoding would
// otherwise discard.
func (c *rawConfig) UnmarshalYAML(node *yaml.Node) error {
	type alias rawConfig
	var a alias
	if err := node.Decode(&a); err != nil {
		return err
	}
	*c = rawConfig(a)

	var top struct {
		Rules yaml.Node `yaml:"rules"`
	}
	if err := node.Decode(&top); err != nil {
		return err
	}
	for i := 0; i+1 < len(top.Rules.Content); i += 2 {
		c.order = append(c.order, top.Rules.Content[i].Value)
	}
	return nil
}

// ConfigError accumulates every configuration problem found while
// compiling a rule file, rather than stopping at the first one (spec §7:
// "fail fast at startup with a descriptive diagnostic").
type ConfigError struct {
	Errors []error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("rules: %d configuration error(s)", len(e.Errors))
	for _, err := range e.Errors {
		msg += "\n  - " + err.Error()
	}
	return msg
}

func (e *ConfigError) add(format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Errorf(format, args...))
}

func (e *ConfigError) ok() bool {
	return len(e.Errors) == 0
}

// LoadFile reads a rule-set YAML document from path and compiles it.
func LoadFile(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read %s: %w", path, err)
	}
	return Compile(data)
}

// Compile parses and validates a rule-set YAML document (spec §6). The
// document's own `aircraft_lists` block is built into a Registry before
// any rule's `aircraft_list`/`exclude_aircraft_list` reference is
// resolved against it, so list order in the file never matters. Every
// problem found is accumulated into a single *ConfigError rather than
// returned on first failure.
func Compile(data []byte) (*Set, error) {
	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("rules: parse: %w", err)
	}

	lists := aclist.NewRegistry(raw.AircraftLists)
	cerr := &ConfigError{}
	set := &Set{KMLFiles: raw.Config.KMLs}

	for idx, name := range raw.order {
		rr, ok := raw.Rules[name]
		if !ok {
			continue // tracked by order but absent from the map: impossible, defensive only
		}
		rule := compileRule(name, idx, rr, lists, cerr)
		set.Rules = append(set.Rules, rule)
	}

	if !cerr.ok() {
		return nil, cerr
	}
	return set, nil
}

func compileRule(name string, index int, rr rawRule, lists *aclist.Registry, cerr *ConfigError) *Rule {
	checkUnknownKeys(rr.conditionsNode, knownConditionKeys, name, "condition", cerr)
	checkUnknownKeys(rr.actionsNode, knownActionKeys, name, "action", cerr)

	rule := &Rule{Name: name, Index: index}
	c := rr.Conditions

	if c.MinAlt != nil {
		rule.Conditions = append(rule.Conditions, MinAlt(*c.MinAlt))
	}
	if c.MaxAlt != nil {
		rule.Conditions = append(rule.Conditions, MaxAlt(*c.MaxAlt))
	}
	if c.AircraftList != nil {
		if l, ok := lists.Lookup(*c.AircraftList); ok {
			rule.Conditions = append(rule.Conditions, AircraftList(l))
		} else {
			cerr.add("rule %q: aircraft_list %q is not defined", name, *c.AircraftList)
		}
	}
	if c.ExcludeAircraftList != nil {
		if l, ok := lists.Lookup(*c.ExcludeAircraftList); ok {
			rule.Conditions = append(rule.Conditions, ExcludeAircraftList(l))
		} else {
			cerr.add("rule %q: exclude_aircraft_list %q is not defined", name, *c.ExcludeAircraftList)
		}
	}
	if len(c.ExcludeAircraftSubstrs) > 0 {
		rule.Conditions = append(rule.Conditions, ExcludeAircraftSubstrs(c.ExcludeAircraftSubstrs))
	}
	if c.Regions != nil {
		rule.Conditions = append(rule.Conditions, Regions(c.Regions))
	}
	if c.TransitionRegions != nil {
		if len(c.TransitionRegions) != 2 {
			cerr.add("rule %q: transition_regions needs exactly [from, to], got %d values", name, len(c.TransitionRegions))
		} else {
			rule.Conditions = append(rule.Conditions, TransitionRegions(c.TransitionRegions[0], c.TransitionRegions[1]))
		}
	}
	if c.ChangedRegions != nil && *c.ChangedRegions {
		rule.Conditions = append(rule.Conditions, ChangedRegions())
	}
	if c.LatLongRing != nil {
		if len(c.LatLongRing) != 3 {
			cerr.add("rule %q: latlongring needs exactly [nm, lat, lon], got %d values", name, len(c.LatLongRing))
		} else {
			rule.Conditions = append(rule.Conditions, LatLongRing(c.LatLongRing[0], c.LatLongRing[1], c.LatLongRing[2]))
		}
	}
	if c.Proximity != nil {
		if len(c.Proximity) != 2 {
			cerr.add("rule %q: proximity needs exactly [alt_ft, lat_nm], got %d values", name, len(c.Proximity))
		} else {
			rule.Proximity = &Proximity{AltFeet: c.Proximity[0], LatNM: c.Proximity[1]}
		}
	}
	if c.HasAttr != nil {
		rule.Conditions = append(rule.Conditions, HasAttr(*c.HasAttr))
	}
	if c.MinTime != nil {
		rule.Conditions = append(rule.Conditions, MinTime(*c.MinTime))
	}
	if c.MaxTime != nil {
		rule.Conditions = append(rule.Conditions, MaxTime(*c.MaxTime))
	}
	if c.Cooldown != nil {
		rule.CooldownFlightSeconds = *c.Cooldown * 60
	}
	if c.RuleCooldown != nil {
		rule.CooldownRuleSeconds = *c.RuleCooldown * 60
	}

	a := rr.Actions
	if a.Callback != nil {
		rule.Actions = append(rule.Actions, Action{Kind: ActionCallback, CallbackName: *a.Callback})
	}
	if a.ExpireCallback != nil {
		rule.Actions = append(rule.Actions, Action{Kind: ActionExpireCallback, CallbackName: *a.ExpireCallback})
	}
	if a.Print != nil && *a.Print {
		rule.Actions = append(rule.Actions, Action{Kind: ActionPrint})
	}
	if a.NoteSet {
		rule.Actions = append(rule.Actions, Action{Kind: ActionNote, NoteName: name, NoteValue: a.Note})
	}
	if a.Track != nil && *a.Track {
		rule.Actions = append(rule.Actions, Action{Kind: ActionTrack})
	}
	if a.Webhook != nil {
		if len(a.Webhook) != 2 {
			cerr.add("rule %q: webhook needs exactly [kind, target], got %d values", name, len(a.Webhook))
		} else {
			rule.Actions = append(rule.Actions, Action{Kind: ActionWebhook, WebhookName: a.Webhook[0], Template: a.Webhook[1]})
		}
	}
	if a.Shell != nil {
		rule.Actions = append(rule.Actions, Action{Kind: ActionShell, Template: *a.Shell})
	}

	return rule
}

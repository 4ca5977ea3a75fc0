package rules

import (
	"strings"
	"testing"
)

const sampleRuleYAML = `
config:
  kmls:
    - regions/airport.kml

aircraft_lists:
  watchlist:
    - abc123

rules:
  low_and_listed:
    conditions:
      max_alt: 1000
      aircraft_list: watchlist
    actions:
      track: true
      note: approach

  cleared:
    conditions:
      max_alt: 1000
    actions:
      note: null
`

func TestCompileOrderAndLists(t *testing.T) {
	set, err := Compile([]byte(sampleRuleYAML))
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}

	if len(set.Rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(set.Rules))
	}
	if set.Rules[0].Name != "low_and_listed" || set.Rules[1].Name != "cleared" {
		t.Errorf("rule declaration order not preserved: got [%s, %s]", set.Rules[0].Name, set.Rules[1].Name)
	}
	if len(set.KMLFiles) != 1 || set.KMLFiles[0] != "regions/airport.kml" {
		t.Errorf("KMLFiles = %v, want [regions/airport.kml]", set.KMLFiles)
	}
}

func TestCompileNoteNullVsAbsent(t *testing.T) {
	set, err := Compile([]byte(sampleRuleYAML))
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}

	listed := set.Rules[0]
	if len(listed.Actions) < 1 {
		t.Fatal("low_and_listed rule should compile a note action")
	}
	var noteAction *Action
	for i := range listed.Actions {
		if listed.Actions[i].Kind == ActionNote {
			noteAction = &listed.Actions[i]
		}
	}
	if noteAction == nil || noteAction.NoteValue == nil || *noteAction.NoteValue != "approach" {
		t.Errorf("expected note action with value approach, got %+v", noteAction)
	}

	cleared := set.Rules[1]
	noteAction = nil
	for i := range cleared.Actions {
		if cleared.Actions[i].Kind == ActionNote {
			noteAction = &cleared.Actions[i]
		}
	}
	if noteAction == nil {
		t.Fatal("expected `note: null` to still compile a note action (the clear sentinel)")
	}
	if noteAction.NoteValue != nil {
		t.Errorf("expected a nil NoteValue for `note: null`, got %v", *noteAction.NoteValue)
	}
}

func TestCompileUndefinedAircraftListIsAnError(t *testing.T) {
	doc := `
rules:
  bad:
    conditions:
      aircraft_list: nonexistent
    actions:
      track: true
`
	_, err := Compile([]byte(doc))
	if err == nil {
		t.Fatal("expected an error for a reference to an undefined aircraft_list")
	}
	cerr, ok := err.(*ConfigError)
	if !ok {
		t.Fatalf("expected a *ConfigError, got %T", err)
	}
	if len(cerr.Errors) != 1 {
		t.Errorf("got %d errors, want 1", len(cerr.Errors))
	}
}

func TestCompileAccumulatesMultipleErrors(t *testing.T) {
	doc := `
rules:
  bad:
    conditions:
      aircraft_list: missing_one
      exclude_aircraft_list: missing_two
      latlongring: [1, 2]
    actions:
      track: true
`
	_, err := Compile([]byte(doc))
	cerr, ok := err.(*ConfigError)
	if !ok {
		t.Fatalf("expected a *ConfigError, got %T (%v)", err, err)
	}
	if len(cerr.Errors) != 3 {
		t.Errorf("got %d errors, want 3 (two missing lists, one malformed ring)", len(cerr.Errors))
	}
}

func TestCompileUnknownConditionKeyIsAnError(t *testing.T) {
	doc := `
rules:
  bad:
    conditions:
      min_atl: 1000
    actions:
      track: true
`
	_, err := Compile([]byte(doc))
	cerr, ok := err.(*ConfigError)
	if !ok {
		t.Fatalf("expected a *ConfigError, got %T (%v)", err, err)
	}
	if len(cerr.Errors) != 1 {
		t.Fatalf("got %d errors, want 1, errors=%v", len(cerr.Errors), cerr.Errors)
	}
	if got := cerr.Errors[0].Error(); !strings.Contains(got, `unknown condition key "min_atl"`) {
		t.Errorf("error = %q, want it to name the unknown key", got)
	}
}

func TestCompileUnknownActionKeyIsAnError(t *testing.T) {
	doc := `
rules:
  bad:
    conditions:
      max_alt: 1000
    actions:
      nottify: true
`
	_, err := Compile([]byte(doc))
	cerr, ok := err.(*ConfigError)
	if !ok {
		t.Fatalf("expected a *ConfigError, got %T (%v)", err, err)
	}
	if len(cerr.Errors) != 1 {
		t.Fatalf("got %d errors, want 1, errors=%v", len(cerr.Errors), cerr.Errors)
	}
	if got := cerr.Errors[0].Error(); !strings.Contains(got, `unknown action key "nottify"`) {
		t.Errorf("error = %q, want it to name the unknown key", got)
	}
}

func TestCompileUnknownKeysAccumulateAlongsideOtherErrors(t *testing.T) {
	doc := `
rules:
  bad:
    conditions:
      aircraft_list: missing
      bogus_key: true
    actions:
      track: true
`
	_, err := Compile([]byte(doc))
	cerr, ok := err.(*ConfigError)
	if !ok {
		t.Fatalf("expected a *ConfigError, got %T (%v)", err, err)
	}
	if len(cerr.Errors) != 2 {
		t.Errorf("got %d errors, want 2 (missing list + unknown key)", len(cerr.Errors))
	}
}

func TestSetValidateCallbacksCatchesUnregisteredNames(t *testing.T) {
	doc := `
rules:
  alert:
    conditions:
      max_alt: 1000
    actions:
      callback: notify_tower
  clear:
    conditions:
      max_alt: 1000
    actions:
      expire_callback: notify_cleared
`
	set, err := Compile([]byte(doc))
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}

	registered := map[string]bool{"notify_tower": true}
	err = set.ValidateCallbacks(func(name string) bool { return registered[name] })
	cerr, ok := err.(*ConfigError)
	if !ok {
		t.Fatalf("expected a *ConfigError, got %T (%v)", err, err)
	}
	if len(cerr.Errors) != 1 {
		t.Fatalf("got %d errors, want 1 (only notify_cleared is unregistered)", len(cerr.Errors))
	}

	if err := set.ValidateCallbacks(func(name string) bool { return true }); err != nil {
		t.Errorf("expected no error when every callback is registered, got %v", err)
	}
}

func TestCompileNoActionsOrConditionsIsValid(t *testing.T) {
	doc := `
rules:
  noop:
    conditions: {}
    actions: {}
`
	set, err := Compile([]byte(doc))
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	if len(set.Rules) != 1 {
		t.Fatalf("got %d rules, want 1", len(set.Rules))
	}
	if len(set.Rules[0].Conditions) != 0 || len(set.Rules[0].Actions) != 0 {
		t.Errorf("expected an empty rule to compile with no conditions/actions, got %+v", set.Rules[0])
	}
}

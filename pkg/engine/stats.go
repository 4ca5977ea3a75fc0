package engine

import "sync/atomic"

// Stats exposes the process-level counters spec §6/§7 require to be
// retrievable without coupling the engine to any particular frontend:
// rule match counts for `track: true` actions, and the drop/error
// counters §7's per-report error taxonomy calls for.
type Stats struct {
	reportsProcessed int64
	reportsDropped   int64
	flightsCreated   int64
	flightsExpired   int64
	actionErrors     int64

	ruleTrackCounts sync32Map
}

func (s *Stats) incReportsProcessed() { atomic.AddInt64(&s.reportsProcessed, 1) }
func (s *Stats) incReportsDropped()   { atomic.AddInt64(&s.reportsDropped, 1) }
func (s *Stats) incFlightsCreated()   { atomic.AddInt64(&s.flightsCreated, 1) }
func (s *Stats) incFlightsExpired()   { atomic.AddInt64(&s.flightsExpired, 1) }
func (s *Stats) incActionErrors()     { atomic.AddInt64(&s.actionErrors, 1) }

// Track increments the `track: true` counter for a rule name.
func (s *Stats) Track(ruleName string) {
	s.ruleTrackCounts.inc(ruleName)
}

// Snapshot is a point-in-time copy of Stats safe to serialize (spec §6:
// "process-level statistics ... are retrievable via the statistics
// interface").
type Snapshot struct {
	ReportsProcessed int64
	ReportsDropped   int64
	FlightsCreated   int64
	FlightsExpired   int64
	ActionErrors     int64
	RuleTrackCounts  map[string]int64
}

// Snapshot copies the current counters.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		ReportsProcessed: atomic.LoadInt64(&s.reportsProcessed),
		ReportsDropped:   atomic.LoadInt64(&s.reportsDropped),
		FlightsCreated:   atomic.LoadInt64(&s.flightsCreated),
		FlightsExpired:   atomic.LoadInt64(&s.flightsExpired),
		ActionErrors:     atomic.LoadInt64(&s.actionErrors),
		RuleTrackCounts:  s.ruleTrackCounts.copy(),
	}
}

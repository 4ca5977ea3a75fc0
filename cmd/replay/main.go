// Command replay runs the rule engine once over a newline-delimited
// JSON report file and exits, printing a final statistics summary. It
// starts no admin API and touches no database — useful for demoing or
// regression-testing a rule file deterministically.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/flightops/ruled/internal/ingest"
	"github.com/flightops/ruled/pkg/engine"
	"github.com/flightops/ruled/pkg/flight"
	"github.com/flightops/ruled/pkg/region"
	"github.com/flightops/ruled/pkg/rules"
)

func main() {
	ruleFile := flag.String("rules", "", "Path to the rule-set YAML document")
	replayFile := flag.String("file", "", "Path to the newline-delimited JSON report file to replay")
	realtime := flag.Bool("realtime", false, "Pace replay by each record's own timestamp delta instead of running as fast as possible")
	expirySeconds := flag.Float64("expiry", 600, "Flight expiry window in stream seconds")
	flag.Parse()

	if *ruleFile == "" || *replayFile == "" {
		fmt.Fprintln(os.Stderr, "usage: replay -rules <rules.yaml> -file <reports.jsonl>")
		os.Exit(2)
	}

	set, err := rules.LoadFile(*ruleFile)
	if err != nil {
		log.Fatalf("failed to load rule set: %v", err)
	}
	log.Printf("loaded %d rules from %s", len(set.Rules), *ruleFile)

	regions, err := loadRegionSet(set.KMLFiles)
	if err != nil {
		log.Fatalf("failed to load region files: %v", err)
	}

	store := flight.NewStore(regions, set.NumRules(), *expirySeconds)
	stats := &engine.Stats{}
	dispatcher := engine.NewDispatcher(os.Stdout, log.Default(), nil, stats, false)
	evaluator := engine.NewEvaluator(set, store, dispatcher, nil)
	driver := engine.NewDriver(store, evaluator, stats, log.Default())

	f, err := os.Open(*replayFile)
	if err != nil {
		log.Fatalf("failed to open replay file: %v", err)
	}
	defer f.Close()

	src := ingest.NewFileSource(f, *realtime)

	if err := driver.Run(context.Background(), src, dispatcher.ExpireHook()); err != nil {
		log.Fatalf("replay failed: %v", err)
	}

	snap := stats.Snapshot()
	log.Println("===========================================")
	log.Println("  replay complete")
	log.Println("===========================================")
	log.Printf("reports processed: %d", snap.ReportsProcessed)
	log.Printf("reports dropped:   %d", snap.ReportsDropped)
	log.Printf("flights created:   %d", snap.FlightsCreated)
	log.Printf("flights expired:   %d", snap.FlightsExpired)
	log.Printf("action errors:     %d", snap.ActionErrors)
	for rule, count := range snap.RuleTrackCounts {
		log.Printf("  track[%s] = %d", rule, count)
	}
}

func loadRegionSet(paths []string) (*region.Set, error) {
	files := make([]region.File, 0, len(paths))
	for _, p := range paths {
		file, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("open region file %s: %w", p, err)
		}
		rf, err := region.LoadKML(p, file)
		file.Close()
		if err != nil {
			return nil, err
		}
		files = append(files, rf)
	}
	return region.NewSet(files...), nil
}

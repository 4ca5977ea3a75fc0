package engine

import (
	"context"
	"errors"
	"io"
	"log"

	"github.com/flightops/ruled/pkg/flight"
	"github.com/flightops/ruled/pkg/report"
)

// expirationSweepInterval is how often the driver runs an expiration
// sweep, measured in stream time, not wall-clock time (spec §4.7: "every
// 30s of stream time").
const expirationSweepInterval = 30.0

// outOfOrderTolerance bounds how far a report's timestamp may lag the
// driver's current stream clock before it is dropped (spec §4.7: "out-
// of-order reports by more than 60s are dropped").
const outOfOrderTolerance = 60.0

// ErrSourceExhausted is returned by Source.Next when the stream has no
// more reports; it is not an error from the driver's point of view.
var ErrSourceExhausted = errors.New("engine: source exhausted")

// Source produces raw report payloads one at a time in stream-timestamp
// order. Implementations (internal/ingest) may block waiting for
// network or file data; that is the only thing in this system allowed
// to block (spec §5).
type Source interface {
	Next(ctx context.Context) (raw map[string]any, fallbackTimestamp float64, err error)
}

// Driver is the streaming rule engine's main loop (spec §4.7): it
// normalizes raw points into Reports, upserts flight state, evaluates
// rules, and runs periodic expiration driven by the stream's own clock.
type Driver struct {
	store     *flight.Store
	evaluator *Evaluator
	stats     *Stats
	logger    *log.Logger

	clock           float64
	lastSweepAt     float64
	clockInitialized bool
}

// NewDriver builds a Driver around a flight store and evaluator already
// wired together (they must share the same *flight.Store).
func NewDriver(store *flight.Store, evaluator *Evaluator, stats *Stats, logger *log.Logger) *Driver {
	return &Driver{store: store, evaluator: evaluator, stats: stats, logger: logger}
}

// Run consumes src until it is exhausted or ctx is cancelled, processing
// one report per iteration and sweeping expired flights on the stream
// clock. It always performs a final expiration sweep before returning
// (spec §4.7: "source exhausted -> final expiration sweep ... -> return"),
// even on cancellation.
func (d *Driver) Run(ctx context.Context, src Source, hook flight.ExpireHook) error {
	defer d.finalSweep(hook)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		raw, fallbackTS, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrSourceExhausted) || errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			d.logf("engine: ingest error, dropping and continuing: %v", err)
			if d.stats != nil {
				d.stats.incReportsDropped()
			}
			continue
		}

		d.processOne(raw, fallbackTS, hook)
	}
}

func (d *Driver) processOne(raw map[string]any, fallbackTS float64, hook flight.ExpireHook) {
	defer func() {
		if r := recover(); r != nil {
			d.logf("engine: recovered panic processing a report: %v", r)
			if d.stats != nil {
				d.stats.incReportsDropped()
			}
		}
	}()

	rep, err := report.Parse(raw, fallbackTS)
	if err != nil {
		d.logf("engine: dropping malformed report: %v", err)
		if d.stats != nil {
			d.stats.incReportsDropped()
		}
		return
	}

	if d.clockInitialized && rep.Timestamp < d.clock-outOfOrderTolerance {
		d.logf("engine: dropping out-of-order report for %s (%.0fs behind clock)", rep.Identifier, d.clock-rep.Timestamp)
		if d.stats != nil {
			d.stats.incReportsDropped()
		}
		return
	}

	if !d.clockInitialized || rep.Timestamp > d.clock {
		d.clock = rep.Timestamp
		d.clockInitialized = true
	}

	f, created := d.store.Update(rep)
	if created && d.stats != nil {
		d.stats.incFlightsCreated()
	}
	if d.stats != nil {
		d.stats.incReportsProcessed()
	}

	d.evaluator.Process(f, d.clock)

	if d.clock-d.lastSweepAt >= expirationSweepInterval {
		d.sweep(hook)
	}
}

func (d *Driver) sweep(hook flight.ExpireHook) {
	evicted := d.store.Expire(d.clock, hook)
	if evicted > 0 && d.stats != nil {
		for i := 0; i < evicted; i++ {
			d.stats.incFlightsExpired()
		}
	}
	d.lastSweepAt = d.clock
}

func (d *Driver) finalSweep(hook flight.ExpireHook) {
	evicted := d.store.ExpireAll(hook)
	if evicted > 0 && d.stats != nil {
		for i := 0; i < evicted; i++ {
			d.stats.incFlightsExpired()
		}
	}
}

func (d *Driver) logf(format string, args ...any) {
	if d.logger != nil {
		d.logger.Printf(format, args...)
	}
}

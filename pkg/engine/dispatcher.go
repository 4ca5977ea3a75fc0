package engine

import (
	"fmt"
	"io"
	"log"
	"os/exec"
	"strings"
	"time"

	"github.com/flightops/ruled/pkg/flight"
	"github.com/flightops/ruled/pkg/rules"
)

// Callback is a user-registered handler for `callback`/`expire_callback`
// actions. Other is non-nil only when the firing rule carried a
// proximity condition (spec §4.6).
type Callback func(f flight.View, other *flight.View)

// WebhookMessage is the payload handed to a named outbound transport by
// a `webhook: [kind, target]` action.
type WebhookMessage struct {
	Kind    string
	Target  string
	Flight  flight.View
	RuleName string
}

// WebhookSender enqueues a message to a background transport,
// non-blocking (spec §5: webhook actions must not block the driver).
// internal/webhook implements this against a bounded worker pool.
type WebhookSender interface {
	Enqueue(msg WebhookMessage) bool
}

// Event describes one rule match, independent of which actions the
// rule declared. It is handed to an optional Observer so things like
// the flight-history sink and the admin API's live event stream can
// watch every fire without the Dispatcher knowing they exist.
type Event struct {
	RuleName string
	Flight   flight.View
	Other    *flight.View
	StreamTS float64
}

// Observer receives one Event per rule match, after its actions have
// run. Observer implementations must not block — Dispatch calls them
// synchronously on the driver thread.
type Observer func(Event)

// Dispatcher resolves compiled actions to effects (spec §4.6). It owns
// no goroutines of its own: callbacks run inline on the driver thread,
// webhook/shell work is handed off to whatever the caller wired in.
type Dispatcher struct {
	callbacks map[string]Callback
	webhook   WebhookSender
	out       io.Writer
	logger    *log.Logger
	stats     *Stats
	shellExec bool
	observer  Observer
}

// NewDispatcher builds a Dispatcher. out receives `print` action
// summaries; webhook may be nil (webhook actions are then dropped and
// logged, matching a misconfigured transport); shellExec gates whether
// `shell` actions actually spawn a subprocess — false is the safe
// default for untrusted rule files.
func NewDispatcher(out io.Writer, logger *log.Logger, webhook WebhookSender, stats *Stats, shellExec bool) *Dispatcher {
	return &Dispatcher{
		callbacks: make(map[string]Callback),
		webhook:   webhook,
		out:       out,
		logger:    logger,
		stats:     stats,
		shellExec: shellExec,
	}
}

// Register installs a named callback. Must be called before the driver
// loop starts (spec §6: "host code registers name -> handler pairs
// before starting the loop").
func (d *Dispatcher) Register(name string, cb Callback) {
	d.callbacks[name] = cb
}

// IsRegistered reports whether name has a registered callback handler.
// cmd/ruled calls this through rules.Set.ValidateCallbacks before
// starting the driver loop, so an unregistered callback/expire_callback
// name fails fast at startup instead of being discovered at dispatch
// time.
func (d *Dispatcher) IsRegistered(name string) bool {
	_, ok := d.callbacks[name]
	return ok
}

// SetObserver installs the single observer notified after every rule
// match's actions have run. Passing nil disables notification.
func (d *Dispatcher) SetObserver(obs Observer) {
	d.observer = obs
}

// ExpireHook adapts the dispatcher's registered callbacks to
// flight.ExpireHook, so Driver.Run can fire `expire_callback` actions
// through the same name -> handler registry as ordinary `callback`
// actions. Other is always nil: eviction has no proximity partner.
func (d *Dispatcher) ExpireHook() flight.ExpireHook {
	return func(f *flight.Flight, name string) {
		d.runCallback(name, f, nil)
	}
}

// Dispatch runs every action of r against f, with other set when the
// match came from a proximity pairing. Actions run in r.Actions order;
// for compiled rules that order is fixed by kind (callback,
// expire_callback, print, note, track, webhook, shell), with at most one
// action of each kind, not the order the keys appear in the YAML.
func (d *Dispatcher) Dispatch(r *rules.Rule, f *flight.Flight, other *flight.Flight, now float64) {
	for _, action := range r.Actions {
		d.dispatchOne(r, action, f, other)
	}

	if d.observer != nil {
		var otherView *flight.View
		if other != nil {
			v := other.Snapshot()
			otherView = &v
		}
		d.observer(Event{RuleName: r.Name, Flight: f.Snapshot(), Other: otherView, StreamTS: now})
	}
}

func (d *Dispatcher) dispatchOne(r *rules.Rule, action rules.Action, f *flight.Flight, other *flight.Flight) {
	switch action.Kind {
	case rules.ActionCallback:
		d.runCallback(action.CallbackName, f, other)
	case rules.ActionExpireCallback:
		f.RegisterExpireCallback(action.CallbackName)
	case rules.ActionPrint:
		d.print(r, f)
	case rules.ActionNote:
		f.SetNote(action.NoteName, action.NoteValue)
	case rules.ActionTrack:
		if d.stats != nil {
			d.stats.Track(r.Name)
		}
	case rules.ActionWebhook:
		d.sendWebhook(r, action, f)
	case rules.ActionShell:
		d.runShell(action.Template, f)
	}
}

func (d *Dispatcher) runCallback(name string, f *flight.Flight, other *flight.Flight) {
	cb, ok := d.callbacks[name]
	if !ok {
		d.logf("engine: callback %q is not registered", name)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.logf("engine: callback %q panicked: %v", name, r)
			if d.stats != nil {
				d.stats.incActionErrors()
			}
		}
	}()

	var otherView *flight.View
	if other != nil {
		v := other.Snapshot()
		otherView = &v
	}
	cb(f.Snapshot(), otherView)
}

func (d *Dispatcher) print(r *rules.Rule, f *flight.Flight) {
	if d.out == nil {
		return
	}
	rep := f.LastReport
	fmt.Fprintf(d.out, "%s rule=%s id=%s alt=%.0f hdg=%.0f spd=%.0f lat=%.4f lon=%.4f\n",
		rep.Time().Format(time.RFC3339), r.Name, f.Identifier, rep.AltBaro, rep.Track, rep.GroundSpeed, rep.Lat, rep.Lon)
}

func (d *Dispatcher) sendWebhook(r *rules.Rule, action rules.Action, f *flight.Flight) {
	if d.webhook == nil {
		d.logf("engine: webhook action on rule %q dropped, no transport configured", r.Name)
		return
	}
	msg := WebhookMessage{
		Kind:     action.WebhookName,
		Target:   action.Template,
		Flight:   f.Snapshot(),
		RuleName: r.Name,
	}
	if !d.webhook.Enqueue(msg) {
		d.logf("engine: webhook queue full, dropped message for rule %q flight %q", r.Name, f.Identifier)
		if d.stats != nil {
			d.stats.incActionErrors()
		}
	}
}

func (d *Dispatcher) runShell(template string, f *flight.Flight) {
	if !d.shellExec {
		return
	}
	cmdline := expandTemplate(template, f)
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return
	}
	cmd := exec.Command(fields[0], fields[1:]...)
	if err := cmd.Start(); err != nil {
		d.logf("engine: shell action failed to start %q: %v", cmdline, err)
		if d.stats != nil {
			d.stats.incActionErrors()
		}
		return
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			d.logf("engine: shell action %q exited with error: %v", cmdline, err)
		}
	}()
}

func expandTemplate(template string, f *flight.Flight) string {
	r := f.LastReport
	replacer := strings.NewReplacer(
		"{flight_id}", f.Identifier,
		"{lat}", fmt.Sprintf("%.5f", r.Lat),
		"{lon}", fmt.Sprintf("%.5f", r.Lon),
		"{alt}", fmt.Sprintf("%.0f", r.AltBaro),
	)
	return replacer.Replace(template)
}

func (d *Dispatcher) logf(format string, args ...any) {
	if d.logger != nil {
		d.logger.Printf(format, args...)
	}
}

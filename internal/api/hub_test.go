package api

import (
	"testing"

	"github.com/flightops/ruled/pkg/engine"
	"github.com/flightops/ruled/pkg/flight"
)

func TestEventHubAddRemove(t *testing.T) {
	h := newEventHub(nil)
	if len(h.clients) != 0 {
		t.Fatalf("expected empty hub, got %d clients", len(h.clients))
	}

	ch := h.add(nil)
	if len(h.clients) != 1 {
		t.Fatalf("expected 1 client after add, got %d", len(h.clients))
	}
	h.remove(nil)
	if len(h.clients) != 0 {
		t.Errorf("expected empty hub after remove, got %d clients", len(h.clients))
	}
	if _, open := <-ch; open {
		t.Error("expected remove to close the client's channel")
	}
}

func TestEventHubBroadcastNoClients(t *testing.T) {
	h := newEventHub(nil)
	// Broadcasting with no connected clients must not panic or block.
	h.broadcast(engine.Event{RuleName: "test", Flight: flight.View{Identifier: "N12345"}, StreamTS: 100})
}

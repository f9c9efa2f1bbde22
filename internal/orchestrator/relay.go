package orchestrator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// relay is one pending auto-chat handoff. The timer is tracked so
// removal of either endpoint, or Close, cancels it deterministically.
type relay struct {
	timer    *time.Timer
	senderID string
	targetID string
}

// scheduleRelay forwards a completed reply into another instance after
// the configured delay. The target is chosen uniformly at random from
// the instances that have a model bound, excluding the sender. With no
// candidates, or auto-chat off, it does nothing.
func (o *Orchestrator) scheduleRelay(senderID, text string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || !o.autoChat || len(o.instances) < 2 {
		return
	}

	var candidates []*instance
	for _, inst := range o.instances {
		if inst.id != senderID && inst.model != nil {
			candidates = append(candidates, inst)
		}
	}
	if len(candidates) == 0 {
		return
	}

	target := candidates[o.rng.Intn(len(candidates))]

	r := &relay{senderID: senderID, targetID: target.id}
	r.timer = time.AfterFunc(o.relayDelay, func() {
		o.fireRelay(r, text)
	})
	o.relays[r] = struct{}{}

	if counter, err := o.meter.Int64Counter("chat.relay.scheduled",
		metric.WithDescription("Auto-chat relays scheduled"),
	); err == nil {
		counter.Add(context.Background(), 1)
	}

	o.logger.Info("relay scheduled",
		"sender", senderID, "target", target.id, "delay", o.relayDelay)
}

// fireRelay runs when a relay timer elapses. A relay cancelled in the
// meantime is gone from the set and does nothing; otherwise the
// forwarded send degrades to a no-op through Send's own preconditions
// if the target has since lost its model or been removed.
func (o *Orchestrator) fireRelay(r *relay, text string) {
	o.mu.Lock()
	if _, ok := o.relays[r]; !ok {
		o.mu.Unlock()
		return
	}
	delete(o.relays, r)
	closed := o.closed
	o.mu.Unlock()

	if closed {
		return
	}

	o.logger.Debug("relay firing", "sender", r.senderID, "target", r.targetID)
	o.Send(context.Background(), r.targetID, text)
}

// pendingRelays reports how many relays are scheduled. Used by tests.
func (o *Orchestrator) pendingRelays() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.relays)
}

// Package orchestrator coordinates the chat instances: it owns the
// instance registry, drives the user -> assistant message pipeline for
// each instance, and schedules auto-chat relays between them.
package orchestrator

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"PolyChat/internal/chat"
	"PolyChat/internal/speech"
)

// Completion produces one assistant reply for a conversation history.
type Completion interface {
	SendMessage(ctx context.Context, modelID string, history []chat.Message) (chat.Message, error)
}

// Instance is a snapshot of one chat instance. Mutations happen only
// inside the orchestrator; callers always receive copies.
type Instance struct {
	ID       string         `json:"id"`
	Model    *chat.Model    `json:"model,omitempty"`
	Messages []chat.Message `json:"messages"`
	Status   chat.Status    `json:"status"`
}

// instance is the registry's mutable record.
type instance struct {
	id       string
	model    *chat.Model
	messages []chat.Message
	status   chat.Status
}

// Orchestrator is the single source of truth for instance state.
type Orchestrator struct {
	completion Completion
	speaker    speech.Speaker
	logger     *slog.Logger
	tracer     trace.Tracer
	meter      metric.Meter

	sendTimeout time.Duration

	mu         sync.Mutex
	instances  []*instance
	max        int
	autoChat   bool
	relayDelay time.Duration
	rng        *rand.Rand
	relays     map[*relay]struct{}
	closed     bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxInstances bounds how many instances may exist at once.
func WithMaxInstances(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.max = n
		}
	}
}

// WithSendTimeout bounds each completion provider call.
func WithSendTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.sendTimeout = d
		}
	}
}

// WithAutoChatDelay sets the relay delay used when auto-chat is on.
func WithAutoChatDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.relayDelay = d }
}

// WithRand injects the random source used for relay target selection,
// so tests can force deterministic choices.
func WithRand(rng *rand.Rand) Option {
	return func(o *Orchestrator) { o.rng = rng }
}

// New creates an orchestrator with one initial instance.
func New(completion Completion, speaker speech.Speaker, logger *slog.Logger, tracer trace.Tracer, meter metric.Meter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		completion:  completion,
		speaker:     speaker,
		logger:      logger,
		tracer:      tracer,
		meter:       meter,
		sendTimeout: 60 * time.Second,
		max:         4,
		relayDelay:  2 * time.Second,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		relays:      make(map[*relay]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}

	// The registry always holds at least one instance.
	o.instances = []*instance{newInstance()}
	logger.Info("orchestrator started", "instance_id", o.instances[0].id, "max_instances", o.max)
	return o
}

func newInstance() *instance {
	return &instance{
		id:       uuid.NewString(),
		messages: []chat.Message{},
		status:   chat.StatusIdle,
	}
}

// Create adds a new instance. At capacity it is a no-op and reports
// false.
func (o *Orchestrator) Create() (Instance, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.instances) >= o.max {
		o.logger.Debug("create ignored, at capacity", "max", o.max)
		return Instance{}, false
	}

	inst := newInstance()
	o.instances = append(o.instances, inst)
	o.logger.Info("instance created", "instance_id", inst.id, "count", len(o.instances))
	return snapshot(inst), true
}

// Remove deletes an instance and cancels every pending relay that
// names it as sender or target. Removing the last remaining instance
// or an unknown id is a no-op.
func (o *Orchestrator) Remove(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.instances) <= 1 {
		o.logger.Debug("remove ignored, last instance", "instance_id", id)
		return false
	}

	idx := -1
	for i, inst := range o.instances {
		if inst.id == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	o.instances = append(o.instances[:idx], o.instances[idx+1:]...)

	for r := range o.relays {
		if r.senderID == id || r.targetID == id {
			r.timer.Stop()
			delete(o.relays, r)
			o.logger.Debug("cancelled pending relay", "sender", r.senderID, "target", r.targetID)
		}
	}

	o.logger.Info("instance removed", "instance_id", id, "count", len(o.instances))
	return true
}

// BindModel sets the model an instance talks to. Existing messages are
// kept.
func (o *Orchestrator) BindModel(id string, model chat.Model) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	inst := o.find(id)
	if inst == nil {
		return false
	}
	inst.model = &model
	o.logger.Info("model bound", "instance_id", id, "model", model.ID)
	return true
}

// Get returns a snapshot of one instance.
func (o *Orchestrator) Get(id string) (Instance, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	inst := o.find(id)
	if inst == nil {
		return Instance{}, false
	}
	return snapshot(inst), true
}

// Instances returns snapshots of all instances in creation order.
func (o *Orchestrator) Instances() []Instance {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]Instance, len(o.instances))
	for i, inst := range o.instances {
		out[i] = snapshot(inst)
	}
	return out
}

// SetAutoChat enables or disables the relay loop. A non-positive delay
// keeps the current one.
func (o *Orchestrator) SetAutoChat(enabled bool, delay time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.autoChat = enabled
	if delay > 0 {
		o.relayDelay = delay
	}
	o.logger.Info("auto-chat updated", "enabled", enabled, "delay", o.relayDelay)
}

// AutoChat reports the current relay configuration.
func (o *Orchestrator) AutoChat() (bool, time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.autoChat, o.relayDelay
}

// Close cancels all pending relays. In-flight sends finish on their
// own; their late mutations drop against removed state as usual.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.closed = true
	for r := range o.relays {
		r.timer.Stop()
		delete(o.relays, r)
	}
	o.logger.Info("orchestrator closed")
}

// find returns the live record for id. Caller holds mu.
func (o *Orchestrator) find(id string) *instance {
	for _, inst := range o.instances {
		if inst.id == id {
			return inst
		}
	}
	return nil
}

// update applies fn to the instance if it still exists. This is the
// guard that turns async work completing after removal into a no-op.
func (o *Orchestrator) update(id string, fn func(*instance)) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	inst := o.find(id)
	if inst == nil {
		o.logger.Debug("update dropped, instance gone", "instance_id", id)
		return false
	}
	fn(inst)
	return true
}

// setStatus transitions an instance's status, refusing invalid steps.
// Caller holds mu.
func (o *Orchestrator) setStatus(inst *instance, to chat.Status) bool {
	if !inst.status.CanTransition(to) {
		o.logger.Warn("invalid status transition refused",
			"instance_id", inst.id, "from", inst.status, "to", to)
		return false
	}
	inst.status = to
	return true
}

func snapshot(inst *instance) Instance {
	msgs := make([]chat.Message, len(inst.messages))
	copy(msgs, inst.messages)
	return Instance{
		ID:       inst.id,
		Model:    inst.model,
		Messages: msgs,
		Status:   inst.status,
	}
}

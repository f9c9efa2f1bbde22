package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"

	"PolyChat/internal/chat"
)

// Send drives one user -> assistant exchange for an instance. It
// appends the user message, calls the completion provider with the
// history as of that append, appends the reply (or a synthesized error
// message), plays the reply aloud, and finally hands off to the relay
// scheduler. Preconditions that do not hold (unknown id, no model
// bound, already thinking) make the call a silent no-op.
//
// Send blocks until playback completes; callers wanting fire-and-forget
// run it in a goroutine.
func (o *Orchestrator) Send(ctx context.Context, id, text string) {
	o.mu.Lock()
	inst := o.find(id)
	if inst == nil || inst.model == nil || inst.status == chat.StatusThinking {
		o.mu.Unlock()
		o.logger.Debug("send ignored", "instance_id", id)
		return
	}

	inst.messages = append(inst.messages, chat.Message{
		Role:      chat.RoleUser,
		Content:   text,
		Timestamp: time.Now(),
	})
	o.setStatus(inst, chat.StatusThinking)

	history := make([]chat.Message, len(inst.messages))
	copy(history, inst.messages)
	modelID := inst.model.ID
	o.mu.Unlock()

	ctx, span := o.tracer.Start(ctx, "pipeline_send")
	defer span.End()

	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, o.sendTimeout)
	reply, err := o.completion.SendMessage(callCtx, modelID, history)
	cancel()

	duration := time.Since(start)
	histogram, herr := o.meter.Float64Histogram(
		"chat.send.duration",
		metric.WithDescription("Completion round-trip duration in milliseconds"),
	)
	if herr == nil {
		histogram.Record(ctx, float64(duration.Milliseconds()))
	}

	if err != nil {
		o.logger.Error("completion failed", "instance_id", id, "model", modelID, "error", err)
		if counter, cerr := o.meter.Int64Counter("chat.send.errors",
			metric.WithDescription("Completion calls that failed"),
		); cerr == nil {
			counter.Add(ctx, 1)
		}

		// Failure leaves a visible trace and never a stuck instance.
		// No playback and no relay for error messages.
		o.update(id, func(inst *instance) {
			inst.messages = append(inst.messages, chat.Message{
				Role:      chat.RoleAssistant,
				Content:   fmt.Sprintf("Error: %v", err),
				Timestamp: time.Now(),
				IsError:   true,
			})
			o.setStatus(inst, chat.StatusIdle)
		})
		return
	}

	replyText := reply.Content
	if ok := o.update(id, func(inst *instance) {
		inst.messages = append(inst.messages, chat.Message{
			Role:      chat.RoleAssistant,
			Content:   replyText,
			Timestamp: time.Now(),
		})
		o.setStatus(inst, chat.StatusSpeaking)
	}); !ok {
		// Instance removed mid-flight; drop the reply.
		return
	}

	// Playback is best effort: a speech failure is logged and does not
	// block the pipeline or suppress the relay.
	if err := o.speaker.Speak(ctx, replyText); err != nil {
		o.logger.Warn("speech output failed", "instance_id", id, "error", err)
	}

	o.update(id, func(inst *instance) {
		// Only finish the speaking phase if a relay send has not
		// already moved the instance on.
		if inst.status == chat.StatusSpeaking {
			o.setStatus(inst, chat.StatusIdle)
		}
	})

	o.scheduleRelay(id, replyText)
}

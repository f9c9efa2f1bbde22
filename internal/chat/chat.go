package chat

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Role identifies the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single chat message. Messages are immutable once
// appended to an instance's history.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	IsError   bool      `json:"is_error,omitempty"`
}

// Price is a per-token price. OpenRouter returns prices as JSON numbers
// or as strings ("0.000001"), so it accepts both on decode.
type Price float64

// UnmarshalJSON decodes a price from a JSON number or string.
func (p *Price) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*p = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return err
		}
		*p = Price(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*p = Price(f)
	return nil
}

// Pricing holds a model's per-token prices.
type Pricing struct {
	Prompt     Price `json:"prompt"`
	Completion Price `json:"completion"`
}

// Model describes a model available from the catalog provider. Catalog
// data is never mutated locally.
type Model struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Pricing       Pricing `json:"pricing"`
	ContextLength int     `json:"context_length,omitempty"`
}

// Free reports whether the model is free-tier eligible (zero prompt price).
func (m Model) Free() bool {
	return m.Pricing.Prompt == 0
}

// Status is the transient state of a chat instance.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusThinking Status = "thinking"
	StatusSpeaking Status = "speaking"
)

// CanTransition reports whether moving from s to the given status is a
// valid state machine step:
//
//	idle -> thinking            (send accepted)
//	thinking -> speaking        (completion succeeded)
//	thinking -> idle            (completion failed)
//	speaking -> idle            (playback finished)
//	speaking -> thinking        (relay arrived during playback)
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusIdle:
		return to == StatusThinking
	case StatusThinking:
		return to == StatusSpeaking || to == StatusIdle
	case StatusSpeaking:
		return to == StatusIdle || to == StatusThinking
	}
	return false
}

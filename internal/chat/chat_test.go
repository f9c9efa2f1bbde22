package chat

import (
	"encoding/json"
	"testing"
)

func TestPrice_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Price
		wantErr bool
	}{
		{name: "number", input: `0.000002`, want: 0.000002},
		{name: "zero number", input: `0`, want: 0},
		{name: "string", input: `"0.000001"`, want: 0.000001},
		{name: "zero string", input: `"0"`, want: 0},
		{name: "null", input: `null`, want: 0},
		{name: "empty string", input: `""`, want: 0},
		{name: "garbage string", input: `"abc"`, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var p Price
			err := json.Unmarshal([]byte(tc.input), &p)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Unmarshal(%s) expected error, got %v", tc.input, p)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal(%s) error: %v", tc.input, err)
			}
			if p != tc.want {
				t.Errorf("Unmarshal(%s) = %v, want %v", tc.input, p, tc.want)
			}
		})
	}
}

func TestModel_Free(t *testing.T) {
	free := Model{ID: "meta-llama/llama-3-8b:free", Pricing: Pricing{Prompt: 0}}
	if !free.Free() {
		t.Error("model with zero prompt price should be free")
	}

	paid := Model{ID: "openai/gpt-4o", Pricing: Pricing{Prompt: 0.000005}}
	if paid.Free() {
		t.Error("model with nonzero prompt price should not be free")
	}
}

func TestModel_PricingDecode(t *testing.T) {
	raw := `{"id":"x/y","name":"X Y","pricing":{"prompt":"0","completion":"0.0001"},"context_length":8192}`

	var m Model
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("Unmarshal model: %v", err)
	}
	if !m.Free() {
		t.Error("model should be free")
	}
	if m.Pricing.Completion != 0.0001 {
		t.Errorf("Completion = %v, want 0.0001", m.Pricing.Completion)
	}
	if m.ContextLength != 8192 {
		t.Errorf("ContextLength = %d, want 8192", m.ContextLength)
	}
}

func TestStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusIdle, StatusThinking, true},
		{StatusIdle, StatusSpeaking, false},
		{StatusIdle, StatusIdle, false},
		{StatusThinking, StatusSpeaking, true},
		{StatusThinking, StatusIdle, true},
		{StatusThinking, StatusThinking, false},
		{StatusSpeaking, StatusIdle, true},
		{StatusSpeaking, StatusThinking, true},
		{StatusSpeaking, StatusSpeaking, false},
	}

	for _, tc := range tests {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

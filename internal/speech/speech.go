// Package speech provides spoken playback of assistant replies by
// delegating to an external text-to-speech command.
package speech

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
)

// maxUtteranceRunes bounds how much of a reply is spoken. Very long
// replies are truncated to keep playback from running for minutes.
const maxUtteranceRunes = 500

// Speaker performs spoken playback of text, returning when playback
// has finished.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// NullSpeaker is a Speaker that does nothing. Used in server mode and
// in tests.
type NullSpeaker struct{}

func (NullSpeaker) Speak(ctx context.Context, text string) error { return nil }

// CommandSpeaker speaks text by running an external TTS binary such as
// espeak or macOS say, one process per utterance.
type CommandSpeaker struct {
	command string
	voice   string
	rate    int
	logger  *slog.Logger

	// run is swapped out by tests.
	run func(ctx context.Context, name string, args ...string) error
}

// NewCommandSpeaker creates a speaker backed by the given TTS command.
// An empty voice uses the command's default. rate is words per minute;
// zero uses the command's default.
func NewCommandSpeaker(command, voice string, rate int, logger *slog.Logger) *CommandSpeaker {
	return &CommandSpeaker{
		command: command,
		voice:   voice,
		rate:    rate,
		logger:  logger,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

// Speak runs the TTS command and waits for playback to finish.
func (s *CommandSpeaker) Speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	utterance := Truncate(text)
	args := s.args(utterance)

	s.logger.Info("speaking", "command", s.command, "chars", len(utterance))
	if err := s.run(ctx, s.command, args...); err != nil {
		return fmt.Errorf("speech synthesis failed: %w", err)
	}
	return nil
}

// args builds the command line for the configured TTS binary. espeak
// and say disagree on flag spelling; anything else gets the text only.
func (s *CommandSpeaker) args(utterance string) []string {
	var args []string
	switch s.command {
	case "say":
		if s.voice != "" {
			args = append(args, "-v", s.voice)
		}
		if s.rate > 0 {
			args = append(args, "-r", strconv.Itoa(s.rate))
		}
	default: // espeak / espeak-ng
		if s.voice != "" {
			args = append(args, "-v", s.voice)
		}
		if s.rate > 0 {
			args = append(args, "-s", strconv.Itoa(s.rate))
		}
	}
	return append(args, utterance)
}

// Truncate caps text at the utterance limit, appending an ellipsis when
// it was cut.
func Truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= maxUtteranceRunes {
		return text
	}
	return string(runes[:maxUtteranceRunes]) + "..."
}

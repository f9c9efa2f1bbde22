package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"PolyChat/internal/config"
	"PolyChat/internal/openrouter"
	"PolyChat/internal/orchestrator"
	"PolyChat/internal/server"
	"PolyChat/internal/speech"
	"PolyChat/internal/store"
	"PolyChat/internal/telemetry"
)

func main() {
	var configPath string
	flags := flag.NewFlagSet("polychat", flag.ExitOnError)
	flags.StringVar(&configPath, "config", "", "Path to TOML config file")

	defaults := config.Default()
	apiKey := flags.String("api-key", "", "OpenRouter API key (overrides stored key)")
	serve := flags.Bool("serve", false, "Run the HTTP/WebSocket server instead of the console")
	addr := flags.String("addr", defaults.Addr, "Listen address for server mode")
	dbPath := flags.String("db", defaults.DBPath, "Path to the settings database")
	maxInstances := flags.Int("max-instances", defaults.MaxInstances, "Maximum number of chat instances")
	autoChatDelay := flags.Int("auto-chat-delay", defaults.AutoChatDelayMS, "Auto-chat relay delay in milliseconds")
	sendTimeout := flags.Int("send-timeout", defaults.SendTimeoutSeconds, "Completion call timeout in seconds")
	speechEnabled := flags.Bool("speech", false, "Enable spoken playback of replies")
	speechCommand := flags.String("speech-command", defaults.SpeechCommand, "TTS command (espeak|say)")
	voice := flags.String("voice", "", "TTS voice name")
	speechRate := flags.Int("speech-rate", 0, "TTS rate in words per minute (0 = command default)")
	debug := flags.Bool("debug", false, "Enable debug logging")
	flags.Parse(os.Args[1:])

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Explicit flags win over the config file.
	set := map[string]bool{}
	flags.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["api-key"] {
		cfg.APIKey = *apiKey
	}
	if set["addr"] {
		cfg.Addr = *addr
	}
	if set["db"] {
		cfg.DBPath = *dbPath
	}
	if set["max-instances"] {
		cfg.MaxInstances = *maxInstances
	}
	if set["auto-chat-delay"] {
		cfg.AutoChatDelayMS = *autoChatDelay
	}
	if set["send-timeout"] {
		cfg.SendTimeoutSeconds = *sendTimeout
	}
	if set["speech"] {
		cfg.SpeechEnabled = *speechEnabled
	}
	if set["speech-command"] {
		cfg.SpeechCommand = *speechCommand
	}
	if set["voice"] {
		cfg.Voice = *voice
	}
	if set["speech-rate"] {
		cfg.SpeechRate = *speechRate
	}
	if set["debug"] {
		cfg.Debug = *debug
	}
	cfg.Serve = *serve

	if err := run(cfg, set); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, set map[string]bool) error {
	logger, err := telemetry.InitLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx := context.Background()
	tracer, meter, cleanup, err := telemetry.InitTelemetry(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer cleanup()

	st, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		return fmt.Errorf("failed to open settings store: %w", err)
	}
	defer st.Close()

	// Credential resolution: flag/config, then environment, then the
	// stored key. A freshly supplied key is persisted for next time.
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if cfg.APIKey == "" {
		stored, err := st.APIKey()
		if err != nil {
			logger.Warn("failed to load stored API key", "error", err)
		}
		cfg.APIKey = stored
	} else if err := st.SetAPIKey(cfg.APIKey); err != nil {
		logger.Warn("failed to persist API key", "error", err)
	}

	// Stored preferences fill in anything the flags left alone.
	if settings, ok, err := st.GetSettings(); err != nil {
		logger.Warn("failed to load stored settings", "error", err)
	} else if ok {
		if !set["auto-chat-delay"] && settings.AutoChatDelayMS > 0 {
			cfg.AutoChatDelayMS = settings.AutoChatDelayMS
		}
		if !set["voice"] && settings.Voice != "" {
			cfg.Voice = settings.Voice
		}
	}

	client := openrouter.NewClient(cfg.APIKey, logger, tracer, meter)

	var speaker speech.Speaker = speech.NullSpeaker{}
	if cfg.SpeechEnabled {
		speaker = speech.NewCommandSpeaker(cfg.SpeechCommand, cfg.Voice, cfg.SpeechRate, logger)
	}

	orch := orchestrator.New(client, speaker, logger, tracer, meter,
		orchestrator.WithMaxInstances(cfg.MaxInstances),
		orchestrator.WithAutoChatDelay(time.Duration(cfg.AutoChatDelayMS)*time.Millisecond),
		orchestrator.WithSendTimeout(time.Duration(cfg.SendTimeoutSeconds)*time.Second),
	)
	defer orch.Close()

	if cfg.Serve {
		srv := server.New(orch, client, logger)
		logger.Info("serving HTTP API", "addr", cfg.Addr)
		fmt.Printf("PolyChat listening on %s\n", cfg.Addr)
		return http.ListenAndServe(cfg.Addr, srv.Handler())
	}

	r := newREPL(orch, client, st, logger)
	return r.run(ctx)
}

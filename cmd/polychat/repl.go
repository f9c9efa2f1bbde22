package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"PolyChat/internal/chat"
	"PolyChat/internal/openrouter"
	"PolyChat/internal/orchestrator"
	"PolyChat/internal/store"
)

// repl is the console front-end: a thin driver over the orchestrator
// for use without a browser.
type repl struct {
	orch    *orchestrator.Orchestrator
	client  *openrouter.Client
	store   *store.Store
	logger  *slog.Logger
	models  []chat.Model
	current int // ordinal (1-based) of the instance plain input goes to
}

func newREPL(orch *orchestrator.Orchestrator, client *openrouter.Client, st *store.Store, logger *slog.Logger) *repl {
	return &repl{orch: orch, client: client, store: st, logger: logger, current: 1}
}

func (r *repl) run(ctx context.Context) error {
	fmt.Println("=== PolyChat ===")
	fmt.Println("Type /help for commands, /quit to exit")
	fmt.Println()

	if err := r.fetchModels(ctx); err != nil {
		// Banner-level condition: shown once, not stored anywhere.
		fmt.Printf("Warning: %v\n\n", err)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Printf("[%d] You: ", r.current)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldQuit, err := r.handleCommand(ctx, input)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				r.logger.Error("command error", "error", err)
			}
			if shouldQuit {
				break
			}
			continue
		}

		r.send(ctx, input)
	}

	fmt.Println("Goodbye!")
	return nil
}

func (r *repl) fetchModels(ctx context.Context) error {
	models, err := r.client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch models: %w", err)
	}
	r.models = openrouter.FreeModels(models)
	fmt.Printf("Loaded %d free models (%d total)\n", len(r.models), len(models))
	return nil
}

// send drives a full exchange on the current instance and prints the
// reply once the pipeline has finished.
func (r *repl) send(ctx context.Context, text string) {
	id, ok := r.instanceID(r.current)
	if !ok {
		fmt.Println("No such instance.")
		return
	}

	before, _ := r.orch.Get(id)
	if before.Model == nil {
		fmt.Println("Bind a model first: /bind", r.current, "<model-id>")
		return
	}

	r.orch.Send(ctx, id, text)

	after, ok := r.orch.Get(id)
	if !ok || len(after.Messages) <= len(before.Messages) {
		fmt.Println("(no reply)")
		return
	}
	last := after.Messages[len(after.Messages)-1]
	if last.IsError {
		fmt.Printf("Bot: %s\n\n", last.Content)
		return
	}
	fmt.Printf("Bot (%s): %s\n\n", after.Model.Name, last.Content)
}

func (r *repl) handleCommand(ctx context.Context, cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}

	switch parts[0] {
	case "/quit", "/exit":
		return true, nil

	case "/add":
		inst, ok := r.orch.Create()
		if !ok {
			fmt.Println("Instance limit reached.")
			return false, nil
		}
		fmt.Printf("Added instance %d (%s)\n", len(r.orch.Instances()), inst.ID)
		return false, nil

	case "/remove":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: /remove <n>")
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil {
			return false, fmt.Errorf("usage: /remove <n>")
		}
		id, ok := r.instanceID(n)
		if !ok {
			return false, fmt.Errorf("no instance %d", n)
		}
		if !r.orch.Remove(id) {
			fmt.Println("Cannot remove the last instance.")
			return false, nil
		}
		if r.current > len(r.orch.Instances()) {
			r.current = 1
		}
		fmt.Printf("Removed instance %d\n", n)
		return false, nil

	case "/use":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: /use <n>")
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil {
			return false, fmt.Errorf("usage: /use <n>")
		}
		if _, ok := r.instanceID(n); !ok {
			return false, fmt.Errorf("no instance %d", n)
		}
		r.current = n
		return false, nil

	case "/bind":
		if len(parts) < 3 {
			return false, fmt.Errorf("usage: /bind <n> <model-id>")
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil {
			return false, fmt.Errorf("usage: /bind <n> <model-id>")
		}
		id, ok := r.instanceID(n)
		if !ok {
			return false, fmt.Errorf("no instance %d", n)
		}
		model, ok := r.findModel(parts[2])
		if !ok {
			return false, fmt.Errorf("unknown model: %s (try /models)", parts[2])
		}
		r.orch.BindModel(id, model)
		fmt.Printf("Instance %d now talks to %s\n", n, model.ID)
		return false, nil

	case "/models":
		if err := r.fetchModels(ctx); err != nil {
			return false, err
		}
		for i, m := range r.models {
			ctxLen := ""
			if m.ContextLength > 0 {
				ctxLen = fmt.Sprintf(" (%dk context)", m.ContextLength/1000)
			}
			fmt.Printf("%d. %s - %s%s\n", i+1, m.ID, m.Name, ctxLen)
		}
		fmt.Println()
		return false, nil

	case "/autochat":
		if len(parts) < 2 {
			enabled, delay := r.orch.AutoChat()
			fmt.Printf("Auto-chat: %v (delay %s)\n", enabled, delay)
			return false, nil
		}
		enabled := parts[1] == "on"
		delay := time.Duration(0)
		if len(parts) >= 3 {
			ms, err := strconv.Atoi(parts[2])
			if err != nil {
				return false, fmt.Errorf("usage: /autochat on|off [delay-ms]")
			}
			delay = time.Duration(ms) * time.Millisecond
			settings, _, err := r.store.GetSettings()
			if err == nil {
				settings.AutoChatDelayMS = ms
				err = r.store.SetSettings(settings)
			}
			if err != nil {
				r.logger.Warn("failed to persist settings", "error", err)
			}
		}
		r.orch.SetAutoChat(enabled, delay)
		fmt.Printf("Auto-chat %s\n", parts[1])
		return false, nil

	case "/key":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: /key <api-key>")
		}
		r.client.SetAPIKey(parts[1])
		if err := r.store.SetAPIKey(parts[1]); err != nil {
			r.logger.Warn("failed to persist API key", "error", err)
		}
		fmt.Println("API key updated.")
		return false, r.fetchModels(ctx)

	case "/instances":
		for i, inst := range r.orch.Instances() {
			modelName := "(no model)"
			if inst.Model != nil {
				modelName = inst.Model.ID
			}
			marker := " "
			if i+1 == r.current {
				marker = "*"
			}
			fmt.Printf("%s%d. %s - %s [%s] %d messages\n",
				marker, i+1, inst.ID, modelName, inst.Status, len(inst.Messages))
		}
		fmt.Println()
		return false, nil

	case "/help":
		fmt.Println("Available commands:")
		fmt.Println("  /quit, /exit            - Exit PolyChat")
		fmt.Println("  /add                    - Add a chat instance (up to the limit)")
		fmt.Println("  /remove <n>             - Remove instance n")
		fmt.Println("  /use <n>                - Route typed input to instance n")
		fmt.Println("  /bind <n> <model-id>    - Bind instance n to a model")
		fmt.Println("  /models                 - List free models from the catalog")
		fmt.Println("  /autochat on|off [ms]   - Toggle auto-chat relay between instances")
		fmt.Println("  /key <api-key>          - Set and store the OpenRouter API key")
		fmt.Println("  /instances              - Show instance statuses")
		fmt.Println("  /help                   - Show this help message")
		return false, nil

	default:
		return false, nil
	}
}

// instanceID maps a 1-based ordinal to an instance id.
func (r *repl) instanceID(n int) (string, bool) {
	instances := r.orch.Instances()
	if n < 1 || n > len(instances) {
		return "", false
	}
	return instances[n-1].ID, true
}

func (r *repl) findModel(id string) (chat.Model, bool) {
	for _, m := range r.models {
		if m.ID == id {
			return m, true
		}
	}
	return chat.Model{}, false
}

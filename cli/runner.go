// Command execution for CLI commands.
//
// Information Hiding:
// - Session wiring hidden (provider, guard, registry, storage, audit)
// - Output formatting hidden
// - History persistence hidden

package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/warden-agent/warden/agent"
	"github.com/warden-agent/warden/audit"
	"github.com/warden-agent/warden/config"
	"github.com/warden-agent/warden/llm"
	"github.com/warden-agent/warden/netx"
	"github.com/warden-agent/warden/security"
	"github.com/warden-agent/warden/storage"
	"github.com/warden-agent/warden/tools"
)

// Options holds CLI execution options.
type Options struct {
	Provider  string
	MaxIter   int
	Verbose   bool
	SessionID string
	DBPath    string
}

// DefaultOptions returns default CLI options.
func DefaultOptions() Options {
	return Options{
		MaxIter: 10,
		Verbose: false,
	}
}

// session bundles everything one conversation needs.
type session struct {
	id       string
	agent    *agent.Agent
	store    *storage.SqliteStore
	settings config.Settings
}

func (s *session) close() {
	if s.store != nil {
		_ = s.store.Close()
	}
}

// Run executes a single turn and prints the result. The returned
// reason maps to the process exit code in the owning binary.
func Run(ctx context.Context, task string, opts Options) (agent.TerminationReason, error) {
	sess, err := buildSession(ctx, opts)
	if err != nil {
		return agent.Failed, err
	}
	defer sess.close()

	result, err := sess.runTurn(ctx, task)
	if err != nil {
		return agent.Failed, err
	}
	printResult(result, opts.Verbose)
	return result.Reason, nil
}

// runTurn executes one turn on top of the stored history and persists
// the updated conversation, so a resumed session keeps its past turns.
func (s *session) runTurn(ctx context.Context, task string) (agent.Result, error) {
	history, err := s.store.Load(ctx, s.id)
	if err != nil {
		return agent.Result{}, fmt.Errorf("failed to load history: %w", err)
	}

	result := s.agent.RunTurn(ctx, task, history)
	if err := s.store.Save(ctx, s.id, result.Conversation); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to save history: %v\n", err)
	}
	return result, nil
}

// Chat starts an interactive chat session. History persists across
// runs under the session id.
func Chat(ctx context.Context, opts Options) error {
	sess, err := buildSession(ctx, opts)
	if err != nil {
		return err
	}
	defer sess.close()

	history, err := sess.store.Load(ctx, sess.id)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	if len(history) > 0 {
		fmt.Printf("Resuming session '%s' (%d messages)\n\n", sess.id, len(history))
	}

	fmt.Println("Type a task, /help for commands, /quit to exit.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch input {
		case "/quit", "/exit", "exit", "quit":
			return scanner.Err()
		case "/help":
			printChatHelp()
			continue
		case "/tools":
			if err := ListTools(opts.Verbose); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
			continue
		}
		if strings.HasPrefix(input, "/") {
			fmt.Printf("Unknown command %s. Try /help.\n\n", input)
			continue
		}

		result, err := sess.runTurn(ctx, input)
		if err != nil {
			return err
		}
		fmt.Println()
		printResult(result, opts.Verbose)
	}

	return scanner.Err()
}

// ListTools prints the closed tool set.
func ListTools(verbose bool) error {
	registry, err := listOnlyRegistry()
	if err != nil {
		return err
	}
	printRegistry(registry, verbose)
	return nil
}

// buildSession wires provider, resilience, security, tools, storage
// and audit into an agent. Settings are snapshotted here and never
// re-read during the session.
func buildSession(ctx context.Context, opts Options) (*session, error) {
	if opts.Provider == "" {
		return nil, fmt.Errorf("--provider is required for this command")
	}

	settings, err := config.New(opts.Provider)
	if err != nil {
		return nil, err
	}

	provider, err := createProvider(settings)
	if err != nil {
		return nil, err
	}

	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = settings.Storage.DatabasePath
	}
	store, err := openStore(dbPath)
	if err != nil {
		return nil, err
	}

	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	sink := buildAuditSink(store, opts.Verbose)

	validator := security.NewValidator(settings.Security.Policy(), "", security.NewSessionTrust())
	guard := tools.NewGuard(validator).
		WithApproval(TerminalApproval(os.Stdin, os.Stdout)).
		WithAudit(sink, sessionID)
	guard.AllowSuspiciousOverride = settings.Security.AllowSuspiciousOverride

	limits := tools.Limits{
		TimeoutSecs:    settings.Tools.TimeoutSecs,
		MaxFileSize:    settings.Tools.MaxFileSize,
		FetchDomains:   settings.Tools.FetchDomains,
		ShellAllowlist: settings.Tools.ShellAllowlist,
	}
	registry, err := tools.WithDefaults(guard, store, sessionID, limits)
	if err != nil {
		store.Close()
		return nil, err
	}

	dispatcher := tools.NewDispatcher(registry, time.Duration(settings.Tools.TimeoutSecs)*time.Second).
		WithAudit(sink, sessionID)

	retrier := netx.NewRetrier(settings.Network.MaxRetries).
		WithBackoff(settings.Network.BackoffBase, settings.Network.BackoffMax)
	limiter := netx.NewRateLimiter(settings.Network.RequestsPerMinute, settings.Network.TokensPerMinute)
	retrier.WithLimiter(limiter)

	client := llm.NewClient(provider).
		WithRetrier(retrier).
		WithLimiter(limiter).
		WithAudit(sink, sessionID)

	maxIter := opts.MaxIter
	if maxIter <= 0 {
		maxIter = settings.Agent.MaxIterations
	}

	cfg := agent.Config{
		SystemPrompt:  systemPrompt(ctx, store, sessionID),
		MaxIterations: maxIter,
		WallClock:     settings.Agent.WallClock,
	}

	ag := agent.New(cfg, client, dispatcher).WithAudit(sink, sessionID)
	if opts.Verbose {
		ag.WithProgress(func(text string) {
			fmt.Printf("\n%s\n", text)
		})
	}

	return &session{
		id:       sessionID,
		agent:    ag,
		store:    store,
		settings: settings,
	}, nil
}

// createProvider builds the model provider from a settings snapshot.
func createProvider(settings config.Settings) (llm.Provider, error) {
	providerType, err := llm.ParseProviderType(settings.LLM.Provider)
	if err != nil {
		return nil, err
	}

	apiKey, err := config.APIKeyFor(settings.LLM.Provider)
	if err != nil {
		return nil, err
	}

	return providerType.
		Model(settings.LLM.Model).
		MaxTokens(settings.LLM.MaxTokens).
		Temperature(float32(settings.LLM.Temperature)).
		APIKey(apiKey)
}

// openStore opens the configured database, in-memory when no path is
// set.
func openStore(dbPath string) (*storage.SqliteStore, error) {
	if dbPath == "" {
		store, err := storage.NewSqliteInMemory()
		if err != nil {
			return nil, fmt.Errorf("failed to open in-memory database: %w", err)
		}
		return store, nil
	}
	store, err := storage.OpenSqlite(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}

// buildAuditSink fans events out to stderr logging and the persistent
// trail.
func buildAuditSink(store *storage.SqliteStore, verbose bool) audit.Sink {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return audit.MultiSink{audit.NewSlogSink(logger), store}
}

// systemPrompt builds the system prompt, folding in remembered facts.
func systemPrompt(ctx context.Context, memories storage.MemoryStore, sessionID string) string {
	workdir, err := os.Getwd()
	if err != nil {
		workdir = "."
	}

	prompt := fmt.Sprintf(
		`You are Warden, a coding assistant operating in %s.

Use the available tools to inspect and modify files, search, run commands and fetch web content. Paths outside the trusted project directory may require the user's approval; a denial marked as a security decision is final for this request, not a transient failure. When the task is done, answer in plain text without calling further tools.`,
		workdir,
	)

	facts, err := memories.Facts(ctx, sessionID, 10)
	if err != nil || len(facts) == 0 {
		return prompt
	}

	var lines []string
	for _, f := range facts {
		lines = append(lines, "- "+f.Content)
	}
	return prompt + "\n\nThings you remember from earlier:\n" + strings.Join(lines, "\n")
}

// printResult renders a turn outcome.
func printResult(result agent.Result, verbose bool) {
	switch result.Reason {
	case agent.Completed:
		fmt.Printf("%s\n\n", result.FinalText)
	case agent.Exhausted:
		if result.FinalText != "" {
			fmt.Printf("%s\n\n", result.FinalText)
		}
		fmt.Fprintf(os.Stderr, "Stopped: %v\n", result.Err)
	case agent.Failed:
		fmt.Fprintf(os.Stderr, "Error: %v\n", result.Err)
	}

	if verbose {
		fmt.Printf("(%d iterations, %d tokens, %s)\n\n",
			result.Iterations, result.Usage.TotalTokens, result.Elapsed.Round(time.Millisecond))
	}
}

func printChatHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /tools   list the available tools")
	fmt.Println("  /help    show this help")
	fmt.Println("  /quit    exit the chat")
	fmt.Println()
}

// listOnlyRegistry builds a registry purely for display. The guard
// denies everything; no tool is executed through it.
func listOnlyRegistry() (*tools.Registry, error) {
	validator := security.NewValidator(security.Policy{}, "", nil)
	guard := tools.NewGuard(validator)
	return tools.WithDefaults(guard, storage.NewInMemoryStore(), "list", tools.DefaultLimits())
}

func printRegistry(registry *tools.Registry, verbose bool) {
	for _, meta := range registry.List() {
		fmt.Printf("%-22s %s\n", meta.Name, meta.Description)
		if !verbose {
			continue
		}
		for _, p := range meta.Parameters {
			required := "optional"
			if p.Required {
				required = "required"
			}
			fmt.Printf("    - %s (%s, %s): %s\n", p.Name, p.ParamType, required, p.Description)
		}
	}
	fmt.Println()
}

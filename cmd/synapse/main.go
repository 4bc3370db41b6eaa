// Command synapse is the agent core's line-oriented front end: it wires
// config, provider, storage, and tool-router components together and
// drives internal/agentloop one user turn at a time over stdin/stdout.
// Grounded on cmd/symb/main.go's service wiring, replacing the teacher's
// bubbletea TUI (internal/tui, now retired) and its one-MCP-tool-per-
// concern Proxy surface with the single routed Bash tool.
package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/synapse-agent/synapse/internal/agentloop"
	"github.com/synapse-agent/synapse/internal/builtin"
	"github.com/synapse-agent/synapse/internal/chat"
	"github.com/synapse-agent/synapse/internal/config"
	"github.com/synapse-agent/synapse/internal/delta"
	"github.com/synapse-agent/synapse/internal/highlight"
	"github.com/synapse-agent/synapse/internal/lsp"
	"github.com/synapse-agent/synapse/internal/mcp"
	"github.com/synapse-agent/synapse/internal/mcptools"
	"github.com/synapse-agent/synapse/internal/metrics"
	"github.com/synapse-agent/synapse/internal/prompt"
	"github.com/synapse-agent/synapse/internal/provider"
	"github.com/synapse-agent/synapse/internal/router"
	"github.com/synapse-agent/synapse/internal/shell"
	"github.com/synapse-agent/synapse/internal/store"
	"github.com/synapse-agent/synapse/internal/subagent"
	"github.com/synapse-agent/synapse/internal/toolset"
	"github.com/synapse-agent/synapse/internal/treesitter"
	"github.com/synapse-agent/synapse/internal/usage"
)

func main() {
	if err := setupFileLogging(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to setup logging: %v\n", err)
	}

	flagSession := flag.String("s", "", "resume a session by ID")
	flagList := flag.Bool("l", false, "list sessions")
	flagContinue := flag.Bool("c", false, "continue most recent session")
	flagMetricsAddr := flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")
	flag.StringVar(flagSession, "session", "", "resume a session by ID")
	flag.BoolVar(flagList, "list", false, "list sessions")
	flag.BoolVar(flagContinue, "continue", false, "continue most recent session")
	flag.Parse()

	configPath := filepath.Join(".", "config.toml")
	if dataDir, err := config.DataDir(); err == nil {
		dataDirPath := filepath.Join(dataDir, "config.toml")
		if _, err := os.Stat(dataDirPath); err == nil {
			configPath = dataDirPath
		}
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	creds, err := config.LoadCredentials()
	if err != nil {
		fmt.Printf("Error loading credentials: %v\n", err)
		os.Exit(1)
	}

	registry := buildRegistry(cfg, creds)
	providerName, providerCfg := resolveProvider(cfg, registry)

	prov, err := registry.Create(providerName, providerCfg.Model, provider.Options{
		Temperature: providerCfg.Temperature,
	})
	if err != nil {
		fmt.Printf("Error creating provider: %v\n", err)
		os.Exit(1)
	}
	defer prov.Close()

	m := metrics.New()
	if *flagMetricsAddr != "" {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			if err := metrics.Serve(ctx, *flagMetricsAddr); err != nil {
				log.Warn().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	svc, err := setupServices(cfg, creds)
	if err != nil {
		fmt.Printf("Error setting up services: %v\n", err)
		os.Exit(1)
	}
	defer svc.close()

	if *flagList {
		listSessions(svc.transcripts)
		return
	}

	sessionID := resolveSessionID(*flagSession, *flagContinue, svc.transcripts)
	if err := svc.transcripts.EnsureSession(sessionID); err != nil {
		log.Warn().Err(err).Msg("failed to register session")
	}
	history := loadHistory(sessionID, svc.transcripts)
	if len(history) == 0 {
		systemPrompt := prompt.BuildSystemPrompt(providerCfg.Model, svc.tsIndex)
		history = []chat.Message{{Role: chat.RoleSystem, Content: systemPrompt, CreatedAt: time.Now()}}
	}
	if svc.deltaTracker != nil {
		svc.deltaTracker.SetSession(sessionID)
	}

	ts := buildRootToolset(svc, prov, providerName)

	fmt.Printf("synapse session %s (provider=%s model=%s)\n", sessionID, providerName, providerCfg.Model)
	runREPL(svc, prov, providerName, providerCfg, cfg, ts, sessionID, history, m)
}

// runREPL reads one line of user input at a time, drives the agent loop to
// completion, persists the resulting turns, and prints the final assistant
// message.
func runREPL(svc services, prov provider.Provider, providerName string, providerCfg config.ProviderConfig, cfg *config.Config, ts *toolset.Toolset, sessionID string, history []chat.Message, m *metrics.Metrics) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	tokens := usage.New(cfg.Limits.MaxRoundsKept)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		if line == "" {
			continue
		}

		history = append(history, chat.Message{Role: chat.RoleUser, Content: line, CreatedAt: time.Now()})
		if err := svc.transcripts.Append(sessionID, toRecord(history[len(history)-1])); err != nil {
			log.Warn().Err(err).Msg("failed to persist user turn")
		}

		before := len(history)
		res, err := agentloop.Run(context.Background(), agentloop.Options{
			Provider:          prov,
			Toolset:           ts,
			History:           history,
			Scratchpad:        svc.scratchpad,
			MaxIterations:     0,
			SessionID:         sessionID,
			MaxParallelTasks:  cfg.Limits.MaxParallelTasks,
			FailureWindowSize: cfg.Limits.FailureWindowSize,
			FailureThreshold:  cfg.Limits.FailureThreshold,
			OffloadStore:      svc.offload,
			MaxTokens:         cfg.Limits.MaxTokens,
			OffloadScanRatio:  cfg.Limits.OffloadScanRatio,
			OffloadMinChars:   cfg.Limits.OffloadMinChars,
			EndHooks: []agentloop.EndHook{
				func(ctx context.Context, snap agentloop.EndSnapshot) error {
					log.Info().Str("session", snap.SessionID).Int("messages", len(snap.Messages)).Msg("conversation turn ended")
					return nil
				},
			},
			Callbacks: agentloop.Callbacks{
				OnToolResult: func(r chat.ToolResult) {
					outcome := "ok"
					if r.IsError {
						outcome = "error"
					}
					m.ToolCallSettled(router.ToolName, outcome, 0)
				},
				OnUsage: func(in, out int) {
					m.RecordLLMRequest(providerName, providerCfg.Model, 0, in, out)
					tokens.Record(usage.Round{InputTokens: in, OutputTokens: out})
				},
			},
		})
		if err != nil {
			fmt.Printf("agent error: %v\n", err)
			continue
		}
		m.RecordIteration(res.StopReason)

		for _, msg := range res.History[before:] {
			if err := svc.transcripts.Append(sessionID, toRecord(msg)); err != nil {
				log.Warn().Err(err).Msg("failed to persist turn")
			}
		}
		history = res.History

		if final := lastAssistantText(history); final != "" {
			fmt.Println(highlight.Highlight(final, "markdown", cfg.UI.SyntaxThemeOrDefault(), ""))
		}
		totals := tokens.Totals()
		fmt.Printf("[tokens: %d in / %d out this session]\n", totals.InputTokens, totals.OutputTokens)
	}
}

func lastAssistantText(history []chat.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == chat.RoleAssistant && history[i].Content != "" {
			return history[i].Content
		}
	}
	return ""
}

func toRecord(msg chat.Message) store.TranscriptRecord {
	var toolCalls json.RawMessage
	if len(msg.ToolCalls) > 0 {
		if b, err := json.Marshal(msg.ToolCalls); err == nil {
			toolCalls = b
		}
	}
	return store.TranscriptRecord{
		Role:         string(msg.Role),
		Content:      msg.Content,
		Reasoning:    msg.Reasoning,
		ToolCalls:    toolCalls,
		ToolCallID:   msg.ToolCallID,
		InputTokens:  msg.InputTokens,
		OutputTokens: msg.OutputTokens,
		CreatedAt:    msg.CreatedAt,
	}
}

func toMessage(rec store.TranscriptRecord) chat.Message {
	var toolCalls []chat.ToolCall
	if len(rec.ToolCalls) > 0 {
		_ = json.Unmarshal(rec.ToolCalls, &toolCalls)
	}
	return chat.Message{
		Role:         chat.Role(rec.Role),
		Content:      rec.Content,
		Reasoning:    rec.Reasoning,
		ToolCalls:    toolCalls,
		ToolCallID:   rec.ToolCallID,
		InputTokens:  rec.InputTokens,
		OutputTokens: rec.OutputTokens,
		CreatedAt:    rec.CreatedAt,
	}
}

func buildRegistry(cfg *config.Config, creds *config.Credentials) *provider.Registry {
	registry := provider.NewRegistry()
	for name, providerCfg := range cfg.Providers {
		switch providerCfg.TypeOrDefault() {
		case "zen":
			registry.RegisterFactory(name, provider.NewZenFactory(name, creds.GetAPIKey(name), providerCfg.Endpoint))
		case "vllm":
			registry.RegisterFactory(name, provider.NewVLLMFactory(name, providerCfg.Endpoint, creds.GetAPIKey(name)))
		case "anthropic":
			registry.RegisterFactory(name, provider.NewAnthropicFactory(name, providerCfg.Endpoint, creds.GetAPIKey(name)))
		default:
			registry.RegisterFactory(name, provider.NewOllamaFactory(name, providerCfg.Endpoint))
		}
	}
	return registry
}

func resolveProvider(cfg *config.Config, registry *provider.Registry) (string, config.ProviderConfig) {
	name := cfg.DefaultProvider
	if name == "" {
		providers := registry.List()
		if len(providers) == 0 {
			fmt.Println("Error: No providers configured")
			os.Exit(1)
		}
		name = providers[0]
	}
	pcfg, ok := cfg.Providers[name]
	if !ok {
		fmt.Printf("Error: Provider %q not found\n", name)
		os.Exit(1)
	}
	return name, pcfg
}

type services struct {
	proxy        *mcp.Proxy
	lspManager   *lsp.Manager
	webCache     *store.Cache
	transcripts  *store.TranscriptStore
	offload      *store.OffloadStore
	fileTracker  *builtin.FileReadTracker
	deltaTracker *delta.Tracker
	scratchpad   *builtin.Scratchpad
	rootSession  *shell.Session
	tsIndex      *treesitter.Index
	skillsDir    string
}

func (s services) close() {
	s.proxy.Close()
	s.lspManager.StopAll(context.Background())
	s.rootSession.Close()
	if s.webCache != nil {
		s.webCache.Close()
	}
}

func setupServices(cfg *config.Config, creds *config.Credentials) (services, error) {
	var mcpClient mcp.UpstreamClient
	if cfg.MCP.Upstream != "" {
		mcpClient = mcp.NewClient(cfg.MCP.Upstream)
	} else {
		mcpClient = mcp.NewStubClient()
	}
	proxy := mcp.NewProxy(mcpClient)
	if err := proxy.Initialize(context.Background()); err != nil {
		fmt.Printf("Warning: MCP init failed: %v\n", err)
	}
	proxy.RegisterTool(mcptools.NewGitStatusTool(), mcptools.MakeGitStatusHandler())
	proxy.RegisterTool(mcptools.NewGitDiffTool(), mcptools.MakeGitDiffHandler())

	dataDir, err := config.EnsureDataDir()
	if err != nil {
		return services{}, fmt.Errorf("ensure data dir: %w", err)
	}

	cacheTTL := time.Duration(cfg.Cache.CacheTTLOrDefault()) * time.Hour
	webCache, err := store.Open(filepath.Join(dataDir, "cache.db"), cacheTTL)
	if err != nil {
		return services{}, fmt.Errorf("open cache: %w", err)
	}

	proxy.RegisterTool(mcptools.NewWebFetchTool(), mcptools.MakeWebFetchHandler(webCache))
	exaKey := creds.GetAPIKey("exa_ai")
	proxy.RegisterTool(mcptools.NewWebSearchTool(), mcptools.MakeWebSearchHandler(webCache, exaKey, ""))

	transcripts, err := store.NewTranscriptStore(filepath.Join(dataDir, "transcripts"), webCache)
	if err != nil {
		return services{}, fmt.Errorf("open transcript store: %w", err)
	}
	offload, err := store.NewOffloadStore(filepath.Join(dataDir, "offload"))
	if err != nil {
		return services{}, fmt.Errorf("open offload store: %w", err)
	}

	lspManager := lsp.NewManager()
	deltaTracker := delta.New(webCache.DB())

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	tsIndex := treesitter.NewIndex(cwd)
	if err := tsIndex.Build(); err != nil {
		log.Warn().Err(err).Msg("tree-sitter index build failed")
	}

	rootSession := shell.NewSession(cwd, shell.DefaultBlockFuncs())

	return services{
		proxy:        proxy,
		lspManager:   lspManager,
		webCache:     webCache,
		transcripts:  transcripts,
		offload:      offload,
		fileTracker:  builtin.NewFileReadTracker(),
		deltaTracker: deltaTracker,
		scratchpad:   builtin.NewScratchpad(),
		rootSession:  rootSession,
		tsIndex:      tsIndex,
		skillsDir:    filepath.Join(dataDir, "skills"),
	}, nil
}

// buildRootToolset wires every builtin handler, the MCP/skill/task
// extensions, and the single Bash tool for the root agent — the
// unrestricted counterpart to router.ToolFactory's permission-scoped
// sub-agent construction.
func buildRootToolset(svc services, prov provider.Provider, providerName string) *toolset.Toolset {
	root, err := os.Getwd()
	if err != nil {
		root = "."
	}

	r := &router.Router{
		Session: svc.rootSession,
		Builtins: map[string]router.BuiltinHandler{
			"read":      (&builtin.ReadHandler{Root: root, Tracker: svc.fileTracker, LSPManager: svc.lspManager, TSIndex: svc.tsIndex}).Handle,
			"write":     (&builtin.WriteHandler{Root: root, LSPManager: svc.lspManager, TSIndex: svc.tsIndex, DeltaTracker: svc.deltaTracker}).Handle,
			"edit":      (&builtin.EditHandler{Root: root, Tracker: svc.fileTracker, LSPManager: svc.lspManager, TSIndex: svc.tsIndex, DeltaTracker: svc.deltaTracker}).Handle,
			"glob":      (&builtin.GlobHandler{Root: root}).Handle,
			"search":    (&builtin.SearchHandler{Root: root}).Handle,
			"bash":      (&builtin.BashHandler{Session: svc.rootSession}).Handle,
			"TodoWrite": (&builtin.TodoWriteHandler{Pad: svc.scratchpad}).Handle,
		},
		SkillLoad:        router.NewSkillLoadHandler(svc.skillsDir),
		SkillTwoColonExt: router.NewSkillExtension(svc.skillsDir),
		MCPExtension:     router.NewMCPExtension(svc.proxy),
	}

	runner := &subagent.Runner{
		Provider: prov,
		Tools: &router.ToolFactory{
			Root:         root,
			LSPManager:   svc.lspManager,
			TSIndex:      svc.tsIndex,
			DeltaTracker: svc.deltaTracker,
			MCPProxy:     svc.proxy,
			SkillsDir:    svc.skillsDir,
		},
	}
	r.TaskExtension = router.NewTaskExtension(runner, 0)

	ts := toolset.New()
	ts.Register(toolset.Definition{
		Name:        router.ToolName,
		Description: "Run a shell command, or dispatch to a builtin/extension by its command string.",
		InputSchema: []byte(router.Schema),
	}, r.Handle)
	return ts
}

func newSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		log.Warn().Err(err).Msg("failed to read random bytes for session id")
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

func setupFileLogging() error {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	dataDir, err := config.DataDir()
	if err != nil {
		return err
	}

	logDir := filepath.Join(dataDir, "logs")
	if err := os.MkdirAll(logDir, 0750); err != nil {
		return err
	}

	logFile := filepath.Join(logDir, "synapse.log")
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	log.Logger = log.Output(file)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	return nil
}

func listSessions(ts *store.TranscriptStore) {
	sessions, err := ts.ListSessions()
	if err != nil {
		fmt.Printf("Error listing sessions: %v\n", err)
		return
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions found")
		return
	}
	for _, s := range sessions {
		fmt.Printf("%s  %s\n", s.ID, s.Updated.Format("2006-01-02 15:04"))
	}
}

func resolveSessionID(flagSession string, flagContinue bool, ts *store.TranscriptStore) string {
	switch {
	case flagSession != "":
		return flagSession
	case flagContinue:
		sessions, err := ts.ListSessions()
		if err != nil || len(sessions) == 0 {
			fmt.Println("No sessions to continue")
			os.Exit(1)
		}
		return sessions[0].ID
	default:
		return newSessionID()
	}
}

func loadHistory(sessionID string, ts *store.TranscriptStore) []chat.Message {
	records, err := ts.Load(sessionID)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load session history")
		return nil
	}
	out := make([]chat.Message, 0, len(records))
	for _, rec := range records {
		out = append(out, toMessage(rec))
	}
	return out
}

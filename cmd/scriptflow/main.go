// scriptflow runs the agent loop as a terminal chat: each line you type
// is one conversation turn, and any powershell block the model emits is
// validated and executed through the configured backend.
//
// Usage:
//
//	scriptflow chat                        # start a chat with defaults
//	scriptflow chat --config config.yaml   # use a config file
//	scriptflow health --config config.yaml # probe provider and backend
//	scriptflow version
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/scriptflow/agent"
	"github.com/BaSui01/scriptflow/config"
	"github.com/BaSui01/scriptflow/conversation"
	"github.com/BaSui01/scriptflow/executor"
	"github.com/BaSui01/scriptflow/internal/metrics"
	"github.com/BaSui01/scriptflow/llm"
	"github.com/BaSui01/scriptflow/tokenizer"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "chat":
		runChat(os.Args[2:])
	case "health":
		runHealth(os.Args[2:])
	case "version":
		fmt.Printf("scriptflow %s (%s)\n", Version, GitCommit)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runChat(args []string) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	conversationID := fs.String("conversation", "", "conversation id to resume (default: a fresh one)")
	metricsAddr := fs.String("metrics-addr", "", "serve prometheus metrics on this address (e.g. :9090)")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := cfg.Log.BuildLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector("scriptflow", registry)
	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, registry, logger)
	}

	tok := tokenizer.NewTiktoken(cfg.LLM.Model)

	store, cleanup, err := buildStore(cfg.Conversation, tok)
	if err != nil {
		logger.Fatal("build conversation store", zap.Error(err))
	}
	defer cleanup()

	backend, err := executor.New(cfg.Executor, logger, collector)
	if err != nil {
		logger.Fatal("build execution backend", zap.Error(err))
	}

	provider := llm.NewOpenAIProvider(cfg.LLM, logger)
	orchestrator := agent.New(cfg.Agent, provider, store, backend, tok, collector, logger)

	convID := *conversationID
	if convID == "" {
		convID = uuid.NewString()
	}

	logger.Info("chat started",
		zap.String("conversation_id", convID),
		zap.String("backend", backend.Name()),
		zap.String("model", cfg.LLM.Model))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repl(ctx, orchestrator, convID)
}

// repl reads lines from stdin and runs one turn per line until EOF or
// interrupt.
func repl(ctx context.Context, orchestrator *agent.Orchestrator, conversationID string) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return
		}

		turn, err := orchestrator.ProcessMessage(ctx, conversationID, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "turn failed: %v\n", err)
			if ctx.Err() != nil {
				return
			}
			continue
		}

		for i, exec := range turn.Executions {
			status := "ok"
			if !exec.Success {
				status = "failed"
			}
			fmt.Printf("[exec %d/%d %s, %s]\n", i+1, len(turn.Executions), status, exec.Duration.Round(time.Millisecond))
		}
		fmt.Println(turn.Response)
	}
}

func runHealth(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := zap.NewNop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	backend, err := executor.New(cfg.Executor, logger, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "backend: %v\n", err)
		os.Exit(1)
	}

	ok := true
	if backend.HealthCheck(ctx) {
		fmt.Printf("backend %s: ok\n", backend.Name())
	} else {
		fmt.Printf("backend %s: unreachable\n", backend.Name())
		ok = false
	}

	provider := llm.NewOpenAIProvider(cfg.LLM, logger)
	if provider.HealthCheck(ctx) {
		fmt.Println("provider: ok")
	} else {
		fmt.Println("provider: unreachable")
		ok = false
	}

	if !ok {
		os.Exit(1)
	}
}

// buildStore constructs the configured conversation store and a cleanup
// func for stores holding connections.
func buildStore(cfg config.ConversationConfig, tok tokenizer.Tokenizer) (conversation.Store, func(), error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return conversation.NewMemoryStore(tok), func() {}, nil
	case config.DriverRedis:
		store, err := conversation.NewRedisStore(cfg.Redis, tok)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case config.DriverSQLite:
		store, err := conversation.NewSQLiteStore(cfg.SQLitePath, tok)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown conversation driver %q", cfg.Driver)
	}
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	logger.Info("metrics listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics server stopped", zap.Error(err))
	}
}

func printUsage() {
	fmt.Println(`scriptflow - safety-gated script execution agent

Usage:
  scriptflow <command> [options]

Commands:
  chat      Start an interactive chat (one turn per input line)
  health    Probe the execution backend and the model provider
  version   Show version information
  help      Show this help message

Options for 'chat':
  --config <path>         Path to configuration file (YAML)
  --conversation <id>     Resume an existing conversation
  --metrics-addr <addr>   Serve prometheus metrics (e.g. :9090)

Examples:
  scriptflow chat
  scriptflow chat --config /etc/scriptflow/config.yaml --metrics-addr :9090
  scriptflow health --config config.yaml`)
}

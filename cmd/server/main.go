package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	chatweave "github.com/ZanzyTHEbar/chatweave-genkit"
	"github.com/ZanzyTHEbar/chatweave-genkit/internal/cache"
	"github.com/ZanzyTHEbar/chatweave-genkit/internal/executor"
	"github.com/ZanzyTHEbar/chatweave-genkit/internal/history"
	"github.com/ZanzyTHEbar/chatweave-genkit/internal/model"
	"github.com/ZanzyTHEbar/chatweave-genkit/internal/planner"
	"github.com/ZanzyTHEbar/chatweave-genkit/internal/stream"
	"github.com/ZanzyTHEbar/chatweave-genkit/internal/toolhost"
	"github.com/ZanzyTHEbar/chatweave-genkit/internal/tools"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"golang.org/x/sync/errgroup"
)

type serverConfig struct {
	addr       string
	modelName  string
	dataDir    string
	docsDir    string
	mcpCommand string
	mcpArgs    []string
	planTTL    time.Duration
}

func loadConfig() serverConfig {
	cfg := serverConfig{
		addr:      envOr("CHATWEAVE_ADDR", ":8080"),
		modelName: envOr("CHATWEAVE_MODEL", "googleai/gemini-2.0-flash"),
		dataDir:   envOr("CHATWEAVE_DATA_DIR", "data"),
		docsDir:   envOr("CHATWEAVE_DOCS_DIR", "docs"),
		planTTL:   10 * time.Minute,
	}

	if command := os.Getenv("CHATWEAVE_MCP_COMMAND"); command != "" {
		fields := strings.Fields(command)
		cfg.mcpCommand = fields[0]
		cfg.mcpArgs = fields[1:]
	}

	if ttl := os.Getenv("CHATWEAVE_PLAN_TTL"); ttl != "" {
		if parsed, err := time.ParseDuration(ttl); err == nil {
			cfg.planTTL = parsed
		}
	}

	return cfg
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := loadConfig()

	if err := os.MkdirAll(cfg.dataDir, 0o755); err != nil {
		return err
	}

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	modelClient := model.NewGenkitClient(g,
		model.WithModelName(cfg.modelName),
		model.WithLogger(logger))

	planCache := cache.NewInMemoryCache(cfg.planTTL, cache.WithLogger(logger))
	defer planCache.Close()

	host, closeHost, err := buildToolHost(ctx, cfg, modelClient, logger)
	if err != nil {
		return err
	}
	defer closeHost()

	store, err := history.NewFileStore(filepath.Join(cfg.dataDir, "conversations.json"),
		history.WithLogger(logger))
	if err != nil {
		return err
	}

	engine, err := chatweave.New(
		chatweave.WithPlanner(planner.NewModelPlanner(modelClient,
			planner.WithCache(planCache),
			planner.WithLogger(logger))),
		chatweave.WithExecutor(executor.New(host, executor.WithLogger(logger))),
		chatweave.WithToolHost(host),
		chatweave.WithConversationStore(store),
		chatweave.WithEmitterFactory(func(sink chatweave.FrameSink) chatweave.Emitter {
			return stream.New(sink, stream.WithLogger(logger))
		}),
		chatweave.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer engine.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", handleChat(engine, logger))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:        cfg.addr,
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("server listening", "addr", cfg.addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// buildToolHost connects to an external MCP server when one is
// configured, otherwise it serves the built-in tools in process.
func buildToolHost(ctx context.Context, cfg serverConfig, modelClient chatweave.ModelClient, logger *slog.Logger) (chatweave.ToolHost, func(), error) {
	if cfg.mcpCommand != "" {
		host, err := toolhost.ConnectCommand(ctx, cfg.mcpCommand, cfg.mcpArgs, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("connected to MCP tool server", "command", cfg.mcpCommand)
		return host, func() {
			if err := host.Close(); err != nil {
				logger.Warn("failed to close MCP session", "error", err)
			}
		}, nil
	}

	metadata, err := tools.NewMetadataStore(filepath.Join(cfg.dataDir, "metadata.json"))
	if err != nil {
		return nil, nil, err
	}

	host := toolhost.NewLocalHost()
	if err := tools.Register(host, tools.Config{
		Model:    modelClient,
		Metadata: metadata,
		DocsDir:  cfg.docsDir,
	}); err != nil {
		return nil, nil, err
	}

	logger.Info("serving built-in tools", "docs_dir", cfg.docsDir)
	return host, func() {}, nil
}

// sseSink writes frames as server-sent events.
type sseSink struct {
	mutex   sync.Mutex
	writer  http.ResponseWriter
	flusher http.Flusher
}

func (s *sseSink) Send(ctx context.Context, frame chatweave.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, err := s.writer.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func handleChat(engine *chatweave.ChatWeave, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatweave.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.Query == "" {
			http.Error(w, "message is required", http.StatusBadRequest)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		sink := &sseSink{writer: w, flusher: flusher}
		result, err := engine.ProcessStream(r.Context(), req, sink)
		if err != nil {
			state := chatweave.StateUnknown
			if result != nil {
				state = result.State
			}
			logger.Warn("run finished with error",
				"conversation_id", req.ConversationID,
				"state", string(state),
				"error", err)
			return
		}

		logger.Info("run finished",
			"conversation_id", req.ConversationID,
			"state", string(result.State),
			"duration", result.Duration)
	}
}

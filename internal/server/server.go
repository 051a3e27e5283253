// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/ThinkInAIXYZ/go-mcp/server"
	"go.uber.org/zap"

	"macro-pipeline/internal/lookup"
	"macro-pipeline/internal/pipeline"
	"macro-pipeline/internal/router"
	"macro-pipeline/internal/session"
	"macro-pipeline/internal/storage"
)

type Config struct {
	Transport  string
	Host       string
	Port       int
	DBPath     string
	RulesPath  string
	SessionTTL time.Duration
}

type MacroServer struct {
	server     *server.Server
	httpServer *http.Server
	storage    *storage.SQLiteStorage
	sessions   *session.Store
	router     *router.Router
	pipeline   *pipeline.Pipeline
	config     *Config
	logger     *zap.Logger
}

func NewMacroServer(cfg *Config, logger *zap.Logger) (*MacroServer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	stor, err := storage.NewSQLiteStorage(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	sessions := session.NewStore(cfg.SessionTTL)
	resolver := lookup.NewClient(resolverConfigFromEnv(), stor, logger)

	rules, err := loadRules(cfg.RulesPath)
	if err != nil {
		stor.Close()
		return nil, fmt.Errorf("failed to load routing rules: %w", err)
	}

	macroServer := &MacroServer{
		storage:  stor,
		sessions: sessions,
		router:   router.New(rules),
		pipeline: pipeline.New(resolver, sessions, stor, logger),
		config:   cfg,
		logger:   logger,
	}

	mux := http.NewServeMux()

	// The MCP server carries protocol identity; tool dispatch happens in the
	// HTTP handler below.
	mcpServer, err := server.NewServer(
		nil,
		server.WithServerInfo(protocol.Implementation{
			Name:    "macro-pipeline",
			Version: "1.0.0",
		}),
	)
	if err != nil {
		stor.Close()
		return nil, fmt.Errorf("failed to create MCP server: %w", err)
	}

	macroServer.server = mcpServer

	if err := macroServer.registerTools(); err != nil {
		stor.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	mux.HandleFunc("/", macroServer.handleHTTP)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	macroServer.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	return macroServer, nil
}

func (s *MacroServer) handleHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if r.Method == http.MethodOptions {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request protocol.CallToolRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	var result *protocol.CallToolResult
	var err error

	switch request.Name {
	case "resolve_macros":
		result, err = s.handleResolveMacros(r.Context(), &request)
	case "log_meal":
		result, err = s.handleLogMeal(r.Context(), &request)
	case "route_message":
		result, err = s.handleRouteMessage(&request)
	case "verify_meal":
		result, err = s.handleVerifyMeal(&request)
	case "get_meals":
		result, err = s.handleGetMeals(r.Context(), &request)
	default:
		http.Error(w, fmt.Sprintf("Unknown tool: %s", request.Name), http.StatusNotFound)
		return
	}

	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

// sessionSweepInterval paces the janitor that drops expired session payloads.
// Reads enforce the TTL themselves; the sweep just reclaims memory.
const sessionSweepInterval = time.Minute

func (s *MacroServer) Start(ctx context.Context) error {
	go s.sweepSessions(ctx)

	s.logger.Info("starting macro pipeline server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *MacroServer) sweepSessions(ctx context.Context) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.sessions.Sweep(); removed > 0 {
				s.logger.Debug("swept expired session payloads", zap.Int("removed", removed))
			}
		}
	}
}

func (s *MacroServer) Stop() error {
	if s.storage != nil {
		s.storage.Close()
	}
	if s.httpServer != nil {
		return s.httpServer.Shutdown(context.Background())
	}
	return nil
}

func (s *MacroServer) createJSONResponse(data interface{}) (*protocol.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	return &protocol.CallToolResult{
		Content: []protocol.Content{
			protocol.TextContent{
				Type: "text",
				Text: string(jsonBytes),
			},
		},
	}, nil
}

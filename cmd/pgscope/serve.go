package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/pgscope/pgscope"
	"github.com/pgscope/pgscope/internal/meta"
)

func runServe() error {
	ctx := context.Background()

	// 1. Load configuration from the environment. An explicit env file is
	// loaded first; godotenv never overrides variables that are already set,
	// so the explicit file wins over a stray ./.env.
	if envPath := os.Getenv(pgscope.EnvFile); envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", envPath, err)
		}
	}
	cfg, err := pgscope.LoadEnv()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.Server.Port <= 0 {
		panic("pgscope: server port must be > 0")
	}

	// 2. Resolve connection descriptor
	connString, err := resolveConnString(cfg)
	if err != nil {
		return fmt.Errorf("%w (run 'pgscope configure' to create a .env file)", err)
	}

	// 3. Setup logger
	logger := setupLogger(cfg.Logging)

	// 4. Create the engine
	pool := pgscope.NewPool(connString, cfg.Pool, logger)
	scope := pgscope.New(pool, cfg.Query, logger)
	defer scope.Shutdown(ctx)

	// 5. Test database connection before accepting clients
	logger.Info().
		Str("database", pgscope.MaskDescriptor(connString)).
		Msg("testing database connection")
	pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err = scope.Startup(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("database connection test failed: %w", err)
	}
	logger.Info().Msg("database connection test successful")

	// 6. Create MCP server with initialize lifecycle logging
	hooks := &server.Hooks{}
	hooks.AddAfterInitialize(func(ctx context.Context, id any, req *mcp.InitializeRequest, result *mcp.InitializeResult) {
		clientName := req.Params.ClientInfo.Name
		clientVersion := req.Params.ClientInfo.Version
		logger.Info().
			Str("client_name", clientName).
			Str("client_version", clientVersion).
			Msg("AI agent connected (MCP initialize)")
	})

	mcpServer := server.NewMCPServer("pgscope", meta.Version,
		server.WithToolCapabilities(true),
		server.WithHooks(hooks),
	)

	pgscope.RegisterMCPTools(mcpServer, scope)

	// 7. Start HTTP server with optional health check
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	mux := http.NewServeMux()

	// Health check endpoint (process liveness only, not DB connectivity)
	if cfg.Server.HealthCheckEnabled {
		if cfg.Server.HealthCheckPath == "" {
			panic("pgscope: health check path must be set when the health check is enabled")
		}
		mux.HandleFunc(cfg.Server.HealthCheckPath, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})
	}

	httpSrv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Create StreamableHTTPServer with custom http.Server
	streamableServer := server.NewStreamableHTTPServer(mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithStateLess(true),
		server.WithStreamableHTTPServer(httpSrv),
	)

	// Manually register the MCP handler. Start() does NOT register
	// when a custom *http.Server is provided via WithStreamableHTTPServer.
	mux.Handle("/mcp", streamableServer)

	// 8. Shut down cleanly on SIGINT/SIGTERM so pooled connections close.
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		logger.Info().Msg("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := streamableServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown failed")
		}
	}()

	logger.Info().
		Str("addr", addr).
		Str("version", meta.Version).
		Msg("starting pgscope server")
	if err := streamableServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// resolveConnString produces the descriptor serve connects with. When the
// environment names a database but leaves credentials out and stdin is a
// terminal, the missing pieces are asked for instead of failing outright.
func resolveConnString(cfg *pgscope.ServerConfig) (string, error) {
	if cfg.Connection.ConnString == "" && cfg.Connection.DBName != "" && isTTY(os.Stdin.Fd()) {
		if cfg.Connection.User == "" {
			cfg.Connection.User = promptInput("Username: ")
		}
		if cfg.Connection.User != "" && cfg.Connection.Password == "" {
			cfg.Connection.Password = promptPassword("Password: ")
		}
	}
	return cfg.Connection.BuildConnString()
}

func setupLogger(config pgscope.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(config.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	var output io.Writer = os.Stdout
	if config.Output == "stderr" {
		output = os.Stderr
	} else if config.Output != "" && config.Output != "stdout" {
		f, err := os.OpenFile(config.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			output = f
		}
	}

	if config.Format == "text" {
		output = zerolog.ConsoleWriter{Out: output}
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

func promptInput(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	var input string
	fmt.Scanln(&input)
	return input
}

func promptPassword(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // newline after password input
	if err != nil {
		return ""
	}
	return string(password)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/pgscope/pgscope"
	"github.com/pgscope/pgscope/internal/meta"
)

func runDoctor() error {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	envPath := fs.String("env", "", "Path to a .env file to load first (./.env is picked up automatically)")
	fs.Parse(os.Args[2:])

	useColor := isTTY(os.Stderr.Fd())
	return doctor(os.Stderr, useColor, *envPath)
}

func doctor(w io.Writer, useColor bool, envPath string) error {
	printBanner(w, useColor)
	fmt.Fprintf(w, "pgscope %s\n\n", meta.Version)

	// Load and validate configuration
	cfg, connString, ok := doctorValidateConfig(w, useColor, envPath)
	if !ok {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Fix the issues above and run 'pgscope doctor' again.")
		return nil
	}

	// Probe the database itself
	if !doctorProbeDatabase(w, useColor, connString) {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Fix the issues above and run 'pgscope doctor' again.")
		return nil
	}

	// Print agent connection snippets
	fmt.Fprintln(w)
	printAgentSnippets(w, useColor, cfg.Server.Port)
	return nil
}

// doctorValidateConfig loads the environment configuration and validates it,
// printing check results. Returns the config, the resolved connection
// descriptor, and true if all checks passed.
func doctorValidateConfig(w io.Writer, useColor bool, envPath string) (*pgscope.ServerConfig, string, bool) {
	allPassed := true

	// Check 1: explicit env file loads when given
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("Env file readable (%s)", envPath))
			return nil, "", false
		}
		printCheck(w, useColor, true, fmt.Sprintf("Env file readable (%s)", envPath))
	}

	// Check 2: environment parses
	cfg, err := pgscope.LoadEnv()
	if err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Environment configuration valid: %v", err))
		return nil, "", false
	}
	printCheck(w, useColor, true, "Environment configuration valid")

	// Check 3: a connection descriptor can be resolved
	connString, err := cfg.Connection.BuildConnString()
	if err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Database connection configured: %v", err))
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("Database connection configured (%s)", pgscope.MaskDescriptor(connString)))
	}

	// Check 4: server port is sane
	if cfg.Server.Port <= 0 {
		printCheck(w, useColor, false, "Server port is > 0")
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("Server port is > 0 (%d)", cfg.Server.Port))
	}

	// Check 5: health check path set when enabled
	if cfg.Server.HealthCheckEnabled {
		if cfg.Server.HealthCheckPath == "" {
			printCheck(w, useColor, false, "Health check path is set (required when the health check is enabled)")
			allPassed = false
		} else {
			printCheck(w, useColor, true, fmt.Sprintf("Health check path is set (%s)", cfg.Server.HealthCheckPath))
		}
	}

	return cfg, connString, allPassed
}

// doctorProbeDatabase connects to the database and runs read-only probes,
// printing check results. Returns true if all probes passed.
func doctorProbeDatabase(w io.Writer, useColor bool, connString string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool := pgscope.NewPool(connString, pgscope.PoolConfig{ReadOnly: true}, zerolog.Nop())
	defer pool.Close(context.Background())

	if err := pool.Init(ctx); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Database reachable: %v", err))
		return false
	}

	var version string
	if err := pool.QueryRow(ctx, "SHOW server_version").Scan(&version); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Database reachable: %v", err))
		return false
	}
	printCheck(w, useColor, true, fmt.Sprintf("Database reachable (PostgreSQL %s)", version))

	var readOnly string
	if err := pool.QueryRow(ctx, "SHOW default_transaction_read_only").Scan(&readOnly); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Session is read-only: %v", err))
		return false
	}
	if readOnly != "on" {
		printCheck(w, useColor, false, fmt.Sprintf("Session is read-only (default_transaction_read_only=%s)", readOnly))
		return false
	}
	printCheck(w, useColor, true, "Session is read-only (default_transaction_read_only=on)")

	scope := pgscope.New(pool, pgscope.QueryConfig{}, zerolog.Nop())
	tables := scope.ListTables(ctx, pgscope.ListTablesInput{})
	if !tables.Success {
		printCheck(w, useColor, false, fmt.Sprintf("Catalog introspection works: %s", *tables.Error))
		return false
	}
	printCheck(w, useColor, true, fmt.Sprintf("Catalog introspection works (%d tables visible)", tables.Count))

	return true
}

// printCheck prints a colored ✓ or ✗ check line.
func printCheck(w io.Writer, useColor bool, pass bool, msg string) {
	if pass {
		if useColor {
			fmt.Fprintf(w, "  \033[32m✓\033[0m %s\n", msg)
		} else {
			fmt.Fprintf(w, "  ✓ %s\n", msg)
		}
	} else {
		if useColor {
			fmt.Fprintf(w, "  \033[31m✗\033[0m %s\n", msg)
		} else {
			fmt.Fprintf(w, "  ✗ %s\n", msg)
		}
	}
}

// printAgentSnippets prints MCP connection config snippets for various AI agents.
func printAgentSnippets(w io.Writer, useColor bool, port int) {
	url := fmt.Sprintf("http://localhost:%d/mcp", port)

	heading := func(title string) {
		if useColor {
			fmt.Fprintf(w, "\033[1;36m%s\033[0m\n", title)
		} else {
			fmt.Fprintln(w, title)
		}
	}

	subheading := func(title string) {
		if useColor {
			fmt.Fprintf(w, "  \033[1m%s\033[0m\n", title)
		} else {
			fmt.Fprintf(w, "  %s\n", title)
		}
	}

	heading("Agent Connection Snippets")
	fmt.Fprintln(w)

	// Claude Code
	subheading("Claude Code")
	fmt.Fprintf(w, "  Run this command to add the server:\n\n")
	fmt.Fprintf(w, "    claude mcp add --transport http pgscope %s\n\n", url)
	fmt.Fprintf(w, "  Or add to .mcp.json (project scope):\n\n")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "pgscope": {
        "type": "http",
        "url": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)

	// Copilot CLI
	subheading("Copilot CLI (~/.copilot/mcp-config.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "pgscope": {
        "type": "http",
        "url": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)

	// Gemini CLI
	subheading("Gemini CLI (~/.gemini/settings.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "pgscope": {
        "httpUrl": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)

	// OpenCode
	subheading("OpenCode (opencode.json)")
	fmt.Fprintf(w, `  {
    "mcp": {
      "pgscope": {
        "type": "remote",
        "url": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)

	// Cursor
	subheading("Cursor (.cursor/mcp.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "pgscope": {
        "url": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)

	// Windsurf
	subheading("Windsurf (~/.codeium/windsurf/mcp_config.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "pgscope": {
        "serverUrl": "%s"
      }
    }
  }
`, url)
}

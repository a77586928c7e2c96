// Command pgscope runs a read-only PostgreSQL MCP server.
package main

import (
	"fmt"
	"os"

	"github.com/pgscope/pgscope/internal/meta"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "configure":
		if err := runConfigure(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "doctor":
		if err := runDoctor(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version", "--version", "-v":
		fmt.Printf("pgscope %s\n", meta.Version)
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("pgscope — read-only PostgreSQL MCP Server")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  pgscope serve       Start the MCP server")
	fmt.Println("  pgscope configure   Run interactive configuration wizard")
	fmt.Println("  pgscope doctor      Check configuration and database connectivity")
	fmt.Println("  pgscope version     Print the version")
	fmt.Println("  pgscope --help      Show this help message")
	fmt.Println()
	fmt.Println("Configuration is read from the environment, optionally seeded from a")
	fmt.Println(".env file in the working directory. Run 'pgscope configure' to create one.")
}

package main

import (
	"flag"
	"os"

	"github.com/pgscope/pgscope/internal/configure"
)

func runConfigure() error {
	fs := flag.NewFlagSet("configure", flag.ExitOnError)
	envPath := fs.String("env", ".env", "Path to the .env file to create or update")
	fs.Parse(os.Args[2:])

	printBanner(os.Stderr, isTTY(os.Stderr.Fd()))
	return configure.Run(*envPath)
}

// Package configure implements the interactive wizard that writes the
// .env file consumed by the pgscope server.
package configure

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/pgscope/pgscope"
)

// Run runs the interactive configuration wizard against the given .env
// path. Existing entries are offered as defaults; answers are written back
// with godotenv, so the file stays machine-readable.
func Run(envPath string) error {
	return run(envPath, os.Stdin, os.Stderr)
}

func run(envPath string, input io.Reader, output io.Writer) error {
	values, isNew := loadExisting(envPath)

	p := &prompter{
		scanner: bufio.NewScanner(input),
		input:   input,
		output:  output,
		isNew:   isNew,
	}

	fmt.Fprintf(output, "pgscope configuration wizard\n")
	fmt.Fprintf(output, "Env file: %s\n\n", envPath)

	fmt.Fprintf(output, "=== Connection ===\n")
	connString := p.promptStringWithHint(pgscope.EnvConnString, values[pgscope.EnvConnString],
		"full descriptor, leave empty to compose from the fields below")
	setOrDelete(values, pgscope.EnvConnString, connString)
	if connString == "" {
		values[pgscope.EnvDBHost] = p.promptString(pgscope.EnvDBHost, getOr(values, pgscope.EnvDBHost, "localhost"))
		values[pgscope.EnvDBPort] = strconv.Itoa(p.promptPositiveInt(pgscope.EnvDBPort, atoiOr(values[pgscope.EnvDBPort], 5432), "must be > 0"))
		setOrDelete(values, pgscope.EnvDBName, p.promptStringWithHint(pgscope.EnvDBName, values[pgscope.EnvDBName], "required"))
		setOrDelete(values, pgscope.EnvDBUser, p.promptString(pgscope.EnvDBUser, values[pgscope.EnvDBUser]))
		setOrDelete(values, pgscope.EnvDBPassword, p.promptPassword(pgscope.EnvDBPassword, values[pgscope.EnvDBPassword]))
		values[pgscope.EnvDBSSLMode] = p.promptEnum(pgscope.EnvDBSSLMode, getOr(values, pgscope.EnvDBSSLMode, "prefer"), sslModes)
	}

	fmt.Fprintf(output, "\n=== Server ===\n")
	values[pgscope.EnvServerHost] = p.promptString(pgscope.EnvServerHost, getOr(values, pgscope.EnvServerHost, "0.0.0.0"))
	values[pgscope.EnvServerPort] = strconv.Itoa(p.promptPositiveInt(pgscope.EnvServerPort, atoiOr(values[pgscope.EnvServerPort], 8000), "must be > 0"))

	fmt.Fprintf(output, "\n=== Logging ===\n")
	values[pgscope.EnvLogLevel] = p.promptEnum(pgscope.EnvLogLevel, getOr(values, pgscope.EnvLogLevel, "info"), logLevels)
	values[pgscope.EnvLogFormat] = p.promptEnum(pgscope.EnvLogFormat, getOr(values, pgscope.EnvLogFormat, "json"), logFormats)
	values[pgscope.EnvLogOutput] = p.promptStringWithHint(pgscope.EnvLogOutput, getOr(values, pgscope.EnvLogOutput, "stdout"), "stdout, stderr, or file path")

	if err := godotenv.Write(values, envPath); err != nil {
		return fmt.Errorf("failed to write %s: %w", envPath, err)
	}

	fmt.Fprintf(output, "\nConfiguration saved to %s\n", envPath)
	if values[pgscope.EnvDBPassword] != "" {
		fmt.Fprintf(output, "Note: the password is stored in plain text; keep %s out of version control.\n", envPath)
	}
	return nil
}

func loadExisting(envPath string) (map[string]string, bool) {
	values, err := godotenv.Read(envPath)
	if err != nil {
		return map[string]string{}, true
	}
	return values, false
}

var (
	sslModes   = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"json", "text"}
)

// setOrDelete keeps the env map free of empty entries.
func setOrDelete(values map[string]string, key, val string) {
	if val == "" {
		delete(values, key)
		return
	}
	values[key] = val
}

func getOr(values map[string]string, key, fallback string) string {
	if v := values[key]; v != "" {
		return v
	}
	return fallback
}

func atoiOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

// prompter handles reading user input and displaying prompts.
type prompter struct {
	scanner *bufio.Scanner
	input   io.Reader
	output  io.Writer
	isNew   bool
}

func (p *prompter) readLine() string {
	if p.scanner.Scan() {
		return strings.TrimSpace(p.scanner.Text())
	}
	return ""
}

func (p *prompter) valueLabel() string {
	if p.isNew {
		return "default"
	}
	return "current"
}

func (p *prompter) promptString(field string, current string) string {
	fmt.Fprintf(p.output, "%s (%s: %q): ", field, p.valueLabel(), current)
	input := p.readLine()
	if input == "" {
		return current
	}
	return input
}

func (p *prompter) promptStringWithHint(field string, current string, hint string) string {
	fmt.Fprintf(p.output, "%s [%s] (%s: %q): ", field, hint, p.valueLabel(), current)
	input := p.readLine()
	if input == "" {
		return current
	}
	return input
}

func (p *prompter) promptPositiveInt(field string, current int, hint string) int {
	for {
		fmt.Fprintf(p.output, "%s [%s] (%s: %d): ", field, hint, p.valueLabel(), current)
		input := p.readLine()
		if input == "" {
			return current
		}
		val, err := strconv.Atoi(input)
		if err != nil {
			fmt.Fprintf(p.output, "  Invalid integer %q, try again.\n", input)
			continue
		}
		if val <= 0 {
			fmt.Fprintf(p.output, "  Value must be > 0, try again.\n")
			continue
		}
		return val
	}
}

func (p *prompter) promptEnum(field string, current string, allowed []string) string {
	for {
		fmt.Fprintf(p.output, "%s (%s: %q, options: %s): ", field, p.valueLabel(), current, strings.Join(allowed, ", "))
		input := p.readLine()
		if input == "" {
			return current
		}
		for _, v := range allowed {
			if input == v {
				return input
			}
		}
		fmt.Fprintf(p.output, "  Invalid value %q, must be one of: %s\n", input, strings.Join(allowed, ", "))
	}
}

// promptPassword never echoes the current value and reads without terminal
// echo when attached to one; piped input (tests, scripts) falls back to a
// plain line read. Empty input keeps the current value.
func (p *prompter) promptPassword(field string, current string) string {
	state := "empty"
	if current != "" {
		state = "set, press enter to keep"
	}
	fmt.Fprintf(p.output, "%s (%s: %s): ", field, p.valueLabel(), state)

	if f, ok := p.input.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.output)
		if err != nil {
			return current
		}
		if entered := strings.TrimSpace(string(b)); entered != "" {
			return entered
		}
		return current
	}

	input := p.readLine()
	if input == "" {
		return current
	}
	return input
}

// Package analysis invokes an external text-analysis CLI.
//
// The command reads the query on stdin and writes its response to stdout,
// running headless when stdin is not a TTY. Every failure kind (missing
// binary, timeout, non-zero exit) surfaces as an error the caller treats
// uniformly as "no response".
package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// ErrUnavailable is returned when the analysis command cannot be found.
var ErrUnavailable = errors.New("analysis: command not available")

// ErrTimeout is returned when the command exceeds its timeout.
var ErrTimeout = errors.New("analysis: command timed out")

// Config configures the Runner.
type Config struct {
	// Command is the analysis binary. Default: "gemini".
	Command string
	// Timeout bounds one invocation. Default: 60s.
	Timeout time.Duration
	// ProbeTimeout bounds the startup capability check. Default: 10s.
	ProbeTimeout time.Duration
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Command == "" {
		c.Command = "gemini"
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Runner executes the analysis command.
type Runner struct {
	config Config
}

// New creates a Runner.
func New(cfg Config) *Runner {
	cfg.defaults()
	return &Runner{config: cfg}
}

// Probe checks that the command is installed and runnable. A probe failure
// means trigger handling will run degraded, not that the poll loop stops.
func (r *Runner) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.config.ProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.config.Command, "--help")
	if err := cmd.Run(); err != nil {
		return r.classify(ctx, err, nil)
	}
	return nil
}

// Run feeds query to the command on stdin and returns the trimmed stdout.
func (r *Runner) Run(ctx context.Context, query string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.config.Command)
	cmd.Stdin = strings.NewReader(query)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		return "", r.classify(ctx, err, &stderr)
	}

	r.config.Logger.Debug("analysis: command completed",
		"command", r.config.Command, "duration", time.Since(start),
		"response_bytes", stdout.Len())
	return strings.TrimSpace(stdout.String()), nil
}

func (r *Runner) classify(ctx context.Context, err error, stderr *bytes.Buffer) error {
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrUnavailable, r.config.Command)
	}
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%w: %s", ErrTimeout, r.config.Command)
	}
	if stderr != nil && stderr.Len() > 0 {
		return fmt.Errorf("analysis: %s: %w: %s",
			r.config.Command, err, strings.TrimSpace(stderr.String()))
	}
	return fmt.Errorf("analysis: %s: %w", r.config.Command, err)
}

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/turnkernel/pkg/config"
	"github.com/Mindburn-Labs/turnkernel/pkg/contracts"
	"github.com/Mindburn-Labs/turnkernel/pkg/contracts/schemas"
	"github.com/Mindburn-Labs/turnkernel/pkg/kernel"
)

// maxLineBytes bounds a single JSON Lines record.
const maxLineBytes = 1 << 20

// runDecideCmd implements `turnkernel decide`.
//
// Each input line is one turn. Turns share a kernel, so a file can replay a
// whole conversation against the configured store. Every line yields exactly
// one response line on stdout: the turn result or its refusal.
func runDecideCmd(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("decide", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var configPath, inPath string
	cmd.StringVar(&configPath, "config", "", "YAML config file overlaid on the environment")
	cmd.StringVar(&inPath, "in", "-", "JSON Lines turn file, - for stdin")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	slog.SetDefault(newLogger(stderr, cfg.LogLevel))

	in, closeIn, err := openInput(inPath, stdin)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer closeIn()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	k, closeKernel, err := kernel.Open(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := closeKernel(shutdownCtx); err != nil {
			slog.Warn("kernel shutdown", "error", err)
		}
	}()

	enc := json.NewEncoder(stdout)
	refused := false
	err = eachLine(in, func(n int, line []byte) error {
		turn, err := decodeTurn(cfg, n, line)
		var res *kernel.TurnResult
		if err == nil {
			res, err = k.Process(ctx, turn)
		}
		resp, err := contracts.NewResponse(res, err)
		if err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
		if !resp.IsOk() {
			refused = true
		}
		return enc.Encode(resp)
	})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if refused {
		return 1
	}
	return 0
}

// decodeTurn checks line against the turn schema and decodes it. A turn
// without an envelope is stamped with the configured caps.
func decodeTurn(cfg *config.Config, n int, line []byte) (*kernel.Turn, error) {
	if err := schemas.ValidateTurn(line); err != nil {
		var ve contracts.ValidationErrors
		if errors.As(err, &ve) {
			return nil, contracts.SchemaRefusal(contracts.CapabilityKernel, ve)
		}
		return nil, err
	}
	var t kernel.Turn
	if err := json.Unmarshal(line, &t); err != nil {
		return nil, contracts.SchemaRefusal(contracts.CapabilityKernel, err)
	}
	if t.Envelope == (contracts.Envelope{}) {
		t.Envelope = cfg.NewEnvelope(uuid.NewString(), uint64(n))
	}
	return &t, nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Load()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		return cfg, nil
	}
	return config.LoadFile(path)
}

func openInput(path string, stdin io.Reader) (io.Reader, func(), error) {
	if path == "-" || path == "" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// eachLine calls fn with every non-blank line of r, numbered from 1.
func eachLine(r io.Reader, fn func(n int, line []byte) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	n := 0
	for sc.Scan() {
		n++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(n, line); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

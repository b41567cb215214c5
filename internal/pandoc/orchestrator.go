// Package pandoc runs a pandoc binary as a subprocess and reports what it did
// on the conversion log.
//
// A conversion logs, in order: the command echo, stdout (if any), stderr (if
// any), and a success marker when pandoc exits zero. Conversion failures that
// pandoc itself reports are folded into ConversionResult; failures to run
// pandoc at all are returned as errors wrapping ErrSubprocess.
package pandoc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZebulonRouseFrantzich/pandock/internal/events"
	"github.com/ZebulonRouseFrantzich/pandock/internal/logging"
)

// DefaultTimeout bounds a single pandoc run.
const DefaultTimeout = 300 * time.Second

// versionFlag is the argument used by probes.
const versionFlag = "--version"

// waitDelay is how long Wait waits for pipes after the process is killed.
const waitDelay = 2 * time.Second

// ConversionRequest describes one conversion.
type ConversionRequest struct {
	BinaryPath   string `json:"binary_path"`
	InputPath    string `json:"input_path"`
	OutputFormat string `json:"output_format"`
}

// ConversionResult is the outcome of a conversion pandoc ran to completion.
// OutputPath is set only on success and Error only on failure.
type ConversionResult struct {
	Success    bool   `json:"success"`
	OutputPath string `json:"output_path,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Options configures an Orchestrator.
type Options struct {
	Sink   events.Sink
	Clock  events.Clock
	Logger logging.Logger
	// Timeout bounds each subprocess. Zero disables the timeout.
	Timeout time.Duration
}

// Orchestrator runs pandoc. It holds no per-call state and is safe for
// concurrent use.
type Orchestrator struct {
	sink    events.Sink
	clock   events.Clock
	logger  logging.Logger
	timeout time.Duration
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Orchestrator{
		sink:    opts.Sink,
		clock:   opts.Clock,
		logger:  logger,
		timeout: opts.Timeout,
	}
}

// OutputPath returns <inputDir>/<inputStem>.<format>.
func OutputPath(inputPath, format string) (string, error) {
	if err := validateFormat(format); err != nil {
		return "", err
	}

	if inputPath == "" || strings.HasSuffix(inputPath, "/") || strings.HasSuffix(inputPath, string(filepath.Separator)) {
		return "", fmt.Errorf("%w: no file name in %q", ErrInvalidInput, inputPath)
	}

	base := filepath.Base(inputPath)
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return "", fmt.Errorf("%w: no file name in %q", ErrInvalidInput, inputPath)
	}

	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		// Dotfiles like ".notes" have no extension; the whole name is the stem.
		stem = base
	}

	return filepath.Join(filepath.Dir(inputPath), stem+"."+format), nil
}

func validateFormat(format string) error {
	switch {
	case strings.TrimSpace(format) == "":
		return fmt.Errorf("%w: output format is empty", ErrInvalidInput)
	case strings.ContainsAny(format, `/\`) || strings.ContainsRune(format, filepath.Separator):
		return fmt.Errorf("%w: output format %q contains a path separator", ErrInvalidInput, format)
	case format == "." || format == "..":
		return fmt.Errorf("%w: output format %q is not a format", ErrInvalidInput, format)
	}
	return nil
}

// Convert runs `<binary> <input> -o <output>` and classifies the result.
func (o *Orchestrator) Convert(ctx context.Context, req ConversionRequest) (*ConversionResult, error) {
	if req.BinaryPath == "" {
		return nil, fmt.Errorf("%w: binary path is empty", ErrInvalidInput)
	}
	outputPath, err := OutputPath(req.InputPath, req.OutputFormat)
	if err != nil {
		return nil, err
	}

	emit := events.NewEmitter(o.sink, o.clock)
	emit.Info(fmt.Sprintf(`$ %s "%s" -o "%s"`, req.BinaryPath, req.InputPath, outputPath))

	o.logger.Debug("running pandoc", "binary", req.BinaryPath, "input", req.InputPath, "output", outputPath)
	run, err := o.run(ctx, req.BinaryPath, req.InputPath, "-o", outputPath)
	if err != nil {
		emit.Error(err.Error())
		return nil, err
	}

	if stdout := strings.TrimSpace(run.stdout); stdout != "" {
		emit.Info(stdout)
	}

	stderr := strings.TrimSpace(run.stderr)
	if stderr != "" {
		level := events.LevelInfo
		if run.exitCode != 0 {
			level = events.LevelError
		}
		emit.Log(level, stderr, "")
	}

	if run.exitCode != 0 {
		o.logger.Info("pandoc conversion failed", "exit_code", run.exitCode, "input", req.InputPath)
		msg := stderr
		if msg == "" {
			msg = exitMessage(run.exitCode)
		}
		return &ConversionResult{Success: false, Error: msg}, nil
	}

	emit.Success("Successfully created: " + outputPath)
	o.logger.Info("pandoc conversion succeeded", "output", outputPath)
	return &ConversionResult{Success: true, OutputPath: outputPath}, nil
}

// CheckBinaryUsable reports whether `<binary> --version` exits zero. A binary
// that cannot be run at all is an error, not false.
func (o *Orchestrator) CheckBinaryUsable(ctx context.Context, binaryPath string) (bool, error) {
	if binaryPath == "" {
		return false, fmt.Errorf("%w: binary path is empty", ErrInvalidInput)
	}
	run, err := o.run(ctx, binaryPath, versionFlag)
	if err != nil {
		return false, err
	}
	return run.exitCode == 0, nil
}

// FetchVersionString runs `<binary> --version`, logs each non-blank output
// line as a success entry, and returns the raw output. A non-zero exit
// returns a *ProbeError.
func (o *Orchestrator) FetchVersionString(ctx context.Context, binaryPath string) (string, error) {
	if binaryPath == "" {
		return "", fmt.Errorf("%w: binary path is empty", ErrInvalidInput)
	}

	emit := events.NewEmitter(o.sink, o.clock)
	emit.Info(fmt.Sprintf("$ %s %s", binaryPath, versionFlag))

	run, err := o.run(ctx, binaryPath, versionFlag)
	if err != nil {
		emit.Error(err.Error())
		return "", err
	}

	if run.exitCode != 0 {
		probeErr := &ProbeError{ExitCode: run.exitCode, Stderr: strings.TrimSpace(run.stderr)}
		emit.Error(probeErr.Error())
		return "", probeErr
	}

	for _, line := range strings.Split(run.stdout, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			emit.Success(line)
		}
	}
	return run.stdout, nil
}

type runResult struct {
	stdout   string
	stderr   string
	exitCode int
}

// run executes binary with args and collects both streams after it exits.
// A non-zero exit is a result; everything else that stops the process from
// completing is an ErrSubprocess.
func (o *Orchestrator) run(ctx context.Context, binary string, args ...string) (*runResult, error) {
	runCtx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	err := cmd.Run()

	// The context check comes first because a killed process also reports
	// an ExitError.
	if ctxErr := runCtx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &SubprocessError{Message: fmt.Sprintf("Pandoc timed out after %s", o.timeout), Err: ctxErr}
		}
		return nil, &SubprocessError{Message: "Pandoc was cancelled", Err: ctxErr}
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return &runResult{stdout: stdout.String(), stderr: stderr.String()}, nil
	case errors.As(err, &exitErr):
		return &runResult{stdout: stdout.String(), stderr: stderr.String(), exitCode: exitErr.ExitCode()}, nil
	default:
		o.logger.Warn("pandoc failed to start", "binary", binary, "error", err)
		return nil, &SubprocessError{Message: fmt.Sprintf("Failed to execute pandoc: %v", err), Err: err}
	}
}

// Package solver runs the LIGGGHTS executable against a generated input deck.
package solver

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/xiaot623/millrun/internal/deck"
	"github.com/xiaot623/millrun/internal/domain"
	"github.com/xiaot623/millrun/internal/dump"
)

const (
	InputFileName = "in.grinding_mill"
	LogFileName   = "liggghts.log"

	// DefaultCommand is the LIGGGHTS executable looked up on PATH.
	DefaultCommand = "lmp"

	runIDLength = 10

	msgRequiresRun = "Charge throw visualization requires a completed LIGGGHTS run."
)

// ErrRunConflict is returned when the output directory for a new run id already exists.
var ErrRunConflict = errors.New("run directory already exists")

// Observer is notified as a run moves through its stages. It is called
// synchronously from Run.
type Observer func(runID string, stage domain.EventType, detail map[string]any)

// Option configures a Runner.
type Option func(*Runner)

// WithObserver registers an observer for stage notifications.
func WithObserver(o Observer) Option {
	return func(r *Runner) {
		r.observer = o
	}
}

// WithRunIDGenerator replaces the random run id source.
func WithRunIDGenerator(gen func() string) Option {
	return func(r *Runner) {
		r.newRunID = gen
	}
}

// Runner creates one directory per run under its workspace and invokes the solver there.
type Runner struct {
	workspace string
	command   string
	observer  Observer
	newRunID  func() string
}

// NewRunner creates the workspace directory if needed.
func NewRunner(workspace, command string, opts ...Option) (*Runner, error) {
	if command == "" {
		command = DefaultCommand
	}
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	r := &Runner{
		workspace: workspace,
		command:   command,
		newRunID:  randomRunID,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Workspace returns the directory holding run output directories.
func (r *Runner) Workspace() string {
	return r.workspace
}

// Command returns the configured solver command.
func (r *Runner) Command() string {
	return r.command
}

// Run writes the deck for cfg into a fresh run directory and invokes the
// solver. A missing executable produces a dry-run result and a non-zero exit
// a failed one; neither is an error. The call blocks until the solver exits.
func (r *Runner) Run(cfg domain.MillConfig) (*domain.RunArtifacts, error) {
	return r.RunWithObserver(cfg, r.observer)
}

// RunWithObserver is Run with o receiving the stage notifications instead of
// the observer set at construction.
func (r *Runner) RunWithObserver(cfg domain.MillConfig, o Observer) (*domain.RunArtifacts, error) {
	notify := func(runID string, stage domain.EventType, detail map[string]any) {
		if o != nil {
			o(runID, stage, detail)
		}
	}

	runID := r.newRunID()
	outputDir := filepath.Join(r.workspace, runID)
	if err := os.Mkdir(outputDir, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("run %s: %w", runID, ErrRunConflict)
		}
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}
	notify(runID, domain.EventTypeRunStarted, map[string]any{"output_dir": outputDir})

	inputFile := filepath.Join(outputDir, InputFileName)
	logFile := filepath.Join(outputDir, LogFileName)
	dumpFile := filepath.Join(outputDir, deck.DumpFileName)

	if err := os.WriteFile(inputFile, []byte(deck.BuildInput(cfg)), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write input deck: %w", err)
	}
	notify(runID, domain.EventTypeDeckWritten, map[string]any{"input_file": inputFile})

	artifacts := &domain.RunArtifacts{
		RunID:     runID,
		OutputDir: outputDir,
		InputFile: inputFile,
		LogFile:   logFile,
	}

	executable, err := exec.LookPath(r.command)
	if err != nil {
		message := fmt.Sprintf("LIGGGHTS executable '%s' not found. Generated input deck only (dry-run mode).", r.command)
		if err := os.WriteFile(logFile, []byte(message+"\n"), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write log file: %w", err)
		}
		notify(runID, domain.EventTypeSolverMissing, map[string]any{"command": r.command})

		artifacts.Status = domain.RunStatusDryRun
		artifacts.Message = message
		artifacts.Command = []string{r.command, "-in", inputFile}
		artifacts.ChargeThrow = dump.Unavailable(msgRequiresRun)
		return artifacts, nil
	}

	artifacts.Command = []string{executable, "-in", inputFile}
	code, err := r.execute(runID, artifacts.Command, outputDir, logFile, notify)
	if err != nil {
		return nil, err
	}
	notify(runID, domain.EventTypeSolverExited, map[string]any{"exit_code": code})

	artifacts.Status = domain.RunStatusCompleted
	if code != 0 {
		artifacts.Status = domain.RunStatusFailed
	}
	artifacts.Message = fmt.Sprintf("LIGGGHTS exited with code %d.", code)

	artifacts.ChargeThrow = dump.Extract(cfg, dumpFile)
	detail := map[string]any{
		"source":  artifacts.ChargeThrow.Source,
		"message": artifacts.ChargeThrow.Message,
	}
	if artifacts.ChargeThrow.FrameCount != nil {
		detail["frame_count"] = *artifacts.ChargeThrow.FrameCount
	}
	if artifacts.ChargeThrow.SkippedFrames > 0 {
		detail["skipped_frames"] = artifacts.ChargeThrow.SkippedFrames
	}
	notify(runID, domain.EventTypeChargeThrowExtracted, detail)

	return artifacts, nil
}

// execute runs argv in dir with stdout and stderr sent to logPath and returns
// the exit code. A process that cannot be started reports -1.
func (r *Runner) execute(runID string, argv []string, dir, logPath string, notify Observer) (int, error) {
	logf, err := os.Create(logPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create log file: %w", err)
	}
	defer logf.Close()

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Stdout = logf
	cmd.Stderr = logf

	if err := cmd.Start(); err != nil {
		log.Printf("ERROR: failed to start solver for run %s: %v", runID, err)
		fmt.Fprintf(logf, "failed to start %s: %v\n", strings.Join(argv, " "), err)
		return -1, nil
	}
	notify(runID, domain.EventTypeSolverStarted, map[string]any{"pid": cmd.Process.Pid})

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		log.Printf("ERROR: solver wait failed for run %s: %v", runID, err)
		fmt.Fprintf(logf, "solver wait failed: %v\n", err)
		return -1, nil
	}
	return 0, nil
}

func randomRunID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:runIDLength]
}

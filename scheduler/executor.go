// Package scheduler runs the generational evolutionary loop: parent
// selection, variation, serialization, target execution, coverage
// ingestion, fitness scoring and corpus admission.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/choronzon/choronzon/coverage"
	"github.com/choronzon/choronzon/internal/invariant"
)

// Executor runs one trial's target under a coverage tracer and returns the
// ingested result. The binary-instrumentation tracer itself is outside
// this module's scope (see spec §1); Executor is the seam a real tracer
// integration implements.
type Executor interface {
	Execute(ctx context.Context, serialized []byte) (coverage.Result, error)
}

// ProcessExecutor is the POSIX target-spawn contract from §4.6 and the
// transport from §6: a stable input path, a FIFO the engine opens before
// the target is allowed to run, a wall-clock timeout enforced by sending
// SIGUSR2 to the target and waiting a grace period for the sentinel.
type ProcessExecutor struct {
	// TargetPath is the instrumented binary to execute.
	TargetPath string
	// TargetArgs is the target's argv; the literal token "{input}" is
	// replaced with the path to the trial's serialized input file.
	TargetArgs []string
	// RunDir holds the per-trial input file and FIFO. It is created if
	// missing, and the input file and FIFO are rewritten for every trial;
	// the engine owns its lifecycle entirely.
	RunDir string
	// Timeout is the per-trial wall-clock budget.
	Timeout time.Duration
	// Grace is how long Execute waits for the tracer to flush and send
	// the sentinel after signalling a timeout.
	Grace time.Duration
}

const (
	inputFileName = "trial.input"
	fifoFileName  = "trial.cov"
)

// Execute implements Executor.
func (e *ProcessExecutor) Execute(ctx context.Context, serialized []byte) (coverage.Result, error) {
	invariant.Precondition(e.TargetPath != "", "target path must be set")

	if err := os.MkdirAll(e.RunDir, 0o755); err != nil {
		return coverage.Result{}, fmt.Errorf("preparing run dir: %w", err)
	}

	inputPath := filepath.Join(e.RunDir, inputFileName)
	if err := os.WriteFile(inputPath, serialized, 0o644); err != nil {
		return coverage.Result{}, fmt.Errorf("writing trial input: %w", err)
	}

	fifoPath := filepath.Join(e.RunDir, fifoFileName)
	_ = os.Remove(fifoPath)
	if err := unix.Mkfifo(fifoPath, 0o600); err != nil {
		return coverage.Result{}, fmt.Errorf("creating coverage fifo: %w", err)
	}
	defer os.Remove(fifoPath)

	args := make([]string, len(e.TargetArgs))
	for i, a := range e.TargetArgs {
		args[i] = strings.ReplaceAll(a, "{input}", inputPath)
	}

	cmd := exec.Command(e.TargetPath, args...)

	// Open the read end of the FIFO before the target is allowed to run:
	// a blocking OpenFile would deadlock against the target's own open of
	// the write end, so the open happens concurrently with Start.
	type openResult struct {
		f   *os.File
		err error
	}
	opened := make(chan openResult, 1)
	go func() {
		f, err := os.OpenFile(fifoPath, os.O_RDONLY, 0)
		opened <- openResult{f: f, err: err}
	}()

	if err := cmd.Start(); err != nil {
		return coverage.Result{}, &TargetSpawnError{Reason: err.Error()}
	}

	var pipe *os.File
	select {
	case r := <-opened:
		if r.err != nil {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return coverage.Result{}, fmt.Errorf("opening coverage fifo: %w", r.err)
		}
		pipe = r.f
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return coverage.Result{}, ctx.Err()
	}
	defer pipe.Close()

	var timeoutSignaled atomic.Bool

	type ingestOutcome struct {
		result coverage.Result
		err    error
	}
	ingestCh := make(chan ingestOutcome, 1)
	go func() {
		res, err := coverage.Ingest(pipe, false)
		if err == nil && res.Termination.Reason == coverage.TracerError && timeoutSignaled.Load() {
			res.Termination.Reason = coverage.Timeout
		}
		ingestCh <- ingestOutcome{result: res, err: err}
	}()

	timer := time.NewTimer(e.Timeout)
	defer timer.Stop()

	select {
	case out := <-ingestCh:
		_ = cmd.Wait()
		return out.result, out.err

	case <-timer.C:
		timeoutSignaled.Store(true)
		_ = cmd.Process.Signal(syscall.SIGUSR2)
		select {
		case out := <-ingestCh:
			_ = cmd.Wait()
			return out.result, out.err
		case <-time.After(e.Grace):
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return coverage.Result{Termination: coverage.Termination{Reason: coverage.Timeout}}, nil
		}
	}
}

// TargetSpawnError means the target process could not be started at all
// (missing binary, permission denied). The scheduler counts it like any
// other execution failure toward the consecutive-failure budget, so enough
// of them in a row abort the run.
type TargetSpawnError struct {
	Reason string
}

func (e *TargetSpawnError) Error() string {
	return fmt.Sprintf("failed to spawn target: %s", e.Reason)
}

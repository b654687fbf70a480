// Package cli implements the choronzon command-line interface: init, run,
// resume and replay, wired through cobra the way the reference repo this
// engine's idioms are drawn from wires its own root command.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/choronzon/choronzon/internal/runlog"
)

// Exit codes the CLI returns, per the campaign's failure taxonomy: a
// clean stop, a usage or config error, and the engine giving up after its
// consecutive tracer-error budget was exceeded.
const (
	ExitOK             = 0
	ExitUsageError     = 1
	ExitBudgetExceeded = 2
	ExitInterrupted    = 130
)

// Execute builds and runs the root command, returning the process exit
// code. It never calls os.Exit itself so callers' deferred cleanup runs.
func Execute(args []string) int {
	var (
		noColor bool
		debug   bool
		quiet   bool
	)

	root := &cobra.Command{
		Use:           "choronzon",
		Short:         "An evolutionary, coverage-guided file-format fuzzer",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable verbose structured logging")
	root.PersistentFlags().BoolVar(&quiet, "quiet", false, "log only warnings and errors")

	root.AddCommand(
		newInitCmd(),
		newRunCmd(&debug, &quiet),
		newResumeCmd(&debug, &quiet),
		newReplayCmd(&debug, &quiet),
	)
	root.SetArgs(args)

	exitCode := ExitOK
	if err := root.Execute(); err != nil {
		useColor := ShouldUseColor(noColor)
		FormatError(os.Stderr, err, useColor)
		switch {
		case isBudgetExceeded(err):
			exitCode = ExitBudgetExceeded
		case isInterrupted(err):
			exitCode = ExitInterrupted
		default:
			exitCode = ExitUsageError
		}
	}
	return exitCode
}

func logLevel(debug, quiet *bool) runlog.Level {
	switch {
	case *debug:
		return runlog.Debug
	case *quiet:
		return runlog.Quiet
	default:
		return runlog.Normal
	}
}

// cancellableContext returns a context cancelled on SIGINT or SIGTERM, so
// a running campaign finishes (or times out) its in-flight trial and
// checkpoints before exiting, rather than being killed mid-write.
func cancellableContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()
	return ctx, cancel
}

type budgetExceededError struct{ err error }

func (e *budgetExceededError) Error() string { return e.err.Error() }
func (e *budgetExceededError) Unwrap() error { return e.err }

func isBudgetExceeded(err error) bool {
	_, ok := err.(*budgetExceededError)
	return ok
}

type interruptedError struct{ err error }

func (e *interruptedError) Error() string { return e.err.Error() }
func (e *interruptedError) Unwrap() error { return e.err }

func isInterrupted(err error) bool {
	_, ok := err.(*interruptedError)
	return ok
}

// Package cmd provides the CLI commands for dictv.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	dictverrors "github.com/mmtftr/dictv/internal/errors"
	"github.com/mmtftr/dictv/internal/logging"
	"github.com/mmtftr/dictv/internal/profiling"
	"github.com/mmtftr/dictv/pkg/version"
)

// Profiling flags, shared across the process the way the teacher's CLI
// threads them through PersistentPreRunE/PersistentPostRunE.
var (
	profileCPU   string
	profileMem   string
	profileTrace string
	profiler     = profiling.NewProfiler()
	cpuCleanup   func()
	traceCleanup func()
)

// Debug logging flag.
var (
	debugMode      bool
	loggingCleanup func()
)

// dataRoot is the --data-root override for the on-disk index/data layout;
// empty means manager.Open resolves $HOME/.dictv.
var dataRoot string

// NewRootCmd creates the root command for the dictv CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dictv",
		Short: "Self-hosted bilingual dictionary lookup service",
		Long: `dictv serves fast, diacritic-insensitive German<->English dictionary
lookups from a DICTD-format dictionary, over both a CLI and an HTTP API.

Import a dictionary feed, build the index, then query it:

  dictv import --download de-en
  dictv rebuild
  dictv query grussen --mode fuzzy`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("dictv version {{.Version}}\n")

	cfg := effectiveConfig()

	cmd.PersistentFlags().StringVar(&dataRoot, "data-root", cfg.Paths.DataRoot, "Data root directory (default: ~/.dictv)")
	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileTrace, "profile-trace", "", "Write execution trace to file")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.dictv/logs/")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newRebuildCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newDoctorCmd())

	return cmd
}

// startProfilingAndLogging starts CPU/trace profiling and debug logging if
// the corresponding flags are set.
func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	var err error

	if debugMode {
		logger, cleanup, err := logging.Setup(logging.DebugConfig())
		if err != nil {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		loggingCleanup = cleanup
		slog.SetDefault(logger)
		slog.Info("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	}

	if profileCPU != "" {
		cpuCleanup, err = profiler.StartCPU(profileCPU)
		if err != nil {
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
	}

	if profileTrace != "" {
		traceCleanup, err = profiler.StartTrace(profileTrace)
		if err != nil {
			if cpuCleanup != nil {
				cpuCleanup()
			}
			return fmt.Errorf("failed to start trace: %w", err)
		}
	}

	return nil
}

// stopProfilingAndLogging stops profiling and logging, writing the memory
// profile if requested.
func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	if cpuCleanup != nil {
		cpuCleanup()
		cpuCleanup = nil
	}
	if traceCleanup != nil {
		traceCleanup()
		traceCleanup = nil
	}

	if profileMem != "" {
		if err := profiler.WriteHeap(profileMem); err != nil {
			return fmt.Errorf("failed to write memory profile: %w", err)
		}
	}

	if loggingCleanup != nil {
		slog.Info("debug logging stopped")
		loggingCleanup()
		loggingCleanup = nil
	}

	return nil
}

// Execute runs the root command and returns a process exit code: 0 on
// success, 1 for a usage/validation error, 2 for an I/O or network error, 3
// for an index-corruption error, per spec.md's CLI exit-code contract.
func Execute() int {
	cmd := NewRootCmd()
	err := cmd.Execute()
	if err == nil {
		return 0
	}
	fmt.Fprint(cmd.ErrOrStderr(), dictverrors.FormatForCLI(err))
	return exitCodeForError(err)
}

// exitCodeForError maps a DictvError to the exit code spec.md §6 assigns
// its category. Index-related codes are checked explicitly first since they
// sit in the IO or internal category numerically but warrant their own exit
// code.
func exitCodeForError(err error) int {
	switch dictverrors.GetCode(err) {
	case dictverrors.ErrCodeIndexCorrupt, dictverrors.ErrCodeIndexLineBad,
		dictverrors.ErrCodeIndexFailed, dictverrors.ErrCodeDictTruncated,
		dictverrors.ErrCodeOffsetOutOfRange:
		return 3
	}

	switch dictverrors.GetCategory(err) {
	case dictverrors.CategoryConfig, dictverrors.CategoryValidation:
		return 1
	case dictverrors.CategoryIO, dictverrors.CategoryNetwork:
		return 2
	default:
		return 1
	}
}

package cmd

import (
	"context"
	"log/slog"

	"github.com/mmtftr/dictv/internal/config"
	"github.com/mmtftr/dictv/internal/manager"
	"github.com/mmtftr/dictv/internal/ui"
)

// openManager opens the Manager rooted at the --data-root flag (or the
// default $HOME/.dictv when unset), the single entry point every data- or
// index-touching subcommand goes through.
func openManager(ctx context.Context) (*manager.Manager, error) {
	return manager.Open(ctx, dataRoot, slog.Default())
}

// effectiveConfig loads the merged configuration (defaults -> user config
// -> project .dictv.yaml in the current directory -> DICTV_* env vars) used
// to seed flag defaults across subcommands. A load/validation error falls
// back to hardcoded defaults rather than failing every command's flag
// registration over a bad config file; 'dictv config show' is the place to
// surface that error explicitly.
func effectiveConfig() *config.Config {
	cfg, err := config.Load(".")
	if err != nil {
		return config.NewConfig()
	}
	return cfg
}

// progressStage maps an indexer.ProgressFunc stage name to the ui package's
// Stage enum driving the CLI's progress renderer.
func progressStage(stage string) ui.Stage {
	switch stage {
	case "reading":
		return ui.StageReading
	case "committing":
		return ui.StageCommitting
	case "complete":
		return ui.StageComplete
	default:
		return ui.StageReading
	}
}

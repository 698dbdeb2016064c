package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mmtftr/dictv/internal/config"
	"github.com/mmtftr/dictv/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage dictv's user configuration",
		Long: `Manage the user/global configuration file at
~/.config/dictv/config.yaml (or $XDG_CONFIG_HOME/dictv/config.yaml).

It sets the defaults dictv's other commands fall back to when a flag is
omitted: the data root, default search mode/language/limit, the HTTP
server port, and the index writer's batch size. A project-local
.dictv.yaml (in the current directory) and DICTV_* environment variables
both take precedence over it; see 'dictv config show' for the merged
result.`,
		Example: `  dictv config init
  dictv config show
  dictv config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigBackupCmd())
	cmd.AddCommand(newConfigRestoreCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the user configuration file",
		RunE: func(c *cobra.Command, _ []string) error {
			out := output.New(c.OutOrStdout())
			path := config.GetUserConfigPath()

			if config.UserConfigExists() && !force {
				out.Warning("User configuration already exists")
				out.Statusf("", "Location: %s", path)
				out.Status("", "Use --force to overwrite it (a backup is kept first)")
				return nil
			}

			if config.UserConfigExists() {
				backupPath, err := config.BackupUserConfig()
				if err != nil {
					return fmt.Errorf("backup existing config: %w", err)
				}
				out.Statusf("", "Backed up existing config to %s", backupPath)
			}

			if err := os.MkdirAll(config.GetUserConfigDir(), 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if err := config.NewConfig().WriteYAML(path); err != nil {
				return fmt.Errorf("write config: %w", err)
			}

			out.Success("Created user configuration")
			out.Statusf("", "Location: %s", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var jsonOutput bool
	var source string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(c *cobra.Command, _ []string) error {
			var cfg *config.Config
			var sourceDesc string

			switch source {
			case "merged":
				loaded, err := config.Load(".")
				if err != nil {
					return err
				}
				cfg = loaded
				sourceDesc = "merged (defaults + user + project + env)"
			case "user":
				loaded, err := config.LoadUserConfig()
				if err != nil {
					return err
				}
				if loaded == nil {
					fmt.Fprintln(c.OutOrStdout(), "no user configuration found; run 'dictv config init'")
					return nil
				}
				cfg = loaded
				sourceDesc = fmt.Sprintf("user (%s)", config.GetUserConfigPath())
			case "defaults":
				cfg = config.NewConfig()
				sourceDesc = "defaults (hardcoded)"
			default:
				return fmt.Errorf("invalid --source %q (use: merged, user, defaults)", source)
			}

			if jsonOutput {
				enc := json.NewEncoder(c.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			}

			fmt.Fprintf(c.OutOrStdout(), "# %s\n", sourceDesc)
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Fprint(c.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, user, defaults")
	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the user configuration file path",
		RunE: func(c *cobra.Command, _ []string) error {
			fmt.Fprintln(c.OutOrStdout(), config.GetUserConfigPath())
			return nil
		},
	}
}

func newConfigBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Back up the current user configuration",
		RunE: func(c *cobra.Command, _ []string) error {
			path, err := config.BackupUserConfig()
			if err != nil {
				return err
			}
			if path == "" {
				fmt.Fprintln(c.OutOrStdout(), "no user configuration to back up")
				return nil
			}
			fmt.Fprintln(c.OutOrStdout(), path)
			return nil
		},
	}
}

func newConfigRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <backup-path>",
		Short: "Restore the user configuration from a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return config.RestoreUserConfig(args[0])
		},
	}
}

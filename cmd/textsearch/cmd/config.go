package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/textsearch/internal/config"
	"github.com/Aman-CERP/textsearch/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage user configuration",
		Long: `Manage the user configuration file.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/textsearch/config.yaml, .yml or .toml)
  3. The file given with --config
  4. Environment variables (TEXTSEARCH_*)`,
		Example: `  # Create user config with the defaults
  textsearch config init

  # Show effective configuration
  textsearch config show

  # Restore the newest backup
  textsearch config restore`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigRestoreCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		force  bool
		format string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create user configuration file",
		Long: `Write the default configuration to the user config directory.
An existing file is only replaced with --force, after it is backed up.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(output.New(cmd.OutOrStdout()), force, format)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	cmd.Flags().StringVar(&format, "format", "yaml", "File format: yaml, toml")

	return cmd
}

func runConfigInit(out *output.Writer, force bool, format string) error {
	var name string
	switch format {
	case "yaml":
		name = "config.yaml"
	case "toml":
		name = "config.toml"
	default:
		return fmt.Errorf("unknown format %q: use yaml or toml", format)
	}

	var existing string
	if config.UserConfigExists() {
		existing = config.GetUserConfigPath()
		if !force {
			out.Warning("User configuration already exists")
			out.Statusf("", "Location: %s", existing)
			out.Dim("Use --force to overwrite it.")
			return nil
		}
		backup, err := config.BackupUserConfig()
		if err != nil {
			return err
		}
		out.Statusf("", "Backed up to %s", backup)
	}

	path := filepath.Join(config.GetUserConfigDir(), name)
	if err := config.NewConfig().WriteFile(path); err != nil {
		return err
	}
	// A file of the other format would shadow or be shadowed by the new one.
	if existing != "" && existing != path {
		if err := os.Remove(existing); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", existing, err)
		}
	}
	out.Successf("Created %s", path)
	return nil
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long:  `Show the configuration after merging defaults, files and environment.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())
			cfg := currentConfig()
			if jsonOutput {
				return out.JSON(cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print user config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}

func newConfigRestoreCmd() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "restore [backup]",
		Short: "Restore the user configuration from a backup",
		Long: `Restore the user configuration from a backup, the newest when none is
named. The current file is backed up first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.New(cmd.OutOrStdout())
			backups, err := config.ListUserConfigBackups()
			if err != nil {
				return err
			}
			if list {
				if jsonOutput {
					return out.JSON(backups)
				}
				for _, b := range backups {
					out.Status("", b)
				}
				return nil
			}

			var target string
			switch {
			case len(args) == 1:
				target = args[0]
			case len(backups) > 0:
				target = backups[0]
			default:
				return fmt.Errorf("no configuration backups found")
			}
			if err := config.RestoreUserConfig(target); err != nil {
				return err
			}
			out.Successf("Restored %s", target)
			return nil
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "List backups, newest first")

	return cmd
}

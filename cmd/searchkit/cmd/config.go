package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/searchkit/configs"
	"github.com/Aman-CERP/searchkit/internal/config"
	"github.com/Aman-CERP/searchkit/internal/errors"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage the searchkit configuration.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/searchkit/config.yaml)
  3. Project config (.searchkit.yaml)
  4. Environment variables (SEARCHKIT_*)

With --config only the given file is read.`,
		Example: `  # Create a project config with an example schema
  searchkit config init

  # Show the effective configuration
  searchkit config show

  # Check the configuration and schema
  searchkit config validate`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigValidateCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigRestoreCmd())

	return cmd
}

// targetConfigPath is the file init and restore work on.
func targetConfigPath() (string, error) {
	if configFile != "" {
		return configFile, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, config.ProjectFile), nil
}

func newConfigInitCmd() *cobra.Command {
	var force, user bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file from the template",
		Long: `Create .searchkit.yaml in the working directory (or the --config file)
from the commented template, including an example schema. With --user the
machine-wide user config is written instead.

An existing file is only replaced with --force; the old one is kept as a
timestamped backup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			template := configs.ProjectConfigTemplate
			path, err := targetConfigPath()
			if user {
				template, path, err = configs.UserConfigTemplate, config.GetUserConfigPath(), nil
			}
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil {
				if !force {
					return errors.ConfigError(fmt.Sprintf("%s already exists", path), nil).
						WithSuggestion("Use --force to overwrite it")
				}
				backup, err := config.Backup(path, time.Now())
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Backed up %s\n", backup)
			}
			if err := config.WriteFile(path, []byte(template)); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
			return err
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.Flags().BoolVar(&user, "user", false, "Write the user config instead of the project config")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			masked := *cfg
			masked.Backend.Password = mask(cfg.Backend.Password)
			masked.Backend.APIKey = mask(cfg.Backend.APIKey)

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), masked)
			}
			data, err := yaml.Marshal(&masked)
			if err != nil {
				return errors.InternalError("failed to marshal config", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and its schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := loadConfig()
			if err != nil {
				return err
			}
			sch, err := cfg.BuildSchema()
			if err != nil {
				return err
			}
			if _, err := cfg.SearchConfig(nil); err != nil {
				return err
			}
			if path == "" {
				path = "defaults"
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Configuration OK (%s): backend %s, %d fields, schema version %d\n",
				path, cfg.Backend.Kind, sch.Len(), sch.Version)
			return err
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "user:    %s\n", config.GetUserConfigPath())
			root, err := config.FindProjectRoot(".")
			if err != nil {
				return err
			}
			project := config.ProjectConfigPath(root)
			if project == "" {
				project = "(none, searched from " + root + ")"
			}
			_, err = fmt.Fprintf(out, "project: %s\n", project)
			return err
		},
	}
}

func newConfigRestoreCmd() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "restore [backup]",
		Short: "Restore the project configuration from a backup",
		Long: `Restore the project configuration from a backup written by
'config init --force'. Without an argument the newest backup is used.
The current file is backed up first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := targetConfigPath()
			if err != nil {
				return err
			}
			backups, err := config.ListBackups(path)
			if err != nil {
				return err
			}
			if list {
				for _, b := range backups {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), b)
				}
				return nil
			}
			from := ""
			if len(args) == 1 {
				from = args[0]
			} else if len(backups) > 0 {
				from = backups[0]
			}
			if from == "" {
				return errors.New(errors.ErrCodeConfigNotFound, "no backups of "+path, nil)
			}
			if err := config.Restore(path, from, time.Now()); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Restored %s from %s\n", path, from)
			return err
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "List the backups, newest first")
	return cmd
}

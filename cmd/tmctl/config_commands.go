package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"tmengine/internal/config"
	"tmengine/internal/tmerr"
)

const skipConfigLoad = "skipConfigLoad"

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	configCmd.AddCommand(
		newConfigInitCommand(),
		newConfigValidateCommand(ctx),
		newConfigShowCommand(ctx),
	)
	return configCmd
}

// initTarget resolves where config init writes, defaulting to the user
// config path.
func initTarget(flag string) (string, error) {
	if flag = strings.TrimSpace(flag); flag == "" {
		return config.DefaultConfigPath()
	}
	return config.ExpandPath(flag)
}

func newConfigInitCommand() *cobra.Command {
	var (
		targetPath string
		overwrite  bool
	)
	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a commented sample tmengine.toml",
		Annotations: map[string]string{skipConfigLoad: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := initTarget(targetPath)
			if err != nil {
				return fmt.Errorf("resolve config path: %w", err)
			}
			if _, err := os.Stat(target); err == nil && !overwrite {
				return tmerr.Wrap(tmerr.ErrConflict, "config", "init",
					fmt.Sprintf("%s already exists (pass --overwrite to replace it)", target), nil)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("check config path: %w", err)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(cmd.OutOrStdout(), "Edit [paths] and [archive] before the first import.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Load the configuration and report where data lives",
		Annotations: map[string]string{skipConfigLoad: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(strings.TrimSpace(*ctx.configFlag))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			source := path
			if !exists {
				source = path + " (missing, defaults used)"
			}
			out := cmd.OutOrStdout()
			for _, line := range [][2]string{
				{"Config", source},
				{"Database", cfg.DatabasePath()},
				{"Archive", yesNo(cfg.Archive.Enabled)},
				{"Log level", cfg.Logging.Level},
			} {
				fmt.Fprintf(out, "%-9s %s\n", line[0]+":", line[1])
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			shown := *cfg
			shown.Archive.S3AccessKey = mask(shown.Archive.S3AccessKey)
			shown.Archive.S3SecretKey = mask(shown.Archive.S3SecretKey)
			if ctx.jsonOutput() {
				return writeJSON(cmd, shown)
			}
			return toml.NewEncoder(cmd.OutOrStdout()).Encode(shown)
		},
	}
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "****"
}

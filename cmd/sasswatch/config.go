package main

import (
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
	"github.com/aellingwood/sasswatch/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved configuration",
	Long: `Print the fully resolved configuration after merging defaults, the config
file, SASSWATCH_* environment variables and SASS_PATH.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return writeConfig(cmd.OutOrStdout(), cfg, format)
	},
}

func init() {
	configCmd.Flags().StringP("format", "f", "yaml", "output format: yaml or toml")
	rootCmd.AddCommand(configCmd)
}

func writeConfig(w io.Writer, cfg *config.Config, format string) error {
	switch format {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("encoding config as YAML: %w", err)
		}
		return enc.Close()
	case "toml":
		if err := toml.NewEncoder(w).Encode(cfg); err != nil {
			return fmt.Errorf("encoding config as TOML: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q (want yaml or toml)", format)
	}
}

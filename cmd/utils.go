package cmd

import (
	"os"
	"path/filepath"

	"github.com/kevin-valerio/phink/config"
	"github.com/kevin-valerio/phink/logging/colors"
	"github.com/spf13/cobra"
)

// loadConfigForContract reads phink.toml from the current directory (or
// --config's directory, if supplied), sets the contract's source directory
// to contractPath, the positional argument every contract subcommand
// accepts, and fills the WASM/metadata paths relative to contractPath when
// the configuration leaves them empty (configured paths are kept).
func loadConfigForContract(cmd *cobra.Command, contractPath string) (config.FuzzConfig, error) {
	configDir := "."
	if cmd.Flags().Changed("config") {
		configPath, err := cmd.Flags().GetString("config")
		if err != nil {
			return config.FuzzConfig{}, err
		}
		configDir = filepath.Dir(configPath)
	} else if _, err := os.Stat(DefaultProjectConfigFilename); err == nil {
		cmdLogger.Info("Reading the configuration file at: ", colors.Bold, DefaultProjectConfigFilename, colors.Reset)
	}

	cfg, err := config.Load(configDir)
	if err != nil {
		return cfg, err
	}

	cfg.Instrumentation.SourceDir = contractPath
	if cfg.Contract.WASMPath == "" {
		cfg.Contract.WASMPath = filepath.Join(contractPath, "target", "ink", "contract.wasm")
	}
	if cfg.Contract.MetadataPath == "" {
		cfg.Contract.MetadataPath = filepath.Join(contractPath, "target", "ink", "contract.json")
	}

	return cfg, nil
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/manu4linux/archivedir/internal/config"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "archivedir",
	Short: "archivedir - streaming directory backup with splitting and encryption",
	Long: `archivedir archives directories into compressed, optionally encrypted,
size-split part files and stores them locally or in S3, Google Drive or OneDrive.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

// loadConfig reads the config file when given, otherwise starts from
// defaults. Command flags are applied on top by the callers.
func loadConfig(log *zap.Logger) (*config.Config, error) {
	if cfgFile != "" {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		return cfg, nil
	}
	log.Debug("no config file specified, using defaults")
	return config.Defaults(), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

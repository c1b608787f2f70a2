package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/syy-ex/hair-makeover/config"
	"github.com/syy-ex/hair-makeover/pkg/logger"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "hair-makeover",
	Short:         "Hair makeover backend: points, recharges and image generation",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		if err := logger.InitLogger(&logger.Config{
			Level:      loaded.LogLevel,
			Filename:   loaded.LogFilename,
			MaxSize:    loaded.LogMaxSize,
			MaxBackups: loaded.LogMaxBackups,
			MaxAge:     loaded.LogMaxAge,
			Compress:   loaded.LogCompress,
		}); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		cfg = loaded
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

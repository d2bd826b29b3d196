package cmd

import (
	"fmt"
	"os"

	"github.com/ojparkinson/massbalance/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	verbose  bool
	logLevel string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "massbalance",
	Short: "Cut and fill volumes from road profile drawings",
	Long: `massbalance reads the grade (greide) and natural terrain (terreno) profiles of a
longitudinal road drawing and computes the cut and fill areas of every station bin.

Drawings are decomposed documents (.json or .yaml) holding each layer's polylines and
the drawing's free texts. Run it once over a set of files with "calculate", inspect a
drawing with "analyze", or start the HTTP service with "serve".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.LoadConfig()
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}

		var err error
		logger, err = newLogger(verbose, cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("failed to initialise logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "development logging at debug level")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")

	rootCmd.AddCommand(calculateCmd, analyzeCmd, serveCmd)
}

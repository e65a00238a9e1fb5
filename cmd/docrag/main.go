// Command docrag runs the document indexing and question answering service.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/config"
	logpkg "github.com/kailas-cloud/docrag/internal/logger"
	"github.com/kailas-cloud/docrag/internal/version"
)

// runtime is shared by subcommands after PersistentPreRunE.
type runtime struct {
	env    string
	cfg    config.Config
	logger *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rt := &runtime{}
	var envFile string

	root := &cobra.Command{
		Use:           "docrag",
		Short:         "Document indexing and retrieval-augmented answering",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			// A missing .env is normal outside local development.
			if err := godotenv.Load(envFile); err != nil && cmd.Flags().Changed("env-file") {
				return fmt.Errorf("load %s: %w", envFile, err)
			}

			rt.env = config.GetEnv()
			cfg, err := config.Load(rt.env)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			rt.cfg = cfg

			logger, err := logpkg.NewLogger(rt.env, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			rt.logger = logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if rt.logger != nil {
				_ = rt.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading config")

	root.AddCommand(
		newServeCmd(rt),
		newIngestCmd(rt),
		newAskCmd(rt),
		newReconcileCmd(rt),
		newVersionCmd(),
	)
	return root
}

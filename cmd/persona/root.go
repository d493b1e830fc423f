package main

import (
	"encoding/json"
	"io"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"persona/internal/bootstrap"
	"persona/internal/infra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "persona",
		Short:         "Generate persona emotion images against the workflow engine",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(*cobra.Command, []string) {
			_ = godotenv.Load(".env.local")
			_ = godotenv.Load()
		},
	}
	root.AddCommand(newGenerateCmd(), newRegenerateCmd(), newValidateCmd())
	return root
}

// buildRuntime loads configuration from the environment and wires the generator.
func buildRuntime(cmd *cobra.Command) (*bootstrap.Runtime, *infra.Logger, error) {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := infra.NewLogger(cfg.AppEnv).Output(cmd.ErrOrStderr())
	rt, err := bootstrap.Build(cmd.Context(), cfg, &logger)
	if err != nil {
		return nil, nil, err
	}
	return rt, &logger, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/reelsmith/reelsmith/internal/config"
)

func main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := &cobra.Command{
		Use:          "reelsmith",
		Short:        "Automated short-form video post-production",
		Version:      config.Version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	root.AddCommand(serveCommand(), processCommand(), assetsCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when configured, the Kafka job consumer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func processCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process <video>",
		Short: "Run the full pipeline on a local file and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			transitions, _ := cmd.Flags().GetString("transitions")
			audios, _ := cmd.Flags().GetString("audios")
			requestID, _ := cmd.Flags().GetString("request-id")
			return runProcess(cmd.Context(), cmd.OutOrStdout(), args[0], transitions, audios, requestID)
		},
	}
	cmd.Flags().String("transitions", "", "JSON array of transitions, e.g. '[{\"id\":\"whoosh\",\"time\":2}]'")
	cmd.Flags().String("audios", "", "JSON array of background audio overlays")
	cmd.Flags().String("request-id", "", "Progress key for this run (default: random)")
	return cmd
}

func assetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "assets",
		Short: "List the transition and background track catalogs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssets(cmd.OutOrStdout())
		},
	}
}

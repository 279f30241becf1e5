package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ar210505/rubric-coder-intel/pkg/client"
)

var (
	serverURL    string
	token        string
	waitResult   bool
	pollInterval time.Duration
	waitTimeout  time.Duration

	rootCmd = &cobra.Command{
		Use:          "rubricctl",
		Short:        "Upload documents for rubric evaluation and inspect the results",
		SilenceUsage: true,
	}

	submitCmd = &cobra.Command{
		Use:   "submit [rubric-id] [file]",
		Short: "Upload a document and optionally wait for its evaluation",
		Args:  cobra.ExactArgs(2),
		RunE:  runSubmit,
	}

	waitCmd = &cobra.Command{
		Use:   "wait [submission-id]",
		Short: "Poll until a submission has been evaluated",
		Args:  cobra.ExactArgs(1),
		RunE:  runWait,
	}

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate evaluation stats",
		Args:  cobra.NoArgs,
		RunE:  runStats,
	}

	rubricsCmd = &cobra.Command{
		Use:   "rubrics",
		Short: "List your rubrics",
		Args:  cobra.NoArgs,
		RunE:  runRubrics,
	}

	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Install the built-in default rubrics",
		Args:  cobra.NoArgs,
		RunE:  runSeed,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOrDefault("RUBRIC_SERVER_URL", "http://localhost:8080"), "API base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("RUBRIC_TOKEN"), "bearer token")
	rootCmd.PersistentFlags().DurationVar(&pollInterval, "poll-interval", client.DefaultPollInterval, "evaluation polling interval")
	rootCmd.PersistentFlags().DurationVar(&waitTimeout, "timeout", 5*time.Minute, "give up waiting after this long")

	submitCmd.Flags().BoolVar(&waitResult, "wait", false, "wait for the evaluation before returning")

	rootCmd.AddCommand(submitCmd, waitCmd, statsCmd, rubricsCmd, seedCmd)
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func newClient() *client.Client {
	return client.New(serverURL, token, client.WithPollInterval(pollInterval), client.WithLogger(log.Logger))
}

// commandContext is cancelled on SIGINT/SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}

func printJSON(cmd *cobra.Command, value interface{}) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	file, err := os.Open(args[1])
	if err != nil {
		return fmt.Errorf("open %s: %w", args[1], err)
	}
	defer file.Close()

	c := newClient()
	submission, err := c.Upload(ctx, args[0], filepath.Base(args[1]), file)
	if err != nil {
		return err
	}
	log.Info().Str("submission_id", submission.ID).Msg("submission uploaded")

	if !waitResult {
		return printJSON(cmd, submission)
	}

	ctx, cancel := context.WithTimeout(ctx, waitTimeout)
	defer cancel()

	evaluation, err := c.WaitForEvaluation(ctx, submission.ID)
	if err != nil {
		return err
	}
	return printJSON(cmd, evaluation)
}

func runWait(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, waitTimeout)
	defer cancel()

	evaluation, err := newClient().WaitForEvaluation(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd, evaluation)
}

func runStats(cmd *cobra.Command, _ []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	stats, err := newClient().Stats(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd, stats)
}

func runRubrics(cmd *cobra.Command, _ []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	rubrics, err := newClient().Rubrics(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd, rubrics)
}

func runSeed(cmd *cobra.Command, _ []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	rubrics, err := newClient().SeedDefaultRubrics(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd, rubrics)
}

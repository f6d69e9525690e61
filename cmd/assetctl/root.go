package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"assetapi/internal/cli/ui"
	"assetapi/internal/client"
	"assetapi/internal/config"
	"assetapi/internal/logger"
)

var (
	apiClient *client.Client

	flagBaseURL string
	flagTimeout time.Duration
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "assetctl",
	Short: "Manage images on the asset API",
	Long: "assetctl talks to the asset API: it uploads images (shrinking large ones first),\n" +
		"replaces and deletes them, and resolves their public URLs.\n\n" +
		"Settings come from ASSET_API_BASE_URL and UPLOAD_TIMEOUT_SEC unless overridden by flags.",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initClient,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "API base URL (default $ASSET_API_BASE_URL)")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 0, "request timeout, clamped to 60s..120s")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log transport details to stderr")

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(replaceCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(existsCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(urlCmd)
}

func initClient(cmd *cobra.Command, _ []string) error {
	cfg := config.LoadClient()
	if flagBaseURL != "" {
		cfg.BaseURL = flagBaseURL
	}
	if flagTimeout != 0 {
		cfg.Timeout = config.ClampUploadTimeout(flagTimeout)
	}

	level := "warn"
	if flagVerbose {
		level = "debug"
	}
	log := logger.New(cmd.ErrOrStderr(), level, "text")

	apiClient = client.NewFromConfig(cfg, client.WithLogger(log))
	return nil
}

// commandContext is cancelled on SIGINT/SIGTERM so an in-flight upload aborts cleanly.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// fail prints err the way an end user should see it and returns it for the exit code.
func fail(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), ui.FormatError(client.UserMessage(err)))
	var se *client.ServerError
	if flagVerbose || errors.As(err, &se) && se.Status >= 500 {
		fmt.Fprintln(cmd.ErrOrStderr(), ui.FormatMuted(err.Error()))
	}
	return err
}

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"docweave/internal/app"

	"github.com/spf13/cobra"
)

// serveDebug enables verbose logging across the application.
var serveDebug bool

// serveSilent discards all log output.
var serveSilent bool

// serveConfigPath names the YAML configuration file (or a directory holding
// config.yaml) that is layered between the built-in defaults and the
// environment variable overrides. Empty skips the file layer.
var serveConfigPath string

// serveCmd starts the docweave HTTP server: repository selection, status
// queries, progress streaming, and the webhook receiver.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the docweave HTTP server",
	Long: `Starts the docweave HTTP server, which exposes repository selection,
status, and progress-streaming endpoints, and receives provider webhooks
to keep generated documentation current as repositories change.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := app.NewConfig(serveDebug, serveSilent, serveConfigPath)

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return application.Run(ctx)
}

// newServeCmd constructs the serve command and registers its flags.
func newServeCmd() *cobra.Command {
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable verbose logging")
	serveCmd.Flags().BoolVar(&serveSilent, "silent", false, "Discard all log output")
	serveCmd.Flags().StringVar(&serveConfigPath, "config-path", "", "Path to a YAML configuration file or a directory containing config.yaml (environment variables still override it)")
	return serveCmd
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaharia-lab/newsletter/internal/config"
)

// NewRootCmd returns the "newsletter" command with every subcommand attached.
func NewRootCmd(cfg *config.AppConfig) *cobra.Command {
	var dataDir string

	root := &cobra.Command{
		Use:   "newsletter",
		Short: "Newsletter subscriber registry and event router",
		Long: `Maintain a list of newsletter subscribers and react to subscribe,
unsubscribe and trigger events. A trigger emits one send_newsletter event
addressed to the whole list.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			// CLI flags override env config.
			if cmd.Flags().Changed("data-dir") {
				cfg.DataDir = dataDir
			}
		},
	}
	root.PersistentFlags().StringVar(&dataDir, "data-dir", cfg.DataDir, "Data directory (overrides NEWSLETTER_DATA_DIR env var)")

	root.AddCommand(NewServeCmd(cfg))
	root.AddCommand(NewListCmd(cfg))
	root.AddCommand(NewEventCmd(cfg))
	root.AddCommand(NewVersionCmd())
	return root
}

// Execute loads the configuration, including a .env file in the working
// directory, and runs the root command.
func Execute() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := NewRootCmd(cfg).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

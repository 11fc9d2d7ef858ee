package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shaharia-lab/newsletter/internal/config"
	"github.com/shaharia-lab/newsletter/internal/newsletter"
)

// NewListCmd returns the "list" subcommand that prints the subscriber list.
func NewListCmd(cfg *config.AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the current subscribers",
		Long:  `Run the "List all subscribers" job once and print the list to stdout.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ctx := cmd.Context()
			reg := a.registry(newCapturePublisher(ctx, a))
			if err := reg.ListSubscribersJob(ctx); err != nil {
				return err
			}
			list, err := reg.Subscribers(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), newsletter.FormatSubscriberListing(list))
			return nil
		},
	}
}

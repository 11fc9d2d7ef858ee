package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaharia-lab/newsletter/internal/config"
	"github.com/shaharia-lab/newsletter/internal/eventbus"
)

// NewEventCmd returns the "event" subcommand that dispatches one inbound
// event synchronously against the database.
func NewEventCmd(cfg *config.AppConfig) *cobra.Command {
	var props []string

	cmd := &cobra.Command{
		Use:   "event NAME",
		Short: "Dispatch one event against the subscriber list",
		Long: `Dispatch a single inbound event without running the server, e.g.

  newsletter event newsletter_subscribe --prop new_subscriber_email=a@x.com
  newsletter event trigger_newsletter --prop content="Hello" --prop newsletter_secret=...

Outbound send_newsletter events are recorded, and forwarded when CAPTURE_URL is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			properties, err := parseProps(props)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			a.logStartup("event")

			ctx := cmd.Context()
			e := eventbus.NewEvent(args[0], properties)
			if err := a.registry(newCapturePublisher(ctx, a)).Dispatch(ctx, e); err != nil {
				return fmt.Errorf("%s: %w", e.Name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s handled (id %s)\n", e.Name, e.ID)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&props, "prop", "p", nil, "Event property as key=value (repeatable)")
	return cmd
}

// parseProps turns key=value pairs into a property map. The value may contain '='.
func parseProps(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid property %q: expected key=value", p)
		}
		out[k] = v
	}
	return out, nil
}

// capturePublisher hands outbound events straight to the forwarder, so a
// one-shot command records them before it exits.
type capturePublisher struct {
	ctx context.Context
	app *app
}

func newCapturePublisher(ctx context.Context, a *app) *capturePublisher {
	return &capturePublisher{ctx: ctx, app: a}
}

func (p *capturePublisher) Publish(name string, properties map[string]string) (eventbus.Event, error) {
	e := eventbus.NewEvent(name, properties)
	if _, err := p.app.forwarder.Capture(p.ctx, e); err != nil {
		return e, err
	}
	return e, nil
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaharia-lab/newsletter/internal/api"
	"github.com/shaharia-lab/newsletter/internal/build"
	"github.com/shaharia-lab/newsletter/internal/config"
	"github.com/shaharia-lab/newsletter/internal/eventbus"
	"github.com/shaharia-lab/newsletter/internal/newsletter"
	"github.com/shaharia-lab/newsletter/internal/scheduler"
	"github.com/shaharia-lab/newsletter/internal/server"
)

// NewServeCmd returns the "serve" subcommand that starts the HTTP ingest server.
func NewServeCmd(cfg *config.AppConfig) *cobra.Command {
	var port int
	var verbose bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the event ingest server",
		Long: `Start the HTTP server that accepts inbound events on POST /api/events
and routes them to the subscriber registry. Outbound send_newsletter events
are recorded and, when CAPTURE_URL is set, forwarded there.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// CLI flags override env config.
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			logFile := filepath.Join(cfg.LogDir(), "system.log")
			fmt.Printf("Newsletter %s listening on http://localhost:%d\n", build.Version, cfg.Port)
			fmt.Printf("Logs: %s\n\n", logFile)

			var tee io.Writer
			if verbose {
				tee = os.Stderr
			}
			if err := runServe(cfg, tee); err != nil {
				return fmt.Errorf("%w (see %s)", err, logFile)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", cfg.Port, "HTTP server port (overrides PORT env var)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Also write logs to stderr")
	return cmd
}

func runServe(cfg *config.AppConfig, tee io.Writer) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := openApp(ctx, cfg, tee)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			fmt.Fprintf(os.Stderr, "closing: %v\n", cerr)
		}
	}()
	a.logStartup("serve")

	// The registry publishes send_newsletter on its own bus, so nothing the
	// ingest endpoint enqueues can reach the forwarder. The outbound bus is
	// closed last so the inbound drain can still publish to it.
	outbound := eventbus.New(cfg.EventBusWorkers, a.logger)
	defer outbound.Close()
	inbound := eventbus.New(cfg.EventBusWorkers, a.logger)
	defer inbound.Close()

	// Listeners outlive the signal so Close can drain queued events.
	listenCtx := context.WithoutCancel(ctx)
	reg := a.registry(outbound)
	inbound.Subscribe(reg.Listener(listenCtx))
	outbound.Subscribe(a.forwarder.Listener(listenCtx))

	// Seed the subscriber gauge and surface a corrupt list at startup.
	if _, err := reg.Subscribers(ctx); err != nil {
		return err
	}

	schedules := map[string]string{}
	if cfg.ListSubscribersCron != "" {
		schedules[newsletter.ListSubscribersJobName] = cfg.ListSubscribersCron
	}
	sched, err := scheduler.New(scheduler.Config{
		Jobs:      map[string]scheduler.Job{newsletter.ListSubscribersJobName: reg.ListSubscribersJob},
		Schedules: schedules,
		Logger:    a.logger,
	})
	if err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if serr := sched.Stop(); serr != nil {
			a.logger.Warn("stopping scheduler", "error", serr)
		}
	}()
	for _, name := range sched.Names() {
		a.logger.Info("job registered", "job", name, "scheduled", sched.Scheduled(name))
	}

	apiSrv := api.New(inbound, sched, a.outbound, cfg.NewsletterSecret, a.logger)
	srv := server.New(apiSrv, server.Config{
		Port:           cfg.Port,
		AllowedOrigins: cfg.AllowedOrigins(),
		Metrics:        a.metrics.Handler(),
	}, a.logger)

	a.logger.Info("server ready", "port", cfg.Port, "capture_url", cfg.CaptureURL)
	return srv.Run(ctx)
}

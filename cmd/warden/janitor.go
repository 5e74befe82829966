package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/warden/pkg/observability"
)

func newJanitorCommand() *cobra.Command {
	var schedule string
	var once bool

	cmd := &cobra.Command{
		Use:   "janitor",
		Short: "Purge expired login sessions on a schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if once {
				return a.purgeSessions(cmd.Context())
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c := cron.New()
			if _, err := c.AddFunc(schedule, func() {
				defer observability.RecoverPanic(a.logger, "session purge")
				if err := a.purgeSessions(ctx); err != nil {
					a.logger.WithError(err).Error("Session purge failed")
				}
			}); err != nil {
				return err
			}

			c.Start()
			a.logger.WithField("schedule", schedule).Info("Janitor started")

			<-ctx.Done()
			a.logger.Info("Janitor shutting down")
			<-c.Stop().Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&schedule, "schedule", "@hourly", "cron schedule for session purges")
	cmd.Flags().BoolVar(&once, "once", false, "purge once and exit")
	return cmd
}

func (a *app) purgeSessions(ctx context.Context) error {
	n, err := a.users.Sessions().PurgeExpired(ctx)
	if err != nil {
		return err
	}
	a.metrics.SessionsPurged.Add(float64(n))
	a.logger.WithField("purged", n).Info("Purged expired sessions")
	return nil
}

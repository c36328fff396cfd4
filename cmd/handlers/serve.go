package handlers

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"pheme/internal/core"
	"pheme/internal/email"
	"pheme/internal/logger"
	"pheme/internal/scheduler"

	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve command: run the cron scheduler until
// interrupted. Scheduled runs and "run now" triggers share the same
// pipeline entry point, so an overlapping trigger is rejected.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the digest scheduler as a daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Surface an unreachable inference server now rather than
			// as per-article fallbacks on the first scheduled run.
			if !llmReady(ctx, a.llm) {
				logger.Warn("inference service unreachable, summaries will fall back to source text")
			}

			sched, err := scheduler.New(a.cfg.Schedule.Cron, a.cfg.Schedule.Timezone, func(ctx context.Context) (*core.DigestResult, error) {
				result, err := a.pipeline.Run(ctx)
				if err != nil {
					if logErr := a.store.LogDigestFailure(err.Error()); logErr != nil {
						logger.Warn("failed to log digest failure", "error", logErr.Error())
					}
					return nil, err
				}

				status := "completed"
				sent, sendErr := email.Send(result, email.Settings{
					Recipient: a.cfg.Email.Recipient,
					From:      a.cfg.Email.From,
					SMTPHost:  a.cfg.Email.SMTPHost,
					SMTPPort:  a.cfg.Email.SMTPPort,
					SMTPUser:  a.cfg.Email.SMTPUser,
					SMTPPass:  a.cfg.Email.SMTPPass,
					SendEmpty: a.cfg.Email.SendEmpty,
				})
				switch {
				case sendErr != nil:
					logger.Error("email delivery failed", sendErr)
					status = "email_failed"
				case sent:
					a.pipeline.MarkDelivered()
					status = "sent"
				}
				if err := a.store.LogDigest(result, status); err != nil {
					logger.Warn("failed to log digest", "error", err.Error())
				}
				return result, nil
			})
			if err != nil {
				return err
			}

			if err := sched.Start(ctx); err != nil {
				return err
			}
			defer sched.Stop()

			logger.Info("pheme serving", "cron", a.cfg.Schedule.Cron, "timezone", a.cfg.Schedule.Timezone)
			<-ctx.Done()
			logger.Info("shutting down")
			return nil
		},
	}
}

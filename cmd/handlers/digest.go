package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pheme/internal/email"
	"pheme/internal/logger"
	"pheme/internal/render"

	"github.com/spf13/cobra"
)

// NewDigestCmd creates the digest command: run the pipeline once, print
// the result, and optionally email it.
func NewDigestCmd() *cobra.Command {
	var sendEmail bool

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Run the digest pipeline now",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()

			// Ctrl-C cancels the run cooperatively.
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			result, err := a.pipeline.Run(ctx)
			if err != nil {
				if logErr := a.store.LogDigestFailure(err.Error()); logErr != nil {
					logger.Warn("failed to log digest failure", "error", logErr.Error())
				}
				return fmt.Errorf("digest run failed: %w", err)
			}

			fmt.Print(render.Markdown(result))

			status := "completed"
			if sendEmail && a.cfg.Email.Recipient != "" {
				sent, err := email.Send(result, email.Settings{
					Recipient: a.cfg.Email.Recipient,
					From:      a.cfg.Email.From,
					SMTPHost:  a.cfg.Email.SMTPHost,
					SMTPPort:  a.cfg.Email.SMTPPort,
					SMTPUser:  a.cfg.Email.SMTPUser,
					SMTPPass:  a.cfg.Email.SMTPPass,
					SendEmpty: a.cfg.Email.SendEmpty,
				})
				switch {
				case err != nil:
					logger.Error("email delivery failed", err)
					status = "email_failed"
				case sent:
					a.pipeline.MarkDelivered()
					status = "sent"
				}
			}

			if err := a.store.LogDigest(result, status); err != nil {
				logger.Warn("failed to log digest", "error", err.Error())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&sendEmail, "email", false, "send the digest to the configured recipient")
	return cmd
}

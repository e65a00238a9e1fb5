package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	reconcileuc "github.com/kailas-cloud/docrag/internal/usecase/reconcile"
)

func newReconcileCmd(rt *runtime) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Remove vectors whose document record no longer exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, rt.cfg, rt.logger)
			if err != nil {
				return err
			}
			defer a.close()
			svc := a.reconciler()

			if interval <= 0 {
				return reconcileOnce(ctx, cmd, svc, rt.logger)
			}

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				if err := reconcileOnce(ctx, cmd, svc, rt.logger); err != nil {
					rt.logger.Error("Reconcile pass failed", zap.Error(err))
				}
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "repeat every interval until interrupted (0 runs once)")
	return cmd
}

func reconcileOnce(ctx context.Context, cmd *cobra.Command, svc *reconcileuc.Service, logger *zap.Logger) error {
	rep, err := svc.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("Reconcile pass finished",
		zap.Int("scanned", rep.Scanned),
		zap.Int("orphans", len(rep.Orphans)),
		zap.Int("vectors_deleted", rep.VectorsDeleted),
		zap.Int("errors", len(rep.Errors)),
		zap.Duration("duration", rep.Duration),
	)

	c := color.New(color.FgGreen)
	if len(rep.Orphans) > 0 {
		c = color.New(color.FgYellow)
	}
	c.Fprintf(cmd.OutOrStdout(), "scanned %d documents, removed %d vectors of %d orphaned documents\n",
		rep.Scanned, rep.VectorsDeleted, len(rep.Orphans))
	for _, e := range rep.Errors {
		color.New(color.FgRed).Fprintln(cmd.ErrOrStderr(), e)
	}
	return nil
}

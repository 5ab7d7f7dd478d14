package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/lostmarbl3/fai-trainsmart/internal/view"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newWatchCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow session and view changes until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()
				controller := a.controller()
				unwatch := controller.Watch(func(state view.State) {
					fmt.Fprintf(out, "%s", state)
					if state.Phase == view.PhaseReady {
						fmt.Fprintf(out, " -> %s", state.View)
					}
					fmt.Fprintln(out)
				})
				defer unwatch()

				if err := controller.Mount(ctx); err != nil {
					return err
				}
				defer controller.Unmount()
				fmt.Fprintln(out, controller.State())

				if a.store.Current() != nil {
					go func() {
						err := a.provider.Watch(ctx)
						if err != nil && !errors.Is(err, context.Canceled) {
							a.logger.Warn("session feed closed", zap.Error(err))
						}
					}()
				}

				<-ctx.Done()
				return nil
			})
		},
	}
}

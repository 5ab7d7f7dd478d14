package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/lostmarbl3/fai-trainsmart/internal/apperr"
	"github.com/lostmarbl3/fai-trainsmart/internal/bootstrap"
	"github.com/lostmarbl3/fai-trainsmart/internal/client"
	"github.com/lostmarbl3/fai-trainsmart/internal/profilesync"
	"github.com/lostmarbl3/fai-trainsmart/internal/view"
	"github.com/spf13/cobra"
)

const defaultTrainerClientLimit = 10

func newWhoAmICommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account and the view it lands on",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				if a.store.Current() == nil {
					return errNotSignedIn
				}

				controller := a.controller()
				settled := make(chan view.State, 1)
				unwatch := controller.Watch(func(state view.State) {
					if state.Phase == view.PhaseReady || state.Phase == view.PhaseFailed {
						select {
						case settled <- state:
						default:
						}
					}
				})
				defer unwatch()

				if err := controller.Mount(ctx); err != nil {
					return err
				}
				defer controller.Unmount()

				select {
				case state := <-settled:
					return printState(cmd.OutOrStdout(), state)
				case <-ctx.Done():
					return ctx.Err()
				}
			})
		},
	}
}

func (a *app) controller() *bootstrap.Controller {
	resolver := profilesync.New(
		client.NewRecordStore(a.api, a.store),
		profilesync.WithTimeout(a.opts.timeout),
		profilesync.WithTrainerClientLimit(defaultTrainerClientLimit),
		profilesync.WithLogger(a.logger),
	)
	return bootstrap.NewController(a.store, resolver, a.logger)
}

func printState(w io.Writer, state view.State) error {
	switch state.Phase {
	case view.PhaseFailed:
		if apperr.UserVisible(state.Err) {
			fmt.Fprintf(w, "Could not load your profile (%s).\n", apperr.Kind(state.Err))
		} else {
			fmt.Fprintln(w, "Could not load your profile.")
		}
		if state.Retry {
			fmt.Fprintln(w, "Try again in a moment.")
		}
		return state.Err
	case view.PhaseReady:
		fmt.Fprintf(w, "%s\n", state.View.Title())
		if message := state.View.Message(); message != "" {
			fmt.Fprintln(w, message)
		}
		return printJSON(w, state.Profile)
	default:
		fmt.Fprintln(w, "Not signed in")
		return nil
	}
}

func printJSON(w io.Writer, v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(encoded))
	return err
}

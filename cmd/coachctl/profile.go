package main

import (
	"context"
	"errors"

	"github.com/lostmarbl3/fai-trainsmart/internal/client"
	"github.com/lostmarbl3/fai-trainsmart/internal/repository"
	"github.com/spf13/cobra"
)

func newProfileCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage your profile",
	}
	cmd.AddCommand(newProfileUpdateCommand(opts))
	return cmd
}

func newProfileUpdateCommand(opts *options) *cobra.Command {
	var firstName, lastName string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change the name on your profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch repository.UpdateProfileInput
			if cmd.Flags().Changed("first-name") {
				patch.FirstName = &firstName
			}
			if cmd.Flags().Changed("last-name") {
				patch.LastName = &lastName
			}
			if patch.Empty() {
				return errors.New("nothing to update; pass --first-name or --last-name")
			}

			return run(cmd, opts, func(ctx context.Context, a *app) error {
				identity := a.store.Current()
				if identity == nil {
					return errNotSignedIn
				}
				profile, err := client.NewRecordStore(a.api, a.store).UpdatePartial(ctx, identity.ID, patch)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), profile)
			})
		},
	}
	cmd.Flags().StringVar(&firstName, "first-name", "", "new first name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "new last name")
	return cmd
}

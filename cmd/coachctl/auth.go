package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/lostmarbl3/fai-trainsmart/internal/models"
	"github.com/spf13/cobra"
)

func newSignUpCommand(opts *options) *cobra.Command {
	var input models.SignUpInput
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				identity, err := a.store.SignUp(ctx, input)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Signed up as %s (%s)\n", identity.Email, identity.RequestedRole())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&input.Email, "email", "", "account email")
	cmd.Flags().StringVar(&input.Password, "password", "", "account password (at least 8 characters)")
	cmd.Flags().StringVar(&input.Role, "role", string(models.DefaultRole), "trainer, client or solo")
	cmd.Flags().StringVar(&input.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&input.LastName, "last-name", "", "last name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newSignInCommand(opts *options) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in with email and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				identity, err := a.store.SignIn(ctx, email, password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", identity.Email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newSignOutCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Sign out and forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				if a.store.Current() == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
					return nil
				}
				err := a.store.SignOut(ctx)
				fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
				if err != nil {
					a.logger.Warn("server sign-out failed; local session cleared")
				}
				return err
			})
		},
	}
}

var errNotSignedIn = errors.New("not signed in; run coachctl signin first")

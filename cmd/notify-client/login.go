package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"notify-realtime/internal/auth"
	"notify-realtime/internal/models"
)

var (
	loginEmail string
	loginAdmin bool
)

var loginCmd = &cobra.Command{
	Use:   "login <USER_ID>",
	Short: "Obtain a token and store it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		resp, err := newAPIClient(auth.StaticToken("")).Login(ctx, models.LoginRequest{
			UserID: args[0],
			Email:  loginEmail,
			Admin:  loginAdmin,
		})
		if err != nil {
			return err
		}
		if err := store.Save(ctx, auth.Credentials{Token: resp.Token, UserID: resp.UserID}); err != nil {
			return fmt.Errorf("saving credentials: %w", err)
		}
		fmt.Printf("Logged in as %s\n", resp.UserID)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()
		return store.Clear(cmd.Context())
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "email claim for the token")
	loginCmd.Flags().BoolVar(&loginAdmin, "admin", false, "request an admin token (may send notifications)")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

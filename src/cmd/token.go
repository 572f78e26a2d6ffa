package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"wadserv/src/auth"
	cfg "wadserv/src/configuration"
)

// newTokenCmd mints a token signed with the configured secret, for calling
// the API by hand.
func newTokenCmd(load func() (*cfg.Properties, error)) *cobra.Command {
	var identity auth.Identity

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if identity.Email == "" {
				return errors.New("--email is required")
			}
			config, err := load()
			if err != nil {
				return err
			}
			token, err := auth.NewIssuer(config.Auth.JWTSecret, config.Auth.TokenTTL).Issue(identity)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&identity.ID, "id", "", "user id claim")
	cmd.Flags().StringVar(&identity.Email, "email", "", "user email claim")
	cmd.Flags().StringVar(&identity.Username, "username", "", "username claim")
	return cmd
}

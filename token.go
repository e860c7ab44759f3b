package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/andrewpaige1/nodebook-flashcards/auth"
)

func tokenCommand(a *app) *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the write routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			issuer, err := auth.NewIssuer(a.cfg.Auth)
			if err != nil {
				return err
			}
			token, err := issuer.CreateToken(subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "local-user", "token subject")
	return cmd
}

package main

import (
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/staffdesk/staffdesk/internal/users"
)

func newUsersCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage staff accounts",
	}
	cmd.AddCommand(newUsersCreateCmd(open), newUsersBootstrapAdminCmd(open))
	return cmd
}

func newUsersBootstrapAdminCmd(open opener) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "bootstrap-admin",
		Short: "Create the reserved administrator account once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validator.New().Var(password, "required,min=8,max=72"); err != nil {
				return err
			}
			b, err := open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer b.close()
			u, err := b.users.BootstrapAdministrator(cmd.Context(), password)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), u)
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "Administrator password (required)")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newUsersCreateCmd(open opener) *cobra.Command {
	var (
		password string
		inactive bool
	)
	cmd := &cobra.Command{
		Use:   "create <username>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := users.CreateInput{Username: args[0], Password: password, IsActive: !inactive}
			if err := validator.New().Struct(input); err != nil {
				return err
			}
			b, err := open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer b.close()
			u, err := b.users.CreateUser(cmd.Context(), input)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), u)
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "Initial password (required)")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Create the account disabled")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

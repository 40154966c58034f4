package main

import (
	"github.com/spf13/cobra"

	"github.com/staffdesk/staffdesk/internal/rbac"
)

type rightsOutput struct {
	Username      string           `json:"username"`
	Administrator bool             `json:"administrator"`
	Rights        []rbac.UserRight `json:"rights"`
}

func newRightsCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rights",
		Short: "Inspect the capability matrix",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show <username>",
		Short: "List the stored rights of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer b.close()
			u, err := b.users.FindByUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := rightsOutput{Username: u.Username, Administrator: u.IsAdministrator(), Rights: []rbac.UserRight{}}
			if !out.Administrator {
				rights, err := b.rights.UserRights(cmd.Context(), u.ID)
				if err != nil {
					return err
				}
				if rights != nil {
					out.Rights = rights
				}
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	})
	return cmd
}

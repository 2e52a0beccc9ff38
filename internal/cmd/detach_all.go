package cmd

import (
	"github.com/spf13/cobra"

	"zmx/internal/sessiondir"
)

func newDetachAllCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detach-all",
		Short: "Detach every client from every live session in the group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			group, _ := cmd.Flags().GetString("group")
			sessions, err := sessiondir.List(group)
			if err != nil {
				return err
			}
			for _, s := range sessions {
				sendDetachAll(group, s.Name)
			}
			return nil
		},
	}
	groupFlag(cmd)
	return cmd
}

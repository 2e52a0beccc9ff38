package cmd

import (
	"github.com/spf13/cobra"

	"zmx/internal/wire"
)

func newKillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kill NAME",
		Short: "Terminate a session's daemon and shell",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			group, _ := cmd.Flags().GetString("group")
			conn, err := dial(group, args[0])
			if err != nil {
				return err
			}
			defer conn.Close()
			_, err = conn.Write(wire.Encode(wire.Kill, nil))
			return err
		},
	}
	groupFlag(cmd)
	return cmd
}

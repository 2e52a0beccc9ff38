package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"zmx/internal/wire"
)

func newDetachCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detach [NAME]",
		Short: "Detach every client from one session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := os.Getenv("ZMX_SESSION")
			if len(args) > 0 {
				name = args[0]
			}
			if name == "" {
				return fmt.Errorf("detach: no session named and $ZMX_SESSION is unset")
			}
			group, _ := cmd.Flags().GetString("group")
			return sendDetachAll(group, name)
		},
	}
	groupFlag(cmd)
	return cmd
}

func sendDetachAll(group, name string) error {
	conn, err := dial(group, name)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Write(wire.Encode(wire.DetachAll, nil))
	return err
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"zmx/internal/sessiondir"
	"zmx/internal/termstyle"
)

func newListCmd() *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List live sessions in the group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			group, _ := cmd.Flags().GetString("group")
			sessions, err := sessiondir.List(group)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range sessions {
				if short {
					fmt.Fprintln(out, s.Name)
					continue
				}
				dot := termstyle.GrayDot()
				if s.Clients > 0 {
					dot = termstyle.GreenDot()
				}
				fmt.Fprintf(out, "%s %s\tpid=%d\tclients=%d\t%s\n", dot, s.Name, s.PID, s.Clients, s.Cmd)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "print only session names")
	groupFlag(cmd)
	return cmd
}

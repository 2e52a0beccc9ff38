package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"zmx/internal/daemon"
)

func newForkCmd() *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "fork [NAME]",
		Short: "Create a new session inheriting another session's command and working directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if source == "" {
				return fmt.Errorf("fork: --source is required")
			}
			target := ""
			if len(args) > 0 {
				target = args[0]
			}
			group, _ := cmd.Flags().GetString("group")
			cols, rows := 80, 24
			if c, r, err := term.GetSize(int(os.Stdin.Fd())); err == nil {
				cols, rows = c, r
			}
			name, err := daemon.Fork(group, source, target, cols, rows)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), name)
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "session to fork from")
	groupFlag(cmd)
	return cmd
}

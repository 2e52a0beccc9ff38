package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"zmx/internal/client"
	"zmx/internal/daemon"
	"zmx/internal/sessiondir"
)

func newAttachCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attach NAME [cmd...]",
		Short: "Connect to a session, creating it if it does not exist",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if os.Getenv("ZMX_SESSION") != "" {
				return fmt.Errorf("refusing to attach: already inside session %q", os.Getenv("ZMX_SESSION"))
			}
			group, _ := cmd.Flags().GetString("group")
			return doAttach(group, args[0], args[1:])
		},
	}
	groupFlag(cmd)
	return cmd
}

func doAttach(group, name string, cmdVec []string) error {
	cols, rows := 80, 24
	if c, r, err := term.GetSize(int(os.Stdin.Fd())); err == nil {
		cols, rows = c, r
	}
	if _, err := sessiondir.Probe(group, name); err != nil {
		if err := daemon.EnsureSession(group, name, cmdVec, cwd(), cols, rows); err != nil {
			return fmt.Errorf("create session %q: %w", name, err)
		}
	}

	conn, err := dial(group, name)
	if err != nil {
		return err
	}
	defer conn.Close()

	return client.New(conn).Attach()
}

func cwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return wd
}

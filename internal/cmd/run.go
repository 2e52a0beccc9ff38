package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"zmx/internal/client"
	"zmx/internal/daemon"
	"zmx/internal/sessiondir"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run NAME [cmd...]",
		Short: "Create the session if needed, run a one-shot command, and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			group, _ := cmd.Flags().GetString("group")
			return doRun(group, args[0], args[1:])
		},
	}
	groupFlag(cmd)
	return cmd
}

func doRun(group, name string, cmdArgs []string) error {
	payload, err := runPayload(cmdArgs)
	if err != nil {
		return err
	}

	cols, rows := 80, 24
	if c, r, err := term.GetSize(int(os.Stdin.Fd())); err == nil {
		cols, rows = c, r
	}
	if _, err := sessiondir.Probe(group, name); err != nil {
		if err := daemon.EnsureSession(group, name, nil, cwd(), cols, rows); err != nil {
			return fmt.Errorf("create session %q: %w", name, err)
		}
	}

	conn, err := dial(group, name)
	if err != nil {
		return err
	}
	defer conn.Close()

	return client.New(conn).Run(payload)
}

// runPayload is the command line joined with spaces and a trailing newline,
// unless no arguments were given and stdin is a pipe, in which case stdin
// is read verbatim as the command to run.
func runPayload(cmdArgs []string) ([]byte, error) {
	if len(cmdArgs) > 0 {
		return []byte(joinArgs(cmdArgs) + "\n"), nil
	}
	if isatty.IsTerminal(os.Stdin.Fd()) {
		return nil, fmt.Errorf("run: no command given and stdin is a terminal")
	}
	return io.ReadAll(os.Stdin)
}

func joinArgs(args []string) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}

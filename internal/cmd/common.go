package cmd

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"zmx/internal/sessiondir"
	"zmx/internal/zmxpath"
)

// groupFlag adds the --group flag shared by every subcommand that names a
// session, defaulting to zmxpath's own resolution chain.
func groupFlag(c *cobra.Command) *string {
	return c.Flags().String("group", zmxpath.Group(), "session group namespace")
}

// dial connects to name's socket in group, returning a helpful error if
// the session isn't live.
func dial(group, name string) (net.Conn, error) {
	path := sessiondir.Path(group, name)
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("session %q not found in group %q: %w", name, group, err)
	}
	return conn, nil
}

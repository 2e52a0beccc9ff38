package cmd

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"zmx/internal/sockbuf"
	"zmx/internal/wire"
	"zmx/internal/zmxerr"
)

func newHistoryCmd() *cobra.Command {
	var asVT, asHTML bool
	cmd := &cobra.Command{
		Use:   "history NAME",
		Short: "Print a session's scrollback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if asVT && asHTML {
				return fmt.Errorf("history: --vt and --html are mutually exclusive")
			}
			format := wire.HistoryPlain
			switch {
			case asVT:
				format = wire.HistoryVT
			case asHTML:
				format = wire.HistoryHTML
			}
			group, _ := cmd.Flags().GetString("group")
			return doHistory(group, args[0], format)
		},
	}
	cmd.Flags().BoolVar(&asVT, "vt", false, "include SGR escape sequences")
	cmd.Flags().BoolVar(&asHTML, "html", false, "render as an HTML fragment")
	groupFlag(cmd)
	return cmd
}

func doHistory(group, name string, format wire.HistoryFormat) error {
	conn, err := dial(group, name)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.Write(wire.Encode(wire.History, []byte{byte(format)})); err != nil {
		return err
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := sockbuf.New(0)
	for {
		if frame, ok := buf.Next(); ok {
			if frame.Tag != wire.History {
				continue
			}
			os.Stdout.Write(frame.Payload)
			return nil
		}
		if buf.Malformed() || buf.Overflowed() {
			return fmt.Errorf("read history: %w", zmxerr.ErrMalformed)
		}
		if _, err := buf.Fill(conn); err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return fmt.Errorf("read history: %w", zmxerr.ErrTimeout)
			}
			return fmt.Errorf("read history: %w", err)
		}
	}
}

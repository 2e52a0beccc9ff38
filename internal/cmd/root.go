package cmd

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root cobra command with all subcommands.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "zmx",
		Short:         "Terminal session persistence",
		Long:          "zmx owns a pseudoterminal per named session and lets any number of clients attach and detach without disturbing the shell running inside it.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	listCmd := newListCmd()
	rootCmd.AddCommand(
		newAttachCmd(),
		newRunCmd(),
		newDetachCmd(),
		newDetachAllCmd(),
		listCmd,
		newKillCmd(),
		newHistoryCmd(),
		newForkCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

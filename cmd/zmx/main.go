// Command zmx is the zmx CLI: attach/run/detach/list/kill/history/fork
// against named terminal sessions, and (via a hidden subcommand) the
// detached daemon process body itself.
package main

import (
	"fmt"
	"os"
	"strconv"

	"zmx/internal/cmd"
	"zmx/internal/daemon"
	"zmx/internal/terminal"
	_ "zmx/internal/terminal/midtermvt"
	_ "zmx/internal/terminal/vt10x"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "__daemon__" {
		if err := runDaemonSubcommand(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "zmx: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := cmd.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// runDaemonSubcommand parses the flag set lifecycle.spawnAndWait invokes
// itself with and runs the daemon loop. It is never invoked by a user
// directly.
func runDaemonSubcommand(args []string) error {
	cfg := daemon.Config{
		Backend: terminal.BackendFromEnv(),
		Cols:    80,
		Rows:    24,
	}

	i := 0
	for i < len(args) {
		switch args[i] {
		case "--group":
			i++
			cfg.Group = args[i]
		case "--name":
			i++
			cfg.Name = args[i]
		case "--cwd":
			i++
			cfg.Cwd = args[i]
		case "--cols":
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil {
				return fmt.Errorf("bad --cols: %w", err)
			}
			cfg.Cols = n
		case "--rows":
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil {
				return fmt.Errorf("bad --rows: %w", err)
			}
			cfg.Rows = n
		case "--":
			cfg.Cmd = append([]string{}, args[i+1:]...)
			i = len(args)
			continue
		default:
			return fmt.Errorf("unrecognized daemon flag %q", args[i])
		}
		i++
	}

	if cfg.Name == "" {
		return fmt.Errorf("daemon: --name is required")
	}
	return daemon.RunDaemon(cfg)
}

package main

import (
	"fmt"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

var signalCmd = &cobra.Command{
	Use:   "signal <container-id> <signal>",
	Short: "Send a signal to every process in a container",
	Long: `Send a signal to every process in a container. Signals are accepted
as numbers (15), names (SIGTERM) or short names (TERM).`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseContainerID(args[0])
		if err != nil {
			return err
		}
		sig, err := parseSignal(args[1])
		if err != nil {
			return err
		}
		if err := tracker.Signal(id, sig); err != nil {
			return err
		}
		fmt.Println(color.GreenString("sent %s to container %s", unix.SignalName(sig), fmtID(id)))
		return nil
	},
}

// parseSignal accepts numbers, names, and names without the SIG prefix.
func parseSignal(s string) (syscall.Signal, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n <= 0 || n > 64 {
			return 0, fmt.Errorf("signal number %d out of range", n)
		}
		return syscall.Signal(n), nil
	}
	name := strings.ToUpper(s)
	if !strings.HasPrefix(name, "SIG") {
		name = "SIG" + name
	}
	if sig := unix.SignalNum(name); sig != 0 {
		return sig, nil
	}
	return 0, fmt.Errorf("unknown signal %q", s)
}

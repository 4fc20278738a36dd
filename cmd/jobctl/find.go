package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var findCmd = &cobra.Command{
	Use:   "find <pid>",
	Short: "Print the container holding a process",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid pid %q", args[0])
		}
		id := tracker.Find(pid)
		if id == 0 {
			fmt.Printf("pid %d is in no container\n", pid)
			return nil
		}
		fmt.Println(fmtID(id))
		return nil
	},
}

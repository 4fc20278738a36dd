package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pidsCmd = &cobra.Command{
	Use:   "pids <container-id>",
	Short: "List the processes in a container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseContainerID(args[0])
		if err != nil {
			return err
		}
		pids, err := tracker.Pids(id)
		if err != nil {
			return err
		}
		if len(pids) == 0 {
			fmt.Printf("container %s is empty\n", fmtID(id))
			return nil
		}
		for _, pid := range pids {
			fmt.Println(pid)
		}
		return nil
	},
}

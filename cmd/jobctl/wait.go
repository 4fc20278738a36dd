package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var waitCmd = &cobra.Command{
	Use:   "wait <container-id>",
	Short: "Block until a container has no processes left",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseContainerID(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("waiting for container %s to drain...\n", fmtID(id))
		if err := tracker.Wait(id); err != nil {
			return err
		}
		fmt.Println(color.GreenString("container %s drained", fmtID(id)))
		return nil
	},
}

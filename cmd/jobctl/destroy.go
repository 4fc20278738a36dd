package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var destroyCmd = &cobra.Command{
	Use:   "destroy <container-id>",
	Short: "Wait out and reap a container",
	Long: `Wait until the container has no processes left, then release its
facility-side bookkeeping. Destroying a container that is already gone
is not an error.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseContainerID(args[0])
		if err != nil {
			return err
		}
		if err := tracker.Destroy(id); err != nil {
			return err
		}
		fmt.Println(color.GreenString("container %s destroyed", fmtID(id)))
		return nil
	},
}

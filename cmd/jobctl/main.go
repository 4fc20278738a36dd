// jobctl inspects and drives kernel job containers from the command
// line, through the same tracking engine the node agent uses.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/nodeagent/go-proctrack/pkg/jobapi"
	"github.com/nodeagent/go-proctrack/pkg/proctrack"
)

var (
	cfgFile      string
	flagBackend  string
	flagDevice   string
	flagPrefix   string
	flagLogLevel string

	appConfig *Config
	logger    hclog.Logger
	tracker   *proctrack.Tracker
)

var rootCmd = &cobra.Command{
	Use:   "jobctl",
	Short: "Inspect and control kernel job containers",
	Long: `jobctl talks to the node's job container facility: the kernel-side
grouping that keeps every process of a job step findable, signallable
and countable even after daemonization.

The backend is probed automatically (job device, then cgroup v2) and
can be pinned with --backend or a config file.`,
	Example: `  # which container holds pid 4242?
  jobctl find 4242

  # everything still alive in a container
  jobctl pids 0x00ab00cd

  # terminate a container and wait for it to drain
  jobctl signal 0x00ab00cd KILL
  jobctl destroy 0x00ab00cd`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		appConfig, err = loadConfig(cfgFile)
		if err != nil {
			return err
		}
		appConfig.applyFlags(flagBackend, flagDevice, flagPrefix, flagLogLevel)

		logger = hclog.New(&hclog.LoggerOptions{
			Name:  "jobctl",
			Level: hclog.LevelFromString(appConfig.LogLevel),
		})

		fac, err := jobapi.Builder{
			Backend: appConfig.Backend,
			Device:  appConfig.Device,
			Prefix:  appConfig.CgroupPrefix,
			Logger:  logger,
		}.Build()
		if err != nil {
			return fmt.Errorf("select backend: %w", err)
		}
		tracker = proctrack.Builder{
			Facility: fac,
			Logger:   logger,
			Slack:    appConfig.Slack,
		}.Build()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "Facility backend (auto, jobdev, cgroup, noop)")
	rootCmd.PersistentFlags().StringVar(&flagDevice, "device", "", "Job device node, for the jobdev backend")
	rootCmd.PersistentFlags().StringVar(&flagPrefix, "prefix", "", "Cgroup slice holding containers, for the cgroup backend")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(pidsCmd)
	rootCmd.AddCommand(signalCmd)
	rootCmd.AddCommand(waitCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(backendCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("jobctl: %v", err))
		os.Exit(1)
	}
}

// parseContainerID accepts decimal and 0x-prefixed hex container ids.
func parseContainerID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid container id %q", s)
	}
	if id == 0 {
		return 0, fmt.Errorf("container id must be nonzero")
	}
	return id, nil
}

func fmtID(id uint64) string {
	return fmt.Sprintf("0x%08x", id)
}

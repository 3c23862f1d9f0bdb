package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// configPath is the path to the YAML configuration file, set via --config.
// An empty value means run with config.DefaultConfig().
var configPath string

// rootCmd is netlabd's entry point: running it with no subcommand starts
// the daemon directly, since netlabd (unlike a client/server pair) has
// nothing else to do.
var rootCmd = &cobra.Command{
	Use:   "netlabd",
	Short: "Userspace Ethernet/ARP/IPv4/ICMP/UDP stack over a Linux TAP device",
	Long: "netlabd drives a single TAP interface through a userspace network\n" +
		"stack (Ethernet, ARP, IPv4, ICMPv4, UDP) for local protocol testing\n" +
		"without a kernel network namespace.",
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return runDaemon(configPath)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"path to configuration file (YAML); defaults are used if omitted")

	rootCmd.AddCommand(versionCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

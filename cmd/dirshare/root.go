package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is stamped at build time via -ldflags
var version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "dirshare",
	Short: "Replicate a shared directory across peer participants",
	Long: `dirshare replicates a flat directory of files across a set of peer
participants connected through a topic-based message hub. Each
participant monitors its own shared directory, publishes changes, and
applies changes published by others, converging on a
last-writer-wins state keyed by file modification time.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the dirshare version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("dirshare", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default searches for dirshare.yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(hubCmd)
	rootCmd.AddCommand(versionCmd)
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "geopress",
		Short: "Discover and publish geothermal and mineral water publications to forum topics",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(runCommand())
	root.AddCommand(refreshCommand())
	root.AddCommand(publishCommand())
	root.AddCommand(topicsCommand())
	root.AddCommand(queueCommand())

	return root
}

func runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the daemon with refresh and publish schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon()
		},
	}
}

func refreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Run one discovery cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRefresh()
		},
	}
}

func publishCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Run one publish cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(cmd.Flags().Changed("dry-run"), dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", true, "log what would be posted without posting")
	return cmd
}

func topicsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topics",
		Short: "Manage forum topics",
	}

	var threadID int64
	var name, mode string
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Register a forum topic thread",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTopicsAdd(threadID, name, mode)
		},
	}
	addCmd.Flags().Int64Var(&threadID, "thread", 0, "message thread id of the forum topic")
	addCmd.Flags().StringVar(&name, "name", "", "topic name (its region is inferred from this)")
	addCmd.Flags().StringVar(&mode, "mode", "", "ingestion mode: backfill_ru or rss (default: backfill_ru)")
	addCmd.MarkFlagRequired("thread")
	addCmd.MarkFlagRequired("name")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered topics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTopicsList()
		},
	}

	var topicID int64
	enableCmd := &cobra.Command{
		Use:   "enable",
		Short: "Enable a topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTopicsSetEnabled(topicID, true)
		},
	}
	enableCmd.Flags().Int64Var(&topicID, "id", 0, "topic id")
	enableCmd.MarkFlagRequired("id")

	var disableID int64
	disableCmd := &cobra.Command{
		Use:   "disable",
		Short: "Disable a topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTopicsSetEnabled(disableID, false)
		},
	}
	disableCmd.Flags().Int64Var(&disableID, "id", 0, "topic id")
	disableCmd.MarkFlagRequired("id")

	cmd.AddCommand(addCmd, listCmd, enableCmd, disableCmd)
	return cmd
}

func queueCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Show per-topic queue backlog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueue()
		},
	}
}

package main

import (
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	seedPrivate      bool
	seedOwner        string
	seedCloseFriends bool
	inboxLimit       int
	passingOnly      bool

	rootCmd = &cobra.Command{
		Use:           "socialctl",
		Short:         "Operate the social relationship and notification backend",
		SilenceUsage:  true,
	}

	// --- Schema ---
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres schema",
		Args:  cobra.NoArgs,
		RunE:  runMigrate, // Defined in cmd_store.go
	}

	// --- Fixtures ---
	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Create or update accounts and posts the visibility rules read",
	}
	seedAccountCmd = &cobra.Command{
		Use:   "account [username]",
		Short: "Create or update an account",
		Args:  cobra.ExactArgs(1),
		RunE:  runSeedAccount,
	}
	seedPostCmd = &cobra.Command{
		Use:   "post [id]",
		Short: "Create or update a post",
		Args:  cobra.ExactArgs(1),
		RunE:  runSeedPost,
	}

	// --- Inspection ---
	countsCmd = &cobra.Command{
		Use:   "counts [username]",
		Short: "Recompute follower and following totals",
		Args:  cobra.ExactArgs(1),
		RunE:  runCounts,
	}
	resolveCmd = &cobra.Command{
		Use:   "resolve [viewer] [target]",
		Short: "Classify the relationship between two users",
		Args:  cobra.ExactArgs(2),
		RunE:  runResolve,
	}
	inboxCmd = &cobra.Command{
		Use:   "inbox [username]",
		Short: "List a user's notifications, newest first",
		Args:  cobra.ExactArgs(1),
		RunE:  runInbox,
	}

	// --- Operations ---
	processedCmd = &cobra.Command{
		Use:   "processed",
		Short: "Count live processed-event markers in Redis",
		Args:  cobra.NoArgs,
		RunE:  runProcessed, // Defined in cmd_ops.go
	}
	instancesCmd = &cobra.Command{
		Use:   "instances [service]",
		Short: "List instances of a service registered in Consul",
		Args:  cobra.ExactArgs(1),
		RunE:  runInstances,
	}
)

func init() {
	seedAccountCmd.Flags().BoolVar(&seedPrivate, "private", false, "mark the account private")
	seedPostCmd.Flags().StringVar(&seedOwner, "owner", "", "username of the post owner")
	_ = seedPostCmd.MarkFlagRequired("owner")
	seedPostCmd.Flags().BoolVar(&seedCloseFriends, "close-friends", false, "restrict the post to close friends")
	seedCmd.AddCommand(seedAccountCmd, seedPostCmd)

	inboxCmd.Flags().IntVar(&inboxLimit, "limit", 50, "maximum number of notifications")
	instancesCmd.Flags().BoolVar(&passingOnly, "passing", false, "only list instances whose checks pass")

	rootCmd.AddCommand(migrateCmd, seedCmd, countsCmd, resolveCmd, inboxCmd, processedCmd, instancesCmd)
}

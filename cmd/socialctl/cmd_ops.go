package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"socialgraph/internal/config"
	"socialgraph/internal/consul"
	"socialgraph/internal/logger"
	"socialgraph/internal/notification"
)

func runProcessed(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	tracker := notification.NewRedisTracker(rdb, cfg.Redis.TTL, logger.New(cfg.ServiceName+"-ctl"))
	n, err := tracker.Count(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), n)
	return nil
}

func runInstances(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	client, err := consul.NewClient(cfg.Consul)
	if err != nil {
		return err
	}
	instances, err := client.Discover(args[0], passingOnly)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tADDRESS\tHEALTHY\tTAGS")
	for _, in := range instances {
		fmt.Fprintf(w, "%s\t%s:%d\t%t\t%v\n", in.ID, in.Address, in.Port, in.Healthy, in.Tags)
	}
	return w.Flush()
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"socialgraph/internal/config"
	"socialgraph/internal/database"
	"socialgraph/internal/follow"
	"socialgraph/internal/logger"
	"socialgraph/internal/notification"
	"socialgraph/internal/postgres"
	"socialgraph/internal/relation"
	"socialgraph/internal/social"
)

// withStore opens the configured database for the duration of fn.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, db database.Service, st *postgres.Store, log *slog.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.ServiceName + "-ctl")
	ctx := cmd.Context()

	db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, log)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(ctx, db, postgres.New(db), log)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	return withStore(cmd, func(ctx context.Context, db database.Service, _ *postgres.Store, log *slog.Logger) error {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		log.Info("Schema applied")
		return nil
	})
}

func runSeedAccount(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, _ database.Service, st *postgres.Store, _ *slog.Logger) error {
		if err := st.UpsertAccount(ctx, args[0], seedPrivate); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "account %s private=%t\n", args[0], seedPrivate)
		return nil
	})
}

func runSeedPost(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, _ database.Service, st *postgres.Store, _ *slog.Logger) error {
		content := social.Content{ID: args[0], Owner: seedOwner, CloseFriendsOnly: seedCloseFriends}
		if err := st.UpsertContent(ctx, content); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "post %s owner=%s close_friends=%t\n", content.ID, content.Owner, content.CloseFriendsOnly)
		return nil
	})
}

func runCounts(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, _ database.Service, st *postgres.Store, log *slog.Logger) error {
		svc := follow.NewService(st, st, relation.NewResolver(st), follow.Options{}, log)
		counts, err := svc.Counts(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), counts)
	})
}

// resolveOutput flattens a RelationshipView for printing.
type resolveOutput struct {
	Viewer string                  `json:"viewer"`
	Target string                  `json:"target"`
	Kind   string                  `json:"kind"`
	View   social.RelationshipView `json:"view"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, _ database.Service, st *postgres.Store, _ *slog.Logger) error {
		view, err := relation.NewResolver(st).Resolve(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resolveOutput{
			Viewer: args[0],
			Target: args[1],
			Kind:   view.Kind(),
			View:   view,
		})
	})
}

func runInbox(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, _ database.Service, st *postgres.Store, _ *slog.Logger) error {
		inbox, err := notification.NewService(st).List(ctx, args[0], inboxLimit)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), inbox)
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

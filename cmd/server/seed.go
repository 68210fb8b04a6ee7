package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/warp/vacation-engine/store/sqlite"
	"github.com/warp/vacation-engine/vacation"
	"go.uber.org/zap"
)

// demoUsers is the directory created by seed.
var demoUsers = []struct {
	name string
	role vacation.Role
}{
	{"Alice", vacation.RoleRequester},
	{"Bob", vacation.RoleValidator},
}

// userWriter is the part of the sqlite store that seeding needs.
type userWriter interface {
	vacation.Directory
	SaveUser(ctx context.Context, u vacation.User) error
}

// seedDirectory creates the demo users when the directory is empty and
// returns how many it created.
func seedDirectory(ctx context.Context, store userWriter, now time.Time, logger *zap.Logger) (int, error) {
	existing, err := store.ListUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}
	if len(existing) > 0 {
		logger.Info("directory already seeded", zap.Int("users", len(existing)))
		return 0, nil
	}

	for _, d := range demoUsers {
		u := vacation.User{
			ID:        vacation.UserID(uuid.NewString()),
			Name:      d.name,
			Role:      d.role,
			CreatedAt: now,
		}
		if err := store.SaveUser(ctx, u); err != nil {
			return 0, fmt.Errorf("save user %s: %w", d.name, err)
		}
		logger.Info("user created", zap.String("id", string(u.ID)), zap.String("name", u.Name), zap.String("role", string(u.Role)))
	}
	return len(demoUsers), nil
}

func printUsers(w io.Writer, users []vacation.User) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tROLE")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", u.ID, u.Name, u.Role)
	}
	return tw.Flush()
}

func seedCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the demo users (Alice, Bob) if the directory is empty",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, f, func(ctx context.Context, store *sqlite.Store, logger *zap.Logger) error {
				if _, err := seedDirectory(ctx, store, time.Now(), logger); err != nil {
					return err
				}
				users, err := store.ListUsers(ctx)
				if err != nil {
					return err
				}
				return printUsers(cmd.OutOrStdout(), users)
			})
		},
	}
}

func usersCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "Print the user directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, f, func(ctx context.Context, store *sqlite.Store, _ *zap.Logger) error {
				users, err := store.ListUsers(ctx)
				if err != nil {
					return err
				}
				return printUsers(cmd.OutOrStdout(), users)
			})
		},
	}
}

func withStore(cmd *cobra.Command, f *flags, fn func(context.Context, *sqlite.Store, *zap.Logger) error) error {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	return fn(cmd.Context(), store, logger)
}

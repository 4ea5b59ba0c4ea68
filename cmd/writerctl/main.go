package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"writer-backend/internal/bootstrap"
	"writer-backend/internal/pipeline"
	"writer-backend/internal/shared/config"
	"writer-backend/internal/shared/storage/db"
	"writer-backend/internal/shared/telemetry"
)

var (
	grantAmount int
	listLimit   int
	listOwner   string
)

var rootCmd = &cobra.Command{
	Use:           "writerctl",
	Short:         "Operator tooling for the writer backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var creditsCmd = &cobra.Command{Use: "credits", Short: "Inspect and adjust credit balances"}

var balanceCmd = &cobra.Command{
	Use:   "balance <user-id>",
	Short: "Print a user's credit balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
			bal, err := app.Ledger.Balance(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", bal.UserID, bal.Credits)
			return nil
		})
	},
}

var grantCmd = &cobra.Command{
	Use:   "grant <user-id>",
	Short: "Add credits to a user's balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if grantAmount <= 0 {
			return fmt.Errorf("--amount must be positive")
		}
		return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
			bal, err := app.Ledger.Grant(ctx, args[0], grantAmount)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", bal.UserID, bal.Credits)
			return nil
		})
	},
}

var itemsCmd = &cobra.Command{Use: "items", Short: "Inspect work items"}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List work items, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
			var (
				list []pipeline.WorkItem
				err  error
			)
			if listOwner != "" {
				list, err = app.ItemsRepo.ListByOwner(ctx, listOwner)
			} else {
				list, err = app.ItemsRepo.ListAll(ctx, listLimit)
			}
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tOWNER\tSTAGE\tREV\tTITLE\tUPDATED")
			for _, it := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n", it.ID, it.UserID, it.Stage, it.Revision, it.Request.Title, it.UpdatedAt.Format(time.RFC3339))
			}
			return w.Flush()
		})
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Fail generations that exceeded the timeout",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
			n, err := app.Pipeline.SweepTimeouts(ctx, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "failed %d timed out item(s)\n", n)
			return nil
		})
	},
}

var usersCmd = &cobra.Command{Use: "users", Short: "Manage accounts"}

var promoteCmd = &cobra.Command{
	Use:   "promote <user-id>",
	Short: "Grant the admin role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
			if err := app.UsersService.Promote(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now admin\n", args[0])
			return nil
		})
	},
}

func init() {
	grantCmd.Flags().IntVar(&grantAmount, "amount", 1, "Credits to add")
	listCmd.Flags().IntVar(&listLimit, "limit", 50, "Maximum items to list")
	listCmd.Flags().StringVar(&listOwner, "owner", "", "Only list items owned by this user")

	creditsCmd.AddCommand(balanceCmd, grantCmd)
	itemsCmd.AddCommand(listCmd, sweepCmd)
	usersCmd.AddCommand(promoteCmd)
	rootCmd.AddCommand(creditsCmd, itemsCmd, usersCmd)
}

// withApp builds the shared dependencies without a router and closes them
// after fn returns.
func withApp(ctx context.Context, fn func(context.Context, *bootstrap.App) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.LoadWithSecrets(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	telemetry.Init(telemetry.Config{Level: "warn", Pretty: true, Service: "writerctl", Output: os.Stderr})

	app, err := bootstrap.Build(ctx, cfg, bootstrap.Options{
		DBOptions:      db.OptionsFromEnv(db.DefaultMigrateOptions()),
		SkipRouter:     true,
		SkipMigrations: true,
	})
	if err != nil {
		return fmt.Errorf("bootstrap build: %w", err)
	}
	defer app.Close()
	return fn(ctx, app)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

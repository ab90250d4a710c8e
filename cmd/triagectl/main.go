package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	commonauth "triage_server/server/common/auth"
	"triage_server/server/common/infra/cache"
	"triage_server/server/common/infra/db"
	"triage_server/server/triage/app"
	"triage_server/server/triage/repository"
	"triage_server/server/triage/service"
)

var (
	presetsFileFlag string
	userEmailFlag   string
	userNameFlag    string
	userPhoneFlag   string
	userRoleFlag    string
	passwordFlag    string
)

var rootCmd = &cobra.Command{
	Use:          "triagectl",
	Short:        "Operate the emergency triage service",
	SilenceUsage: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create tables and indexes that do not exist yet",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool) error {
			if err := repository.EnsureSchema(ctx, pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		})
	},
}

var seedPresetsCmd = &cobra.Command{
	Use:   "seed-presets",
	Short: "Upsert preset messages and emails from a YAML file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		file, err := service.LoadPresetFile(presetsFileFlag)
		if err != nil {
			return err
		}
		cfg := app.LoadConfig()
		return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool) error {
			catalog, closeCatalog := newCatalog(cfg, pool)
			defer closeCatalog()
			if err := catalog.SeedPresets(ctx, file); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d messages and %d emails\n", len(file.Messages), len(file.Emails))
			return nil
		})
	},
}

var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Create a console or reference user",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withAccounts(cmd.Context(), func(ctx context.Context, accounts *service.AccountService) error {
			in := service.NewUserInput{Email: userEmailFlag, FullName: userNameFlag, Role: userRoleFlag, Password: passwordFlag}
			if userPhoneFlag != "" {
				in.PhoneNumber = &userPhoneFlag
			}
			id, err := accounts.CreateUser(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		})
	},
}

var setPasswordCmd = &cobra.Command{
	Use:   "set-password",
	Short: "Set the console password for a user",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withAccounts(cmd.Context(), func(ctx context.Context, accounts *service.AccountService) error {
			return accounts.SetPassword(ctx, userEmailFlag, passwordFlag)
		})
	},
}

var issueTokenCmd = &cobra.Command{
	Use:   "issue-token",
	Short: "Print a bearer token for a STAFF or ADMIN user",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withAccounts(cmd.Context(), func(ctx context.Context, accounts *service.AccountService) error {
			token, err := accounts.IssueToken(ctx, userEmailFlag)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		})
	},
}

func init() {
	seedPresetsCmd.Flags().StringVar(&presetsFileFlag, "file", "config/presets.yaml", "preset YAML file")

	createUserCmd.Flags().StringVar(&userEmailFlag, "email", "", "user email")
	createUserCmd.Flags().StringVar(&userNameFlag, "name", "", "full name")
	createUserCmd.Flags().StringVar(&userPhoneFlag, "phone", "", "phone number")
	createUserCmd.Flags().StringVar(&userRoleFlag, "role", "STAFF", "GUEST, HOST, STAFF or ADMIN")
	createUserCmd.Flags().StringVar(&passwordFlag, "password", "", "console password (optional)")
	_ = createUserCmd.MarkFlagRequired("email")
	_ = createUserCmd.MarkFlagRequired("name")

	setPasswordCmd.Flags().StringVar(&userEmailFlag, "email", "", "user email")
	setPasswordCmd.Flags().StringVar(&passwordFlag, "password", "", "new password")
	_ = setPasswordCmd.MarkFlagRequired("email")
	_ = setPasswordCmd.MarkFlagRequired("password")

	issueTokenCmd.Flags().StringVar(&userEmailFlag, "email", "", "user email")
	_ = issueTokenCmd.MarkFlagRequired("email")

	rootCmd.AddCommand(migrateCmd, seedPresetsCmd, createUserCmd, setPasswordCmd, issueTokenCmd)
}

func withPool(ctx context.Context, fn func(context.Context, *pgxpool.Pool) error) error {
	cfg := app.LoadConfig()
	pool, err := db.NewPool(ctx, cfg.PostgresDSN, 2)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	return fn(ctx, pool)
}

// newCatalog shares the server's Redis cache so running servers drop stale presets and team lists.
func newCatalog(cfg app.Config, pool *pgxpool.Pool) (*service.CatalogService, func()) {
	var client *redis.Client
	if cfg.CatalogCache {
		client = cache.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	}
	catalog := service.NewCatalogService(repository.NewCatalogRepository(pool), client, cfg.CatalogTTL)
	return catalog, func() {
		if client != nil {
			_ = client.Close()
		}
	}
}

func withAccounts(ctx context.Context, fn func(context.Context, *service.AccountService) error) error {
	cfg := app.LoadConfig()
	return withPool(ctx, func(ctx context.Context, pool *pgxpool.Pool) error {
		tokens := commonauth.NewService(cfg.JWTSecret, cfg.JWTTTLMinutes)
		catalog, closeCatalog := newCatalog(cfg, pool)
		defer closeCatalog()
		return fn(ctx, service.NewAccountService(repository.NewUserRepository(pool), tokens, catalog))
	})
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

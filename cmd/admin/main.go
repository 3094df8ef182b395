package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/nonprofit-portal/cmd/admin/account"
	"github.com/redmonkez12/nonprofit-portal/cmd/admin/ui"
	"github.com/redmonkez12/nonprofit-portal/internal/auth"
	"github.com/redmonkez12/nonprofit-portal/internal/config"
	"github.com/redmonkez12/nonprofit-portal/internal/database"
	"github.com/redmonkez12/nonprofit-portal/internal/user"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "admin",
		Short:        "Operator tools for the nonprofit portal",
		Long:         "Create staff accounts, change roles and run database migrations against the configured database.",
		SilenceUsage: true,
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a verified account",
		RunE:  runCreate,
	}

	// Missing flags are asked for interactively
	createCmd.Flags().String("email", "", "Email address")
	createCmd.Flags().String("username", "", "Username")
	createCmd.Flags().String("name", "", "Full name")
	createCmd.Flags().String("password", "", "Password")
	createCmd.Flags().String("role", "", "Role (user, admin, superadmin), admin when omitted")

	setRoleCmd := &cobra.Command{
		Use:   "set-role",
		Short: "Change the role of an existing account",
		RunE:  runSetRole,
	}
	setRoleCmd.Flags().String("email", "", "Email address")
	setRoleCmd.Flags().String("role", "", "Role (user, admin, superadmin)")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE:  runMigrate,
	}

	migrateStatusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of every migration",
		RunE:  runMigrateStatus,
	}

	migrateCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(createCmd, setRoleCmd, migrateCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openDB(ctx context.Context) (*config.Config, *bun.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return cfg, db, nil
}

func runCreate(cmd *cobra.Command, args []string) error {
	var in account.Input
	in.Email, _ = cmd.Flags().GetString("email")
	in.Username, _ = cmd.Flags().GetString("username")
	in.Name, _ = cmd.Flags().GetString("name")
	in.Password, _ = cmd.Flags().GetString("password")
	in.Role, _ = cmd.Flags().GetString("role")

	if !in.Complete() {
		fmt.Println()
		ui.PrintTitle("New account")

		if err := ui.RunAccountForm(&in); err != nil {
			return fmt.Errorf("form cancelled: %w", err)
		}
	}

	ctx := cmd.Context()
	cfg, db, err := openDB(ctx)
	if err != nil {
		ui.PrintError(err.Error())
		return err
	}
	defer db.Close()

	hasher := auth.NewPasswordHasher(cfg.Auth.PasswordMemoryKiB)
	u, err := account.Create(ctx, user.NewRepository(db), hasher, in)
	if err != nil {
		ui.PrintError(err.Error())
		return err
	}

	ui.PrintAccount("Account created", u)
	return nil
}

func runSetRole(cmd *cobra.Command, args []string) error {
	email, _ := cmd.Flags().GetString("email")
	role, _ := cmd.Flags().GetString("role")

	if email == "" || role == "" {
		if err := ui.RunRoleForm(&email, &role); err != nil {
			return fmt.Errorf("form cancelled: %w", err)
		}
	}

	ctx := cmd.Context()
	_, db, err := openDB(ctx)
	if err != nil {
		ui.PrintError(err.Error())
		return err
	}
	defer db.Close()

	u, err := account.SetRole(ctx, user.NewRepository(db), email, role)
	if err != nil {
		ui.PrintError(err.Error())
		return err
	}

	ui.PrintAccount("Role updated", u)
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	_, db, err := openDB(ctx)
	if err != nil {
		ui.PrintError(err.Error())
		return err
	}
	defer db.Close()

	if err := database.Migrate(ctx, db.DB); err != nil {
		ui.PrintError(err.Error())
		return err
	}

	ui.PrintTitle("Migrations applied")
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	_, db, err := openDB(ctx)
	if err != nil {
		ui.PrintError(err.Error())
		return err
	}
	defer db.Close()

	return database.MigrationStatus(ctx, db.DB)
}

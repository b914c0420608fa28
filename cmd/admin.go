package cmd

import (
	"context"
	"fmt"
	"time"

	coreconfig "github.com/whatspy/whatspy/core/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var createAdminCmd = &cobra.Command{
	Use:     "create-admin",
	Short:   "Create an admin user for the tenant REST API",
	Long:    `Creates an admin user with a bcrypt password. The user logs in on POST /api/auth/login and receives a JWT bound to its tenant.`,
	Example: `  whatspy create-admin --username ops --password 'S3cure-pass' --tenant acme`,
	RunE:    createAdmin,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	Run: func(_ *cobra.Command, _ []string) {
		initStorage()
		logrus.Info("[MIGRATION] Schema is up to date")
		StopApp()
	},
}

func init() {
	createAdminCmd.Flags().String("username", "", "admin username (required)")
	createAdminCmd.Flags().String("password", "", "admin password, at least 8 characters (required)")
	createAdminCmd.Flags().String("tenant", "", "tenant the admin belongs to (default: TENANT_ID)")
	_ = createAdminCmd.MarkFlagRequired("username")
	_ = createAdminCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(createAdminCmd)
	rootCmd.AddCommand(migrateCmd)
}

func createAdmin(cmd *cobra.Command, _ []string) error {
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")
	tenantID, _ := cmd.Flags().GetString("tenant")
	if tenantID == "" {
		tenantID = coreconfig.Global.App.DefaultTenantID
	}

	initStorage()
	defer StopApp()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	user, err := authService.CreateAdmin(ctx, username, password, tenantID)
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Admin %q created for tenant %q (id %s)\n", user.Username, user.TenantID, user.ID)
	return nil
}

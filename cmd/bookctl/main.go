// Command bookctl runs administrative tasks against the configured store.
package main

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Melih7342/bookmanager/config"
	"github.com/Melih7342/bookmanager/internal/application"
	"github.com/Melih7342/bookmanager/internal/bootstrap"
	"github.com/Melih7342/bookmanager/internal/domain/entity"
	pginfra "github.com/Melih7342/bookmanager/internal/infrastructure/postgres"
	"github.com/Melih7342/bookmanager/pkg/helpers"
	"github.com/Melih7342/bookmanager/pkg/validation"
)

// cli carries what every subcommand needs. Tests replace the fields.
type cli struct {
	cfg          *config.Config
	logger       *logrus.Logger
	readPassword func(prompt string) (string, error)
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	c := &cli{
		cfg:          cfg,
		logger:       helpers.NewLogger(cfg.AppName+"-ctl", cfg.Env),
		readPassword: readTerminalPassword,
	}
	if err := c.rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// readTerminalPassword reads a password without echoing it.
func readTerminalPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "bookctl",
		Short:        "Administer the book manager store",
		SilenceUsage: true,
	}
	root.AddCommand(c.migrateCmd(), c.seedCmd(), c.createAdminCmd())
	return root
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.cfg.StoreBackend != config.StorePostgres {
				return fmt.Errorf("migrate needs STORE_BACKEND=%s", config.StorePostgres)
			}
			if err := pginfra.Migrate(c.cfg.PostgresDSN(), c.cfg.MigrationsDir, c.logger); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func (c *cli) seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the demo accounts and books when no user exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			stores, err := bootstrap.OpenStores(ctx, c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer stores.Close()

			created, err := application.SeedDemoData(ctx, stores.Users, stores.Books, helpers.NewBcryptHasher(c.cfg.BcryptCost), c.logger)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintln(cmd.OutOrStdout(), "demo data created")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "users already exist, nothing seeded")
			}
			return nil
		},
	}
}

func (c *cli) createAdminCmd() *cobra.Command {
	var (
		username string
		role     string
	)
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an account, prompting for its password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := entity.ParseRole(role)
			if err != nil {
				return err
			}
			v := validator.New()
			validation.Configure(v)
			if err := v.Var(username, "required,uname"); err != nil {
				return fmt.Errorf("username %s", describe(err))
			}

			password, err := c.readPassword("Password: ")
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			if err := v.Var(password, "required,pwd"); err != nil {
				return fmt.Errorf("password %s", describe(err))
			}
			confirm, err := c.readPassword("Repeat password: ")
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			if confirm != password {
				return fmt.Errorf("passwords do not match")
			}

			ctx := cmd.Context()
			stores, err := bootstrap.OpenStores(ctx, c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer stores.Close()
			_, users := bootstrap.NewServices(c.cfg, c.logger, stores, &bootstrap.Backends{})

			p, err := users.RegisterWithRole(ctx, username, password, r)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s with role %s\n", p.Username, p.Role)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account name")
	cmd.Flags().StringVar(&role, "role", string(entity.RoleAdmin), "role to grant (admin or reader)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func describe(err error) string {
	for _, msg := range validation.ToDetails(err) {
		return msg
	}
	return err.Error()
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gighub/internal/app"
	"gighub/internal/domain"
	"gighub/internal/engine"
	"gighub/internal/engine/policy"
	"gighub/internal/repo"
	"gighub/internal/server"
)

func main() {
	_ = godotenv.Load()
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// cliActor is the identity for local administration. It never exists as
// a row, so user guards like self-deactivation still apply to real
// accounts only.
var cliActor = policy.Actor{ID: "cli", Role: domain.RoleAdmin}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gighub",
		Short:         "Freelance job marketplace",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().String("workspace", ".", "workspace directory")
	cmd.PersistentFlags().String("config", "gighub.yml", "config file path")
	cmd.PersistentFlags().Bool("json", false, "print JSON instead of tables")
	cmd.PersistentFlags().String("jwt-secret", "", "JWT signing secret")

	viper.SetEnvPrefix("GIGHUB")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("workspace", cmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("config", cmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("json", cmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("jwt_secret", cmd.PersistentFlags().Lookup("jwt-secret"))

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(migrateCmd())
	cmd.AddCommand(userCmd())
	cmd.AddCommand(jobCmd())
	cmd.AddCommand(apikeyCmd())
	cmd.AddCommand(tokenCmd())
	return cmd
}

func loadApp() (*app.App, error) {
	return app.Load(viper.GetString("workspace"), viper.GetString("config"))
}

func withApp(fn func(ctx context.Context, a *app.App) error) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(context.Background(), a)
}

func jwtSecret(a *app.App) (string, error) {
	secret := viper.GetString("jwt_secret")
	if secret == "" {
		secret = a.Config.Auth.JWTSecret
	}
	if secret == "" {
		return "", fmt.Errorf("a JWT secret is required; set GIGHUB_JWT_SECRET or auth.jwt_secret")
	}
	return secret, nil
}

func serveCmd() *cobra.Command {
	var adminEmail, adminName string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()
			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
			secret, err := jwtSecret(a)
			if err != nil {
				return err
			}

			seeded, created, err := a.EnsureAdmin(cmd.Context(), adminName, adminEmail)
			if err != nil {
				return err
			}
			if created {
				logger.Info("seeded admin account", "id", seeded.ID, "email", seeded.Email)
			}

			handler, err := server.New(server.Config{
				Engine:   a.Engine,
				BasePath: a.Config.Server.BasePath,
				Auth: server.AuthConfig{
					JWTSecret:    secret,
					AllowAPIKeys: a.Config.Auth.AllowAPIKeys,
					Logger:       logger,
				},
				Logger:      logger,
				UploadsRoot: a.Config.Storage.Root,
				UploadsBase: a.Config.Storage.PublicBaseURL,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			dispatcher := &server.WebhookDispatcher{
				Repo:      a.Engine.Repo,
				Endpoints: a.Config.Webhooks,
				Logger:    logger,
			}
			go dispatcher.Run(ctx)

			srv := &http.Server{Addr: a.Config.Server.Addr, Handler: handler}
			errCh := make(chan error, 1)
			go func() {
				logger.Info("listening", "addr", a.Config.Server.Addr, "base_path", a.Config.Server.BasePath)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&adminEmail, "admin-email", "admin@localhost", "email for the seeded admin")
	cmd.Flags().StringVar(&adminName, "admin-name", "Administrator", "name for the seeded admin")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				fmt.Println("database is up to date")
				return nil
			})
		},
	}
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage accounts"}
	cmd.AddCommand(userCreateCmd(), userListCmd(), userSetRoleCmd(), userDeactivateCmd(), userReactivateCmd())
	return cmd
}

func userCreateCmd() *cobra.Command {
	var name, email, role string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				u, err := a.Engine.CreateUser(ctx, cliActor, engine.CreateUserInput{Name: name, Email: email, Role: role})
				if err != nil {
					return err
				}
				return printJSONOrTable(userRows([]any{u}), u)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&role, "role", domain.RoleClient, "client, freelancer or admin")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func userListCmd() *cobra.Command {
	var role, search string
	var page, limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				users, total, _, err := a.Engine.ListUsers(ctx, cliActor, role, search, repo.Page{Page: page, Limit: limit})
				if err != nil {
					return err
				}
				items := make([]any, 0, len(users))
				for _, u := range users {
					items = append(items, u)
				}
				if err := printJSONOrTable(userRows(items), users); err != nil {
					return err
				}
				if !viper.GetBool("json") {
					fmt.Printf("%d total\n", total)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "filter by role")
	cmd.Flags().StringVar(&search, "search", "", "match name, email or id")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", 10, "page size")
	return cmd
}

func userSetRoleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-role <user-id> <role>",
		Short: "Change an account's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				u, err := a.Engine.UpdateUserRole(ctx, cliActor, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSONOrTable(userRows([]any{u}), u)
			})
		},
	}
	return cmd
}

func userDeactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <user-id>",
		Short: "Disable an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				u, err := a.Engine.DeactivateUser(ctx, cliActor, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(userRows([]any{u}), u)
			})
		},
	}
}

func userReactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reactivate <user-id>",
		Short: "Re-enable an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				u, err := a.Engine.ReactivateUser(ctx, cliActor, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(userRows([]any{u}), u)
			})
		},
	}
}

func jobCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "job", Short: "Inspect and moderate jobs"}
	cmd.AddCommand(jobListCmd(), jobShowCmd(), jobApproveCmd())
	return cmd
}

func jobListCmd() *cobra.Command {
	var status, category string
	var page, limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				jobs, total, err := a.Engine.Repo.ListJobs(ctx, repo.JobFilters{Status: status, Category: category}, repo.Page{Page: page, Limit: limit})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(jobs)
				}
				t := newTable(table.Row{"ID", "TITLE", "STATUS", "PRICE", "CLIENT", "FREELANCER"})
				for _, j := range jobs {
					freelancer := ""
					if j.FreelancerID != nil {
						freelancer = *j.FreelancerID
					}
					t.AppendRow(table.Row{j.ID, j.Title, j.Status, j.PriceMinor, j.ClientID, freelancer})
				}
				t.Render()
				fmt.Printf("%d total\n", total)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", 10, "page size")
	return cmd
}

func jobShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show a job with deliverables and revisions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				j, err := a.Engine.GetJob(ctx, cliActor, args[0])
				if err != nil {
					return err
				}
				return printJSON(j)
			})
		},
	}
}

func jobApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <job-id>",
		Short: "Approve a pending job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				j, err := a.Engine.ApproveJob(ctx, cliActor, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("job %s is now %s\n", j.ID, j.Status)
				return nil
			})
		},
	}
}

func apikeyCmd() *cobra.Command {
	parent := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	var userID, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Issue an API key for an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				if _, err := a.Engine.Repo.GetUser(ctx, userID); err != nil {
					return fmt.Errorf("user %s: %w", userID, err)
				}
				raw := "gk_" + uuid.NewString()
				err := a.Engine.Repo.InsertAPIKey(ctx, domain.APIKey{
					ID:        uuid.NewString(),
					UserID:    userID,
					Name:      name,
					KeyHash:   repo.HashAPIKey(raw),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				})
				if err != nil {
					return err
				}
				// The raw key is shown once and never stored.
				fmt.Println(raw)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "account id")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	_ = cmd.MarkFlagRequired("user")
	parent.AddCommand(cmd, apikeyListCmd(), apikeyRevokeCmd())
	return parent
}

func apikeyListCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List an account's API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				keys, err := a.Engine.Repo.ListAPIKeys(ctx, userID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				t := newTable(table.Row{"ID", "NAME", "CREATED"})
				for _, k := range keys {
					t.AppendRow(table.Row{k.ID, k.Name, k.CreatedAt})
				}
				t.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "account id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func apikeyRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				if err := a.Engine.Repo.DeleteAPIKey(ctx, args[0]); err != nil {
					return err
				}
				fmt.Println("revoked")
				return nil
			})
		},
	}
}

func tokenCmd() *cobra.Command {
	var userID string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				secret, err := jwtSecret(a)
				if err != nil {
					return err
				}
				if _, err := a.Engine.Repo.GetUser(ctx, userID); err != nil {
					return fmt.Errorf("user %s: %w", userID, err)
				}
				token, err := server.SignToken(secret, userID, ttl)
				if err != nil {
					return err
				}
				fmt.Println(token)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "account id")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newTable(header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(header)
	return t
}

func userRows(items []any) table.Writer {
	t := newTable(table.Row{"ID", "NAME", "EMAIL", "ROLE", "ACTIVE"})
	for _, item := range items {
		u, ok := item.(domain.User)
		if !ok {
			continue
		}
		t.AppendRow(table.Row{u.ID, u.Name, u.Email, u.Role, u.Active})
	}
	return t
}

func printJSONOrTable(t table.Writer, v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	t.Render()
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

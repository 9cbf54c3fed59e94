package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/fx"

	"github.com/codeduel/live-delivery/config"
	"github.com/codeduel/live-delivery/infra/client/arena"
	"github.com/codeduel/live-delivery/infra/credential"
	"github.com/codeduel/live-delivery/internal/domain/store"
	"github.com/codeduel/live-delivery/internal/handler/tui"
	"github.com/codeduel/live-delivery/internal/service"
	"github.com/codeduel/live-delivery/internal/service/consumer"
	"github.com/codeduel/live-delivery/internal/service/dto"
)

const (
	ServiceName      = "live-delivery"
	ServiceNamespace = "codeduel"
)

var (
	version        = "0.0.0"
	commit         = "hash"
	commitDate     = time.Now().String()
	branch         = "branch"
	buildTimestamp = ""
)

func Run() error {
	app := &cli.App{
		Name:    ServiceName,
		Usage:   "Live notifications and match sync for the codeduel arena",
		Version: fmt.Sprintf("%s (%s@%s, %s)", version, branch, commit, commitDate),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config_file",
				Aliases: []string{"c"},
				Usage:   "Path to the configuration file",
				EnvVars: []string{config.EnvPrefix + "_CONFIG_FILE"},
			},
		},
		Commands: []*cli.Command{
			listenCmd(),
			dashboardCmd(),
			searchCmd(),
			loginCmd(),
			logoutCmd(),
			historyCmd(),
		},
	}
	if buildTimestamp != "" {
		app.Version += " built " + buildTimestamp
	}

	return app.Run(os.Args)
}

// loadConfig reads the file named by --config_file; arguments after the command
// (e.g. `listen -- --log.level=debug`) override single keys.
func loadConfig(c *cli.Context) (*config.Config, error) {
	return config.LoadConfig(c.String("config_file"), c.Args().Slice())
}

func listenCmd() *cli.Command {
	return &cli.Command{
		Name:    "listen",
		Aliases: []string{"l"},
		Usage:   "Run the live session headless with the local status API",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			app := NewApp(cfg, LogOutput{os.Stderr})

			if err := app.Start(c.Context); err != nil {
				return unauthenticatedHint(err)
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			slog.Info("Shutting down...")
			return app.Stop(context.Background())
		},
	}
}

func dashboardCmd() *cli.Command {
	return &cli.Command{
		Name:    "dashboard",
		Aliases: []string{"d"},
		Usage:   "Show toasts, the unread badge and matchmaking in the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log_file",
				Usage: "Write logs here instead of discarding them",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			var out io.Writer = io.Discard
			if path := c.String("log_file"); path != "" {
				f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
				if err != nil {
					return fmt.Errorf("open log file: %w", err)
				}
				defer f.Close()
				out = f
			}

			var dash *tui.Dashboard
			app := NewApp(cfg, LogOutput{out},
				fx.Provide(func(s service.Sessioner, st *store.Store, toasts *consumer.ToastFeed, badge *consumer.Badge, mm *consumer.Matchmaking, page *consumer.MatchPage, logger *slog.Logger) *tui.Dashboard {
					return tui.NewDashboard(s, st, toasts, badge, mm, page, logger)
				}),
				fx.Populate(&dash),
			)

			if err := app.Start(c.Context); err != nil {
				return unauthenticatedHint(err)
			}

			ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer cancel()
			runErr := dash.Run(ctx)

			return errors.Join(runErr, app.Stop(context.Background()))
		},
	}
}

func searchCmd() *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Find an opponent (or invite a friend), then follow the match until its results are in",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "friend",
				Usage: "Invite this user instead of searching the queue",
			},
			&cli.Int64Flag{
				Name:  "accept",
				Usage: "Accept the match invite with this notification id",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			var (
				mm   *consumer.Matchmaking
				page *consumer.MatchPage
			)
			app := NewApp(cfg, LogOutput{os.Stderr}, fx.Populate(&mm, &page))
			if err := app.Start(c.Context); err != nil {
				return unauthenticatedHint(err)
			}
			defer app.Stop(context.Background())

			ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer cancel()

			found := make(chan struct{}, 1)
			mm.OnChange(func() {
				if mm.State() == consumer.Found {
					notify(found)
				}
			})
			settled := make(chan struct{}, 1)
			page.OnChange(func() {
				if v := page.View(); v.Phase == consumer.PhaseCompleted && (v.Result != nil || v.Err != "") {
					notify(settled)
				}
			})

			switch {
			case c.Int64("accept") != 0:
				err = mm.AcceptInvite(ctx, c.Int64("accept"))
			case c.String("friend") != "":
				err = mm.InviteFriend(ctx, c.String("friend"))
			default:
				var resumed bool
				if resumed, err = mm.Resume(ctx); err == nil && !resumed {
					err = mm.Search(ctx)
				}
			}
			if err != nil {
				return err
			}

			select {
			case <-found:
			case <-ctx.Done():
				// interrupted: stopping the app withdraws the search unless the match already started
				return nil
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(mm.View().Match); err != nil {
				return err
			}

			// [HAND_OFF] the match page now owns the match; stay until the results land
			select {
			case <-settled:
			case <-ctx.Done():
				return nil
			}
			return enc.Encode(page.View())
		},
	}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func loginCmd() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Sign in and keep the token in the OS keychain",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{config.EnvPrefix + "_PASSWORD"}},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			var (
				client *arena.Client
				creds  credential.Store
			)
			app := NewClientApp(cfg, LogOutput{os.Stderr}, fx.Populate(&client, &creds))
			if err := app.Err(); err != nil {
				return err
			}

			token, err := client.Login(c.Context, c.String("email"), c.String("password"))
			if err != nil {
				return err
			}
			claims, err := credential.ParseClaims(token, time.Now())
			if err != nil {
				return fmt.Errorf("server issued an unusable token: %w", err)
			}
			if err := creds.Save(token); err != nil {
				return err
			}

			fmt.Printf("Logged in as %s (%s), session valid until %s\n",
				claims.Username, claims.Role, claims.Expiry().Format(time.RFC1123))
			return nil
		},
	}
}

func logoutCmd() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Forget the stored token",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			var creds credential.Store
			app := NewClientApp(cfg, LogOutput{os.Stderr}, fx.Populate(&creds))
			if err := app.Err(); err != nil {
				return err
			}
			if err := creds.Clear(); err != nil {
				return err
			}
			fmt.Println("Logged out")
			return nil
		},
	}
}

func historyCmd() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Print the notification history",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "category", Value: string(arena.CategoryAll), Usage: "all, match or friend"},
			&cli.IntFlag{Name: "page", Value: 0},
			&cli.IntFlag{Name: "size", Value: 20},
			&cli.BoolFlag{Name: "json", Usage: "Print rows as JSON"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			var api arena.NotificationAPI
			app := NewClientApp(cfg, LogOutput{os.Stderr}, fx.Populate(&api))
			if err := app.Err(); err != nil {
				return err
			}

			page, err := api.FetchNotifications(c.Context, arena.NotificationCategory(c.String("category")), c.Int("page"), c.Int("size"))
			if err != nil {
				return err
			}

			rows := make([]dto.NotificationRow, 0, len(page.Content))
			for _, rec := range page.Content {
				rows = append(rows, dto.NewNotificationRow(rec))
			}

			if c.Bool("json") {
				return json.NewEncoder(os.Stdout).Encode(rows)
			}

			now := time.Now()
			for _, r := range rows {
				mark := " "
				if !r.Read {
					mark = "*"
				}
				fmt.Printf("%s [%-6s] %-28s %s (%s)\n", mark, r.Badge, r.Title, r.Message, dto.TimeAgo(r.CreatedAt, now))
			}
			fmt.Printf("page %d of %d, %d total\n", page.Number+1, page.TotalPages, page.TotalElements)
			return nil
		},
	}
}

func unauthenticatedHint(err error) error {
	if errors.Is(err, service.ErrUnauthenticated) {
		return fmt.Errorf("%w (run `%s login` first)", err, ServiceName)
	}
	return err
}

package clientdi

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"github.com/codeduel/live-delivery/config"
	"github.com/codeduel/live-delivery/infra/client/arena"
	"github.com/codeduel/live-delivery/infra/credential"
)

var Module = fx.Module(
	"arena_clients",

	// [CONSTRUCTOR] The OS keychain backed credential, opened lazily on first use
	fx.Provide(
		fx.Annotate(
			func(cfg *config.Config) *credential.Keyring {
				return credential.NewKeyring(credential.KeyringConfig{
					Service: cfg.Credential.Service,
					Key:     cfg.Credential.Key,
					FileDir: cfg.Credential.FileDir,
				})
			},
			fx.As(new(credential.Store)),
		),
	),

	// [CONSTRUCTOR] Provides the resilient REST client under both of its surfaces
	fx.Provide(
		func(cfg *config.Config, creds credential.Store, tp trace.TracerProvider, logger *slog.Logger) (*arena.Client, error) {
			return arena.New(
				arena.Config{BaseURL: cfg.API.BaseURL, Timeout: cfg.API.Timeout},
				creds.Token,
				arena.WithTracerProvider(tp),
				arena.WithLogger(logger),
			)
		},
		func(c *arena.Client) arena.MatchAPI { return c },
		func(c *arena.Client) arena.NotificationAPI { return c },
	),
)

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "CODEDUEL"

// Config holds all configuration for the live delivery client
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Transport  TransportConfig  `mapstructure:"transport"`
	Store      StoreConfig      `mapstructure:"store"`
	Toast      ToastConfig      `mapstructure:"toast"`
	Match      MatchConfig      `mapstructure:"match"`
	Hub        HubConfig        `mapstructure:"hub"`
	Credential CredentialConfig `mapstructure:"credential"`
	Log        LogConfig        `mapstructure:"log"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Export     ExportConfig     `mapstructure:"export"`

	// LogLevel follows log.level, including changes made to the file at runtime.
	LogLevel *slog.LevelVar `mapstructure:"-"`
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type TransportConfig struct {
	URL                  string        `mapstructure:"url"`
	PrivateTopic         string        `mapstructure:"private_topic"`
	ReconnectDelay       time.Duration `mapstructure:"reconnect_delay"`
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts"`
	HeartbeatIncoming    time.Duration `mapstructure:"heartbeat_incoming"`
	HeartbeatOutgoing    time.Duration `mapstructure:"heartbeat_outgoing"`
	HandshakeTimeout     time.Duration `mapstructure:"handshake_timeout"`
	WriteTimeout         time.Duration `mapstructure:"write_timeout"`
}

// Topic renders the private destination of username.
func (t TransportConfig) Topic(username string) string {
	return strings.ReplaceAll(t.PrivateTopic, "{username}", username)
}

type StoreConfig struct {
	MaxNotifications      int           `mapstructure:"max_notifications"`
	DedupWindowSize       int           `mapstructure:"dedup_window_size"`
	DedupBucket           time.Duration `mapstructure:"dedup_bucket"`
	RecentDuplicateWindow time.Duration `mapstructure:"recent_duplicate_window"`
}

type ToastConfig struct {
	Visible      int           `mapstructure:"visible"`
	DismissAfter time.Duration `mapstructure:"dismiss_after"`
}

type MatchConfig struct {
	ResultsDelay time.Duration `mapstructure:"results_delay"`
}

type HubConfig struct {
	MailboxSize int `mapstructure:"mailbox_size"`
}

type CredentialConfig struct {
	Service string `mapstructure:"service"`
	Key     string `mapstructure:"key"`
	FileDir string `mapstructure:"file_dir"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Otel   bool   `mapstructure:"otel"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type ExportConfig struct {
	AMQPURL string `mapstructure:"amqp_url"`
	Topic   string `mapstructure:"topic"`
}

// Flags declares every key with its default. Any of them may be overridden on the
// command line, e.g. --transport.url=wss://host/ws.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("config", pflag.ContinueOnError)

	fs.String("api.base_url", "http://localhost:8080", "REST origin of the arena platform")
	fs.Duration("api.timeout", 10*time.Second, "REST request timeout")

	fs.String("transport.url", "ws://localhost:8080/ws", "STOMP websocket endpoint")
	fs.String("transport.private_topic", "/topic/match-pop/{username}", "per-user destination")
	fs.Duration("transport.reconnect_delay", 5*time.Second, "fixed delay between reconnect attempts")
	fs.Int("transport.max_reconnect_attempts", 5, "reconnect attempts before giving up")
	fs.Duration("transport.heartbeat_incoming", 20*time.Second, "expected broker heart-beat")
	fs.Duration("transport.heartbeat_outgoing", 20*time.Second, "client heart-beat")
	fs.Duration("transport.handshake_timeout", 10*time.Second, "websocket + CONNECT handshake timeout")
	fs.Duration("transport.write_timeout", 5*time.Second, "frame write timeout")

	fs.Int("store.max_notifications", 50, "notifications kept, newest first")
	fs.Int("store.dedup_window_size", 100, "fingerprints remembered for duplicate suppression")
	fs.Duration("store.dedup_bucket", time.Second, "time bucket width of a fingerprint")
	fs.Duration("store.recent_duplicate_window", 2*time.Second, "identical title+message rejection window")

	fs.Int("toast.visible", 3, "toasts shown at once")
	fs.Duration("toast.dismiss_after", 5*time.Second, "toast auto-dismiss delay")

	fs.Duration("match.results_delay", time.Second, "delay before fetching results of a completed match")

	fs.Int("hub.mailbox_size", 64, "per-consumer snapshot buffer")

	fs.String("credential.service", "codeduel", "keyring service name")
	fs.String("credential.key", "token", "keyring item holding the bearer token")
	fs.String("credential.file_dir", "", "directory of the encrypted file keyring fallback")

	fs.String("log.level", "info", "debug, info, warn or error")
	fs.String("log.format", "text", "text or json")
	fs.Bool("log.otel", false, "route logs through the OpenTelemetry bridge")

	fs.String("http.addr", "127.0.0.1:7070", "status API listen address, empty disables it")

	fs.String("export.amqp_url", "", "AMQP broker for notification export, empty uses an in-process channel")
	fs.String("export.topic", "codeduel.notifications", "export topic")

	return fs
}

// LoadConfig merges defaults, the optional YAML file at path, CODEDUEL_* environment
// variables and args, in increasing precedence.
func LoadConfig(path string, args []string) (*Config, error) {
	v := viper.New()

	fs := Flags()
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{LogLevel: new(slog.LevelVar)}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ApplyLogLevel(cfg.LogLevel, cfg.Log.Level); err != nil {
		return nil, err
	}

	if path != "" {
		// [HOT_RELOAD] only the log level is applied live, everything else needs a restart
		v.OnConfigChange(func(e fsnotify.Event) {
			if err := ApplyLogLevel(cfg.LogLevel, v.GetString("log.level")); err != nil {
				slog.Warn("CONFIG_RELOAD_FAILED", slog.String("file", e.Name), slog.Any("err", err))
				return
			}
			slog.Info("CONFIG_RELOADED", slog.String("file", e.Name), slog.String("log_level", cfg.LogLevel.Level().String()))
		})
		v.WatchConfig()
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api.base_url is required"))
	}
	if c.Transport.URL == "" {
		errs = append(errs, errors.New("transport.url is required"))
	}
	if !strings.Contains(c.Transport.PrivateTopic, "{username}") {
		errs = append(errs, errors.New("transport.private_topic must contain {username}"))
	}
	if c.Transport.MaxReconnectAttempts < 0 {
		errs = append(errs, errors.New("transport.max_reconnect_attempts must not be negative"))
	}
	if c.Store.MaxNotifications <= 0 {
		errs = append(errs, errors.New("store.max_notifications must be positive"))
	}
	if c.Store.DedupWindowSize <= 0 {
		errs = append(errs, errors.New("store.dedup_window_size must be positive"))
	}
	if c.Toast.Visible <= 0 {
		errs = append(errs, errors.New("toast.visible must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ApplyLogLevel parses name into lv.
func ApplyLogLevel(lv *slog.LevelVar, name string) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return fmt.Errorf("log.level %q: %w", name, err)
	}
	lv.Set(level)
	return nil
}

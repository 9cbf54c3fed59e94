package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestDefaults(t *testing.T) {
	cfg, err := LoadConfig("", nil)
	assert.Equal(t, err, nil)

	assert.Equal(t, cfg.Transport.ReconnectDelay, 5*time.Second)
	assert.Equal(t, cfg.Transport.MaxReconnectAttempts, 5)
	assert.Equal(t, cfg.Transport.HeartbeatIncoming, 20*time.Second)
	assert.Equal(t, cfg.Transport.HeartbeatOutgoing, 20*time.Second)
	assert.Equal(t, cfg.Store.MaxNotifications, 50)
	assert.Equal(t, cfg.Store.DedupWindowSize, 100)
	assert.Equal(t, cfg.Store.DedupBucket, time.Second)
	assert.Equal(t, cfg.Store.RecentDuplicateWindow, 2*time.Second)
	assert.Equal(t, cfg.Toast.Visible, 3)
	assert.Equal(t, cfg.Toast.DismissAfter, 5*time.Second)
	assert.Equal(t, cfg.Credential.Key, "token")
	assert.Equal(t, cfg.LogLevel.Level(), slog.LevelInfo)
	assert.Equal(t, cfg.Transport.Topic("alice"), "/topic/match-pop/alice")
}

func TestPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	err := os.WriteFile(path, []byte(`
transport:
  url: wss://file.example/ws
  max_reconnect_attempts: 2
log:
  level: debug
toast:
  visible: 4
`), 0o600)
	assert.Equal(t, err, nil)

	t.Setenv("CODEDUEL_TRANSPORT_MAX_RECONNECT_ATTEMPTS", "7")

	cfg, err := LoadConfig(path, []string{"--toast.visible=2"})
	assert.Equal(t, err, nil)

	assert.Equal(t, cfg.Transport.URL, "wss://file.example/ws")
	assert.Equal(t, cfg.Transport.MaxReconnectAttempts, 7)
	assert.Equal(t, cfg.Toast.Visible, 2)
	assert.Equal(t, cfg.LogLevel.Level(), slog.LevelDebug)
}

func TestValidate(t *testing.T) {
	_, err := LoadConfig("", []string{"--transport.private_topic=/topic/static"})
	assert.NotEqual(t, err, nil)

	_, err = LoadConfig("", []string{"--store.max_notifications=0"})
	assert.NotEqual(t, err, nil)

	_, err = LoadConfig("", []string{"--log.level=loud"})
	assert.NotEqual(t, err, nil)
}

func TestApplyLogLevel(t *testing.T) {
	lv := new(slog.LevelVar)

	assert.Equal(t, ApplyLogLevel(lv, "warn"), nil)
	assert.Equal(t, lv.Level(), slog.LevelWarn)

	assert.NotEqual(t, ApplyLogLevel(lv, "nope"), nil)
	assert.Equal(t, lv.Level(), slog.LevelWarn)
}

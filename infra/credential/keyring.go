package credential

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/99designs/keyring"
)

const (
	DefaultService = "codeduel"
	DefaultKey     = "token"
)

type KeyringConfig struct {
	Service string
	Key     string
	// FileDir is used by the encrypted file backend when no OS keychain is available.
	FileDir      string
	FilePassword string
	Backends     []keyring.BackendType
}

// Keyring stores the token in the OS keychain, falling back to an encrypted file.
type Keyring struct {
	cfg KeyringConfig

	once sync.Once
	ring keyring.Keyring
	err  error
}

func NewKeyring(cfg KeyringConfig) *Keyring {
	if cfg.Service == "" {
		cfg.Service = DefaultService
	}
	if cfg.Key == "" {
		cfg.Key = DefaultKey
	}
	if cfg.FileDir == "" {
		cfg.FileDir = "~/.config/" + cfg.Service + "/credentials"
	}
	if cfg.FilePassword == "" {
		cfg.FilePassword = cfg.Service + "-file-key"
	}
	if len(cfg.Backends) == 0 {
		cfg.Backends = []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		}
	}
	return &Keyring{cfg: cfg}
}

// open is deferred until first use so commands that never touch the credential do
// not trigger a keychain prompt.
func (k *Keyring) open() (keyring.Keyring, error) {
	k.once.Do(func() {
		k.ring, k.err = keyring.Open(keyring.Config{
			ServiceName:              k.cfg.Service,
			AllowedBackends:          k.cfg.Backends,
			FileDir:                  k.cfg.FileDir,
			FilePasswordFunc:         keyring.FixedStringPrompt(k.cfg.FilePassword),
			KeychainTrustApplication: true,
		})
		if k.err != nil {
			k.err = fmt.Errorf("opening keyring: %w", k.err)
		}
	})
	return k.ring, k.err
}

func (k *Keyring) Token() (string, error) {
	ring, err := k.open()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(k.cfg.Key)
	if notFound(err) {
		return "", ErrNoCredential
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", k.cfg.Key, err)
	}

	token := strings.TrimSpace(string(item.Data))
	if token == "" {
		return "", ErrNoCredential
	}
	return token, nil
}

func (k *Keyring) Save(token string) error {
	ring, err := k.open()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:   k.cfg.Key,
		Data:  []byte(strings.TrimSpace(token)),
		Label: k.cfg.Service + " bearer token",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", k.cfg.Key, err)
	}
	return nil
}

// Clear removes the token. A missing token is not an error.
func (k *Keyring) Clear() error {
	ring, err := k.open()
	if err != nil {
		return err
	}

	err = ring.Remove(k.cfg.Key)
	if err != nil && !notFound(err) {
		return fmt.Errorf("deleting credential %q: %w", k.cfg.Key, err)
	}
	return nil
}

// the file backend reports a missing key as a missing file on Remove
func notFound(err error) bool {
	return errors.Is(err, keyring.ErrKeyNotFound) || errors.Is(err, fs.ErrNotExist)
}

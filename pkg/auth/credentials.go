package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"mastowatch/pkg/config"
)

// Profile names a secret the tool knows how to use
const (
	ProfileSource = "source"
	ProfileTarget = "target"
	ProfileSMTP   = "smtp"
)

// Profiles lists every known profile in display order
var Profiles = []string{ProfileSource, ProfileTarget, ProfileSMTP}

// Secret is a stored access token or password for one profile
type Secret struct {
	Profile      string    `json:"profile"`
	Value        string    `json:"value"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving secrets
type CredentialStore interface {
	// Store saves the secret under its profile name
	Store(secret *Secret) error

	// Retrieve gets the secret for a profile
	Retrieve(profile string) (*Secret, error)

	// List returns all stored secrets
	List() ([]*Secret, error)

	// Delete removes the secret for a profile
	Delete(profile string) error

	// Exists checks if a secret exists for a profile
	Exists(profile string) bool
}

// Manager handles secret storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a manager backed by the system keychain when it is
// reachable, then an encrypted file, then the environment.
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	passphrase, err := loadPassphrase(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"), passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a manager over an explicit store chain
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// ValidProfile reports whether name is one of Profiles
func ValidProfile(name string) bool {
	for _, p := range Profiles {
		if p == name {
			return true
		}
	}
	return false
}

// Store saves the secret using the first store that accepts it
func (m *Manager) Store(secret *Secret) error {
	if secret == nil || !ValidProfile(secret.Profile) {
		return fmt.Errorf("%w: profile must be one of %v", ErrInvalidCredentials, Profiles)
	}
	if secret.Value == "" {
		return fmt.Errorf("%w: secret value is required", ErrInvalidCredentials)
	}

	secret.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(secret)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store secret: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve gets the secret from the first store that has it
func (m *Manager) Retrieve(profile string) (*Secret, error) {
	for _, store := range m.stores {
		if secret, err := store.Retrieve(profile); err == nil && secret != nil {
			return secret, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrCredentialsNotFound, profile)
}

// List returns the newest secret per profile across all stores, sorted
// by profile name
func (m *Manager) List() ([]*Secret, error) {
	byProfile := make(map[string]*Secret)

	for _, store := range m.stores {
		secrets, err := store.List()
		if err != nil {
			continue
		}
		for _, secret := range secrets {
			if existing, ok := byProfile[secret.Profile]; !ok || secret.LastModified.After(existing.LastModified) {
				byProfile[secret.Profile] = secret
			}
		}
	}

	result := make([]*Secret, 0, len(byProfile))
	for _, secret := range byProfile {
		result = append(result, secret)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Profile < result[j].Profile })

	return result, nil
}

// Delete removes the secret from every store that holds it
func (m *Manager) Delete(profile string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(profile); err == nil {
			deleted = true
		} else if !errors.Is(err, ErrCredentialsNotFound) && !errors.Is(err, ErrStoreUnavailable) {
			lastErr = err
		}
	}

	if deleted {
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("failed to delete secret: %w", lastErr)
	}
	return fmt.Errorf("%w: %s", ErrCredentialsNotFound, profile)
}

// DeleteAll removes every stored secret
func (m *Manager) DeleteAll() error {
	for _, profile := range Profiles {
		_ = m.Delete(profile)
	}
	return nil
}

// Fill copies stored secrets into cfg wherever the configuration left the
// value empty. It returns the profiles that were filled.
func (m *Manager) Fill(cfg *config.Config) []string {
	targets := map[string]*string{
		ProfileSource: &cfg.Source.AccessToken,
		ProfileTarget: &cfg.Target.AccessToken,
		ProfileSMTP:   &cfg.SMTP.Password,
	}

	var filled []string
	for _, profile := range Profiles {
		dst := targets[profile]
		if *dst != "" {
			continue
		}
		secret, err := m.Retrieve(profile)
		if err != nil {
			continue
		}
		*dst = secret.Value
		filled = append(filled, profile)
	}
	return filled
}

// getConfigDir returns the per-user configuration directory
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "mastowatch")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "mastowatch")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "mastowatch")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "mastowatch")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// SanitizeSecret returns a copy with the value masked
func SanitizeSecret(secret *Secret) *Secret {
	if secret == nil {
		return nil
	}

	return &Secret{
		Profile:      secret.Profile,
		Value:        maskString(secret.Value),
		LastModified: secret.LastModified,
	}
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)

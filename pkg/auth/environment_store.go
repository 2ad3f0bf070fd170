package auth

import (
	"os"
	"time"
)

// envNames maps each profile to the variables checked, in order
var envNames = map[string][]string{
	ProfileSource: {"SOURCE_TOKEN", "MASTODON_ACCESS_TOKEN"},
	ProfileTarget: {"TARGET_TOKEN"},
	ProfileSMTP:   {"SMTP_PASSWORD"},
}

// EnvironmentStore is a read-only CredentialStore over environment variables
type EnvironmentStore struct {
	lookup func(string) string
}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{lookup: os.Getenv}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(secret *Secret) error {
	return ErrStoreUnavailable
}

// Retrieve reads the first non-empty variable mapped to profile
func (e *EnvironmentStore) Retrieve(profile string) (*Secret, error) {
	for _, name := range envNames[profile] {
		if value := e.lookup(name); value != "" {
			return &Secret{
				Profile:      profile,
				Value:        value,
				LastModified: time.Time{},
			}, nil
		}
	}
	return nil, ErrCredentialsNotFound
}

// List returns a secret for every profile whose variables are set
func (e *EnvironmentStore) List() ([]*Secret, error) {
	secrets := []*Secret{}
	for _, profile := range Profiles {
		if secret, err := e.Retrieve(profile); err == nil {
			secrets = append(secrets, secret)
		}
	}
	return secrets, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(profile string) error {
	return ErrStoreUnavailable
}

// Exists checks if the profile's variables are set
func (e *EnvironmentStore) Exists(profile string) bool {
	_, err := e.Retrieve(profile)
	return err == nil
}

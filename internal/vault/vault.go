package vault

import (
	"fmt"
	"os"
)

type VaultClient interface {
	GetGitCredentials() (*GitCredentials, error)
}

type GitCredentials struct {
	Username string
	Token    string
}

// DefaultVaultClient reads the bundle repository credentials from the environment.
type DefaultVaultClient struct{}

func (v *DefaultVaultClient) GetGitCredentials() (*GitCredentials, error) {
	username := os.Getenv("BUNDLE_GIT_USERNAME")
	token := os.Getenv("BUNDLE_GIT_TOKEN")
	if username == "" || token == "" {
		return nil, fmt.Errorf("bundle repository credentials not found")
	}
	return &GitCredentials{
		Username: username,
		Token:    token,
	}, nil
}

// NoOpVaultClient is used for public bundle repositories.
type NoOpVaultClient struct{}

func (v *NoOpVaultClient) GetGitCredentials() (*GitCredentials, error) {
	return &GitCredentials{}, nil
}

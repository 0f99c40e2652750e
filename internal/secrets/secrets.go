package secrets

import (
	"fmt"
	"os"
)

// SecretsManager retrieves named secrets.
type SecretsManager interface {
	GetSecret(secretName string) (string, error)
}

// DefaultSecretsManager reads secrets from environment variables.
type DefaultSecretsManager struct{}

func (s *DefaultSecretsManager) GetSecret(secretName string) (string, error) {
	secret := os.Getenv(secretName)
	if secret == "" {
		return "", fmt.Errorf("secret %s not found", secretName)
	}
	return secret, nil
}

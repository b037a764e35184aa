// Package sundaesecret loads JSON secrets from AWS Secrets Manager.
package sundaesecret

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/savaki/secrets"
)

// LoadSecret decodes the JSON secret, secretName, into data.
func LoadSecret(s *session.Session, secretName string, data interface{}) error {
	api := secrets.WithSecretsManager(secretsmanager.New(s))
	manager, err := secrets.NewManager(api)
	if err != nil {
		return fmt.Errorf("failed to initialize secrets: %w", err)
	}

	if err := manager.Decode(secretName, &data); err != nil {
		return fmt.Errorf("failed to load secret %v: %v", secretName, err)
	}
	return nil
}

// Token is a secret holding a single bearer token, {"token":"..."}.
type Token struct {
	Token string `json:"token"`
}

// LoadToken returns the bearer token stored in secretName.
func LoadToken(s *session.Session, secretName string) (string, error) {
	var token Token
	if err := LoadSecret(s, secretName, &token); err != nil {
		return "", err
	}
	if token.Token == "" {
		return "", fmt.Errorf("secret %v holds no token", secretName)
	}
	return token.Token, nil
}

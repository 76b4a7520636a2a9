package auth

import (
	"errors"
	"fmt"
	"os"
)

// ErrMissingCredential is returned when a credential source cannot supply
// both an API key and a secret.
var ErrMissingCredential = errors.New("missing api credential")

// Credentials holds an API key pair. The secret is unexported and never
// appears in logs or formatted output.
type Credentials struct {
	// APIKey is the public key identifier sent with each signed request.
	APIKey string

	secret string
}

// NewCredentials creates a credential pair from an API key and its
// base64-encoded secret.
func NewCredentials(apiKey, secret string) Credentials {
	return Credentials{APIKey: apiKey, secret: secret}
}

// Secret returns the raw (base64-encoded) API secret for signing.
func (c Credentials) Secret() string {
	return c.secret
}

// String implements fmt.Stringer with the secret redacted.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{APIKey:%s, Secret:[REDACTED]}", maskKey(c.APIKey))
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

// Provider supplies credentials for signing. Implementations may read from
// static values, the environment, or an external secret manager.
type Provider interface {
	// Supply returns the credentials to sign with, or ErrMissingCredential
	// (possibly wrapped) when none are available.
	Supply() (Credentials, error)
}

// StaticProvider holds a fixed credential pair given at construction.
type StaticProvider struct {
	creds Credentials
}

// NewStaticProvider creates a provider around fixed credentials.
func NewStaticProvider(apiKey, secret string) *StaticProvider {
	return &StaticProvider{creds: NewCredentials(apiKey, secret)}
}

// Supply implements Provider.
func (p *StaticProvider) Supply() (Credentials, error) {
	if p.creds.APIKey == "" || p.creds.secret == "" {
		return Credentials{}, ErrMissingCredential
	}
	return p.creds, nil
}

// Default environment variable names for EnvProvider.
const (
	EnvAPIKey    = "KRAKEN_API_KEY"
	EnvAPISecret = "KRAKEN_API_SECRET"
)

// EnvProvider reads credentials from two environment variables on every call,
// so externally rotated secrets take effect without a restart.
type EnvProvider struct {
	keyVar    string
	secretVar string
}

// NewEnvProvider creates a provider reading the default variable names.
func NewEnvProvider() *EnvProvider {
	return NewEnvProviderVars(EnvAPIKey, EnvAPISecret)
}

// NewEnvProviderVars creates a provider reading custom variable names.
func NewEnvProviderVars(keyVar, secretVar string) *EnvProvider {
	return &EnvProvider{keyVar: keyVar, secretVar: secretVar}
}

// Supply implements Provider. It fails with ErrMissingCredential when either
// variable is unset or empty.
func (p *EnvProvider) Supply() (Credentials, error) {
	key := os.Getenv(p.keyVar)
	secret := os.Getenv(p.secretVar)
	if key == "" {
		return Credentials{}, fmt.Errorf("%w: %s not set", ErrMissingCredential, p.keyVar)
	}
	if secret == "" {
		return Credentials{}, fmt.Errorf("%w: %s not set", ErrMissingCredential, p.secretVar)
	}
	return NewCredentials(key, secret), nil
}

// ProviderFunc adapts a function to the Provider interface, for callers that
// source credentials from secret managers or other custom stores.
type ProviderFunc func() (Credentials, error)

// Supply implements Provider.
func (f ProviderFunc) Supply() (Credentials, error) {
	return f()
}

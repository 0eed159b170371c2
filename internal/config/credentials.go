package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrMissingCredential is returned when a required API key is not configured.
// Callers treat it as fatal at startup only.
var ErrMissingCredential = errors.New("missing credential")

// Credentials resolves API keys by name. Keys in the config file take
// precedence over the <NAME>_API_KEY environment variable.
type Credentials struct {
	keys   map[string]string
	getenv func(string) string
}

// NewCredentials builds a credential provider over the configured keys.
func NewCredentials(keys map[string]string) *Credentials {
	return &Credentials{keys: keys, getenv: os.Getenv}
}

// APIKey returns the key registered under name.
func (c *Credentials) APIKey(name string) (string, error) {
	name = strings.ToLower(name)
	if k := c.keys[name]; k != "" {
		return k, nil
	}
	if k := c.getenv(strings.ToUpper(name) + "_API_KEY"); k != "" {
		return k, nil
	}
	return "", fmt.Errorf("%w: %s (set api_keys.%s or %s_API_KEY)", ErrMissingCredential, name, name, strings.ToUpper(name))
}

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/remiblancher/hybridkey/pkg/secret"
)

// ResolvePassphrase resolves a passphrase that may be "env:VAR_NAME".
// An empty value means no passphrase and returns nil. The result is owned by
// the caller.
func ResolvePassphrase(value string) (*secret.Buffer, error) {
	if value == "" {
		return nil, nil
	}
	if name, ok := strings.CutPrefix(value, "env:"); ok && name != "" {
		env := os.Getenv(name)
		if env == "" {
			return nil, fmt.Errorf("environment variable %s is not set or empty", name)
		}
		return secret.NewFromBytes([]byte(env))
	}
	return secret.NewFromBytes([]byte(value))
}

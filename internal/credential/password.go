package credential

import (
	"errors"
	"fmt"
	"os"

	"inbox-unsubscriber/internal/models"
)

// ErrNoPassword is returned when an account has no usable password source
var ErrNoPassword = errors.New("no password configured")

// keyringGet is swapped out in tests
var keyringGet = Get

// PasswordEnv returns the environment variable consulted for the password of
// the account at position index in the configuration.
func PasswordEnv(index int) string {
	return fmt.Sprintf("UNSUBSCRIBER_PASSWORD_%d", index)
}

// ResolvePassword finds the password for an account. Inline configuration
// wins, then the environment, then the OS keyring.
func ResolvePassword(acct models.AccountConfig, index int) (string, error) {
	if acct.Password != "" {
		return acct.Password, nil
	}

	if v := os.Getenv(PasswordEnv(index)); v != "" {
		return v, nil
	}

	if acct.PasswordKeyring != "" {
		pw, err := keyringGet(acct.PasswordKeyring)
		if err != nil {
			return "", fmt.Errorf("password for %s: %w", acct.Email, err)
		}
		return pw, nil
	}

	return "", fmt.Errorf("%s: %w", acct.Email, ErrNoPassword)
}

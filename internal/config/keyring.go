package config

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringService = "sqlgate"

// KeyringAccount is the keyring account under which the password for c is
// stored.
func KeyringAccount(c Connection) string {
	return fmt.Sprintf("%s@%s:%d/%s", c.Username, c.Host, c.Port, c.Database)
}

// StorePassword saves the database password for c in the OS keyring.
func StorePassword(c Connection, password string) error {
	if err := keyring.Set(keyringService, KeyringAccount(c), password); err != nil {
		return fmt.Errorf("store password: %w", err)
	}
	return nil
}

// DeletePassword removes the stored password for c. A missing entry is not
// an error.
func DeletePassword(c Connection) error {
	err := keyring.Delete(keyringService, KeyringAccount(c))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete password: %w", err)
	}
	return nil
}

// LookupPassword returns the stored password for c, or "" if none is stored.
func LookupPassword(c Connection) (string, error) {
	pw, err := keyring.Get(keyringService, KeyringAccount(c))
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup password: %w", err)
	}
	return pw, nil
}

// ResolvePassword reads the password from the OS keyring when use_keyring is
// set and neither Password nor the DSN provides one. The keyring account is
// derived from Target, so call it once the DSN is final.
func (d *Database) ResolvePassword() error {
	if !d.UseKeyring || d.Password != "" {
		return nil
	}
	target := d.Target()
	if target.Password != "" {
		return nil
	}
	pw, err := LookupPassword(target)
	if err != nil {
		return fmt.Errorf("keyring: %w", err)
	}
	d.Password = pw
	return nil
}

// Package secrets keeps the service-account key for the remote service in the OS keychain.
package secrets

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"github.com/zalando/go-keyring"
)

const (
	// KeyringService groups ctsmirror's secrets in the OS keychain.
	KeyringService = "ctsmirror"
)

var ErrNoCredentials = errors.New("service-account credentials not found (set credentials_file or run `ctsmirror secrets set`)")

// Account is the keychain account name for a project's credentials.
func Account(base, projectID string) string {
	return fmt.Sprintf("%s:%s", base, projectID)
}

func GetCredentials(account string) ([]byte, error) {
	if strings.TrimSpace(account) == "" {
		return nil, ErrNoCredentials
	}
	v, err := keyring.Get(KeyringService, account)
	if errors.Is(err, keyring.ErrNotFound) || (err == nil && strings.TrimSpace(v) == "") {
		return nil, ErrNoCredentials
	}
	if err != nil {
		return nil, errors.Wrap(err, "read keychain")
	}
	return []byte(v), nil
}

// SetCredentials stores a service-account JSON key after checking it looks like one.
func SetCredentials(account string, keyJSON []byte) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if err := checkServiceAccount(keyJSON); err != nil {
		return err
	}
	return keyring.Set(KeyringService, account, string(keyJSON))
}

func SetCredentialsFile(account, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return SetCredentials(account, b)
}

func DeleteCredentials(account string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	err := keyring.Delete(KeyringService, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

func HasCredentials(account string) bool {
	_, err := GetCredentials(account)
	return err == nil
}

func checkServiceAccount(b []byte) error {
	var key struct {
		Type        string `json:"type"`
		ProjectID   string `json:"project_id"`
		ClientEmail string `json:"client_email"`
		PrivateKey  string `json:"private_key"`
	}
	if err := json.Unmarshal(b, &key); err != nil {
		return errors.Wrap(err, "credentials are not JSON")
	}
	if key.Type != "service_account" {
		return errors.Errorf("credentials type is %q, want service_account", key.Type)
	}
	if key.ClientEmail == "" || key.PrivateKey == "" {
		return errors.New("credentials are missing client_email or private_key")
	}
	return nil
}

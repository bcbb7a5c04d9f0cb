//go:build !darwin

package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// secrets maps service -> account -> value.
type secrets map[string]map[string]string

// secretsFilePath is the fallback secret store on platforms without a
// keychain. The file and its directory are private to the user.
func secretsFilePath() string {
	return filepath.Join(xdgDir("XDG_DATA_HOME", ".local", "share"), "docroute", "secrets.json")
}

func readSecrets(path string) (secrets, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s secrets
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.WithHintf(errors.Wrap(err, "parsing secrets file"), "fix or remove %s", path)
	}
	return s, nil
}

func keychainExec(service, account string) ([]byte, error) {
	s, err := readSecrets(secretsFilePath())
	if err != nil {
		return nil, errors.Wrap(err, "secret store not available")
	}
	val, ok := s[service][account]
	if !ok {
		return nil, errors.Newf("no secret %s/%s", service, account)
	}
	return []byte(val), nil
}

func keychainSet(service, account, value string) error {
	path := secretsFilePath()

	s, err := readSecrets(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s = secrets{}
	case err != nil:
		return err
	}
	if s == nil {
		s = secrets{}
	}
	if s[service] == nil {
		s[service] = map[string]string{}
	}
	s[service][account] = value

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(err, "creating secrets dir")
	}
	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding secrets")
	}
	return errors.Wrapf(os.WriteFile(path, out, 0o600), "writing %s", path)
}

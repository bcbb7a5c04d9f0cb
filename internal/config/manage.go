package config

import (
	"fmt"
	"strconv"

	"github.com/cockroachdb/errors"
)

// KeyInfo describes a config key for display purposes.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll returns all non-secret config key/value pairs from cfg. Secrets
// are listed with a masked value so the user can see whether one is set.
func ShowAll(cfg Config) []KeyInfo {
	var result []KeyInfo
	for _, s := range specs {
		value := fmt.Sprintf("%v", s.extract(cfg))
		if s.secret {
			value = maskSecret(value)
		}
		result = append(result, KeyInfo{
			Key:    s.key,
			EnvVar: s.env,
			Value:  value,
		})
	}
	return result
}

func maskSecret(v string) string {
	if v == "" {
		return "(not set)"
	}
	return "********"
}

// SetKey writes a config key to the platform backend.
func SetKey(key, value string) error {
	return setKey(newPlatformBackend(), key, value)
}

func setKey(b ConfigBackend, key, value string) error {
	s, ok := lookupSpec(key)
	if !ok {
		return errors.WithHintf(errors.Newf("unknown config key: %q", key), "valid keys: %v", ValidKeys())
	}
	if s.secret {
		return errors.WithHintf(
			errors.Newf("cannot set secret %q via config set", key),
			"use `docroute config set-secret %s` or the environment variable %s", key, s.env)
	}
	if _, err := parseValue(s.typ, value); err != nil {
		return errors.Wrapf(err, "invalid value for %s", key)
	}
	if s.typ == kInt {
		i, _ := strconv.Atoi(value)
		return b.SetInt(key, i)
	}
	return b.SetString(key, value)
}

// SetSecret stores a secret key in the platform secret store.
func SetSecret(key, value string) error {
	s, ok := lookupSpec(key)
	if !ok || !s.secret {
		return errors.Newf("%q is not a secret config key", key)
	}
	if value == "" {
		return errors.Newf("empty value for %s", key)
	}
	return keychainSet(secretService, secretAccount(key), value)
}

// ValidKeys returns the list of valid non-secret config key names.
func ValidKeys() []string {
	var keys []string
	for _, s := range specs {
		if !s.secret {
			keys = append(keys, s.key)
		}
	}
	return keys
}

// SecretKeys returns the list of secret config key names.
func SecretKeys() []string {
	var keys []string
	for _, s := range specs {
		if s.secret {
			keys = append(keys, s.key)
		}
	}
	return keys
}

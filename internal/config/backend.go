package config

// ConfigBackend abstracts platform-specific storage for non-secret keys:
// UserDefaults (via the `defaults` CLI) on macOS and an XDG JSON file
// elsewhere. Values that are not ints are stored as strings and parsed
// by the key's type on load.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	Delete(key string) error
}

package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

var ErrMissing = errors.New("secret not set")

type SecretStore interface {
	Get(key string) (string, error)
}

// EnvStore reads secrets from the process environment.
type EnvStore struct{}

func (EnvStore) Get(key string) (string, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", fmt.Errorf("%s: %w", key, ErrMissing)
	}
	return v, nil
}

// LoadDotEnv copies KEY=VALUE pairs from path into the environment. Variables that are already
// set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Require returns an error naming every key the store cannot resolve.
func Require(s SecretStore, keys ...string) error {
	var errs []error
	for _, k := range keys {
		if _, err := s.Get(k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

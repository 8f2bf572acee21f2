// Package env provides environment variable loading and typed access.
// It backs the database package's environment-driven configuration.
package env

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Load loads environment variables from .env files. A missing file is
// not an error; shipped defaults then apply.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	if err := godotenv.Load(paths...); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Get retrieves an environment variable, falling back to the default
// when unset.
func Get(key string, defaultValue ...string) string {
	value := os.Getenv(key)
	if value == "" && len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return value
}

// GetInt retrieves an environment variable as an integer.
func GetInt(key string, defaultValue ...int) int {
	value := os.Getenv(key)
	if value == "" {
		if len(defaultValue) > 0 {
			return defaultValue[0]
		}
		return 0
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		if len(defaultValue) > 0 {
			return defaultValue[0]
		}
		return 0
	}
	return n
}

// GetBool retrieves an environment variable as a boolean. Truthy values
// are "true", "1", "yes" and "on".
func GetBool(key string, defaultValue ...bool) bool {
	value := strings.ToLower(os.Getenv(key))
	switch value {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return false
}

// Has checks if an environment variable is set.
func Has(key string) bool {
	_, exists := os.LookupEnv(key)
	return exists
}

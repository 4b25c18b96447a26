package env

import "os"

// Get reads an environment variable, falling back when it is unset or empty.
// Empty values are treated as unset so blank lines in an env file do not
// clobber defaults.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

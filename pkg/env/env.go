// Package env reads process environment variables with defaults. Structured
// configuration goes through pkg/config; this exists for the handful of
// settings needed before config is loaded, like the logger format.
package env

import "os"

// Get returns the variable's value, or fallback when unset or empty.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

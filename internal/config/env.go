// Package config provides unified configuration utilities for the proxy.
// This eliminates duplicate getEnv functions across multiple packages.
package config

import "os"

// GetEnv returns the value of an environment variable or a default value.
// This is the canonical implementation - use this instead of local getEnv functions.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

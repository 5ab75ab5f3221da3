// Package appid holds the fixed identity of the fragstat binary.
package appid

import "strings"

// Identity names the binary, its config directory and environment prefix.
type Identity struct {
	BinaryName  string
	ConfigName  string
	EnvPrefix   string
	Description string
}

var identity = Identity{
	BinaryName:  "fragstat",
	ConfigName:  "fragstat",
	EnvPrefix:   "FRAGSTAT_",
	Description: "Esports statistics dashboard backend",
}

// Get returns the application identity.
func Get() Identity {
	return identity
}

// EnvVar returns the prefixed environment variable name for key.
func EnvVar(key string) string {
	return identity.EnvPrefix + strings.ToUpper(strings.TrimSpace(key))
}

// Package config parses and validates the server's startup configuration:
// the repository specifier grammar, flag/environment overrides, and the
// resulting validated Config passed to main's wiring.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/TilBlechschmidt/restic-dl/internal/backend"
)

// Config holds the fully validated startup configuration for the server
// subcommand.
type Config struct {
	Address          string
	SiteURL          *url.URL
	PasswordVerifier string
	SessionLifetime  time.Duration
	RestoreLifetime  time.Duration
	RestoreLocation  string
	KeepFullPaths    bool
	Repositories     []backend.Location
	MetricsEnabled   bool
	LogLevel         string
}

// Validate checks invariants that flag parsing alone cannot express:
// the site URL must be absolute, and the restore lifetime must be at
// least one day.
func (c *Config) Validate() error {
	if c.SiteURL == nil || c.SiteURL.Scheme == "" || c.SiteURL.Host == "" {
		return fmt.Errorf("config: --site-url must be an absolute URI with a scheme")
	}
	if c.RestoreLifetime < 24*time.Hour {
		return fmt.Errorf("config: --restore-lifetime-days must be >= 1")
	}
	return nil
}

// Secure reports whether cookies should carry the Secure flag, derived
// from the configured site URL's scheme.
func (c *Config) Secure() bool {
	return c.SiteURL != nil && c.SiteURL.Scheme == "https"
}

// ParseRepositories parses the `name::path::verifier` specifier grammar,
// with multiple entries separated by `|`. Each entry's three segments are
// split on the first two occurrences of `::`; a specifier yielding a
// fourth segment is a configuration error.
func ParseRepositories(spec string) ([]backend.Location, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, nil
	}

	var locations []backend.Location
	for _, entry := range strings.Split(spec, "|") {
		loc, err := parseRepositorySpecifier(entry)
		if err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}
	return locations, nil
}

func parseRepositorySpecifier(entry string) (backend.Location, error) {
	parts := strings.SplitN(entry, "::", 3)
	if len(parts) != 3 {
		return backend.Location{}, fmt.Errorf("config: repository specifier %q must have exactly three :: separated segments (name::path::verifier)", entry)
	}
	if strings.Contains(parts[2], "::") {
		return backend.Location{}, fmt.Errorf("config: repository specifier %q has a fourth segment", entry)
	}

	name, path, verifier := parts[0], parts[1], parts[2]
	if name == "" || path == "" || verifier == "" {
		return backend.Location{}, fmt.Errorf("config: repository specifier %q has an empty segment", entry)
	}
	if strings.Contains(name, "|") || strings.Contains(path, "|") {
		return backend.Location{}, fmt.Errorf("config: repository specifier %q: name/path may not contain '|'", entry)
	}

	return backend.Location{Name: name, Path: path, Verifier: verifier}, nil
}

// EnvOrDefault returns the value of the environment variable key, or
// defaultVal if it is unset or empty — the override mechanism behind
// every CLI flag.
func EnvOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

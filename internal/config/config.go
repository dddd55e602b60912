// Package config reads the small `.mlldrc` configuration layer: debug
// toggles, the strict/permissive resolution default, and the resolver-prefix
// allowlist an import directive may consult before handing a reference to
// the (out-of-scope) resolver. Grounded on the teacher's own config
// surface (yaml.v3-based), generalized from devcmd's CLI flags to mlld's
// run/check/show commands.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the parsed contents of a `.mlldrc` file.
type Config struct {
	// Strict selects strict variable resolution (an undefined reference
	// is an error) instead of permissive (it renders as ""). The CLI's
	// strict flag can turn it on.
	Strict bool `yaml:"strict"`
	// Debug selects the verbosity of the diagnostics emitter the CLI
	// hands to the interpreter (see diagnostics.Level).
	Debug string `yaml:"debug"`
	// AllowedResolverPrefixes restricts which `@org/name` import prefixes
	// the (external) resolver is permitted to fetch; empty means no
	// restriction is enforced by the core.
	AllowedResolverPrefixes []string `yaml:"resolverPrefixes"`
	// ProjectRoot is substituted for the `@.` path token (spec.md §4.3 path).
	ProjectRoot string `yaml:"projectRoot"`
}

// Default returns a Config with mlld's documented defaults: permissive
// resolution, basic diagnostics, no resolver restriction.
func Default() *Config {
	return &Config{
		Strict: false,
		Debug:  "basic",
	}
}

// Load reads and parses a `.mlldrc` file at path. A missing file is not an
// error — it returns Default().
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// AllowsPrefix reports whether the given import prefix (e.g. "@acme")
// is permitted. An empty allowlist permits everything.
func (c *Config) AllowsPrefix(prefix string) bool {
	if len(c.AllowedResolverPrefixes) == 0 {
		return true
	}
	for _, p := range c.AllowedResolverPrefixes {
		if p == prefix {
			return true
		}
	}
	return false
}

// Package config loads and validates lingual.json, the project manifest
// that names a project, pins its version, and selects where sources live
// and which target they compile to by default.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	semver "github.com/Masterminds/semver/v3"
)

// FileName is the manifest file Load looks for inside a project directory.
const FileName = "lingual.json"

// ToolName is the Requires key that constrains the compiler itself.
const ToolName = "lingual"

// Config is one project's manifest. Requires maps package names to semver
// constraint strings; the reserved key "lingual" constrains the tool version.
type Config struct {
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Description string            `json:"description,omitempty"`
	Target      string            `json:"target,omitempty"`
	SourceDir   string            `json:"source_dir,omitempty"`
	OutDir      string            `json:"out_dir,omitempty"`
	Registry    string            `json:"registry,omitempty"`
	Requires    map[string]string `json:"requires,omitempty"`
}

// Default returns the manifest `lingual init` writes for a fresh project.
func Default(name string) *Config {
	return &Config{
		Name:      name,
		Version:   "0.1.0",
		Target:    "javascript",
		SourceDir: "src",
		OutDir:    "dist",
	}
}

// Exists reports whether dir already carries a manifest.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, FileName))
	return err == nil
}

// Load reads dir/lingual.json, fills in defaults, applies LINGUAL_*
// environment overrides, and validates the result.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &cfg, nil
}

// Save writes the manifest to dir/lingual.json.
func (c *Config) Save(dir string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", FileName, err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(filepath.Join(dir, FileName), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", FileName, err)
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Target == "" {
		c.Target = "javascript"
	}
	if c.SourceDir == "" {
		c.SourceDir = "src"
	}
	if c.OutDir == "" {
		c.OutDir = "dist"
	}
}

// applyEnv lets the environment override per-invocation settings without
// editing the manifest: LINGUAL_TARGET, LINGUAL_OUT_DIR, LINGUAL_REGISTRY.
func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("LINGUAL_TARGET")); v != "" {
		c.Target = v
	}
	if v := strings.TrimSpace(os.Getenv("LINGUAL_OUT_DIR")); v != "" {
		c.OutDir = v
	}
	if v := strings.TrimSpace(os.Getenv("LINGUAL_REGISTRY")); v != "" {
		c.Registry = v
	}
}

// Validate checks the manifest shape: a name, a parseable semver version,
// and parseable constraints under requires. Target names are not checked
// here; the build commands resolve them against the registered emitters.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("project name is required")
	}

	if c.Version == "" {
		return fmt.Errorf("project version is required")
	}
	if _, err := semver.NewVersion(c.Version); err != nil {
		return fmt.Errorf("version %q: %w", c.Version, err)
	}

	for name, constraint := range c.Requires {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("requires: empty package name")
		}
		if _, err := semver.NewConstraint(constraint); err != nil {
			return fmt.Errorf("requires %s %q: %w", name, constraint, err)
		}
	}

	return nil
}

// SemVersion returns the parsed project version. Call after Validate.
func (c *Config) SemVersion() (*semver.Version, error) {
	return semver.NewVersion(c.Version)
}

// ToolConstraint returns the constraint the project places on the lingual
// tool itself, or nil when the manifest does not pin one.
func (c *Config) ToolConstraint() (*semver.Constraints, error) {
	expr, ok := c.Requires[ToolName]
	if !ok {
		return nil, nil
	}

	return semver.NewConstraint(expr)
}

// CheckTool reports whether toolVersion satisfies Requires["lingual"].
// A manifest without a tool constraint accepts every version.
func (c *Config) CheckTool(toolVersion string) (bool, error) {
	con, err := c.ToolConstraint()
	if err != nil {
		return false, err
	}
	if con == nil {
		return true, nil
	}

	v, err := semver.NewVersion(toolVersion)
	if err != nil {
		return false, fmt.Errorf("tool version %q: %w", toolVersion, err)
	}

	return con.Check(v), nil
}

// Dependencies returns the requires entries minus the tool constraint,
// sorted order left to callers.
func (c *Config) Dependencies() map[string]string {
	out := make(map[string]string, len(c.Requires))
	for name, constraint := range c.Requires {
		if name == ToolName {
			continue
		}
		out[name] = constraint
	}

	return out
}

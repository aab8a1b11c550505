// Package config loads and saves the global configuration (config.yaml) and
// the dependency lists (agents.yaml) at global and project scope.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jingkaihe/agentdeps/pkg/cache"
	"github.com/jingkaihe/agentdeps/pkg/install"
	"github.com/jingkaihe/agentdeps/pkg/registry"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment variables overriding global config keys,
// e.g. AGENTDEPS_INSTALL_METHOD
const EnvPrefix = "AGENTDEPS"

const (
	DefaultGitTimeout    = 5 * time.Minute
	DefaultFetchAttempts = 2
	DefaultConcurrency   = 4
)

// ErrNotFound is returned when the global config file does not exist
var ErrNotFound = errors.New("global config not found")

// ValidationError describes an invalid configuration value
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// TracingConfig controls span export
type TracingConfig struct {
	Enabled bool    `mapstructure:"enabled" yaml:"enabled,omitempty"`
	Sampler string  `mapstructure:"sampler" yaml:"sampler,omitempty"`
	Ratio   float64 `mapstructure:"ratio" yaml:"ratio,omitempty"`
}

// GlobalConfig holds user preferences shared by every project
type GlobalConfig struct {
	CloneMethod   cache.CloneMethod               `mapstructure:"clone_method"`
	Agents        []string                        `mapstructure:"agents"`
	InstallMethod install.Method                  `mapstructure:"install_method"`
	CustomAgents  map[string]registry.CustomAgent `mapstructure:"-"`
	GitTimeout    time.Duration                   `mapstructure:"git_timeout"`
	FetchAttempts uint                            `mapstructure:"fetch_attempts"`
	Concurrency   int                             `mapstructure:"concurrency"`
	Tracing       TracingConfig                   `mapstructure:"tracing"`
}

// DefaultGlobal returns the configuration used for keys absent from the file
func DefaultGlobal() GlobalConfig {
	return GlobalConfig{
		CloneMethod:   cache.CloneMethodSSH,
		Agents:        []string{},
		InstallMethod: install.MethodLink,
		GitTimeout:    DefaultGitTimeout,
		FetchAttempts: DefaultFetchAttempts,
		Concurrency:   DefaultConcurrency,
		Tracing:       TracingConfig{Sampler: "always", Ratio: 1},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultGlobal()
	v.SetDefault("clone_method", string(d.CloneMethod))
	v.SetDefault("agents", d.Agents)
	v.SetDefault("install_method", string(d.InstallMethod))
	v.SetDefault("git_timeout", d.GitTimeout)
	v.SetDefault("fetch_attempts", d.FetchAttempts)
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.sampler", d.Tracing.Sampler)
	v.SetDefault("tracing.ratio", d.Tracing.Ratio)
}

// GlobalExists reports whether a global config file exists at path
func GlobalExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// LoadGlobal reads and validates the global config at path. Environment
// variables prefixed with AGENTDEPS_ override file values. A missing file
// yields ErrNotFound.
func LoadGlobal(path string) (*GlobalConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrapf(ErrNotFound, "%s", path)
		}
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}

	var cfg GlobalConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal configuration")
	}

	customAgents, err := decodeCustomAgents(v.Get("custom_agents"))
	if err != nil {
		return nil, err
	}
	cfg.CustomAgents = customAgents

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// decodeCustomAgents decodes the custom_agents table, rejecting unknown keys
// so that typos in path names are reported instead of ignored
func decodeCustomAgents(raw interface{}) (map[string]registry.CustomAgent, error) {
	if raw == nil {
		return nil, nil
	}

	var out map[string]registry.CustomAgent
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &out,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create custom_agents decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, &ValidationError{Field: "custom_agents", Message: err.Error()}
	}
	return out, nil
}

// Validate checks every field, returning a *ValidationError for the first
// invalid one
func (c *GlobalConfig) Validate() error {
	switch c.CloneMethod {
	case cache.CloneMethodSSH, cache.CloneMethodHTTPS:
	default:
		return &ValidationError{Field: "clone_method", Message: fmt.Sprintf("%q, must be \"ssh\" or \"https\"", c.CloneMethod)}
	}

	if !c.InstallMethod.Valid() {
		return &ValidationError{Field: "install_method", Message: fmt.Sprintf("%q, must be \"link\" or \"copy\"", c.InstallMethod)}
	}

	names := make([]string, 0, len(c.CustomAgents))
	for name := range c.CustomAgents {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if name == "" {
			return &ValidationError{Field: "custom_agents", Message: "agent name must not be empty"}
		}
		def := c.CustomAgents[name]
		for key, value := range map[string]string{
			"project_skills": def.ProjectSkills,
			"project_agents": def.ProjectAgents,
			"global_skills":  def.GlobalSkills,
			"global_agents":  def.GlobalAgents,
		} {
			if strings.TrimSpace(value) == "" {
				return &ValidationError{Field: "custom_agents." + name, Message: key + " is required"}
			}
		}
	}

	if c.GitTimeout < 0 {
		return &ValidationError{Field: "git_timeout", Message: "must not be negative"}
	}
	if c.FetchAttempts < 1 {
		return &ValidationError{Field: "fetch_attempts", Message: "must be at least 1"}
	}
	if c.Concurrency < 1 {
		return &ValidationError{Field: "concurrency", Message: "must be at least 1"}
	}

	switch c.Tracing.Sampler {
	case "", "always", "never", "ratio":
	default:
		return &ValidationError{Field: "tracing.sampler", Message: fmt.Sprintf("%q, must be \"always\", \"never\" or \"ratio\"", c.Tracing.Sampler)}
	}
	if c.Tracing.Ratio < 0 || c.Tracing.Ratio > 1 {
		return &ValidationError{Field: "tracing.ratio", Message: "must be between 0 and 1"}
	}

	return nil
}

// Catalog returns the built-in agent catalog with the configured custom agents applied
func (c *GlobalConfig) Catalog() registry.Catalog {
	return registry.BuiltIn().WithOverrides(c.CustomAgents)
}

// globalFile is the on-disk layout of GlobalConfig. Keys equal to their
// default are omitted so the file stays short.
type globalFile struct {
	CloneMethod   string                          `yaml:"clone_method"`
	Agents        []string                        `yaml:"agents"`
	InstallMethod string                          `yaml:"install_method"`
	CustomAgents  map[string]registry.CustomAgent `yaml:"custom_agents,omitempty"`
	GitTimeout    string                          `yaml:"git_timeout,omitempty"`
	FetchAttempts uint                            `yaml:"fetch_attempts,omitempty"`
	Concurrency   int                             `yaml:"concurrency,omitempty"`
	Tracing       *TracingConfig                  `yaml:"tracing,omitempty"`
}

// SaveGlobal validates cfg and writes it to path, creating parent directories
func SaveGlobal(path string, cfg *GlobalConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	d := DefaultGlobal()
	out := globalFile{
		CloneMethod:   string(cfg.CloneMethod),
		Agents:        cfg.Agents,
		InstallMethod: string(cfg.InstallMethod),
		CustomAgents:  cfg.CustomAgents,
	}
	if out.Agents == nil {
		out.Agents = []string{}
	}
	if cfg.GitTimeout != d.GitTimeout {
		out.GitTimeout = cfg.GitTimeout.String()
	}
	if cfg.FetchAttempts != d.FetchAttempts {
		out.FetchAttempts = cfg.FetchAttempts
	}
	if cfg.Concurrency != d.Concurrency {
		out.Concurrency = cfg.Concurrency
	}
	if cfg.Tracing != d.Tracing {
		tracing := cfg.Tracing
		out.Tracing = &tracing
	}

	var doc yaml.Node
	if err := doc.Encode(out); err != nil {
		return errors.Wrap(err, "failed to marshal configuration")
	}
	keepForeignKeys(path, &doc)

	data, err := marshalYAML(&doc)
	if err != nil {
		return errors.Wrap(err, "failed to marshal configuration")
	}
	return writeFile(path, data)
}

// globalKeys are the top-level keys SaveGlobal owns
var globalKeys = map[string]bool{
	"clone_method":   true,
	"agents":         true,
	"install_method": true,
	"custom_agents":  true,
	"git_timeout":    true,
	"fetch_attempts": true,
	"concurrency":    true,
	"tracing":        true,
}

// keepForeignKeys appends to mapping the top-level keys of the existing file
// at path that SaveGlobal does not own. An unreadable file contributes
// nothing.
func keepForeignKeys(path string, mapping *yaml.Node) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var existing yaml.Node
	if err := yaml.Unmarshal(data, &existing); err != nil || len(existing.Content) == 0 {
		return
	}
	root := existing.Content[0]
	if root.Kind != yaml.MappingNode || mapping.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if globalKeys[root.Content[i].Value] {
			continue
		}
		mapping.Content = append(mapping.Content, root.Content[i], root.Content[i+1])
	}
}

func marshalYAML(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return nil, err
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", filepath.Dir(path))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

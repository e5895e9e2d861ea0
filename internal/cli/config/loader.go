package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// configKey is used to store config in context.
type configKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// EnvPrefix prefixes every environment variable the loader reads.
// A double underscore separates nested keys: DATARADE_CATALOG__BRANCH.
const EnvPrefix = "DATARADE_"

var configNames = []string{"datarade.yaml", "datarade.yml"}

// flagKeys maps flag names onto config keys where the two differ.
var flagKeys = map[string]string{
	"state":       "state_path",
	"staging-dir": "staging_dir",
	"log-level":   "log_level",
}

// pathFlags are resolved against the working directory rather than the project root.
var pathFlags = []string{"state", "staging-dir"}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

var configFileUsed string

// configIn returns the config file in dir, if any.
func configIn(dir string) string {
	for _, name := range configNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findConfigUpward searches upward from startDir for a datarade config file.
func findConfigUpward(startDir string) string {
	dir := startDir
	for range maxUpwardSearchLevels {
		if f := configIn(dir); f != "" {
			return f
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) || path == ":memory:" {
		return path
	}
	return filepath.Join(baseDir, path)
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
// Relative paths from the file or defaults resolve against the directory
// holding the config file, or the working directory when there is none.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	if cfgFile == "" {
		cfgFile = findConfigUpward(cwd)
	} else if _, err := os.Stat(cfgFile); err != nil {
		return nil, fmt.Errorf("config file %s: %w", cfgFile, err)
	}
	configFileUsed = cfgFile

	projectRoot := cwd
	if cfgFile != "" {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			projectRoot = filepath.Dir(abs)
		}
	}

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]any{
		"catalog.platform":       DefaultPlatform,
		"catalog.repository_url": ".",
		"state_path":             DefaultStateFile,
		"staging_dir":            DefaultStagingDir,
		"log_level":              DefaultLogLevel,
		"verbose":                false,
		"output":                 DefaultOutput,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	// 3. Environment: DATARADE_CATALOG__BRANCH -> catalog.branch
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags, only those explicitly set
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			if key, ok := flagKeys[f.Name]; ok {
				return key, posflag.FlagVal(flags, f)
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ProjectRoot = projectRoot

	cfg.StatePath = resolvePathRelativeTo(cfg.StatePath, projectRoot)
	cfg.StagingDir = resolvePathRelativeTo(cfg.StagingDir, projectRoot)
	if flags != nil {
		for _, name := range pathFlags {
			if !flags.Changed(name) {
				continue
			}
			v, _ := flags.GetString(name)
			if v != "" {
				v, _ = filepath.Abs(v)
			}
			switch name {
			case "state":
				cfg.StatePath = v
			case "staging-dir":
				cfg.StagingDir = v
			}
		}
	}
	if cfg.Catalog.Platform == DefaultPlatform {
		cfg.Catalog.RepositoryURL = resolvePathRelativeTo(cfg.Catalog.RepositoryURL, projectRoot)
	}

	expandSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// LoggerKey returns the context key used for storing the logger.
func LoggerKey() any {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// WithConfig returns ctx carrying cfg.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// GetConfig retrieves the config from the command context.
// It returns nil when none was stored.
func GetConfig(ctx context.Context) *Config {
	cfg, _ := ctx.Value(configKey{}).(*Config)
	return cfg
}

// expandEnvVars expands ${VAR} patterns with environment variable values.
// Unset variables are left as written.
func expandEnvVars(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})
}

func expandSecrets(cfg *Config) {
	cfg.Catalog.Username = expandEnvVars(cfg.Catalog.Username)
	cfg.Catalog.Password = expandEnvVars(cfg.Catalog.Password)
	for user, pw := range cfg.Credentials {
		cfg.Credentials[user] = expandEnvVars(pw)
	}
	for id, c := range cfg.Containers {
		c.Host = expandEnvVars(c.Host)
		c.Username = expandEnvVars(c.Username)
		c.Password = expandEnvVars(c.Password)
		cfg.Containers[id] = c
	}
}

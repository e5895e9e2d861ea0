// Package config loads the datarade CLI configuration.
//
// Values are merged from defaults, a datarade.yaml file, DATARADE_ environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"cmp"
	"log/slog"
	"maps"
	"slices"

	"github.com/leapstack-labs/datarade/internal/catalog"
	"github.com/leapstack-labs/datarade/internal/transfer"
	"github.com/leapstack-labs/datarade/pkg/core"
)

// Default configuration values.
const (
	DefaultStateFile  = ".datarade/state.db"
	DefaultStagingDir = ".datarade/staging"
	DefaultPlatform   = "local"
	DefaultLogLevel   = "info"
	DefaultOutput     = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)

// Config holds all CLI configuration options.
type Config struct {
	Catalog      CatalogConfig              `koanf:"catalog"`
	StatePath    string                     `koanf:"state_path"`
	StagingDir   string                     `koanf:"staging_dir"`
	LogLevel     string                     `koanf:"log_level"`
	Verbose      bool                       `koanf:"verbose"`
	OutputFormat string                     `koanf:"output"`
	Credentials  map[string]string          `koanf:"credentials"`
	Containers   map[string]ContainerConfig `koanf:"containers"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// CatalogConfig locates the dataset catalog.
type CatalogConfig struct {
	Platform      string  `koanf:"platform"`
	RepositoryURL string  `koanf:"repository_url"`
	APIURL        string  `koanf:"api_url"`
	Organization  string  `koanf:"organization"`
	Project       string  `koanf:"project"`
	Repository    string  `koanf:"repository"`
	Branch        string  `koanf:"branch"`
	Path          string  `koanf:"path"`
	Username      string  `koanf:"username"`
	Password      string  `koanf:"password"`
	RateLimit     float64 `koanf:"rate_limit"`
}

// ContainerConfig is a container registered at startup. Schema falls back
// to SchemaName.
type ContainerConfig struct {
	Driver       string `koanf:"driver"`
	Host         string `koanf:"host"`
	Port         int    `koanf:"port"`
	DatabaseName string `koanf:"database_name"`
	SchemaName   string `koanf:"schema_name"`
	Schema       string `koanf:"schema"`
	Username     string `koanf:"username"`
	Password     string `koanf:"password"`
}

// Source returns the catalog coordinates.
func (c *Config) Source(logger *slog.Logger) catalog.Source {
	return catalog.Source{
		Platform:      catalog.Platform(c.Catalog.Platform),
		RepositoryURL: c.Catalog.RepositoryURL,
		APIURL:        c.Catalog.APIURL,
		Organization:  c.Catalog.Organization,
		Project:       c.Catalog.Project,
		Repository:    c.Catalog.Repository,
		Branch:        c.Catalog.Branch,
		Path:          c.Catalog.Path,
		Username:      c.Catalog.Username,
		Password:      c.Catalog.Password,
		RateLimit:     c.Catalog.RateLimit,
		Logger:        logger,
	}
}

// ContainerSpecs returns the configured containers ordered by id.
func (c *Config) ContainerSpecs() []core.ContainerSpec {
	ids := slices.Sorted(maps.Keys(c.Containers))
	specs := make([]core.ContainerSpec, 0, len(ids))
	for _, id := range ids {
		cc := c.Containers[id]
		spec := core.ContainerSpec{
			ID: id,
			Database: core.Database{
				Driver:       cc.Driver,
				Host:         cc.Host,
				Port:         cc.Port,
				DatabaseName: cc.DatabaseName,
				SchemaName:   cc.SchemaName,
			},
			Schema: cmp.Or(cc.Schema, cc.SchemaName),
		}
		if cc.Username != "" {
			spec.User = &core.User{Username: cc.Username}
		}
		specs = append(specs, spec)
	}
	return specs
}

// TransferCredentials returns the passwords the pipeline connects with.
func (c *Config) TransferCredentials() transfer.StaticCredentials {
	creds := transfer.StaticCredentials{
		Users:      maps.Clone(c.Credentials),
		Containers: make(map[string]string),
	}
	for id, cc := range c.Containers {
		if cc.Password != "" {
			creds.Containers[id] = cc.Password
		}
	}
	return creds
}

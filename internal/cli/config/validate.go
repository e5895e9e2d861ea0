package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/datarade/internal/catalog"
	"github.com/leapstack-labs/datarade/pkg/core"
)

var validOutputs = []string{"auto", "text", "markdown", "json"}

// Validate checks the loaded values that can be checked without I/O.
// Every problem is reported, joined into one error.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(field, msg string) {
		errs = append(errs, &core.ValidationError{Source: "config", Field: field, Message: msg})
	}

	switch catalog.Platform(strings.ToLower(c.Catalog.Platform)) {
	case catalog.PlatformLocal, catalog.PlatformGitHub, catalog.PlatformAzureDevOps, catalog.PlatformMemory:
	default:
		invalid("catalog.platform", fmt.Sprintf("unknown platform %q", c.Catalog.Platform))
	}
	if c.Catalog.RateLimit < 0 {
		invalid("catalog.rate_limit", "must not be negative")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		invalid("log_level", err.Error())
	}
	if !containsFold(validOutputs, c.OutputFormat) {
		invalid("output", "must be one of "+strings.Join(validOutputs, ", "))
	}
	for _, spec := range c.ContainerSpecs() {
		if spec.Database.DriverName() == "" {
			invalid("containers."+spec.ID+".driver", "required")
		}
		if spec.Database.Port < 0 {
			invalid("containers."+spec.ID+".port", "must not be negative")
		}
	}
	return errors.Join(errs...)
}

// ParseLevel parses a slog level name such as "debug" or "warn".
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}

// NewLogger builds the CLI logger. Verbose forces debug level.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := ParseLevel(c.LogLevel)
	if c.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

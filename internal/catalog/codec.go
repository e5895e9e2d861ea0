package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/leapstack-labs/datarade/pkg/core"
	"gopkg.in/yaml.v3"
)

// Artifact names inside a dataset directory.
const (
	ConfigFile     = "config.yaml"
	DefinitionFile = "definition.sql"
)

// datasetConfigYAML is the on-disk form of config.yaml.
// Unknown fields cause decode errors.
type datasetConfigYAML struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description,omitempty"`
	Fields      []fieldYAML   `yaml:"fields"`
	Database    *databaseYAML `yaml:"database,omitempty"`
	User        *userYAML     `yaml:"user,omitempty"`
}

type fieldYAML struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description,omitempty"`
}

type databaseYAML struct {
	Driver       string `yaml:"driver"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port,omitempty"`
	DatabaseName string `yaml:"database_name"`
	SchemaName   string `yaml:"schema_name,omitempty"`
}

type userYAML struct {
	Username string `yaml:"username"`
}

// DecodeConfig parses config.yaml into a dataset spec without the
// definition. source names the artifact in error messages.
func DecodeConfig(source string, data []byte) (core.DatasetSpec, error) {
	var raw datasetConfigYAML
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return core.DatasetSpec{}, &core.ValidationError{Source: source, Message: "empty config"}
		}
		return core.DatasetSpec{}, &core.ValidationError{Source: source, Message: fmt.Sprintf("invalid YAML: %v", err)}
	}

	if strings.TrimSpace(raw.Name) == "" {
		return core.DatasetSpec{}, &core.ValidationError{Source: source, Field: "name", Message: "required"}
	}

	spec := core.DatasetSpec{
		Name:        raw.Name,
		Description: raw.Description,
		Fields:      make([]core.Field, 0, len(raw.Fields)),
	}
	for i, f := range raw.Fields {
		if strings.TrimSpace(f.Name) == "" {
			return core.DatasetSpec{}, &core.ValidationError{
				Source: source, Field: fmt.Sprintf("fields[%d].name", i), Message: "required",
			}
		}
		if f.Type == "" {
			return core.DatasetSpec{}, &core.ValidationError{
				Source: source, Field: fmt.Sprintf("fields[%d].type", i), Message: "required",
			}
		}
		spec.Fields = append(spec.Fields, core.Field{
			Name:        f.Name,
			Type:        core.FieldType(f.Type),
			Description: f.Description,
		})
	}

	if raw.Database != nil {
		if raw.Database.Driver == "" {
			return core.DatasetSpec{}, &core.ValidationError{Source: source, Field: "database.driver", Message: "required"}
		}
		spec.Database = &core.Database{
			Driver:       raw.Database.Driver,
			Host:         raw.Database.Host,
			Port:         raw.Database.Port,
			DatabaseName: raw.Database.DatabaseName,
			SchemaName:   raw.Database.SchemaName,
		}
	}
	if raw.User != nil {
		spec.User = &core.User{Username: raw.User.Username}
	}
	return spec, nil
}

// EncodeConfig renders the config.yaml for spec. The definition is not part
// of the config.
func EncodeConfig(spec core.DatasetSpec) ([]byte, error) {
	raw := datasetConfigYAML{
		Name:        spec.Name,
		Description: spec.Description,
		Fields:      make([]fieldYAML, len(spec.Fields)),
	}
	for i, f := range spec.Fields {
		raw.Fields[i] = fieldYAML{Name: f.Name, Type: string(f.Type), Description: f.Description}
	}
	if db := spec.Database; db != nil {
		raw.Database = &databaseYAML{
			Driver:       db.Driver,
			Host:         db.Host,
			Port:         db.Port,
			DatabaseName: db.DatabaseName,
			SchemaName:   db.SchemaName,
		}
	}
	if spec.User != nil {
		raw.User = &userYAML{Username: spec.User.Username}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(raw); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// ValidateSpec checks the attributes a new catalog entry needs.
func ValidateSpec(spec core.DatasetSpec) error {
	if strings.TrimSpace(spec.Name) == "" {
		return &core.ValidationError{Field: "name", Message: "required"}
	}
	if strings.ContainsAny(spec.Name, `/\`) || spec.Name == "." || spec.Name == ".." {
		return &core.ValidationError{Field: "name", Message: fmt.Sprintf("%q is not a valid dataset name", spec.Name)}
	}
	if strings.TrimSpace(spec.Definition) == "" {
		return &core.ValidationError{Field: "definition", Message: "required"}
	}
	if len(spec.Fields) == 0 {
		return &core.ValidationError{Field: "fields", Message: "at least one field is required"}
	}
	for i, f := range spec.Fields {
		if strings.TrimSpace(f.Name) == "" {
			return &core.ValidationError{Field: fmt.Sprintf("fields[%d].name", i), Message: "required"}
		}
	}
	return nil
}

package core

import (
	"slices"
	"strings"
)

// FieldType is the semantic type of a dataset field.
// Values are kept as written in the catalog; unknown values are only
// rejected when a table is created from them.
type FieldType string

// Recognized field types.
const (
	FieldBoolean  FieldType = "Boolean"
	FieldDate     FieldType = "Date"
	FieldDateTime FieldType = "DateTime"
	FieldFloat    FieldType = "Float"
	FieldInteger  FieldType = "Integer"
	FieldNumeric  FieldType = "Numeric"
	FieldString   FieldType = "String"
	FieldText     FieldType = "Text"
	FieldTime     FieldType = "Time"
)

// FieldTypes lists every recognized field type.
var FieldTypes = []FieldType{
	FieldBoolean, FieldDate, FieldDateTime, FieldFloat, FieldInteger,
	FieldNumeric, FieldString, FieldText, FieldTime,
}

// Valid reports whether t is a recognized field type.
func (t FieldType) Valid() bool {
	return slices.Contains(FieldTypes, t)
}

// Field represents a column in the dataset.
type Field struct {
	Name        string
	Type        FieldType
	Description string
}

// Database describes a connection endpoint.
type Database struct {
	Driver       string
	Host         string
	Port         int
	DatabaseName string
	SchemaName   string
}

// DriverName returns the adapter name for the driver id.
// Driver ids such as "mssql+pymssql" resolve on the part before the "+".
func (d Database) DriverName() string {
	name, _, _ := strings.Cut(d.Driver, "+")
	return strings.ToLower(strings.TrimSpace(name))
}

// AdapterConfig builds the adapter configuration for this endpoint.
func (d Database) AdapterConfig(username, password string) AdapterConfig {
	return AdapterConfig{
		Type:     d.DriverName(),
		Path:     d.DatabaseName,
		Host:     d.Host,
		Port:     d.Port,
		Database: d.DatabaseName,
		Schema:   d.SchemaName,
		Username: username,
		Password: password,
	}
}

// User scopes a connection to a named login. The password is never part of
// the catalog; it is looked up at connect time.
type User struct {
	Username string
}

// DatasetSpec carries the attributes a Dataset is built from.
type DatasetSpec struct {
	Name        string
	Definition  string
	Description string
	Fields      []Field
	Database    *Database
	User        *User
}

// Dataset is a named, typed query definition plus its source connection.
// It is immutable once built; only its event log grows.
type Dataset struct {
	EventLog

	name        string
	definition  string
	description string
	fields      []Field
	database    *Database
	user        *User
}

// NewDataset builds a Dataset. The field order of spec is preserved.
func NewDataset(spec DatasetSpec) *Dataset {
	ds := &Dataset{
		name:        spec.Name,
		definition:  spec.Definition,
		description: spec.Description,
		fields:      slices.Clone(spec.Fields),
	}
	if spec.Database != nil {
		db := *spec.Database
		ds.database = &db
	}
	if spec.User != nil {
		u := *spec.User
		ds.user = &u
	}
	return ds
}

// Name returns the dataset name.
func (d *Dataset) Name() string { return d.name }

// Definition returns the query text.
func (d *Dataset) Definition() string { return d.definition }

// Description returns the free-form description.
func (d *Dataset) Description() string { return d.description }

// Fields returns a copy of the ordered field list.
func (d *Dataset) Fields() []Field { return slices.Clone(d.fields) }

// Database returns the source database, or nil when the catalog entry has none.
func (d *Dataset) Database() *Database {
	if d.database == nil {
		return nil
	}
	db := *d.database
	return &db
}

// User returns the source login, or nil.
func (d *Dataset) User() *User {
	if d.user == nil {
		return nil
	}
	u := *d.user
	return &u
}

// ColumnNames returns the field names in order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.fields))
	for i, f := range d.fields {
		names[i] = f.Name
	}
	return names
}

// Spec returns the attributes of the dataset.
func (d *Dataset) Spec() DatasetSpec {
	return DatasetSpec{
		Name:        d.name,
		Definition:  d.definition,
		Description: d.description,
		Fields:      d.Fields(),
		Database:    d.Database(),
		User:        d.User(),
	}
}

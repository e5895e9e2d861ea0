package core

// ContainerSpec carries the attributes of a registration.
type ContainerSpec struct {
	ID       string
	Database Database
	Schema   string
	User     *User
}

// DatasetContainer is a registered refresh target: a database, a schema in
// it, and the login used to reach it.
type DatasetContainer struct {
	EventLog

	id       string
	database Database
	schema   string
	user     *User
}

// NewDatasetContainer builds a container. When spec.Schema is empty the
// database's schema name is used.
func NewDatasetContainer(spec ContainerSpec) *DatasetContainer {
	schema := spec.Schema
	if schema == "" {
		schema = spec.Database.SchemaName
	}
	c := &DatasetContainer{
		id:       spec.ID,
		database: spec.Database,
		schema:   schema,
	}
	if spec.User != nil {
		u := *spec.User
		c.user = &u
	}
	return c
}

// ID returns the registered id.
func (c *DatasetContainer) ID() string { return c.id }

// Database returns the target endpoint.
func (c *DatasetContainer) Database() Database { return c.database }

// Schema returns the target schema, possibly empty.
func (c *DatasetContainer) Schema() string { return c.schema }

// User returns the target login, or nil.
func (c *DatasetContainer) User() *User {
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

// Connection returns the adapter configuration for the target; it is the
// container's connection handle.
func (c *DatasetContainer) Connection(password string) AdapterConfig {
	username := ""
	if c.user != nil {
		username = c.user.Username
	}
	cfg := c.database.AdapterConfig(username, password)
	cfg.Schema = c.schema
	return cfg
}

// Table returns a reference to a table inside this container.
func (c *DatasetContainer) Table(name string) TableRef {
	return TableRef{
		Database: c.database.DatabaseName,
		Schema:   c.schema,
		Name:     name,
	}
}

// Spec returns the attributes of the container.
func (c *DatasetContainer) Spec() ContainerSpec {
	return ContainerSpec{
		ID:       c.id,
		Database: c.database,
		Schema:   c.schema,
		User:     c.User(),
	}
}

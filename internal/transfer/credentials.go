package transfer

import "github.com/leapstack-labs/datarade/pkg/core"

// Credentials supplies passwords at connect time. Catalog entries only ever
// name a login.
type Credentials interface {
	// SourcePassword returns the password for the dataset's login.
	SourcePassword(user *core.User) string

	// ContainerPassword returns the password for the container's login.
	ContainerPassword(c *core.DatasetContainer) string
}

// StaticCredentials serves passwords from configuration.
type StaticCredentials struct {
	// Users maps a username to its password.
	Users map[string]string

	// Containers maps a container id to its password. It takes precedence
	// over Users for container logins.
	Containers map[string]string
}

// SourcePassword implements Credentials.
func (s StaticCredentials) SourcePassword(user *core.User) string {
	if user == nil {
		return ""
	}
	return s.Users[user.Username]
}

// ContainerPassword implements Credentials.
func (s StaticCredentials) ContainerPassword(c *core.DatasetContainer) string {
	if pw, ok := s.Containers[c.ID()]; ok {
		return pw
	}
	return s.SourcePassword(c.User())
}

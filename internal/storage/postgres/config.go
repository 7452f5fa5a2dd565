package postgres

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
)

// Config carries the connection settings for the PostgreSQL backend. The
// storage factory fills it from environment configuration, so every field
// arrives as a plain value rather than a packed DSN.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string
}

// Validate checks the required fields and fills in defaults for the rest.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("PostgreSQL host is required")
	}
	if c.Database == "" {
		return fmt.Errorf("PostgreSQL database name is required")
	}
	if c.Username == "" {
		return fmt.Errorf("PostgreSQL username is required")
	}

	if c.Port <= 0 {
		c.Port = 5432
	}
	if c.SSLMode == "" {
		c.SSLMode = "prefer"
	}

	return nil
}

func (c *Config) GetType() string {
	return "postgres"
}

// GetConnectionString renders the settings as a postgres:// URL for the
// pgx driver. Going through net/url escapes credentials that contain URL
// metacharacters.
func (c *Config) GetConnectionString() string {
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}

	if c.Password != "" {
		u.User = url.UserPassword(c.Username, c.Password)
	} else {
		u.User = url.User(c.Username)
	}

	return u.String()
}

package sqlite

import "fmt"

// Config holds the settings for the SQLite backend. Only the database
// path varies; the DSN options are fixed.
type Config struct {
	DatabasePath string
}

func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database path is required")
	}
	return nil
}

func (c *Config) GetType() string {
	return "sqlite"
}

// GetConnectionString appends the driver options to the database path.
// WAL mode and a busy timeout keep concurrent delivery writes from
// failing with SQLITE_BUSY.
func (c *Config) GetConnectionString() string {
	return c.DatabasePath + "?_journal_mode=WAL&_busy_timeout=5000"
}

package signature

// Config holds verification settings.
type Config struct {
	// AllowedSources lists the caller addresses permitted to deliver
	// webhooks. Matching is exact, byte for byte; there is no CIDR or
	// wildcard support. An empty list disables source filtering.
	AllowedSources []string `json:"allowed_sources"`
}

// DefaultConfig returns a configuration with source filtering disabled.
func DefaultConfig() *Config {
	return &Config{}
}

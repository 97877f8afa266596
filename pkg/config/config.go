package config

// Config is the fully loaded, validated configuration for one hub process:
// the three registries built from mcp_server.json, group.json, and
// api-tools.json, plus the directory they were loaded from.
type Config struct {
	configDir string

	ServerRegistry  *ServerRegistry
	GroupRegistry   *GroupRegistry
	APIToolRegistry *APIToolRegistry

	// Warnings accumulates non-fatal findings surfaced during load:
	// dropped group server/tool references, fallback-group demotions,
	// unresolved {{env.NAME}} placeholders. Fatal problems are returned
	// as errors instead and never appear here.
	Warnings []string
}

// ConfigDir returns the directory this configuration was loaded from.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// Stats summarises a loaded configuration for startup logging.
type Stats struct {
	Servers  int
	Groups   int
	APITools int
}

// Stats computes summary counts over the loaded registries.
func (c *Config) Stats() Stats {
	return Stats{
		Servers:  len(c.ServerRegistry.GetAll()),
		Groups:   len(c.GroupRegistry.GetAll()),
		APITools: len(c.APIToolRegistry.GetAll()),
	}
}

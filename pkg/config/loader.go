package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const (
	serverConfigFile = "mcp_server.json"
	groupConfigFile  = "group.json"
	apiToolsFile     = "api-tools.json"
)

// Initialize loads, expands, and validates configuration rooted at
// configDir. This is the package's primary entry point.
//
// Steps:
//  1. Load an optional .env from configDir (missing file is not an error).
//  2. Load the three JSON documents.
//  3. Expand {{env.NAME}} in server/group config values (load-time;
//     api-tools.json's templates are expanded at render time instead).
//  4. Build registries.
//  5. Validate all configuration; drop invalid references with warnings,
//     demote groups with zero valid servers to fallback.
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	if err := godotenv.Load(filepath.Join(configDir, ".env")); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to load .env", "error", err)
	}

	loader := &configLoader{configDir: configDir, lookup: os.LookupEnv}

	servers, err := loader.loadServers(ctx)
	if err != nil {
		return nil, NewLoadError(serverConfigFile, err)
	}

	groups, err := loader.loadGroups(ctx)
	if err != nil {
		return nil, NewLoadError(groupConfigFile, err)
	}

	apiTools, err := loader.loadAPITools(ctx)
	if err != nil {
		return nil, NewLoadError(apiToolsFile, err)
	}

	cfg := &Config{
		configDir:       configDir,
		ServerRegistry:  NewServerRegistry(servers),
		GroupRegistry:   NewGroupRegistry(groups),
		APIToolRegistry: NewAPIToolRegistry(apiTools),
	}

	v := NewValidator(cfg)
	report, err := v.ValidateAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	cfg.Warnings = report.Warnings()

	for _, f := range report.Critical() {
		log.Error("configuration error", "detail", f.String())
	}
	for _, w := range cfg.Warnings {
		log.Warn("configuration warning", "detail", w)
	}

	stats := cfg.Stats()
	log.Info("configuration initialized",
		"servers", stats.Servers,
		"groups", stats.Groups,
		"api_tools", stats.APITools,
		"warnings", len(cfg.Warnings))

	return cfg, nil
}

// configLoader reads and env-expands the three configuration documents
// from a directory, one load<X> method per file.
type configLoader struct {
	configDir string
	lookup    func(string) (string, bool)
}

func (l *configLoader) readJSON(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	return nil
}

func (l *configLoader) loadServers(_ context.Context) (map[string]ServerConfig, error) {
	var doc ServerConfigDocument
	doc.MCPServers = make(map[string]ServerConfig)

	if err := l.readJSON(serverConfigFile, &doc); err != nil {
		return nil, err
	}

	servers := make(map[string]ServerConfig, len(doc.MCPServers))
	for id, sc := range doc.MCPServers {
		sc.ID = id
		l.expandServerEnv(&sc)
		servers[id] = sc
	}
	return servers, nil
}

// expandServerEnv resolves {{env.NAME}} in the fields that matter before a
// connection is ever attempted: the command, its args, the URL, and header
// values. Unresolved variables are left in place; the validator surfaces
// those left in the command or URL as warnings against the owning server
// id.
func (l *configLoader) expandServerEnv(sc *ServerConfig) {
	sc.Transport.Command, _ = ExpandEnvString(sc.Transport.Command, l.lookup)
	sc.Transport.URL, _ = ExpandEnvString(sc.Transport.URL, l.lookup)
	sc.Transport.BearerToken, _ = ExpandEnvString(sc.Transport.BearerToken, l.lookup)

	for i, a := range sc.Transport.Args {
		sc.Transport.Args[i], _ = ExpandEnvString(a, l.lookup)
	}
	ExpandEnvStringMap(sc.Transport.Headers, l.lookup)
	ExpandEnvStringMap(sc.Env, l.lookup)
}

func (l *configLoader) loadGroups(_ context.Context) (map[string]GroupConfig, error) {
	doc := make(GroupConfigDocument)

	if err := l.readJSON(groupConfigFile, &doc); err != nil {
		return nil, err
	}

	groups := make(map[string]GroupConfig, len(doc))
	for id, g := range doc {
		g.ID = id
		groups[id] = g
	}
	return groups, nil
}

func (l *configLoader) loadAPITools(_ context.Context) (map[string]ApiToolConfig, error) {
	var doc APIToolsDocument

	if err := l.readJSON(apiToolsFile, &doc); err != nil {
		return nil, err
	}

	tools := make(map[string]ApiToolConfig, len(doc.Tools))
	for _, t := range doc.Tools {
		if _, dup := tools[t.ID]; dup {
			return nil, NewValidationError("api_tool", t.ID, "id", ErrDuplicateID)
		}
		if t.Security != nil && t.Security.RateLimit != nil {
			if err := applyRateLimitDefaults(t.Security.RateLimit); err != nil {
				return nil, fmt.Errorf("apply rate limit defaults for %q: %w", t.ID, err)
			}
		}
		tools[t.ID] = t
	}
	return tools, nil
}

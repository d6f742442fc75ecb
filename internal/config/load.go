package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a File from path. JSON is tried first; a ".yaml"/".yml"
// extension (or JSON-parse failure) falls back to YAML, so a deployment can
// hand-author either. Only the top-level File fields carry yaml tags; the
// nested config structs use yaml.v3's default keys (the lowercased field
// name), so a multi-word key matches in YAML only in its all-lowercase form
// (e.g. "timeoutms", not "timeoutMs").
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	var f File
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("config: parse yaml %q: %w", path, err)
		}
	} else if err := json.Unmarshal(data, &f); err != nil {
		if yerr := yaml.Unmarshal(data, &f); yerr != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	ApplyEnvOverlay(&f)
	return &f, nil
}

// ApplyEnvOverlay overlays bearer tokens for endpoints/services from the
// environment: secrets are never read from the config file, only from env,
// and never serialized back out. The env var naming is
// MCPBRIDGE_ENDPOINT_<N>_TOKEN / MCPBRIDGE_SERVICE_<NAME>_TOKEN, applied as
// an Authorization header.
func ApplyEnvOverlay(f *File) {
	for i := range f.Endpoints {
		key := fmt.Sprintf("MCPBRIDGE_ENDPOINT_%d_TOKEN", i)
		if tok := os.Getenv(key); tok != "" {
			if f.Endpoints[i].Headers == nil {
				f.Endpoints[i].Headers = map[string]string{}
			}
			f.Endpoints[i].Headers["Authorization"] = "Bearer " + tok
		}
	}
	for name, svc := range f.Services {
		key := fmt.Sprintf("MCPBRIDGE_SERVICE_%s_TOKEN", strings.ToUpper(name))
		if tok := os.Getenv(key); tok != "" {
			if svc.Headers == nil {
				svc.Headers = map[string]string{}
			}
			svc.Headers["Authorization"] = "Bearer " + tok
			f.Services[name] = svc
		}
	}
}

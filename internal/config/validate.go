package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fulmenhq/gofulmen/schema"
	"gopkg.in/yaml.v3"
)

const configSchemaID = "stocklens/v0/config"

// ValidateFile checks a single config file against the stocklens config
// schema without merging the other layers. config.Load validates the merged
// result, so a typo in a user override can be masked by a valid default;
// this validates the file on its own. Returns one message per problem.
func ValidateFile(path string) ([]string, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- Config path is user-provided
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	// An empty or comment-only file is a valid no-op override.
	if len(doc) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to find project root: %w", err)
	}

	catalog := schema.NewCatalog(filepath.Join(projectRoot, "schemas"))
	diagnostics, err := catalog.ValidateDataByID(configSchemaID, payload)
	if err != nil {
		return nil, err
	}

	problems := make([]string, 0, len(diagnostics))
	for _, diag := range diagnostics {
		problems = append(problems, fmt.Sprintf("%s: %s", diag.Pointer, diag.Message))
	}
	return problems, nil
}

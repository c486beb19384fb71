package githubmeta

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// manifest is the subset of a package manifest the timeline needs. It covers
// package.json as well as YAML manifests such as Chart.yaml.
type manifest struct {
	Version string `json:"version" yaml:"version"`
}

// parseManifestVersion decodes content according to the manifest's file
// extension and returns its version.
func parseManifestVersion(manifestPath string, content []byte) (string, error) {
	var m manifest

	switch strings.ToLower(path.Ext(manifestPath)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &m); err != nil {
			return "", fmt.Errorf("unmarshal YAML manifest: %w", err)
		}
	default:
		if err := json.Unmarshal(content, &m); err != nil {
			return "", fmt.Errorf("unmarshal JSON manifest: %w", err)
		}
	}

	version := strings.TrimSpace(m.Version)
	if version == "" {
		return "", errors.New("version field is missing or empty")
	}
	return version, nil
}

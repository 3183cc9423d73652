package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/formpilot/pkg/types"
)

// LoadProfile reads a profile file (YAML or JSON, flat string map) into
// ProfileData. Only string values are accepted; numeric profile values
// must be quoted in the file.
func LoadProfile(path string) (types.ProfileData, error) {
	if path == "" {
		return nil, fmt.Errorf("profile path cannot be empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file: %w", err)
	}

	profile := types.ProfileData{}
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile file: %w", err)
	}
	if len(profile) == 0 {
		return nil, fmt.Errorf("profile file %s has no entries", path)
	}
	return profile, nil
}

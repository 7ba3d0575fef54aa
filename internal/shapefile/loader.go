package shapefile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile loads and parses a YAML shape file from the given path.
func LoadFile(path string) (*ShapeFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read shape file %s: %w", path, err)
	}

	sf, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return sf, nil
}

// Parse parses YAML data into a ShapeFile.
func Parse(data []byte) (*ShapeFile, error) {
	var sf ShapeFile

	err := yaml.Unmarshal(data, &sf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse shape YAML: %w", err)
	}

	applyDefaults(&sf)

	if err := validate(&sf); err != nil {
		return nil, err
	}

	return &sf, nil
}

// applyDefaults fills in default values for optional fields.
func applyDefaults(sf *ShapeFile) {
	if sf.Version == "" {
		sf.Version = "1"
	}
}

// validate checks cross-shape constraints the YAML schema cannot express.
func validate(sf *ShapeFile) error {
	seen := make(map[string]struct{}, len(sf.Shapes))

	for i := range sf.Shapes {
		def := &sf.Shapes[i]

		if def.Source == "" {
			return fmt.Errorf("shape %d (%s): missing source type", i, def.Name)
		}

		if def.Name != "" {
			if _, dup := seen[def.Name]; dup {
				return fmt.Errorf("duplicate shape name %s", def.Name)
			}

			seen[def.Name] = struct{}{}
		}
	}

	return nil
}

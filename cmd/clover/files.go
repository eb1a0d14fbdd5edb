package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Ramsey-B/clover/pkg/uxon"
	"gopkg.in/yaml.v3"
)

// readUxonFile loads a mapper or sheet file. YAML is picked by extension, anything
// else is read as JSON/Hjson.
func readUxonFile(path string) (uxon.Object, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var decoded map[string]any
		if err := yaml.Unmarshal(data, &decoded); err != nil {
			return nil, fmt.Errorf("invalid yaml in %s: %w", path, err)
		}
		return uxon.FromAny(decoded)
	}

	object, err := uxon.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return object, nil
}

package sdg

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed registry.yaml
var defaultRegistry []byte

// Registry maps a series code to the dimensions it is disaggregated by.
type Registry map[string][]string

// DefaultRegistry returns the built-in registry.
func DefaultRegistry() Registry {
	reg, err := ParseRegistry(defaultRegistry)
	if err != nil {
		panic(fmt.Sprintf("built-in registry: %v", err))
	}
	return reg
}

// LoadRegistry reads a registry file. An empty path yields the built-in
// registry.
func LoadRegistry(path string) (Registry, error) {
	if path == "" {
		return DefaultRegistry(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	reg, err := ParseRegistry(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// ParseRegistry decodes a YAML mapping of series code to dimension names.
func ParseRegistry(b []byte) (Registry, error) {
	reg := Registry{}
	if err := yaml.Unmarshal(b, &reg); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	for code, dims := range reg {
		if len(dims) == 0 {
			return nil, fmt.Errorf("registry: series %s has no dimensions", code)
		}
	}
	return reg, nil
}

// Dims returns the registered dimensions of code.
func (r Registry) Dims(code string) ([]string, bool) {
	dims, ok := r[code]
	return dims, ok
}

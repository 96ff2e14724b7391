package connector

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrUnknownType = errors.New("no connector registered for connection type")

// Connector maps one connection type to the tap binary that extracts it.
type Connector struct {
	Type    string `yaml:"type" json:"type"`
	Name    string `yaml:"name" json:"name"`
	Command string `yaml:"command" json:"command"`
}

type Registry struct {
	connectors map[string]Connector
}

type registryFile struct {
	Connectors []Connector `yaml:"connectors"`
}

// LoadRegistry reads the connector registry from a YAML file. An empty
// path yields the built-in registry; a read failure falls back to the
// built-in registry alongside the error so the caller can warn and keep
// going.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return DefaultRegistry(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultRegistry(), err
	}

	var file registryFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, err
	}
	if len(file.Connectors) == 0 {
		return nil, errors.New("no connectors configured")
	}

	registry := &Registry{connectors: make(map[string]Connector)}
	for _, c := range file.Connectors {
		if c.Type == "" || c.Command == "" {
			return nil, fmt.Errorf("connector entry needs both type and command: %+v", c)
		}
		registry.connectors[strings.ToLower(c.Type)] = c
	}
	return registry, nil
}

func DefaultRegistry() *Registry {
	return &Registry{connectors: map[string]Connector{
		"woocommerce": {Type: "woocommerce", Name: "WooCommerce", Command: "tap-woocommerce"},
	}}
}

// Lookup resolves a connection type to its connector. Unknown types fail
// before any process is spawned.
func (r *Registry) Lookup(connType string) (Connector, error) {
	c, ok := r.connectors[strings.ToLower(strings.TrimSpace(connType))]
	if !ok {
		return Connector{}, fmt.Errorf("%w: %s", ErrUnknownType, connType)
	}
	return c, nil
}

// Types lists the registered connection types, for diagnostics.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.connectors))
	for t := range r.connectors {
		types = append(types, t)
	}
	return types
}

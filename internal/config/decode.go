package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

func loadProjectConfig(path string) (ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ProjectConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	parsed, err := decodeProjectConfig(path, data)
	if err != nil {
		return ProjectConfig{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	parsed.applyDefaults()
	if err := parsed.normalize(); err != nil {
		return ProjectConfig{}, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := parsed.validate(); err != nil {
		return ProjectConfig{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return parsed, nil
}

func decodeProjectConfig(path string, data []byte) (ProjectConfig, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return decodeTOML(data)
	default:
		// JSON documents are valid YAML, so one decoder serves both.
		return decodeYAML(data)
	}
}

func decodeTOML(data []byte) (ProjectConfig, error) {
	var parsed ProjectConfig
	if err := toml.Unmarshal(data, &parsed); err != nil {
		return ProjectConfig{}, err
	}
	return parsed, nil
}

func decodeYAML(data []byte) (ProjectConfig, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return ProjectConfig{}, err
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return defaultProjectConfig(), nil
	}
	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var tasks []TaskConfig
		if err := root.Decode(&tasks); err != nil {
			return ProjectConfig{}, err
		}
		return ProjectConfig{Tasks: tasks}, nil
	case yaml.MappingNode:
		var parsed ProjectConfig
		if err := root.Decode(&parsed); err != nil {
			return ProjectConfig{}, err
		}
		return parsed, nil
	case yaml.ScalarNode:
		if root.Tag == "!!null" {
			return defaultProjectConfig(), nil
		}
	}
	return ProjectConfig{}, fmt.Errorf("expected a list of tasks or a mapping, got %s", describeNode(root))
}

func describeNode(n *yaml.Node) string {
	switch n.Kind {
	case yaml.ScalarNode:
		return "scalar " + n.Tag
	case yaml.AliasNode:
		return "alias"
	default:
		return fmt.Sprintf("node kind %d", n.Kind)
	}
}

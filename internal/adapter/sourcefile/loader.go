// Package sourcefile reads connection source settings from a YAML file and
// reloads them when the file changes.
//
//	sources:
//	  App/Source/MySql/main: root:pw@tcp(db:3306)/app
//	  App/Source/Sqlite/local:
//	    address: data source=${DATA_DIR}/local.db
//	    autoClose: true
package sourcefile

import (
	"fmt"
	"os"

	"github.com/guillermoBallester/txscope/internal/source"
	"gopkg.in/yaml.v3"
)

type document struct {
	Sources yaml.Node `yaml:"sources"`
}

// entry is either a plain address or an {address, autoClose} mapping.
type entry struct {
	Address   string `yaml:"address"`
	AutoClose bool   `yaml:"autoClose"`
}

func (e *entry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		e.Address = value.Value
		return nil
	}
	type alias entry
	var a alias
	if err := value.Decode(&a); err != nil {
		return fmt.Errorf("decoding source entry: %w", err)
	}
	*e = entry(a)
	return nil
}

// LoadFromFile reads path and returns its settings in document order. A file
// without a sources section yields nil settings.
func LoadFromFile(path string) (source.Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sources file: %w", err)
	}
	settings, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing sources file %s: %w", path, err)
	}
	return settings, nil
}

// Parse decodes a sources document. Mapping order is preserved, so the
// first source listed becomes the default.
func Parse(data []byte) (source.Settings, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	node := &doc.Sources
	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return source.Settings{}, nil
		}
	case yaml.MappingNode:
		settings := make(source.Settings, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i]
			var e entry
			if err := node.Content[i+1].Decode(&e); err != nil {
				return nil, fmt.Errorf("line %d: %w", key.Line, err)
			}
			settings = append(settings, source.Setting{
				Key:       key.Value,
				Address:   e.Address,
				AutoClose: e.AutoClose,
			})
		}
		return settings, nil
	}
	return nil, fmt.Errorf("line %d: sources must be a mapping", node.Line)
}

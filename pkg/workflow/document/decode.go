package document

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// coerceRaw accepts either bytes/string of YAML, or an already-decoded
// value (e.g. map[string]any from a caller that parsed the document
// itself), and normalizes it into rawWorkflow. Re-marshaling a decoded
// value back through yaml.v3 lets callers hand in loosely typed data
// while still benefiting from the struct tags on rawWorkflow.
func coerceRaw(raw any) (*rawWorkflow, error) {
	var data []byte
	switch v := raw.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		b, err := yaml.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("normalizing workflow document: %w", err)
		}
		data = b
	}

	var rw rawWorkflow
	if err := yaml.Unmarshal(data, &rw); err != nil {
		return nil, fmt.Errorf("parsing workflow document: %w", err)
	}
	return &rw, nil
}

// LoadYAML is a convenience wrapper around Load for callers holding raw
// YAML bytes, e.g. a file read by the CLI.
func LoadYAML(data []byte) (*Workflow, error) {
	return Load(data)
}

package output

import (
	"io"

	"gopkg.in/yaml.v3"
)

// Listing is the YAML export document of list commands.
type Listing struct {
	Prefix  string         `yaml:"prefix"`
	Entries []string       `yaml:"entries,omitempty"`
	Objects []ObjectRecord `yaml:"objects,omitempty"`
}

// WriteYAML encodes l as a single YAML document.
func WriteYAML(w io.Writer, l *Listing) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(l); err != nil {
		return &WriteError{Op: "marshal_yaml", Err: err}
	}
	if err := enc.Close(); err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	return nil
}

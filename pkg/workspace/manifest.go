// Package workspace builds the actions of a set of configurations into a
// single image and reads such images back.
package workspace

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"gopkg.in/yaml.v3"

	"github.com/zurustar/padscript/pkg/fileutil"
)

// Manifest describes the configurations of a workspace.
type Manifest struct {
	// Encoding names the encoding of the action files. Empty means
	// detect from a BOM, falling back to Latin-1 for invalid UTF-8.
	Encoding string `yaml:"encoding,omitempty"`

	// Defines are predefined for every action.
	Defines map[string]string `yaml:"defines,omitempty"`

	Configurations []ConfigurationSpec `yaml:"configurations"`
}

// ConfigurationSpec is one configuration of the manifest.
type ConfigurationSpec struct {
	Name    string       `yaml:"name"`
	Enabled *bool        `yaml:"enabled,omitempty"`
	Actions []ActionSpec `yaml:"actions"`
}

// IsEnabled reports whether the configuration goes into the image.
// Configurations are enabled unless stated otherwise.
func (c ConfigurationSpec) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// ActionSpec is one action. Exactly one of File and Source is set.
type ActionSpec struct {
	Name    string            `yaml:"name"`
	File    string            `yaml:"file,omitempty"`
	Source  string            `yaml:"source,omitempty"`
	Defines map[string]string `yaml:"defines,omitempty"`
}

// LoadManifest decodes a YAML manifest and validates it.
func LoadManifest(r io.Reader) (*Manifest, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty manifest")
		}
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// ReadManifest loads the manifest called name from fsys.
func ReadManifest(fsys fs.FS, name string) (*Manifest, error) {
	p, err := fileutil.Resolve(fsys, name)
	if err != nil {
		return nil, err
	}
	f, err := fsys.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadManifest(f)
}

// Validate checks that every configuration and action is named and that
// each action has exactly one source.
func (m *Manifest) Validate() error {
	seen := make(map[string]bool)
	for i, c := range m.Configurations {
		if c.Name == "" {
			return fmt.Errorf("configuration %d has no name", i+1)
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate configuration %q", c.Name)
		}
		seen[c.Name] = true

		if c.IsEnabled() && len(c.Actions) == 0 {
			return fmt.Errorf("configuration %q has no actions", c.Name)
		}
		for j, a := range c.Actions {
			if a.Name == "" {
				return fmt.Errorf("configuration %q: action %d has no name", c.Name, j+1)
			}
			if (a.File == "") == (a.Source == "") {
				return fmt.Errorf("configuration %q: action %q needs exactly one of file and source", c.Name, a.Name)
			}
		}
	}
	return nil
}

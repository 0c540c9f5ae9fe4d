/*
Copyright © 2024 the obs2ioda authors.
This file is part of obs2ioda.

obs2ioda is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

obs2ioda is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with obs2ioda.  If not, see <http://www.gnu.org/licenses/>.
*/

package obs2ioda

import (
	_ "embed"
	"fmt"
	"io"
	"io/ioutil"
	"os"

	"gopkg.in/yaml.v3"
)

// A Document is a declarative schema definition. Each category lists
// entries whose first alias is the canonical name.
//
//	Attributes:
//	  - Attribute: [platform, satellite]
//	Dimensions:
//	  - Dimension: [Location, nlocs]
//	Variables:
//	  - Variable: [brightnessTemperature, brightness_temperature]
//	    Dimensions: [[Location, Channel]]
type Document struct {
	Attributes []Entry `yaml:"Attributes,omitempty"`
	Groups     []Entry `yaml:"Groups,omitempty"`
	Dimensions []Entry `yaml:"Dimensions,omitempty"`
	Variables  []Entry `yaml:"Variables,omitempty"`
}

// An Entry declares one schema component. Only the key matching the
// entry's category is used.
type Entry struct {
	Attribute AliasList `yaml:"Attribute,omitempty"`
	Group     AliasList `yaml:"Group,omitempty"`
	Dimension AliasList `yaml:"Dimension,omitempty"`
	Variable  AliasList `yaml:"Variable,omitempty"`

	// Dimensions lists the acceptable dimension combinations of a variable.
	Dimensions []AliasList `yaml:"Dimensions,omitempty"`
}

// AliasList is an ordered list of names. In YAML it may be written as a
// single string or as a sequence.
type AliasList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (a *AliasList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		if s == "" {
			*a = AliasList{}
		} else {
			*a = AliasList{s}
		}
		return nil
	case yaml.SequenceNode:
		var s []string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*a = s
		return nil
	default:
		return fmt.Errorf("line %d: expected a name or a list of names", node.Line)
	}
}

// aliases returns the names the entry declares for kind.
func (e Entry) aliases(kind Kind) AliasList {
	switch kind {
	case AttributeKind:
		return e.Attribute
	case GroupKind:
		return e.Group
	case DimensionKind:
		return e.Dimension
	default:
		return e.Variable
	}
}

// entries returns the entries of the category holding kind.
func (d *Document) entries(kind Kind) []Entry {
	switch kind {
	case AttributeKind:
		return d.Attributes
	case GroupKind:
		return d.Groups
	case DimensionKind:
		return d.Dimensions
	default:
		return d.Variables
	}
}

// Check returns an error for each entry that declares no names.
func (d *Document) Check() error {
	var errs Errors
	for _, k := range Kinds {
		for i, e := range d.entries(k) {
			if len(e.aliases(k)) == 0 || e.aliases(k)[0] == "" {
				errs = append(errs, fmt.Errorf("obs2ioda: %ss entry %d: %w", k, i, ErrEmptyAliases))
			}
		}
	}
	return errs.Err()
}

// ParseDocument parses a YAML schema document.
func ParseDocument(data []byte) (*Document, error) {
	d := new(Document)
	if err := yaml.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("obs2ioda: parsing schema document: %w", err)
	}
	if err := d.Check(); err != nil {
		return nil, err
	}
	return d, nil
}

// ReadDocument reads and parses a YAML schema document from r.
func ReadDocument(r io.Reader) (*Document, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("obs2ioda: reading schema document: %w", err)
	}
	return ParseDocument(data)
}

// LoadDocument reads the schema document at path.
func LoadDocument(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("obs2ioda: opening schema document: %w", err)
	}
	defer f.Close()
	return ReadDocument(f)
}

// Marshal renders d as YAML.
func (d *Document) Marshal() ([]byte, error) {
	return yaml.Marshal(d)
}

//go:embed default_schema.yaml
var defaultSchema []byte

// DefaultDocument returns the built-in IODA observation schema.
func DefaultDocument() *Document {
	d, err := ParseDocument(defaultSchema)
	if err != nil {
		panic(err)
	}
	return d
}

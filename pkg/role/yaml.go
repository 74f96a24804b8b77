// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package role

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

type yamlRole struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Prompt      string `yaml:"prompt"`
}

// EncodeYAML writes roles as a YAML list of name/description/prompt mappings.
func EncodeYAML(w io.Writer, roles []Role) error {
	doc := make([]yamlRole, 0, len(roles))
	for _, r := range roles {
		doc = append(doc, yamlRole{Name: r.Name, Description: r.Description, Prompt: r.Prompt})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode roles: %w", err)
	}
	return enc.Close()
}

// DecodeYAML reads a YAML list written by EncodeYAML. Empty input yields no roles.
func DecodeYAML(r io.Reader) ([]Role, error) {
	var doc []yamlRole
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode roles: %w", err)
	}

	roles := make([]Role, 0, len(doc))
	for _, d := range doc {
		roles = append(roles, Role{Name: d.Name, Description: d.Description, Prompt: d.Prompt})
	}
	return roles, nil
}

// Package schema declares document types and compiles them into a registry
// that resolves single-collection inheritance hierarchies.
package schema

import "github.com/aretw0/strata/pkg/core"

// DefaultDiscriminator is the record field holding the type tag when a root
// does not name one.
const DefaultDiscriminator = "type"

// Field declares one persisted field.
type Field struct {
	Name    string    `yaml:"name"`
	Type    ValueType `yaml:"type"`
	Default any       `yaml:"default,omitempty"`
}

// Type is the declaration of a document type, as written by hand or loaded
// from a schema file. It is compiled into a DocumentType by Compile.
type Type struct {
	Name   string `yaml:"name"`
	Parent string `yaml:"parent,omitempty"`

	// Tag is the discriminator value of a non-root type.
	Tag string `yaml:"tag,omitempty"`

	// Label prefixes the event labels this type contributes (defaults to Name).
	Label string `yaml:"label,omitempty"`

	// Abstract types cannot be instantiated.
	Abstract bool `yaml:"abstract,omitempty"`

	// Collection and Discriminator are only valid on a root.
	Collection    string `yaml:"collection,omitempty"`
	Discriminator string `yaml:"discriminator,omitempty"`

	Fields []Field          `yaml:"fields,omitempty"`
	Hooks  []core.EventKind `yaml:"hooks,omitempty"`
}

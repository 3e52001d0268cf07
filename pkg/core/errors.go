package core

import "errors"

// Common errors.
var (
	// ErrUnknownField is returned when a field is not declared on a type or its ancestors.
	ErrUnknownField = errors.New("unknown field")
	// ErrUnknownDiscriminator is returned when a stored tag is not registered in a hierarchy.
	ErrUnknownDiscriminator = errors.New("unknown discriminator")
	// ErrUnknownType is returned for a type name outside every known hierarchy.
	ErrUnknownType = errors.New("unknown type")
	// ErrDuplicateIdentity is returned when a different instance is already registered under an identifier.
	ErrDuplicateIdentity = errors.New("duplicate identity")
	// ErrInvalidValue is returned when a value cannot be coerced to the declared field type.
	ErrInvalidValue = errors.New("invalid value")
	// ErrTypeMismatch is returned when a document is handed to a repository outside its scope.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrAbstractType is returned when instantiating an abstract type.
	ErrAbstractType = errors.New("abstract type")
	// ErrInvalidSchema is returned by schema compilation.
	ErrInvalidSchema = errors.New("invalid schema")
	// ErrReadOnly is returned by stores opened in read-only mode.
	ErrReadOnly = errors.New("store is in read-only mode")
)

package engine

// Loader and Source are supplied by the host application: the document
// format entity prototypes are stored in (YAML/JSON or anything else)
// and the file loader both live outside this module. Only the contract
// the engine consumes is defined here.
type Loader interface {
	LoadSource(name string, logErrors bool) (Source, error)
}

// Source is a size-bounded, copyable view over one value in a loaded
// document. Implementations whose underlying data is too large to copy
// by value should hold a reference-counted or shared owner internally.
type Source interface {
	IsNull() bool
	IsScalar() bool
	IsSequence() bool
	IsMapping() bool
	// ReadTo decodes the current scalar value into dst, returning false
	// on type mismatch or malformed input.
	ReadTo(dst any) bool
	// GetSequenceValue writes the element at index into out, returning
	// false if index is out of range or the receiver is not a sequence.
	GetSequenceValue(index int, out *Source) bool
	// GetMappingValue writes the value for key into out, returning false
	// if key is absent or the receiver is not a mapping.
	GetMappingValue(key string, out *Source) bool
	// ErrorLog returns accumulated parse/read errors for this value.
	ErrorLog() string
}

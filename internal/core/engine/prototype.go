package engine

import (
	"strings"
	"unicode"
	"unsafe"
)

// documentKey returns the mapping key a prototype document uses for this
// type: SourceName when set, otherwise the type name with its
// "Component" suffix stripped and the first letter lowercased.
func (t *TypeInfo) documentKey() string {
	if t.SourceName != "" {
		return t.SourceName
	}
	name := strings.TrimSuffix(t.Name, "Component")
	if name == "" {
		return name
	}
	r := []rune(name)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

// LoadPrototype builds a Prototype from doc, a mapping of component keys
// to property mappings. For every registered type whose key is present,
// each component starts from the type's default value; properties present
// in the document are decoded over it by their loaders. A missing
// non-resource property keeps its default; a missing property carrying
// the "resource" attribute fails the whole entity. A multi type whose
// sequence exceeds MaxPerEntity fails the entity too. The mandatory Life
// component is never read from the document; the engine appends it at
// initialization.
//
// On failure the returned error is an *EngineError whose message is what
// the caller appends to its resource error log; other entities in the
// same document set are unaffected.
func LoadPrototype(r *ComponentRegistry, doc Source) (Prototype, error) {
	if doc == nil || doc.IsNull() || !doc.IsMapping() {
		return Prototype{}, newEngineError(ErrCodeComponentLoadFailed, SeverityError,
			"prototype document is not a mapping")
	}
	var proto Prototype
	for _, ti := range r.TypeInfoAll() {
		if ti.ID == ComponentTypeLife {
			continue
		}
		var node Source
		if !doc.GetMappingValue(ti.documentKey(), &node) {
			continue
		}
		if ti.IsMulti && node.IsSequence() {
			var data []byte
			count := 0
			for idx := 0; ; idx++ {
				var elem Source
				if !node.GetSequenceValue(idx, &elem) {
					break
				}
				raw, err := loadComponent(ti, elem)
				if err != nil {
					return Prototype{}, err
				}
				data = append(data, raw...)
				count++
			}
			if count > ti.MaxPerEntity {
				return Prototype{}, newEngineError(ErrCodeComponentLoadFailed, SeverityError,
					"component %q: document carries %d instances, max per entity is %d",
					ti.Name, count, ti.MaxPerEntity).WithComponent(ti.ID)
			}
			if count > 0 {
				proto.Components = append(proto.Components, ComponentValue{TypeID: ti.ID, Data: data, Count: count})
			}
			continue
		}
		raw, err := loadComponent(ti, node)
		if err != nil {
			return Prototype{}, err
		}
		proto.Components = append(proto.Components, ComponentValue{TypeID: ti.ID, Data: raw, Count: 1})
	}
	return proto, nil
}

func loadComponent(ti *TypeInfo, node Source) ([]byte, error) {
	raw := make([]byte, ti.Size)
	if ti.DefaultValue != nil {
		copy(raw, ti.DefaultValue)
	}
	for i := range ti.Properties {
		p := &ti.Properties[i]
		var val Source
		present := node != nil && !node.IsNull() && node.GetMappingValue(p.Name, &val)
		if !present || val == nil || val.IsNull() {
			if p.HasAttribute(AttrResource) {
				return nil, newEngineError(ErrCodeComponentLoadFailed, SeverityError,
					"component %q: mandatory resource property %q missing",
					ti.Name, p.Name).WithComponent(ti.ID)
			}
			continue
		}
		if p.Load == nil || !p.Load(val, raw[p.Offset:p.Offset+p.Size]) {
			return nil, newEngineError(ErrCodeComponentLoadFailed, SeverityError,
				"component %q: unreadable value for property %q (%s)",
				ti.Name, p.Name, val.ErrorLog()).WithComponent(ti.ID)
		}
	}
	return raw, nil
}

// ComposeRightToLeft applies every property of ti carrying attr by
// folding right's bytes into dst's, e.g. adding a parent's position into
// a freshly spawned child's. Both slices hold one encoded component.
func ComposeRightToLeft(ti *TypeInfo, attr string, dst, right []byte) {
	for i := range ti.Properties {
		p := &ti.Properties[i]
		if p.AddRightToLeft == nil || !p.HasAttribute(attr) {
			continue
		}
		p.AddRightToLeft(dst[p.Offset:p.Offset+p.Size], right[p.Offset:p.Offset+p.Size])
	}
}

// LoadScalar returns a Property loader decoding one scalar of type T via
// Source.ReadTo. T's byte layout must match the property's window.
func LoadScalar[T any]() func(src Source, dst []byte) bool {
	return func(src Source, dst []byte) bool {
		if !src.IsScalar() {
			return false
		}
		var v T
		if !src.ReadTo(&v) {
			return false
		}
		*(*T)(unsafe.Pointer(&dst[0])) = v
		return true
	}
}

// numeric is the constraint AddNumeric composes over.
type numeric interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32 | ~float64
}

// AddNumeric returns a Property AddRightToLeft summing two values of T.
func AddNumeric[T numeric]() func(dst, right []byte) {
	return func(dst, right []byte) {
		*(*T)(unsafe.Pointer(&dst[0])) += *(*T)(unsafe.Pointer(&right[0]))
	}
}

package types

import "sort"

// VectorKind tags the shape of a VectorData value.
type VectorKind int

const (
	VectorNone VectorKind = iota
	VectorSingle
	VectorNamed
)

// NamedVector is one entry of a named vector set.
type NamedVector struct {
	Name   string
	Values []float32
}

// VectorData is the vector attached to a candidate. Indexes return either a
// single unnamed vector or an ordered set of named vectors.
type VectorData struct {
	kind   VectorKind
	single []float32
	named  []NamedVector
}

func SingleVector(values []float32) VectorData {
	if values == nil {
		return VectorData{}
	}
	return VectorData{kind: VectorSingle, single: values}
}

// NamedVectors keeps the given order.
func NamedVectors(vectors ...NamedVector) VectorData {
	if len(vectors) == 0 {
		return VectorData{}
	}
	return VectorData{kind: VectorNamed, named: vectors}
}

// NamedVectorsFromMap orders the entries by name, since map iteration order
// is random and resolution must be stable.
func NamedVectorsFromMap(m map[string][]float32) VectorData {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	vectors := make([]NamedVector, 0, len(names))
	for _, name := range names {
		vectors = append(vectors, NamedVector{Name: name, Values: m[name]})
	}
	return NamedVectors(vectors...)
}

func (v VectorData) Kind() VectorKind {
	return v.kind
}

// Resolve returns the sole vector, or the first named entry.
func (v VectorData) Resolve() ([]float32, bool) {
	switch v.kind {
	case VectorSingle:
		return v.single, len(v.single) > 0
	case VectorNamed:
		if len(v.named) == 0 {
			return nil, false
		}
		return v.named[0].Values, len(v.named[0].Values) > 0
	default:
		return nil, false
	}
}

// TextFilter restricts a query to points whose payload Field contains Text.
type TextFilter struct {
	Field string
	Text  string
}

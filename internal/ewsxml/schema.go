package ewsxml

import (
	"fmt"
	"hash/fnv"
)

// Entity is one protocol object instance. Concrete entity types are plain
// structs with typed fields; Get and Set bridge them to the generic engine by
// declared field name. Both panic on unknown names: a mismatch between an
// entity's schema and its accessors is a programming error, not input error.
type Entity interface {
	Schema() *Schema
	Get(field string) interface{}
	Set(field string, v interface{})
}

// Validator is an optional entity hook for cross-field invariants, run by
// Clean after every individual field has been validated.
type Validator interface {
	Validate() error
}

// Exchange protocol versions, oldest first. Fields may declare the version
// that introduced them; schema variants per version are resolved once at
// construction rather than mutating a shared field list.
const (
	Exchange2013    = "Exchange2013"
	Exchange2013SP1 = "Exchange2013_SP1"
	Exchange2016    = "Exchange2016"
)

var versionOrder = []string{Exchange2013, Exchange2013SP1, Exchange2016}

func versionRank(v string) int {
	for i, known := range versionOrder {
		if known == v {
			return i
		}
	}
	// Unknown versions are assumed newer than anything we know about.
	return len(versionOrder)
}

// Schema is the element descriptor for one entity type: its qualified wire
// tag plus the ordered, immutable field list.
type Schema struct {
	Name   string
	Space  string
	Fields []Field

	byName   map[string]Field
	variants map[string]*Schema
}

// NewSchema builds a schema and verifies the declaration invariants: field
// names and wire names must be unique within the list. Violations panic
// because they are entity-definition bugs, not runtime conditions.
func NewSchema(space, name string, fields ...Field) *Schema {
	s := &Schema{
		Name:     name,
		Space:    space,
		Fields:   fields,
		byName:   make(map[string]Field, len(fields)),
		variants: make(map[string]*Schema),
	}
	wires := make(map[string]bool, len(fields))
	for _, f := range fields {
		if _, dup := s.byName[f.FieldName()]; dup {
			panic(fmt.Sprintf("ewsxml: duplicate field name %q in %s", f.FieldName(), name))
		}
		s.byName[f.FieldName()] = f
		if w := f.WireName(); w != "" {
			if wires[w] {
				panic(fmt.Sprintf("ewsxml: duplicate wire name %q in %s", w, name))
			}
			wires[w] = true
		}
	}
	s.buildVariants()
	return s
}

// buildVariants resolves the per-version field subsets up front. Schemas are
// shared package-level singletons encoded from concurrent requests, so the
// variant table must be immutable after construction; ForVersion is then a
// plain map read.
func (s *Schema) buildVariants() {
	for _, version := range versionOrder {
		rank := versionRank(version)
		fields := make([]Field, 0, len(s.Fields))
		for _, f := range s.Fields {
			if f.Since() != "" && versionRank(f.Since()) > rank {
				continue
			}
			fields = append(fields, f)
		}
		if len(fields) == len(s.Fields) {
			s.variants[version] = s
			continue
		}
		v := &Schema{
			Name:   s.Name,
			Space:  s.Space,
			Fields: fields,
			byName: make(map[string]Field, len(fields)),
		}
		for _, f := range fields {
			v.byName[f.FieldName()] = f
		}
		s.variants[version] = v
	}
}

// Field returns the descriptor with the given declared name, or nil.
func (s *Schema) Field(name string) Field {
	return s.byName[name]
}

// RequestTag is the prefixed tag used when encoding requests, e.g. "t:ItemId".
func (s *Schema) RequestTag() string {
	return QName(s.Space, s.Name)
}

// ForVersion resolves the schema variant for one protocol version, dropping
// fields introduced later. Unknown versions are assumed newer than anything
// known and get the full field set. Read-only after construction.
func (s *Schema) ForVersion(version string) *Schema {
	if v, ok := s.variants[version]; ok {
		return v
	}
	return s
}

// MatchTag verifies that el carries this schema's qualified tag. A mismatch
// is a protocol inconsistency.
func (s *Schema) MatchTag(el *Element) error {
	if el.Space != s.Space || el.Local != s.Name {
		return protocolErrorf("expected element {%s}%s, got {%s}%s", s.Space, s.Name, el.Space, el.Local)
	}
	return nil
}

// DecodeInto populates e from a decoded XML element. Every declared field is
// extracted through its codec; absent fields stay nil. The source element is
// released afterwards to bound memory when decoding large batches.
func (s *Schema) DecodeInto(el *Element, e Entity) error {
	if err := s.MatchTag(el); err != nil {
		return err
	}
	for _, f := range s.Fields {
		v, err := f.Decode(el)
		if err != nil {
			return err
		}
		e.Set(f.FieldName(), v)
	}
	el.Release()
	return nil
}

// Encode runs Clean and renders e as an XML element. Fields are appended in
// declaration order; the protocol rejects requests with any other order.
// Read-only fields, absent values and empty lists are skipped.
func (s *Schema) Encode(e Entity, version string) (*Element, error) {
	resolved := s.ForVersion(version)
	if err := resolved.Clean(e); err != nil {
		return nil, err
	}
	el := NewElement(s.Space, s.Name)
	for _, f := range resolved.Fields {
		if f.IsReadOnly() {
			continue
		}
		if err := f.Encode(el, e.Get(f.FieldName()), version); err != nil {
			return nil, err
		}
	}
	return el, nil
}

// Clean validates every field value against its descriptor, writing the
// coerced value (or applied default) back, then runs the entity's own
// cross-field validation if it declares any.
func (s *Schema) Clean(e Entity) error {
	for _, f := range s.Fields {
		v, err := f.Clean(e.Get(f.FieldName()))
		if err != nil {
			return err
		}
		e.Set(f.FieldName(), v)
	}
	if v, ok := e.(Validator); ok {
		return v.Validate()
	}
	return nil
}

// Hash derives a structural hash from the ordered tuple of all stored field
// values. Entities carrying a server-issued identity are expected to override
// their equality to hash on that identity alone once it exists.
func (s *Schema) Hash(e Entity) uint64 {
	h := fnv.New64a()
	for _, f := range s.Fields {
		h.Write([]byte(f.FieldName()))
		h.Write([]byte{0})
		h.Write([]byte(f.HashText(e.Get(f.FieldName()))))
		h.Write([]byte{0})
	}
	return h.Sum64()
}

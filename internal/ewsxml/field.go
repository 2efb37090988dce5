package ewsxml

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Field describes one entity attribute: its wire name, conversion rules,
// cardinality and constraints. Descriptors are declared once per entity type
// in an ordered slice and never mutated afterwards; encode order follows
// declaration order, which the protocol requires.
//
// Value conventions: scalar fields use pointer types (*string, *bool, *int,
// *time.Time) where nil means absent; binary fields use []byte where nil is
// absent and an empty slice is present-but-empty; nested fields use Entity
// and []Entity. Entity Get implementations must return untyped nil for absent
// nested values.
type Field interface {
	FieldName() string
	WireName() string
	IsRequired() bool
	IsReadOnly() bool
	IsList() bool
	// Since names the first protocol version carrying this field; empty
	// means all versions.
	Since() string

	// Decode extracts this field's value from the parent element, returning
	// untyped nil when the field is absent on the wire.
	Decode(parent *Element) (interface{}, error)
	// Encode appends this field's wire representation to parent. Absent
	// values and empty lists are skipped entirely.
	Encode(parent *Element, v interface{}, version string) error
	// Clean validates and coerces the value, applying the declared default
	// when absent. Required fields that are still absent after defaulting
	// fail with a ValidationError.
	Clean(v interface{}) (interface{}, error)
	// HashText renders a canonical string for structural hashing.
	HashText(v interface{}) string
}

// Base carries the declaration shared by every field kind.
type Base struct {
	Name       string
	Wire       string
	Required   bool
	ReadOnly   bool
	MinVersion string
}

func (b Base) FieldName() string { return b.Name }
func (b Base) WireName() string  { return b.Wire }
func (b Base) IsRequired() bool  { return b.Required }
func (b Base) IsReadOnly() bool  { return b.ReadOnly }
func (b Base) IsList() bool      { return false }
func (b Base) Since() string     { return b.MinVersion }

func (b Base) requireString(v interface{}) (*string, error) {
	s, ok := v.(*string)
	if v != nil && !ok {
		return nil, validationErrorf(b.Name, "expected string value, got %T", v)
	}
	return s, nil
}

// textChild appends a TNS child element holding text.
func textChild(parent *Element, wire, text string) {
	el := NewElement(TNS, wire)
	el.Text = text
	parent.Add(el)
}

// TextField is a plain string stored as a TNS child element.
type TextField struct {
	Base
	MaxLen int
}

func (f *TextField) Decode(parent *Element) (interface{}, error) {
	c := parent.Find(TNS, f.Wire)
	if c == nil {
		return nil, nil
	}
	s := c.Text
	return &s, nil
}

func (f *TextField) Encode(parent *Element, v interface{}, version string) error {
	s, err := f.requireString(v)
	if err != nil {
		return err
	}
	if s == nil {
		return nil
	}
	textChild(parent, f.Wire, *s)
	return nil
}

func (f *TextField) Clean(v interface{}) (interface{}, error) {
	s, err := f.requireString(v)
	if err != nil {
		return nil, err
	}
	if s == nil {
		if f.Required {
			return nil, validationErrorf(f.Name, "required value is missing")
		}
		return nil, nil
	}
	if f.MaxLen > 0 && len(*s) > f.MaxLen {
		return nil, validationErrorf(f.Name, "value exceeds %d characters", f.MaxLen)
	}
	return s, nil
}

func (f *TextField) HashText(v interface{}) string {
	s, _ := v.(*string)
	if s == nil {
		return ""
	}
	return *s
}

// URIField marks xsd:anyURI values. The protocol does not reject malformed
// URIs, so no extra validation is applied beyond TextField's.
type URIField = TextField

// ChoiceField is an enumerated string with a closed set of legal values.
// Decoded text must be a member of the set; locally assigned values are only
// checked at Clean time.
type ChoiceField struct {
	Base
	Choices []string
	Default string
}

func (f *ChoiceField) member(s string) bool {
	for _, c := range f.Choices {
		if c == s {
			return true
		}
	}
	return false
}

func (f *ChoiceField) Decode(parent *Element) (interface{}, error) {
	c := parent.Find(TNS, f.Wire)
	if c == nil {
		return nil, nil
	}
	if !f.member(c.Text) {
		return nil, protocolErrorf("field %q: %q is not in the legal value set %v", f.Name, c.Text, f.Choices)
	}
	s := c.Text
	return &s, nil
}

func (f *ChoiceField) Encode(parent *Element, v interface{}, version string) error {
	s, err := f.requireString(v)
	if err != nil {
		return err
	}
	if s == nil {
		return nil
	}
	textChild(parent, f.Wire, *s)
	return nil
}

func (f *ChoiceField) Clean(v interface{}) (interface{}, error) {
	s, err := f.requireString(v)
	if err != nil {
		return nil, err
	}
	if s == nil && f.Default != "" {
		d := f.Default
		s = &d
	}
	if s == nil {
		if f.Required {
			return nil, validationErrorf(f.Name, "required value is missing")
		}
		return nil, nil
	}
	if !f.member(*s) {
		return nil, validationErrorf(f.Name, "%q is not in the legal value set %v", *s, f.Choices)
	}
	return s, nil
}

func (f *ChoiceField) HashText(v interface{}) string {
	s, _ := v.(*string)
	if s == nil {
		return ""
	}
	return *s
}

// BoolField is a boolean stored as a TNS child element.
type BoolField struct {
	Base
}

func (f *BoolField) Decode(parent *Element) (interface{}, error) {
	c := parent.Find(TNS, f.Wire)
	if c == nil {
		return nil, nil
	}
	b, err := strconv.ParseBool(c.Text)
	if err != nil {
		return nil, protocolErrorf("field %q: %q is not a boolean", f.Name, c.Text)
	}
	return &b, nil
}

func (f *BoolField) Encode(parent *Element, v interface{}, version string) error {
	b, _ := v.(*bool)
	if b == nil {
		return nil
	}
	textChild(parent, f.Wire, strconv.FormatBool(*b))
	return nil
}

func (f *BoolField) Clean(v interface{}) (interface{}, error) {
	b, ok := v.(*bool)
	if v != nil && !ok {
		return nil, validationErrorf(f.Name, "expected boolean value, got %T", v)
	}
	if b == nil && f.Required {
		return nil, validationErrorf(f.Name, "required value is missing")
	}
	if b == nil {
		return nil, nil
	}
	return b, nil
}

func (f *BoolField) HashText(v interface{}) string {
	b, _ := v.(*bool)
	if b == nil {
		return ""
	}
	return strconv.FormatBool(*b)
}

// IntField is an integer stored as a TNS child element.
type IntField struct {
	Base
}

func (f *IntField) Decode(parent *Element) (interface{}, error) {
	c := parent.Find(TNS, f.Wire)
	if c == nil {
		return nil, nil
	}
	n, err := strconv.Atoi(c.Text)
	if err != nil {
		return nil, protocolErrorf("field %q: %q is not an integer", f.Name, c.Text)
	}
	return &n, nil
}

func (f *IntField) Encode(parent *Element, v interface{}, version string) error {
	n, _ := v.(*int)
	if n == nil {
		return nil
	}
	textChild(parent, f.Wire, strconv.Itoa(*n))
	return nil
}

func (f *IntField) Clean(v interface{}) (interface{}, error) {
	n, ok := v.(*int)
	if v != nil && !ok {
		return nil, validationErrorf(f.Name, "expected integer value, got %T", v)
	}
	if n == nil && f.Required {
		return nil, validationErrorf(f.Name, "required value is missing")
	}
	if n == nil {
		return nil, nil
	}
	return n, nil
}

func (f *IntField) HashText(v interface{}) string {
	n, _ := v.(*int)
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

// DateTimeField is an RFC 3339 timestamp stored as a TNS child element.
type DateTimeField struct {
	Base
}

func (f *DateTimeField) Decode(parent *Element) (interface{}, error) {
	c := parent.Find(TNS, f.Wire)
	if c == nil {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, c.Text)
	if err != nil {
		return nil, protocolErrorf("field %q: %q is not a valid timestamp", f.Name, c.Text)
	}
	return &t, nil
}

func (f *DateTimeField) Encode(parent *Element, v interface{}, version string) error {
	t, _ := v.(*time.Time)
	if t == nil {
		return nil
	}
	textChild(parent, f.Wire, t.UTC().Format(time.RFC3339))
	return nil
}

func (f *DateTimeField) Clean(v interface{}) (interface{}, error) {
	t, ok := v.(*time.Time)
	if v != nil && !ok {
		return nil, validationErrorf(f.Name, "expected timestamp value, got %T", v)
	}
	if t == nil && f.Required {
		return nil, validationErrorf(f.Name, "required value is missing")
	}
	if t == nil {
		return nil, nil
	}
	return t, nil
}

func (f *DateTimeField) HashText(v interface{}) string {
	t, _ := v.(*time.Time)
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// IDField is a string carried as an XML attribute on the entity's own
// element rather than as a child. Identity types use it for their opaque
// server-issued tokens.
type IDField struct {
	Base
}

func (f *IDField) Decode(parent *Element) (interface{}, error) {
	v, ok := parent.AttrOK(f.Wire)
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (f *IDField) Encode(parent *Element, v interface{}, version string) error {
	s, err := f.requireString(v)
	if err != nil {
		return err
	}
	if s == nil {
		return nil
	}
	parent.SetAttr(f.Wire, *s)
	return nil
}

func (f *IDField) Clean(v interface{}) (interface{}, error) {
	s, err := f.requireString(v)
	if err != nil {
		return nil, err
	}
	if s == nil {
		if f.Required {
			return nil, validationErrorf(f.Name, "required value is missing")
		}
		return nil, nil
	}
	return s, nil
}

func (f *IDField) HashText(v interface{}) string {
	s, _ := v.(*string)
	if s == nil {
		return ""
	}
	return *s
}

// SubTextField reads and writes the entity element's own character data
// instead of a child element (InternetMessageHeader values).
type SubTextField struct {
	Base
}

func (f *SubTextField) Decode(parent *Element) (interface{}, error) {
	if parent.Text == "" {
		return nil, nil
	}
	s := parent.Text
	return &s, nil
}

func (f *SubTextField) Encode(parent *Element, v interface{}, version string) error {
	s, err := f.requireString(v)
	if err != nil {
		return err
	}
	if s == nil {
		return nil
	}
	parent.Text = *s
	return nil
}

func (f *SubTextField) Clean(v interface{}) (interface{}, error) {
	s, err := f.requireString(v)
	if err != nil {
		return nil, err
	}
	if s == nil && f.Required {
		return nil, validationErrorf(f.Name, "required value is missing")
	}
	if s == nil {
		return nil, nil
	}
	return s, nil
}

func (f *SubTextField) HashText(v interface{}) string {
	s, _ := v.(*string)
	if s == nil {
		return ""
	}
	return *s
}

// Base64Field is raw binary carried as base64 element text. A present but
// empty element decodes to an empty non-nil slice; an absent element decodes
// to nil. The two states must never collapse into each other.
type Base64Field struct {
	Base
}

func (f *Base64Field) Decode(parent *Element) (interface{}, error) {
	c := parent.Find(TNS, f.Wire)
	if c == nil {
		return nil, nil
	}
	if c.Text == "" {
		return []byte{}, nil
	}
	b, err := base64.StdEncoding.DecodeString(c.Text)
	if err != nil {
		return nil, protocolErrorf("field %q: invalid base64 payload: %v", f.Name, err)
	}
	return b, nil
}

func (f *Base64Field) Encode(parent *Element, v interface{}, version string) error {
	b, ok := v.([]byte)
	if v != nil && !ok {
		return validationErrorf(f.Name, "expected binary value, got %T", v)
	}
	if b == nil {
		return nil
	}
	textChild(parent, f.Wire, base64.StdEncoding.EncodeToString(b))
	return nil
}

func (f *Base64Field) Clean(v interface{}) (interface{}, error) {
	b, ok := v.([]byte)
	if v != nil && !ok {
		return nil, validationErrorf(f.Name, "expected binary value, got %T", v)
	}
	if b == nil {
		if f.Required {
			return nil, validationErrorf(f.Name, "required value is missing")
		}
		return nil, nil
	}
	return b, nil
}

func (f *Base64Field) HashText(v interface{}) string {
	b, _ := v.([]byte)
	if b == nil {
		return ""
	}
	return "b64:" + base64.StdEncoding.EncodeToString(b)
}

// ElementField is a nested structured entity. When Wire is set the child
// entity element is wrapped in a container element of that name; when empty
// the child is located directly by its own schema tag.
type ElementField struct {
	Base
	New func() Entity
}

func (f *ElementField) Decode(parent *Element) (interface{}, error) {
	child := f.New()
	cs := child.Schema()
	target := parent
	if f.Wire != "" {
		c := parent.Find(TNS, f.Wire)
		if c == nil {
			return nil, nil
		}
		target = c
	}
	el := target.Find(cs.Space, cs.Name)
	if el == nil {
		return nil, nil
	}
	if err := cs.DecodeInto(el, child); err != nil {
		return nil, err
	}
	return child, nil
}

func (f *ElementField) Encode(parent *Element, v interface{}, version string) error {
	if v == nil {
		return nil
	}
	ent, ok := v.(Entity)
	if !ok {
		return validationErrorf(f.Name, "expected entity value, got %T", v)
	}
	el, err := ent.Schema().Encode(ent, version)
	if err != nil {
		return err
	}
	if f.Wire != "" {
		wrap := NewElement(TNS, f.Wire)
		wrap.Add(el)
		el = wrap
	}
	parent.Add(el)
	return nil
}

func (f *ElementField) Clean(v interface{}) (interface{}, error) {
	if v == nil {
		if f.Required {
			return nil, validationErrorf(f.Name, "required value is missing")
		}
		return nil, nil
	}
	ent, ok := v.(Entity)
	if !ok {
		return nil, validationErrorf(f.Name, "expected entity value, got %T", v)
	}
	if err := ent.Schema().Clean(ent); err != nil {
		return nil, err
	}
	return ent, nil
}

func (f *ElementField) HashText(v interface{}) string {
	if v == nil {
		return ""
	}
	ent, ok := v.(Entity)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%016x", ent.Schema().Hash(ent))
}

// ElementListField is a repeated nested entity, optionally wrapped in a
// container element named Wire. Values are []Entity; an empty list is
// omitted on encode.
type ElementListField struct {
	Base
	New func() Entity
}

func (f *ElementListField) IsList() bool { return true }

func (f *ElementListField) Decode(parent *Element) (interface{}, error) {
	cs := f.New().Schema()
	target := parent
	if f.Wire != "" {
		c := parent.Find(TNS, f.Wire)
		if c == nil {
			return nil, nil
		}
		target = c
	}
	els := target.FindAll(cs.Space, cs.Name)
	if len(els) == 0 {
		return nil, nil
	}
	out := make([]Entity, 0, len(els))
	for _, el := range els {
		child := f.New()
		if err := cs.DecodeInto(el, child); err != nil {
			return nil, err
		}
		out = append(out, child)
	}
	return out, nil
}

func (f *ElementListField) Encode(parent *Element, v interface{}, version string) error {
	if v == nil {
		return nil
	}
	list, ok := v.([]Entity)
	if !ok {
		return validationErrorf(f.Name, "expected entity list, got %T", v)
	}
	if len(list) == 0 {
		return nil
	}
	target := parent
	if f.Wire != "" {
		target = NewElement(TNS, f.Wire)
		parent.Add(target)
	}
	for _, ent := range list {
		el, err := ent.Schema().Encode(ent, version)
		if err != nil {
			return err
		}
		target.Add(el)
	}
	return nil
}

func (f *ElementListField) Clean(v interface{}) (interface{}, error) {
	if v == nil {
		if f.Required {
			return nil, validationErrorf(f.Name, "required value is missing")
		}
		return nil, nil
	}
	list, ok := v.([]Entity)
	if !ok {
		return nil, validationErrorf(f.Name, "expected entity list, got %T", v)
	}
	for _, ent := range list {
		if err := ent.Schema().Clean(ent); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (f *ElementListField) HashText(v interface{}) string {
	list, _ := v.([]Entity)
	if len(list) == 0 {
		return ""
	}
	parts := make([]string, 0, len(list))
	for _, ent := range list {
		parts = append(parts, fmt.Sprintf("%016x", ent.Schema().Hash(ent)))
	}
	return strings.Join(parts, ",")
}

// StringListField is a repeated scalar string inside a container element
// (Categories holding String children).
type StringListField struct {
	Base
	ItemTag string
}

func (f *StringListField) IsList() bool { return true }

func (f *StringListField) itemTag() string {
	if f.ItemTag != "" {
		return f.ItemTag
	}
	return "String"
}

func (f *StringListField) Decode(parent *Element) (interface{}, error) {
	c := parent.Find(TNS, f.Wire)
	if c == nil {
		return nil, nil
	}
	items := c.FindAll(TNS, f.itemTag())
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Text)
	}
	return out, nil
}

func (f *StringListField) Encode(parent *Element, v interface{}, version string) error {
	list, ok := v.([]string)
	if v != nil && !ok {
		return validationErrorf(f.Name, "expected string list, got %T", v)
	}
	if len(list) == 0 {
		return nil
	}
	c := NewElement(TNS, f.Wire)
	for _, s := range list {
		textChild(c, f.itemTag(), s)
	}
	parent.Add(c)
	return nil
}

func (f *StringListField) Clean(v interface{}) (interface{}, error) {
	list, ok := v.([]string)
	if v != nil && !ok {
		return nil, validationErrorf(f.Name, "expected string list, got %T", v)
	}
	if len(list) == 0 && f.Required {
		return nil, validationErrorf(f.Name, "required value is missing")
	}
	if v == nil {
		return nil, nil
	}
	return list, nil
}

func (f *StringListField) HashText(v interface{}) string {
	list, _ := v.([]string)
	return strings.Join(list, ",")
}

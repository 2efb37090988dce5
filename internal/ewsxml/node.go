package ewsxml

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// The two fixed EWS namespaces. Every element this layer produces or consumes
// lives in one of them; requests qualify tags with the conventional two-letter
// prefixes ("t:" for types, "m:" for messages).
const (
	TNS = "http://schemas.microsoft.com/exchange/services/2006/types"
	MNS = "http://schemas.microsoft.com/exchange/services/2006/messages"

	SOAPNS = "http://schemas.xmlsoap.org/soap/envelope/"
	XSINS  = "http://www.w3.org/2001/XMLSchema-instance"
)

var nsPrefix = map[string]string{
	TNS:    "t",
	MNS:    "m",
	SOAPNS: "soap",
	XSINS:  "xsi",
}

// Prefix returns the conventional prefix for one of the fixed namespaces.
func Prefix(space string) string {
	p, ok := nsPrefix[space]
	if !ok {
		return ""
	}
	return p
}

// QName renders the prefixed request tag for a namespace + local name pair,
// e.g. QName(TNS, "ItemId") == "t:ItemId".
func QName(space, local string) string {
	if p := Prefix(space); p != "" {
		return p + ":" + local
	}
	return local
}

// Attr is a single unqualified XML attribute.
type Attr struct {
	Name  string
	Value string
}

// Element is a minimal ordered XML node. Decoded elements carry the resolved
// namespace URI in Space; encoded elements are rendered with the conventional
// prefix for their namespace. Child order is preserved in both directions.
type Element struct {
	Space    string
	Local    string
	Attrs    []Attr
	Text     string
	Children []*Element
}

// NewElement returns an empty element with the given qualified name.
func NewElement(space, local string) *Element {
	return &Element{Space: space, Local: local}
}

// Attr returns the value of the named attribute, or "" when absent.
func (e *Element) Attr(name string) string {
	v, _ := e.AttrOK(name)
	return v
}

// AttrOK returns the value of the named attribute and whether it is present.
func (e *Element) AttrOK(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// SetAttr sets or replaces the named attribute.
func (e *Element) SetAttr(name, value string) {
	for i, a := range e.Attrs {
		if a.Name == name {
			e.Attrs[i].Value = value
			return
		}
	}
	e.Attrs = append(e.Attrs, Attr{Name: name, Value: value})
}

// Add appends a child element.
func (e *Element) Add(child *Element) {
	e.Children = append(e.Children, child)
}

// Find returns the first direct child with the given qualified name, or nil.
func (e *Element) Find(space, local string) *Element {
	for _, c := range e.Children {
		if c.Space == space && c.Local == local {
			return c
		}
	}
	return nil
}

// FindAll returns all direct children with the given qualified name.
func (e *Element) FindAll(space, local string) []*Element {
	var out []*Element
	for _, c := range e.Children {
		if c.Space == space && c.Local == local {
			out = append(out, c)
		}
	}
	return out
}

// Release drops the element's children, text and attributes so that large
// decoded batches do not pin memory after extraction.
func (e *Element) Release() {
	e.Attrs = nil
	e.Text = ""
	e.Children = nil
}

// Parse reads one XML document into an Element tree. Namespace prefixes are
// resolved by the decoder; only element-local attribute names are retained,
// which matches how EWS qualifies attributes (it does not).
func Parse(r io.Reader) (*Element, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, fmt.Errorf("no root element found")
		}
		if err != nil {
			return nil, fmt.Errorf("malformed XML: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		return parseElement(dec, start)
	}
}

func parseElement(dec *xml.Decoder, start xml.StartElement) (*Element, error) {
	el := &Element{Space: start.Name.Space, Local: start.Name.Local}
	for _, a := range start.Attr {
		if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
			continue
		}
		el.Attrs = append(el.Attrs, Attr{Name: a.Name.Local, Value: a.Value})
	}
	var text strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("malformed XML inside <%s>: %w", start.Name.Local, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := parseElement(dec, t)
			if err != nil {
				return nil, err
			}
			el.Children = append(el.Children, child)
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			el.Text = strings.TrimSpace(text.String())
			return el, nil
		}
	}
}

// WriteXML renders the element and its subtree through enc, qualifying tags
// with the conventional namespace prefixes. Root-level namespace declarations
// are the caller's concern (the SOAP envelope builder adds them as literal
// attributes).
func (e *Element) WriteXML(enc *xml.Encoder) error {
	start := xml.StartElement{Name: xml.Name{Local: QName(e.Space, e.Local)}}
	for _, a := range e.Attrs {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: a.Name}, Value: a.Value})
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if e.Text != "" {
		if err := enc.EncodeToken(xml.CharData(e.Text)); err != nil {
			return err
		}
	}
	for _, c := range e.Children {
		if err := c.WriteXML(enc); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

// MarshalString renders the element subtree as a string, mainly for tests and
// request logging.
func (e *Element) MarshalString() (string, error) {
	var sb strings.Builder
	enc := xml.NewEncoder(&sb)
	if err := e.WriteXML(enc); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Package properties holds the shared EWS property entities: the opaque
// server-issued identity types and the small structured properties (mailbox,
// message header, attendee) that item and attachment entities embed.
package properties

import (
	"fmt"

	"ews-api/internal/ewsxml"
)

// strVal bridges a string struct field to the engine's pointer convention:
// the empty string counts as absent.
func strVal(s string) interface{} {
	if s == "" {
		return nil
	}
	return &s
}

func strDeref(v interface{}) string {
	if v == nil {
		return ""
	}
	s, ok := v.(*string)
	if !ok || s == nil {
		return ""
	}
	return *s
}

var itemIDSchema = ewsxml.NewSchema(ewsxml.TNS, "ItemId",
	&ewsxml.IDField{Base: ewsxml.Base{Name: "id", Wire: "Id", Required: true}},
	&ewsxml.IDField{Base: ewsxml.Base{Name: "changekey", Wire: "ChangeKey", Required: true}},
)

// ItemID is the (id, change key) pair that currently identifies a server-side
// item. Both values are issued by Exchange; client code only ever echoes them
// back. The pair encodes as XML attributes, not child elements.
type ItemID struct {
	ID        string
	ChangeKey string
}

func (m *ItemID) Schema() *ewsxml.Schema { return itemIDSchema }

func (m *ItemID) Get(field string) interface{} {
	switch field {
	case "id":
		return strVal(m.ID)
	case "changekey":
		return strVal(m.ChangeKey)
	}
	panic(fmt.Sprintf("properties: unknown ItemID field %q", field))
}

func (m *ItemID) Set(field string, v interface{}) {
	switch field {
	case "id":
		m.ID = strDeref(v)
	case "changekey":
		m.ChangeKey = strDeref(v)
	default:
		panic(fmt.Sprintf("properties: unknown ItemID field %q", field))
	}
}

// Equal compares both tokens directly, bypassing structural hashing.
func (m *ItemID) Equal(other *ItemID) bool {
	if other == nil {
		return false
	}
	return m.ID == other.ID && m.ChangeKey == other.ChangeKey
}

// DecodeItemID materializes an ItemId element.
func DecodeItemID(el *ewsxml.Element) (*ItemID, error) {
	id := &ItemID{}
	if err := itemIDSchema.DecodeInto(el, id); err != nil {
		return nil, err
	}
	return id, nil
}

var parentItemIDSchema = ewsxml.NewSchema(ewsxml.MNS, "ParentItemId",
	&ewsxml.IDField{Base: ewsxml.Base{Name: "id", Wire: "Id", Required: true}},
	&ewsxml.IDField{Base: ewsxml.Base{Name: "changekey", Wire: "ChangeKey", Required: true}},
)

// ParentItemID is an ItemID under the messages namespace with its own wire
// tag, used when an operation addresses the item an attachment hangs off.
type ParentItemID struct {
	ItemID
}

func (m *ParentItemID) Schema() *ewsxml.Schema { return parentItemIDSchema }

// NewParentItemID echoes an existing item identity under the ParentItemId tag.
func NewParentItemID(id *ItemID) *ParentItemID {
	return &ParentItemID{ItemID: *id}
}

var rootItemIDSchema = ewsxml.NewSchema(ewsxml.MNS, "RootItemId",
	&ewsxml.IDField{Base: ewsxml.Base{Name: "id", Wire: "RootItemId", Required: true}},
	&ewsxml.IDField{Base: ewsxml.Base{Name: "changekey", Wire: "RootItemChangeKey", Required: true}},
)

// RootItemID carries the updated identity of the item a DeleteAttachment
// call modified. Its attributes use the protocol-specific RootItemId /
// RootItemChangeKey names.
type RootItemID struct {
	ItemID
}

func (m *RootItemID) Schema() *ewsxml.Schema { return rootItemIDSchema }

// DecodeRootItemID materializes a RootItemId response element.
func DecodeRootItemID(el *ewsxml.Element) (*RootItemID, error) {
	id := &RootItemID{}
	if err := rootItemIDSchema.DecodeInto(el, id); err != nil {
		return nil, err
	}
	return id, nil
}

var attachmentIDSchema = ewsxml.NewSchema(ewsxml.TNS, "AttachmentId",
	&ewsxml.IDField{Base: ewsxml.Base{Name: "id", Wire: "Id", Required: true}},
	&ewsxml.IDField{Base: ewsxml.Base{Name: "root_id", Wire: "RootItemId"}},
	&ewsxml.IDField{Base: ewsxml.Base{Name: "root_changekey", Wire: "RootItemChangeKey"}},
)

// AttachmentID identifies an attachment. The root item pair is only ever
// populated inside a CreateAttachment response; Exchange rejects requests
// that echo those attributes back, so it must be stripped before reuse.
type AttachmentID struct {
	ID            string
	RootID        string
	RootChangeKey string
}

func (a *AttachmentID) Schema() *ewsxml.Schema { return attachmentIDSchema }

func (a *AttachmentID) Get(field string) interface{} {
	switch field {
	case "id":
		return strVal(a.ID)
	case "root_id":
		return strVal(a.RootID)
	case "root_changekey":
		return strVal(a.RootChangeKey)
	}
	panic(fmt.Sprintf("properties: unknown AttachmentID field %q", field))
}

func (a *AttachmentID) Set(field string, v interface{}) {
	switch field {
	case "id":
		a.ID = strDeref(v)
	case "root_id":
		a.RootID = strDeref(v)
	case "root_changekey":
		a.RootChangeKey = strDeref(v)
	default:
		panic(fmt.Sprintf("properties: unknown AttachmentID field %q", field))
	}
}

// StripRootItem clears the creation-only root item pair so the identity can
// be sent in subsequent requests.
func (a *AttachmentID) StripRootItem() {
	a.RootID = ""
	a.RootChangeKey = ""
}

// Equal compares the attachment token directly.
func (a *AttachmentID) Equal(other *AttachmentID) bool {
	if other == nil {
		return false
	}
	return a.ID == other.ID && a.RootID == other.RootID && a.RootChangeKey == other.RootChangeKey
}

// DecodeAttachmentID materializes an AttachmentId element.
func DecodeAttachmentID(el *ewsxml.Element) (*AttachmentID, error) {
	id := &AttachmentID{}
	if err := attachmentIDSchema.DecodeInto(el, id); err != nil {
		return nil, err
	}
	return id, nil
}

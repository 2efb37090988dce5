package attachments

import (
	"context"

	"ews-api/internal/ewsxml"
	"ews-api/internal/items"
)

var itemAttachmentSchema = ewsxml.NewSchema(ewsxml.TNS, "ItemAttachment",
	append(baseFields(),
		&ewsxml.ElementField{Base: ewsxml.Base{Name: "item"}, New: func() ewsxml.Entity { return &items.Message{} }},
	)...,
)

// ItemAttachment is an attachment wrapping a whole nested message. Like file
// content, the nested item is heavy and lazily resolved; unlike file content
// the server must return one, so a fetch yielding none is a protocol error.
type ItemAttachment struct {
	Attachment

	item         *items.Message
	itemResolved bool
}

// NewItemAttachment builds an unattached item attachment holding msg.
func NewItemAttachment(parent *items.Message, name string, msg *items.Message) *ItemAttachment {
	ia := &ItemAttachment{}
	ia.Parent = parent
	ia.Name = &name
	ia.SetItem(msg)
	return ia
}

func (a *ItemAttachment) Schema() *ewsxml.Schema { return itemAttachmentSchema }

func (a *ItemAttachment) Get(field string) interface{} {
	if v, ok := a.getBase(field); ok {
		return v
	}
	if field == "item" {
		if a.item == nil {
			return nil
		}
		return a.item
	}
	panic(unknownField("ItemAttachment", field))
}

func (a *ItemAttachment) Set(field string, v interface{}) {
	if a.setBase(field, v) {
		return
	}
	if field != "item" {
		panic(unknownField("ItemAttachment", field))
	}
	if v == nil {
		a.item = nil
		return
	}
	a.item = v.(*items.Message)
	a.itemResolved = true
}

// Attach creates the attachment on the server and binds the returned identity.
func (a *ItemAttachment) Attach(ctx context.Context) error {
	return attach(ctx, &a.Attachment, a)
}

// SetItem replaces the nested message and marks it resolved.
func (a *ItemAttachment) SetItem(msg *items.Message) {
	a.item = msg
	a.itemResolved = msg != nil
}

// Item returns the nested message, fetching it with MIME content on first
// access. The fetched message inherits the parent's service session so its
// own attachments can be operated on in turn.
func (a *ItemAttachment) Item(ctx context.Context) (*items.Message, error) {
	if a.itemResolved {
		return a.item, nil
	}
	if a.AttachmentID == nil {
		return nil, ErrNotAttached
	}

	elem, err := fetch(ctx, &a.Attachment, true)
	if err != nil {
		return nil, err
	}
	v, err := itemAttachmentSchema.Field("item").Decode(elem)
	if err != nil {
		return nil, err
	}
	elem.Release()
	if v == nil {
		return nil, ewsxml.ProtocolErrorf("GetAttachment returned no item for an item attachment")
	}

	msg := v.(*items.Message)
	if a.Parent != nil {
		msg.Session = a.Parent.Session
	}
	a.item = msg
	a.itemResolved = true
	return a.item, nil
}

// Hash follows the identity-once-attached scheme shared by all entities
// carrying server identities.
func (a *ItemAttachment) Hash() uint64 {
	return identityHash(a.AttachmentID, itemAttachmentSchema, a)
}

// Equal reports equality via the hash scheme above.
func (a *ItemAttachment) Equal(other *ItemAttachment) bool {
	if other == nil {
		return false
	}
	return a.Hash() == other.Hash()
}

// DecodeItemAttachment materializes an ItemAttachment element for the given
// parent item.
func DecodeItemAttachment(el *ewsxml.Element, parent *items.Message) (*ItemAttachment, error) {
	ia := &ItemAttachment{}
	ia.Parent = parent
	if err := itemAttachmentSchema.DecodeInto(el, ia); err != nil {
		return nil, err
	}
	return ia, nil
}

// Package attachments implements the attachment entities and their lifecycle
// against the Exchange service: create (attach), delete (detach) and lazy
// retrieval of heavy payloads. An attachment starts unattached, becomes
// attached when CreateAttachment succeeds, and is consumed once detached.
// Re-attaching a detached instance is not supported; construct a new one.
package attachments

import (
	"context"
	"fmt"
	"mime"
	"path"
	"time"

	"ews-api/internal/ewsclient"
	"ews-api/internal/ewsxml"
	"ews-api/internal/items"
	"ews-api/internal/properties"
)

// Attachment carries the fields shared by file and item attachments plus the
// relation to the owning item. The parent is referenced, never owned: a
// detached attachment drops the reference and the item lives on.
type Attachment struct {
	Parent *items.Message

	AttachmentID     *properties.AttachmentID
	Name             *string
	ContentType      *string
	ContentID        *string
	ContentLocation  *string
	Size             *int
	LastModifiedTime *time.Time
	IsInline         *bool
}

// baseFields returns the shared descriptor list. Each concrete schema
// appends its own fields; the order here is the protocol's, not ours.
func baseFields() []ewsxml.Field {
	return []ewsxml.Field{
		&ewsxml.ElementField{Base: ewsxml.Base{Name: "attachment_id"}, New: func() ewsxml.Entity { return &properties.AttachmentID{} }},
		&ewsxml.TextField{Base: ewsxml.Base{Name: "name", Wire: "Name"}},
		&ewsxml.TextField{Base: ewsxml.Base{Name: "content_type", Wire: "ContentType"}},
		&ewsxml.TextField{Base: ewsxml.Base{Name: "content_id", Wire: "ContentId"}},
		&ewsxml.URIField{Base: ewsxml.Base{Name: "content_location", Wire: "ContentLocation"}},
		&ewsxml.IntField{Base: ewsxml.Base{Name: "size", Wire: "Size", ReadOnly: true}},
		&ewsxml.DateTimeField{Base: ewsxml.Base{Name: "last_modified_time", Wire: "LastModifiedTime"}},
		&ewsxml.BoolField{Base: ewsxml.Base{Name: "is_inline", Wire: "IsInline"}},
	}
}

func (a *Attachment) getBase(field string) (interface{}, bool) {
	switch field {
	case "attachment_id":
		if a.AttachmentID == nil {
			return nil, true
		}
		return a.AttachmentID, true
	case "name":
		return a.Name, true
	case "content_type":
		return a.ContentType, true
	case "content_id":
		return a.ContentID, true
	case "content_location":
		return a.ContentLocation, true
	case "size":
		return a.Size, true
	case "last_modified_time":
		return a.LastModifiedTime, true
	case "is_inline":
		return a.IsInline, true
	}
	return nil, false
}

func (a *Attachment) setBase(field string, v interface{}) bool {
	switch field {
	case "attachment_id":
		if v == nil {
			a.AttachmentID = nil
			return true
		}
		a.AttachmentID = v.(*properties.AttachmentID)
	case "name":
		a.Name, _ = v.(*string)
	case "content_type":
		a.ContentType, _ = v.(*string)
	case "content_id":
		a.ContentID, _ = v.(*string)
	case "content_location":
		a.ContentLocation, _ = v.(*string)
	case "size":
		a.Size, _ = v.(*int)
	case "last_modified_time":
		a.LastModifiedTime, _ = v.(*time.Time)
	case "is_inline":
		a.IsInline, _ = v.(*bool)
	default:
		return false
	}
	return true
}

// Validate defaults the content type from the attachment name when unset.
func (a *Attachment) Validate() error {
	if a.ContentType == nil && a.Name != nil {
		ct := mime.TypeByExtension(path.Ext(*a.Name))
		if ct == "" {
			ct = "application/octet-stream"
		}
		a.ContentType = &ct
	}
	return nil
}

// IsAttached reports whether the server has issued an identity for this
// attachment.
func (a *Attachment) IsAttached() bool {
	return a.AttachmentID != nil
}

func (a *Attachment) session() (ewsclient.Caller, error) {
	if a.Parent == nil || a.Parent.Session == nil {
		return nil, ErrNoParentItem
	}
	return a.Parent.Session, nil
}

// identityHash hashes on the server identity once known, falling back to the
// structural hash of the concrete entity beforehand. Instances therefore
// change hash across Attach; they must not sit in hash-keyed containers
// across that transition.
func identityHash(id *properties.AttachmentID, schema *ewsxml.Schema, e ewsxml.Entity) uint64 {
	if id != nil {
		return id.Schema().Hash(id)
	}
	return schema.Hash(e)
}

// attach runs the CreateAttachment exchange for one concrete attachment
// entity and wires the returned identity into it. On any consistency failure
// nothing is mutated.
func attach(ctx context.Context, base *Attachment, entity ewsxml.Entity) error {
	if base.AttachmentID != nil {
		return ErrAlreadyAttached
	}
	sess, err := base.session()
	if err != nil {
		return err
	}
	if base.Parent.ItemID == nil {
		return ErrNoParentItem
	}

	results, err := sess.Call(ctx, &ewsclient.CreateAttachment{
		ParentItem: base.Parent.ItemID,
		Mailbox:    base.Parent.Mailbox,
		Items:      []ewsxml.Entity{entity},
	})
	if err != nil {
		return err
	}
	if len(results) != 1 {
		return ewsxml.ProtocolErrorf("expected 1 CreateAttachment result, got %d", len(results))
	}
	if results[0].Err != nil {
		return results[0].Err
	}

	elem := results[0].Elem
	idEl := elem.Find(ewsxml.TNS, "AttachmentId")
	if idEl == nil {
		return ewsxml.ProtocolErrorf("CreateAttachment response carries no AttachmentId")
	}
	attID, err := properties.DecodeAttachmentID(idEl)
	if err != nil {
		return err
	}
	if attID.RootID != base.Parent.ItemID.ID {
		return ewsxml.ProtocolErrorf("created attachment belongs to item %q, parent item is %q",
			attID.RootID, base.Parent.ItemID.ID)
	}
	if attID.RootChangeKey == "" || attID.RootChangeKey == base.Parent.ItemID.ChangeKey {
		return ewsxml.ProtocolErrorf("server did not advance the parent change key on CreateAttachment")
	}

	base.Parent.ItemID.ChangeKey = attID.RootChangeKey
	// Exchange rejects requests that echo the root item pair back.
	attID.StripRootItem()
	base.AttachmentID = attID
	elem.Release()
	return nil
}

// Detach deletes the attachment remotely, advances the parent item's change
// key and consumes this instance: both the identity and the parent reference
// are cleared.
func (a *Attachment) Detach(ctx context.Context) error {
	if a.AttachmentID == nil {
		return ErrNotAttached
	}
	sess, err := a.session()
	if err != nil {
		return err
	}
	if a.Parent.ItemID == nil {
		return ErrNoParentItem
	}

	results, err := sess.Call(ctx, &ewsclient.DeleteAttachment{
		IDs:     []*properties.AttachmentID{a.AttachmentID},
		Mailbox: a.Parent.Mailbox,
	})
	if err != nil {
		return err
	}
	if len(results) != 1 {
		return ewsxml.ProtocolErrorf("expected 1 DeleteAttachment result, got %d", len(results))
	}
	if results[0].Err != nil {
		return results[0].Err
	}

	root, err := properties.DecodeRootItemID(results[0].Elem)
	if err != nil {
		return err
	}
	if root.ID != a.Parent.ItemID.ID {
		return ewsxml.ProtocolErrorf("DeleteAttachment root item %q does not match parent item %q",
			root.ID, a.Parent.ItemID.ID)
	}
	if root.ChangeKey == a.Parent.ItemID.ChangeKey {
		return ewsxml.ProtocolErrorf("server did not advance the parent change key on DeleteAttachment")
	}

	a.Parent.ItemID.ChangeKey = root.ChangeKey
	a.Parent = nil
	a.AttachmentID = nil
	return nil
}

// fetch runs the GetAttachment exchange for one attachment identity and
// returns the single payload fragment.
func fetch(ctx context.Context, base *Attachment, includeMIME bool) (*ewsxml.Element, error) {
	sess, err := base.session()
	if err != nil {
		return nil, err
	}
	results, err := sess.Call(ctx, &ewsclient.GetAttachment{
		IDs:                []*properties.AttachmentID{base.AttachmentID},
		Mailbox:            base.Parent.Mailbox,
		IncludeMIMEContent: includeMIME,
	})
	if err != nil {
		return nil, err
	}
	if len(results) != 1 {
		return nil, ewsxml.ProtocolErrorf("expected 1 GetAttachment result, got %d", len(results))
	}
	if results[0].Err != nil {
		return nil, results[0].Err
	}
	if results[0].Elem == nil {
		return nil, ewsxml.ProtocolErrorf("GetAttachment returned an empty payload")
	}
	return results[0].Elem, nil
}

func unknownField(kind, field string) string {
	return fmt.Sprintf("attachments: unknown %s field %q", kind, field)
}

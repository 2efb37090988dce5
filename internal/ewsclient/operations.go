package ewsclient

import (
	"strconv"

	"ews-api/internal/ewsxml"
	"ews-api/internal/properties"
)

// firstChild pulls the single entity element out of a response container,
// e.g. the attachment inside <m:Attachments>.
func firstChild(msg *ewsxml.Element, container string) (*ewsxml.Element, error) {
	c := msg.Find(ewsxml.MNS, container)
	if c == nil || len(c.Children) == 0 {
		return nil, ewsxml.ProtocolErrorf("response message has no %s payload", container)
	}
	return c.Children[0], nil
}

// CreateAttachment attaches pre-encoded attachment entities to an item. The
// response payload per item is the created attachment element carrying its
// new AttachmentId. Mailbox is the account owning the parent item; item
// identities are mailbox-scoped, so writes must impersonate the same account
// the item was listed under.
type CreateAttachment struct {
	ParentItem *properties.ItemID
	Mailbox    string
	Items      []ewsxml.Entity
}

func (op *CreateAttachment) OpName() string { return "CreateAttachment" }

func (op *CreateAttachment) ItemCount() int { return len(op.Items) }

func (op *CreateAttachment) Impersonate() string { return op.Mailbox }

func (op *CreateAttachment) BuildBody(version string) (*ewsxml.Element, error) {
	body := ewsxml.NewElement(ewsxml.MNS, "CreateAttachment")
	pid := properties.NewParentItemID(op.ParentItem)
	pel, err := pid.Schema().Encode(pid, version)
	if err != nil {
		return nil, err
	}
	body.Add(pel)
	atts := ewsxml.NewElement(ewsxml.MNS, "Attachments")
	for _, ent := range op.Items {
		el, err := ent.Schema().Encode(ent, version)
		if err != nil {
			return nil, err
		}
		atts.Add(el)
	}
	body.Add(atts)
	return body, nil
}

func (op *CreateAttachment) Payload(msg *ewsxml.Element) (*ewsxml.Element, error) {
	return firstChild(msg, "Attachments")
}

// DeleteAttachment removes attachments by identity. The response payload per
// item is a RootItemId element carrying the parent item's advanced change key.
type DeleteAttachment struct {
	IDs     []*properties.AttachmentID
	Mailbox string
}

func (op *DeleteAttachment) OpName() string { return "DeleteAttachment" }

func (op *DeleteAttachment) ItemCount() int { return len(op.IDs) }

func (op *DeleteAttachment) Impersonate() string { return op.Mailbox }

func (op *DeleteAttachment) BuildBody(version string) (*ewsxml.Element, error) {
	body := ewsxml.NewElement(ewsxml.MNS, "DeleteAttachment")
	ids := ewsxml.NewElement(ewsxml.MNS, "AttachmentIds")
	for _, id := range op.IDs {
		el, err := id.Schema().Encode(id, version)
		if err != nil {
			return nil, err
		}
		ids.Add(el)
	}
	body.Add(ids)
	return body, nil
}

func (op *DeleteAttachment) Payload(msg *ewsxml.Element) (*ewsxml.Element, error) {
	root := msg.Find(ewsxml.MNS, "RootItemId")
	if root == nil {
		return nil, ewsxml.ProtocolErrorf("response message has no RootItemId payload")
	}
	return root, nil
}

// GetAttachment fetches attachment payloads by identity. The response payload
// per item is the full attachment element.
type GetAttachment struct {
	IDs                []*properties.AttachmentID
	Mailbox            string
	IncludeMIMEContent bool
}

func (op *GetAttachment) OpName() string { return "GetAttachment" }

func (op *GetAttachment) ItemCount() int { return len(op.IDs) }

func (op *GetAttachment) Impersonate() string { return op.Mailbox }

func (op *GetAttachment) BuildBody(version string) (*ewsxml.Element, error) {
	body := ewsxml.NewElement(ewsxml.MNS, "GetAttachment")
	shape := ewsxml.NewElement(ewsxml.MNS, "AttachmentShape")
	mime := ewsxml.NewElement(ewsxml.TNS, "IncludeMimeContent")
	mime.Text = strconv.FormatBool(op.IncludeMIMEContent)
	shape.Add(mime)
	body.Add(shape)
	ids := ewsxml.NewElement(ewsxml.MNS, "AttachmentIds")
	for _, id := range op.IDs {
		el, err := id.Schema().Encode(id, version)
		if err != nil {
			return nil, err
		}
		ids.Add(el)
	}
	body.Add(ids)
	return body, nil
}

func (op *GetAttachment) Payload(msg *ewsxml.Element) (*ewsxml.Element, error) {
	return firstChild(msg, "Attachments")
}

// FindItem pages through a distinguished folder. A single logical request,
// so one response message; its payload is the RootFolder element holding the
// matched items.
type FindItem struct {
	FolderID   string
	Mailbox    string
	Limit      int
	Offset     int
	Properties []string
}

func (op *FindItem) OpName() string { return "FindItem" }

func (op *FindItem) ItemCount() int { return 1 }

func (op *FindItem) Impersonate() string { return op.Mailbox }

func (op *FindItem) BuildBody(version string) (*ewsxml.Element, error) {
	body := ewsxml.NewElement(ewsxml.MNS, "FindItem")
	body.SetAttr("Traversal", "Shallow")
	body.Add(itemShape("IdOnly", op.Properties))

	view := ewsxml.NewElement(ewsxml.MNS, "IndexedPageItemView")
	view.SetAttr("MaxEntriesReturned", strconv.Itoa(op.Limit))
	view.SetAttr("Offset", strconv.Itoa(op.Offset))
	view.SetAttr("BasePoint", "Beginning")
	body.Add(view)

	folders := ewsxml.NewElement(ewsxml.MNS, "ParentFolderIds")
	folder := ewsxml.NewElement(ewsxml.TNS, "DistinguishedFolderId")
	folder.SetAttr("Id", op.FolderID)
	folders.Add(folder)
	body.Add(folders)
	return body, nil
}

func (op *FindItem) Payload(msg *ewsxml.Element) (*ewsxml.Element, error) {
	root := msg.Find(ewsxml.MNS, "RootFolder")
	if root == nil {
		return nil, ewsxml.ProtocolErrorf("response message has no RootFolder payload")
	}
	return root, nil
}

// GetItem fetches full items by identity; one response message per id, each
// carrying the item element.
type GetItem struct {
	IDs        []*properties.ItemID
	Mailbox    string
	BaseShape  string
	Properties []string
}

func (op *GetItem) OpName() string { return "GetItem" }

func (op *GetItem) ItemCount() int { return len(op.IDs) }

func (op *GetItem) Impersonate() string { return op.Mailbox }

func (op *GetItem) BuildBody(version string) (*ewsxml.Element, error) {
	shape := op.BaseShape
	if shape == "" {
		shape = "Default"
	}
	body := ewsxml.NewElement(ewsxml.MNS, "GetItem")
	body.Add(itemShape(shape, op.Properties))
	ids := ewsxml.NewElement(ewsxml.MNS, "ItemIds")
	for _, id := range op.IDs {
		el, err := id.Schema().Encode(id, version)
		if err != nil {
			return nil, err
		}
		ids.Add(el)
	}
	body.Add(ids)
	return body, nil
}

func (op *GetItem) Payload(msg *ewsxml.Element) (*ewsxml.Element, error) {
	return firstChild(msg, "Items")
}

func itemShape(baseShape string, props []string) *ewsxml.Element {
	shape := ewsxml.NewElement(ewsxml.MNS, "ItemShape")
	base := ewsxml.NewElement(ewsxml.TNS, "BaseShape")
	base.Text = baseShape
	shape.Add(base)
	if len(props) > 0 {
		extra := ewsxml.NewElement(ewsxml.TNS, "AdditionalProperties")
		for _, p := range props {
			uri := ewsxml.NewElement(ewsxml.TNS, "FieldURI")
			uri.SetAttr("FieldURI", p)
			extra.Add(uri)
		}
		shape.Add(extra)
	}
	return shape
}

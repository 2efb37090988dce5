package attachments

import (
	"context"

	"ews-api/internal/ewsxml"
	"ews-api/internal/items"
)

var fileAttachmentSchema = ewsxml.NewSchema(ewsxml.TNS, "FileAttachment",
	append(baseFields(),
		&ewsxml.BoolField{Base: ewsxml.Base{Name: "is_contact_photo", Wire: "IsContactPhoto"}},
		&ewsxml.Base64Field{Base: ewsxml.Base{Name: "content", Wire: "Content"}},
	)...,
)

// FileAttachment is an attachment carrying raw bytes. The content is heavy
// and lazily resolved: servers omit it from create and list responses, so the
// bytes are only on hand after SetContent or one Content fetch.
//
// The resolved flag keeps three states apart: not fetched yet, fetched and
// absent (nil), fetched and empty ([]byte{}).
type FileAttachment struct {
	Attachment

	IsContactPhoto *bool

	content         []byte
	contentResolved bool
}

// NewFileAttachment builds an unattached file attachment with local content.
func NewFileAttachment(parent *items.Message, name string, content []byte) *FileAttachment {
	fa := &FileAttachment{}
	fa.Parent = parent
	fa.Name = &name
	fa.SetContent(content)
	return fa
}

func (a *FileAttachment) Schema() *ewsxml.Schema { return fileAttachmentSchema }

func (a *FileAttachment) Get(field string) interface{} {
	if v, ok := a.getBase(field); ok {
		return v
	}
	switch field {
	case "is_contact_photo":
		return a.IsContactPhoto
	case "content":
		if a.content == nil {
			return nil
		}
		return a.content
	}
	panic(unknownField("FileAttachment", field))
}

func (a *FileAttachment) Set(field string, v interface{}) {
	if a.setBase(field, v) {
		return
	}
	switch field {
	case "is_contact_photo":
		a.IsContactPhoto, _ = v.(*bool)
	case "content":
		a.content, _ = v.([]byte)
		if v != nil {
			a.contentResolved = true
		}
	default:
		panic(unknownField("FileAttachment", field))
	}
}

// Attach creates the attachment on the server and binds the returned identity.
func (a *FileAttachment) Attach(ctx context.Context) error {
	return attach(ctx, &a.Attachment, a)
}

// SetContent replaces the local content and marks it resolved. A nil slice
// means resolved-and-absent; use an empty slice for an empty payload.
func (a *FileAttachment) SetContent(b []byte) {
	a.content = b
	a.contentResolved = true
}

// Content returns the attachment bytes, fetching them from the server on
// first access. The result is cached whatever it is, including nil: a second
// call never re-issues the request.
func (a *FileAttachment) Content(ctx context.Context) ([]byte, error) {
	if a.contentResolved {
		return a.content, nil
	}
	if a.AttachmentID == nil {
		return nil, ErrNotAttached
	}

	elem, err := fetch(ctx, &a.Attachment, false)
	if err != nil {
		return nil, err
	}
	v, err := fileAttachmentSchema.Field("content").Decode(elem)
	if err != nil {
		return nil, err
	}
	elem.Release()

	a.content, _ = v.([]byte)
	a.contentResolved = true
	return a.content, nil
}

// Hash follows the identity-once-attached scheme shared by all entities
// carrying server identities.
func (a *FileAttachment) Hash() uint64 {
	return identityHash(a.AttachmentID, fileAttachmentSchema, a)
}

// Equal reports equality via the hash scheme above.
func (a *FileAttachment) Equal(other *FileAttachment) bool {
	if other == nil {
		return false
	}
	return a.Hash() == other.Hash()
}

// DecodeFileAttachment materializes a FileAttachment element for the given
// parent item.
func DecodeFileAttachment(el *ewsxml.Element, parent *items.Message) (*FileAttachment, error) {
	fa := &FileAttachment{}
	fa.Parent = parent
	if err := fileAttachmentSchema.DecodeInto(el, fa); err != nil {
		return nil, err
	}
	return fa, nil
}

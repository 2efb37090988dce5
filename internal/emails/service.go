// Package emails exposes the mailbox operations of this service: listing and
// reading messages from Exchange and managing file attachments on them. It
// drives the entity layer against the EWS caller and keeps an audit trail of
// attachment mutations in the mail store.
package emails

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/google/uuid"

	"ews-api/internal/attachments"
	"ews-api/internal/ewsclient"
	"ews-api/internal/ewsxml"
	"ews-api/internal/items"
	"ews-api/internal/mailstore"
	"ews-api/internal/properties"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

// listShapeProperties are the fields requested on top of IdOnly when paging
// a folder; enough for the list view without pulling bodies.
var listShapeProperties = []string{
	"item:Subject",
	"item:DateTimeReceived",
	"item:HasAttachments",
	"message:From",
	"message:IsRead",
}

// Service defines the interface for email business logic operations.
type Service interface {
	ListEmails(ctx context.Context, req *ListEmailsRequest) (*ListEmailsResponse, error)
	GetEmail(ctx context.Context, req *GetEmailRequest) (*EmailDetail, error)
	AddAttachment(ctx context.Context, req *AddAttachmentRequest) (*AttachmentResponse, error)
	DownloadAttachment(ctx context.Context, publicID string) (*AttachmentDownload, error)
	DeleteAttachment(ctx context.Context, req *DeleteAttachmentRequest) (*DeleteAttachmentResponse, error)
	ListAttachments(ctx context.Context, itemID string) ([]mailstore.AttachmentRecord, error)
}

type service struct {
	caller ewsclient.Caller
	store  mailstore.Repository
}

// NewService creates a new email service.
func NewService(caller ewsclient.Caller, store mailstore.Repository) Service {
	return &service{caller: caller, store: store}
}

type param struct {
	name, value string
}

// requireAll checks parameters in declaration order so the reported field is
// stable when several are missing.
func requireAll(params ...param) error {
	for _, p := range params {
		if p.value == "" {
			return fmt.Errorf("%w: %s", ErrMissingParameter, p.name)
		}
	}
	return nil
}

func (s *service) ListEmails(ctx context.Context, req *ListEmailsRequest) (*ListEmailsResponse, error) {
	if err := requireAll(param{"mailbox", req.Mailbox}); err != nil {
		return nil, err
	}
	folderID, err := ewsclient.FolderID(req.Folder)
	if err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	op := &ewsclient.FindItem{
		FolderID:   folderID,
		Mailbox:    req.Mailbox,
		Limit:      limit,
		Offset:     offset,
		Properties: listShapeProperties,
	}
	results, err := s.caller.Call(ctx, op)
	if err != nil {
		return nil, err
	}
	if len(results) != 1 {
		return nil, ewsxml.ProtocolErrorf("expected 1 FindItem result, got %d", len(results))
	}
	if results[0].Err != nil {
		return nil, results[0].Err
	}

	rootFolder := results[0].Elem
	resp := &ListEmailsResponse{
		Emails: []EmailListItem{},
		Limit:  limit,
		Offset: offset,
	}
	if container := rootFolder.Find(ewsxml.TNS, "Items"); container != nil {
		for _, el := range container.FindAll(ewsxml.TNS, "Message") {
			msg, err := items.DecodeMessage(el, s.caller)
			if err != nil {
				return nil, err
			}
			resp.Emails = append(resp.Emails, toListItem(msg))
		}
	}
	resp.Total = len(resp.Emails)
	if v, ok := rootFolder.AttrOK("TotalItemsInView"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			resp.Total = n
		}
	}
	return resp, nil
}

func (s *service) GetEmail(ctx context.Context, req *GetEmailRequest) (*EmailDetail, error) {
	if err := requireAll(
		param{"mailbox", req.Mailbox},
		param{"item_id", req.ItemID},
		param{"change_key", req.ChangeKey},
	); err != nil {
		return nil, err
	}

	op := &ewsclient.GetItem{
		IDs:        []*properties.ItemID{{ID: req.ItemID, ChangeKey: req.ChangeKey}},
		Mailbox:    req.Mailbox,
		BaseShape:  "Default",
		Properties: []string{"item:InternetMessageHeaders", "item:Categories", "item:Importance"},
	}
	results, err := s.caller.Call(ctx, op)
	if err != nil {
		return nil, err
	}
	if len(results) != 1 {
		return nil, ewsxml.ProtocolErrorf("expected 1 GetItem result, got %d", len(results))
	}
	if err := results[0].Err; err != nil {
		var re *ewsclient.RemoteError
		if errors.As(err, &re) && re.Code == "ErrorItemNotFound" {
			return nil, ErrEmailNotFound
		}
		return nil, err
	}

	msg, err := items.DecodeMessage(results[0].Elem, s.caller)
	if err != nil {
		return nil, err
	}
	return toDetail(msg), nil
}

func (s *service) AddAttachment(ctx context.Context, req *AddAttachmentRequest) (*AttachmentResponse, error) {
	if err := requireAll(
		param{"mailbox", req.Mailbox},
		param{"item_id", req.ItemID},
		param{"change_key", req.ChangeKey},
		param{"name", req.Name},
	); err != nil {
		return nil, err
	}

	parent := &items.Message{
		Session: s.caller,
		Mailbox: req.Mailbox,
		ItemID:  &properties.ItemID{ID: req.ItemID, ChangeKey: req.ChangeKey},
	}
	att := attachments.NewFileAttachment(parent, req.Name, req.Content)
	if req.ContentType != "" {
		att.ContentType = properties.String(req.ContentType)
	}
	if req.Inline {
		att.IsInline = properties.Bool(true)
		att.ContentID = properties.String(uuid.New().String())
	}

	if err := att.Attach(ctx); err != nil {
		return nil, err
	}

	rec := &mailstore.AttachmentRecord{
		Mailbox:       req.Mailbox,
		ItemID:        req.ItemID,
		AttachmentID:  att.AttachmentID.ID,
		Name:          req.Name,
		ContentType:   strOrEmpty(att.ContentType),
		Size:          int64(len(req.Content)),
		PrevChangeKey: req.ChangeKey,
		NewChangeKey:  parent.ItemID.ChangeKey,
	}
	// The attachment exists remotely at this point; a failed audit write is
	// logged, not surfaced.
	if err := s.store.Create(ctx, rec); err != nil {
		log.Printf("[ERROR] Failed to record attachment %s: %v", att.AttachmentID.ID, err)
	}

	return &AttachmentResponse{
		ID:            rec.PublicID,
		AttachmentID:  att.AttachmentID.ID,
		Name:          req.Name,
		ContentType:   rec.ContentType,
		Size:          rec.Size,
		ItemChangeKey: parent.ItemID.ChangeKey,
		DownloadURL:   "/emails/attachments/" + rec.PublicID + "/download",
		Message:       "Attachment created successfully",
	}, nil
}

func (s *service) DownloadAttachment(ctx context.Context, publicID string) (*AttachmentDownload, error) {
	rec, err := s.store.GetByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if rec.Detached {
		return nil, ErrAttachmentDetached
	}

	att := &attachments.FileAttachment{}
	att.Parent = &items.Message{Session: s.caller, Mailbox: rec.Mailbox}
	att.AttachmentID = &properties.AttachmentID{ID: rec.AttachmentID}

	content, err := att.Content(ctx)
	if err != nil {
		return nil, err
	}
	return &AttachmentDownload{Record: rec, Content: content}, nil
}

func (s *service) DeleteAttachment(ctx context.Context, req *DeleteAttachmentRequest) (*DeleteAttachmentResponse, error) {
	if err := requireAll(
		param{"mailbox", req.Mailbox},
		param{"item_id", req.ItemID},
		param{"change_key", req.ChangeKey},
		param{"attachment_id", req.AttachmentID},
	); err != nil {
		return nil, err
	}

	parent := &items.Message{
		Session: s.caller,
		Mailbox: req.Mailbox,
		ItemID:  &properties.ItemID{ID: req.ItemID, ChangeKey: req.ChangeKey},
	}
	att := &attachments.FileAttachment{}
	att.Parent = parent
	att.AttachmentID = &properties.AttachmentID{ID: req.AttachmentID}

	if err := att.Detach(ctx); err != nil {
		return nil, err
	}

	if err := s.store.MarkDetached(ctx, req.AttachmentID, parent.ItemID.ChangeKey); err != nil &&
		!errors.Is(err, mailstore.ErrRecordNotFound) {
		log.Printf("[ERROR] Failed to record detach of %s: %v", req.AttachmentID, err)
	}

	return &DeleteAttachmentResponse{
		ItemChangeKey: parent.ItemID.ChangeKey,
		Message:       "Attachment deleted successfully",
	}, nil
}

func (s *service) ListAttachments(ctx context.Context, itemID string) ([]mailstore.AttachmentRecord, error) {
	if err := requireAll(param{"item_id", itemID}); err != nil {
		return nil, err
	}
	records, err := s.store.ListByItem(ctx, itemID, false)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []mailstore.AttachmentRecord{}
	}
	return records, nil
}

package emails

import (
	"time"

	"ews-api/internal/items"
	"ews-api/internal/mailstore"
	"ews-api/internal/properties"
)

// EmailAddress represents an email address with display name.
type EmailAddress struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

// EmailListItem represents a summary of an email for list views.
type EmailListItem struct {
	ItemID         string        `json:"item_id"`
	ChangeKey      string        `json:"change_key"`
	Subject        string        `json:"subject"`
	From           *EmailAddress `json:"from,omitempty"`
	ReceivedDate   *time.Time    `json:"received_date,omitempty"`
	HasAttachments bool          `json:"has_attachments"`
	IsRead         bool          `json:"is_read"`
}

// EmailHeader represents one internet message header.
type EmailHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// EmailDetail represents full details of an email.
type EmailDetail struct {
	ItemID         string         `json:"item_id"`
	ChangeKey      string         `json:"change_key"`
	Subject        string         `json:"subject"`
	Body           string         `json:"body,omitempty"`
	From           *EmailAddress  `json:"from,omitempty"`
	ToRecipients   []EmailAddress `json:"to_recipients,omitempty"`
	ReceivedDate   *time.Time     `json:"received_date,omitempty"`
	HasAttachments bool           `json:"has_attachments"`
	IsRead         bool           `json:"is_read"`
	Importance     string         `json:"importance,omitempty"`
	Categories     []string       `json:"categories,omitempty"`
	Headers        []EmailHeader  `json:"headers,omitempty"`
}

// ListEmailsRequest represents the request to list emails.
type ListEmailsRequest struct {
	Mailbox string `json:"mailbox"`
	Folder  string `json:"folder"`
	Limit   int    `json:"limit"`
	Offset  int    `json:"offset"`
}

// ListEmailsResponse represents the response with email list.
type ListEmailsResponse struct {
	Emails []EmailListItem `json:"emails"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// GetEmailRequest represents the request to get email details. Both identity
// tokens are required; the change key comes from a prior list response.
type GetEmailRequest struct {
	Mailbox   string `json:"mailbox"`
	ItemID    string `json:"item_id"`
	ChangeKey string `json:"change_key"`
}

// AddAttachmentRequest represents the request to create a file attachment on
// an existing item. Content travels base64-encoded in JSON.
type AddAttachmentRequest struct {
	Mailbox     string `json:"mailbox"`
	ItemID      string `json:"item_id"`
	ChangeKey   string `json:"change_key"`
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	Content     []byte `json:"content"`
	Inline      bool   `json:"inline,omitempty"`
}

// AttachmentResponse represents the result of a successful attachment create.
type AttachmentResponse struct {
	ID            string `json:"id"`
	AttachmentID  string `json:"attachment_id"`
	Name          string `json:"name"`
	ContentType   string `json:"content_type"`
	Size          int64  `json:"size"`
	ItemChangeKey string `json:"item_change_key"`
	DownloadURL   string `json:"download_url"`
	Message       string `json:"message"`
}

// AttachmentDownload bundles the fetched content with its audit record.
type AttachmentDownload struct {
	Record  *mailstore.AttachmentRecord
	Content []byte
}

// DeleteAttachmentRequest represents the request to remove an attachment.
type DeleteAttachmentRequest struct {
	Mailbox      string `json:"mailbox"`
	ItemID       string `json:"item_id"`
	ChangeKey    string `json:"change_key"`
	AttachmentID string `json:"attachment_id"`
}

// DeleteAttachmentResponse carries the parent item's advanced change key.
type DeleteAttachmentResponse struct {
	ItemChangeKey string `json:"item_change_key"`
	Message       string `json:"message"`
}

// -------------------- Conversion Helpers --------------------

func toAddress(m *properties.Mailbox) *EmailAddress {
	if m == nil {
		return nil
	}
	addr := &EmailAddress{}
	if m.Name != nil {
		addr.Name = *m.Name
	}
	if m.EmailAddress != nil {
		addr.Address = *m.EmailAddress
	}
	return addr
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func boolOrFalse(b *bool) bool {
	return b != nil && *b
}

func toListItem(m *items.Message) EmailListItem {
	item := EmailListItem{
		Subject:        strOrEmpty(m.Subject),
		From:           toAddress(m.From),
		ReceivedDate:   m.DateTimeReceived,
		HasAttachments: boolOrFalse(m.HasAttachments),
		IsRead:         boolOrFalse(m.IsRead),
	}
	if m.ItemID != nil {
		item.ItemID = m.ItemID.ID
		item.ChangeKey = m.ItemID.ChangeKey
	}
	return item
}

func toDetail(m *items.Message) *EmailDetail {
	detail := &EmailDetail{
		Subject:        strOrEmpty(m.Subject),
		Body:           strOrEmpty(m.Body),
		From:           toAddress(m.From),
		ReceivedDate:   m.DateTimeReceived,
		HasAttachments: boolOrFalse(m.HasAttachments),
		IsRead:         boolOrFalse(m.IsRead),
		Importance:     strOrEmpty(m.Importance),
		Categories:     m.Categories,
	}
	if m.ItemID != nil {
		detail.ItemID = m.ItemID.ID
		detail.ChangeKey = m.ItemID.ChangeKey
	}
	for _, r := range m.ToRecipients {
		if addr := toAddress(r); addr != nil {
			detail.ToRecipients = append(detail.ToRecipients, *addr)
		}
	}
	for _, h := range m.Headers {
		detail.Headers = append(detail.Headers, EmailHeader{
			Name:  strOrEmpty(h.Name),
			Value: strOrEmpty(h.Value),
		})
	}
	return detail
}

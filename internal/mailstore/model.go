package mailstore

import (
	"database/sql"
	"time"
)

// AttachmentRecord is the persisted trace of one attachment created through
// this service: which item it was added to, the identity Exchange issued for
// it, and the change keys observed before and after the mutation. Records are
// kept after detach for auditability; Detached marks them consumed.
type AttachmentRecord struct {
	ID            int64        `json:"-"`
	PublicID      string       `json:"id"`
	Mailbox       string       `json:"mailbox"`
	ItemID        string       `json:"item_id"`
	AttachmentID  string       `json:"attachment_id"`
	Name          string       `json:"name"`
	ContentType   string       `json:"content_type"`
	Size          int64        `json:"size"`
	PrevChangeKey string       `json:"-"`
	NewChangeKey  string       `json:"-"`
	Detached      bool         `json:"detached"`
	DetachedAt    sql.NullTime `json:"-"`
	CreatedAt     time.Time    `json:"created_at"`
}

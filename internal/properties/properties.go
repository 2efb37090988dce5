package properties

import (
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"ews-api/internal/ewsxml"
)

// ErrMailboxUnaddressable is returned by Mailbox validation when neither an
// email address nor an item identity is set; Exchange cannot route to such a
// mailbox.
var ErrMailboxUnaddressable = errors.New("mailbox must have either an email address or an item id")

// MailboxTypes is the closed value set for the MailboxType choice field.
var MailboxTypes = []string{"Mailbox", "PublicDL", "PrivateDL", "Contact", "PublicFolder", "Unknown", "OneOff"}

var mailboxSchema = ewsxml.NewSchema(ewsxml.TNS, "Mailbox",
	&ewsxml.TextField{Base: ewsxml.Base{Name: "name", Wire: "Name"}},
	&ewsxml.TextField{Base: ewsxml.Base{Name: "email_address", Wire: "EmailAddress"}},
	&ewsxml.ChoiceField{
		Base:    ewsxml.Base{Name: "mailbox_type", Wire: "MailboxType"},
		Choices: MailboxTypes,
		Default: "Mailbox",
	},
	&ewsxml.ElementField{Base: ewsxml.Base{Name: "item_id"}, New: func() ewsxml.Entity { return &ItemID{} }},
)

// Mailbox is a sender or recipient address. Exchange may fill in the display
// name and mailbox type on insert, so equality rests on the item identity
// when present and otherwise on the lowercased email address.
type Mailbox struct {
	Name         *string
	EmailAddress *string
	MailboxType  *string
	ItemID       *ItemID
}

func (m *Mailbox) Schema() *ewsxml.Schema { return mailboxSchema }

func (m *Mailbox) Get(field string) interface{} {
	switch field {
	case "name":
		return m.Name
	case "email_address":
		return m.EmailAddress
	case "mailbox_type":
		return m.MailboxType
	case "item_id":
		if m.ItemID == nil {
			return nil
		}
		return m.ItemID
	}
	panic(fmt.Sprintf("properties: unknown Mailbox field %q", field))
}

func (m *Mailbox) Set(field string, v interface{}) {
	switch field {
	case "name":
		m.Name, _ = v.(*string)
	case "email_address":
		m.EmailAddress, _ = v.(*string)
	case "mailbox_type":
		m.MailboxType, _ = v.(*string)
	case "item_id":
		if v == nil {
			m.ItemID = nil
			return
		}
		m.ItemID = v.(*ItemID)
	default:
		panic(fmt.Sprintf("properties: unknown Mailbox field %q", field))
	}
}

// Validate enforces the cross-field invariant on top of per-field cleaning.
func (m *Mailbox) Validate() error {
	if (m.EmailAddress == nil || *m.EmailAddress == "") && m.ItemID == nil {
		return ErrMailboxUnaddressable
	}
	return nil
}

// Hash identifies the mailbox by item identity when known, else by address.
func (m *Mailbox) Hash() uint64 {
	if m.ItemID != nil {
		return itemIDSchema.Hash(m.ItemID)
	}
	h := fnv.New64a()
	if m.EmailAddress != nil {
		h.Write([]byte(strings.ToLower(*m.EmailAddress)))
	}
	return h.Sum64()
}

// DecodeMailbox materializes a Mailbox element.
func DecodeMailbox(el *ewsxml.Element) (*Mailbox, error) {
	m := &Mailbox{}
	if err := mailboxSchema.DecodeInto(el, m); err != nil {
		return nil, err
	}
	return m, nil
}

var messageHeaderSchema = ewsxml.NewSchema(ewsxml.TNS, "InternetMessageHeader",
	&ewsxml.IDField{Base: ewsxml.Base{Name: "name", Wire: "HeaderName", Required: true}},
	&ewsxml.SubTextField{Base: ewsxml.Base{Name: "value"}},
)

// MessageHeader is a single internet message header: the header name rides
// as an attribute, the value as the element's own text.
type MessageHeader struct {
	Name  *string
	Value *string
}

func (h *MessageHeader) Schema() *ewsxml.Schema { return messageHeaderSchema }

func (h *MessageHeader) Get(field string) interface{} {
	switch field {
	case "name":
		return h.Name
	case "value":
		return h.Value
	}
	panic(fmt.Sprintf("properties: unknown MessageHeader field %q", field))
}

func (h *MessageHeader) Set(field string, v interface{}) {
	switch field {
	case "name":
		h.Name, _ = v.(*string)
	case "value":
		h.Value, _ = v.(*string)
	default:
		panic(fmt.Sprintf("properties: unknown MessageHeader field %q", field))
	}
}

// ResponseTypes is the closed value set for attendee response status.
var ResponseTypes = []string{"Unknown", "Organizer", "Tentative", "Accept", "Decline", "NoResponseReceived"}

var attendeeSchema = ewsxml.NewSchema(ewsxml.TNS, "Attendee",
	&ewsxml.ElementField{Base: ewsxml.Base{Name: "mailbox", Required: true}, New: func() ewsxml.Entity { return &Mailbox{} }},
	&ewsxml.ChoiceField{
		Base:    ewsxml.Base{Name: "response_type", Wire: "ResponseType"},
		Choices: ResponseTypes,
		Default: "Unknown",
	},
	&ewsxml.DateTimeField{Base: ewsxml.Base{Name: "last_response_time", Wire: "LastResponseTime"}},
)

// Attendee is a meeting participant with a response status.
type Attendee struct {
	Mailbox          *Mailbox
	ResponseType     *string
	LastResponseTime *time.Time
}

func (a *Attendee) Schema() *ewsxml.Schema { return attendeeSchema }

func (a *Attendee) Get(field string) interface{} {
	switch field {
	case "mailbox":
		if a.Mailbox == nil {
			return nil
		}
		return a.Mailbox
	case "response_type":
		return a.ResponseType
	case "last_response_time":
		return a.LastResponseTime
	}
	panic(fmt.Sprintf("properties: unknown Attendee field %q", field))
}

func (a *Attendee) Set(field string, v interface{}) {
	switch field {
	case "mailbox":
		if v == nil {
			a.Mailbox = nil
			return
		}
		a.Mailbox = v.(*Mailbox)
	case "response_type":
		a.ResponseType, _ = v.(*string)
	case "last_response_time":
		a.LastResponseTime, _ = v.(*time.Time)
	default:
		panic(fmt.Sprintf("properties: unknown Attendee field %q", field))
	}
}

// Hash delegates to the mailbox: the participant, not their response state,
// identifies the attendee.
func (a *Attendee) Hash() uint64 {
	if a.Mailbox == nil {
		return 0
	}
	return a.Mailbox.Hash()
}

// String returns a string pointer, handy when building entities literally.
func String(s string) *string { return &s }

// Bool returns a bool pointer.
func Bool(b bool) *bool { return &b }

// Int returns an int pointer.
func Int(n int) *int { return &n }

// Time returns a time pointer.
func Time(t time.Time) *time.Time { return &t }

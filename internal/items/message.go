// Package items holds the item entities that attachments hang off. Only the
// email message shape is modeled; the full Exchange item catalog is out of
// scope for this service.
package items

import (
	"fmt"
	"time"

	"ews-api/internal/ewsclient"
	"ews-api/internal/ewsxml"
	"ews-api/internal/properties"
)

// ImportanceLevels is the closed value set for the Importance choice field.
var ImportanceLevels = []string{"Low", "Normal", "High"}

var messageSchema = ewsxml.NewSchema(ewsxml.TNS, "Message",
	&ewsxml.ElementField{Base: ewsxml.Base{Name: "item_id", ReadOnly: true}, New: func() ewsxml.Entity { return &properties.ItemID{} }},
	&ewsxml.TextField{Base: ewsxml.Base{Name: "subject", Wire: "Subject"}, MaxLen: 255},
	&ewsxml.TextField{Base: ewsxml.Base{Name: "body", Wire: "Body"}},
	&ewsxml.StringListField{Base: ewsxml.Base{Name: "categories", Wire: "Categories"}},
	&ewsxml.ChoiceField{Base: ewsxml.Base{Name: "importance", Wire: "Importance"}, Choices: ImportanceLevels},
	&ewsxml.DateTimeField{Base: ewsxml.Base{Name: "datetime_received", Wire: "DateTimeReceived", ReadOnly: true}},
	&ewsxml.BoolField{Base: ewsxml.Base{Name: "has_attachments", Wire: "HasAttachments", ReadOnly: true}},
	&ewsxml.ElementListField{Base: ewsxml.Base{Name: "internet_message_headers", Wire: "InternetMessageHeaders", ReadOnly: true}, New: func() ewsxml.Entity { return &properties.MessageHeader{} }},
	&ewsxml.ElementField{Base: ewsxml.Base{Name: "from", Wire: "From"}, New: func() ewsxml.Entity { return &properties.Mailbox{} }},
	&ewsxml.ElementListField{Base: ewsxml.Base{Name: "to_recipients", Wire: "ToRecipients"}, New: func() ewsxml.Entity { return &properties.Mailbox{} }},
	&ewsxml.BoolField{Base: ewsxml.Base{Name: "is_read", Wire: "IsRead"}},
)

// Message is an email item. Session binds the instance to the service-call
// collaborator; a nil Session means the message is detached and cannot issue
// attachment operations. Mailbox names the account the item belongs to;
// operations on the item impersonate it when set, since item identities are
// only valid within their owning mailbox.
type Message struct {
	Session ewsclient.Caller
	Mailbox string

	ItemID           *properties.ItemID
	Subject          *string
	Body             *string
	Categories       []string
	Importance       *string
	DateTimeReceived *time.Time
	HasAttachments   *bool
	Headers          []*properties.MessageHeader
	From             *properties.Mailbox
	ToRecipients     []*properties.Mailbox
	IsRead           *bool
}

func (m *Message) Schema() *ewsxml.Schema { return messageSchema }

func (m *Message) Get(field string) interface{} {
	switch field {
	case "item_id":
		if m.ItemID == nil {
			return nil
		}
		return m.ItemID
	case "subject":
		return m.Subject
	case "body":
		return m.Body
	case "categories":
		return m.Categories
	case "importance":
		return m.Importance
	case "datetime_received":
		return m.DateTimeReceived
	case "has_attachments":
		return m.HasAttachments
	case "internet_message_headers":
		if len(m.Headers) == 0 {
			return nil
		}
		out := make([]ewsxml.Entity, len(m.Headers))
		for i, h := range m.Headers {
			out[i] = h
		}
		return out
	case "from":
		if m.From == nil {
			return nil
		}
		return m.From
	case "to_recipients":
		if len(m.ToRecipients) == 0 {
			return nil
		}
		out := make([]ewsxml.Entity, len(m.ToRecipients))
		for i, r := range m.ToRecipients {
			out[i] = r
		}
		return out
	case "is_read":
		return m.IsRead
	}
	panic(fmt.Sprintf("items: unknown Message field %q", field))
}

func (m *Message) Set(field string, v interface{}) {
	switch field {
	case "item_id":
		if v == nil {
			m.ItemID = nil
			return
		}
		m.ItemID = v.(*properties.ItemID)
	case "subject":
		m.Subject, _ = v.(*string)
	case "body":
		m.Body, _ = v.(*string)
	case "categories":
		m.Categories, _ = v.([]string)
	case "importance":
		m.Importance, _ = v.(*string)
	case "datetime_received":
		m.DateTimeReceived, _ = v.(*time.Time)
	case "has_attachments":
		m.HasAttachments, _ = v.(*bool)
	case "internet_message_headers":
		m.Headers = nil
		if list, ok := v.([]ewsxml.Entity); ok {
			m.Headers = make([]*properties.MessageHeader, len(list))
			for i, e := range list {
				m.Headers[i] = e.(*properties.MessageHeader)
			}
		}
	case "from":
		if v == nil {
			m.From = nil
			return
		}
		m.From = v.(*properties.Mailbox)
	case "to_recipients":
		m.ToRecipients = nil
		if list, ok := v.([]ewsxml.Entity); ok {
			m.ToRecipients = make([]*properties.Mailbox, len(list))
			for i, e := range list {
				m.ToRecipients[i] = e.(*properties.Mailbox)
			}
		}
	case "is_read":
		m.IsRead, _ = v.(*bool)
	default:
		panic(fmt.Sprintf("items: unknown Message field %q", field))
	}
}

// Hash switches from structural hashing to identity hashing once the server
// has issued an item identity, so client-built and server-echoed instances of
// the same item compare equal after a round trip.
func (m *Message) Hash() uint64 {
	if m.ItemID != nil {
		return m.ItemID.Schema().Hash(m.ItemID)
	}
	return messageSchema.Hash(m)
}

// Equal reports structural equality via the hash scheme above.
func (m *Message) Equal(other *Message) bool {
	if other == nil {
		return false
	}
	return m.Hash() == other.Hash()
}

// DecodeMessage materializes a Message element and binds it to the given
// service session.
func DecodeMessage(el *ewsxml.Element, session ewsclient.Caller) (*Message, error) {
	m := &Message{Session: session}
	if err := messageSchema.DecodeInto(el, m); err != nil {
		return nil, err
	}
	return m, nil
}
